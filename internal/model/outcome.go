package model

import (
	"time"

	"github.com/google/uuid"
)

type OutcomeStatus string

const (
	OutcomeSent                 OutcomeStatus = "sent"
	OutcomeDuplicate            OutcomeStatus = "duplicate"
	OutcomeFailed               OutcomeStatus = "failed"
	OutcomeSuppressedQuietHours OutcomeStatus = "suppressed_quiet_hours"
	OutcomeSuppressedRateLimit  OutcomeStatus = "suppressed_rate_limited"
	OutcomeSuppressedPreference OutcomeStatus = "suppressed_preference"
)

// DeliveryOutcome records one (notification, channel, recipient) attempt.
// Rows are append-only; a retry supersedes with a new row, never an update.
type DeliveryOutcome struct {
	ID                uuid.UUID     `db:"id" json:"id"`
	NotificationID    uuid.UUID     `db:"notification_id" json:"notification_id"`
	UserID            uuid.UUID     `db:"user_id" json:"user_id"`
	ContactID         *uuid.UUID    `db:"contact_id" json:"contact_id,omitempty"`
	Channel           Channel       `db:"channel" json:"channel"`
	Status            OutcomeStatus `db:"status" json:"status"`
	ProviderMessageID string        `db:"provider_message_id" json:"provider_message_id,omitempty"`
	ErrorDetail       string        `db:"error_detail" json:"error_detail,omitempty"`
	RetryCount        int           `db:"retry_count" json:"retry_count"`
	CreatedAt         time.Time     `db:"created_at" json:"created_at"`
}

// Delivered reports whether the outcome represents a completed send. A
// duplicate counts: the message reached the recipient on an earlier attempt
// under the same idempotency key.
func (o *DeliveryOutcome) Delivered() bool {
	return o.Status == OutcomeSent || o.Status == OutcomeDuplicate
}

type SummaryStatus string

const (
	SummarySent    SummaryStatus = "sent"
	SummaryPartial SummaryStatus = "partial"
	SummaryFailed  SummaryStatus = "failed"
)

// ContactResult ties a contact's escalation outcome back to its priority
// rank, whatever order the worker pool finished in.
type ContactResult struct {
	ContactID uuid.UUID `json:"contact_id"`
	Priority  int       `json:"priority"`
	Notified  bool      `json:"notified"`
	Error     string    `json:"error,omitempty"`
}

// CrisisAlertSummary is created once per crisis trigger and finalized only
// after the fan-out pool has drained.
type CrisisAlertSummary struct {
	ID               uuid.UUID       `db:"id" json:"id"`
	UserID           uuid.UUID       `db:"user_id" json:"user_id"`
	TotalContacts    int             `db:"total_contacts" json:"total_contacts"`
	NotifiedContacts int             `db:"notified_contacts" json:"notified_contacts"`
	Status           SummaryStatus   `db:"status" json:"status"`
	Message          string          `db:"message" json:"message"`
	Results          []ContactResult `db:"-" json:"results,omitempty"`
	CreatedAt        time.Time       `db:"created_at" json:"created_at"`
	CompletedAt      time.Time       `db:"completed_at" json:"completed_at"`
}
