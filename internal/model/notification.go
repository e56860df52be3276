package model

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"
)

type Channel string

const (
	ChannelInApp Channel = "in_app"
	ChannelSMS   Channel = "sms"
	ChannelEmail Channel = "email"
)

// AllChannels lists every delivery channel the dispatcher knows about.
var AllChannels = []Channel{ChannelInApp, ChannelSMS, ChannelEmail}

func (c Channel) Valid() bool {
	switch c {
	case ChannelInApp, ChannelSMS, ChannelEmail:
		return true
	}
	return false
}

type Category string

const (
	CategoryCrisisAlert    Category = "crisis_alert"
	CategoryCheckIn        Category = "check_in"
	CategoryMilestone      Category = "milestone"
	CategorySupportMessage Category = "support_message"
	CategorySystem         Category = "system"
)

func (c Category) Valid() bool {
	switch c {
	case CategoryCrisisAlert, CategoryCheckIn, CategoryMilestone, CategorySupportMessage, CategorySystem:
		return true
	}
	return false
}

// Channels returns the channels a category may be delivered on. System
// notices stay in-app; everything else can use any enabled channel.
func (c Category) Channels() []Channel {
	if c == CategorySystem {
		return []Channel{ChannelInApp}
	}
	return AllChannels
}

type Priority string

const (
	PriorityLow    Priority = "low"
	PriorityNormal Priority = "normal"
	PriorityHigh   Priority = "high"
	PriorityUrgent Priority = "urgent"
)

func (p Priority) Valid() bool {
	switch p {
	case PriorityLow, PriorityNormal, PriorityHigh, PriorityUrgent:
		return true
	}
	return false
}

type RequestStatus string

const (
	RequestStatusPending    RequestStatus = "pending"
	RequestStatusProcessing RequestStatus = "processing"
	RequestStatusDispatched RequestStatus = "dispatched"
	RequestStatusFailed     RequestStatus = "failed"
)

// NotificationRequest is immutable once submitted. ContactAddress and
// ContactID are set by the crisis orchestrator when the message targets an
// emergency contact rather than the user's own addresses.
type NotificationRequest struct {
	ID              uuid.UUID       `db:"id" json:"id"`
	RecipientID     uuid.UUID       `db:"recipient_id" json:"recipient_id"`
	Category        Category        `db:"category" json:"category"`
	Priority        Priority        `db:"priority" json:"priority"`
	Title           string          `db:"title" json:"title"`
	Body            string          `db:"body" json:"body"`
	Payload         json.RawMessage `db:"payload" json:"payload,omitempty"`
	ScheduledFor    *time.Time      `db:"scheduled_for" json:"scheduled_for,omitempty"`
	ChannelOverride *Channel        `db:"channel_override" json:"channel_override,omitempty"`
	ContactAddress  string          `db:"contact_address" json:"contact_address,omitempty"`
	ContactID       *uuid.UUID      `db:"contact_id" json:"contact_id,omitempty"`
	IdempotencyKey  string          `db:"idempotency_key" json:"idempotency_key,omitempty"`
	Status          RequestStatus   `db:"status" json:"status"`
	CreatedAt       time.Time       `db:"created_at" json:"created_at"`
}

// Urgent reports whether the request bypasses quiet hours and fails the
// rate limiter open when the window store is unreachable.
func (r *NotificationRequest) Urgent() bool {
	return r.Priority == PriorityUrgent || r.Category == CategoryCrisisAlert
}

// NotificationEvent is the payload published on the in-app channel.
type NotificationEvent struct {
	ID        uuid.UUID `json:"id"`
	UserID    uuid.UUID `json:"user_id"`
	Category  Category  `json:"category"`
	Title     string    `json:"title"`
	Body      string    `json:"body"`
	CreatedAt time.Time `json:"created_at"`
}
