package repository

import (
	"context"
	"time"

	"github.com/google/uuid"

	"github.com/havenloop/dispatch-api/internal/model"
)

// All repository interfaces in one file
type (
	// PreferenceRepository is the narrow read/write surface over the
	// preference store. Get on a user with no row returns defaults, not
	// an error; only store-level failures surface.
	PreferenceRepository interface {
		Get(ctx context.Context, userID uuid.UUID) (*model.EffectivePreferences, error)
		Upsert(ctx context.Context, userID uuid.UUID, update *model.PreferenceUpdate) error
	}

	// ContactRepository owns the dense 1..N priority ranking: Create
	// appends at N+1, Delete renumbers the survivors, Reorder rewrites
	// the full ranking in one transaction.
	ContactRepository interface {
		ListActive(ctx context.Context, userID uuid.UUID) ([]*model.EmergencyContact, error)
		Get(ctx context.Context, id uuid.UUID) (*model.EmergencyContact, error)
		Create(ctx context.Context, contact *model.EmergencyContact) error
		Update(ctx context.Context, contact *model.EmergencyContact) error
		Delete(ctx context.Context, id uuid.UUID) error
		Reorder(ctx context.Context, userID uuid.UUID, orderedIDs []uuid.UUID) error
	}

	// OutcomeRepository is the append-only audit sink for delivery
	// outcomes. Rows are never mutated; retries append superseding rows.
	OutcomeRepository interface {
		Create(ctx context.Context, outcome *model.DeliveryOutcome) error
		ListByUser(ctx context.Context, userID uuid.UUID, from, to time.Time) ([]*model.DeliveryOutcome, error)
	}

	// SummaryRepository persists one crisis summary per trigger.
	SummaryRepository interface {
		Create(ctx context.Context, summary *model.CrisisAlertSummary) error
		Get(ctx context.Context, id uuid.UUID) (*model.CrisisAlertSummary, error)
		ListByUser(ctx context.Context, userID uuid.UUID, from, to time.Time) ([]*model.CrisisAlertSummary, error)
	}

	// RequestRepository holds notifications waiting on their scheduled
	// time; the scheduler drains it. ClaimDue moves a batch to processing
	// before returning it, so a request is handed to exactly one claimer
	// until MarkDispatched or MarkFailed settles it.
	RequestRepository interface {
		Enqueue(ctx context.Context, req *model.NotificationRequest) error
		ClaimDue(ctx context.Context, now time.Time, limit int) ([]*model.NotificationRequest, error)
		MarkDispatched(ctx context.Context, id uuid.UUID) error
		MarkFailed(ctx context.Context, id uuid.UUID, reason string) error
	}
)
