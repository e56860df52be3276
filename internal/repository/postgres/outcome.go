package postgres

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/havenloop/dispatch-api/internal/model"
	"github.com/havenloop/dispatch-api/internal/repository"
)

type outcomeRepository struct {
	BaseRepository
}

func NewOutcomeRepository(base BaseRepository) repository.OutcomeRepository {
	return &outcomeRepository{base}
}

// Create appends one outcome row. There is deliberately no Update: the
// audit trail is append-only and retries supersede with new rows.
func (r *outcomeRepository) Create(ctx context.Context, outcome *model.DeliveryOutcome) error {
	query := `
        INSERT INTO delivery_outcomes (
            id, notification_id, user_id, contact_id, channel, status,
            provider_message_id, error_detail, retry_count, created_at
        ) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
    `

	_, err := r.GetDB().ExecContext(ctx, query,
		outcome.ID,
		outcome.NotificationID,
		outcome.UserID,
		outcome.ContactID,
		outcome.Channel,
		outcome.Status,
		outcome.ProviderMessageID,
		outcome.ErrorDetail,
		outcome.RetryCount,
		outcome.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to create delivery outcome: %w", err)
	}
	return nil
}

func (r *outcomeRepository) ListByUser(ctx context.Context, userID uuid.UUID, from, to time.Time) ([]*model.DeliveryOutcome, error) {
	query := `
        SELECT id, notification_id, user_id, contact_id, channel, status,
               provider_message_id, error_detail, retry_count, created_at
        FROM delivery_outcomes
        WHERE user_id = $1 AND created_at >= $2 AND created_at < $3
        ORDER BY created_at DESC
    `

	var outcomes []*model.DeliveryOutcome
	if err := r.GetDB().SelectContext(ctx, &outcomes, query, userID, from, to); err != nil {
		return nil, fmt.Errorf("failed to list delivery outcomes: %w", err)
	}
	return outcomes, nil
}
