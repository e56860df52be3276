package postgres

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/havenloop/dispatch-api/internal/model"
	"github.com/havenloop/dispatch-api/internal/repository"
)

type requestRepository struct {
	BaseRepository
}

func NewRequestRepository(base BaseRepository) repository.RequestRepository {
	return &requestRepository{base}
}

func (r *requestRepository) Enqueue(ctx context.Context, req *model.NotificationRequest) error {
	query := `
        INSERT INTO scheduled_notifications (
            id, recipient_id, category, priority, title, body, payload,
            scheduled_for, channel_override, contact_address, contact_id,
            idempotency_key, status, created_at
        ) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14)
    `

	_, err := r.GetDB().ExecContext(ctx, query,
		req.ID,
		req.RecipientID,
		req.Category,
		req.Priority,
		req.Title,
		req.Body,
		req.Payload,
		req.ScheduledFor,
		req.ChannelOverride,
		req.ContactAddress,
		req.ContactID,
		req.IdempotencyKey,
		model.RequestStatusPending,
		req.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to enqueue notification: %w", err)
	}
	return nil
}

// ClaimDue flips a batch of due rows to processing in the same statement
// that locks them. SKIP LOCKED steps over rows a concurrent claimer holds,
// and claimed rows stop matching the pending filter, so a batch cannot be
// handed out twice between the claim and its terminal mark.
func (r *requestRepository) ClaimDue(ctx context.Context, now time.Time, limit int) ([]*model.NotificationRequest, error) {
	query := `
        UPDATE scheduled_notifications
        SET status = $1
        WHERE id IN (
            SELECT id
            FROM scheduled_notifications
            WHERE status = $2 AND scheduled_for <= $3
            ORDER BY scheduled_for ASC
            LIMIT $4
            FOR UPDATE SKIP LOCKED
        )
        RETURNING id, recipient_id, category, priority, title, body, payload,
                  scheduled_for, channel_override, contact_address, contact_id,
                  idempotency_key, status, created_at
    `

	var requests []*model.NotificationRequest
	err := r.GetDB().SelectContext(ctx, &requests, query,
		model.RequestStatusProcessing, model.RequestStatusPending, now, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to claim due notifications: %w", err)
	}
	return requests, nil
}

func (r *requestRepository) MarkDispatched(ctx context.Context, id uuid.UUID) error {
	return r.markStatus(ctx, id, model.RequestStatusDispatched, "")
}

func (r *requestRepository) MarkFailed(ctx context.Context, id uuid.UUID, reason string) error {
	return r.markStatus(ctx, id, model.RequestStatusFailed, reason)
}

func (r *requestRepository) markStatus(ctx context.Context, id uuid.UUID, status model.RequestStatus, reason string) error {
	query := `
        UPDATE scheduled_notifications
        SET status = $2, failure_reason = NULLIF($3, '')
        WHERE id = $1
    `
	if _, err := r.GetDB().ExecContext(ctx, query, id, status, reason); err != nil {
		return fmt.Errorf("failed to mark notification %s: %w", status, err)
	}
	return nil
}
