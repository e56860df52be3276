package postgres

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/havenloop/dispatch-api/internal/model"
	"github.com/havenloop/dispatch-api/internal/repository"
	apperrors "github.com/havenloop/dispatch-api/pkg/errors"
)

type summaryRepository struct {
	BaseRepository
}

func NewSummaryRepository(base BaseRepository) repository.SummaryRepository {
	return &summaryRepository{base}
}

type summaryRow struct {
	model.CrisisAlertSummary
	ResultsJSON []byte `db:"results"`
}

func (r *summaryRepository) Create(ctx context.Context, summary *model.CrisisAlertSummary) error {
	results, err := json.Marshal(summary.Results)
	if err != nil {
		return fmt.Errorf("failed to marshal contact results: %w", err)
	}

	query := `
        INSERT INTO crisis_alert_summaries (
            id, user_id, total_contacts, notified_contacts, status,
            message, results, created_at, completed_at
        ) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
    `

	_, err = r.GetDB().ExecContext(ctx, query,
		summary.ID,
		summary.UserID,
		summary.TotalContacts,
		summary.NotifiedContacts,
		summary.Status,
		summary.Message,
		results,
		summary.CreatedAt,
		summary.CompletedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to create crisis summary: %w", err)
	}
	return nil
}

func (r *summaryRepository) Get(ctx context.Context, id uuid.UUID) (*model.CrisisAlertSummary, error) {
	query := `
        SELECT id, user_id, total_contacts, notified_contacts, status,
               message, results, created_at, completed_at
        FROM crisis_alert_summaries
        WHERE id = $1
    `

	var row summaryRow
	if err := r.GetDB().GetContext(ctx, &row, query, id); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, apperrors.NewNotFound("crisis summary", err)
		}
		return nil, fmt.Errorf("failed to get crisis summary: %w", err)
	}
	return row.toModel()
}

func (r *summaryRepository) ListByUser(ctx context.Context, userID uuid.UUID, from, to time.Time) ([]*model.CrisisAlertSummary, error) {
	query := `
        SELECT id, user_id, total_contacts, notified_contacts, status,
               message, results, created_at, completed_at
        FROM crisis_alert_summaries
        WHERE user_id = $1 AND created_at >= $2 AND created_at < $3
        ORDER BY created_at DESC
    `

	var rows []summaryRow
	if err := r.GetDB().SelectContext(ctx, &rows, query, userID, from, to); err != nil {
		return nil, fmt.Errorf("failed to list crisis summaries: %w", err)
	}

	summaries := make([]*model.CrisisAlertSummary, 0, len(rows))
	for i := range rows {
		s, err := rows[i].toModel()
		if err != nil {
			return nil, err
		}
		summaries = append(summaries, s)
	}
	return summaries, nil
}

func (row *summaryRow) toModel() (*model.CrisisAlertSummary, error) {
	summary := row.CrisisAlertSummary
	if len(row.ResultsJSON) > 0 {
		if err := json.Unmarshal(row.ResultsJSON, &summary.Results); err != nil {
			return nil, fmt.Errorf("failed to unmarshal contact results: %w", err)
		}
	}
	return &summary, nil
}
