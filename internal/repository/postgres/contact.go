package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/havenloop/dispatch-api/internal/model"
	"github.com/havenloop/dispatch-api/internal/repository"
	apperrors "github.com/havenloop/dispatch-api/pkg/errors"
)

type contactRepository struct {
	BaseRepository
}

func NewContactRepository(base BaseRepository) repository.ContactRepository {
	return &contactRepository{base}
}

func (r *contactRepository) ListActive(ctx context.Context, userID uuid.UUID) ([]*model.EmergencyContact, error) {
	query := `
        SELECT id, user_id, name, address, channel, relationship,
               priority, categories, active, created_at, updated_at
        FROM emergency_contacts
        WHERE user_id = $1 AND active = true
        ORDER BY priority ASC
    `

	var contacts []*model.EmergencyContact
	if err := r.GetDB().SelectContext(ctx, &contacts, query, userID); err != nil {
		return nil, fmt.Errorf("failed to list contacts: %w", err)
	}
	return contacts, nil
}

func (r *contactRepository) Get(ctx context.Context, id uuid.UUID) (*model.EmergencyContact, error) {
	query := `
        SELECT id, user_id, name, address, channel, relationship,
               priority, categories, active, created_at, updated_at
        FROM emergency_contacts
        WHERE id = $1
    `

	var contact model.EmergencyContact
	if err := r.GetDB().GetContext(ctx, &contact, query, id); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, apperrors.NewNotFound("contact", err)
		}
		return nil, fmt.Errorf("failed to get contact: %w", err)
	}
	return &contact, nil
}

// Create appends the contact at the end of the owner's ranking.
func (r *contactRepository) Create(ctx context.Context, contact *model.EmergencyContact) error {
	return r.WithTx(ctx, func(tx *sqlx.Tx) error {
		var next int
		if err := tx.GetContext(ctx, &next,
			`SELECT COALESCE(MAX(priority), 0) + 1 FROM emergency_contacts WHERE user_id = $1`,
			contact.UserID,
		); err != nil {
			return fmt.Errorf("failed to compute next priority: %w", err)
		}
		contact.Priority = next

		query := `
            INSERT INTO emergency_contacts (
                id, user_id, name, address, channel, relationship,
                priority, categories, active, created_at, updated_at
            ) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, NOW(), NOW())
        `
		_, err := tx.ExecContext(ctx, query,
			contact.ID,
			contact.UserID,
			contact.Name,
			contact.Address,
			contact.Channel,
			contact.Relationship,
			contact.Priority,
			contact.Categories,
			contact.Active,
		)
		if err != nil {
			return fmt.Errorf("failed to create contact: %w", err)
		}
		return nil
	})
}

func (r *contactRepository) Update(ctx context.Context, contact *model.EmergencyContact) error {
	query := `
        UPDATE emergency_contacts
        SET name = $2, address = $3, channel = $4, relationship = $5,
            categories = $6, active = $7, updated_at = NOW()
        WHERE id = $1
    `

	res, err := r.GetDB().ExecContext(ctx, query,
		contact.ID,
		contact.Name,
		contact.Address,
		contact.Channel,
		contact.Relationship,
		contact.Categories,
		contact.Active,
	)
	if err != nil {
		return fmt.Errorf("failed to update contact: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return apperrors.NewNotFound("contact", nil)
	}
	return nil
}

// Delete removes a contact and renumbers the owner's survivors so the
// ranking stays dense 1..N.
func (r *contactRepository) Delete(ctx context.Context, id uuid.UUID) error {
	return r.WithTx(ctx, func(tx *sqlx.Tx) error {
		var userID uuid.UUID
		if err := tx.GetContext(ctx, &userID,
			`DELETE FROM emergency_contacts WHERE id = $1 RETURNING user_id`, id,
		); err != nil {
			if errors.Is(err, sql.ErrNoRows) {
				return apperrors.NewNotFound("contact", err)
			}
			return fmt.Errorf("failed to delete contact: %w", err)
		}
		return renumber(ctx, tx, userID)
	})
}

// Reorder rewrites the ranking to match orderedIDs. IDs not listed keep
// their relative order after the listed ones.
func (r *contactRepository) Reorder(ctx context.Context, userID uuid.UUID, orderedIDs []uuid.UUID) error {
	return r.WithTx(ctx, func(tx *sqlx.Tx) error {
		for i, id := range orderedIDs {
			res, err := tx.ExecContext(ctx,
				`UPDATE emergency_contacts SET priority = $1, updated_at = NOW() WHERE id = $2 AND user_id = $3`,
				-(i + 1), id, userID,
			)
			if err != nil {
				return fmt.Errorf("failed to reorder contact: %w", err)
			}
			if n, _ := res.RowsAffected(); n == 0 {
				return apperrors.NewBadRequest("contact does not belong to user", nil)
			}
		}
		// Negative staging avoids the unique (user_id, priority) collision
		// while ranks shuffle.
		if _, err := tx.ExecContext(ctx,
			`UPDATE emergency_contacts SET priority = -priority WHERE user_id = $1 AND priority < 0`,
			userID,
		); err != nil {
			return fmt.Errorf("failed to finalize reorder: %w", err)
		}
		return renumber(ctx, tx, userID)
	})
}

func renumber(ctx context.Context, tx *sqlx.Tx, userID uuid.UUID) error {
	query := `
        UPDATE emergency_contacts ec
        SET priority = ranked.rank
        FROM (
            SELECT id, ROW_NUMBER() OVER (ORDER BY priority ASC, created_at ASC) AS rank
            FROM emergency_contacts
            WHERE user_id = $1
        ) ranked
        WHERE ec.id = ranked.id AND ec.priority <> ranked.rank
    `
	if _, err := tx.ExecContext(ctx, query, userID); err != nil {
		return fmt.Errorf("failed to renumber contacts: %w", err)
	}
	return nil
}
