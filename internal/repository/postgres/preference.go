package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"

	"github.com/havenloop/dispatch-api/internal/model"
	"github.com/havenloop/dispatch-api/internal/repository"
	apperrors "github.com/havenloop/dispatch-api/pkg/errors"
)

type preferenceRepository struct {
	BaseRepository
}

func NewPreferenceRepository(base BaseRepository) repository.PreferenceRepository {
	return &preferenceRepository{base}
}

func (r *preferenceRepository) Get(ctx context.Context, userID uuid.UUID) (*model.EffectivePreferences, error) {
	query := `
        SELECT user_id, in_app_enabled, sms_enabled, email_enabled,
               email_address, phone_number, quiet_hours_start, quiet_hours_end,
               timezone, opted_out_categories, max_per_hour, max_per_day, updated_at
        FROM notification_preferences
        WHERE user_id = $1
    `

	var prefs model.EffectivePreferences
	if err := r.GetDB().GetContext(ctx, &prefs, query, userID); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			// No row means the user never touched settings.
			return model.DefaultPreferences(userID), nil
		}
		return nil, apperrors.PreferenceUnavailable(err)
	}

	return &prefs, nil
}

func (r *preferenceRepository) Upsert(ctx context.Context, userID uuid.UUID, update *model.PreferenceUpdate) error {
	return r.WithTx(ctx, func(tx *sqlx.Tx) error {
		current, err := r.lockedGet(ctx, tx, userID)
		if err != nil {
			return err
		}
		apply(current, update)

		query := `
            INSERT INTO notification_preferences (
                user_id, in_app_enabled, sms_enabled, email_enabled,
                email_address, phone_number, quiet_hours_start, quiet_hours_end,
                timezone, opted_out_categories, max_per_hour, max_per_day, updated_at
            ) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, NOW())
            ON CONFLICT (user_id) DO UPDATE SET
                in_app_enabled = EXCLUDED.in_app_enabled,
                sms_enabled = EXCLUDED.sms_enabled,
                email_enabled = EXCLUDED.email_enabled,
                email_address = EXCLUDED.email_address,
                phone_number = EXCLUDED.phone_number,
                quiet_hours_start = EXCLUDED.quiet_hours_start,
                quiet_hours_end = EXCLUDED.quiet_hours_end,
                timezone = EXCLUDED.timezone,
                opted_out_categories = EXCLUDED.opted_out_categories,
                max_per_hour = EXCLUDED.max_per_hour,
                max_per_day = EXCLUDED.max_per_day,
                updated_at = NOW()
        `
		_, err = tx.ExecContext(ctx, query,
			userID,
			current.InAppEnabled,
			current.SMSEnabled,
			current.EmailEnabled,
			current.EmailAddress,
			current.PhoneNumber,
			current.QuietHoursStart,
			current.QuietHoursEnd,
			current.Timezone,
			current.OptedOut,
			current.MaxPerHour,
			current.MaxPerDay,
		)
		if err != nil {
			return fmt.Errorf("failed to upsert preferences: %w", err)
		}
		return nil
	})
}

func (r *preferenceRepository) lockedGet(ctx context.Context, tx *sqlx.Tx, userID uuid.UUID) (*model.EffectivePreferences, error) {
	query := `
        SELECT user_id, in_app_enabled, sms_enabled, email_enabled,
               email_address, phone_number, quiet_hours_start, quiet_hours_end,
               timezone, opted_out_categories, max_per_hour, max_per_day, updated_at
        FROM notification_preferences
        WHERE user_id = $1
        FOR UPDATE
    `

	var prefs model.EffectivePreferences
	if err := tx.GetContext(ctx, &prefs, query, userID); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return model.DefaultPreferences(userID), nil
		}
		return nil, fmt.Errorf("failed to read preferences: %w", err)
	}
	return &prefs, nil
}

func apply(prefs *model.EffectivePreferences, update *model.PreferenceUpdate) {
	if update.InAppEnabled != nil {
		prefs.InAppEnabled = *update.InAppEnabled
	}
	if update.SMSEnabled != nil {
		prefs.SMSEnabled = *update.SMSEnabled
	}
	if update.EmailEnabled != nil {
		prefs.EmailEnabled = *update.EmailEnabled
	}
	if update.EmailAddress != nil {
		prefs.EmailAddress = *update.EmailAddress
	}
	if update.PhoneNumber != nil {
		prefs.PhoneNumber = *update.PhoneNumber
	}
	if update.QuietHoursStart != nil {
		prefs.QuietHoursStart = *update.QuietHoursStart
	}
	if update.QuietHoursEnd != nil {
		prefs.QuietHoursEnd = *update.QuietHoursEnd
	}
	if update.Timezone != nil {
		prefs.Timezone = *update.Timezone
	}
	if update.OptedOut != nil {
		prefs.OptedOut = pq.StringArray(*update.OptedOut)
	}
	if update.MaxPerHour != nil {
		prefs.MaxPerHour = *update.MaxPerHour
	}
	if update.MaxPerDay != nil {
		prefs.MaxPerDay = *update.MaxPerDay
	}
}
