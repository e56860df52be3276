package postgres

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/havenloop/dispatch-api/internal/model"
	apperrors "github.com/havenloop/dispatch-api/pkg/errors"
)

var prefColumns = []string{
	"user_id", "in_app_enabled", "sms_enabled", "email_enabled",
	"email_address", "phone_number", "quiet_hours_start", "quiet_hours_end",
	"timezone", "opted_out_categories", "max_per_hour", "max_per_day", "updated_at",
}

func TestPreferenceGet(t *testing.T) {
	base, mock := newMockDB(t)
	repo := NewPreferenceRepository(base)
	userID := uuid.New()

	mock.ExpectQuery("FROM notification_preferences").
		WithArgs(userID).
		WillReturnRows(sqlmock.NewRows(prefColumns).AddRow(
			userID.String(), true, true, false,
			"", "+15551234567", "22:00", "07:00",
			"America/New_York", "{milestone}", 10, 50, time.Now(),
		))

	prefs, err := repo.Get(context.Background(), userID)
	require.NoError(t, err)

	assert.Equal(t, userID, prefs.UserID)
	assert.True(t, prefs.SMSEnabled)
	assert.False(t, prefs.EmailEnabled)
	assert.Equal(t, "22:00", prefs.QuietHoursStart)
	assert.True(t, prefs.CategoryOptedOut(model.CategoryMilestone))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPreferenceGet_NoRowReturnsDefaults(t *testing.T) {
	base, mock := newMockDB(t)
	repo := NewPreferenceRepository(base)
	userID := uuid.New()

	mock.ExpectQuery("FROM notification_preferences").
		WithArgs(userID).
		WillReturnRows(sqlmock.NewRows(prefColumns))

	prefs, err := repo.Get(context.Background(), userID)
	require.NoError(t, err)

	assert.True(t, prefs.InAppEnabled)
	assert.False(t, prefs.SMSEnabled)
	assert.Equal(t, 10, prefs.MaxPerHour)
	assert.Equal(t, 50, prefs.MaxPerDay)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPreferenceGet_StoreError(t *testing.T) {
	base, mock := newMockDB(t)
	repo := NewPreferenceRepository(base)
	userID := uuid.New()

	mock.ExpectQuery("FROM notification_preferences").
		WithArgs(userID).
		WillReturnError(errors.New("connection reset"))

	_, err := repo.Get(context.Background(), userID)
	assert.True(t, apperrors.HasCode(err, apperrors.ErrPreferenceUnavailable))
}

func TestPreferenceUpsert_NewUser(t *testing.T) {
	base, mock := newMockDB(t)
	repo := NewPreferenceRepository(base)
	userID := uuid.New()

	mock.ExpectBegin()
	mock.ExpectQuery("FOR UPDATE").
		WithArgs(userID).
		WillReturnRows(sqlmock.NewRows(prefColumns))
	mock.ExpectExec("INSERT INTO notification_preferences").
		WithArgs(userID, true, true, false,
			"", "+15551234567", "", "",
			"UTC", sqlmock.AnyArg(), 10, 50).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectCommit()

	smsOn := true
	phone := "+15551234567"
	err := repo.Upsert(context.Background(), userID, &model.PreferenceUpdate{
		SMSEnabled:  &smsOn,
		PhoneNumber: &phone,
	})
	require.NoError(t, err)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPreferenceUpsert_LockedReadFails(t *testing.T) {
	base, mock := newMockDB(t)
	repo := NewPreferenceRepository(base)
	userID := uuid.New()

	mock.ExpectBegin()
	mock.ExpectQuery("FOR UPDATE").
		WithArgs(userID).
		WillReturnError(errors.New("deadlock detected"))
	mock.ExpectRollback()

	err := repo.Upsert(context.Background(), userID, &model.PreferenceUpdate{})
	assert.Error(t, err)
	assert.NoError(t, mock.ExpectationsWereMet())
}
