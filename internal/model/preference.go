package model

import (
	"time"

	"github.com/google/uuid"
	"github.com/lib/pq"
)

// EffectivePreferences is the resolved view of a user's notification
// settings. It is computed fresh per dispatch and never cached beyond one
// call; a change mid-dispatch applies on the next request.
type EffectivePreferences struct {
	UserID          uuid.UUID      `db:"user_id" json:"user_id"`
	InAppEnabled    bool           `db:"in_app_enabled" json:"in_app_enabled"`
	SMSEnabled      bool           `db:"sms_enabled" json:"sms_enabled"`
	EmailEnabled    bool           `db:"email_enabled" json:"email_enabled"`
	EmailAddress    string         `db:"email_address" json:"email_address,omitempty"`
	PhoneNumber     string         `db:"phone_number" json:"phone_number,omitempty"`
	QuietHoursStart string         `db:"quiet_hours_start" json:"quiet_hours_start,omitempty"`
	QuietHoursEnd   string         `db:"quiet_hours_end" json:"quiet_hours_end,omitempty"`
	Timezone        string         `db:"timezone" json:"timezone,omitempty"`
	OptedOut        pq.StringArray `db:"opted_out_categories" json:"opted_out_categories,omitempty"`
	MaxPerHour      int            `db:"max_per_hour" json:"max_per_hour"`
	MaxPerDay       int            `db:"max_per_day" json:"max_per_day"`
	UpdatedAt       time.Time      `db:"updated_at" json:"updated_at"`
}

// ChannelEnabled reports whether the user has opted in to a channel.
func (p *EffectivePreferences) ChannelEnabled(ch Channel) bool {
	switch ch {
	case ChannelInApp:
		return p.InAppEnabled
	case ChannelSMS:
		return p.SMSEnabled
	case ChannelEmail:
		return p.EmailEnabled
	}
	return false
}

// CategoryOptedOut reports a global opt-out for the category.
func (p *EffectivePreferences) CategoryOptedOut(cat Category) bool {
	for _, c := range p.OptedOut {
		if Category(c) == cat {
			return true
		}
	}
	return false
}

// HasQuietHours reports whether a quiet window is configured at all.
func (p *EffectivePreferences) HasQuietHours() bool {
	return p.QuietHoursStart != "" && p.QuietHoursEnd != ""
}

// DefaultPreferences is the assume-defaults fallback applied when the
// preference store is unreachable for a non-crisis dispatch.
func DefaultPreferences(userID uuid.UUID) *EffectivePreferences {
	return &EffectivePreferences{
		UserID:       userID,
		InAppEnabled: true,
		MaxPerHour:   10,
		MaxPerDay:    50,
		Timezone:     "UTC",
	}
}

// AllEnabledPreferences is the crisis fallback: when the store is down,
// reaching the user matters more than honoring unread settings.
func AllEnabledPreferences(userID uuid.UUID) *EffectivePreferences {
	return &EffectivePreferences{
		UserID:       userID,
		InAppEnabled: true,
		SMSEnabled:   true,
		EmailEnabled: true,
		MaxPerHour:   60,
		MaxPerDay:    500,
		Timezone:     "UTC",
	}
}

// PreferenceUpdate carries a partial settings change; nil fields are left
// untouched by the store.
type PreferenceUpdate struct {
	InAppEnabled    *bool     `json:"in_app_enabled,omitempty"`
	SMSEnabled      *bool     `json:"sms_enabled,omitempty"`
	EmailEnabled    *bool     `json:"email_enabled,omitempty"`
	EmailAddress    *string   `json:"email_address,omitempty"`
	PhoneNumber     *string   `json:"phone_number,omitempty"`
	QuietHoursStart *string   `json:"quiet_hours_start,omitempty"`
	QuietHoursEnd   *string   `json:"quiet_hours_end,omitempty"`
	Timezone        *string   `json:"timezone,omitempty"`
	OptedOut        *[]string `json:"opted_out_categories,omitempty"`
	MaxPerHour      *int      `json:"max_per_hour,omitempty"`
	MaxPerDay       *int      `json:"max_per_day,omitempty"`
}
