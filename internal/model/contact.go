package model

import (
	"time"

	"github.com/google/uuid"
	"github.com/lib/pq"
)

// EmergencyContact is one entry in a user's ordered escalation list.
// Priority is a dense 1..N ranking per owner; the contact directory
// renumbers on delete and reorder, not the dispatcher.
type EmergencyContact struct {
	ID           uuid.UUID      `db:"id" json:"id"`
	UserID       uuid.UUID      `db:"user_id" json:"user_id"`
	Name         string         `db:"name" json:"name"`
	Address      string         `db:"address" json:"address"`
	Channel      Channel        `db:"channel" json:"channel"`
	Relationship string         `db:"relationship" json:"relationship,omitempty"`
	Priority     int            `db:"priority" json:"priority"`
	Categories   pq.StringArray `db:"categories" json:"categories"`
	Active       bool           `db:"active" json:"active"`
	CreatedAt    time.Time      `db:"created_at" json:"created_at"`
	UpdatedAt    time.Time      `db:"updated_at" json:"updated_at"`
}

// ReceivesCategory reports whether the contact is flagged for a category.
func (c *EmergencyContact) ReceivesCategory(cat Category) bool {
	for _, v := range c.Categories {
		if Category(v) == cat {
			return true
		}
	}
	return false
}
