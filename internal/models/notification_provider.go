package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// NotificationProvider is one best-effort push target for audit events: either
// a shoutrrr URL (discord, slack, gotify, telegram, ...) or a raw webhook.
// Delivery is fire-and-forget; the ledger commit never waits on it.
type NotificationProvider struct {
	ID      string `gorm:"primaryKey" json:"id"`
	Name    string `json:"name"`
	Type    string `json:"type"` // discord, slack, gotify, telegram, generic, webhook
	URL     string `json:"url"`  // The shoutrrr URL or webhook URL
	Enabled bool   `json:"enabled"`

	// Notification Preferences
	NotifyAssignments bool `json:"notify_assignments" gorm:"default:true"`
	NotifyReleases    bool `json:"notify_releases" gorm:"default:true"`
	NotifyReconciles  bool `json:"notify_reconciles" gorm:"default:false"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

func (n *NotificationProvider) BeforeCreate(tx *gorm.DB) (err error) {
	if n.ID == "" {
		n.ID = uuid.New().String()
	}
	return
}
