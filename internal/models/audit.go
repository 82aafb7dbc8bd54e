package models

import (
	"fmt"
	"time"
)

// AuditAction enumerates the mutations recorded in the audit trail.
type AuditAction string

const (
	AuditActionAssign    AuditAction = "assign"
	AuditActionRelease   AuditAction = "release"
	AuditActionReconcile AuditAction = "reconcile"
	AuditActionLogin     AuditAction = "login"
)

// Target kinds used in audit entries.
const (
	TargetKindSoftware = "Software"
	TargetKindHardware = "Hardware"
	TargetKindUser     = "User"
)

// AuditEntry records a single mutation. Entries are append-only: no code path
// updates or deletes a row once written. OccurredAt is always server-assigned
// and the auto-increment ID breaks ties between entries sharing a timestamp.
//
// CorrelationID groups rows that represent the same logical event (a retried
// or duplicated submission); the audit feed collapses such groups, newest row
// wins.
type AuditEntry struct {
	ID            uint        `json:"id" gorm:"primaryKey"`
	CorrelationID string      `json:"correlation_id" gorm:"index"`
	OccurredAt    time.Time   `json:"occurred_at" gorm:"index"`
	ActorID       uint        `json:"actor_id" gorm:"index"`
	ActorName     string      `json:"actor_name"`
	Action        AuditAction `json:"action" gorm:"index"`
	TargetKind    string      `json:"target_kind"`
	TargetID      *uint       `json:"target_id,omitempty"`
	Details       string      `json:"details" gorm:"type:text"`

	Changes []AuditChange `json:"changes,omitempty" gorm:"foreignKey:AuditEntryID"`

	CreatedAt time.Time `json:"created_at"`
}

// AuditChange is one field-level change attached to an audit entry.
type AuditChange struct {
	ID           uint   `json:"id" gorm:"primaryKey"`
	AuditEntryID uint   `json:"-" gorm:"index"`
	Field        string `json:"field"`
	OldValue     string `json:"old_value"`
	NewValue     string `json:"new_value"`
}

// TargetLabel renders the entry's target as a human label: "Software#12" when
// an id is known, the bare kind when only the kind is, and "Account" for
// user-only actions with no asset at all.
func (e *AuditEntry) TargetLabel() string {
	if e.TargetKind == "" {
		return "Account"
	}
	if e.TargetID == nil {
		return e.TargetKind
	}
	return fmt.Sprintf("%s#%d", e.TargetKind, *e.TargetID)
}
