package models

import (
	"time"
)

// SeatAssignment is one row of the seat ledger: a user holding (or having held)
// a seat on a software title. A row is "open" while UnassignedAt is nil and
// permanently closed once it is set; rows are never deleted, forming the full
// assignment history of a title.
//
// The partial unique index on (software_id, user_id) WHERE unassigned_at IS NULL
// guarantees at most one open row per pair even when concurrent writers race
// past the application-level check.
type SeatAssignment struct {
	ID           uint       `json:"id" gorm:"primaryKey"`
	SoftwareID   uint       `json:"software_id" gorm:"index;uniqueIndex:idx_open_seat,where:unassigned_at IS NULL"`
	UserID       uint       `json:"user_id" gorm:"index;uniqueIndex:idx_open_seat,where:unassigned_at IS NULL"`
	AssignedAt   time.Time  `json:"assigned_at"`
	UnassignedAt *time.Time `json:"unassigned_at,omitempty"`
	Note         string     `json:"note,omitempty" gorm:"type:text"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// Open reports whether the assignment is still consuming a seat.
func (a *SeatAssignment) Open() bool {
	return a.UnassignedAt == nil
}
