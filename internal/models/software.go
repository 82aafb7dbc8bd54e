package models

import (
	"time"
)

// Software represents a licensed software title with a fixed number of seats.
// UsedSeats counts currently open assignments and must never exceed TotalSeats
// at any committed state. LockVersion is an optimistic-concurrency token: every
// write bumps it, and a commit whose WHERE clause no longer matches the version
// it read is rejected and retried by the SeatService.
type Software struct {
	ID          uint      `json:"id" gorm:"primaryKey"`
	UUID        string    `json:"uuid" gorm:"uniqueIndex"`
	Name        string    `json:"name" gorm:"index"`
	Publisher   string    `json:"publisher"`
	LicenseKey  string    `json:"-"` // Never serialize license keys
	TotalSeats  int       `json:"total_seats" gorm:"default:0"`
	UsedSeats   int       `json:"used_seats" gorm:"default:0"`
	Archived    bool      `json:"archived" gorm:"default:false;index"`
	LockVersion uint      `json:"-" gorm:"default:0"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// SeatsAvailable returns how many seats are still free.
func (s *Software) SeatsAvailable() int {
	free := s.TotalSeats - s.UsedSeats
	if free < 0 {
		return 0
	}
	return free
}
