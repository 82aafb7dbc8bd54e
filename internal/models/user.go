package models

import (
	"time"

	"golang.org/x/crypto/bcrypt"
)

// User is a directory entry for a person who can hold seats and perform
// audited actions. The core does not own the wider user lifecycle; it only
// needs enough here to resolve actors for audit text and to authenticate API
// callers.
type User struct {
	ID             uint       `json:"id" gorm:"primaryKey"`
	UUID           string     `json:"uuid" gorm:"uniqueIndex"`
	Email          string     `json:"email" gorm:"uniqueIndex"`
	PasswordHash   string     `json:"-"` // Never serialize password hash
	Name           string     `json:"name"`
	EmployeeNumber string     `json:"employee_number,omitempty" gorm:"index"`
	Role           string     `json:"role" gorm:"default:'user'"` // "admin", "user"
	Enabled        bool       `json:"enabled" gorm:"default:true"`
	LastLogin      *time.Time `json:"last_login,omitempty"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// SetPassword hashes and sets the user's password.
func (u *User) SetPassword(password string) error {
	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return err
	}
	u.PasswordHash = string(hash)
	return nil
}

// CheckPassword compares the provided password with the stored hash.
func (u *User) CheckPassword(password string) bool {
	err := bcrypt.CompareHashAndPassword([]byte(u.PasswordHash), []byte(password))
	return err == nil
}

// DisplayLabel renders the user for audit descriptions, including the
// employee number when one is on file.
func (u *User) DisplayLabel() string {
	if u.EmployeeNumber != "" {
		return u.Name + " (" + u.EmployeeNumber + ")"
	}
	return u.Name
}
