package services

import (
	"fmt"
	"strings"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"

	"github.com/quartermasterhq/quartermaster/internal/cache"
	"github.com/quartermasterhq/quartermaster/internal/models"
)

// setupTestDB creates a SQLite in-memory DB unique per test and applies a
// busy timeout and WAL journal mode to reduce SQLITE locking during parallel
// tests.
func setupTestDB(t *testing.T) *gorm.DB {
	t.Helper()
	dsnName := strings.ReplaceAll(t.Name(), "/", "_")
	dsn := fmt.Sprintf("file:%s?mode=memory&cache=shared&_journal_mode=WAL&_busy_timeout=5000", dsnName)
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{})
	require.NoError(t, err)
	require.NoError(t, db.AutoMigrate(
		&models.Software{},
		&models.SeatAssignment{},
		&models.AuditEntry{},
		&models.AuditChange{},
		&models.User{},
		&models.NotificationProvider{},
	))
	return db
}

func newTestSeatService(t *testing.T, db *gorm.DB) (*SeatService, *cache.Signal) {
	t.Helper()
	signal := cache.NewSignal()
	audit := NewAuditService(db)
	directory := NewDirectoryService(db)
	return NewSeatService(db, audit, directory, nil, signal, 3), signal
}

func createTestUser(t *testing.T, db *gorm.DB, name string) *models.User {
	t.Helper()
	user := models.User{
		UUID:           uuid.NewString(),
		Email:          strings.ToLower(name) + "@example.com",
		Name:           name,
		EmployeeNumber: "E-" + strings.ToLower(name),
		Enabled:        true,
	}
	require.NoError(t, user.SetPassword("correct horse battery staple"))
	require.NoError(t, db.Create(&user).Error)
	return &user
}

func createTestSoftware(t *testing.T, db *gorm.DB, name string, total, used int) *models.Software {
	t.Helper()
	sw := models.Software{
		UUID:       uuid.NewString(),
		Name:       name,
		Publisher:  "Test Publisher",
		TotalSeats: total,
		UsedSeats:  used,
	}
	require.NoError(t, db.Create(&sw).Error)
	return &sw
}
