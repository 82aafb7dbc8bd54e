package services

import (
	"context"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/quartermasterhq/quartermaster/internal/models"
)

// AuditService owns the write path of the audit trail. The trail is strictly
// additive: nothing here (or anywhere else) updates or deletes an entry once
// it is written. Timestamps are always assigned server-side; the
// auto-increment id breaks ties between entries sharing one.
type AuditService struct {
	db  *gorm.DB
	now func() time.Time
}

func NewAuditService(db *gorm.DB) *AuditService {
	return &AuditService{db: db, now: time.Now}
}

// Record appends entry to the audit trail and returns the stored row. A
// missing correlation id gets a fresh one; a caller retrying the same logical
// event passes its previous correlation id so the feed can collapse the
// duplicates. Field-level changes travel as child rows.
func (a *AuditService) Record(ctx context.Context, entry models.AuditEntry) (*models.AuditEntry, error) {
	return a.RecordIn(a.db.WithContext(ctx), entry)
}

// RecordIn appends entry through the given handle. Callers pass a transaction
// when the audit row must commit or roll back together with the mutation it
// describes.
func (a *AuditService) RecordIn(tx *gorm.DB, entry models.AuditEntry) (*models.AuditEntry, error) {
	entry.ID = 0
	entry.OccurredAt = a.now()
	if entry.CorrelationID == "" {
		entry.CorrelationID = uuid.NewString()
	}

	if err := tx.Create(&entry).Error; err != nil {
		return nil, err
	}
	return &entry, nil
}

// ListSince returns entries newer than since, most recent first, ids
// descending as the tiebreaker for equal timestamps.
func (a *AuditService) ListSince(ctx context.Context, since time.Time) ([]models.AuditEntry, error) {
	var entries []models.AuditEntry
	err := a.db.WithContext(ctx).
		Preload("Changes").
		Where("occurred_at > ?", since).
		Order("occurred_at DESC, id DESC").
		Find(&entries).Error
	return entries, err
}
