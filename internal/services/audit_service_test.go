package services

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/quartermasterhq/quartermaster/internal/models"
)

func TestAuditRecordAssignsServerTimestamp(t *testing.T) {
	db := setupTestDB(t)
	svc := NewAuditService(db)

	fixed := time.Date(2026, 3, 14, 9, 26, 53, 0, time.UTC)
	svc.now = func() time.Time { return fixed }

	entry, err := svc.Record(context.Background(), models.AuditEntry{
		ActorName:  "Admin",
		Action:     models.AuditActionAssign,
		OccurredAt: time.Date(1999, 1, 1, 0, 0, 0, 0, time.UTC), // client-supplied, must be ignored
		Details:    "Assigned seat on Photomorph Pro for Alice",
	})
	require.NoError(t, err)
	assert.True(t, entry.OccurredAt.Equal(fixed), "timestamp must be server-assigned")
	assert.NotEmpty(t, entry.CorrelationID, "a fresh correlation id is generated when none is supplied")
}

func TestAuditRecordKeepsCallerCorrelationID(t *testing.T) {
	db := setupTestDB(t)
	svc := NewAuditService(db)

	entry, err := svc.Record(context.Background(), models.AuditEntry{
		CorrelationID: "retry-7",
		ActorName:     "Admin",
		Action:        models.AuditActionRelease,
	})
	require.NoError(t, err)
	assert.Equal(t, "retry-7", entry.CorrelationID)
}

func TestAuditRecordStoresChangesAsChildRows(t *testing.T) {
	db := setupTestDB(t)
	svc := NewAuditService(db)

	entry, err := svc.Record(context.Background(), models.AuditEntry{
		ActorName: "Admin",
		Action:    models.AuditActionAssign,
		Changes: []models.AuditChange{
			{Field: "seats", OldValue: "0/5", NewValue: "1/5"},
		},
	})
	require.NoError(t, err)

	var stored models.AuditEntry
	require.NoError(t, db.Preload("Changes").First(&stored, entry.ID).Error)
	require.Len(t, stored.Changes, 1)
	assert.Equal(t, "seats", stored.Changes[0].Field)
	assert.Equal(t, entry.ID, stored.Changes[0].AuditEntryID)
}

func TestAuditListSinceOrdersNewestFirst(t *testing.T) {
	db := setupTestDB(t)
	svc := NewAuditService(db)

	base := time.Date(2026, 5, 1, 12, 0, 0, 0, time.UTC)
	for i := 0; i < 3; i++ {
		ts := base.Add(time.Duration(i) * time.Minute)
		svc.now = func() time.Time { return ts }
		_, err := svc.Record(context.Background(), models.AuditEntry{
			ActorName: "Admin",
			Action:    models.AuditActionAssign,
		})
		require.NoError(t, err)
	}

	entries, err := svc.ListSince(context.Background(), base.Add(-time.Hour))
	require.NoError(t, err)
	require.Len(t, entries, 3)
	assert.True(t, entries[0].OccurredAt.After(entries[2].OccurredAt))

	// The window is exclusive: entries at or before since stay out.
	entries, err = svc.ListSince(context.Background(), base)
	require.NoError(t, err)
	assert.Len(t, entries, 2)
}
