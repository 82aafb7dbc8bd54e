package services

import (
	"context"
	"fmt"

	"gorm.io/gorm"

	"github.com/quartermasterhq/quartermaster/internal/cache"
	"github.com/quartermasterhq/quartermaster/internal/logger"
	"github.com/quartermasterhq/quartermaster/internal/models"
)

// ReconcileService repairs drift between each software's seat counter and
// its ledger of open assignments. The two are written in one transaction, so
// they only diverge after partial-failure histories (a crash between schema
// migrations, hand-edited rows, a restored backup). Policy: the ledger wins.
// The counter is a cache of the ledger, so a mismatch is corrected by
// recounting open rows, clamped to the title's capacity, through the same
// compare-and-swap discipline the coordinator uses.
type ReconcileService struct {
	db           *gorm.DB
	audit        *AuditService
	invalidation *cache.Signal
}

func NewReconcileService(db *gorm.DB, audit *AuditService, invalidation *cache.Signal) *ReconcileService {
	return &ReconcileService{db: db, audit: audit, invalidation: invalidation}
}

// Run sweeps every software title once and returns how many counters were
// repaired. Intended to be driven by a cron schedule.
func (s *ReconcileService) Run(ctx context.Context) (int, error) {
	var titles []models.Software
	if err := s.db.WithContext(ctx).Find(&titles).Error; err != nil {
		return 0, fmt.Errorf("list software: %w", err)
	}

	repaired := 0
	for _, sw := range titles {
		if err := ctx.Err(); err != nil {
			return repaired, err
		}

		fixed, err := s.reconcileOne(ctx, sw)
		if err != nil {
			logger.WithFields(map[string]interface{}{
				"software_id": sw.ID,
				"name":        sw.Name,
			}).WithError(err).Error("failed to reconcile seat counter")
			continue
		}
		if fixed {
			repaired++
		}
	}

	if repaired > 0 {
		s.invalidation.Bump()
	}
	return repaired, nil
}

func (s *ReconcileService) reconcileOne(ctx context.Context, sw models.Software) (bool, error) {
	var open int64
	err := s.db.WithContext(ctx).Model(&models.SeatAssignment{}).
		Where("software_id = ? AND unassigned_at IS NULL", sw.ID).
		Count(&open).Error
	if err != nil {
		return false, err
	}

	want := int(open)
	if want > sw.TotalSeats {
		// More open rows than seats should be impossible; clamp the counter
		// so the capacity invariant holds and leave the excess rows for a
		// human to untangle.
		logger.WithFields(map[string]interface{}{
			"software_id": sw.ID,
			"open_rows":   open,
			"total_seats": sw.TotalSeats,
		}).Warn("open assignments exceed capacity")
		want = sw.TotalSeats
	}
	if want == sw.UsedSeats {
		return false, nil
	}

	res := s.db.WithContext(ctx).Model(&models.Software{}).
		Where("id = ? AND lock_version = ?", sw.ID, sw.LockVersion).
		Updates(map[string]interface{}{
			"used_seats":   want,
			"lock_version": sw.LockVersion + 1,
		})
	if res.Error != nil {
		return false, res.Error
	}
	if res.RowsAffected == 0 {
		// A live writer got there first; its commit recomputed from fresh
		// state, so skip this title until the next sweep.
		return false, nil
	}

	targetID := sw.ID
	_, err = s.audit.Record(ctx, models.AuditEntry{
		ActorName:  "system",
		Action:     models.AuditActionReconcile,
		TargetKind: models.TargetKindSoftware,
		TargetID:   &targetID,
		Details:    fmt.Sprintf("Reconciled seat counter for %s against the ledger", sw.Name),
		Changes: []models.AuditChange{{
			Field:    "seats",
			OldValue: fmt.Sprintf("%d/%d", sw.UsedSeats, sw.TotalSeats),
			NewValue: fmt.Sprintf("%d/%d", want, sw.TotalSeats),
		}},
	})
	if err != nil {
		return true, err
	}
	return true, nil
}
