package services

import (
	"context"
	"errors"
	"fmt"
	"time"

	"gorm.io/gorm"

	"github.com/quartermasterhq/quartermaster/internal/cache"
	"github.com/quartermasterhq/quartermaster/internal/metrics"
	"github.com/quartermasterhq/quartermaster/internal/models"
)

var (
	ErrSoftwareNotFound = errors.New("software not found")
	ErrUserNotFound     = errors.New("user not found")
	ErrSoftwareArchived = errors.New("software is archived")
	ErrNoSeatsAvailable = errors.New("no seats available")
	// ErrTooMuchContention means the retry budget ran out on version
	// conflicts. It signals abnormal contention, not an invalid request.
	ErrTooMuchContention = errors.New("seat update failed after retries")

	// errStaleVersion is returned inside an attempt when the software row's
	// lock version moved between read and commit. It is never surfaced to
	// callers; the retry loop consumes it.
	errStaleVersion = errors.New("stale software version")
)

// DefaultMaxRetries bounds the optimistic retry loop when no explicit
// configuration is supplied.
const DefaultMaxRetries = 3

// SeatCount is the committed seat state returned by assign/release.
type SeatCount struct {
	UsedSeats  int `json:"used_seats"`
	TotalSeats int `json:"total_seats"`
}

// SeatService coordinates seat assignment and release against a software
// title. There is no lock around a title: each operation reads fresh state,
// stages its writes in one transaction, and commits them behind a
// compare-and-swap on the software row's lock version. A lost race is
// retried from a fresh read up to maxRetries times.
type SeatService struct {
	db           *gorm.DB
	audit        *AuditService
	directory    *DirectoryService
	broadcaster  Broadcaster
	invalidation *cache.Signal
	maxRetries   int
	now          func() time.Time
}

// NewSeatService wires a SeatService. broadcaster may be nil when no push
// channel is configured. maxRetries <= 0 falls back to DefaultMaxRetries.
func NewSeatService(db *gorm.DB, audit *AuditService, directory *DirectoryService, broadcaster Broadcaster, invalidation *cache.Signal, maxRetries int) *SeatService {
	if maxRetries <= 0 {
		maxRetries = DefaultMaxRetries
	}
	return &SeatService{
		db:           db,
		audit:        audit,
		directory:    directory,
		broadcaster:  broadcaster,
		invalidation: invalidation,
		maxRetries:   maxRetries,
		now:          time.Now,
	}
}

// AssignSeat gives userID a seat on softwareID. Assigning a seat the user
// already holds is a no-op, not an error. The returned SeatCount reflects the
// committed state.
func (s *SeatService) AssignSeat(ctx context.Context, softwareID, userID, actorID uint, note string) (SeatCount, error) {
	user, err := s.directory.Resolve(ctx, userID)
	if err != nil {
		return SeatCount{}, err
	}
	actor, err := s.directory.Resolve(ctx, actorID)
	if err != nil {
		return SeatCount{}, err
	}

	var result SeatCount
	var recorded *models.AuditEntry

	err = s.withOptimisticRetry(ctx, func() error {
		sw, err := s.loadSoftware(ctx, softwareID)
		if err != nil {
			return err
		}
		if sw.Archived {
			return ErrSoftwareArchived
		}
		if sw.UsedSeats >= sw.TotalSeats {
			metrics.IncCapacityRejection()
			return ErrNoSeatsAvailable
		}

		// The counter and the ledger can drift under partial-failure
		// histories; recount open rows so a stale counter never lets an
		// oversubscription through.
		openCount, err := s.countOpenSeats(ctx, sw.ID)
		if err != nil {
			return err
		}
		if openCount >= int64(sw.TotalSeats) {
			metrics.IncCapacityRejection()
			return ErrNoSeatsAvailable
		}

		var existing models.SeatAssignment
		err = s.db.WithContext(ctx).
			Where("software_id = ? AND user_id = ? AND unassigned_at IS NULL", sw.ID, userID).
			First(&existing).Error
		if err == nil {
			// Already holding a seat: idempotent success, nothing to commit.
			result = SeatCount{UsedSeats: sw.UsedSeats, TotalSeats: sw.TotalSeats}
			recorded = nil
			return nil
		}
		if !errors.Is(err, gorm.ErrRecordNotFound) {
			return err
		}

		before := sw.UsedSeats
		after := sw.UsedSeats + 1
		if after > sw.TotalSeats {
			after = sw.TotalSeats
		}

		count := SeatCount{UsedSeats: after, TotalSeats: sw.TotalSeats}
		entry := s.buildAuditEntry(models.AuditActionAssign, sw, user, actor, before, count, note)
		err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
			if err := s.casSeatCount(tx, sw, after); err != nil {
				return err
			}
			row := models.SeatAssignment{
				SoftwareID: sw.ID,
				UserID:     userID,
				AssignedAt: s.now(),
				Note:       note,
			}
			if err := tx.Create(&row).Error; err != nil {
				return err
			}
			rec, err := s.audit.RecordIn(tx, entry)
			if err != nil {
				return fmt.Errorf("record audit entry: %w", err)
			}
			recorded = rec
			return nil
		})
		if err != nil {
			return err
		}

		sw.UsedSeats = after
		result = count
		return nil
	})
	if err != nil {
		return SeatCount{}, err
	}

	if recorded != nil {
		metrics.IncSeatAssign()
		s.afterCommit(recorded)
	}
	return result, nil
}

// ReleaseSeat returns userID's seat on softwareID to the pool. Releasing a
// seat the user does not hold is a no-op, not an error.
func (s *SeatService) ReleaseSeat(ctx context.Context, softwareID, userID, actorID uint, note string) (SeatCount, error) {
	user, err := s.directory.Resolve(ctx, userID)
	if err != nil {
		return SeatCount{}, err
	}
	actor, err := s.directory.Resolve(ctx, actorID)
	if err != nil {
		return SeatCount{}, err
	}

	var result SeatCount
	var recorded *models.AuditEntry

	err = s.withOptimisticRetry(ctx, func() error {
		sw, err := s.loadSoftware(ctx, softwareID)
		if err != nil {
			return err
		}

		var open models.SeatAssignment
		err = s.db.WithContext(ctx).
			Where("software_id = ? AND user_id = ? AND unassigned_at IS NULL", sw.ID, userID).
			First(&open).Error
		if errors.Is(err, gorm.ErrRecordNotFound) {
			// No open assignment: idempotent success.
			result = SeatCount{UsedSeats: sw.UsedSeats, TotalSeats: sw.TotalSeats}
			recorded = nil
			return nil
		}
		if err != nil {
			return err
		}

		before := sw.UsedSeats
		after := sw.UsedSeats - 1
		if after < 0 {
			after = 0
		}

		count := SeatCount{UsedSeats: after, TotalSeats: sw.TotalSeats}
		entry := s.buildAuditEntry(models.AuditActionRelease, sw, user, actor, before, count, note)
		releasedAt := s.now()
		err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
			if err := s.casSeatCount(tx, sw, after); err != nil {
				return err
			}
			if err := tx.Model(&models.SeatAssignment{}).
				Where("id = ? AND unassigned_at IS NULL", open.ID).
				Update("unassigned_at", releasedAt).Error; err != nil {
				return err
			}
			rec, err := s.audit.RecordIn(tx, entry)
			if err != nil {
				return fmt.Errorf("record audit entry: %w", err)
			}
			recorded = rec
			return nil
		})
		if err != nil {
			return err
		}

		sw.UsedSeats = after
		result = count
		return nil
	})
	if err != nil {
		return SeatCount{}, err
	}

	if recorded != nil {
		metrics.IncSeatRelease()
		s.afterCommit(recorded)
	}
	return result, nil
}

// withOptimisticRetry runs one attempt of an optimistic transaction up to
// maxRetries times. Only errStaleVersion triggers another attempt; every
// other error is terminal. No state is carried between attempts and no lock
// is held while waiting: each attempt re-reads the world.
func (s *SeatService) withOptimisticRetry(ctx context.Context, attempt func() error) error {
	var err error
	for i := 0; i < s.maxRetries; i++ {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return ctxErr
		}
		err = attempt()
		if err == nil || !errors.Is(err, errStaleVersion) {
			return err
		}
		metrics.IncVersionConflict()
	}
	metrics.IncContentionFailure()
	return fmt.Errorf("%w (%d attempts)", ErrTooMuchContention, s.maxRetries)
}

// loadSoftware fetches the row regardless of the archived flag so an
// archived title can still be inspected and rejected with the right error.
func (s *SeatService) loadSoftware(ctx context.Context, id uint) (*models.Software, error) {
	var sw models.Software
	if err := s.db.WithContext(ctx).First(&sw, id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrSoftwareNotFound
		}
		return nil, err
	}
	return &sw, nil
}

func (s *SeatService) countOpenSeats(ctx context.Context, softwareID uint) (int64, error) {
	var n int64
	err := s.db.WithContext(ctx).Model(&models.SeatAssignment{}).
		Where("software_id = ? AND unassigned_at IS NULL", softwareID).
		Count(&n).Error
	return n, err
}

// casSeatCount moves the software's seat counter behind a compare-and-swap
// on its lock version. Zero rows affected means another writer committed
// since our read; the caller retries from fresh state.
func (s *SeatService) casSeatCount(tx *gorm.DB, sw *models.Software, usedSeats int) error {
	res := tx.Model(&models.Software{}).
		Where("id = ? AND lock_version = ?", sw.ID, sw.LockVersion).
		Updates(map[string]interface{}{
			"used_seats":   usedSeats,
			"lock_version": sw.LockVersion + 1,
		})
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return errStaleVersion
	}
	return nil
}

// buildAuditEntry describes a seat mutation for the audit trail. The entry is
// written inside the mutation's transaction, so a failed append rolls the
// whole operation back rather than leaving an unaudited commit.
func (s *SeatService) buildAuditEntry(action models.AuditAction, sw *models.Software, user, actor *models.User, before int, result SeatCount, note string) models.AuditEntry {
	verb := "Assigned seat on"
	if action == models.AuditActionRelease {
		verb = "Released seat on"
	}
	description := fmt.Sprintf("%s %s for %s", verb, sw.Name, user.DisplayLabel())
	if note != "" {
		description += ": " + note
	}

	targetID := sw.ID
	return models.AuditEntry{
		ActorID:    actor.ID,
		ActorName:  actor.DisplayLabel(),
		Action:     action,
		TargetKind: models.TargetKindSoftware,
		TargetID:   &targetID,
		Details:    description,
		Changes: []models.AuditChange{{
			Field:    "seats",
			OldValue: fmt.Sprintf("%d/%d", before, result.TotalSeats),
			NewValue: fmt.Sprintf("%d/%d", result.UsedSeats, result.TotalSeats),
		}},
	}
}

// afterCommit bumps the invalidation signal so cached feed pages recompute
// and hands the entry to the push channel. The push is best effort: its
// failure never unwinds the commit.
func (s *SeatService) afterCommit(recorded *models.AuditEntry) {
	s.invalidation.Bump()

	if s.broadcaster != nil {
		s.broadcaster.Push(recorded)
	}
}
