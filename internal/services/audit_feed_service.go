package services

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"gorm.io/gorm"

	"github.com/quartermasterhq/quartermaster/internal/cache"
	"github.com/quartermasterhq/quartermaster/internal/metrics"
	"github.com/quartermasterhq/quartermaster/internal/models"
)

const (
	// DefaultFeedWindow is the time window served when the caller supplies
	// no usable since cursor.
	DefaultFeedWindow = 24 * time.Hour

	minFeedTake = 1
	maxFeedTake = 200
)

// AuditEvent is the public projection of an audit entry served to polling
// clients.
type AuditEvent struct {
	ID         uint      `json:"id"`
	OccurredAt time.Time `json:"occurred_at"`
	Type       string    `json:"type"`
	User       string    `json:"user"`
	Target     string    `json:"target"`
	Details    string    `json:"details"`
}

// AuditEventPage is one page of the audit feed. NextSince is the cursor for
// the caller's next poll; ETag validates the page content for conditional
// requests.
type AuditEventPage struct {
	Items     []AuditEvent `json:"items"`
	NextSince string       `json:"next_since"`
	ETag      string       `json:"-"`
}

type feedCacheKey struct {
	since string
	take  int
}

// AuditFeedService serves the audit trail to polling clients: it windows,
// deduplicates, paginates, and stamps each page with a content validator.
// Reads never block ledger writers. Identical repeated queries are answered
// from a small in-process cache invalidated by the coordinator's signal, not
// by a clock, so a poll right after a commit always sees the commit.
type AuditFeedService struct {
	db           *gorm.DB
	audit        *AuditService
	invalidation *cache.Signal
	now          func() time.Time
	afterList    func() // runs after the window query; nil outside tests

	mu         sync.Mutex
	pages      map[feedCacheKey]*AuditEventPage
	pagesToken uint64
}

func NewAuditFeedService(db *gorm.DB, audit *AuditService, invalidation *cache.Signal) *AuditFeedService {
	return &AuditFeedService{
		db:           db,
		audit:        audit,
		invalidation: invalidation,
		now:          time.Now,
		pages:        make(map[feedCacheKey]*AuditEventPage),
	}
}

// GetEvents returns the page of events after since, newest first. A missing
// or unparseable since falls back to the default window rather than erroring:
// the feed is a convenience read, not a strict contract. take is clamped to
// [1, 200]. When ifNoneMatch equals the page's ETag the second return value
// is true and the caller should answer "not modified" with no body.
func (s *AuditFeedService) GetEvents(ctx context.Context, since string, take int, ifNoneMatch string) (*AuditEventPage, bool, error) {
	metrics.IncAuditFeedRequest()

	if take < minFeedTake {
		take = minFeedTake
	} else if take > maxFeedTake {
		take = maxFeedTake
	}

	page, err := s.getPage(ctx, since, take)
	if err != nil {
		return nil, false, err
	}

	if ifNoneMatch != "" && ifNoneMatch == page.ETag {
		metrics.IncAuditFeedNotModified()
		return page, true, nil
	}
	return page, false, nil
}

func (s *AuditFeedService) getPage(ctx context.Context, since string, take int) (*AuditEventPage, error) {
	key := feedCacheKey{since: since, take: take}
	token := s.invalidation.Token()

	s.mu.Lock()
	if s.pagesToken == token {
		if cached, ok := s.pages[key]; ok {
			s.mu.Unlock()
			return cached, nil
		}
	}
	s.mu.Unlock()

	page, err := s.buildPage(ctx, since, take)
	if err != nil {
		return nil, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.invalidation.Token() != token {
		// A commit landed while we were building, so the page may predate
		// it. Serve it to this caller only; caching it would pin the
		// pre-commit read past the invalidation.
		return page, nil
	}
	if s.pagesToken != token {
		s.pages = make(map[feedCacheKey]*AuditEventPage)
		s.pagesToken = token
	}
	s.pages[key] = page

	return page, nil
}

func (s *AuditFeedService) buildPage(ctx context.Context, since string, take int) (*AuditEventPage, error) {
	effectiveSince, parsed := s.parseSince(since)

	entries, err := s.audit.ListSince(ctx, effectiveSince)
	if err != nil {
		return nil, err
	}
	if s.afterList != nil {
		s.afterList()
	}

	events := projectEntries(dedupEntries(entries))
	if len(events) > take {
		events = events[:take]
	}

	// The cursor for the next poll is the oldest surviving item. An empty
	// page echoes the caller's cursor unchanged so polling an idle window
	// does not drift it.
	var nextSince string
	if len(events) > 0 {
		nextSince = events[len(events)-1].OccurredAt.Format(time.RFC3339Nano)
	} else if parsed {
		nextSince = since
	} else {
		nextSince = effectiveSince.Format(time.RFC3339Nano)
	}

	page := &AuditEventPage{Items: events, NextSince: nextSince}
	page.ETag = computeETag(effectiveSince, events)
	return page, nil
}

// parseSince accepts RFC 3339 cursors (with or without sub-second precision)
// and reports whether the raw value was usable. The fallback window start is
// truncated to the second so repeated polls with a bad cursor share one
// effective window, and with it one validator, within that second.
func (s *AuditFeedService) parseSince(raw string) (time.Time, bool) {
	if raw != "" {
		if t, err := time.Parse(time.RFC3339Nano, raw); err == nil {
			return t, true
		}
		if t, err := time.Parse(time.RFC3339, raw); err == nil {
			return t, true
		}
	}
	return s.now().Add(-DefaultFeedWindow).Truncate(time.Second), false
}

// dedupEntries collapses entries sharing a correlation id, newest wins.
// Entries arrive newest-first, so the first sighting of an id is the
// survivor. Entries without a correlation id are never merged.
func dedupEntries(entries []models.AuditEntry) []models.AuditEntry {
	seen := make(map[string]struct{}, len(entries))
	out := entries[:0]
	for _, e := range entries {
		if e.CorrelationID != "" {
			if _, dup := seen[e.CorrelationID]; dup {
				continue
			}
			seen[e.CorrelationID] = struct{}{}
		}
		out = append(out, e)
	}
	return out
}

func projectEntries(entries []models.AuditEntry) []AuditEvent {
	events := make([]AuditEvent, 0, len(entries))
	for _, e := range entries {
		events = append(events, AuditEvent{
			ID:         e.ID,
			OccurredAt: e.OccurredAt,
			Type:       string(e.Action),
			User:       e.ActorName,
			Target:     e.TargetLabel(),
			Details:    e.Details,
		})
	}
	return events
}

// computeETag hashes the serialized page together with the effective window
// start. Including the window means two empty pages at different cursors
// never share a validator, while two identical queries over unchanged data
// always do.
func computeETag(since time.Time, events []AuditEvent) string {
	h := sha256.New()
	fmt.Fprintf(h, "since=%d;", since.UnixNano())
	enc := json.NewEncoder(h)
	_ = enc.Encode(events)
	return `"` + hex.EncodeToString(h.Sum(nil)) + `"`
}
