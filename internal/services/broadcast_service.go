package services

import (
	"bytes"
	"encoding/json"
	"fmt"
	"net/http"
	neturl "net/url"
	"regexp"
	"time"

	"github.com/containrrr/shoutrrr"
	"gorm.io/gorm"

	"github.com/quartermasterhq/quartermaster/internal/logger"
	"github.com/quartermasterhq/quartermaster/internal/models"
)

// Broadcaster mirrors committed audit entries to live subscribers. Delivery
// is best effort: polling the audit feed is the reliability path, so a failed
// push is logged and forgotten, never retried against the ledger commit that
// already succeeded.
type Broadcaster interface {
	Push(entry *models.AuditEntry)
}

// BroadcastService fans a committed audit entry out to every enabled
// NotificationProvider whose preferences match the entry's action. Each
// provider is contacted in its own goroutine so a slow webhook cannot stall
// the coordinator.
type BroadcastService struct {
	db     *gorm.DB
	client *http.Client
}

func NewBroadcastService(db *gorm.DB) *BroadcastService {
	return &BroadcastService{
		db: db,
		client: &http.Client{
			Timeout: 10 * time.Second,
			CheckRedirect: func(req *http.Request, via []*http.Request) error {
				return http.ErrUseLastResponse
			},
		},
	}
}

var discordWebhookRegex = regexp.MustCompile(`^https://discord(?:app)?\.com/api/webhooks/(\d+)/([a-zA-Z0-9_-]+)`)

func normalizeURL(serviceType, rawURL string) string {
	if serviceType == "discord" {
		matches := discordWebhookRegex.FindStringSubmatch(rawURL)
		if len(matches) == 3 {
			id := matches[1]
			token := matches[2]
			return fmt.Sprintf("discord://%s@%s", token, id)
		}
	}
	return rawURL
}

// Push delivers entry to all matching providers and returns immediately.
func (s *BroadcastService) Push(entry *models.AuditEntry) {
	var providers []models.NotificationProvider
	if err := s.db.Where("enabled = ?", true).Find(&providers).Error; err != nil {
		logger.Log().WithError(err).Error("failed to fetch notification providers")
		return
	}

	for _, provider := range providers {
		if !providerWants(provider, entry.Action) {
			continue
		}

		go func(p models.NotificationProvider) {
			var err error
			if p.Type == "webhook" {
				err = s.sendWebhook(p, entry)
			} else {
				err = shoutrrr.Send(normalizeURL(p.Type, p.URL), formatMessage(entry))
			}
			if err != nil {
				logger.WithFields(map[string]interface{}{
					"provider": p.Name,
					"action":   string(entry.Action),
				}).WithError(err).Warn("failed to push audit event")
			}
		}(provider)
	}
}

func providerWants(p models.NotificationProvider, action models.AuditAction) bool {
	switch action {
	case models.AuditActionAssign:
		return p.NotifyAssignments
	case models.AuditActionRelease:
		return p.NotifyReleases
	case models.AuditActionReconcile:
		return p.NotifyReconciles
	default:
		return true
	}
}

func formatMessage(entry *models.AuditEntry) string {
	return fmt.Sprintf("%s by %s\n\n%s", entry.TargetLabel(), entry.ActorName, entry.Details)
}

type webhookPayload struct {
	ID         uint      `json:"id"`
	Action     string    `json:"action"`
	Actor      string    `json:"actor"`
	Target     string    `json:"target"`
	Details    string    `json:"details"`
	OccurredAt time.Time `json:"occurred_at"`
}

func (s *BroadcastService) sendWebhook(p models.NotificationProvider, entry *models.AuditEntry) error {
	u, err := neturl.Parse(p.URL)
	if err != nil || (u.Scheme != "http" && u.Scheme != "https") {
		return fmt.Errorf("invalid webhook url for provider %s", p.Name)
	}

	body, err := json.Marshal(webhookPayload{
		ID:         entry.ID,
		Action:     string(entry.Action),
		Actor:      entry.ActorName,
		Target:     entry.TargetLabel(),
		Details:    entry.Details,
		OccurredAt: entry.OccurredAt,
	})
	if err != nil {
		return fmt.Errorf("marshal webhook payload: %w", err)
	}

	req, err := http.NewRequest(http.MethodPost, u.String(), bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("create webhook request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := s.client.Do(req)
	if err != nil {
		return fmt.Errorf("send webhook: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 400 {
		return fmt.Errorf("webhook responded %d", resp.StatusCode)
	}
	return nil
}
