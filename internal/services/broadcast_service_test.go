package services

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/quartermasterhq/quartermaster/internal/models"
)

func TestNormalizeURLDiscord(t *testing.T) {
	url := normalizeURL("discord", "https://discord.com/api/webhooks/12345/abc_def-123")
	assert.Equal(t, "discord://abc_def-123@12345", url)

	// Non-discord types pass through untouched.
	raw := "slack://tokenA/tokenB/tokenC"
	assert.Equal(t, raw, normalizeURL("slack", raw))
}

func TestProviderWants(t *testing.T) {
	p := models.NotificationProvider{
		NotifyAssignments: true,
		NotifyReleases:    false,
		NotifyReconciles:  false,
	}
	assert.True(t, providerWants(p, models.AuditActionAssign))
	assert.False(t, providerWants(p, models.AuditActionRelease))
	assert.False(t, providerWants(p, models.AuditActionReconcile))
	assert.True(t, providerWants(p, models.AuditActionLogin), "unlisted actions default to sending")
}

func TestPushDeliversWebhook(t *testing.T) {
	db := setupTestDB(t)
	svc := NewBroadcastService(db)

	received := make(chan webhookPayload, 1)
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var payload webhookPayload
		require.NoError(t, json.NewDecoder(r.Body).Decode(&payload))
		received <- payload
	}))
	defer server.Close()

	require.NoError(t, db.Create(&models.NotificationProvider{
		Name:              "test-webhook",
		Type:              "webhook",
		URL:               server.URL,
		Enabled:           true,
		NotifyAssignments: true,
	}).Error)

	targetID := uint(4)
	svc.Push(&models.AuditEntry{
		ID:         1,
		Action:     models.AuditActionAssign,
		ActorName:  "Admin",
		TargetKind: models.TargetKindSoftware,
		TargetID:   &targetID,
		Details:    "Assigned seat on Photomorph Pro for Alice",
	})

	select {
	case payload := <-received:
		assert.Equal(t, "assign", payload.Action)
		assert.Equal(t, "Software#4", payload.Target)
		assert.Equal(t, "Admin", payload.Actor)
	case <-time.After(5 * time.Second):
		t.Fatal("webhook was never delivered")
	}
}

func TestPushSkipsDisabledAndUninterestedProviders(t *testing.T) {
	db := setupTestDB(t)
	svc := NewBroadcastService(db)

	var calls int
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls++
	}))
	defer server.Close()

	require.NoError(t, db.Create(&models.NotificationProvider{
		Name: "disabled", Type: "webhook", URL: server.URL,
		Enabled: false, NotifyAssignments: true,
	}).Error)
	require.NoError(t, db.Create(&models.NotificationProvider{
		Name: "uninterested", Type: "webhook", URL: server.URL,
		Enabled: true, NotifyAssignments: false,
	}).Error)

	svc.Push(&models.AuditEntry{Action: models.AuditActionAssign, ActorName: "Admin"})

	time.Sleep(200 * time.Millisecond)
	assert.Zero(t, calls)
}
