package handlers

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"

	"github.com/quartermasterhq/quartermaster/internal/cache"
	"github.com/quartermasterhq/quartermaster/internal/models"
	"github.com/quartermasterhq/quartermaster/internal/services"
)

func setupAuditRouter(t *testing.T, db *gorm.DB) (*gin.Engine, *services.AuditService) {
	t.Helper()
	gin.SetMode(gin.TestMode)

	signal := cache.NewSignal()
	audit := services.NewAuditService(db)
	feed := services.NewAuditFeedService(db, audit, signal)
	handler := NewAuditHandler(feed)

	router := gin.New()
	router.GET("/audit/events", handler.Events)
	return router, audit
}

func getEvents(router *gin.Engine, url, ifNoneMatch string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodGet, url, nil)
	if ifNoneMatch != "" {
		req.Header.Set("If-None-Match", ifNoneMatch)
	}
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)
	return w
}

func TestAuditEventsServesPageWithETag(t *testing.T) {
	db := OpenTestDB(t)
	router, audit := setupAuditRouter(t, db)

	_, err := audit.Record(context.Background(), models.AuditEntry{
		ActorName: "Admin",
		Action:    models.AuditActionAssign,
		Details:   "Assigned seat on Photomorph Pro for Alice",
	})
	require.NoError(t, err)

	since := time.Now().Add(-time.Hour).Format(time.RFC3339)
	w := getEvents(router, "/audit/events?since="+since, "")
	require.Equal(t, http.StatusOK, w.Code)
	assert.NotEmpty(t, w.Header().Get("ETag"))
	assert.Contains(t, w.Body.String(), "Photomorph Pro")
	assert.Contains(t, w.Body.String(), "next_since")
}

func TestAuditEventsConditionalNotModified(t *testing.T) {
	db := OpenTestDB(t)
	router, audit := setupAuditRouter(t, db)

	_, err := audit.Record(context.Background(), models.AuditEntry{
		ActorName: "Admin",
		Action:    models.AuditActionAssign,
	})
	require.NoError(t, err)

	url := "/audit/events?since=" + time.Now().Add(-time.Hour).Format(time.RFC3339)
	first := getEvents(router, url, "")
	require.Equal(t, http.StatusOK, first.Code)
	etag := first.Header().Get("ETag")
	require.NotEmpty(t, etag)

	second := getEvents(router, url, etag)
	assert.Equal(t, http.StatusNotModified, second.Code)
	assert.Empty(t, second.Body.String())
	assert.Equal(t, etag, second.Header().Get("ETag"))
}

func TestAuditEventsInvalidInputDegrades(t *testing.T) {
	db := OpenTestDB(t)
	router, audit := setupAuditRouter(t, db)

	_, err := audit.Record(context.Background(), models.AuditEntry{
		ActorName: "Admin",
		Action:    models.AuditActionAssign,
	})
	require.NoError(t, err)

	// Garbage since and take are never errors for the feed.
	w := getEvents(router, "/audit/events?since=garbage&take=banana", "")
	assert.Equal(t, http.StatusOK, w.Code)

	w = getEvents(router, "/audit/events?take=-10", "")
	assert.Equal(t, http.StatusOK, w.Code)
}
