package handlers

import (
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"github.com/quartermasterhq/quartermaster/internal/services"
)

type AuditHandler struct {
	feed *services.AuditFeedService
}

func NewAuditHandler(feed *services.AuditFeedService) *AuditHandler {
	return &AuditHandler{feed: feed}
}

// Events serves the audit feed to polling clients. since and take arrive as
// query parameters; a stale-validator round trip costs the client one 304
// with no body. Malformed input never errors here: the feed degrades to its
// defaults instead.
func (h *AuditHandler) Events(c *gin.Context) {
	since := c.Query("since")
	take, err := strconv.Atoi(c.DefaultQuery("take", "50"))
	if err != nil {
		take = 50
	}
	ifNoneMatch := c.GetHeader("If-None-Match")

	page, notModified, err := h.feed.GetEvents(c.Request.Context(), since, take, ifNoneMatch)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to load audit events"})
		return
	}

	c.Header("ETag", page.ETag)
	if notModified {
		c.Status(http.StatusNotModified)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"items":      page.Items,
		"next_since": page.NextSince,
	})
}
