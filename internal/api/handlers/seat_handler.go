package handlers

import (
	"context"
	"errors"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"github.com/quartermasterhq/quartermaster/internal/api/middleware"
	"github.com/quartermasterhq/quartermaster/internal/services"
	"github.com/quartermasterhq/quartermaster/internal/util"
)

type SeatHandler struct {
	service *services.SeatService
}

func NewSeatHandler(service *services.SeatService) *SeatHandler {
	return &SeatHandler{service: service}
}

// SeatRequest is the body for both assign and release.
type SeatRequest struct {
	UserID uint   `json:"user_id" binding:"required"`
	Note   string `json:"note"`
}

// Assign gives a user a seat on the software title in the path.
func (h *SeatHandler) Assign(c *gin.Context) {
	h.handle(c, h.service.AssignSeat, http.StatusCreated, "assign seat")
}

// Release returns a user's seat on the software title to the pool.
func (h *SeatHandler) Release(c *gin.Context) {
	h.handle(c, h.service.ReleaseSeat, http.StatusOK, "release seat")
}

type seatOp func(ctx context.Context, softwareID, userID, actorID uint, note string) (services.SeatCount, error)

func (h *SeatHandler) handle(c *gin.Context, op seatOp, successStatus int, what string) {
	softwareID, err := strconv.ParseUint(c.Param("id"), 10, 32)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid software id"})
		return
	}

	var req SeatRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	actorID, _ := c.Get("userID")
	actor, ok := actorID.(uint)
	if !ok {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "Authentication required"})
		return
	}

	count, err := op(c.Request.Context(), uint(softwareID), req.UserID, actor, req.Note)
	if err != nil {
		middleware.GetRequestLogger(c).WithField("note", util.SanitizeForLog(req.Note)).
			WithError(err).Warnf("failed to %s", what)
		c.JSON(statusForSeatError(err), gin.H{"error": err.Error()})
		return
	}

	c.JSON(successStatus, count)
}

// statusForSeatError maps the coordinator's error taxonomy onto HTTP codes:
// rule violations are the client's problem, contention exhaustion is ours.
func statusForSeatError(err error) int {
	switch {
	case errors.Is(err, services.ErrSoftwareNotFound),
		errors.Is(err, services.ErrUserNotFound):
		return http.StatusNotFound
	case errors.Is(err, services.ErrSoftwareArchived),
		errors.Is(err, services.ErrNoSeatsAvailable):
		return http.StatusConflict
	case errors.Is(err, services.ErrTooMuchContention):
		return http.StatusInternalServerError
	default:
		return http.StatusInternalServerError
	}
}
