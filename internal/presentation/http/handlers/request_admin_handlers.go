package handlers

import (
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/zirconsol/drshaq-backend/internal/application/services"
	"github.com/zirconsol/drshaq-backend/internal/domain/tracking"
	"github.com/zirconsol/drshaq-backend/internal/infrastructure/observability/logging"
	"github.com/zirconsol/drshaq-backend/internal/presentation/http/middleware"
)

// RequestAdminHandlers contains the authenticated request lifecycle
// handlers for the admin dashboard.
type RequestAdminHandlers struct {
	lifecycleService *services.LifecycleService
	logger           *logging.ChanneledLogger
}

// NewRequestAdminHandlers creates request admin handlers with their dependencies.
func NewRequestAdminHandlers(lifecycleService *services.LifecycleService, logger *logging.ChanneledLogger) *RequestAdminHandlers {
	return &RequestAdminHandlers{
		lifecycleService: lifecycleService,
		logger:           logger,
	}
}

// ListRequests handles GET /api/v1/requests.
func (h *RequestAdminHandlers) ListRequests(c *gin.Context) {
	filter := tracking.RequestFilter{
		SessionID: c.Query("session_id"),
		ProductID: c.Query("product_id"),
	}

	if raw := c.Query("status"); raw != "" {
		status, err := tracking.ParseRequestStatus(raw)
		if err != nil {
			c.JSON(http.StatusUnprocessableEntity, gin.H{"error": "unknown status"})
			return
		}
		filter.Status = &status
	}
	for _, bound := range []struct {
		param string
		dest  **time.Time
	}{
		{"from", &filter.From},
		{"to", &filter.To},
	} {
		if raw := c.Query(bound.param); raw != "" {
			parsed, err := time.Parse(time.RFC3339, raw)
			if err != nil {
				c.JSON(http.StatusUnprocessableEntity, gin.H{"error": "invalid " + bound.param + " timestamp"})
				return
			}
			utc := parsed.UTC()
			*bound.dest = &utc
		}
	}
	if raw := c.Query("limit"); raw != "" {
		if limit, err := strconv.Atoi(raw); err == nil && limit > 0 && limit <= 200 {
			filter.Limit = limit
		}
	}
	if raw := c.Query("offset"); raw != "" {
		if offset, err := strconv.Atoi(raw); err == nil && offset >= 0 {
			filter.Offset = offset
		}
	}

	requests, total, err := h.lifecycleService.List(c.Request.Context(), filter)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "internal error"})
		return
	}

	items := make([]RequestResponse, 0, len(requests))
	for _, request := range requests {
		items = append(items, requestResponse(request))
	}
	c.JSON(http.StatusOK, gin.H{
		"items": items,
		"total": total,
	})
}

// GetRequest handles GET /api/v1/requests/:id.
func (h *RequestAdminHandlers) GetRequest(c *gin.Context) {
	request, err := h.lifecycleService.Get(c.Request.Context(), c.Param("id"))
	if err != nil {
		if errors.Is(err, tracking.ErrNotFound) {
			c.JSON(http.StatusNotFound, gin.H{"error": "request not found"})
			return
		}
		c.JSON(http.StatusInternalServerError, gin.H{"error": "internal error"})
		return
	}
	c.JSON(http.StatusOK, requestResponse(request))
}

// GetRequestHistory handles GET /api/v1/requests/:id/history.
func (h *RequestAdminHandlers) GetRequestHistory(c *gin.Context) {
	changes, err := h.lifecycleService.History(c.Request.Context(), c.Param("id"))
	if err != nil {
		if errors.Is(err, tracking.ErrNotFound) {
			c.JSON(http.StatusNotFound, gin.H{"error": "request not found"})
			return
		}
		c.JSON(http.StatusInternalServerError, gin.H{"error": "internal error"})
		return
	}

	type changeResponse struct {
		ID         string    `json:"id"`
		Actor      string    `json:"actor"`
		FromStatus string    `json:"from_status"`
		ToStatus   string    `json:"to_status"`
		Action     string    `json:"action"`
		CreatedAt  time.Time `json:"created_at"`
	}
	items := make([]changeResponse, 0, len(changes))
	for _, change := range changes {
		items = append(items, changeResponse{
			ID:         change.ID,
			Actor:      change.Actor,
			FromStatus: string(change.FromStatus),
			ToStatus:   string(change.ToStatus),
			Action:     string(change.Action),
			CreatedAt:  change.CreatedAt,
		})
	}
	c.JSON(http.StatusOK, gin.H{"items": items})
}

// StatusChangeRequest is the PATCH body for a status transition.
type StatusChangeRequest struct {
	Status string `json:"status" binding:"required"`
}

// PatchRequestStatus handles PATCH /api/v1/requests/:id/status.
func (h *RequestAdminHandlers) PatchRequestStatus(c *gin.Context) {
	var body StatusChangeRequest
	if err := c.ShouldBindJSON(&body); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "status is required"})
		return
	}

	actor := c.GetString(middleware.ContextActor)
	if actor == "" {
		actor = "admin"
	}

	request, err := h.lifecycleService.ChangeStatus(c.Request.Context(), c.Param("id"), body.Status, actor)
	if err != nil {
		switch {
		case errors.Is(err, tracking.ErrNotFound):
			c.JSON(http.StatusNotFound, gin.H{"error": "request not found"})
		case errors.Is(err, tracking.ErrInvalidEnum):
			c.JSON(http.StatusUnprocessableEntity, gin.H{"error": "unknown status"})
		case errors.Is(err, tracking.ErrInvalidTransition):
			c.JSON(http.StatusConflict, gin.H{"error": err.Error()})
		case errors.Is(err, tracking.ErrReopenDisabled):
			c.JSON(http.StatusConflict, gin.H{"error": "request reopening is disabled"})
		default:
			c.JSON(http.StatusInternalServerError, gin.H{"error": "internal error"})
		}
		return
	}
	c.JSON(http.StatusOK, requestResponse(request))
}
