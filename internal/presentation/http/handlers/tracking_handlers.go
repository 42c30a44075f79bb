// Package handlers provides HTTP request handlers for the presentation layer.
package handlers

import (
	"errors"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/zirconsol/drshaq-backend/internal/application/services"
	"github.com/zirconsol/drshaq-backend/internal/domain/tracking"
	"github.com/zirconsol/drshaq-backend/internal/infrastructure/observability/logging"
	"github.com/zirconsol/drshaq-backend/internal/presentation/http/middleware"
)

// TrackingHandlers contains the public ingestion HTTP handlers.
type TrackingHandlers struct {
	trackingService *services.TrackingService
	logger          *logging.ChanneledLogger
}

// NewTrackingHandlers creates tracking handlers with their dependencies.
func NewTrackingHandlers(trackingService *services.TrackingService, logger *logging.ChanneledLogger) *TrackingHandlers {
	return &TrackingHandlers{
		trackingService: trackingService,
		logger:          logger,
	}
}

// IngestResponse acknowledges an accepted or deduplicated write.
type IngestResponse struct {
	Status    string `json:"status"`
	EventID   string `json:"event_id,omitempty"`
	RequestID string `json:"request_id,omitempty"`
}

// PostEvent handles POST /api/v1/track/events.
func (h *TrackingHandlers) PostEvent(c *gin.Context) {
	var payload tracking.EventPayload
	if err := c.ShouldBindJSON(&payload); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid JSON body"})
		return
	}

	clientIP := c.GetString(middleware.ContextClientIP)
	outcome, err := h.trackingService.IngestEvent(c.Request.Context(), &payload, clientIP)
	if err != nil {
		respondIngestError(c, err)
		return
	}

	if outcome.Created {
		c.JSON(http.StatusCreated, IngestResponse{Status: "accepted", EventID: outcome.EventID})
		return
	}
	c.JSON(http.StatusOK, IngestResponse{Status: "duplicate", EventID: outcome.EventID})
}

// PostRequest handles POST /api/v1/track/requests.
func (h *TrackingHandlers) PostRequest(c *gin.Context) {
	var payload tracking.RequestPayload
	if err := c.ShouldBindJSON(&payload); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid JSON body"})
		return
	}

	clientIP := c.GetString(middleware.ContextClientIP)
	outcome, request, err := h.trackingService.SubmitRequest(c.Request.Context(), &payload, clientIP)
	if err != nil {
		respondIngestError(c, err)
		return
	}

	status := http.StatusCreated
	ack := "accepted"
	if !outcome.Created {
		status = http.StatusOK
		ack = "duplicate"
	}
	c.JSON(status, gin.H{
		"status":  ack,
		"request": requestResponse(request),
	})
}

func respondIngestError(c *gin.Context, err error) {
	var unknown *services.UnknownProductError
	if errors.As(err, &unknown) {
		c.JSON(http.StatusUnprocessableEntity, gin.H{
			"error":       "unknown products",
			"product_ids": unknown.ProductIDs,
		})
		return
	}
	if services.IsValidationError(err) {
		c.JSON(http.StatusUnprocessableEntity, gin.H{"error": err.Error()})
		return
	}
	if errors.Is(err, tracking.ErrIdempotencyConflict) {
		c.JSON(http.StatusConflict, gin.H{
			"error": "idempotency_key conflicts with an existing record",
		})
		return
	}
	c.JSON(http.StatusInternalServerError, gin.H{"error": "internal error"})
}

// RequestResponse is the wire shape of a product request.
type RequestResponse struct {
	ID            string                `json:"id"`
	Status        string                `json:"status"`
	Source        string                `json:"source"`
	SessionID     string                `json:"session_id"`
	VisitorID     string                `json:"visitor_id"`
	PagePath      string                `json:"page_path"`
	CustomerName  *string               `json:"customer_name,omitempty"`
	CustomerEmail *string               `json:"customer_email,omitempty"`
	CustomerPhone *string               `json:"customer_phone,omitempty"`
	Notes         *string               `json:"notes,omitempty"`
	UTMSource     *string               `json:"utm_source,omitempty"`
	UTMMedium     *string               `json:"utm_medium,omitempty"`
	UTMCampaign   *string               `json:"utm_campaign,omitempty"`
	Referrer      *string               `json:"referrer,omitempty"`
	Items         []RequestItemResponse `json:"items"`
	CreatedAt     time.Time             `json:"created_at"`
	UpdatedAt     time.Time             `json:"updated_at"`
	ContactedAt   *time.Time            `json:"contacted_at,omitempty"`
	ResolvedAt    *time.Time            `json:"resolved_at,omitempty"`
}

// RequestItemResponse is one request line on the wire.
type RequestItemResponse struct {
	ProductID      string  `json:"product_id"`
	ProductName    string  `json:"product_name"`
	VariantSize    *string `json:"variant_size,omitempty"`
	VariantColor   *string `json:"variant_color,omitempty"`
	UnitPriceCents int     `json:"unit_price_cents"`
	Quantity       int     `json:"quantity"`
}

func requestResponse(request *tracking.ProductRequest) RequestResponse {
	items := make([]RequestItemResponse, 0, len(request.Items))
	for _, item := range request.Items {
		items = append(items, RequestItemResponse{
			ProductID:      item.ProductID,
			ProductName:    item.ProductName,
			VariantSize:    item.VariantSize,
			VariantColor:   item.VariantColor,
			UnitPriceCents: item.UnitPriceCents,
			Quantity:       item.Quantity,
		})
	}
	return RequestResponse{
		ID:            request.ID,
		Status:        string(request.Status),
		Source:        string(request.Source),
		SessionID:     request.SessionID,
		VisitorID:     request.VisitorID,
		PagePath:      request.PagePath,
		CustomerName:  request.CustomerName,
		CustomerEmail: request.CustomerEmail,
		CustomerPhone: request.CustomerPhone,
		Notes:         request.Notes,
		UTMSource:     request.UTMSource,
		UTMMedium:     request.UTMMedium,
		UTMCampaign:   request.UTMCampaign,
		Referrer:      request.Referrer,
		Items:         items,
		CreatedAt:     request.CreatedAt,
		UpdatedAt:     request.UpdatedAt,
		ContactedAt:   request.ContactedAt,
		ResolvedAt:    request.ResolvedAt,
	}
}
