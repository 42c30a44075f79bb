package tracking

import (
	"regexp"
	"strings"
	"time"
)

// Identifier bounds shared by visitor_id, session_id and idempotency_key.
// Malformed identifiers are rejected, never truncated.
const (
	identifierMinLen = 8
	identifierMaxLen = 120
	pagePathMaxLen   = 255
)

var identifierPattern = regexp.MustCompile(`^[A-Za-z0-9._-]+$`)

// ValidIdentifier reports whether raw satisfies the bounded-length,
// restricted-charset identifier format.
func ValidIdentifier(raw string) bool {
	if len(raw) < identifierMinLen || len(raw) > identifierMaxLen {
		return false
	}
	return identifierPattern.MatchString(raw)
}

// ValidPagePath reports whether raw is a relative path: begins with a
// single slash, carries no scheme or host.
func ValidPagePath(raw string) bool {
	if raw == "" || len(raw) > pagePathMaxLen {
		return false
	}
	if !strings.HasPrefix(raw, "/") || strings.HasPrefix(raw, "//") {
		return false
	}
	return !strings.Contains(raw, "://")
}

// EventPayload is the public event ingestion contract. Validation is
// fail-closed; Normalize turns a structurally valid payload into a
// TrackingEvent or reports the first offending field.
type EventPayload struct {
	EventName      string  `json:"event_name" binding:"required" validate:"required"`
	Source         string  `json:"source" validate:"omitempty"`
	VisitorID      string  `json:"visitor_id" validate:"required"`
	SessionID      string  `json:"session_id" validate:"required"`
	PagePath       string  `json:"page_path" validate:"required"`
	IdempotencyKey string  `json:"idempotency_key"`
	ProductID      *string `json:"product_id,omitempty" validate:"omitempty,max=36"`
	CatalogID      *string `json:"catalog_id,omitempty" validate:"omitempty,max=36"`
	UTMSource      *string `json:"utm_source,omitempty" validate:"omitempty,max=120"`
	UTMMedium      *string `json:"utm_medium,omitempty" validate:"omitempty,max=120"`
	UTMCampaign    *string `json:"utm_campaign,omitempty" validate:"omitempty,max=120"`
	Referrer       *string `json:"referrer,omitempty" validate:"omitempty,max=512"`
	OccurredAt     *string `json:"occurred_at,omitempty"`
}

// Normalize validates the payload against the canonical contract and
// builds the event. ReceivedAt and ClientIP are stamped by the caller.
func (p *EventPayload) Normalize() (*TrackingEvent, error) {
	if err := validateStruct(p); err != nil {
		return nil, err
	}

	name, err := ParseEventName(p.EventName)
	if err != nil {
		return nil, NewValidationError("event_name", "must be one of the canonical event names")
	}

	// Event ingestion defaults a missing source to unknown; an explicit
	// value must still match the canonical set.
	source := SourceUnknown
	if p.Source != "" {
		source, err = ParseSource(p.Source)
		if err != nil {
			return nil, NewValidationError("source", "must be one of the canonical sources")
		}
	}

	if !ValidIdentifier(p.VisitorID) {
		return nil, NewValidationError("visitor_id", "must be 8-120 chars of [A-Za-z0-9._-]")
	}
	if !ValidIdentifier(p.SessionID) {
		return nil, NewValidationError("session_id", "must be 8-120 chars of [A-Za-z0-9._-]")
	}
	if !ValidPagePath(p.PagePath) {
		return nil, NewValidationError("page_path", "must be a relative path beginning with /")
	}
	if p.IdempotencyKey == "" {
		return nil, ErrMissingIdempotencyKey
	}
	if !ValidIdentifier(p.IdempotencyKey) {
		return nil, NewValidationError("idempotency_key", "must be 8-120 chars of [A-Za-z0-9._-]")
	}

	var occurredAt *time.Time
	if p.OccurredAt != nil && *p.OccurredAt != "" {
		parsed, err := time.Parse(time.RFC3339, *p.OccurredAt)
		if err != nil {
			return nil, NewValidationError("occurred_at", "must be an RFC3339 timestamp")
		}
		utc := parsed.UTC()
		occurredAt = &utc
	}

	return &TrackingEvent{
		EventName:      name,
		Source:         source,
		VisitorID:      p.VisitorID,
		SessionID:      p.SessionID,
		PagePath:       p.PagePath,
		IdempotencyKey: p.IdempotencyKey,
		ProductID:      p.ProductID,
		CatalogID:      p.CatalogID,
		UTMSource:      p.UTMSource,
		UTMMedium:      p.UTMMedium,
		UTMCampaign:    p.UTMCampaign,
		Referrer:       p.Referrer,
		OccurredAt:     occurredAt,
	}, nil
}

// RequestItemPayload is one line of a public request submission. Unit
// price is the snapshot at submission time.
type RequestItemPayload struct {
	ProductID      string  `json:"product_id" validate:"required,max=36"`
	VariantSize    *string `json:"variant_size,omitempty" validate:"omitempty,max=40"`
	VariantColor   *string `json:"variant_color,omitempty" validate:"omitempty,max=40"`
	UnitPriceCents int     `json:"unit_price_cents" validate:"gte=0"`
	Quantity       int     `json:"quantity" validate:"required,min=1,max=99"`
}

// RequestPayload is the public request submission contract. Unlike event
// ingestion, source is mandatory and never defaulted.
type RequestPayload struct {
	Source         string               `json:"source" validate:"required"`
	VisitorID      string               `json:"visitor_id" validate:"required"`
	SessionID      string               `json:"session_id" validate:"required"`
	PagePath       string               `json:"page_path" validate:"required"`
	IdempotencyKey string               `json:"idempotency_key"`
	Items          []RequestItemPayload `json:"items" validate:"required,min=1,dive"`
	CustomerName   *string              `json:"customer_name,omitempty" validate:"omitempty,max=160"`
	CustomerEmail  *string              `json:"customer_email,omitempty" validate:"omitempty,email,max=160"`
	CustomerPhone  *string              `json:"customer_phone,omitempty" validate:"omitempty,max=60"`
	Notes          *string              `json:"notes,omitempty" validate:"omitempty,max=2000"`
	UTMSource      *string              `json:"utm_source,omitempty" validate:"omitempty,max=120"`
	UTMMedium      *string              `json:"utm_medium,omitempty" validate:"omitempty,max=120"`
	UTMCampaign    *string              `json:"utm_campaign,omitempty" validate:"omitempty,max=120"`
	Referrer       *string              `json:"referrer,omitempty" validate:"omitempty,max=512"`
}

// Normalize validates the payload and builds a ProductRequest in the
// submitted state. Item lines for the same product are merged, keeping
// the first line's variant and price snapshot, matching the dashboard's
// historical merge behavior.
func (p *RequestPayload) Normalize() (*ProductRequest, error) {
	if err := validateStruct(p); err != nil {
		return nil, err
	}
	if p.Source == "" {
		return nil, NewValidationError("source", "is required for request submission")
	}
	source, err := ParseSource(p.Source)
	if err != nil {
		return nil, NewValidationError("source", "must be one of the canonical sources")
	}

	if !ValidIdentifier(p.VisitorID) {
		return nil, NewValidationError("visitor_id", "must be 8-120 chars of [A-Za-z0-9._-]")
	}
	if !ValidIdentifier(p.SessionID) {
		return nil, NewValidationError("session_id", "must be 8-120 chars of [A-Za-z0-9._-]")
	}
	if !ValidPagePath(p.PagePath) {
		return nil, NewValidationError("page_path", "must be a relative path beginning with /")
	}
	if p.IdempotencyKey == "" {
		return nil, ErrMissingIdempotencyKey
	}
	if !ValidIdentifier(p.IdempotencyKey) {
		return nil, NewValidationError("idempotency_key", "must be 8-120 chars of [A-Za-z0-9._-]")
	}
	if len(p.Items) == 0 {
		return nil, NewValidationError("items", "must contain at least one line")
	}

	merged := make([]RequestItem, 0, len(p.Items))
	index := make(map[string]int, len(p.Items))
	for _, line := range p.Items {
		if line.ProductID == "" {
			return nil, NewValidationError("items.product_id", "is required")
		}
		if line.Quantity < 1 {
			return nil, NewValidationError("items.quantity", "must be at least 1")
		}
		if line.UnitPriceCents < 0 {
			return nil, NewValidationError("items.unit_price_cents", "must not be negative")
		}
		if at, seen := index[line.ProductID]; seen {
			merged[at].Quantity += line.Quantity
			continue
		}
		index[line.ProductID] = len(merged)
		merged = append(merged, RequestItem{
			ProductID:      line.ProductID,
			VariantSize:    line.VariantSize,
			VariantColor:   line.VariantColor,
			UnitPriceCents: line.UnitPriceCents,
			Quantity:       line.Quantity,
		})
	}

	return &ProductRequest{
		Status:         StatusSubmitted,
		IdempotencyKey: p.IdempotencyKey,
		Source:         source,
		SessionID:      p.SessionID,
		VisitorID:      p.VisitorID,
		PagePath:       p.PagePath,
		CustomerName:   p.CustomerName,
		CustomerEmail:  p.CustomerEmail,
		CustomerPhone:  p.CustomerPhone,
		Notes:          p.Notes,
		UTMSource:      p.UTMSource,
		UTMMedium:      p.UTMMedium,
		UTMCampaign:    p.UTMCampaign,
		Referrer:       p.Referrer,
		Items:          merged,
	}, nil
}
