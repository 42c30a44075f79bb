package tracking

import (
	"context"
	"time"
)

// InsertOutcome reports whether a write created a new row or resolved to
// a previously accepted one. Duplicate is a soft success, never an error.
type InsertOutcome struct {
	Created   bool
	EventID   string
	RequestID string
}

// EventRepository stores and retrieves tracking events. Insert is the
// dedupe arbitration point: the persistence layer's uniqueness constraint
// on idempotency_key decides which concurrent caller creates the row.
type EventRepository interface {
	// Insert persists the event, or returns the prior outcome when the
	// idempotency key was already accepted.
	Insert(ctx context.Context, event *TrackingEvent) (*InsertOutcome, error)

	// FindByIdempotencyKey returns the accepted event for a key, or
	// ErrNotFound.
	FindByIdempotencyKey(ctx context.Context, key string) (*TrackingEvent, error)

	// CountBefore counts purge candidates by received_at strictly before
	// the cutoff.
	CountBefore(ctx context.Context, cutoff time.Time) (int, error)

	// DeleteBefore deletes rows by received_at strictly before the cutoff
	// and returns the number deleted.
	DeleteBefore(ctx context.Context, cutoff time.Time) (int, error)
}

// RequestFilter narrows admin request listings.
type RequestFilter struct {
	Status    *RequestStatus
	From      *time.Time
	To        *time.Time
	SessionID string
	ProductID string
	Limit     int
	Offset    int
}

// RequestRepository stores product requests, their item snapshots, the
// linked request_submitted event, and the status audit trail.
type RequestRepository interface {
	// Create persists the request, its items, and the linked
	// request_submitted event in one transaction. A duplicate idempotency
	// key returns the prior outcome without side effects.
	Create(ctx context.Context, request *ProductRequest, linked *TrackingEvent) (*InsertOutcome, error)

	// Get returns a request with its items, or ErrNotFound.
	Get(ctx context.Context, id string) (*ProductRequest, error)

	// List returns requests matching the filter, newest first, with the
	// total match count.
	List(ctx context.Context, filter RequestFilter) ([]*ProductRequest, int, error)

	// UpdateStatus persists an evaluated transition together with its
	// audit entry in one transaction and returns the updated request.
	UpdateStatus(ctx context.Context, id string, change *StatusChange, update StatusUpdate) (*ProductRequest, error)

	// StatusHistory returns the audit trail for a request, oldest first.
	StatusHistory(ctx context.Context, id string) ([]*StatusChange, error)

	// CountTerminalBefore counts terminal requests created strictly
	// before the cutoff.
	CountTerminalBefore(ctx context.Context, cutoff time.Time) (int, error)

	// DeleteTerminalBefore deletes terminal requests (with items and
	// audit rows) created strictly before the cutoff.
	DeleteTerminalBefore(ctx context.Context, cutoff time.Time) (int, error)
}

// ReportRepository computes windowed aggregates. Each aggregate is
// produced from one consistent query.
type ReportRepository interface {
	KPIs(ctx context.Context, window Window, productID, catalogID string, topLimit int) (*KPIReport, error)
	TopProducts(ctx context.Context, window Window, limit int) (*TopProductsReport, error)
	TopRequestedProducts(ctx context.Context, window Window, limit int) (*TopRequestedReport, error)
	UTMReferrer(ctx context.Context, window Window, limit int) (*UTMReferrerReport, error)
	Funnel(ctx context.Context, window Window) (*FunnelReport, error)
}

// ProductRegistry resolves product identifiers against the external
// catalog. This subsystem consumes it; it does not own product rules.
type ProductRegistry interface {
	// MissingProducts returns the subset of ids that cannot be resolved.
	MissingProducts(ctx context.Context, ids []string) ([]string, error)

	// ProductName resolves a display name for the item snapshot; empty
	// string when the registry carries none.
	ProductName(ctx context.Context, id string) (string, error)
}
