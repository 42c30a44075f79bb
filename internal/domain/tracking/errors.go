package tracking

import "errors"

// Sentinel errors surfaced across the tracking subsystem. Handlers map
// these onto HTTP statuses; storage failures are never wrapped into them.
var (
	// ErrInvalidEnum marks a payload value outside a closed enumeration.
	ErrInvalidEnum = errors.New("value outside canonical enumeration")

	// ErrMissingIdempotencyKey is a hard validation failure, distinct from
	// a duplicate key which is a soft success.
	ErrMissingIdempotencyKey = errors.New("idempotency_key is required")

	// ErrRateLimited means the caller exceeded its ingestion budget and
	// must back off. Nothing was persisted.
	ErrRateLimited = errors.New("rate limit exceeded")

	// ErrInvalidTransition means the requested status change is not
	// reachable from the current status in the lifecycle graph.
	ErrInvalidTransition = errors.New("invalid status transition")

	// ErrReopenDisabled means a reopen to submitted was attempted while
	// the reopen policy flag is off.
	ErrReopenDisabled = errors.New("request reopening is disabled")

	// ErrIdempotencyConflict means a derived idempotency key is already
	// held by an unrelated record, so the write can never be accepted
	// under this key.
	ErrIdempotencyConflict = errors.New("idempotency key conflict")

	// ErrNotFound means the addressed entity does not exist.
	ErrNotFound = errors.New("not found")

	// ErrUnknownProduct means a submitted request references a product id
	// the external registry cannot resolve.
	ErrUnknownProduct = errors.New("unknown product")
)

// ValidationError carries the specific offending field back to the caller.
type ValidationError struct {
	Field  string
	Reason string
}

func (e *ValidationError) Error() string {
	return "invalid " + e.Field + ": " + e.Reason
}

// NewValidationError builds a field-level validation failure.
func NewValidationError(field, reason string) *ValidationError {
	return &ValidationError{Field: field, Reason: reason}
}
