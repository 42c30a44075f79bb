package tracking

import (
	"fmt"
	"time"
)

// RequestStatus is the closed set of lifecycle states for a product request.
type RequestStatus string

const (
	StatusSubmitted        RequestStatus = "submitted"
	StatusPaid             RequestStatus = "paid"
	StatusFulfilled        RequestStatus = "fulfilled"
	StatusDeclinedCustomer RequestStatus = "declined_customer"
	StatusDeclinedBusiness RequestStatus = "declined_business"
)

// Legacy wire values still sent by older dashboard builds. They normalize
// to paid before the transition graph is evaluated and are never stored.
const (
	legacyStatusInProgress = "in_progress"
	legacyStatusContacted  = "contacted"
)

var requestStatuses = map[RequestStatus]bool{
	StatusSubmitted:        true,
	StatusPaid:             true,
	StatusFulfilled:        true,
	StatusDeclinedCustomer: true,
	StatusDeclinedBusiness: true,
}

// forwardTransitions is the lifecycle graph. Reopening to submitted is not
// part of the graph; it is policy-gated separately.
var forwardTransitions = map[RequestStatus][]RequestStatus{
	StatusSubmitted: {StatusPaid},
	StatusPaid:      {StatusFulfilled, StatusDeclinedCustomer, StatusDeclinedBusiness},
}

// ParseRequestStatus decodes a wire value, applying legacy normalization.
func ParseRequestStatus(raw string) (RequestStatus, error) {
	switch raw {
	case legacyStatusInProgress, legacyStatusContacted:
		return StatusPaid, nil
	}
	status := RequestStatus(raw)
	if !requestStatuses[status] {
		return "", fmt.Errorf("%w: status %q", ErrInvalidEnum, raw)
	}
	return status, nil
}

// IsTerminal reports whether a status admits no further forward transitions.
func (s RequestStatus) IsTerminal() bool {
	switch s {
	case StatusFulfilled, StatusDeclinedCustomer, StatusDeclinedBusiness:
		return true
	}
	return false
}

// TransitionKind classifies an evaluated transition for audit purposes.
type TransitionKind string

const (
	TransitionForward TransitionKind = "transition"
	TransitionReopen  TransitionKind = "reopen"
	TransitionNoop    TransitionKind = "noop"
)

// EvaluateTransition applies the lifecycle graph from current to target.
// Identical target and current status is an idempotent no-op. Reopening
// any non-submitted status back to submitted requires reopenEnabled.
func EvaluateTransition(current, target RequestStatus, reopenEnabled bool) (TransitionKind, error) {
	if current == target {
		return TransitionNoop, nil
	}
	if target == StatusSubmitted {
		if !reopenEnabled {
			return "", fmt.Errorf("%w: %s -> %s", ErrReopenDisabled, current, target)
		}
		return TransitionReopen, nil
	}
	for _, next := range forwardTransitions[current] {
		if next == target {
			return TransitionForward, nil
		}
	}
	return "", fmt.Errorf("%w: %s -> %s", ErrInvalidTransition, current, target)
}

// ProductRequest is a customer product request created through the public
// submission endpoint. Items are price snapshots captured at submission;
// they are never re-derived from current product state.
type ProductRequest struct {
	ID             string
	Status         RequestStatus
	IdempotencyKey string
	Source         Source
	SessionID      string
	VisitorID      string
	PagePath       string
	CustomerName   *string
	CustomerEmail  *string
	CustomerPhone  *string
	Notes          *string
	UTMSource      *string
	UTMMedium      *string
	UTMCampaign    *string
	Referrer       *string
	ClientIP       string
	Items          []RequestItem
	CreatedAt      time.Time
	UpdatedAt      time.Time
	ContactedAt    *time.Time
	ResolvedAt     *time.Time
}

// RequestItem is one request line snapshot.
type RequestItem struct {
	ProductID      string
	ProductName    string
	VariantSize    *string
	VariantColor   *string
	UnitPriceCents int
	Quantity       int
}

// StatusUpdate carries the persisted effects of an evaluated transition.
// Contacted is only stamped when the column is still empty, so the first
// paid transition wins and later mutations never move it.
type StatusUpdate struct {
	Status         RequestStatus
	UpdatedAt      time.Time
	TouchContacted bool
	SetResolved    bool
	ClearContacted bool
	ClearResolved  bool
}

// StatusChange is one audit entry for a status mutation. Every mutation is
// recorded, reopen included; Action distinguishes reopens.
type StatusChange struct {
	ID         string
	RequestID  string
	Actor      string
	FromStatus RequestStatus
	ToStatus   RequestStatus
	Action     TransitionKind
	CreatedAt  time.Time
}
