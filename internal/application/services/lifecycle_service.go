package services

import (
	"context"
	"time"

	"github.com/zirconsol/drshaq-backend/internal/domain/tracking"
	"github.com/zirconsol/drshaq-backend/internal/infrastructure/observability/logging"
	"github.com/zirconsol/drshaq-backend/internal/infrastructure/security"
)

// LifecycleService drives admin request lifecycle operations: listing,
// inspection, and audited status transitions.
type LifecycleService struct {
	requests      tracking.RequestRepository
	reopenEnabled bool
	logger        *logging.ChanneledLogger
	nowFunc       func() time.Time
}

// NewLifecycleService creates a new lifecycle service with its dependencies.
func NewLifecycleService(requests tracking.RequestRepository, reopenEnabled bool, logger *logging.ChanneledLogger) *LifecycleService {
	return &LifecycleService{
		requests:      requests,
		reopenEnabled: reopenEnabled,
		logger:        logger,
		nowFunc:       time.Now,
	}
}

// Get returns one request with its item snapshots.
func (s *LifecycleService) Get(ctx context.Context, id string) (*tracking.ProductRequest, error) {
	return s.requests.Get(ctx, id)
}

// List returns requests matching the filter plus the total match count.
func (s *LifecycleService) List(ctx context.Context, filter tracking.RequestFilter) ([]*tracking.ProductRequest, int, error) {
	return s.requests.List(ctx, filter)
}

// History returns the status audit trail, oldest first.
func (s *LifecycleService) History(ctx context.Context, id string) ([]*tracking.StatusChange, error) {
	if _, err := s.requests.Get(ctx, id); err != nil {
		return nil, err
	}
	return s.requests.StatusHistory(ctx, id)
}

// ChangeStatus evaluates and applies a status transition. Legacy wire
// statuses normalize before evaluation, a same-status change is an
// idempotent no-op, and every outcome that reaches storage is audited
// including no-ops and reopens.
func (s *LifecycleService) ChangeStatus(ctx context.Context, id, targetRaw, actor string) (*tracking.ProductRequest, error) {
	target, err := tracking.ParseRequestStatus(targetRaw)
	if err != nil {
		return nil, err
	}

	current, err := s.requests.Get(ctx, id)
	if err != nil {
		return nil, err
	}

	kind, err := tracking.EvaluateTransition(current.Status, target, s.reopenEnabled)
	if err != nil {
		s.logger.Lifecycle().Warn("Rejected status transition",
			"requestId", id,
			"from", string(current.Status),
			"to", string(target),
			"actor", actor,
			"error", err)
		return nil, err
	}

	now := s.nowFunc().UTC()
	change := &tracking.StatusChange{
		ID:         security.GenerateULID(),
		RequestID:  id,
		Actor:      actor,
		FromStatus: current.Status,
		ToStatus:   target,
		Action:     kind,
		CreatedAt:  now,
	}
	update := tracking.StatusUpdate{Status: target, UpdatedAt: now}
	switch kind {
	case tracking.TransitionForward:
		// First paid contact stamps contacted_at; terminal statuses also
		// stamp resolved_at.
		update.TouchContacted = true
		update.SetResolved = target.IsTerminal()
	case tracking.TransitionReopen:
		update.ClearContacted = true
		update.ClearResolved = true
	case tracking.TransitionNoop:
		// Status and timestamps stay put; only the audit row lands.
	}

	updated, err := s.requests.UpdateStatus(ctx, id, change, update)
	if err != nil {
		return nil, err
	}
	s.logger.Lifecycle().Info("Request status changed",
		"requestId", id,
		"from", string(change.FromStatus),
		"to", string(change.ToStatus),
		"action", string(kind),
		"actor", actor)
	return updated, nil
}
