// Package services provides the orchestration layer between the HTTP
// surface and the tracking domain.
package services

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/zirconsol/drshaq-backend/internal/domain/tracking"
	"github.com/zirconsol/drshaq-backend/internal/infrastructure/observability/logging"
	"github.com/zirconsol/drshaq-backend/internal/infrastructure/observability/metrics"
	"github.com/zirconsol/drshaq-backend/internal/infrastructure/security"
)

// TrackingService is the public ingestion gateway. Validation is
// fail-closed and duplicates are soft successes; the repository's
// uniqueness constraint does the arbitration.
type TrackingService struct {
	events   tracking.EventRepository
	requests tracking.RequestRepository
	registry tracking.ProductRegistry
	counters *metrics.IngestionCounters
	logger   *logging.ChanneledLogger
	nowFunc  func() time.Time
}

// NewTrackingService creates a new tracking service with its dependencies.
func NewTrackingService(
	events tracking.EventRepository,
	requests tracking.RequestRepository,
	registry tracking.ProductRegistry,
	counters *metrics.IngestionCounters,
	logger *logging.ChanneledLogger,
) *TrackingService {
	return &TrackingService{
		events:   events,
		requests: requests,
		registry: registry,
		counters: counters,
		logger:   logger,
		nowFunc:  time.Now,
	}
}

// IngestEvent validates, stamps, and persists one behavioral event.
func (s *TrackingService) IngestEvent(ctx context.Context, payload *tracking.EventPayload, clientIP string) (*tracking.InsertOutcome, error) {
	event, err := payload.Normalize()
	if err != nil {
		s.counters.ValidationFailure()
		return nil, err
	}
	event.ID = security.GenerateULID()
	event.ReceivedAt = s.nowFunc().UTC()
	event.ClientIP = clientIP

	outcome, err := s.events.Insert(ctx, event)
	if err != nil {
		return nil, err
	}
	if outcome.Created {
		s.counters.EventAccepted()
		s.logger.Ingest().Debug("Tracking event accepted",
			"eventId", outcome.EventID,
			"eventName", payload.EventName,
			"sessionId", event.SessionID)
	} else {
		s.counters.EventDuplicate()
		s.logger.Ingest().Debug("Tracking event deduplicated",
			"eventId", outcome.EventID,
			"idempotencyKey", event.IdempotencyKey)
	}
	return outcome, nil
}

// SubmitRequest validates a submission against the product catalog and
// persists the request, its item snapshots, and the linked
// request_submitted event atomically. The returned request reflects
// whichever row the idempotency key resolved to.
func (s *TrackingService) SubmitRequest(ctx context.Context, payload *tracking.RequestPayload, clientIP string) (*tracking.InsertOutcome, *tracking.ProductRequest, error) {
	request, err := payload.Normalize()
	if err != nil {
		s.counters.ValidationFailure()
		return nil, nil, err
	}

	ids := make([]string, 0, len(request.Items))
	for _, item := range request.Items {
		ids = append(ids, item.ProductID)
	}
	missing, err := s.registry.MissingProducts(ctx, ids)
	if err != nil {
		return nil, nil, err
	}
	if len(missing) > 0 {
		s.counters.ValidationFailure()
		return nil, nil, &UnknownProductError{ProductIDs: missing}
	}
	for i := range request.Items {
		name, err := s.registry.ProductName(ctx, request.Items[i].ProductID)
		if err != nil {
			return nil, nil, err
		}
		request.Items[i].ProductName = name
	}

	now := s.nowFunc().UTC()
	request.ID = security.GenerateULID()
	request.CreatedAt = now
	request.UpdatedAt = now
	request.ClientIP = clientIP

	linked := &tracking.TrackingEvent{
		ID:             security.GenerateULID(),
		EventName:      tracking.EventRequestSubmitted,
		Source:         request.Source,
		VisitorID:      request.VisitorID,
		SessionID:      request.SessionID,
		PagePath:       request.PagePath,
		IdempotencyKey: request.IdempotencyKey + ".event",
		RequestID:      &request.ID,
		UTMSource:      request.UTMSource,
		UTMMedium:      request.UTMMedium,
		UTMCampaign:    request.UTMCampaign,
		Referrer:       request.Referrer,
		ReceivedAt:     now,
		ClientIP:       clientIP,
	}

	outcome, err := s.requests.Create(ctx, request, linked)
	if err != nil {
		return nil, nil, err
	}
	if outcome.Created {
		s.counters.RequestAccepted()
		s.logger.Ingest().Info("Product request accepted",
			"requestId", outcome.RequestID,
			"sessionId", request.SessionID,
			"items", len(request.Items))
		return outcome, request, nil
	}

	s.counters.RequestDuplicate()
	s.logger.Ingest().Debug("Product request deduplicated",
		"requestId", outcome.RequestID,
		"idempotencyKey", request.IdempotencyKey)
	existing, err := s.requests.Get(ctx, outcome.RequestID)
	if err != nil {
		return nil, nil, err
	}
	return outcome, existing, nil
}

// UnknownProductError rejects a submission referencing product ids the
// catalog cannot resolve.
type UnknownProductError struct {
	ProductIDs []string
}

func (e *UnknownProductError) Error() string {
	return "unknown products: " + strings.Join(e.ProductIDs, ", ")
}

// Unwrap ties the error into the tracking.ErrUnknownProduct sentinel.
func (e *UnknownProductError) Unwrap() error { return tracking.ErrUnknownProduct }

// IsValidationError reports whether err should map to a 422 response.
func IsValidationError(err error) bool {
	var validation *tracking.ValidationError
	if errors.As(err, &validation) {
		return true
	}
	return errors.Is(err, tracking.ErrInvalidEnum) ||
		errors.Is(err, tracking.ErrMissingIdempotencyKey) ||
		errors.Is(err, tracking.ErrUnknownProduct)
}
