package services

import (
	"context"
	"time"

	"github.com/zirconsol/drshaq-backend/internal/domain/tracking"
	"github.com/zirconsol/drshaq-backend/internal/infrastructure/observability/logging"
)

// PurgeRun is the outcome report of one retention pass.
type PurgeRun struct {
	Mode              string    `json:"mode"`
	Cutoff            time.Time `json:"cutoff"`
	Candidates        int       `json:"candidates"`
	Deleted           int       `json:"deleted"`
	RequestCandidates int       `json:"request_candidates,omitempty"`
	RequestsDeleted   int       `json:"requests_deleted,omitempty"`
	ElapsedMS         int64     `json:"elapsed_ms"`
}

// RetentionService purges tracking events older than the retention
// horizon, and optionally terminal requests with them. The cutoff is
// snapshotted once per run so rows arriving mid-pass are never touched.
type RetentionService struct {
	events        tracking.EventRepository
	requests      tracking.RequestRepository
	purgeTerminal bool
	logger        *logging.ChanneledLogger
	nowFunc       func() time.Time
}

// NewRetentionService creates a new retention service with its dependencies.
func NewRetentionService(events tracking.EventRepository, requests tracking.RequestRepository, purgeTerminal bool, logger *logging.ChanneledLogger) *RetentionService {
	return &RetentionService{
		events:        events,
		requests:      requests,
		purgeTerminal: purgeTerminal,
		logger:        logger,
		nowFunc:       time.Now,
	}
}

// Run executes one retention pass. With apply false it only counts
// candidates; with apply true it deletes them and reports both figures.
func (s *RetentionService) Run(ctx context.Context, retentionDays int, apply bool) (*PurgeRun, error) {
	start := s.nowFunc()
	cutoff := start.UTC().AddDate(0, 0, -retentionDays)

	mode := "dry-run"
	if apply {
		mode = "apply"
	}
	run := &PurgeRun{Mode: mode, Cutoff: cutoff}

	candidates, err := s.events.CountBefore(ctx, cutoff)
	if err != nil {
		return nil, err
	}
	run.Candidates = candidates

	if s.purgeTerminal {
		requestCandidates, err := s.requests.CountTerminalBefore(ctx, cutoff)
		if err != nil {
			return nil, err
		}
		run.RequestCandidates = requestCandidates
	}

	if apply {
		deleted, err := s.events.DeleteBefore(ctx, cutoff)
		if err != nil {
			return nil, err
		}
		run.Deleted = deleted

		if s.purgeTerminal {
			requestsDeleted, err := s.requests.DeleteTerminalBefore(ctx, cutoff)
			if err != nil {
				return nil, err
			}
			run.RequestsDeleted = requestsDeleted
		}
	}

	run.ElapsedMS = time.Since(start).Milliseconds()
	s.logger.Retention().Info("Retention pass finished",
		"mode", mode,
		"cutoff", cutoff,
		"candidates", run.Candidates,
		"deleted", run.Deleted,
		"requestCandidates", run.RequestCandidates,
		"requestsDeleted", run.RequestsDeleted,
		"elapsedMs", run.ElapsedMS)
	return run, nil
}
