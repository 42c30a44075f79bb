// Package metrics holds in-process ingestion counters. They reset on
// restart; durable analytics live in the database, these exist for the
// admin dashboard's live view.
package metrics

import (
	"sync/atomic"
	"time"
)

// IngestionCounters tracks gateway outcomes since process start.
type IngestionCounters struct {
	startedAt          time.Time
	eventsAccepted     atomic.Int64
	eventsDuplicate    atomic.Int64
	requestsAccepted   atomic.Int64
	requestsDuplicate  atomic.Int64
	rateLimited        atomic.Int64
	validationFailures atomic.Int64
}

// NewIngestionCounters creates counters anchored at now.
func NewIngestionCounters() *IngestionCounters {
	return &IngestionCounters{startedAt: time.Now().UTC()}
}

func (c *IngestionCounters) EventAccepted() { c.eventsAccepted.Add(1) }

func (c *IngestionCounters) EventDuplicate() { c.eventsDuplicate.Add(1) }

func (c *IngestionCounters) RequestAccepted() { c.requestsAccepted.Add(1) }

func (c *IngestionCounters) RequestDuplicate() { c.requestsDuplicate.Add(1) }

func (c *IngestionCounters) RateLimited() { c.rateLimited.Add(1) }

func (c *IngestionCounters) ValidationFailure() { c.validationFailures.Add(1) }

// IngestionSnapshot is a point-in-time view of the counters.
type IngestionSnapshot struct {
	StartedAt          time.Time `json:"started_at"`
	CapturedAt         time.Time `json:"captured_at"`
	EventsAccepted     int64     `json:"events_accepted"`
	EventsDuplicate    int64     `json:"events_duplicate"`
	RequestsAccepted   int64     `json:"requests_accepted"`
	RequestsDuplicate  int64     `json:"requests_duplicate"`
	RateLimited        int64     `json:"rate_limited"`
	ValidationFailures int64     `json:"validation_failures"`
}

// Snapshot captures the current counter values.
func (c *IngestionCounters) Snapshot() IngestionSnapshot {
	return IngestionSnapshot{
		StartedAt:          c.startedAt,
		CapturedAt:         time.Now().UTC(),
		EventsAccepted:     c.eventsAccepted.Load(),
		EventsDuplicate:    c.eventsDuplicate.Load(),
		RequestsAccepted:   c.requestsAccepted.Load(),
		RequestsDuplicate:  c.requestsDuplicate.Load(),
		RateLimited:        c.rateLimited.Load(),
		ValidationFailures: c.validationFailures.Load(),
	}
}
