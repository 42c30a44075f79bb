// Package ratelimit bounds ingestion throughput per resolved client
// identity. Counters are best-effort and process-local by default; the
// CounterStore interface allows a centralized implementation to be
// injected for multi-instance deployments without changing gateway logic.
package ratelimit

import (
	"sync"
	"time"
)

// CounterStore increments and returns the running count for an identity
// within the current window. Implementations may be approximate.
type CounterStore interface {
	// Increment bumps the counter for identity in the window containing
	// now and returns the post-increment count plus the time remaining
	// until the window resets.
	Increment(identity string, window time.Duration, now time.Time) (count int, resetIn time.Duration)
}

// Limiter applies a fixed request budget per identity per window.
type Limiter struct {
	store       CounterStore
	maxRequests int
	window      time.Duration
	nowFunc     func() time.Time
}

// NewLimiter builds a limiter over the given counter store.
func NewLimiter(store CounterStore, maxRequests int, window time.Duration) *Limiter {
	return &Limiter{
		store:       store,
		maxRequests: maxRequests,
		window:      window,
		nowFunc:     time.Now,
	}
}

// Allow reports whether the identity may proceed. When rejected,
// retryAfter is the caller's minimum back-off.
func (l *Limiter) Allow(identity string) (allowed bool, retryAfter time.Duration) {
	count, resetIn := l.store.Increment(identity, l.window, l.nowFunc())
	if count > l.maxRequests {
		if resetIn < time.Second {
			resetIn = time.Second
		}
		return false, resetIn
	}
	return true, 0
}

type bucket struct {
	count   int
	resetAt time.Time
}

// MemoryCounterStore is the process-local CounterStore. Slightly
// over-permissive under multi-instance deployment, which the design
// accepts in exchange for zero-hop ingestion latency.
type MemoryCounterStore struct {
	mu         sync.Mutex
	buckets    map[string]*bucket
	maxBuckets int
}

// NewMemoryCounterStore builds an in-memory store. maxBuckets bounds the
// tracked identity count; expired buckets are swept once it is exceeded.
func NewMemoryCounterStore(maxBuckets int) *MemoryCounterStore {
	if maxBuckets <= 0 {
		maxBuckets = 10000
	}
	return &MemoryCounterStore{
		buckets:    make(map[string]*bucket),
		maxBuckets: maxBuckets,
	}
}

// Increment implements CounterStore with fixed windows.
func (s *MemoryCounterStore) Increment(identity string, window time.Duration, now time.Time) (int, time.Duration) {
	s.mu.Lock()
	defer s.mu.Unlock()

	b, ok := s.buckets[identity]
	if !ok || !now.Before(b.resetAt) {
		b = &bucket{resetAt: now.Add(window)}
		s.buckets[identity] = b
	}
	b.count++

	if len(s.buckets) > s.maxBuckets {
		for key, candidate := range s.buckets {
			if !now.Before(candidate.resetAt) {
				delete(s.buckets, key)
			}
		}
	}

	return b.count, b.resetAt.Sub(now)
}

// TrackedIdentities returns the number of live buckets, for metrics.
func (s *MemoryCounterStore) TrackedIdentities() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.buckets)
}
