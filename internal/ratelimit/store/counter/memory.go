// Package counter provides fixed-window request counters. Incr bumps the
// counter for a key and reports the running count plus the moment the
// window resets; the limiter compares the count against the budget.
package counter

import (
	"context"
	"sync"
	"time"
)

// sweepEvery bounds how often expired windows are swept from the map.
const sweepEvery = 4096

// InMemory is a fixed-window counter backed by a mutex and a map. Counts are
// process-local, so it suits tests and single-process deployments; shared
// enforcement across replicas goes through the Redis store.
type InMemory struct {
	mu      sync.Mutex
	windows map[string]*window
	ops     int
}

// window is one fixed counting window. The count restarts once resetAt passes.
type window struct {
	count   int
	resetAt time.Time
}

// NewInMemory creates an empty in-memory counter store.
func NewInMemory() *InMemory {
	return &InMemory{windows: make(map[string]*window)}
}

// Incr bumps the counter for key, starting a fresh window when none is live.
// Returns the count including this increment and when the window resets.
func (s *InMemory) Incr(ctx context.Context, key string, windowSize time.Duration) (int, time.Time, error) {
	now := time.Now()

	s.mu.Lock()
	defer s.mu.Unlock()

	w := s.windows[key]
	if w == nil || !now.Before(w.resetAt) {
		w = &window{resetAt: now.Add(windowSize)}
		s.windows[key] = w
	}
	w.count++

	s.ops++
	if s.ops%sweepEvery == 0 {
		s.sweep(now)
	}
	return w.count, w.resetAt, nil
}

// sweep drops expired windows so the map does not grow with every distinct
// caller ever seen. Must be called while holding s.mu.
func (s *InMemory) sweep(now time.Time) {
	for key, w := range s.windows {
		if !now.Before(w.resetAt) {
			delete(s.windows, key)
		}
	}
}
