package memory

import (
	"context"
	"sync"

	"siva/internal/audit"
)

// InMemoryStore keeps the audit trail in process memory. Events are held in
// append order; reads walk backwards so callers always see newest first.
type InMemoryStore struct {
	mu     sync.RWMutex
	events []audit.Event
}

func NewInMemoryStore() *InMemoryStore {
	return &InMemoryStore{}
}

func (s *InMemoryStore) Clear() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.events = nil
}

func (s *InMemoryStore) Append(_ context.Context, event audit.Event) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.events = append(s.events, event)
	return nil
}

func (s *InMemoryStore) List(_ context.Context, filter audit.ListFilter) ([]audit.Event, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	result := make([]audit.Event, 0, min(filter.Limit, len(s.events)))
	for i := len(s.events) - 1; i >= 0 && len(result) < filter.Limit; i-- {
		if matches(s.events[i], filter) {
			result = append(result, s.events[i])
		}
	}
	return result, nil
}

func matches(event audit.Event, filter audit.ListFilter) bool {
	if !filter.TenantID.IsNil() && event.TenantID != filter.TenantID {
		return false
	}
	if filter.Action != "" && event.Action != filter.Action {
		return false
	}
	return true
}
