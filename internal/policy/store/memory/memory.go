// Package memory keeps policies in process memory. Suited to tests and
// single-node development; production deployments use the postgres store.
package memory

import (
	"context"
	"maps"
	"slices"
	"strings"
	"sync"

	"siva/internal/policy"
	id "siva/pkg/domain"
	"siva/pkg/platform/sentinel"
)

// InMemory is a mutex-guarded policy store. Policies are cloned on every
// read and write so callers never share state with the store.
type InMemory struct {
	mu       sync.RWMutex
	policies map[id.PolicyID]*policy.Policy
}

func NewInMemory() *InMemory {
	return &InMemory{policies: make(map[id.PolicyID]*policy.Policy)}
}

func clone(p *policy.Policy) *policy.Policy {
	c := *p
	if p.Weights != nil {
		w := *p.Weights
		c.Weights = &w
	}
	if p.Thresholds != nil {
		t := *p.Thresholds
		c.Thresholds = &t
	}
	if p.EdgeCaseRules != nil {
		c.EdgeCaseRules = maps.Clone(p.EdgeCaseRules)
	}
	return &c
}

func (m *InMemory) Create(_ context.Context, p *policy.Policy) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if _, exists := m.policies[p.ID]; exists {
		return sentinel.ErrConflict
	}
	if p.IsActive() && m.findActiveLocked(p.Vertical, p.SubVertical) != nil {
		return sentinel.ErrConflict
	}
	m.policies[p.ID] = clone(p)
	return nil
}

func (m *InMemory) Update(_ context.Context, p *policy.Policy) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if _, exists := m.policies[p.ID]; !exists {
		return sentinel.ErrNotFound
	}
	m.policies[p.ID] = clone(p)
	return nil
}

func (m *InMemory) FindByID(_ context.Context, policyID id.PolicyID) (*policy.Policy, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	p, exists := m.policies[policyID]
	if !exists {
		return nil, sentinel.ErrNotFound
	}
	return clone(p), nil
}

func (m *InMemory) FindActive(_ context.Context, vertical, subVertical string) (*policy.Policy, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	if p := m.findActiveLocked(vertical, subVertical); p != nil {
		return clone(p), nil
	}
	return nil, sentinel.ErrNotFound
}

func (m *InMemory) List(_ context.Context, filter policy.ListFilter) ([]*policy.Policy, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	out := make([]*policy.Policy, 0, len(m.policies))
	for _, p := range m.policies {
		if filter.Vertical != "" && p.Vertical != filter.Vertical {
			continue
		}
		if filter.Status != "" && p.Status != filter.Status {
			continue
		}
		out = append(out, clone(p))
	}
	slices.SortFunc(out, func(a, b *policy.Policy) int {
		if c := strings.Compare(a.Vertical, b.Vertical); c != 0 {
			return c
		}
		if c := strings.Compare(a.SubVertical, b.SubVertical); c != 0 {
			return c
		}
		return b.Version - a.Version
	})
	return out, nil
}

func (m *InMemory) SwapActive(_ context.Context, activated *policy.Policy, archived *policy.Policy) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if _, exists := m.policies[activated.ID]; !exists {
		return sentinel.ErrNotFound
	}
	if archived != nil {
		if _, exists := m.policies[archived.ID]; !exists {
			return sentinel.ErrNotFound
		}
	}

	// A concurrent activation may have promoted a different policy for
	// this pair since the caller loaded its snapshot.
	if current := m.findActiveLocked(activated.Vertical, activated.SubVertical); current != nil {
		if current.ID != activated.ID && (archived == nil || current.ID != archived.ID) {
			return sentinel.ErrConflict
		}
	}

	m.policies[activated.ID] = clone(activated)
	if archived != nil {
		m.policies[archived.ID] = clone(archived)
	}
	return nil
}

func (m *InMemory) findActiveLocked(vertical, subVertical string) *policy.Policy {
	for _, p := range m.policies {
		if p.IsActive() && p.Vertical == vertical && p.SubVertical == subVertical {
			return p
		}
	}
	return nil
}
