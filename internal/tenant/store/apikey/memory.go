// Package apikey stores issued API key records. Only the bcrypt hash of the
// secret half ever reaches a store; the cleartext lives in the issuance
// response and nowhere else.
package apikey

import (
	"context"
	"sort"
	"sync"
	"time"

	"siva/internal/tenant/models"
	id "siva/pkg/domain"
	"siva/pkg/platform/sentinel"
)

// InMemory keeps API keys in process memory guarded by a mutex.
type InMemory struct {
	mu   sync.RWMutex
	keys map[id.APIKeyID]*models.APIKey
}

func NewInMemory() *InMemory {
	return &InMemory{keys: make(map[id.APIKeyID]*models.APIKey)}
}

func (s *InMemory) Create(_ context.Context, key *models.APIKey) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.keys[key.ID]; exists {
		return sentinel.ErrConflict
	}
	clone := *key
	s.keys[key.ID] = &clone
	return nil
}

// FindByID looks a key up by its public identifier. This is the hot path:
// every authenticated request resolves the presented key ID through here.
func (s *InMemory) FindByID(_ context.Context, keyID id.APIKeyID) (*models.APIKey, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	key, ok := s.keys[keyID]
	if !ok {
		return nil, sentinel.ErrNotFound
	}
	clone := *key
	return &clone, nil
}

// FindByTenantAndID scopes the lookup to one tenant so admin operations can
// never touch another tenant's keys, even with a valid key ID.
func (s *InMemory) FindByTenantAndID(_ context.Context, tenantID id.TenantID, keyID id.APIKeyID) (*models.APIKey, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	key, ok := s.keys[keyID]
	if !ok || key.TenantID != tenantID {
		return nil, sentinel.ErrNotFound
	}
	clone := *key
	return &clone, nil
}

// ListByTenant returns the tenant's keys newest first.
func (s *InMemory) ListByTenant(_ context.Context, tenantID id.TenantID) ([]*models.APIKey, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var keys []*models.APIKey
	for _, key := range s.keys {
		if key.TenantID != tenantID {
			continue
		}
		clone := *key
		keys = append(keys, &clone)
	}
	sort.Slice(keys, func(i, j int) bool {
		if !keys[i].CreatedAt.Equal(keys[j].CreatedAt) {
			return keys[i].CreatedAt.After(keys[j].CreatedAt)
		}
		return keys[i].ID.String() < keys[j].ID.String()
	})
	return keys, nil
}

func (s *InMemory) CountByTenant(_ context.Context, tenantID id.TenantID) (int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	count := 0
	for _, key := range s.keys {
		if key.TenantID == tenantID {
			count++
		}
	}
	return count, nil
}

// Execute runs validate then mutate against the stored key while holding the
// store lock. The lookup is tenant-scoped: a key ID belonging to another
// tenant reports not found rather than leaking its existence.
func (s *InMemory) Execute(
	_ context.Context,
	tenantID id.TenantID,
	keyID id.APIKeyID,
	validate func(*models.APIKey) error,
	mutate func(*models.APIKey),
) (*models.APIKey, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	key, ok := s.keys[keyID]
	if !ok || key.TenantID != tenantID {
		return nil, sentinel.ErrNotFound
	}
	if validate != nil {
		if err := validate(key); err != nil {
			return nil, err
		}
	}
	if mutate != nil {
		mutate(key)
	}
	clone := *key
	return &clone, nil
}

// TouchLastUsed records when the key last authenticated a request. Callers
// treat failures as non-fatal: usage tracking never blocks authentication.
func (s *InMemory) TouchLastUsed(_ context.Context, keyID id.APIKeyID, when time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	key, ok := s.keys[keyID]
	if !ok {
		return sentinel.ErrNotFound
	}
	key.TouchUsage(when)
	return nil
}
