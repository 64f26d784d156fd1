// Package tenant stores tenant aggregates. The memory implementation backs
// unit tests and single-node deployments; Postgres is the production store.
package tenant

import (
	"context"
	"strings"
	"sync"

	"siva/internal/tenant/models"
	id "siva/pkg/domain"
	"siva/pkg/platform/sentinel"
)

// InMemory keeps tenants in process memory guarded by a mutex.
type InMemory struct {
	mu      sync.RWMutex
	tenants map[id.TenantID]*models.Tenant
	byName  map[string]id.TenantID // lowercased name -> ID
}

func NewInMemory() *InMemory {
	return &InMemory{
		tenants: make(map[id.TenantID]*models.Tenant),
		byName:  make(map[string]id.TenantID),
	}
}

// CreateIfNameAvailable inserts the tenant unless the name is already taken.
// Uniqueness is case-insensitive so "Acme" and "ACME" cannot coexist.
func (s *InMemory) CreateIfNameAvailable(_ context.Context, tenant *models.Tenant) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	nameKey := strings.ToLower(tenant.Name)
	if _, taken := s.byName[nameKey]; taken {
		return sentinel.ErrConflict
	}
	if _, exists := s.tenants[tenant.ID]; exists {
		return sentinel.ErrConflict
	}

	clone := *tenant
	s.tenants[tenant.ID] = &clone
	s.byName[nameKey] = tenant.ID
	return nil
}

func (s *InMemory) FindByID(_ context.Context, tenantID id.TenantID) (*models.Tenant, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	tenant, ok := s.tenants[tenantID]
	if !ok {
		return nil, sentinel.ErrNotFound
	}
	clone := *tenant
	return &clone, nil
}

func (s *InMemory) FindByName(_ context.Context, name string) (*models.Tenant, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	tenantID, ok := s.byName[strings.ToLower(name)]
	if !ok {
		return nil, sentinel.ErrNotFound
	}
	clone := *s.tenants[tenantID]
	return &clone, nil
}

// Execute runs validate then mutate against the stored tenant while holding
// the store lock, so concurrent status transitions cannot interleave between
// the check and the write. A validation error leaves the tenant untouched.
func (s *InMemory) Execute(
	_ context.Context,
	tenantID id.TenantID,
	validate func(*models.Tenant) error,
	mutate func(*models.Tenant),
) (*models.Tenant, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	tenant, ok := s.tenants[tenantID]
	if !ok {
		return nil, sentinel.ErrNotFound
	}
	if validate != nil {
		if err := validate(tenant); err != nil {
			return nil, err
		}
	}
	if mutate != nil {
		mutate(tenant)
	}
	clone := *tenant
	return &clone, nil
}

// Count reports the number of stored tenants.
func (s *InMemory) Count(_ context.Context) (int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.tenants), nil
}
