//go:build integration

package apikey_test

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/suite"

	"siva/internal/tenant/models"
	"siva/internal/tenant/store/apikey"
	id "siva/pkg/domain"
	"siva/pkg/platform/sentinel"
	"siva/pkg/testutil/containers"
)

type PostgresStoreSuite struct {
	suite.Suite
	postgres *containers.PostgresContainer
	store    *apikey.PostgresStore
	tenantID id.TenantID
}

func TestPostgresStoreSuite(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping integration test in short mode")
	}
	suite.Run(t, new(PostgresStoreSuite))
}

func (s *PostgresStoreSuite) SetupSuite() {
	mgr := containers.GetManager()
	s.postgres = mgr.GetPostgres(s.T())
	s.store = apikey.NewPostgres(s.postgres.DB)
}

func (s *PostgresStoreSuite) SetupTest() {
	ctx := context.Background()

	// Truncate in dependency order
	err := s.postgres.TruncateTables(ctx, "api_keys", "tenants")
	s.Require().NoError(err)

	// Create a tenant for the FK constraint
	s.tenantID = id.TenantID(uuid.New())
	_, err = s.postgres.Exec(ctx, `
		INSERT INTO tenants (id, name, plan, status, created_at, updated_at)
		VALUES ($1, $2, 'trial', 'active', NOW(), NOW())
	`, uuid.UUID(s.tenantID), "Test Tenant "+uuid.NewString())
	s.Require().NoError(err)
}

func (s *PostgresStoreSuite) newTestKey() *models.APIKey {
	now := time.Now()
	return &models.APIKey{
		ID:         id.APIKeyID(uuid.New()),
		TenantID:   s.tenantID,
		Label:      "Test Key " + uuid.NewString(),
		SecretHash: "$2a$10$" + uuid.NewString(),
		Status:     models.KeyStatusActive,
		CreatedAt:  now,
		UpdatedAt:  now,
	}
}

// TestTenantIsolation verifies that tenant-scoped lookups respect boundaries.
func (s *PostgresStoreSuite) TestTenantIsolation() {
	ctx := context.Background()

	// Create another tenant
	otherTenantID := id.TenantID(uuid.New())
	_, err := s.postgres.Exec(ctx, `
		INSERT INTO tenants (id, name, plan, status, created_at, updated_at)
		VALUES ($1, $2, 'trial', 'active', NOW(), NOW())
	`, uuid.UUID(otherTenantID), "Other Tenant "+uuid.NewString())
	s.Require().NoError(err)

	key := s.newTestKey()
	err = s.store.Create(ctx, key)
	s.Require().NoError(err)

	// Should find by the owning tenant
	found, err := s.store.FindByTenantAndID(ctx, s.tenantID, key.ID)
	s.Require().NoError(err)
	s.Equal(key.ID, found.ID)

	// Should NOT find by the other tenant
	_, err = s.store.FindByTenantAndID(ctx, otherTenantID, key.ID)
	s.ErrorIs(err, sentinel.ErrNotFound)

	// FindByID (the resolve path) has no tenant filter
	found, err = s.store.FindByID(ctx, key.ID)
	s.Require().NoError(err)
	s.Equal(key.ID, found.ID)
	s.Equal(key.SecretHash, found.SecretHash)

	// Execute scoped to the wrong tenant never touches the key
	_, err = s.store.Execute(ctx, otherTenantID, key.ID,
		func(*models.APIKey) error { return nil },
		func(k *models.APIKey) { k.Status = models.KeyStatusRevoked },
	)
	s.ErrorIs(err, sentinel.ErrNotFound)

	found, err = s.store.FindByID(ctx, key.ID)
	s.Require().NoError(err)
	s.Equal(models.KeyStatusActive, found.Status)
}

// TestConcurrentRevocation verifies FOR UPDATE serializes revocations: exactly
// one of 50 racing goroutines revokes, the rest observe the revoked state.
func (s *PostgresStoreSuite) TestConcurrentRevocation() {
	ctx := context.Background()

	key := s.newTestKey()
	err := s.store.Create(ctx, key)
	s.Require().NoError(err)

	const goroutines = 50
	var wg sync.WaitGroup
	var successCount atomic.Int32
	var alreadyRevoked atomic.Int32

	errRevoked := errors.New("API key is already revoked")

	for i := 0; i < goroutines; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()

			_, err := s.store.Execute(ctx, s.tenantID, key.ID,
				func(current *models.APIKey) error {
					if current.Status == models.KeyStatusRevoked {
						return errRevoked
					}
					return nil
				},
				func(current *models.APIKey) {
					current.Status = models.KeyStatusRevoked
					current.UpdatedAt = time.Now()
				},
			)
			switch {
			case err == nil:
				successCount.Add(1)
			case errors.Is(err, errRevoked):
				alreadyRevoked.Add(1)
			}
		}()
	}

	wg.Wait()

	s.Equal(int32(1), successCount.Load(), "exactly one revocation should succeed")
	s.Equal(int32(goroutines-1), alreadyRevoked.Load(), "all others should see the revoked state")

	found, err := s.store.FindByID(ctx, key.ID)
	s.Require().NoError(err)
	s.Equal(models.KeyStatusRevoked, found.Status)
}

// TestConcurrentDifferentKeys verifies concurrent creation of different keys.
func (s *PostgresStoreSuite) TestConcurrentDifferentKeys() {
	ctx := context.Background()
	const goroutines = 50

	var wg sync.WaitGroup
	var errCount atomic.Int32

	for i := 0; i < goroutines; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()

			if err := s.store.Create(ctx, s.newTestKey()); err != nil {
				errCount.Add(1)
			}
		}()
	}

	wg.Wait()

	s.Equal(int32(0), errCount.Load(), "no errors expected for unique key IDs")

	count, err := s.store.CountByTenant(ctx, s.tenantID)
	s.Require().NoError(err)
	s.Equal(goroutines, count)
}

// TestListOrdering verifies ListByTenant returns keys newest first.
func (s *PostgresStoreSuite) TestListOrdering() {
	ctx := context.Background()

	older := s.newTestKey()
	older.CreatedAt = time.Now().Add(-1 * time.Hour)
	s.Require().NoError(s.store.Create(ctx, older))

	newer := s.newTestKey()
	s.Require().NoError(s.store.Create(ctx, newer))

	keys, err := s.store.ListByTenant(ctx, s.tenantID)
	s.Require().NoError(err)
	s.Require().Len(keys, 2)
	s.Equal(newer.ID, keys[0].ID)
	s.Equal(older.ID, keys[1].ID)
}

// TestTouchLastUsedUnderLoad verifies usage stamps race cleanly with reads.
func (s *PostgresStoreSuite) TestTouchLastUsedUnderLoad() {
	ctx := context.Background()

	key := s.newTestKey()
	err := s.store.Create(ctx, key)
	s.Require().NoError(err)

	const goroutines = 50
	var wg sync.WaitGroup
	var touchErrors, readErrors atomic.Int32

	for i := 0; i < goroutines; i++ {
		wg.Add(1)
		go func(idx int) {
			defer wg.Done()

			if idx%2 == 0 {
				if err := s.store.TouchLastUsed(ctx, key.ID, time.Now()); err != nil {
					touchErrors.Add(1)
				}
			} else {
				if _, err := s.store.FindByID(ctx, key.ID); err != nil {
					readErrors.Add(1)
				}
			}
		}(i)
	}

	wg.Wait()

	s.Equal(int32(0), touchErrors.Load(), "no touch errors expected")
	s.Equal(int32(0), readErrors.Load(), "no read errors expected")

	found, err := s.store.FindByID(ctx, key.ID)
	s.Require().NoError(err)
	s.NotNil(found.LastUsedAt)
	// Usage stamps must not masquerade as lifecycle changes.
	s.WithinDuration(key.UpdatedAt, found.UpdatedAt, time.Second)
}

// TestNotFoundError verifies proper error handling for non-existent keys.
func (s *PostgresStoreSuite) TestNotFoundError() {
	ctx := context.Background()

	_, err := s.store.FindByID(ctx, id.APIKeyID(uuid.New()))
	s.ErrorIs(err, sentinel.ErrNotFound)

	_, err = s.store.FindByTenantAndID(ctx, s.tenantID, id.APIKeyID(uuid.New()))
	s.ErrorIs(err, sentinel.ErrNotFound)

	_, err = s.store.Execute(ctx, s.tenantID, id.APIKeyID(uuid.New()),
		func(*models.APIKey) error { return nil },
		func(*models.APIKey) {},
	)
	s.ErrorIs(err, sentinel.ErrNotFound)

	err = s.store.TouchLastUsed(ctx, id.APIKeyID(uuid.New()), time.Now())
	s.ErrorIs(err, sentinel.ErrNotFound)
}
