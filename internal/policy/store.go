package policy

import (
	"context"

	id "siva/pkg/domain"
)

// ListFilter narrows List results. Zero values match everything.
type ListFilter struct {
	Vertical string
	Status   Status
}

// Store persists policies. Implementations return sentinel errors
// (pkg/platform/sentinel); the service translates them into domain errors.
type Store interface {
	// Create inserts a new policy. Returns ErrConflict when the ID is
	// already taken.
	Create(ctx context.Context, p *Policy) error

	// Update persists the full current state of an existing policy.
	// Returns ErrNotFound when the policy does not exist.
	Update(ctx context.Context, p *Policy) error

	// FindByID returns the policy with the given ID or ErrNotFound.
	FindByID(ctx context.Context, policyID id.PolicyID) (*Policy, error)

	// FindActive returns the active policy for the exact
	// (vertical, subVertical) pair or ErrNotFound. Fallback from a
	// sub-vertical to its vertical is the service's job, not the store's.
	FindActive(ctx context.Context, vertical, subVertical string) (*Policy, error)

	// List returns policies matching the filter, ordered by vertical,
	// sub-vertical, then newest version first.
	List(ctx context.Context, filter ListFilter) ([]*Policy, error)

	// SwapActive persists an activation atomically: activated becomes
	// the active policy and archived, when non-nil, is retired in the
	// same transaction. Returns ErrConflict when another policy won a
	// concurrent activation for the same pair.
	SwapActive(ctx context.Context, activated *Policy, archived *Policy) error
}
