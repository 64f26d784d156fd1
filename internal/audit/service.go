package audit

import (
	"context"

	dErrors "siva/pkg/domain-errors"
)

// Query service over the audit trail, consumed by the admin handler.
// Kept separate from the Publisher so read access never needs emit wiring.
type Service struct {
	store Store
}

func NewService(store Store) *Service {
	return &Service{store: store}
}

const (
	defaultListLimit = 100
	maxListLimit     = 1000
)

// List returns the newest events matching filter. Limits outside
// (0, maxListLimit] are normalized rather than rejected.
func (s *Service) List(ctx context.Context, filter ListFilter) ([]Event, error) {
	if filter.Limit <= 0 {
		filter.Limit = defaultListLimit
	}
	if filter.Limit > maxListLimit {
		filter.Limit = maxListLimit
	}

	events, err := s.store.List(ctx, filter)
	if err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to list audit events")
	}
	return events, nil
}
