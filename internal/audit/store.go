package audit

import (
	"context"

	id "siva/pkg/domain"
)

// ListFilter narrows the admin audit query. Zero values mean "any".
type ListFilter struct {
	TenantID id.TenantID
	Action   string
	Limit    int
}

// Store persists audit events and serves the admin query surface.
// Implementations must be safe for concurrent use.
type Store interface {
	Append(ctx context.Context, event Event) error
	// List returns up to filter.Limit events matching filter, newest first.
	List(ctx context.Context, filter ListFilter) ([]Event, error)
}

// Sink receives events for forwarding to an external system (e.g. a Kafka
// topic). Sinks are best-effort: delivery failures are logged, never
// propagated back to the emitting operation.
type Sink interface {
	Write(ctx context.Context, event Event) error
}
