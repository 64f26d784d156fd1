package audit

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"siva/pkg/requestcontext"
)

// Publisher captures structured audit events. The store write is synchronous
// so the queryable trail never lags the operation that produced it; forwarding
// to the worker (and from there to Kafka) is asynchronous and best-effort.
type Publisher struct {
	store  Store
	worker *Worker
	logger *slog.Logger
}

// Option configures the Publisher.
type Option func(*Publisher)

// WithWorker attaches an async worker that forwards events to sinks.
func WithWorker(w *Worker) Option {
	return func(p *Publisher) {
		p.worker = w
	}
}

// WithLogger sets a logger for enqueue drops.
func WithLogger(logger *slog.Logger) Option {
	return func(p *Publisher) {
		p.logger = logger
	}
}

func NewPublisher(store Store, opts ...Option) *Publisher {
	p := &Publisher{store: store}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// Emit persists an audit event. The category is always derived from the
// action: the eventCategories map is the source of truth, callers cannot
// override it. Timestamp and request ID are filled from context when absent.
func (p *Publisher) Emit(ctx context.Context, event Event) error {
	if event.Action == "" {
		return fmt.Errorf("audit event requires an action")
	}
	if event.Timestamp.IsZero() {
		event.Timestamp = time.Now()
	}
	if event.RequestID == "" {
		event.RequestID = requestcontext.RequestID(ctx)
	}
	event.Category = AuditEvent(event.Action).Category()

	if err := p.store.Append(ctx, event); err != nil {
		return fmt.Errorf("append audit event: %w", err)
	}

	if p.worker != nil && !p.worker.Enqueue(event) {
		if p.logger != nil {
			p.logger.WarnContext(ctx, "audit sink queue full, event not forwarded",
				"action", event.Action,
				"subject", event.Subject,
			)
		}
	}
	return nil
}
