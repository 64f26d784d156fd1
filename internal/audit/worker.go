package audit

import (
	"context"
	"log/slog"
	"sync/atomic"
)

// Worker drains a bounded queue of audit events into one or more sinks.
// Enqueue never blocks the emitting operation: when the queue is full the
// event is dropped and counted, which is the correct trade for a best-effort
// forwarding path.
type Worker struct {
	sinks   []Sink
	inbox   chan Event
	logger  *slog.Logger
	dropped atomic.Int64
}

func NewWorker(queueSize int, logger *slog.Logger, sinks ...Sink) *Worker {
	if queueSize <= 0 {
		queueSize = 1024
	}
	return &Worker{
		sinks:  sinks,
		inbox:  make(chan Event, queueSize),
		logger: logger,
	}
}

// Enqueue offers an event to the queue. Returns false when the queue is full.
func (w *Worker) Enqueue(event Event) bool {
	select {
	case w.inbox <- event:
		return true
	default:
		w.dropped.Add(1)
		return false
	}
}

// Dropped returns the total number of events dropped due to a full queue.
func (w *Worker) Dropped() int64 {
	return w.dropped.Load()
}

// Run consumes events until the context is cancelled. Sink failures are
// logged and the worker moves on: one bad event or one slow sink must not
// stall the trail behind it.
func (w *Worker) Run(ctx context.Context) error {
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case event := <-w.inbox:
			for _, sink := range w.sinks {
				if err := sink.Write(ctx, event); err != nil {
					w.logger.WarnContext(ctx, "audit sink write failed",
						"action", event.Action,
						"subject", event.Subject,
						"error", err,
					)
				}
			}
		}
	}
}
