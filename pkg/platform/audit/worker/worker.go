// Package worker drains the async audit buffer into a sink.
package worker

import (
	"context"
	"log/slog"
	"time"

	audit "shieldvault/pkg/platform/audit"
)

// DefaultAppendTimeout bounds a single append to the sink.
const DefaultAppendTimeout = 5 * time.Second

// Worker appends buffered events to store one at a time. A failed or timed
// out append is logged and the event dropped; it never blocks later events.
type Worker struct {
	store         audit.Store
	inbox         <-chan audit.Event
	logger        *slog.Logger
	appendTimeout time.Duration
}

type Option func(*Worker)

// WithAppendTimeout overrides DefaultAppendTimeout.
func WithAppendTimeout(d time.Duration) Option {
	return func(w *Worker) {
		if d > 0 {
			w.appendTimeout = d
		}
	}
}

func NewWorker(store audit.Store, inbox <-chan audit.Event, logger *slog.Logger, opts ...Option) *Worker {
	if logger == nil {
		logger = slog.Default()
	}
	w := &Worker{store: store, inbox: inbox, logger: logger, appendTimeout: DefaultAppendTimeout}
	for _, opt := range opts {
		opt(w)
	}
	return w
}

// Run returns nil once inbox is closed and drained, or ctx.Err() if ctx ends
// first.
func (w *Worker) Run(ctx context.Context) error {
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case event, open := <-w.inbox:
			if !open {
				return nil
			}
			w.persist(ctx, event)
		}
	}
}

func (w *Worker) persist(ctx context.Context, event audit.Event) {
	ctx, cancel := context.WithTimeout(ctx, w.appendTimeout)
	defer cancel()

	err := w.store.Append(ctx, event)
	if err == nil {
		return
	}
	w.logger.ErrorContext(ctx, "audit event dropped",
		"event_id", event.ID.String(),
		"action", event.Action,
		"caller", event.Caller,
		"error", err,
	)
}
