// Package publisher fans vault audit events out to a sink, either inline or
// through a bounded buffer drained by a background worker.
package publisher

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"

	audit "shieldvault/pkg/platform/audit"
	"shieldvault/pkg/platform/audit/worker"
	"shieldvault/pkg/requestcontext"
)

// ErrBufferFull is returned by Emit in async mode when the buffer is full.
var ErrBufferFull = errors.New("audit buffer full")

// ErrClosed is returned by Emit after Close.
var ErrClosed = errors.New("audit publisher closed")

// DefaultDrainTimeout bounds how long Close waits for the buffer to drain.
const DefaultDrainTimeout = 10 * time.Second

// Lister is implemented by sinks that can read events back.
type Lister interface {
	ListByCaller(ctx context.Context, caller string) ([]audit.Event, error)
}

// Publisher stamps events with an ID and timestamp and hands them to the sink.
type Publisher struct {
	store  audit.Store
	logger *slog.Logger
	now    func() time.Time

	bufferSize    int
	appendTimeout time.Duration
	drainTimeout  time.Duration
	mu            sync.RWMutex
	closed        bool
	inbox         chan audit.Event
	stop          context.CancelFunc
	done          chan struct{}
}

type Option func(*Publisher)

// WithAsyncBuffer makes Emit non-blocking, queueing up to size events.
func WithAsyncBuffer(size int) Option {
	return func(p *Publisher) {
		p.bufferSize = size
	}
}

func WithLogger(logger *slog.Logger) Option {
	return func(p *Publisher) {
		p.logger = logger
	}
}

// WithAppendTimeout bounds each write to the sink, inline or from the buffer.
func WithAppendTimeout(d time.Duration) Option {
	return func(p *Publisher) {
		if d > 0 {
			p.appendTimeout = d
		}
	}
}

// WithDrainTimeout overrides DefaultDrainTimeout.
func WithDrainTimeout(d time.Duration) Option {
	return func(p *Publisher) {
		if d > 0 {
			p.drainTimeout = d
		}
	}
}

// WithClock overrides the timestamp source.
func WithClock(now func() time.Time) Option {
	return func(p *Publisher) {
		p.now = now
	}
}

func NewPublisher(store audit.Store, opts ...Option) *Publisher {
	p := &Publisher{
		store:         store,
		logger:        slog.Default(),
		now:           time.Now,
		appendTimeout: worker.DefaultAppendTimeout,
		drainTimeout:  DefaultDrainTimeout,
	}
	for _, opt := range opts {
		opt(p)
	}
	if p.bufferSize > 0 {
		p.inbox = make(chan audit.Event, p.bufferSize)
		p.done = make(chan struct{})
		ctx, stop := context.WithCancel(context.Background())
		p.stop = stop
		w := worker.NewWorker(store, p.inbox, p.logger, worker.WithAppendTimeout(p.appendTimeout))
		go func() {
			defer close(p.done)
			_ = w.Run(ctx)
		}()
	}
	return p
}

// timestamp prefers the request start time so every event of one request
// shares it.
func (p *Publisher) timestamp(ctx context.Context) time.Time {
	if t, ok := requestcontext.RequestTime(ctx); ok {
		return t
	}
	return p.now()
}

// Emit records an event. In sync mode the sink error is returned; in async
// mode the event is queued and ErrBufferFull or ctx.Err() is returned when it
// cannot be.
func (p *Publisher) Emit(ctx context.Context, event audit.Event) error {
	if event.ID == uuid.Nil {
		event.ID = uuid.New()
	}
	if event.Timestamp.IsZero() {
		event.Timestamp = p.timestamp(ctx)
	}
	if event.RequestID == "" {
		event.RequestID = requestcontext.RequestID(ctx)
	}
	if event.ClientIP == "" {
		event.ClientIP = requestcontext.ClientIP(ctx)
	}
	if event.Category == "" {
		event.Category = audit.AuditEvent(event.Action).Category()
	}

	if p.inbox == nil {
		ctx, cancel := context.WithTimeout(ctx, p.appendTimeout)
		defer cancel()
		return p.store.Append(ctx, event)
	}

	p.mu.RLock()
	defer p.mu.RUnlock()
	if p.closed {
		return ErrClosed
	}
	select {
	case p.inbox <- event:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	default:
		p.logger.WarnContext(ctx, "audit buffer full, dropping event",
			"action", event.Action,
			"caller", event.Caller,
		)
		return ErrBufferFull
	}
}

// List reads back a caller's events when the sink supports it.
func (p *Publisher) List(ctx context.Context, caller string) ([]audit.Event, error) {
	lister, ok := p.store.(Lister)
	if !ok {
		return nil, errors.New("audit sink does not support listing")
	}
	return lister.ListByCaller(ctx, caller)
}

// Close stops accepting events and, in async mode, waits until the buffer
// has been drained to the sink. Events still queued after the drain timeout
// are dropped.
func (p *Publisher) Close() {
	if p.inbox == nil {
		return
	}
	p.mu.Lock()
	if p.closed {
		p.mu.Unlock()
		return
	}
	p.closed = true
	close(p.inbox)
	p.mu.Unlock()

	timer := time.NewTimer(p.drainTimeout)
	defer timer.Stop()
	select {
	case <-p.done:
	case <-timer.C:
		p.logger.Warn("audit drain timed out, dropping queued events",
			"pending", len(p.inbox),
			"timeout", p.drainTimeout,
		)
	}
	p.stop()
	<-p.done
}
