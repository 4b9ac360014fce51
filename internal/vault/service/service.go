// Package service implements the vault operations: admin-gated allowlist and
// limit management, self-service safety modes, and action authorization.
//
// Every operation runs inside exactly one store transaction. A failed call
// returns exactly one coded error and commits nothing.
package service

import (
	"context"
	"errors"
	"log/slog"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"shieldvault/internal/vault/metrics"
	"shieldvault/internal/vault/ports"
	"shieldvault/internal/vault/state"
	dErrors "shieldvault/pkg/domain-errors"
	"shieldvault/pkg/platform/audit"
	"shieldvault/pkg/platform/sentinel"
)

// Type aliases for interfaces from ports package.
type (
	Store          = ports.Store
	KV             = ports.KV
	AuditPublisher = ports.AuditPublisher
)

const tracerName = "shieldvault/internal/vault/service"

type Service struct {
	store          Store
	auditPublisher AuditPublisher
	logger         *slog.Logger
	metrics        *metrics.Metrics
	tracer         trace.Tracer
	logAudit       bool
}

type Option func(*Service)

func WithLogger(logger *slog.Logger) Option {
	return func(s *Service) {
		s.logger = logger
	}
}

func WithAuditPublisher(publisher AuditPublisher) Option {
	return func(s *Service) {
		s.auditPublisher = publisher
	}
}

func WithMetrics(m *metrics.Metrics) Option {
	return func(s *Service) {
		s.metrics = m
	}
}

// WithAuditLogging controls the service's own log line per audit event.
// Disable it when the audit publisher already writes to the log.
func WithAuditLogging(enabled bool) Option {
	return func(s *Service) {
		s.logAudit = enabled
	}
}

// WithTracer overrides the tracer taken from the global provider.
func WithTracer(tracer trace.Tracer) Option {
	return func(s *Service) {
		s.tracer = tracer
	}
}

func New(store Store, opts ...Option) (*Service, error) {
	if store == nil {
		return nil, errors.New("store is required")
	}

	svc := &Service{
		store:    store,
		logger:   slog.New(slog.DiscardHandler),
		tracer:   otel.Tracer(tracerName),
		logAudit: true,
	}

	for _, opt := range opts {
		opt(svc)
	}

	return svc, nil
}

// view runs fn against a read-only snapshot.
func (s *Service) view(ctx context.Context, fn func(ctx context.Context, st *state.State) error) error {
	err := s.store.View(ctx, func(ctx context.Context, kv ports.KV) error {
		return fn(ctx, state.New(kv))
	})
	return s.translate(err)
}

// update runs fn in a read-write transaction.
func (s *Service) update(ctx context.Context, fn func(ctx context.Context, st *state.State) error) error {
	err := s.store.Update(ctx, func(ctx context.Context, kv ports.KV) error {
		return fn(ctx, state.New(kv))
	})
	return s.translate(err)
}

// translate keeps policy and validation errors as they are and maps
// infrastructure failures onto domain codes. Infrastructure causes win over
// an internal wrapper added inside the transaction.
func (s *Service) translate(err error) error {
	if err == nil {
		return nil
	}
	var de *dErrors.Error
	if errors.As(err, &de) && de.Code != dErrors.CodeInternal {
		return err
	}
	switch {
	case errors.Is(err, sentinel.ErrConflict):
		if s.metrics != nil {
			s.metrics.IncrementStoreConflicts()
		}
		return dErrors.Wrap(err, dErrors.CodeConflict, "concurrent update, retry the call")
	case errors.Is(err, context.DeadlineExceeded), errors.Is(err, context.Canceled):
		return dErrors.Wrap(err, dErrors.CodeTimeout, "request cancelled before it completed")
	case errors.Is(err, sentinel.ErrUnavailable):
		return dErrors.Wrap(err, dErrors.CodeUnavailable, "vault store is unavailable")
	case de != nil:
		return err
	default:
		return dErrors.Wrap(err, dErrors.CodeInternal, "vault store failure")
	}
}

func (s *Service) startSpan(ctx context.Context, name string, attrs ...attribute.KeyValue) (context.Context, trace.Span) {
	return s.tracer.Start(ctx, "vault."+name, trace.WithAttributes(attrs...))
}

// endSpan records err on span and ends it.
func endSpan(span trace.Span, err error) {
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, string(dErrors.CodeOf(err)))
	}
	span.End()
}

func (s *Service) emit(ctx context.Context, event audit.Event, attrs ...any) {
	if !s.logAudit {
		ports.EmitAudit(ctx, s.logger, s.auditPublisher, event)
		return
	}
	ports.LogAudit(ctx, s.logger, s.auditPublisher, event, attrs...)
}

func result(err error) string {
	if err == nil {
		return "ok"
	}
	return string(dErrors.CodeOf(err))
}
