// Package ports defines the interfaces the vault service depends on.
package ports

import (
	"context"
	"errors"
	"log/slog"

	"shieldvault/internal/vault/models"
	"shieldvault/pkg/platform/audit"
	request "shieldvault/pkg/platform/middleware/request"
	"shieldvault/pkg/requestcontext"
)

// ErrReadOnly is returned by KV.Set inside Store.View.
var ErrReadOnly = errors.New("write in read-only transaction")

// KV reads and writes raw values inside one store transaction.
type KV interface {
	// Get returns the value at key, or sentinel.ErrNotFound when absent.
	Get(ctx context.Context, key models.Key) ([]byte, error)

	// Set stages value at key. It becomes visible to later Gets in the same
	// transaction and is persisted only if the transaction commits.
	Set(ctx context.Context, key models.Key, value []byte) error
}

// TxFunc runs against one consistent snapshot of the store.
type TxFunc func(ctx context.Context, kv KV) error

// Store runs vault operations atomically.
type Store interface {
	// View runs fn against a read-only snapshot. Set returns ErrReadOnly.
	View(ctx context.Context, fn TxFunc) error

	// Update runs fn and commits all of its writes if fn returns nil, or
	// none of them otherwise. A concurrent conflicting write surfaces as
	// sentinel.ErrConflict.
	Update(ctx context.Context, fn TxFunc) error
}

// AuditPublisher emits audit events for vault operations.
type AuditPublisher interface {
	Emit(ctx context.Context, event audit.Event) error
}

// LogAudit logs event to the structured logger and emits it to the audit
// publisher when one is configured.
func LogAudit(ctx context.Context, logger *slog.Logger, publisher AuditPublisher, event audit.Event, attrs ...any) {
	event = withRequestMetadata(ctx, event)
	if event.RequestID != "" {
		attrs = append(attrs, "request_id", event.RequestID)
	}

	args := append(attrs, "event", event.Action, "log_type", "audit")

	if logger != nil {
		logger.InfoContext(ctx, event.Action, args...)
	}
	EmitAudit(ctx, logger, publisher, event)
}

// EmitAudit emits event without the log line, for publishers whose sink is
// the log. Emission failures are logged, never returned: an audit outage
// must not change a policy outcome.
func EmitAudit(ctx context.Context, logger *slog.Logger, publisher AuditPublisher, event audit.Event) {
	if publisher == nil {
		return
	}
	event = withRequestMetadata(ctx, event)
	if err := publisher.Emit(ctx, event); err != nil && logger != nil {
		logger.WarnContext(ctx, "failed to emit audit event", "event", event.Action, "error", err)
	}
}

func withRequestMetadata(ctx context.Context, event audit.Event) audit.Event {
	if event.RequestID == "" {
		event.RequestID = request.GetRequestID(ctx)
	}
	if event.ClientIP == "" {
		event.ClientIP = requestcontext.ClientIP(ctx)
	}
	return event
}
