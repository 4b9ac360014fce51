// Package logsink writes audit events to a structured logger. It is the
// default sink when no broker or database is configured.
package logsink

import (
	"context"
	"log/slog"

	audit "shieldvault/pkg/platform/audit"
)

type Sink struct {
	logger *slog.Logger
}

func New(logger *slog.Logger) *Sink {
	if logger == nil {
		logger = slog.Default()
	}
	return &Sink{logger: logger}
}

// Append logs the event at a level derived from its severity.
func (s *Sink) Append(ctx context.Context, event audit.Event) error {
	level := slog.LevelInfo
	switch audit.SeverityOf(event) {
	case audit.SeverityWarning, audit.SeverityCritical:
		level = slog.LevelWarn
	}
	s.logger.Log(ctx, level, "audit",
		"event_id", event.ID.String(),
		"category", string(event.Category),
		"action", event.Action,
		"caller", event.Caller,
		"subject", event.Subject,
		"mode", event.Mode,
		"amount", event.Amount,
		"decision", event.Decision,
		"reason", event.Reason,
		"vault_code", event.VaultCode,
		"request_id", event.RequestID,
	)
	return nil
}
