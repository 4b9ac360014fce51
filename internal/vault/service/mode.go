package service

import (
	"context"

	"go.opentelemetry.io/otel/attribute"

	"shieldvault/internal/vault/models"
	"shieldvault/internal/vault/state"
	"shieldvault/pkg/domain"
	dErrors "shieldvault/pkg/domain-errors"
	"shieldvault/pkg/platform/audit"
)

// SetMode sets the caller's own safety mode. Values outside {0,1,2} fail
// with CodeInvalidMode before anything is read or written.
func (s *Service) SetMode(ctx context.Context, caller domain.Identity, mode models.SafetyMode) (err error) {
	ctx, span := s.startSpan(ctx, "SetMode",
		attribute.String("caller", caller.String()),
		attribute.Int("mode", int(mode)),
	)
	defer func() { endSpan(span, err) }()

	if caller.IsZero() {
		return dErrors.New(dErrors.CodeUnauthorized, "caller is required")
	}
	if !mode.IsValid() {
		err = dErrors.New(dErrors.CodeInvalidMode, "safety mode must be 0 (safe), 1 (balanced) or 2 (degenerate)")
		code, _ := dErrors.VaultCode(dErrors.CodeInvalidMode)
		s.emit(ctx, audit.Event{
			Caller:    caller.String(),
			Action:    string(audit.EventModeRejected),
			Mode:      mode.String(),
			Reason:    dErrors.Message(err),
			VaultCode: code,
		}, "caller", caller.String(), "mode", int(mode))
		return err
	}

	err = s.update(ctx, func(ctx context.Context, st *state.State) error {
		if err := st.SetMode(ctx, caller, mode); err != nil {
			return dErrors.Wrap(err, dErrors.CodeInternal, "failed to write mode")
		}
		return nil
	})
	if err != nil {
		return err
	}

	if s.metrics != nil {
		s.metrics.RecordModeChange(mode.String())
	}
	s.emit(ctx, audit.Event{
		Caller: caller.String(),
		Action: string(audit.EventModeChanged),
		Mode:   mode.String(),
	}, "caller", caller.String(), "mode", mode.String())
	return nil
}

// GetMode returns the stored mode of id, ModeSafe when none is stored. A
// corrupted stored byte is returned as is.
func (s *Service) GetMode(ctx context.Context, id domain.Identity) (models.SafetyMode, error) {
	var mode models.SafetyMode
	err := s.view(ctx, func(ctx context.Context, st *state.State) error {
		m, err := st.Mode(ctx, id)
		if err != nil {
			return dErrors.Wrap(err, dErrors.CodeInternal, "failed to read mode")
		}
		mode = m
		return nil
	})
	if err != nil {
		return 0, err
	}
	return mode, nil
}
