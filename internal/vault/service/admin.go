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

const (
	opInitialize      = "initialize"
	opAddAllowed      = string(models.OpAddAllowedContract)
	opRemoveAllowed   = string(models.OpRemoveAllowedContract)
	opUpdateLimits    = string(models.OpUpdateLimits)
	errNotAdminReason = "caller is not the admin"
)

// Initialize records caller as the vault admin and writes the default limits
// and an empty allowlist. It runs once: a second call fails with
// CodeConflict and leaves all state unchanged.
func (s *Service) Initialize(ctx context.Context, caller domain.Identity) (err error) {
	ctx, span := s.startSpan(ctx, "Initialize", attribute.String("caller", caller.String()))
	defer func() { endSpan(span, err) }()

	if caller.IsZero() {
		return dErrors.New(dErrors.CodeUnauthorized, "caller is required")
	}

	err = s.update(ctx, func(ctx context.Context, st *state.State) error {
		_, ok, err := st.Admin(ctx)
		if err != nil {
			return dErrors.Wrap(err, dErrors.CodeInternal, "failed to read admin")
		}
		if ok {
			return dErrors.New(dErrors.CodeConflict, "vault is already initialized")
		}
		if err := st.SetAdmin(ctx, caller); err != nil {
			return dErrors.Wrap(err, dErrors.CodeInternal, "failed to write admin")
		}
		defaults := models.DefaultLimits()
		if err := st.SetLimits(ctx, models.LimitsUpdate{Safe: defaults.Safe, Balanced: defaults.Balanced}); err != nil {
			return dErrors.Wrap(err, dErrors.CodeInternal, "failed to write default limits")
		}
		if err := st.SetAllowlist(ctx, models.AllowedSet{}); err != nil {
			return dErrors.Wrap(err, dErrors.CodeInternal, "failed to write allowlist")
		}
		return nil
	})
	s.recordAdmin(opInitialize, err)

	if err != nil {
		if dErrors.HasCode(err, dErrors.CodeConflict) {
			s.emit(ctx, audit.Event{
				Caller: caller.String(),
				Action: string(audit.EventInitializeRejected),
				Reason: dErrors.Message(err),
			}, "caller", caller.String())
		}
		return err
	}

	s.emit(ctx, audit.Event{
		Caller: caller.String(),
		Action: string(audit.EventVaultInitialized),
	}, "caller", caller.String())
	return nil
}

// AddAllowedContract adds target to the allowlist. Adding a present target
// succeeds without a write.
func (s *Service) AddAllowedContract(ctx context.Context, caller, target domain.Identity) (err error) {
	ctx, span := s.startSpan(ctx, "AddAllowedContract",
		attribute.String("caller", caller.String()),
		attribute.String("target", target.String()),
	)
	defer func() { endSpan(span, err) }()

	changed := false
	err = s.update(ctx, func(ctx context.Context, st *state.State) error {
		if err := requireAdmin(ctx, st, caller); err != nil {
			return err
		}
		if target.IsZero() {
			return dErrors.New(dErrors.CodeValidation, "target is required")
		}
		set, err := st.Allowlist(ctx)
		if err != nil {
			return dErrors.Wrap(err, dErrors.CodeInternal, "failed to read allowlist")
		}
		if !set.Add(target) {
			return nil
		}
		changed = true
		if err := st.SetAllowlist(ctx, set); err != nil {
			return dErrors.Wrap(err, dErrors.CodeInternal, "failed to write allowlist")
		}
		return nil
	})
	s.recordAdmin(opAddAllowed, err)

	if err != nil {
		s.rejected(ctx, opAddAllowed, caller, target, err)
		return err
	}

	s.emit(ctx, audit.Event{
		Caller:  caller.String(),
		Subject: target.String(),
		Action:  string(audit.EventAllowlistAdded),
		Reason:  unchangedReason(changed, "already allowlisted"),
	}, "caller", caller.String(), "target", target.String(), "changed", changed)
	return nil
}

// RemoveAllowedContract removes target from the allowlist. Removing an absent
// target succeeds without a write.
func (s *Service) RemoveAllowedContract(ctx context.Context, caller, target domain.Identity) (err error) {
	ctx, span := s.startSpan(ctx, "RemoveAllowedContract",
		attribute.String("caller", caller.String()),
		attribute.String("target", target.String()),
	)
	defer func() { endSpan(span, err) }()

	changed := false
	err = s.update(ctx, func(ctx context.Context, st *state.State) error {
		if err := requireAdmin(ctx, st, caller); err != nil {
			return err
		}
		if target.IsZero() {
			return dErrors.New(dErrors.CodeValidation, "target is required")
		}
		set, err := st.Allowlist(ctx)
		if err != nil {
			return dErrors.Wrap(err, dErrors.CodeInternal, "failed to read allowlist")
		}
		if !set.Remove(target) {
			return nil
		}
		changed = true
		if err := st.SetAllowlist(ctx, set); err != nil {
			return dErrors.Wrap(err, dErrors.CodeInternal, "failed to write allowlist")
		}
		return nil
	})
	s.recordAdmin(opRemoveAllowed, err)

	if err != nil {
		s.rejected(ctx, opRemoveAllowed, caller, target, err)
		return err
	}

	s.emit(ctx, audit.Event{
		Caller:  caller.String(),
		Subject: target.String(),
		Action:  string(audit.EventAllowlistRemoved),
		Reason:  unchangedReason(changed, "not allowlisted"),
	}, "caller", caller.String(), "target", target.String(), "changed", changed)
	return nil
}

// UpdateLimits overrides the present fields of update. The admin check runs
// before validation, so a non-admin always sees Unauthorized.
func (s *Service) UpdateLimits(ctx context.Context, caller domain.Identity, update models.LimitsUpdate) (err error) {
	ctx, span := s.startSpan(ctx, "UpdateLimits", attribute.String("caller", caller.String()))
	defer func() { endSpan(span, err) }()

	var after models.Limits
	err = s.update(ctx, func(ctx context.Context, st *state.State) error {
		if err := requireAdmin(ctx, st, caller); err != nil {
			return err
		}
		if err := update.Validate(); err != nil {
			return err
		}
		if update.IsEmpty() {
			return nil
		}
		if err := st.SetLimits(ctx, update); err != nil {
			return dErrors.Wrap(err, dErrors.CodeInternal, "failed to write limits")
		}
		limits, err := st.Limits(ctx)
		if err != nil {
			return dErrors.Wrap(err, dErrors.CodeInternal, "failed to read limits")
		}
		after = limits
		return nil
	})
	s.recordAdmin(opUpdateLimits, err)

	if err != nil {
		s.rejected(ctx, opUpdateLimits, caller, domain.Identity{}, err)
		return err
	}
	if update.IsEmpty() {
		return nil
	}

	s.emit(ctx, audit.Event{
		Caller: caller.String(),
		Action: string(audit.EventLimitsUpdated),
		Reason: "safe=" + after.Safe.String() + " balanced=" + after.Balanced.String(),
	}, "caller", caller.String(), "safe_limit", after.Safe.String(), "balanced_limit", after.Balanced.String())
	return nil
}

// AuthorizeAdmin runs the admin gate of op on its own. Transports call it
// before parsing the rest of an admin-only request, so a non-admin sees
// Unauthorized whatever the request holds. The operation checks again in its
// own transaction.
func (s *Service) AuthorizeAdmin(ctx context.Context, caller domain.Identity, op models.AdminOperation) (err error) {
	ctx, span := s.startSpan(ctx, "AuthorizeAdmin",
		attribute.String("caller", caller.String()),
		attribute.String("operation", string(op)),
	)
	defer func() { endSpan(span, err) }()

	err = s.view(ctx, func(ctx context.Context, st *state.State) error {
		return requireAdmin(ctx, st, caller)
	})
	if err != nil {
		s.recordAdmin(string(op), err)
		s.rejected(ctx, string(op), caller, domain.Identity{}, err)
	}
	return err
}

// requireAdmin is the first check of every admin-only operation. A vault
// without an admin record rejects everyone.
func requireAdmin(ctx context.Context, st *state.State, caller domain.Identity) error {
	if caller.IsZero() {
		return dErrors.New(dErrors.CodeUnauthorized, errNotAdminReason)
	}
	admin, ok, err := st.Admin(ctx)
	if err != nil {
		return dErrors.Wrap(err, dErrors.CodeInternal, "failed to read admin")
	}
	if !ok || admin != caller {
		return dErrors.New(dErrors.CodeUnauthorized, errNotAdminReason)
	}
	return nil
}

// rejected audits a failed admin call when the failure is the admin gate.
func (s *Service) rejected(ctx context.Context, op string, caller, subject domain.Identity, err error) {
	if !dErrors.HasCode(err, dErrors.CodeUnauthorized) {
		return
	}
	code, _ := dErrors.VaultCode(dErrors.CodeUnauthorized)
	s.emit(ctx, audit.Event{
		Caller:    caller.String(),
		Subject:   subject.String(),
		Action:    string(audit.EventAdminCallRejected),
		Reason:    op + ": " + errNotAdminReason,
		VaultCode: code,
	}, "caller", caller.String(), "operation", op)
}

func (s *Service) recordAdmin(op string, err error) {
	if s.metrics != nil {
		s.metrics.RecordAdminMutation(op, result(err))
	}
}

func unchangedReason(changed bool, reason string) string {
	if changed {
		return ""
	}
	return reason
}
