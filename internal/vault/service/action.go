package service

import (
	"context"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"shieldvault/internal/vault/engine"
	"shieldvault/internal/vault/models"
	"shieldvault/internal/vault/state"
	dErrors "shieldvault/pkg/domain-errors"
	"shieldvault/pkg/platform/audit"
)

// ExecuteAction authorizes req under the caller's safety mode. A denied
// action returns the decision's coded error; an allowed one returns the
// decision with any advisory warnings. Nothing is written either way.
func (s *Service) ExecuteAction(ctx context.Context, req models.ActionRequest) (_ *models.Decision, err error) {
	ctx, span := s.startSpan(ctx, "ExecuteAction", actionAttrs(req)...)
	defer func() { endSpan(span, err) }()

	decision, err := s.decide(ctx, span, req)
	if err != nil {
		return nil, err
	}

	action := audit.EventActionAllowed
	if !decision.Allowed() {
		action = audit.EventActionDenied
	}
	s.auditDecision(ctx, action, req, decision)

	if !decision.Allowed() {
		return nil, decision.Err()
	}
	return decision, nil
}

// CheckAction evaluates req exactly like ExecuteAction but reports a denial
// in the returned decision instead of as an error.
func (s *Service) CheckAction(ctx context.Context, req models.ActionRequest) (_ *models.Decision, err error) {
	ctx, span := s.startSpan(ctx, "CheckAction", actionAttrs(req)...)
	defer func() { endSpan(span, err) }()

	decision, err := s.decide(ctx, span, req)
	if err != nil {
		return nil, err
	}
	s.auditDecision(ctx, audit.EventActionChecked, req, decision)
	return decision, nil
}

// decide resolves the caller's mode, the allowlist and the limits from one
// snapshot and runs the engine.
func (s *Service) decide(ctx context.Context, span trace.Span, req models.ActionRequest) (*models.Decision, error) {
	if err := req.Validate(); err != nil {
		return nil, err
	}
	start := time.Now()

	var in engine.Input
	err := s.view(ctx, func(ctx context.Context, st *state.State) error {
		mode, err := st.Mode(ctx, req.Caller)
		if err != nil {
			return dErrors.Wrap(err, dErrors.CodeInternal, "failed to read mode")
		}
		allowlist, err := st.Allowlist(ctx)
		if err != nil {
			return dErrors.Wrap(err, dErrors.CodeInternal, "failed to read allowlist")
		}
		limits, err := st.Limits(ctx)
		if err != nil {
			return dErrors.Wrap(err, dErrors.CodeInternal, "failed to read limits")
		}
		in = engine.Input{
			Mode:      mode,
			Target:    req.Target,
			Amount:    req.Amount,
			Allowlist: allowlist,
			Limits:    limits,
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	decision := engine.Evaluate(in)

	span.SetAttributes(
		attribute.String("mode", decision.Mode.String()),
		attribute.String("outcome", string(decision.Outcome)),
	)
	if s.metrics != nil {
		s.metrics.ObserveEvaluation(start)
		kind := ""
		if !decision.Allowed() {
			kind = decision.Kind.String()
		}
		s.metrics.RecordDecision(decision.Mode.String(), string(decision.Outcome), kind)
	}
	return &decision, nil
}

func (s *Service) auditDecision(ctx context.Context, action audit.AuditEvent, req models.ActionRequest, d *models.Decision) {
	event := audit.Event{
		Caller:   req.Caller.String(),
		Subject:  req.Target.String(),
		Action:   string(action),
		Mode:     d.Mode.String(),
		Amount:   req.Amount.String(),
		Decision: string(d.Outcome),
		Reason:   d.Reason,
	}
	if !d.Allowed() {
		event.VaultCode = uint16(d.Kind)
	}
	s.emit(ctx, event,
		"caller", req.Caller.String(),
		"target", req.Target.String(),
		"mode", d.Mode.String(),
		"outcome", string(d.Outcome),
	)

	for _, w := range d.Warnings {
		if s.metrics != nil {
			s.metrics.IncrementAdvisoryWarnings()
		}
		s.emit(ctx, audit.Event{
			Caller:   req.Caller.String(),
			Subject:  req.Target.String(),
			Action:   string(audit.EventAdvisoryWarning),
			Mode:     d.Mode.String(),
			Amount:   req.Amount.String(),
			Decision: string(d.Outcome),
			Reason:   w.Message,
		}, "advisory", w.Code)
	}
}

func actionAttrs(req models.ActionRequest) []attribute.KeyValue {
	attrs := []attribute.KeyValue{
		attribute.String("caller", req.Caller.String()),
		attribute.String("target", req.Target.String()),
	}
	if req.Amount != nil {
		attrs = append(attrs, attribute.String("amount", req.Amount.String()))
	}
	return attrs
}
