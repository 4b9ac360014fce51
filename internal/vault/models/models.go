package models

import (
	"fmt"
	"math/big"
	"strconv"
	"strings"

	"shieldvault/pkg/domain"
	dErrors "shieldvault/pkg/domain-errors"
)

// SafetyMode is the policy tier an identity runs under. The numeric values are
// part of the external interface and are persisted as a single byte.
type SafetyMode uint8

const (
	ModeSafe       SafetyMode = 0
	ModeBalanced   SafetyMode = 1
	ModeDegenerate SafetyMode = 2
)

// IsValid reports whether m is one of the three defined modes.
func (m SafetyMode) IsValid() bool {
	return m <= ModeDegenerate
}

func (m SafetyMode) String() string {
	switch m {
	case ModeSafe:
		return "safe"
	case ModeBalanced:
		return "balanced"
	case ModeDegenerate:
		return "degenerate"
	default:
		return "invalid(" + strconv.Itoa(int(m)) + ")"
	}
}

// ParseSafetyMode accepts a mode name or its numeric value. Unknown names are
// CodeInvalidMode; numbers outside 0-255 are CodeValidation.
func ParseSafetyMode(s string) (SafetyMode, error) {
	s = strings.TrimSpace(strings.ToLower(s))
	switch s {
	case "safe":
		return ModeSafe, nil
	case "balanced":
		return ModeBalanced, nil
	case "degenerate":
		return ModeDegenerate, nil
	}
	n, err := strconv.ParseUint(s, 10, 8)
	if err != nil {
		if _, intErr := strconv.ParseInt(s, 10, 64); intErr == nil {
			return 0, dErrors.New(dErrors.CodeValidation, "mode must fit in one byte")
		}
		return 0, dErrors.New(dErrors.CodeInvalidMode, fmt.Sprintf("unknown safety mode %q", s))
	}
	return SafetyMode(n), nil
}

// ErrorKind is the numeric failure code returned to callers of the vault.
type ErrorKind uint16

const (
	KindUnauthorized       ErrorKind = 1
	KindContractNotAllowed ErrorKind = 2
	KindAmountExceedsLimit ErrorKind = 3
	KindInvalidMode        ErrorKind = 4
)

// Code returns the domain error code for the kind.
func (k ErrorKind) Code() dErrors.Code {
	code, ok := dErrors.FromVaultCode(uint16(k))
	if !ok {
		return dErrors.CodeInternal
	}
	return code
}

func (k ErrorKind) String() string {
	if code, ok := dErrors.FromVaultCode(uint16(k)); ok {
		return string(code)
	}
	return "unknown"
}

// KindOf extracts the vault error kind carried by err, if any.
func KindOf(err error) (ErrorKind, bool) {
	if err == nil {
		return 0, false
	}
	n, ok := dErrors.VaultCode(dErrors.CodeOf(err))
	if !ok {
		return 0, false
	}
	return ErrorKind(n), true
}

// Outcome is the binary result of a policy evaluation.
type Outcome string

const (
	OutcomeAllow Outcome = "allow"
	OutcomeDeny  Outcome = "deny"
)

// WarningTargetNotAllowlisted is raised in Balanced mode when the target is
// outside the allowlist. It never blocks.
const WarningTargetNotAllowlisted = "target_not_allowlisted"

// Warning is a non-blocking advisory attached to an allowed decision.
type Warning struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

// Decision is the output of the policy engine for one action request.
type Decision struct {
	Outcome  Outcome    `json:"outcome"`
	Kind     ErrorKind  `json:"kind,omitempty"`
	Mode     SafetyMode `json:"mode"`
	Reason   string     `json:"reason,omitempty"`
	Warnings []Warning  `json:"warnings,omitempty"`
}

// Allowed reports whether the decision permits the action.
func (d Decision) Allowed() bool {
	return d.Outcome == OutcomeAllow
}

// Err returns nil for an allowed decision, otherwise a domain error carrying
// the decision's kind.
func (d Decision) Err() error {
	if d.Allowed() {
		return nil
	}
	return dErrors.New(d.Kind.Code(), d.Reason)
}

// Allow builds an allowed decision.
func Allow(mode SafetyMode, warnings ...Warning) Decision {
	return Decision{Outcome: OutcomeAllow, Mode: mode, Warnings: warnings}
}

// Deny builds a denied decision.
func Deny(mode SafetyMode, kind ErrorKind, reason string) Decision {
	return Decision{Outcome: OutcomeDeny, Kind: kind, Mode: mode, Reason: reason}
}

// ActionRequest is a single caller's request to perform a guarded action.
type ActionRequest struct {
	Caller domain.Identity
	Target domain.Identity
	Amount *big.Int
}

// Validate checks the request shape. Policy checks are the engine's job.
func (r ActionRequest) Validate() error {
	if r.Caller.IsZero() {
		return dErrors.New(dErrors.CodeUnauthorized, "caller is required")
	}
	if r.Target.IsZero() {
		return dErrors.New(dErrors.CodeValidation, "target is required")
	}
	return ValidateAmount("amount", r.Amount)
}

// AdminOperation names an admin-only vault operation.
type AdminOperation string

const (
	OpAddAllowedContract    AdminOperation = "add_allowed_contract"
	OpRemoveAllowedContract AdminOperation = "remove_allowed_contract"
	OpUpdateLimits          AdminOperation = "update_limits"
)

// ParseAdminOperation accepts one of the admin-only operation names.
func ParseAdminOperation(s string) (AdminOperation, error) {
	switch op := AdminOperation(strings.TrimSpace(s)); op {
	case OpAddAllowedContract, OpRemoveAllowedContract, OpUpdateLimits:
		return op, nil
	default:
		return "", dErrors.New(dErrors.CodeValidation, fmt.Sprintf("unknown admin operation %q", s))
	}
}
