package models

import (
	"encoding/json"
	"math/big"
	"strings"

	"shieldvault/pkg/domain"
	dErrors "shieldvault/pkg/domain-errors"
)

const maxIdentityLength = 128

type SetModeRequest struct {
	Mode *int64 `json:"mode"`
}

// Follows validation order: Required -> Syntax. Values 3-255 pass here and
// are rejected by the service as an invalid mode.
func (r *SetModeRequest) Validate() error {
	if r == nil {
		return dErrors.New(dErrors.CodeBadRequest, "request is required")
	}
	if r.Mode == nil {
		return dErrors.New(dErrors.CodeValidation, "mode is required")
	}
	if *r.Mode < 0 || *r.Mode > 255 {
		return dErrors.New(dErrors.CodeValidation, "mode must fit in one byte")
	}
	return nil
}

// SafetyMode returns the requested mode. Call after Validate.
func (r *SetModeRequest) SafetyMode() SafetyMode {
	return SafetyMode(uint8(*r.Mode))
}

// ExecuteActionRequest is the body of execute and check calls. Amount accepts
// a JSON string or a bare integer.
type ExecuteActionRequest struct {
	Target string      `json:"target"`
	Amount json.Number `json:"amount"`

	target domain.Identity
	amount *big.Int
}

func (r *ExecuteActionRequest) Normalize() {
	if r == nil {
		return
	}
	r.Target = strings.TrimSpace(r.Target)
	r.Amount = json.Number(strings.TrimSpace(string(r.Amount)))
}

// Follows validation order: Size -> Required -> Syntax.
func (r *ExecuteActionRequest) Validate() error {
	if r == nil {
		return dErrors.New(dErrors.CodeBadRequest, "request is required")
	}
	if len(r.Target) > maxIdentityLength {
		return dErrors.New(dErrors.CodeValidation, "target is too long")
	}
	if r.Target == "" {
		return dErrors.New(dErrors.CodeValidation, "target is required")
	}
	target, err := domain.ParseIdentity(r.Target)
	if err != nil {
		return err
	}
	amount, err := ParseAmount("amount", string(r.Amount))
	if err != nil {
		return err
	}
	r.target, r.amount = target, amount
	return nil
}

// ActionRequest binds the validated body to caller. Call after Validate.
func (r *ExecuteActionRequest) ActionRequest(caller domain.Identity) ActionRequest {
	return ActionRequest{Caller: caller, Target: r.target, Amount: r.amount}
}

type AllowlistRequest struct {
	Target string `json:"target"`

	target domain.Identity
}

func (r *AllowlistRequest) Normalize() {
	if r == nil {
		return
	}
	r.Target = strings.TrimSpace(r.Target)
}

// Follows validation order: Size -> Required -> Syntax.
func (r *AllowlistRequest) Validate() error {
	if r == nil {
		return dErrors.New(dErrors.CodeBadRequest, "request is required")
	}
	if len(r.Target) > maxIdentityLength {
		return dErrors.New(dErrors.CodeValidation, "target is too long")
	}
	if r.Target == "" {
		return dErrors.New(dErrors.CodeValidation, "target is required")
	}
	target, err := domain.ParseIdentity(r.Target)
	if err != nil {
		return err
	}
	r.target = target
	return nil
}

// Identity returns the parsed target. Call after Validate.
func (r *AllowlistRequest) Identity() domain.Identity {
	return r.target
}

// UpdateLimitsRequest overrides one or both limits. Omitted fields are left
// untouched.
type UpdateLimitsRequest struct {
	Safe     json.Number `json:"safe,omitempty"`
	Balanced json.Number `json:"balanced,omitempty"`

	update LimitsUpdate
}

func (r *UpdateLimitsRequest) Normalize() {
	if r == nil {
		return
	}
	r.Safe = json.Number(strings.TrimSpace(string(r.Safe)))
	r.Balanced = json.Number(strings.TrimSpace(string(r.Balanced)))
}

// Follows validation order: Required -> Syntax.
func (r *UpdateLimitsRequest) Validate() error {
	if r == nil {
		return dErrors.New(dErrors.CodeBadRequest, "request is required")
	}
	var update LimitsUpdate
	if r.Safe != "" {
		v, err := ParseAmount("safe", string(r.Safe))
		if err != nil {
			return err
		}
		update.Safe = v
	}
	if r.Balanced != "" {
		v, err := ParseAmount("balanced", string(r.Balanced))
		if err != nil {
			return err
		}
		update.Balanced = v
	}
	r.update = update
	return nil
}

// Update returns the parsed override. Call after Validate.
func (r *UpdateLimitsRequest) Update() LimitsUpdate {
	return r.update
}
