package models

import (
	"shieldvault/pkg/domain"
)

type AdminResponse struct {
	Admin string `json:"admin"`
}

type ModeResponse struct {
	Identity string `json:"identity"`
	Mode     uint8  `json:"mode"`
	Name     string `json:"name"`
}

func NewModeResponse(id domain.Identity, mode SafetyMode) *ModeResponse {
	return &ModeResponse{Identity: id.String(), Mode: uint8(mode), Name: mode.String()}
}

type DecisionResponse struct {
	Outcome   Outcome   `json:"outcome"`
	Mode      uint8     `json:"mode"`
	ModeName  string    `json:"mode_name"`
	Error     string    `json:"error,omitempty"`
	VaultCode uint16    `json:"vault_code,omitempty"`
	Reason    string    `json:"reason,omitempty"`
	Warnings  []Warning `json:"warnings,omitempty"`
}

func NewDecisionResponse(d *Decision) *DecisionResponse {
	resp := &DecisionResponse{
		Outcome:  d.Outcome,
		Mode:     uint8(d.Mode),
		ModeName: d.Mode.String(),
		Reason:   d.Reason,
		Warnings: d.Warnings,
	}
	if !d.Allowed() {
		resp.Error = d.Kind.String()
		resp.VaultCode = uint16(d.Kind)
	}
	return resp
}

type AllowlistResponse struct {
	Contracts []string `json:"contracts"`
}

func NewAllowlistResponse(ids []domain.Identity) *AllowlistResponse {
	out := make([]string, 0, len(ids))
	for _, id := range ids {
		out = append(out, id.String())
	}
	return &AllowlistResponse{Contracts: out}
}

type AllowedResponse struct {
	Target  string `json:"target"`
	Allowed bool   `json:"allowed"`
}

// LimitsResponse renders limits as decimal strings so 512-bit values survive
// JSON clients that parse numbers as float64.
type LimitsResponse struct {
	Safe     string `json:"safe"`
	Balanced string `json:"balanced"`
}

func NewLimitsResponse(l Limits) *LimitsResponse {
	return &LimitsResponse{Safe: l.Safe.String(), Balanced: l.Balanced.String()}
}
