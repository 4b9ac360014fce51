// Package engine evaluates a single action request against the caller's
// safety mode. Evaluation is pure: it reads its input and nothing else.
package engine

import (
	"math/big"

	"shieldvault/internal/vault/models"
	"shieldvault/pkg/domain"
)

// Input is everything one evaluation needs, resolved from one snapshot.
type Input struct {
	Mode      models.SafetyMode
	Target    domain.Identity
	Amount    *big.Int
	Allowlist models.AllowedSet
	Limits    models.Limits
}

// Evaluate applies the decision table for in.Mode.
//
// Evaluation order (must not be changed):
//
//	Safe:       allowlist membership, then amount <= safe limit
//	Balanced:   amount <= balanced limit, then advisory allowlist check
//	Degenerate: allow
//	other:      deny with InvalidMode
//
// The first failing check decides the error kind.
func Evaluate(in Input) models.Decision {
	switch in.Mode {
	case models.ModeSafe:
		if !in.Allowlist.Contains(in.Target) {
			return models.Deny(in.Mode, models.KindContractNotAllowed, "target is not in the allowlist")
		}
		if exceeds(in.Amount, in.Limits, in.Mode) {
			return models.Deny(in.Mode, models.KindAmountExceedsLimit, "amount exceeds the safe mode limit")
		}
		return models.Allow(in.Mode)

	case models.ModeBalanced:
		if exceeds(in.Amount, in.Limits, in.Mode) {
			return models.Deny(in.Mode, models.KindAmountExceedsLimit, "amount exceeds the balanced mode limit")
		}
		if !in.Allowlist.Contains(in.Target) {
			return models.Allow(in.Mode, models.Warning{
				Code:    models.WarningTargetNotAllowlisted,
				Message: "target is not in the allowlist",
			})
		}
		return models.Allow(in.Mode)

	case models.ModeDegenerate:
		return models.Allow(in.Mode)

	default:
		return models.Deny(in.Mode, models.KindInvalidMode, "stored safety mode is not recognized")
	}
}

// exceeds reports amount > the limit of mode. A missing limit or amount
// fails closed.
func exceeds(amount *big.Int, limits models.Limits, mode models.SafetyMode) bool {
	limit, ok := limits.For(mode)
	if !ok || amount == nil || limit == nil {
		return true
	}
	return amount.Cmp(limit) > 0
}
