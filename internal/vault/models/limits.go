package models

import (
	"math/big"
	"strings"

	dErrors "shieldvault/pkg/domain-errors"
)

const (
	DefaultSafeLimit     = 1000
	DefaultBalancedLimit = 10000
)

// MaxAmountBits bounds amounts and limits to an unsigned 512-bit integer.
const MaxAmountBits = 512

// maxAmountDigits is the decimal width of 2^512-1.
const maxAmountDigits = 155

// Limits is the per-mode maximum transaction amount table. Degenerate has no
// limit.
type Limits struct {
	Safe     *big.Int
	Balanced *big.Int
}

// DefaultLimits returns the limits in force before the admin overrides them.
func DefaultLimits() Limits {
	return Limits{
		Safe:     big.NewInt(DefaultSafeLimit),
		Balanced: big.NewInt(DefaultBalancedLimit),
	}
}

// For returns the limit applying to mode. ok is false for modes without a
// limit.
func (l Limits) For(mode SafetyMode) (*big.Int, bool) {
	switch mode {
	case ModeSafe:
		return l.Safe, true
	case ModeBalanced:
		return l.Balanced, true
	default:
		return nil, false
	}
}

// LimitsUpdate carries an admin override. Nil fields are left untouched.
type LimitsUpdate struct {
	Safe     *big.Int
	Balanced *big.Int
}

// IsEmpty reports whether the update changes nothing.
func (u LimitsUpdate) IsEmpty() bool {
	return u.Safe == nil && u.Balanced == nil
}

func (u LimitsUpdate) Validate() error {
	if u.Safe != nil {
		if err := ValidateAmount("safe limit", u.Safe); err != nil {
			return err
		}
	}
	if u.Balanced != nil {
		if err := ValidateAmount("balanced limit", u.Balanced); err != nil {
			return err
		}
	}
	return nil
}

// ValidateAmount checks that v is present, non-negative and fits in
// MaxAmountBits.
func ValidateAmount(field string, v *big.Int) error {
	if v == nil {
		return dErrors.New(dErrors.CodeValidation, field+" is required")
	}
	if v.Sign() < 0 {
		return dErrors.New(dErrors.CodeValidation, field+" must not be negative")
	}
	if v.BitLen() > MaxAmountBits {
		return dErrors.New(dErrors.CodeValidation, field+" exceeds 512 bits")
	}
	return nil
}

// ParseAmount parses an unsigned decimal integer. Signs, exponents, fractions
// and whitespace inside the number are rejected.
func ParseAmount(field, s string) (*big.Int, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return nil, dErrors.New(dErrors.CodeValidation, field+" is required")
	}
	if len(s) > maxAmountDigits {
		return nil, dErrors.New(dErrors.CodeValidation, field+" exceeds 512 bits")
	}
	for i := 0; i < len(s); i++ {
		if s[i] < '0' || s[i] > '9' {
			return nil, dErrors.New(dErrors.CodeValidation, field+" must be an unsigned decimal integer")
		}
	}
	v, ok := new(big.Int).SetString(s, 10)
	if !ok {
		return nil, dErrors.New(dErrors.CodeValidation, field+" must be an unsigned decimal integer")
	}
	if err := ValidateAmount(field, v); err != nil {
		return nil, err
	}
	return v, nil
}
