// Package state gives typed access to the vault's persisted values inside one
// store transaction.
package state

import (
	"context"
	"errors"
	"fmt"
	"math/big"

	"shieldvault/internal/vault/models"
	"shieldvault/internal/vault/ports"
	"shieldvault/pkg/domain"
	"shieldvault/pkg/platform/sentinel"
)

// State wraps a transaction-scoped KV.
type State struct {
	kv ports.KV
}

func New(kv ports.KV) *State {
	return &State{kv: kv}
}

// Admin returns the admin identity. ok is false before initialization.
func (s *State) Admin(ctx context.Context) (domain.Identity, bool, error) {
	raw, err := s.kv.Get(ctx, models.KeyAdmin)
	if errors.Is(err, sentinel.ErrNotFound) {
		return domain.Identity{}, false, nil
	}
	if err != nil {
		return domain.Identity{}, false, fmt.Errorf("read admin: %w", err)
	}
	id, err := decodeIdentity(raw)
	if err != nil {
		return domain.Identity{}, false, err
	}
	return id, true, nil
}

func (s *State) SetAdmin(ctx context.Context, id domain.Identity) error {
	raw, err := encodeIdentity(id)
	if err != nil {
		return err
	}
	if err := s.kv.Set(ctx, models.KeyAdmin, raw); err != nil {
		return fmt.Errorf("write admin: %w", err)
	}
	return nil
}

// Mode returns the stored mode of id, or ModeSafe when none is stored. The
// raw byte is returned unvalidated so the engine can fail closed on it.
func (s *State) Mode(ctx context.Context, id domain.Identity) (models.SafetyMode, error) {
	raw, err := s.kv.Get(ctx, models.UserModeKey(id))
	if errors.Is(err, sentinel.ErrNotFound) {
		return models.ModeSafe, nil
	}
	if err != nil {
		return 0, fmt.Errorf("read mode: %w", err)
	}
	return decodeMode(raw)
}

func (s *State) SetMode(ctx context.Context, id domain.Identity, mode models.SafetyMode) error {
	if err := s.kv.Set(ctx, models.UserModeKey(id), encodeMode(mode)); err != nil {
		return fmt.Errorf("write mode: %w", err)
	}
	return nil
}

// Allowlist returns the allowed contract set; empty when none is stored.
func (s *State) Allowlist(ctx context.Context) (models.AllowedSet, error) {
	raw, err := s.kv.Get(ctx, models.KeyAllowedContracts)
	if errors.Is(err, sentinel.ErrNotFound) {
		return models.AllowedSet{}, nil
	}
	if err != nil {
		return nil, fmt.Errorf("read allowlist: %w", err)
	}
	return decodeAllowlist(raw)
}

// SetAllowlist writes the whole set as one value.
func (s *State) SetAllowlist(ctx context.Context, set models.AllowedSet) error {
	raw, err := encodeAllowlist(set)
	if err != nil {
		return err
	}
	if err := s.kv.Set(ctx, models.KeyAllowedContracts, raw); err != nil {
		return fmt.Errorf("write allowlist: %w", err)
	}
	return nil
}

// Limits returns both limits, each falling back to its default when unset.
func (s *State) Limits(ctx context.Context) (models.Limits, error) {
	safe, err := s.limit(ctx, models.KeySafeLimit, models.DefaultSafeLimit)
	if err != nil {
		return models.Limits{}, err
	}
	balanced, err := s.limit(ctx, models.KeyBalancedLimit, models.DefaultBalancedLimit)
	if err != nil {
		return models.Limits{}, err
	}
	return models.Limits{Safe: safe, Balanced: balanced}, nil
}

// SetLimits writes the present fields of u.
func (s *State) SetLimits(ctx context.Context, u models.LimitsUpdate) error {
	if u.Safe != nil {
		if err := s.setLimit(ctx, models.KeySafeLimit, u.Safe); err != nil {
			return err
		}
	}
	if u.Balanced != nil {
		if err := s.setLimit(ctx, models.KeyBalancedLimit, u.Balanced); err != nil {
			return err
		}
	}
	return nil
}

func (s *State) limit(ctx context.Context, key models.Key, fallback int64) (*big.Int, error) {
	raw, err := s.kv.Get(ctx, key)
	if errors.Is(err, sentinel.ErrNotFound) {
		return big.NewInt(fallback), nil
	}
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", key, err)
	}
	return decodeAmount(raw)
}

func (s *State) setLimit(ctx context.Context, key models.Key, v *big.Int) error {
	raw, err := encodeAmount(v)
	if err != nil {
		return err
	}
	if err := s.kv.Set(ctx, key, raw); err != nil {
		return fmt.Errorf("write %s: %w", key, err)
	}
	return nil
}
