package service

import (
	"context"
	"math/big"

	"shieldvault/internal/vault/models"
	"shieldvault/internal/vault/state"
	"shieldvault/pkg/domain"
	dErrors "shieldvault/pkg/domain-errors"
)

// Admin returns the admin identity, or CodeNotFound before initialization.
func (s *Service) Admin(ctx context.Context) (domain.Identity, error) {
	var admin domain.Identity
	err := s.view(ctx, func(ctx context.Context, st *state.State) error {
		id, ok, err := st.Admin(ctx)
		if err != nil {
			return dErrors.Wrap(err, dErrors.CodeInternal, "failed to read admin")
		}
		if !ok {
			return dErrors.New(dErrors.CodeNotFound, "vault is not initialized")
		}
		admin = id
		return nil
	})
	if err != nil {
		return domain.Identity{}, err
	}
	return admin, nil
}

// IsAdmin reports whether id is the admin. Before initialization nobody is.
func (s *Service) IsAdmin(ctx context.Context, id domain.Identity) (bool, error) {
	admin, err := s.Admin(ctx)
	if dErrors.HasCode(err, dErrors.CodeNotFound) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	return !id.IsZero() && admin == id, nil
}

// IsAllowed reports allowlist membership of target.
func (s *Service) IsAllowed(ctx context.Context, target domain.Identity) (bool, error) {
	set, err := s.allowlist(ctx)
	if err != nil {
		return false, err
	}
	return set.Contains(target), nil
}

// ListAllowedContracts returns the allowlist in identity order.
func (s *Service) ListAllowedContracts(ctx context.Context) ([]domain.Identity, error) {
	set, err := s.allowlist(ctx)
	if err != nil {
		return nil, err
	}
	return set.Sorted(), nil
}

// Limits returns the limits in force, defaults included.
func (s *Service) Limits(ctx context.Context) (models.Limits, error) {
	var limits models.Limits
	err := s.view(ctx, func(ctx context.Context, st *state.State) error {
		l, err := st.Limits(ctx)
		if err != nil {
			return dErrors.Wrap(err, dErrors.CodeInternal, "failed to read limits")
		}
		limits = l
		return nil
	})
	if err != nil {
		return models.Limits{}, err
	}
	return limits, nil
}

func (s *Service) SafeLimit(ctx context.Context) (*big.Int, error) {
	l, err := s.Limits(ctx)
	if err != nil {
		return nil, err
	}
	return l.Safe, nil
}

func (s *Service) BalancedLimit(ctx context.Context) (*big.Int, error) {
	l, err := s.Limits(ctx)
	if err != nil {
		return nil, err
	}
	return l.Balanced, nil
}

func (s *Service) allowlist(ctx context.Context) (models.AllowedSet, error) {
	var set models.AllowedSet
	err := s.view(ctx, func(ctx context.Context, st *state.State) error {
		got, err := st.Allowlist(ctx)
		if err != nil {
			return dErrors.Wrap(err, dErrors.CodeInternal, "failed to read allowlist")
		}
		set = got
		return nil
	})
	if err != nil {
		return nil, err
	}
	return set, nil
}
