package jwttoken

import (
	authmw "shieldvault/pkg/platform/middleware/auth"
)

// JWTServiceAdapter satisfies auth.JWTValidator, which the HTTP middleware and
// the gRPC interceptor both take.
type JWTServiceAdapter struct {
	service *JWTService
}

func NewJWTServiceAdapter(service *JWTService) *JWTServiceAdapter {
	return &JWTServiceAdapter{service: service}
}

func (a *JWTServiceAdapter) ValidateToken(raw string) (*authmw.JWTClaims, error) {
	claims, err := a.service.ValidateToken(raw)
	if err != nil {
		return nil, err
	}
	return &authmw.JWTClaims{
		Subject:    claims.Subject,
		JTI:        claims.ID,
		APIVersion: claims.APIVersion().String(),
	}, nil
}
