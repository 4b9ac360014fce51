// Package jwttoken mints and checks the HS256 bearer tokens that name a vault
// caller. The token subject is the caller identity in canonical text form.
package jwttoken

import (
	"errors"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"

	"shieldvault/pkg/domain"
	dErrors "shieldvault/pkg/domain-errors"
)

type Claims struct {
	APIVer string `json:"api_ver,omitempty"`
	jwt.RegisteredClaims
}

// APIVersion returns the api_ver claim unchecked, or the default version for
// tokens minted without one. Routes decide whether they accept it.
func (c *Claims) APIVersion() domain.APIVersion {
	if c.APIVer == "" {
		return domain.DefaultVersion()
	}
	return domain.APIVersion(c.APIVer)
}

// JWTService signs and verifies tokens for one issuer/audience pair.
type JWTService struct {
	key      []byte
	issuer   string
	audience string
	now      func() time.Time
}

func NewJWTService(signingKey, issuer, audience string) *JWTService {
	return &JWTService{
		key:      []byte(signingKey),
		issuer:   issuer,
		audience: audience,
		now:      time.Now,
	}
}

// GenerateAccessToken mints a token for caller valid for ttl.
func (s *JWTService) GenerateAccessToken(caller domain.Identity, ttl time.Duration) (string, error) {
	if caller.IsZero() {
		return "", dErrors.New(dErrors.CodeInvalidInput, "token subject is required")
	}
	issued := s.now()
	claims := Claims{
		APIVer: domain.DefaultVersion().String(),
		RegisteredClaims: jwt.RegisteredClaims{
			ID:        uuid.NewString(),
			Subject:   caller.String(),
			Issuer:    s.issuer,
			Audience:  jwt.ClaimStrings{s.audience},
			IssuedAt:  jwt.NewNumericDate(issued),
			ExpiresAt: jwt.NewNumericDate(issued.Add(ttl)),
		},
	}
	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(s.key)
	if err != nil {
		return "", dErrors.Wrap(err, dErrors.CodeInternal, "sign token")
	}
	return signed, nil
}

// ValidateToken verifies signature, issuer, audience and expiry. Failures
// carry CodeUnauthorized.
func (s *JWTService) ValidateToken(raw string) (*Claims, error) {
	claims := &Claims{}
	_, err := jwt.ParseWithClaims(raw, claims, s.keyFor,
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithIssuer(s.issuer),
		jwt.WithAudience(s.audience),
		jwt.WithExpirationRequired(),
		jwt.WithTimeFunc(s.now),
	)
	switch {
	case errors.Is(err, jwt.ErrTokenExpired):
		return nil, dErrors.New(dErrors.CodeUnauthorized, "token has expired")
	case err != nil:
		return nil, dErrors.New(dErrors.CodeUnauthorized, "invalid token")
	}
	return claims, nil
}

func (s *JWTService) keyFor(*jwt.Token) (any, error) {
	return s.key, nil
}
