package auth

import (
	"errors"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"shieldvault/pkg/domain"
	"shieldvault/pkg/requestcontext"
)

const callerText = "account-hash-0102030405060708090a0b0c0d0e0f101112131415161718191a1b1c1d1e1f20"

type stubValidator struct {
	claims *JWTClaims
	err    error
}

func (s stubValidator) ValidateToken(string) (*JWTClaims, error) {
	return s.claims, s.err
}

func TestRequireAuth(t *testing.T) {
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))

	var gotCaller domain.Identity
	var gotVersion domain.APIVersion
	next := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotCaller, _ = requestcontext.Caller(r.Context())
		gotVersion = requestcontext.TokenAPIVersion(r.Context())
		w.WriteHeader(http.StatusOK)
	})

	t.Run("valid token sets caller", func(t *testing.T) {
		v := stubValidator{claims: &JWTClaims{Subject: callerText, APIVersion: "v1"}}
		req := httptest.NewRequest(http.MethodGet, "/", nil)
		req.Header.Set("Authorization", "Bearer tok")
		rec := httptest.NewRecorder()

		RequireAuth(v, logger)(next).ServeHTTP(rec, req)

		require.Equal(t, http.StatusOK, rec.Code)
		assert.Equal(t, domain.MustParseIdentity(callerText), gotCaller)
		assert.Equal(t, domain.APIVersionV1, gotVersion)
	})

	rejections := []struct {
		name   string
		header string
		v      stubValidator
		desc   string
	}{
		{"missing header", "", stubValidator{}, "missing or invalid authorization header"},
		{"non bearer scheme", "Basic abc", stubValidator{}, "missing or invalid authorization header"},
		{"empty bearer", "Bearer ", stubValidator{}, "missing or invalid authorization header"},
		{"invalid token", "Bearer tok", stubValidator{err: errors.New("expired")}, "invalid or expired token"},
		{"subject not an identity", "Bearer tok", stubValidator{claims: &JWTClaims{Subject: "alice"}}, "token subject is not a valid identity"},
	}
	for _, tt := range rejections {
		t.Run("rejects "+tt.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodGet, "/", nil)
			if tt.header != "" {
				req.Header.Set("Authorization", tt.header)
			}
			rec := httptest.NewRecorder()

			RequireAuth(tt.v, logger)(next).ServeHTTP(rec, req)

			assert.Equal(t, http.StatusUnauthorized, rec.Code)
			assert.JSONEq(t, `{"error":"unauthorized","error_description":"`+tt.desc+`"}`, rec.Body.String())
		})
	}
}

func TestAuthenticate(t *testing.T) {
	v := stubValidator{claims: &JWTClaims{Subject: callerText}}

	p, err := Authenticate(v, "Bearer tok")
	require.NoError(t, err)
	assert.Equal(t, callerText, p.Caller.String())
	assert.True(t, p.APIVersion.IsNil(), "no version claim")

	_, err = Authenticate(v, "")
	assert.ErrorIs(t, err, ErrMissingToken)
	assert.NoError(t, LogCause(err))

	expired := errors.New("token is expired")
	_, err = Authenticate(stubValidator{err: expired}, "Bearer tok")
	assert.ErrorIs(t, err, ErrInvalidToken)
	assert.ErrorIs(t, err, expired)
	assert.Equal(t, "invalid or expired token", err.Error())
	assert.Equal(t, expired, LogCause(err))
}
