// Package auth turns a bearer token into the calling identity. The HTTP
// middleware and the gRPC interceptor share Authenticate.
package auth

import (
	"errors"
	"log/slog"
	"net/http"
	"strings"

	"shieldvault/pkg/domain"
	"shieldvault/pkg/platform/httputil"
	request "shieldvault/pkg/platform/middleware/request"
	"shieldvault/pkg/requestcontext"
)

// JWTValidator checks a raw token and returns its claims.
type JWTValidator interface {
	ValidateToken(tokenString string) (*JWTClaims, error)
}

type JWTClaims struct {
	Subject    string // caller identity, canonical text form
	APIVersion string
	JTI        string
}

// Authentication failures. Their text is safe to return to clients.
var (
	ErrMissingToken = errors.New("missing or invalid authorization header")
	ErrInvalidToken = errors.New("invalid or expired token")
	ErrBadSubject   = errors.New("token subject is not a valid identity")
)

// Principal is an authenticated caller. APIVersion is empty for tokens minted
// without a version claim.
type Principal struct {
	Caller     domain.Identity
	APIVersion domain.APIVersion
}

// BearerToken returns the token of an "Authorization: Bearer <token>" header value.
func BearerToken(header string) (string, bool) {
	token, ok := strings.CutPrefix(header, "Bearer ")
	if !ok || token == "" {
		return "", false
	}
	return token, true
}

// Error is an authentication failure. Error() is the client-safe Reason;
// Cause is the validator's own error, for logs.
type Error struct {
	Reason error
	Cause  error
}

func (e *Error) Error() string { return e.Reason.Error() }

func (e *Error) Unwrap() []error {
	if e.Cause == nil {
		return []error{e.Reason}
	}
	return []error{e.Reason, e.Cause}
}

// Authenticate validates an Authorization header value. Failures are *Error.
func Authenticate(v JWTValidator, authorization string) (Principal, error) {
	token, ok := BearerToken(authorization)
	if !ok {
		return Principal{}, &Error{Reason: ErrMissingToken}
	}
	claims, err := v.ValidateToken(token)
	if err != nil {
		return Principal{}, &Error{Reason: ErrInvalidToken, Cause: err}
	}
	caller, err := domain.ParseIdentity(claims.Subject)
	if err != nil {
		return Principal{}, &Error{Reason: ErrBadSubject, Cause: err}
	}
	return Principal{Caller: caller, APIVersion: domain.APIVersion(claims.APIVersion)}, nil
}

// LogCause returns the underlying validator error of an authentication
// failure, or nil.
func LogCause(err error) error {
	var ae *Error
	if errors.As(err, &ae) {
		return ae.Cause
	}
	return nil
}

// RequireAuth answers 401 unless the request carries a valid bearer token,
// then stores the caller and token version on the request context.
func RequireAuth(validator JWTValidator, logger *slog.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ctx := r.Context()
			p, err := Authenticate(validator, r.Header.Get("Authorization"))
			if err != nil {
				logger.WarnContext(ctx, "request rejected: "+err.Error(),
					"request_id", request.GetRequestID(ctx),
					"cause", LogCause(err),
				)
				httputil.WriteJSON(w, http.StatusUnauthorized, httputil.ErrorResponse{
					Error:            "unauthorized",
					ErrorDescription: err.Error(),
				})
				return
			}

			ctx = requestcontext.WithCaller(ctx, p.Caller)
			if !p.APIVersion.IsNil() {
				ctx = requestcontext.WithTokenAPIVersion(ctx, p.APIVersion)
			}
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}
