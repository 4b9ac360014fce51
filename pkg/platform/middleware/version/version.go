// Package version tags requests with the API version of the route they hit
// and rejects bearer tokens minted for a newer version than the route.
package version

import (
	"log/slog"
	"net/http"

	"shieldvault/pkg/domain"
	dErrors "shieldvault/pkg/domain-errors"
	"shieldvault/pkg/platform/httputil"
	"shieldvault/pkg/requestcontext"
)

// ExtractVersion stamps v on every request routed through the group it is
// mounted on.
func ExtractVersion(v domain.APIVersion) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			next.ServeHTTP(w, r.WithContext(requestcontext.WithAPIVersion(r.Context(), v)))
		})
	}
}

// ValidateTokenVersion must run after ExtractVersion and the auth middleware.
// Tokens without a version claim count as v1.
func ValidateTokenVersion(logger *slog.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ctx := r.Context()
			route := requestcontext.APIVersion(ctx)
			if route.IsNil() {
				logger.ErrorContext(ctx, "route has no api version", "path", r.URL.Path)
				httputil.WriteError(w, dErrors.New(dErrors.CodeInternal, "route version not configured"))
				return
			}

			token := requestcontext.TokenAPIVersion(ctx)
			if token.IsNil() {
				token = domain.APIVersionV1
			}
			if !route.Accepts(token) {
				caller, _ := requestcontext.Caller(ctx)
				logger.WarnContext(ctx, "token api version rejected",
					"token_version", token.String(),
					"route_version", route.String(),
					"caller", caller.String(),
				)
				httputil.WriteError(w, dErrors.New(dErrors.CodeForbidden,
					"token was issued for api "+token.String()+", route serves "+route.String()))
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}
