// Package admin guards operator-only routes with the deployment's shared
// operator token.
package admin

import (
	"crypto/subtle"
	"log/slog"
	"net/http"

	dErrors "shieldvault/pkg/domain-errors"
	"shieldvault/pkg/platform/httputil"
	request "shieldvault/pkg/platform/middleware/request"
)

// HeaderOperatorToken carries the operator token on HTTP requests.
const HeaderOperatorToken = "X-Operator-Token"

// TokenMatches compares in constant time. An unset expected token matches
// nothing, which disables operator routes.
func TokenMatches(expected, presented string) bool {
	return expected != "" && subtle.ConstantTimeCompare([]byte(presented), []byte(expected)) == 1
}

// RequireOperatorToken answers 401 unless X-Operator-Token matches expected.
func RequireOperatorToken(expected string, logger *slog.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if !TokenMatches(expected, r.Header.Get(HeaderOperatorToken)) {
				ctx := r.Context()
				logger.WarnContext(ctx, "operator token mismatch",
					"request_id", request.GetRequestID(ctx),
					"path", r.URL.Path,
				)
				httputil.WriteError(w, dErrors.New(dErrors.CodeUnauthorized, "operator token required"))
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}
