// Package requesttime stamps each request with its start time. Audit events
// raised while serving the request take that time as their timestamp.
package requesttime

import (
	"net/http"
	"time"

	"shieldvault/pkg/requestcontext"
)

func Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		next.ServeHTTP(w, r.WithContext(requestcontext.WithTime(r.Context(), time.Now())))
	})
}
