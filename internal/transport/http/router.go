package httptransport

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"

	"shieldvault/internal/platform/metrics"
	vaulthandler "shieldvault/internal/vault/handler"
	"shieldvault/pkg/domain"
	"shieldvault/pkg/platform/httputil"
	"shieldvault/pkg/platform/middleware/auth"
	"shieldvault/pkg/platform/middleware/metadata"
	request "shieldvault/pkg/platform/middleware/request"
	"shieldvault/pkg/platform/middleware/requesttime"
	"shieldvault/pkg/platform/middleware/version"
)

// RequestTimeout bounds every request served by the router.
const RequestTimeout = 30 * time.Second

// Deps are the components mounted by NewRouter. Metrics and Ready are
// optional.
type Deps struct {
	Logger    *slog.Logger
	Validator auth.JWTValidator
	Metrics   *metrics.Metrics
	Vault     *vaulthandler.Handler
	Ready     func(ctx context.Context) error
}

// NewRouter wires the public endpoints. Business routes live under /v1 and
// require a bearer token; health and metrics are unauthenticated.
func NewRouter(deps Deps) http.Handler {
	r := chi.NewRouter()
	r.Use(chimw.Recoverer)
	r.Use(request.RequestID)
	r.Use(metadata.ClientMetadata)
	r.Use(requesttime.Middleware)
	r.Use(accessLog(deps.Logger, deps.Metrics))
	r.Use(chimw.Timeout(RequestTimeout))

	r.Get("/healthz", handleHealth(deps.Ready))
	if deps.Metrics != nil {
		r.Handle("/metrics", deps.Metrics.Handler())
	}

	r.Route("/v1", func(v1 chi.Router) {
		v1.Use(version.ExtractVersion(domain.APIVersionV1))
		v1.Group(func(r chi.Router) {
			r.Use(auth.RequireAuth(deps.Validator, deps.Logger))
			r.Use(version.ValidateTokenVersion(deps.Logger))
			deps.Vault.Register(r)
		})
	})

	return r
}

func handleHealth(ready func(ctx context.Context) error) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if ready != nil {
			if err := ready(r.Context()); err != nil {
				httputil.WriteJSON(w, http.StatusServiceUnavailable, map[string]string{"status": "unavailable"})
				return
			}
		}
		httputil.WriteJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	}
}

// accessLog logs every request at debug level and records its latency by
// route pattern.
func accessLog(logger *slog.Logger, m *metrics.Metrics) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()
			ww := chimw.NewWrapResponseWriter(w, r.ProtoMajor)
			next.ServeHTTP(ww, r)

			route := "unmatched"
			if rctx := chi.RouteContext(r.Context()); rctx != nil && rctx.RoutePattern() != "" {
				route = rctx.RoutePattern()
			}
			status := ww.Status()
			if status == 0 {
				status = http.StatusOK
			}
			elapsed := time.Since(start)

			if m != nil {
				m.ObserveHTTPRequest(route, r.Method, status, elapsed.Seconds())
			}
			logger.DebugContext(r.Context(), "http request",
				"request_id", request.GetRequestID(r.Context()),
				"method", r.Method,
				"route", route,
				"status", status,
				"duration_ms", elapsed.Milliseconds(),
			)
		})
	}
}
