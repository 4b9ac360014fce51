// Package requestcontext carries request-scoped values from the transports
// (HTTP middleware, gRPC interceptors) to the vault service and audit sink
// without either side importing the other.
package requestcontext

import (
	"context"
	"time"

	"shieldvault/pkg/domain"
)

// key is a typed context key; each value gets its own instantiation.
type key[T any] struct{ name string }

func (k key[T]) get(ctx context.Context) (T, bool) {
	v, ok := ctx.Value(k).(T)
	return v, ok
}

func (k key[T]) with(ctx context.Context, v T) context.Context {
	return context.WithValue(ctx, k, v)
}

var (
	callerKey       = key[domain.Identity]{"caller"}
	clientIPKey     = key[string]{"client_ip"}
	userAgentKey    = key[string]{"user_agent"}
	requestIDKey    = key[string]{"request_id"}
	requestTimeKey  = key[time.Time]{"request_time"}
	routeVersionKey = key[domain.APIVersion]{"route_api_version"}
	tokenVersionKey = key[domain.APIVersion]{"token_api_version"}
)

// Caller is the authenticated identity; ok is false when none was set.
func Caller(ctx context.Context) (domain.Identity, bool) {
	caller, ok := callerKey.get(ctx)
	if !ok || caller.IsZero() {
		return domain.Identity{}, false
	}
	return caller, true
}

func WithCaller(ctx context.Context, caller domain.Identity) context.Context {
	return callerKey.with(ctx, caller)
}

func ClientIP(ctx context.Context) string {
	ip, _ := clientIPKey.get(ctx)
	return ip
}

func UserAgent(ctx context.Context) string {
	ua, _ := userAgentKey.get(ctx)
	return ua
}

func WithClientMetadata(ctx context.Context, clientIP, userAgent string) context.Context {
	return userAgentKey.with(clientIPKey.with(ctx, clientIP), userAgent)
}

func RequestID(ctx context.Context) string {
	id, _ := requestIDKey.get(ctx)
	return id
}

func WithRequestID(ctx context.Context, requestID string) context.Context {
	return requestIDKey.with(ctx, requestID)
}

// RequestTime reports the start time stamped by the HTTP or gRPC layer.
func RequestTime(ctx context.Context) (time.Time, bool) {
	return requestTimeKey.get(ctx)
}

func WithTime(ctx context.Context, t time.Time) context.Context {
	return requestTimeKey.with(ctx, t)
}

// APIVersion is the version of the route serving the request.
func APIVersion(ctx context.Context) domain.APIVersion {
	v, _ := routeVersionKey.get(ctx)
	return v
}

func WithAPIVersion(ctx context.Context, v domain.APIVersion) context.Context {
	return routeVersionKey.with(ctx, v)
}

// TokenAPIVersion is the version claim of the caller's bearer token.
func TokenAPIVersion(ctx context.Context) domain.APIVersion {
	v, _ := tokenVersionKey.get(ctx)
	return v
}

func WithTokenAPIVersion(ctx context.Context, v domain.APIVersion) context.Context {
	return tokenVersionKey.with(ctx, v)
}
