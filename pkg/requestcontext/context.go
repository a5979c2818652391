// Package requestcontext provides HTTP-independent context accessors for request-scoped values.
//
// Context keys and getter/setter functions live here for values that are set
// by middleware but consumed by services. The package stays free of net/http
// so services can import it without pulling in transport code.
//
// Usage in services (read values):
//
//	ref := requestcontext.CallerRef(ctx)
//	requestID := requestcontext.RequestID(ctx)
//	now := requestcontext.Now(ctx)
//
// Usage in middleware (set values):
//
//	ctx = requestcontext.WithCallerRef(ctx, ref)
//	ctx = requestcontext.WithRequestID(ctx, requestID)
//
// Usage in tests (inject values):
//
//	ctx = requestcontext.WithTime(ctx, fixedTime)
package requestcontext

import (
	"context"
	"time"

	"ocpigw/pkg/ocpi"
)

// Context key types (unexported for encapsulation).
type (
	callerRefKey   struct{}
	callerTokenKey struct{}
	requestIDKey   struct{}
	requestTimeKey struct{}
)

// Exported context keys for direct use in tests that need context.WithValue.
var (
	ContextKeyCallerRef   = callerRefKey{}
	ContextKeyCallerToken = callerTokenKey{}
	ContextKeyRequestID   = requestIDKey{}
	ContextKeyRequestTime = requestTimeKey{}
)

// CallerRef retrieves the identity of the authenticated peer resolved by the
// access gate. Returns the zero ref for anonymous requests.
func CallerRef(ctx context.Context) ocpi.PartyRef {
	if ref, ok := ctx.Value(ContextKeyCallerRef).(ocpi.PartyRef); ok {
		return ref
	}
	return ocpi.PartyRef{}
}

// WithCallerRef injects the authenticated peer identity into the context.
func WithCallerRef(ctx context.Context, ref ocpi.PartyRef) context.Context {
	return context.WithValue(ctx, ContextKeyCallerRef, ref)
}

// CallerToken retrieves the bearer token the caller presented, whether or
// not it resolved to a known party. Empty for anonymous requests.
func CallerToken(ctx context.Context) ocpi.AccessToken {
	if tok, ok := ctx.Value(ContextKeyCallerToken).(ocpi.AccessToken); ok {
		return tok
	}
	return ""
}

// WithCallerToken injects the presented bearer token into the context.
func WithCallerToken(ctx context.Context, token ocpi.AccessToken) context.Context {
	return context.WithValue(ctx, ContextKeyCallerToken, token)
}

// RequestID retrieves the request ID from the context.
func RequestID(ctx context.Context) string {
	if reqID, ok := ctx.Value(ContextKeyRequestID).(string); ok {
		return reqID
	}
	return ""
}

// WithRequestID injects a request ID into the context.
func WithRequestID(ctx context.Context, requestID string) context.Context {
	return context.WithValue(ctx, ContextKeyRequestID, requestID)
}

// Now retrieves the request-scoped time from context.
// Falls back to time.Now() if not set (for non-HTTP contexts like workers, CLI, tests).
func Now(ctx context.Context) time.Time {
	if t, ok := ctx.Value(ContextKeyRequestTime).(time.Time); ok {
		return t
	}
	return time.Now()
}

// WithTime injects a specific time into a context. Useful for service unit
// tests that don't run the full HTTP middleware chain.
func WithTime(ctx context.Context, t time.Time) context.Context {
	return context.WithValue(ctx, ContextKeyRequestTime, t)
}
