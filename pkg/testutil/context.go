package testutil

import (
	"net/http"
	"time"

	"ocpigw/pkg/ocpi"
	"ocpigw/pkg/requestcontext"
)

// WithCaller attaches a resolved caller identity and token to the request
// context, simulating what the access gate does for authenticated requests.
func WithCaller(req *http.Request, ref ocpi.PartyRef, token ocpi.AccessToken) *http.Request {
	ctx := requestcontext.WithCallerRef(req.Context(), ref)
	ctx = requestcontext.WithCallerToken(ctx, token)
	return req.WithContext(ctx)
}

// WithRequestTime pins the request-scoped clock, as the requesttime
// middleware would.
func WithRequestTime(req *http.Request, now time.Time) *http.Request {
	return req.WithContext(requestcontext.WithTime(req.Context(), now))
}

// WithRequestID attaches a correlation id to the request context.
func WithRequestID(req *http.Request, id string) *http.Request {
	return req.WithContext(requestcontext.WithRequestID(req.Context(), id))
}
