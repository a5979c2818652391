// Package requestid assigns every inbound request a correlation id, reusing
// the peer-supplied X-Request-ID when present so a request can be traced
// across both sides of a federation exchange.
package requestid

import (
	"net/http"

	"github.com/google/uuid"

	"ocpigw/pkg/requestcontext"
)

const headerName = "X-Request-ID"

// Middleware injects a request id into the context and echoes it on the
// response.
func Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		requestID := r.Header.Get(headerName)
		if requestID == "" {
			requestID = uuid.NewString()
		}
		ctx := requestcontext.WithRequestID(r.Context(), requestID)
		w.Header().Set(headerName, requestID)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}
