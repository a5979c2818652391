// Package httptransport assembles the HTTP surface. It owns no business
// logic: feature handlers register their own routes, this package only wires
// the middleware chain and the operational endpoints around them.
package httptransport

import (
	"context"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"ocpigw/internal/platform/metrics"
	"ocpigw/pkg/platform/middleware/logging"
	"ocpigw/pkg/platform/middleware/requestid"
	"ocpigw/pkg/platform/middleware/requesttime"
)

// Registrar is anything that mounts routes on the router. All feature
// handlers implement it.
type Registrar interface {
	Register(r chi.Router)
}

// HealthChecker reports readiness of an attached dependency.
type HealthChecker interface {
	Health(ctx context.Context) error
}

// NewRouter builds the full router: correlation id, request-scoped time,
// request logging and metrics wrap every route; feature handlers mount
// themselves; /metrics and /healthz sit outside the OCPI tree.
func NewRouter(logger *slog.Logger, httpMetrics *metrics.Metrics, health HealthChecker, handlers ...Registrar) http.Handler {
	r := chi.NewRouter()

	r.Use(chimiddleware.Recoverer)
	r.Use(requestid.Middleware)
	r.Use(requesttime.Middleware)
	r.Use(logging.Middleware(logger))
	r.Use(httpMetrics.Middleware)

	for _, h := range handlers {
		h.Register(r)
	}

	r.Handle("/metrics", promhttp.Handler())
	r.Get("/healthz", func(w http.ResponseWriter, req *http.Request) {
		if health != nil {
			if err := health.Health(req.Context()); err != nil {
				http.Error(w, "dependency unavailable", http.StatusServiceUnavailable)
				return
			}
		}
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	})

	return r
}
