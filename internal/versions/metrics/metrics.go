package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics provides observability for version and endpoint discovery.
type Metrics struct {
	// Discovery round-trip latencies by endpoint kind
	DiscoveryLatency *prometheus.HistogramVec

	// Discovery failures by reason
	DiscoveryFailures *prometheus.CounterVec
}

// New creates a new Metrics instance with all discovery metrics registered.
func New() *Metrics {
	return &Metrics{
		DiscoveryLatency: promauto.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "ocpigw_discovery_duration_seconds",
			Help:    "Duration of discovery GETs by endpoint kind",
			Buckets: []float64{0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5},
		}, []string{"endpoint"}), // endpoint: "versions", "version_details"

		DiscoveryFailures: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "ocpigw_discovery_failures_total",
			Help: "Total discovery failures by reason",
		}, []string{"reason"}), // reason: "transport", "http_status", "envelope", "unsupported_version"
	}
}

// ObserveDiscovery records the duration of one discovery GET.
func (m *Metrics) ObserveDiscovery(endpoint string, d time.Duration) {
	if m != nil {
		m.DiscoveryLatency.WithLabelValues(endpoint).Observe(d.Seconds())
	}
}

// IncrementFailure records a discovery failure.
func (m *Metrics) IncrementFailure(reason string) {
	if m != nil {
		m.DiscoveryFailures.WithLabelValues(reason).Inc()
	}
}
