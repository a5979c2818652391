package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics provides observability for the credentials handshake engine.
type Metrics struct {
	// Registration attempts by direction and result
	Registrations *prometheus.CounterVec

	// Token rotations committed to the registry
	TokenRotations prometheus.Counter

	// Outbound registration latency, discovery included
	RegisterLatency prometheus.Histogram
}

// New creates a new Metrics instance with all handshake metrics registered.
func New() *Metrics {
	return &Metrics{
		Registrations: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "ocpigw_registrations_total",
			Help: "Total registration attempts by direction and result",
		}, []string{"direction", "result"}), // direction: "outbound"|"inbound"; result: "ok"|"discovery_failed"|"unsupported_version"|"peer_rejected"|"invalid"

		TokenRotations: promauto.NewCounter(prometheus.CounterOpts{
			Name: "ocpigw_token_rotations_total",
			Help: "Total committed access token rotations",
		}),

		RegisterLatency: promauto.NewHistogram(prometheus.HistogramOpts{
			Name:    "ocpigw_register_duration_seconds",
			Help:    "Duration of outbound registrations including discovery",
			Buckets: []float64{0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10},
		}),
	}
}

// IncrementRegistration records one registration attempt.
func (m *Metrics) IncrementRegistration(direction, result string) {
	if m != nil {
		m.Registrations.WithLabelValues(direction, result).Inc()
	}
}

// IncrementRotation records one committed token rotation.
func (m *Metrics) IncrementRotation() {
	if m != nil {
		m.TokenRotations.Inc()
	}
}

// ObserveRegisterLatency records the duration of one outbound registration.
func (m *Metrics) ObserveRegisterLatency(d time.Duration) {
	if m != nil {
		m.RegisterLatency.Observe(d.Seconds())
	}
}
