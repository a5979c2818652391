package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics provides observability for the inbound access gate.
type Metrics struct {
	// Authorization decisions by outcome and reason
	Decisions *prometheus.CounterVec
}

// New creates a new Metrics instance with all gate metrics registered.
func New() *Metrics {
	return &Metrics{
		Decisions: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "ocpigw_gate_decisions_total",
			Help: "Total inbound authorization decisions by outcome and reason",
		}, []string{"outcome", "reason"}), // outcome: "allow"|"deny"; reason: "party"|"anonymous"|"blocked"|"unknown_token"|"missing_token"|"party_disabled"
	}
}

// IncrementDecision records one authorization decision.
func (m *Metrics) IncrementDecision(outcome, reason string) {
	if m != nil {
		m.Decisions.WithLabelValues(outcome, reason).Inc()
	}
}
