package rbac

import (
	"github.com/prometheus/client_golang/prometheus"
)

// Metrics exposes Prometheus collectors for permission decisions.
type Metrics struct {
	decisions *prometheus.CounterVec
	lookups   *prometheus.CounterVec
}

// NewMetrics registers the collectors against registerer, falling back to the
// default registerer when nil.
func NewMetrics(registerer prometheus.Registerer) *Metrics {
	if registerer == nil {
		registerer = prometheus.DefaultRegisterer
	}
	decisions := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "learnhub_rbac_decisions_total",
		Help: "Permission decisions partitioned by action and outcome.",
	}, []string{"action", "outcome"})
	lookups := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "learnhub_rbac_lookups_total",
		Help: "Role source lookups partitioned by result.",
	}, []string{"result"})
	registerer.MustRegister(decisions, lookups)
	return &Metrics{decisions: decisions, lookups: lookups}
}

func (m *Metrics) observeDecision(action Action, d Decision) {
	if m == nil {
		return
	}
	outcome := "allow"
	if !d.Allowed {
		outcome = "deny"
	}
	label := string(action)
	if _, ok := policy[action]; !ok {
		label = "unknown"
	}
	m.decisions.WithLabelValues(label, outcome).Inc()
}

func (m *Metrics) observeLookup(result string) {
	if m == nil {
		return
	}
	m.lookups.WithLabelValues(result).Inc()
}
