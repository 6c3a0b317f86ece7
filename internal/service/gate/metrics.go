package gate

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics exposes the gate's decision counters.
type Metrics struct {
	Intercepts  *prometheus.CounterVec
	Reviews     *prometheus.CounterVec
	Escalations prometheus.Counter
}

// NewMetrics registers the gate metric set on the given registerer.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	factory := promauto.With(reg)
	return &Metrics{
		Intercepts: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: "gate",
			Name:      "intercepts_total",
			Help:      "Intercept decisions, by outcome.",
		}, []string{"decision"}),
		Reviews: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: "gate",
			Name:      "reviews_total",
			Help:      "Approval reviews, by decision.",
		}, []string{"decision"}),
		Escalations: factory.NewCounter(prometheus.CounterOpts{
			Namespace: "gate",
			Name:      "escalations_total",
			Help:      "Stale pending approvals re-notified to reviewers.",
		}),
	}
}
