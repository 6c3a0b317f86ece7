package audit

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics exposes the trail's operational counters.
type Metrics struct {
	EventsLogged   *prometheus.CounterVec
	HighRiskEvents prometheus.Counter
	FlushBatches   prometheus.Counter
	FlushFailures  prometheus.Counter
	FlushDuration  prometheus.Histogram
	BufferDepth    prometheus.Gauge
	Anomalies      *prometheus.CounterVec
	EventsArchived prometheus.Counter
}

// NewMetrics registers the audit metric set on the given registerer.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	factory := promauto.With(reg)
	return &Metrics{
		EventsLogged: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: "audit",
			Name:      "events_logged_total",
			Help:      "Audit events accepted into the buffer, by event type.",
		}, []string{"event_type"}),
		HighRiskEvents: factory.NewCounter(prometheus.CounterOpts{
			Namespace: "audit",
			Name:      "high_risk_events_total",
			Help:      "Events that took the synchronous flush path.",
		}),
		FlushBatches: factory.NewCounter(prometheus.CounterOpts{
			Namespace: "audit",
			Name:      "flush_batches_total",
			Help:      "Successful buffer flushes.",
		}),
		FlushFailures: factory.NewCounter(prometheus.CounterOpts{
			Namespace: "audit",
			Name:      "flush_failures_total",
			Help:      "Failed buffer flushes; the batch is requeued.",
		}),
		FlushDuration: factory.NewHistogram(prometheus.HistogramOpts{
			Namespace: "audit",
			Name:      "flush_duration_seconds",
			Help:      "Latency of batch inserts into the event store.",
			Buckets:   prometheus.DefBuckets,
		}),
		BufferDepth: factory.NewGauge(prometheus.GaugeOpts{
			Namespace: "audit",
			Name:      "buffer_depth",
			Help:      "Events currently waiting in the in-memory buffer.",
		}),
		Anomalies: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: "audit",
			Name:      "anomalies_total",
			Help:      "Anomaly reports persisted, by severity.",
		}, []string{"severity"}),
		EventsArchived: factory.NewCounter(prometheus.CounterOpts{
			Namespace: "audit",
			Name:      "events_archived_total",
			Help:      "Events moved from the active store to the archive.",
		}),
	}
}
