package server

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics are the publishing counters of a server.
type Metrics struct {
	Patches       prometheus.Counter
	PatchBytes    prometheus.Counter
	FullEvents    prometheus.Counter
	Resyncs       prometheus.Counter
	SlowConsumers prometheus.Counter
	QueryErrors   prometheus.Counter
	Subscriptions prometheus.Gauge
	DiffDuration  prometheus.Histogram

	Sessions         prometheus.Gauge
	RejectedSessions prometheus.Counter
}

// NewMetrics creates the server metrics and registers them with reg,
// unless reg is nil.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		Patches: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "subd",
			Subsystem: "publisher",
			Name:      "patches_total",
			Help:      "Patch events sent to subscribers",
		}),
		PatchBytes: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "subd",
			Subsystem: "publisher",
			Name:      "patch_bytes_total",
			Help:      "Encoded size of the patch events sent",
		}),
		FullEvents: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "subd",
			Subsystem: "publisher",
			Name:      "full_events_total",
			Help:      "Full state events sent to subscribers",
		}),
		Resyncs: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "subd",
			Subsystem: "publisher",
			Name:      "resyncs_total",
			Help:      "Resync requests received",
		}),
		SlowConsumers: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "subd",
			Subsystem: "publisher",
			Name:      "slow_consumers_total",
			Help:      "Subscriptions failed for not keeping up",
		}),
		QueryErrors: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "subd",
			Subsystem: "publisher",
			Name:      "query_errors_total",
			Help:      "Query evaluations which failed",
		}),
		Subscriptions: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: "subd",
			Subsystem: "publisher",
			Name:      "subscriptions",
			Help:      "Active subscriptions",
		}),
		DiffDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: "subd",
			Subsystem: "pool",
			Name:      "diff_duration_seconds",
			Help:      "Time spent diffing query results",
			Buckets:   prometheus.ExponentialBuckets(1e-6, 4, 12),
		}),
		Sessions: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: "subd",
			Subsystem: "tcp",
			Name:      "sessions",
			Help:      "Running TCP sessions",
		}),
		RejectedSessions: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "subd",
			Subsystem: "tcp",
			Name:      "rejected_sessions_total",
			Help:      "Connections refused at the session limit",
		}),
	}
	if reg != nil {
		reg.MustRegister(m.Patches, m.PatchBytes, m.FullEvents, m.Resyncs,
			m.SlowConsumers, m.QueryErrors, m.Subscriptions, m.DiffDuration,
			m.Sessions, m.RejectedSessions)
	}
	return m
}

// MetricsHandler serves the metrics gathered by g.
func MetricsHandler(g prometheus.Gatherer) http.Handler {
	return promhttp.HandlerFor(g, promhttp.HandlerOpts{})
}
