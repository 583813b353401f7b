package queue

import "github.com/prometheus/client_golang/prometheus"

// Metrics holds Prometheus metrics for the queue subsystem.
type Metrics struct {
	EnqueuedTotal    *prometheus.CounterVec
	TransitionsTotal *prometheus.CounterVec
	ConflictsTotal   prometheus.Counter
	InvalidTotal     prometheus.Counter
	ReopensTotal     prometheus.Counter
	CompletionTime   *prometheus.HistogramVec
}

// NewMetrics registers and returns queue metrics on the given registerer.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		EnqueuedTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "careops_queue_enqueued_total",
			Help: "Total items enqueued by kind and severity.",
		}, []string{"kind", "severity"}),
		TransitionsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "careops_queue_transitions_total",
			Help: "Total successful item transitions by edge.",
		}, []string{"from", "to"}),
		ConflictsTotal: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "careops_queue_transition_conflicts_total",
			Help: "Total transitions rejected by the version check.",
		}),
		InvalidTotal: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "careops_queue_transition_invalid_total",
			Help: "Total transitions rejected by the state table.",
		}),
		ReopensTotal: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "careops_queue_admin_reopens_total",
			Help: "Total completed items reopened by an administrator.",
		}),
		CompletionTime: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "careops_queue_completion_seconds",
			Help:    "Time from enqueue to completion in seconds.",
			Buckets: prometheus.ExponentialBuckets(60, 2, 12), // 1m .. ~3d
		}, []string{"kind", "severity"}),
	}

	reg.MustRegister(
		m.EnqueuedTotal,
		m.TransitionsTotal,
		m.ConflictsTotal,
		m.InvalidTotal,
		m.ReopensTotal,
		m.CompletionTime,
	)

	return m
}
