package protocol

import "github.com/prometheus/client_golang/prometheus"

// Metrics holds Prometheus metrics for the protocol subsystem.
type Metrics struct {
	AlertsTotal      *prometheus.CounterVec
	PlansTotal       *prometheus.CounterVec
	AdvancesTotal    *prometheus.CounterVec
	EmergenciesTotal prometheus.Counter
	PlanDuration     prometheus.Histogram
}

// NewMetrics registers and returns protocol metrics on the given registerer.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		AlertsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "careops_alerts_total",
			Help: "Total alerts ingested by severity.",
		}, []string{"severity"}),
		PlansTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "careops_plans_total",
			Help: "Total plans started by protocol type.",
		}, []string{"type"}),
		AdvancesTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "careops_plan_advances_total",
			Help: "Total plan advances by resulting state.",
		}, []string{"to"}),
		EmergenciesTotal: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "careops_plan_emergencies_total",
			Help: "Total plans escalated to emergency services.",
		}),
		PlanDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "careops_plan_duration_seconds",
			Help:    "Time from plan start to terminal state in seconds.",
			Buckets: prometheus.ExponentialBuckets(30, 2, 10), // 30s .. ~4h
		}),
	}

	reg.MustRegister(
		m.AlertsTotal,
		m.PlansTotal,
		m.AdvancesTotal,
		m.EmergenciesTotal,
		m.PlanDuration,
	)

	return m
}
