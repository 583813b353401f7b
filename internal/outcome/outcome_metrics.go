package outcome

import "github.com/prometheus/client_golang/prometheus"

// Metrics holds Prometheus metrics for outcome capture.
type Metrics struct {
	CapturedTotal  *prometheus.CounterVec
	RejectedTotal  *prometheus.CounterVec
	FollowupsTotal prometheus.Counter
}

// NewMetrics registers and returns outcome metrics on the given registerer.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		CapturedTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "careops_outcomes_captured_total",
			Help: "Total outcomes captured by template and result.",
		}, []string{"template", "result"}),
		RejectedTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "careops_outcomes_rejected_total",
			Help: "Total outcome captures rejected by reason.",
		}, []string{"reason"}),
		FollowupsTotal: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "careops_outcomes_followups_total",
			Help: "Total follow-up tasks generated from outcomes.",
		}),
	}
	reg.MustRegister(m.CapturedTotal, m.RejectedTotal, m.FollowupsTotal)
	return m
}
