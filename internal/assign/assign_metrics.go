package assign

import "github.com/prometheus/client_golang/prometheus"

// Metrics holds Prometheus metrics for assignment and escalation.
type Metrics struct {
	RecommendationsTotal *prometheus.CounterVec
	WatchesTotal         prometheus.Counter
	TriggeredTotal       prometheus.Counter
	BroadcastsTotal      prometheus.Counter
	StaleTimersTotal     prometheus.Counter
	NotifyFailuresTotal  prometheus.Counter
}

// NewMetrics registers and returns assignment metrics on the given registerer.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		RecommendationsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "careops_assign_recommendations_total",
			Help: "Total assignment recommendations by fallback outcome.",
		}, []string{"fallback"}),
		WatchesTotal: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "careops_escalation_watches_total",
			Help: "Total escalation timer chains started.",
		}),
		TriggeredTotal: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "careops_escalation_triggered_total",
			Help: "Total stage one escalations to the primary contact.",
		}),
		BroadcastsTotal: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "careops_escalation_broadcasts_total",
			Help: "Total stage two broadcasts to the full care circle.",
		}),
		StaleTimersTotal: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "careops_escalation_stale_timers_total",
			Help: "Total timers that fired after the item was already handled.",
		}),
		NotifyFailuresTotal: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "careops_escalation_notify_failures_total",
			Help: "Total notification deliveries that exhausted their retries.",
		}),
	}
	reg.MustRegister(
		m.RecommendationsTotal,
		m.WatchesTotal,
		m.TriggeredTotal,
		m.BroadcastsTotal,
		m.StaleTimersTotal,
		m.NotifyFailuresTotal,
	)
	return m
}
