package metrics

import "github.com/prometheus/client_golang/prometheus"

// Metrics holds Prometheus metrics for the dispatch engine.
type Metrics struct {
	EventsIngested     *prometheus.CounterVec
	IncidentsCreated   *prometheus.CounterVec
	DispatchTotal      *prometheus.CounterVec
	DispatchDuration   prometheus.Histogram
	EscalationsTotal   prometheus.Counter
	SLAWarningsTotal   prometheus.Counter
	SweepDuration      prometheus.Histogram
	NotificationsTotal *prometheus.CounterVec
}

// NewMetrics registers and returns engine metrics on the given registerer.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		EventsIngested: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "dispatch_events_ingested_total",
			Help: "Total events received by the gateway, by source and result.",
		}, []string{"source", "result"}),
		IncidentsCreated: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "dispatch_incidents_created_total",
			Help: "Total incidents opened by the correlator, by incident type.",
		}, []string{"type"}),
		DispatchTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "dispatch_plans_total",
			Help: "Total dispatch planning attempts by outcome.",
		}, []string{"outcome"}),
		DispatchDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "dispatch_plan_duration_seconds",
			Help:    "Duration of dispatch planning attempts in seconds.",
			Buckets: prometheus.ExponentialBuckets(0.001, 2, 12), // 1ms .. ~4s
		}),
		EscalationsTotal: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "dispatch_sla_escalations_total",
			Help: "Total SLA breach escalations performed by the monitor.",
		}),
		SLAWarningsTotal: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "dispatch_sla_warnings_total",
			Help: "Total near-breach warnings emitted by the monitor.",
		}),
		SweepDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "dispatch_sla_sweep_duration_seconds",
			Help:    "Duration of SLA monitor sweeps in seconds.",
			Buckets: prometheus.ExponentialBuckets(0.001, 2, 12), // 1ms .. ~4s
		}),
		NotificationsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "dispatch_notifications_total",
			Help: "Total notification deliveries by event type and result.",
		}, []string{"type", "result"}),
	}

	reg.MustRegister(
		m.EventsIngested,
		m.IncidentsCreated,
		m.DispatchTotal,
		m.DispatchDuration,
		m.EscalationsTotal,
		m.SLAWarningsTotal,
		m.SweepDuration,
		m.NotificationsTotal,
	)

	return m
}
