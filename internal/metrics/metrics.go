package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/fableforge/directorq/internal/domain"
)

// Metrics groups all Prometheus instruments used across the application.
// Registered once at startup via New(); passed by pointer wherever needed.
type Metrics struct {
	ItemsEnqueued    *prometheus.CounterVec
	DecisionsApplied *prometheus.CounterVec
	DeliveriesFailed *prometheus.CounterVec
	ApprovalLatency  *prometheus.HistogramVec
	ItemsExpired     prometheus.Counter
	PendingDepth     *prometheus.GaugeVec
}

// New registers all instruments with the given Prometheus registerer and
// returns the populated Metrics struct.
// Using a custom registry (instead of prometheus.DefaultRegisterer) keeps
// tests isolated and avoids global state.
func New(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		ItemsEnqueued: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "approval_items_enqueued_total",
			Help: "Total number of items placed on an approval queue.",
		}, []string{"queue"}),

		DecisionsApplied: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "approval_decisions_total",
			Help: "Total number of Director decisions applied, by decision type.",
		}, []string{"queue", "decision"}),

		DeliveriesFailed: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "approval_deliveries_failed_total",
			Help: "Total number of failed pushes to a connected Director.",
		}, []string{"queue"}),

		ApprovalLatency: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "approval_wait_seconds",
			Help:    "Time from enqueue to the Director's decision.",
			Buckets: []float64{1, 5, 15, 30, 60, 120, 300, 600, 1800},
		}, []string{"queue"}),

		ItemsExpired: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "approval_items_expired_total",
			Help: "Total number of stale items swept to expired.",
		}),

		PendingDepth: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Name: "approval_pending_depth",
			Help: "Current number of pending items per queue.",
		}, []string{"queue"}),
	}

	reg.MustRegister(
		m.ItemsEnqueued,
		m.DecisionsApplied,
		m.DeliveriesFailed,
		m.ApprovalLatency,
		m.ItemsExpired,
		m.PendingDepth,
	)

	return m
}

// ServiceHooks returns the metric callback functions expected by the approval
// service. Centralises the prometheus observation calls so the service stays
// import-free.
func (m *Metrics) ServiceHooks() (
	onEnqueued func(domain.QueueName),
	onDecided func(domain.QueueName, domain.DecisionKind, time.Duration),
) {
	onEnqueued = func(q domain.QueueName) {
		m.ItemsEnqueued.WithLabelValues(string(q)).Inc()
	}
	onDecided = func(q domain.QueueName, d domain.DecisionKind, wait time.Duration) {
		m.DecisionsApplied.WithLabelValues(string(q), string(d)).Inc()
		m.ApprovalLatency.WithLabelValues(string(q)).Observe(wait.Seconds())
	}
	return
}

// WorkerHooks returns the callbacks used by the delivery and sweep workers.
// The sweep worker doubles as the depth sampler: every tick it reports the
// current pending counts, which refresh the depth gauges here.
func (m *Metrics) WorkerHooks() (
	onDeliveryFailed func(domain.QueueName),
	onExpired func(count int),
	onDepths func(map[domain.QueueName]int),
) {
	onDeliveryFailed = func(q domain.QueueName) {
		m.DeliveriesFailed.WithLabelValues(string(q)).Inc()
	}
	onExpired = func(count int) {
		m.ItemsExpired.Add(float64(count))
	}
	onDepths = func(depths map[domain.QueueName]int) {
		for q, count := range depths {
			m.PendingDepth.WithLabelValues(string(q)).Set(float64(count))
		}
	}
	return
}
