package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/bookhub/book-notify/internal/domain"
)

// Metrics groups all Prometheus instruments used across the application.
// Registered once at startup via New(); passed by pointer wherever needed.
type Metrics struct {
	MessagesEnqueued       prometheus.Counter
	DeliveriesCompleted    *prometheus.CounterVec
	DeliveriesAbandoned    prometheus.Counter
	DeliveriesDeadLettered *prometheus.CounterVec
	DeliveryLatency        *prometheus.HistogramVec
	QueuePending           prometheus.Gauge
	QueueInFlight          prometheus.Gauge
}

// New registers all instruments with the given Prometheus registerer.
// Using a custom registry (instead of prometheus.DefaultRegisterer) keeps
// tests isolated and avoids global state.
func New(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		MessagesEnqueued: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "notification_messages_enqueued_total",
			Help: "Total notification messages handed to the queue by fan-out.",
		}),

		DeliveriesCompleted: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "notification_deliveries_completed_total",
			Help: "Total successfully delivered notifications.",
		}, []string{"method"}),

		DeliveriesAbandoned: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "notification_deliveries_abandoned_total",
			Help: "Total deliveries returned to the queue for retry.",
		}),

		DeliveriesDeadLettered: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "notification_deliveries_dead_lettered_total",
			Help: "Total messages parked in the dead-letter sink.",
		}, []string{"reason"}),

		DeliveryLatency: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "notification_delivery_seconds",
			Help:    "Per-message processing latency from receive to settlement.",
			Buckets: prometheus.DefBuckets,
		}, []string{"method"}),

		QueuePending: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "notification_queue_pending",
			Help: "Messages waiting in the queue, not yet received.",
		}),
		QueueInFlight: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "notification_queue_inflight",
			Help: "Messages received and not yet settled.",
		}),
	}

	reg.MustRegister(
		m.MessagesEnqueued,
		m.DeliveriesCompleted,
		m.DeliveriesAbandoned,
		m.DeliveriesDeadLettered,
		m.DeliveryLatency,
		m.QueuePending,
		m.QueueInFlight,
	)

	return m
}

// ConsumerHooks returns the callbacks expected by worker.Hooks, centralising
// the prometheus observation calls so the worker package stays metrics-free.
func (m *Metrics) ConsumerHooks() (
	onCompleted func(domain.Preference, time.Duration),
	onAbandoned func(),
	onDeadLettered func(string),
) {
	onCompleted = func(method domain.Preference, latency time.Duration) {
		m.DeliveriesCompleted.WithLabelValues(string(method)).Inc()
		m.DeliveryLatency.WithLabelValues(string(method)).Observe(latency.Seconds())
	}
	onAbandoned = func() {
		m.DeliveriesAbandoned.Inc()
	}
	onDeadLettered = func(reason string) {
		m.DeliveriesDeadLettered.WithLabelValues(reason).Inc()
	}
	return
}

// OnEnqueued is the fan-out side hook.
func (m *Metrics) OnEnqueued(count int) {
	m.MessagesEnqueued.Add(float64(count))
}
