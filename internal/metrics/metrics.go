package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/rl1809/vending-ledger/internal/core/domain"
)

// Metrics records ledger activity in Prometheus.
type Metrics struct {
	requests       *prometheus.CounterVec
	durations      *prometheus.HistogramVec
	itemCount      *prometheus.GaugeVec
	publishFailure *prometheus.CounterVec
}

func New(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		requests: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "ledger_requests_total",
				Help: "Total number of ledger calls.",
			},
			[]string{"action", "outcome"},
		),
		durations: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "ledger_request_duration_seconds",
				Help:    "Duration of ledger calls in seconds.",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"action"},
		),
		itemCount: prometheus.NewGaugeVec(
			prometheus.GaugeOpts{
				Name: "ledger_item_count",
				Help: "Last observed count per item.",
			},
			[]string{"item"},
		),
		publishFailure: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "ledger_audit_publish_failed_total",
				Help: "Count of audit record publish failures.",
			},
			[]string{"sink"},
		),
	}
	reg.MustRegister(m.requests, m.durations, m.itemCount, m.publishFailure)
	return m
}

func (m *Metrics) ObserveRequest(action, outcome string, elapsed time.Duration) {
	m.requests.WithLabelValues(action, outcome).Inc()
	m.durations.WithLabelValues(action).Observe(elapsed.Seconds())
}

func (m *Metrics) SetItemCount(item domain.Item, count uint64) {
	m.itemCount.WithLabelValues(item.String()).Set(float64(count))
}

func (m *Metrics) PublishFailed(sink string) {
	m.publishFailure.WithLabelValues(sink).Inc()
}
