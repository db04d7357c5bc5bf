package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
)

// NotifyMetrics contains Prometheus metrics for the notification engine.
type NotifyMetrics struct {
	RecipientsTotal  *prometheus.CounterVec
	AlertsMarked     *prometheus.CounterVec
	DeliveryDuration prometheus.Histogram
	RenderDuration   prometheus.Histogram
	RunDuration      prometheus.Histogram
	EmptySkips       prometheus.Counter
}

// NewNotifyMetrics creates and registers notification engine metrics.
func NewNotifyMetrics(namespace string) *NotifyMetrics {
	m := &NotifyMetrics{
		RecipientsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Subsystem: "notify",
				Name:      "recipients_total",
				Help:      "Total number of recipients processed",
			},
			[]string{"status"}, // status: delivered, failed, skipped
		),
		AlertsMarked: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Subsystem: "notify",
				Name:      "alerts_marked_total",
				Help:      "Total number of alert rows marked notified",
			},
			[]string{"category"},
		),
		DeliveryDuration: prometheus.NewHistogram(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Subsystem: "notify",
				Name:      "delivery_duration_seconds",
				Help:      "Duration of mail delivery calls",
				Buckets:   prometheus.DefBuckets,
			},
		),
		RenderDuration: prometheus.NewHistogram(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Subsystem: "notify",
				Name:      "render_duration_seconds",
				Help:      "Duration of message rendering",
				Buckets:   prometheus.DefBuckets,
			},
		),
		RunDuration: prometheus.NewHistogram(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Subsystem: "notify",
				Name:      "run_duration_seconds",
				Help:      "Duration of a full notification cycle",
				Buckets:   []float64{0.1, 0.5, 1, 5, 15, 30, 60, 120},
			},
		),
		EmptySkips: prometheus.NewCounter(
			prometheus.CounterOpts{
				Namespace: namespace,
				Subsystem: "notify",
				Name:      "empty_skips_total",
				Help:      "Total number of recipients skipped with no renderable alerts",
			},
		),
	}

	MustRegister(
		m.RecipientsTotal,
		m.AlertsMarked,
		m.DeliveryDuration,
		m.RenderDuration,
		m.RunDuration,
		m.EmptySkips,
	)

	return m
}
