package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
)

// MQMetrics instruments one mq.Client: publish outcomes and connection
// state. Consumption is counted by the ingest metrics, where the queue
// drain actually happens.
type MQMetrics struct {
	Published       *prometheus.CounterVec
	PublishFailures *prometheus.CounterVec
	PublishDuration *prometheus.HistogramVec
	Reconnects      prometheus.Counter
	Connected       prometheus.Gauge
}

// NewMQMetrics builds and registers the broker metrics under namespace.
func NewMQMetrics(namespace string) *MQMetrics {
	m := &MQMetrics{
		Published: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Subsystem: "mq",
				Name:      "published_total",
				Help:      "Batches published to RabbitMQ, by queue",
			},
			[]string{"queue"},
		),
		PublishFailures: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Subsystem: "mq",
				Name:      "publish_failures_total",
				Help:      "Publishes that gave up, by queue and reason",
			},
			[]string{"queue", "reason"},
		),
		PublishDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Subsystem: "mq",
				Name:      "publish_duration_seconds",
				Help:      "Time from Push call to broker confirmation",
				Buckets:   prometheus.DefBuckets,
			},
			[]string{"queue"},
		),
		Reconnects: prometheus.NewCounter(
			prometheus.CounterOpts{
				Namespace: namespace,
				Subsystem: "mq",
				Name:      "reconnects_total",
				Help:      "Connection attempts after losing the broker",
			},
		),
		Connected: prometheus.NewGauge(
			prometheus.GaugeOpts{
				Namespace: namespace,
				Subsystem: "mq",
				Name:      "connected",
				Help:      "1 while the client holds a ready channel, else 0",
			},
		),
	}

	MustRegister(
		m.Published,
		m.PublishFailures,
		m.PublishDuration,
		m.Reconnects,
		m.Connected,
	)

	return m
}
