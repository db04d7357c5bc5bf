package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
)

// SeedMetrics contains Prometheus metrics for the seed/generator service.
type SeedMetrics struct {
	BatchesPublished   *prometheus.CounterVec
	PublishFailures    *prometheus.CounterVec
	GenerationDuration *prometheus.HistogramVec
	ActiveSeeders      prometheus.Gauge
	SitesGenerated     prometheus.Counter
}

// NewSeedMetrics creates and registers seed metrics.
func NewSeedMetrics(namespace string) *SeedMetrics {
	m := &SeedMetrics{
		BatchesPublished: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Subsystem: "seed",
				Name:      "batches_published_total",
				Help:      "Total number of synthetic batches published",
			},
			[]string{"type"}, // type: forecast, flood
		),
		PublishFailures: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Subsystem: "seed",
				Name:      "publish_failures_total",
				Help:      "Total number of batch publish failures",
			},
			[]string{"type", "reason"},
		),
		GenerationDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Subsystem: "seed",
				Name:      "generation_duration_seconds",
				Help:      "Duration of batch generation operations",
				Buckets:   prometheus.DefBuckets,
			},
			[]string{"type"},
		),
		ActiveSeeders: prometheus.NewGauge(
			prometheus.GaugeOpts{
				Namespace: namespace,
				Subsystem: "seed",
				Name:      "active_seeders",
				Help:      "Number of currently active seeders",
			},
		),
		SitesGenerated: prometheus.NewCounter(
			prometheus.CounterOpts{
				Namespace: namespace,
				Subsystem: "seed",
				Name:      "sites_generated_total",
				Help:      "Total number of synthetic sites generated",
			},
		),
	}

	MustRegister(
		m.BatchesPublished,
		m.PublishFailures,
		m.GenerationDuration,
		m.ActiveSeeders,
		m.SitesGenerated,
	)

	return m
}
