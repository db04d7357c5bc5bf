package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
)

// SweepMetrics contains Prometheus metrics for the retention sweeper.
type SweepMetrics struct {
	RowsDeleted   *prometheus.CounterVec
	StepFailures  *prometheus.CounterVec
	StepDuration  *prometheus.HistogramVec
	LastSweepTime prometheus.Gauge
	SweepsSkipped prometheus.Counter
}

// NewSweepMetrics creates and registers retention sweeper metrics.
func NewSweepMetrics(namespace string) *SweepMetrics {
	m := &SweepMetrics{
		RowsDeleted: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Subsystem: "sweep",
				Name:      "rows_deleted_total",
				Help:      "Total number of rows deleted per retention step",
			},
			[]string{"step"},
		),
		StepFailures: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Subsystem: "sweep",
				Name:      "step_failures_total",
				Help:      "Total number of failed retention steps",
			},
			[]string{"step"},
		),
		StepDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Subsystem: "sweep",
				Name:      "step_duration_seconds",
				Help:      "Duration of each retention step",
				Buckets:   prometheus.DefBuckets,
			},
			[]string{"step"},
		),
		LastSweepTime: prometheus.NewGauge(
			prometheus.GaugeOpts{
				Namespace: namespace,
				Subsystem: "sweep",
				Name:      "last_success_timestamp_seconds",
				Help:      "Unix timestamp of the last fully successful sweep",
			},
		),
		SweepsSkipped: prometheus.NewCounter(
			prometheus.CounterOpts{
				Namespace: namespace,
				Subsystem: "sweep",
				Name:      "skipped_total",
				Help:      "Total number of sweeps skipped because one was already in flight",
			},
		),
	}

	MustRegister(
		m.RowsDeleted,
		m.StepFailures,
		m.StepDuration,
		m.LastSweepTime,
		m.SweepsSkipped,
	)

	return m
}
