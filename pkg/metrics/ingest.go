package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
)

// IngestMetrics contains Prometheus metrics for the ingest service.
type IngestMetrics struct {
	MessagesTotal      *prometheus.CounterVec
	MessageErrors      *prometheus.CounterVec
	ProcessingDuration *prometheus.HistogramVec
	ForecastsUpserted  prometheus.Counter
	AlertsInserted     *prometheus.CounterVec
	FloodsInserted     prometheus.Counter
	FloodsDeduplicated prometheus.Counter
	LocationsCreated   prometheus.Counter
	GeocodeFailures    prometheus.Counter
}

// NewIngestMetrics creates and registers ingest service metrics.
func NewIngestMetrics(namespace string) *IngestMetrics {
	m := &IngestMetrics{
		MessagesTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Subsystem: "ingest",
				Name:      "messages_total",
				Help:      "Total number of batch messages consumed",
			},
			[]string{"queue", "status"}, // status: success, error
		),
		MessageErrors: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Subsystem: "ingest",
				Name:      "message_errors_total",
				Help:      "Total number of ingest errors",
			},
			[]string{"queue", "error_type"},
		),
		ProcessingDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Subsystem: "ingest",
				Name:      "processing_duration_seconds",
				Help:      "Duration of batch message processing",
				Buckets:   prometheus.DefBuckets,
			},
			[]string{"queue"},
		),
		ForecastsUpserted: prometheus.NewCounter(
			prometheus.CounterOpts{
				Namespace: namespace,
				Subsystem: "ingest",
				Name:      "forecasts_upserted_total",
				Help:      "Total number of forecast rows written",
			},
		),
		AlertsInserted: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Subsystem: "ingest",
				Name:      "alerts_inserted_total",
				Help:      "Total number of weather alert rows inserted",
			},
			[]string{"alert_type"},
		),
		FloodsInserted: prometheus.NewCounter(
			prometheus.CounterOpts{
				Namespace: namespace,
				Subsystem: "ingest",
				Name:      "flood_warnings_inserted_total",
				Help:      "Total number of flood warning rows inserted",
			},
		),
		FloodsDeduplicated: prometheus.NewCounter(
			prometheus.CounterOpts{
				Namespace: namespace,
				Subsystem: "ingest",
				Name:      "flood_warnings_deduplicated_total",
				Help:      "Total number of flood warnings skipped as exact duplicates",
			},
		),
		LocationsCreated: prometheus.NewCounter(
			prometheus.CounterOpts{
				Namespace: namespace,
				Subsystem: "ingest",
				Name:      "locations_created_total",
				Help:      "Total number of locations created on first sighting",
			},
		),
		GeocodeFailures: prometheus.NewCounter(
			prometheus.CounterOpts{
				Namespace: namespace,
				Subsystem: "ingest",
				Name:      "geocode_failures_total",
				Help:      "Total number of failed reverse geocode lookups",
			},
		),
	}

	MustRegister(
		m.MessagesTotal,
		m.MessageErrors,
		m.ProcessingDuration,
		m.ForecastsUpserted,
		m.AlertsInserted,
		m.FloodsInserted,
		m.FloodsDeduplicated,
		m.LocationsCreated,
		m.GeocodeFailures,
	)

	return m
}
