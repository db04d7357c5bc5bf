// Package metrics holds the process-wide Prometheus registry and the metric
// sets for each service.
package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Registry collects every metric the process exposes.
var Registry = prometheus.NewRegistry()

func init() {
	Registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
}

// Handler serves the registry in OpenMetrics format. Each daemon mounts it
// at /metrics.
func Handler() http.Handler {
	return promhttp.HandlerFor(Registry, promhttp.HandlerOpts{
		EnableOpenMetrics: true,
	})
}

// MustRegister adds collectors to the shared registry, panicking on
// duplicates.
func MustRegister(cs ...prometheus.Collector) {
	Registry.MustRegister(cs...)
}
