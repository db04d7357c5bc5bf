// Package seed generates synthetic forecast and flood batches and publishes
// them to the ingest queues. It stands in for the external fetchers during
// development and load testing.
package seed

import (
	"context"
	"encoding/json"
	"log/slog"
	"math/rand"
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"skycast.dev/weather-alerts/pkg/generator"
	"skycast.dev/weather-alerts/pkg/metrics"
	"skycast.dev/weather-alerts/pkg/mq"
)

// Seeder owns a set of synthetic sites and publishes batches for them.
type Seeder struct {
	ForecastMQClient mq.ClientInterface
	FloodMQClient    mq.ClientInterface
	Sites            []*generator.Site
	generators       []*generator.ForecastGenerator
	metrics          *metrics.SeedMetrics // Optional metrics
}

// NewSeeder creates a new seeder with a random number of sites.
// Note: Uses math/rand for site generation which is acceptable for simulation data.
func NewSeeder(forecastClient mq.ClientInterface, floodClient mq.ClientInterface) *Seeder {
	siteCount := rand.Intn(4) + 2 // #nosec G404 - weak random is acceptable for test data generation
	sites := make([]*generator.Site, 0, siteCount)
	generators := make([]*generator.ForecastGenerator, 0, siteCount)
	for range siteCount {
		site := generator.NewSite()
		if site == nil {
			continue
		}
		sites = append(sites, site)
		generators = append(generators, generator.NewForecastGenerator(*site))
	}

	return &Seeder{
		ForecastMQClient: forecastClient,
		FloodMQClient:    floodClient,
		Sites:            sites,
		generators:       generators,
	}
}

// SetMetrics sets the metrics collector for this seeder.
func (s *Seeder) SetMetrics(m *metrics.SeedMetrics) {
	s.metrics = m
	if m != nil {
		m.SitesGenerated.Add(float64(len(s.Sites)))
	}
}

// PublishForecastBatch generates and publishes a forecast batch for a random
// site, covering the next 24 hours.
func (s *Seeder) PublishForecastBatch(ctx context.Context) error {
	var timer *prometheus.Timer
	if s.metrics != nil {
		timer = prometheus.NewTimer(s.metrics.GenerationDuration.WithLabelValues("forecast"))
		defer timer.ObserveDuration()
	}

	gen := s.generators[rand.Intn(len(s.generators))] // #nosec G404 - weak random is acceptable for simulation
	batch := gen.GenerateBatch(time.Now().UTC(), 24*time.Hour)

	message, err := json.Marshal(batch)
	if err != nil {
		if s.metrics != nil {
			s.metrics.PublishFailures.WithLabelValues("forecast", "marshal_error").Inc()
		}
		return err
	}

	if err := s.ForecastMQClient.Push(ctx, message); err != nil {
		if s.metrics != nil {
			s.metrics.PublishFailures.WithLabelValues("forecast", "push_error").Inc()
		}
		return err
	}

	if s.metrics != nil {
		s.metrics.BatchesPublished.WithLabelValues("forecast").Inc()
	}
	return nil
}

// PublishFloodBatch generates and publishes a flood warning for a random
// site. Only a fraction of cycles raise one; real flood feeds are sparse.
func (s *Seeder) PublishFloodBatch(ctx context.Context) error {
	if rand.Float64() > 0.2 { // #nosec G404
		return nil
	}

	var timer *prometheus.Timer
	if s.metrics != nil {
		timer = prometheus.NewTimer(s.metrics.GenerationDuration.WithLabelValues("flood"))
		defer timer.ObserveDuration()
	}

	gen := s.generators[rand.Intn(len(s.generators))] // #nosec G404
	batch := gen.GenerateFlood(time.Now().UTC())

	message, err := json.Marshal(batch)
	if err != nil {
		if s.metrics != nil {
			s.metrics.PublishFailures.WithLabelValues("flood", "marshal_error").Inc()
		}
		return err
	}

	if err := s.FloodMQClient.Push(ctx, message); err != nil {
		if s.metrics != nil {
			s.metrics.PublishFailures.WithLabelValues("flood", "push_error").Inc()
		}
		return err
	}

	if s.metrics != nil {
		s.metrics.BatchesPublished.WithLabelValues("flood").Inc()
	}
	return nil
}

// logSites logs the generated sites once at startup.
func (s *Seeder) logSites(logger *slog.Logger) {
	for _, site := range s.Sites {
		logger.Info("synthetic site",
			"name", site.Name,
			"latitude", site.Latitude,
			"longitude", site.Longitude,
		)
	}
}
