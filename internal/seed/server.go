package seed

import (
	"context"
	"errors"
	"log/slog"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"skycast.dev/weather-alerts/pkg/metrics"
	"skycast.dev/weather-alerts/pkg/mq"
)

// ServerConfig holds the configuration for the seed server.
type ServerConfig struct {
	// Logger is the structured logger
	Logger *slog.Logger
	// RabbitMQURL is the connection string for RabbitMQ
	RabbitMQURL string
	// ForecastQueue is the name of the queue to publish forecast batches to
	ForecastQueue string
	// FloodQueue is the name of the queue to publish flood warnings to
	FloodQueue string
	// Interval is the time between batch publications
	Interval time.Duration
	// SeederCount is the number of concurrent seeders
	SeederCount int
	// Metrics is the optional Prometheus metrics collector
	Metrics *metrics.SeedMetrics
	// MQMetrics is the optional Prometheus metrics collector for MQ operations
	MQMetrics *metrics.MQMetrics
}

// Server manages multiple seeder instances.
type Server struct {
	logger          *slog.Logger
	config          *ServerConfig
	seeders         []*Seeder
	forecastClients []*mq.Client
	floodClients    []*mq.Client
	wg              sync.WaitGroup
	metrics         *metrics.SeedMetrics
}

var (
	errInvalidSeederCount = errors.New("seeder count must be greater than 0")
	errInvalidInterval    = errors.New("interval must be greater than 0")
	errLoggerRequired     = errors.New("logger is required")
)

// NewServer creates a new seed server with the given configuration.
func NewServer(cfg *ServerConfig) (*Server, error) {
	if cfg.SeederCount <= 0 {
		return nil, errInvalidSeederCount
	}

	if cfg.Interval <= 0 {
		return nil, errInvalidInterval
	}

	if cfg.Logger == nil {
		return nil, errLoggerRequired
	}

	s := &Server{
		config:          cfg,
		seeders:         make([]*Seeder, 0, cfg.SeederCount),
		forecastClients: make([]*mq.Client, 0, cfg.SeederCount),
		floodClients:    make([]*mq.Client, 0, cfg.SeederCount),
		logger:          cfg.Logger,
		metrics:         cfg.Metrics,
	}

	// Create seeder instances with their own MQ clients
	for i := 0; i < cfg.SeederCount; i++ {
		forecastClient := mq.New(cfg.ForecastQueue, cfg.RabbitMQURL, cfg.Logger.With(
			slog.String("component", "forecast-mq-client"),
			slog.Int("seeder_id", i),
		))

		if cfg.MQMetrics != nil {
			forecastClient.SetMetrics(cfg.MQMetrics)
		}

		floodClient := mq.New(cfg.FloodQueue, cfg.RabbitMQURL, cfg.Logger.With(
			slog.String("component", "flood-mq-client"),
			slog.Int("seeder_id", i),
		))

		if cfg.MQMetrics != nil {
			floodClient.SetMetrics(cfg.MQMetrics)
		}

		seeder := NewSeeder(forecastClient, floodClient)

		if cfg.Metrics != nil {
			seeder.SetMetrics(cfg.Metrics)
		}
		seeder.logSites(cfg.Logger.With(slog.Int("seeder_id", i)))

		s.forecastClients = append(s.forecastClients, forecastClient)
		s.floodClients = append(s.floodClients, floodClient)
		s.seeders = append(s.seeders, seeder)

		s.logger.Info("created seeder instance",
			"seeder_id", i,
			"forecast_queue", cfg.ForecastQueue,
			"flood_queue", cfg.FloodQueue,
			"site_count", len(seeder.Sites),
		)
	}

	return s, nil
}

// Run starts all seeders and blocks until shutdown signal is received.
func (s *Server) Run(ctx context.Context) error {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	// Setup signal handling for graceful shutdown
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM, syscall.SIGINT)

	// Start all seeders
	for i, seeder := range s.seeders {
		s.wg.Add(1)
		go s.runSeeder(ctx, i, seeder)
	}

	s.logger.Info("seed server started",
		"seeder_count", len(s.seeders),
		"interval", s.config.Interval,
	)

	// Wait for shutdown signal
	select {
	case sig := <-sigChan:
		s.logger.Info("received shutdown signal", "signal", sig.String())
		cancel()
	case <-ctx.Done():
		s.logger.Info("context canceled, shutting down")
	}

	// Wait for all seeders to finish
	s.logger.Info("waiting for seeders to shut down...")
	s.wg.Wait()

	// Close all MQ clients
	s.logger.Info("closing MQ clients...")
	s.closeClients()

	s.logger.Info("seed server stopped")
	return nil
}

// runSeeder runs a single seeder instance, publishing batches at configured intervals.
func (s *Server) runSeeder(ctx context.Context, id int, seeder *Seeder) {
	defer s.wg.Done()

	if s.metrics != nil {
		s.metrics.ActiveSeeders.Inc()
		defer s.metrics.ActiveSeeders.Dec()
	}

	ticker := time.NewTicker(s.config.Interval)
	defer ticker.Stop()

	seederLogger := s.logger.With(slog.Int("seeder_id", id))
	seederLogger.Info("seeder started")

	for {
		select {
		case <-ctx.Done():
			seederLogger.Info("seeder shutting down")
			return

		case <-ticker.C:
			if err := seeder.PublishForecastBatch(ctx); err != nil {
				seederLogger.Error("failed to publish forecast batch",
					"error", err,
				)
				// Continue on error - don't stop the seeder
			}

			if err := seeder.PublishFloodBatch(ctx); err != nil {
				seederLogger.Error("failed to publish flood batch",
					"error", err,
				)
				continue
			}

			seederLogger.Debug("batch cycle published")
		}
	}
}

// closeClients closes all MQ clients gracefully.
func (s *Server) closeClients() {
	var wg sync.WaitGroup

	for i, client := range s.forecastClients {
		wg.Add(1)
		go func(id int, c *mq.Client) {
			defer wg.Done()

			if err := c.Close(); err != nil {
				s.logger.Error("failed to close forecast MQ client",
					"seeder_id", id,
					"error", err,
				)
				return
			}

			s.logger.Info("forecast MQ client closed", "seeder_id", id)
		}(i, client)
	}

	for i, client := range s.floodClients {
		wg.Add(1)
		go func(id int, c *mq.Client) {
			defer wg.Done()

			if err := c.Close(); err != nil {
				s.logger.Error("failed to close flood MQ client",
					"seeder_id", id,
					"error", err,
				)
				return
			}

			s.logger.Info("flood MQ client closed", "seeder_id", id)
		}(i, client)
	}

	wg.Wait()
}

// Shutdown initiates a graceful shutdown of the server.
// This is an alternative to sending OS signals.
func (s *Server) Shutdown() error {
	s.logger.Info("shutdown requested")

	s.closeClients()

	return nil
}
