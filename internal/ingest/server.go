package ingest

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"gorm.io/gorm"

	"skycast.dev/weather-alerts/internal/geo"
	"skycast.dev/weather-alerts/internal/store"
	"skycast.dev/weather-alerts/pkg/metrics"
)

// Server wires the ingest service: database, geocoder, both consumers, and
// the metrics endpoint.
type Server struct {
	logger   *slog.Logger
	db       *gorm.DB
	config   *ServerConfig
	forecast *ForecastConsumer
	flood    *FloodConsumer
}

// ServerConfig holds the configuration for the Server.
type ServerConfig struct {
	Logger *slog.Logger

	// Database configuration
	DBHost     string
	DBUser     string
	DBPassword string
	DBName     string
	DBSSLMode  string

	// RabbitMQ configuration
	RabbitMQURL   string
	ForecastQueue string
	FloodQueue    string

	// Geocoding collaborator
	GeocoderAPIKey string

	// Metrics endpoint
	MetricsPort int

	// Database port
	DBPort int
}

// NewServer creates a new Server instance.
func NewServer(cfg *ServerConfig) (*Server, error) {
	if cfg == nil {
		return nil, errors.New("server config cannot be nil")
	}

	if cfg.Logger == nil {
		return nil, errors.New("logger cannot be nil")
	}

	if cfg.RabbitMQURL == "" {
		return nil, errors.New("rabbitmq URL cannot be empty")
	}

	if cfg.ForecastQueue == "" {
		return nil, errors.New("forecast queue name cannot be empty")
	}

	if cfg.FloodQueue == "" {
		return nil, errors.New("flood queue name cannot be empty")
	}

	if cfg.DBHost == "" {
		return nil, errors.New("database host cannot be empty")
	}

	if cfg.DBPort <= 0 {
		return nil, errors.New("database port must be positive")
	}

	if cfg.DBUser == "" {
		return nil, errors.New("database user cannot be empty")
	}

	if cfg.DBName == "" {
		return nil, errors.New("database name cannot be empty")
	}

	return &Server{
		logger: cfg.Logger,
		config: cfg,
	}, nil
}

// Run starts the ingest service and blocks until shutdown.
func (s *Server) Run(ctx context.Context) error {
	s.logger.Info("starting ingest service")

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM, syscall.SIGINT)

	db, err := store.NewDB(&store.DBConfig{
		Host:     s.config.DBHost,
		Port:     s.config.DBPort,
		User:     s.config.DBUser,
		Password: s.config.DBPassword,
		DBName:   s.config.DBName,
		SSLMode:  s.config.DBSSLMode,
		Logger:   s.logger,
	})
	if err != nil {
		return fmt.Errorf("failed to initialize database: %w", err)
	}
	s.db = db
	defer func() {
		if err := store.CloseDB(s.db, s.logger); err != nil {
			s.logger.Error("failed to close database", "error", err)
		}
	}()

	ingestMetrics := metrics.NewIngestMetrics("weather_alerts")

	processor, err := NewProcessor(
		store.New(db),
		geo.NewGeocoder(s.config.GeocoderAPIKey),
		s.logger,
		nil,
	)
	if err != nil {
		return fmt.Errorf("failed to create processor: %w", err)
	}
	processor.SetMetrics(ingestMetrics)

	s.forecast, err = NewForecastConsumer(&ForecastConsumerConfig{
		Logger:      s.logger,
		Processor:   processor,
		RabbitMQURL: s.config.RabbitMQURL,
		QueueName:   s.config.ForecastQueue,
	})
	if err != nil {
		return fmt.Errorf("failed to create forecast consumer: %w", err)
	}
	s.forecast.SetMetrics(ingestMetrics)

	s.flood, err = NewFloodConsumer(&FloodConsumerConfig{
		Logger:      s.logger,
		Processor:   processor,
		RabbitMQURL: s.config.RabbitMQURL,
		QueueName:   s.config.FloodQueue,
	})
	if err != nil {
		return fmt.Errorf("failed to create flood consumer: %w", err)
	}
	s.flood.SetMetrics(ingestMetrics)

	// Give the MQ clients a moment to establish their connections.
	time.Sleep(2 * time.Second)

	if err := s.forecast.Start(ctx); err != nil {
		return fmt.Errorf("failed to start forecast consumer: %w", err)
	}
	if err := s.flood.Start(ctx); err != nil {
		return fmt.Errorf("failed to start flood consumer: %w", err)
	}

	metricsServer := s.startMetricsServer()

	s.logger.Info("ingest service started",
		"forecast_queue", s.config.ForecastQueue,
		"flood_queue", s.config.FloodQueue,
	)

	select {
	case sig := <-sigChan:
		s.logger.Info("received shutdown signal", "signal", sig.String())
	case <-ctx.Done():
		s.logger.Info("context canceled")
	}

	cancel()

	if metricsServer != nil {
		shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer shutdownCancel()
		if err := metricsServer.Shutdown(shutdownCtx); err != nil {
			s.logger.Error("metrics server shutdown failed", "error", err)
		}
	}

	if err := s.forecast.Stop(); err != nil {
		s.logger.Error("failed to stop forecast consumer", "error", err)
	}
	if err := s.flood.Stop(); err != nil {
		s.logger.Error("failed to stop flood consumer", "error", err)
	}

	s.logger.Info("ingest service stopped")
	return nil
}

// startMetricsServer exposes /metrics and /healthz when a port is
// configured.
func (s *Server) startMetricsServer() *http.Server {
	if s.config.MetricsPort <= 0 {
		return nil
	}

	mux := http.NewServeMux()
	mux.Handle("/metrics", metrics.Handler())
	mux.HandleFunc("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	})

	srv := &http.Server{
		Addr:              fmt.Sprintf(":%d", s.config.MetricsPort),
		Handler:           mux,
		ReadHeaderTimeout: 5 * time.Second,
	}

	go func() {
		s.logger.Info("metrics server listening", "port", s.config.MetricsPort)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			s.logger.Error("metrics server error", "error", err)
		}
	}()

	return srv
}
