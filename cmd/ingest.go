package main

import (
	"context"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"skycast.dev/weather-alerts/internal/ingest"
)

var ingestCmd = &cobra.Command{
	Use:   "ingest",
	Short: "Run the ingest server",
	Long: `Run the ingest server that:
- Consumes forecast batches from RabbitMQ
- Consumes flood warnings from RabbitMQ
- Classifies hazards and persists alerts to PostgreSQL
- Reverse-geocodes new coordinate pairs`,
	RunE: runIngest,
}

func init() {
	rootCmd.AddCommand(ingestCmd)

	// Ingest-specific flags
	ingestCmd.Flags().String("db-host", "localhost", "PostgreSQL host")
	ingestCmd.Flags().Int("db-port", 5432, "PostgreSQL port")
	ingestCmd.Flags().String("db-user", "postgres", "PostgreSQL user")
	ingestCmd.Flags().String("db-password", "", "PostgreSQL password")
	ingestCmd.Flags().String("db-name", "weather", "PostgreSQL database name")
	ingestCmd.Flags().String("db-sslmode", "disable", "PostgreSQL SSL mode")
	ingestCmd.Flags().String("rabbitmq-url", "amqp://localhost:5672", "RabbitMQ URL")
	ingestCmd.Flags().String("forecast-queue", "forecast-data", "RabbitMQ queue name for forecast batches")
	ingestCmd.Flags().String("flood-queue", "flood-data", "RabbitMQ queue name for flood warnings")
	ingestCmd.Flags().String("geocoder-api-key", "", "Google Geocoding API key")
	ingestCmd.Flags().Int("metrics-port", 9091, "Prometheus metrics port")

	// Bind flags to viper
	_ = viper.BindPFlag("ingest.db.host", ingestCmd.Flags().Lookup("db-host"))
	_ = viper.BindPFlag("ingest.db.port", ingestCmd.Flags().Lookup("db-port"))
	_ = viper.BindPFlag("ingest.db.user", ingestCmd.Flags().Lookup("db-user"))
	_ = viper.BindPFlag("ingest.db.password", ingestCmd.Flags().Lookup("db-password"))
	_ = viper.BindPFlag("ingest.db.name", ingestCmd.Flags().Lookup("db-name"))
	_ = viper.BindPFlag("ingest.db.sslmode", ingestCmd.Flags().Lookup("db-sslmode"))
	_ = viper.BindPFlag("ingest.rabbitmq.url", ingestCmd.Flags().Lookup("rabbitmq-url"))
	_ = viper.BindPFlag("ingest.rabbitmq.forecast_queue", ingestCmd.Flags().Lookup("forecast-queue"))
	_ = viper.BindPFlag("ingest.rabbitmq.flood_queue", ingestCmd.Flags().Lookup("flood-queue"))
	_ = viper.BindPFlag("ingest.geocoder.api_key", ingestCmd.Flags().Lookup("geocoder-api-key"))
	_ = viper.BindPFlag("ingest.metrics.port", ingestCmd.Flags().Lookup("metrics-port"))
}

func runIngest(_ *cobra.Command, _ []string) error {
	logger := GetLogger("ingest")
	logger.Info("starting ingest service")

	// Create ingest configuration from viper
	config := &ingest.ServerConfig{
		Logger:         logger,
		DBHost:         viper.GetString("ingest.db.host"),
		DBPort:         viper.GetInt("ingest.db.port"),
		DBUser:         viper.GetString("ingest.db.user"),
		DBPassword:     viper.GetString("ingest.db.password"),
		DBName:         viper.GetString("ingest.db.name"),
		DBSSLMode:      viper.GetString("ingest.db.sslmode"),
		RabbitMQURL:    viper.GetString("ingest.rabbitmq.url"),
		ForecastQueue:  viper.GetString("ingest.rabbitmq.forecast_queue"),
		FloodQueue:     viper.GetString("ingest.rabbitmq.flood_queue"),
		GeocoderAPIKey: viper.GetString("ingest.geocoder.api_key"),
		MetricsPort:    viper.GetInt("ingest.metrics.port"),
	}

	// Create and run server
	server, err := ingest.NewServer(config)
	if err != nil {
		logger.Error("failed to create ingest server", "error", err)
		return err
	}

	logger.Info("ingest server configuration",
		"db_host", config.DBHost,
		"db_port", config.DBPort,
		"db_name", config.DBName,
		"rabbitmq_url", config.RabbitMQURL,
		"forecast_queue", config.ForecastQueue,
		"flood_queue", config.FloodQueue,
		"metrics_port", config.MetricsPort,
	)

	if err := server.Run(context.Background()); err != nil {
		logger.Error("ingest server error", "error", err)
		return err
	}

	logger.Info("ingest server stopped")
	return nil
}
