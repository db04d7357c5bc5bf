package main

import (
	"context"
	"time"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"skycast.dev/weather-alerts/internal/seed"
	"skycast.dev/weather-alerts/pkg/metrics"
)

var seedCmd = &cobra.Command{
	Use:   "seed",
	Short: "Run the synthetic data seeder",
	Long: `Run the seeder that:
- Generates synthetic forecast batches for random sites
- Occasionally raises synthetic flood warnings
- Publishes both to RabbitMQ for the ingest server
- Supports multiple concurrent seeders`,
	RunE: runSeed,
}

func init() {
	rootCmd.AddCommand(seedCmd)

	// Seed-specific flags
	seedCmd.Flags().String("rabbitmq-url", "amqp://localhost:5672", "RabbitMQ URL")
	seedCmd.Flags().String("forecast-queue", "forecast-data", "RabbitMQ queue name for forecast batches")
	seedCmd.Flags().String("flood-queue", "flood-data", "RabbitMQ queue name for flood warnings")
	seedCmd.Flags().Int("seeder-count", 3, "Number of concurrent seeders")
	seedCmd.Flags().Duration("interval", 5*time.Second, "Interval between batch publications")

	// Bind flags to viper
	_ = viper.BindPFlag("seed.rabbitmq.url", seedCmd.Flags().Lookup("rabbitmq-url"))
	_ = viper.BindPFlag("seed.rabbitmq.forecast_queue", seedCmd.Flags().Lookup("forecast-queue"))
	_ = viper.BindPFlag("seed.rabbitmq.flood_queue", seedCmd.Flags().Lookup("flood-queue"))
	_ = viper.BindPFlag("seed.seeder_count", seedCmd.Flags().Lookup("seeder-count"))
	_ = viper.BindPFlag("seed.interval", seedCmd.Flags().Lookup("interval"))
}

func runSeed(_ *cobra.Command, _ []string) error {
	logger := GetLogger("seed")
	logger.Info("starting seed service")

	// Create seed configuration from viper
	config := &seed.ServerConfig{
		Logger:        logger,
		RabbitMQURL:   viper.GetString("seed.rabbitmq.url"),
		ForecastQueue: viper.GetString("seed.rabbitmq.forecast_queue"),
		FloodQueue:    viper.GetString("seed.rabbitmq.flood_queue"),
		SeederCount:   viper.GetInt("seed.seeder_count"),
		Interval:      viper.GetDuration("seed.interval"),
		Metrics:       metrics.NewSeedMetrics("weather_alerts"),
		MQMetrics:     metrics.NewMQMetrics("weather_alerts"),
	}

	// Create and run server
	server, err := seed.NewServer(config)
	if err != nil {
		logger.Error("failed to create seed server", "error", err)
		return err
	}

	logger.Info("seed server configuration",
		"rabbitmq_url", config.RabbitMQURL,
		"forecast_queue", config.ForecastQueue,
		"flood_queue", config.FloodQueue,
		"seeder_count", config.SeederCount,
		"interval", config.Interval,
	)

	if err := server.Run(context.Background()); err != nil {
		logger.Error("seed server error", "error", err)
		return err
	}

	logger.Info("seed server stopped")
	return nil
}
