package main

import (
	"context"
	"log/slog"
	"time"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"skycast.dev/weather-alerts/internal/store"
	"skycast.dev/weather-alerts/internal/sweep"
)

var sweepCmd = &cobra.Command{
	Use:   "sweep",
	Short: "Run one retention pass",
	Long: `Run one retention pass that:
- Deletes expired and informational weather alerts
- Deletes stale forecasts, air readings and weather reports
- Deletes flood warnings older than the retention window`,
	RunE: runSweep,
}

func init() {
	rootCmd.AddCommand(sweepCmd)

	// Sweep-specific flags
	sweepCmd.Flags().String("db-host", "localhost", "PostgreSQL host")
	sweepCmd.Flags().Int("db-port", 5432, "PostgreSQL port")
	sweepCmd.Flags().String("db-user", "postgres", "PostgreSQL user")
	sweepCmd.Flags().String("db-password", "", "PostgreSQL password")
	sweepCmd.Flags().String("db-name", "weather", "PostgreSQL database name")
	sweepCmd.Flags().String("db-sslmode", "disable", "PostgreSQL SSL mode")
	sweepCmd.Flags().Duration("forecast-window", sweep.DefaultForecastWindow, "Retention window for stale forecasts")
	sweepCmd.Flags().Duration("air-quality-window", sweep.DefaultAirQualityWindow, "Retention window for air quality readings")
	sweepCmd.Flags().Duration("flood-window", sweep.DefaultFloodWindow, "Retention window for flood warnings")

	// Bind flags to viper
	_ = viper.BindPFlag("sweep.db.host", sweepCmd.Flags().Lookup("db-host"))
	_ = viper.BindPFlag("sweep.db.port", sweepCmd.Flags().Lookup("db-port"))
	_ = viper.BindPFlag("sweep.db.user", sweepCmd.Flags().Lookup("db-user"))
	_ = viper.BindPFlag("sweep.db.password", sweepCmd.Flags().Lookup("db-password"))
	_ = viper.BindPFlag("sweep.db.name", sweepCmd.Flags().Lookup("db-name"))
	_ = viper.BindPFlag("sweep.db.sslmode", sweepCmd.Flags().Lookup("db-sslmode"))
	_ = viper.BindPFlag("sweep.forecast_window", sweepCmd.Flags().Lookup("forecast-window"))
	_ = viper.BindPFlag("sweep.air_quality_window", sweepCmd.Flags().Lookup("air-quality-window"))
	_ = viper.BindPFlag("sweep.flood_window", sweepCmd.Flags().Lookup("flood-window"))
}

// newSweeper builds a sweeper from the keys under prefix.
func newSweeper(prefix string, st *store.Store, logger *slog.Logger) (*sweep.Sweeper, error) {
	return sweep.NewSweeper(&sweep.SweeperConfig{
		Logger:           logger,
		Store:            st,
		ForecastWindow:   viper.GetDuration(prefix + ".forecast_window"),
		AirQualityWindow: viper.GetDuration(prefix + ".air_quality_window"),
		FloodWindow:      viper.GetDuration(prefix + ".flood_window"),
	})
}

func runSweep(_ *cobra.Command, _ []string) error {
	logger := GetLogger("sweep")
	logger.Info("starting retention pass")

	db, err := store.NewDB(dbConfigFromViper("sweep", logger))
	if err != nil {
		logger.Error("failed to connect to database", "error", err)
		return err
	}
	defer store.CloseDB(db, logger)

	sweeper, err := newSweeper("sweep", store.New(db), logger)
	if err != nil {
		logger.Error("failed to create sweeper", "error", err)
		return err
	}

	start := time.Now()
	if err := sweeper.Sweep(context.Background()); err != nil {
		logger.Error("retention pass error", "error", err)
		return err
	}

	logger.Info("retention pass complete", "duration", time.Since(start))
	return nil
}
