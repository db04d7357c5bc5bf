package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/robfig/cron/v3"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"skycast.dev/weather-alerts/internal/store"
	"skycast.dev/weather-alerts/pkg/metrics"
)

var workerCmd = &cobra.Command{
	Use:   "worker",
	Short: "Run the scheduled worker",
	Long: `Run the worker that schedules on cron:
- Notification cycles over undelivered alerts
- Retention passes over expired rows
and serves Prometheus metrics`,
	RunE: runWorker,
}

func init() {
	rootCmd.AddCommand(workerCmd)

	// Worker-specific flags
	workerCmd.Flags().String("db-host", "localhost", "PostgreSQL host")
	workerCmd.Flags().Int("db-port", 5432, "PostgreSQL port")
	workerCmd.Flags().String("db-user", "postgres", "PostgreSQL user")
	workerCmd.Flags().String("db-password", "", "PostgreSQL password")
	workerCmd.Flags().String("db-name", "weather", "PostgreSQL database name")
	workerCmd.Flags().String("db-sslmode", "disable", "PostgreSQL SSL mode")
	workerCmd.Flags().String("aws-region", "eu-west-2", "AWS region for SES")
	workerCmd.Flags().String("sender", "", "Verified SES sender address")
	workerCmd.Flags().Duration("send-timeout", 10*time.Second, "Per-email delivery timeout")
	workerCmd.Flags().String("notify-schedule", "*/5 * * * *", "Cron schedule for notification cycles")
	workerCmd.Flags().String("sweep-schedule", "*/15 * * * *", "Cron schedule for retention passes")
	workerCmd.Flags().Duration("forecast-window", 0, "Retention window for stale forecasts")
	workerCmd.Flags().Duration("air-quality-window", 0, "Retention window for air quality readings")
	workerCmd.Flags().Duration("flood-window", 0, "Retention window for flood warnings")
	workerCmd.Flags().Int("metrics-port", 9092, "Prometheus metrics port")

	// Bind flags to viper
	_ = viper.BindPFlag("worker.db.host", workerCmd.Flags().Lookup("db-host"))
	_ = viper.BindPFlag("worker.db.port", workerCmd.Flags().Lookup("db-port"))
	_ = viper.BindPFlag("worker.db.user", workerCmd.Flags().Lookup("db-user"))
	_ = viper.BindPFlag("worker.db.password", workerCmd.Flags().Lookup("db-password"))
	_ = viper.BindPFlag("worker.db.name", workerCmd.Flags().Lookup("db-name"))
	_ = viper.BindPFlag("worker.db.sslmode", workerCmd.Flags().Lookup("db-sslmode"))
	_ = viper.BindPFlag("worker.aws.region", workerCmd.Flags().Lookup("aws-region"))
	_ = viper.BindPFlag("worker.sender", workerCmd.Flags().Lookup("sender"))
	_ = viper.BindPFlag("worker.send_timeout", workerCmd.Flags().Lookup("send-timeout"))
	_ = viper.BindPFlag("worker.notify_schedule", workerCmd.Flags().Lookup("notify-schedule"))
	_ = viper.BindPFlag("worker.sweep_schedule", workerCmd.Flags().Lookup("sweep-schedule"))
	_ = viper.BindPFlag("worker.forecast_window", workerCmd.Flags().Lookup("forecast-window"))
	_ = viper.BindPFlag("worker.air_quality_window", workerCmd.Flags().Lookup("air-quality-window"))
	_ = viper.BindPFlag("worker.flood_window", workerCmd.Flags().Lookup("flood-window"))
	_ = viper.BindPFlag("worker.metrics.port", workerCmd.Flags().Lookup("metrics-port"))
}

func runWorker(_ *cobra.Command, _ []string) error {
	logger := GetLogger("worker")
	logger.Info("starting worker service")

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	db, err := store.NewDB(dbConfigFromViper("worker", logger))
	if err != nil {
		logger.Error("failed to connect to database", "error", err)
		return err
	}
	defer store.CloseDB(db, logger)

	st := store.New(db)

	engine, err := newNotifyEngine(ctx, "worker", st, logger)
	if err != nil {
		logger.Error("failed to create notification engine", "error", err)
		return err
	}
	engine.SetMetrics(metrics.NewNotifyMetrics("weather_alerts"))

	sweeper, err := newSweeper("worker", st, logger)
	if err != nil {
		logger.Error("failed to create sweeper", "error", err)
		return err
	}
	sweeper.SetMetrics(metrics.NewSweepMetrics("weather_alerts"))

	scheduler := cron.New()
	_, err = scheduler.AddFunc(viper.GetString("worker.notify_schedule"), func() {
		if err := engine.Run(ctx); err != nil {
			logger.Error("notification cycle failed", "error", err)
		}
	})
	if err != nil {
		logger.Error("invalid notify schedule", "error", err)
		return err
	}

	_, err = scheduler.AddFunc(viper.GetString("worker.sweep_schedule"), func() {
		if err := sweeper.Sweep(ctx); err != nil {
			logger.Error("retention pass failed", "error", err)
		}
	})
	if err != nil {
		logger.Error("invalid sweep schedule", "error", err)
		return err
	}

	// Metrics endpoint
	mux := http.NewServeMux()
	mux.Handle("/metrics", metrics.Handler())
	mux.HandleFunc("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	})
	metricsServer := &http.Server{
		Addr:              fmt.Sprintf(":%d", viper.GetInt("worker.metrics.port")),
		Handler:           mux,
		ReadHeaderTimeout: 5 * time.Second,
	}
	go func() {
		if err := metricsServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Error("metrics server error", "error", err)
		}
	}()

	scheduler.Start()
	logger.Info("worker started",
		"notify_schedule", viper.GetString("worker.notify_schedule"),
		"sweep_schedule", viper.GetString("worker.sweep_schedule"),
		"metrics_port", viper.GetInt("worker.metrics.port"),
	)

	// Wait for shutdown signal
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM, syscall.SIGINT)
	sig := <-sigChan
	logger.Info("received shutdown signal", "signal", sig.String())

	cancel()
	// Let in-flight jobs finish before exiting
	stopCtx := scheduler.Stop()
	<-stopCtx.Done()

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer shutdownCancel()
	if err := metricsServer.Shutdown(shutdownCtx); err != nil {
		logger.Error("metrics server shutdown error", "error", err)
	}

	logger.Info("worker stopped")
	return nil
}
