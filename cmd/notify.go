package main

import (
	"context"
	"log/slog"
	"time"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"skycast.dev/weather-alerts/internal/notify"
	"skycast.dev/weather-alerts/internal/store"
)

var notifyCmd = &cobra.Command{
	Use:   "notify",
	Short: "Run one notification cycle",
	Long: `Run one notification cycle that:
- Selects recipients with undelivered alerts at subscribed locations
- Renders one HTML digest per recipient
- Sends it via AWS SES and marks the delivered rows notified`,
	RunE: runNotify,
}

func init() {
	rootCmd.AddCommand(notifyCmd)

	// Notify-specific flags
	notifyCmd.Flags().String("db-host", "localhost", "PostgreSQL host")
	notifyCmd.Flags().Int("db-port", 5432, "PostgreSQL port")
	notifyCmd.Flags().String("db-user", "postgres", "PostgreSQL user")
	notifyCmd.Flags().String("db-password", "", "PostgreSQL password")
	notifyCmd.Flags().String("db-name", "weather", "PostgreSQL database name")
	notifyCmd.Flags().String("db-sslmode", "disable", "PostgreSQL SSL mode")
	notifyCmd.Flags().String("aws-region", "eu-west-2", "AWS region for SES")
	notifyCmd.Flags().String("sender", "", "Verified SES sender address")
	notifyCmd.Flags().Duration("send-timeout", 10*time.Second, "Per-email delivery timeout")

	// Bind flags to viper
	_ = viper.BindPFlag("notify.db.host", notifyCmd.Flags().Lookup("db-host"))
	_ = viper.BindPFlag("notify.db.port", notifyCmd.Flags().Lookup("db-port"))
	_ = viper.BindPFlag("notify.db.user", notifyCmd.Flags().Lookup("db-user"))
	_ = viper.BindPFlag("notify.db.password", notifyCmd.Flags().Lookup("db-password"))
	_ = viper.BindPFlag("notify.db.name", notifyCmd.Flags().Lookup("db-name"))
	_ = viper.BindPFlag("notify.db.sslmode", notifyCmd.Flags().Lookup("db-sslmode"))
	_ = viper.BindPFlag("notify.aws.region", notifyCmd.Flags().Lookup("aws-region"))
	_ = viper.BindPFlag("notify.sender", notifyCmd.Flags().Lookup("sender"))
	_ = viper.BindPFlag("notify.send_timeout", notifyCmd.Flags().Lookup("send-timeout"))
}

// newNotifyEngine builds a notification engine from the keys under prefix.
// The worker command reuses it with its own prefix.
func newNotifyEngine(ctx context.Context, prefix string, st *store.Store, logger *slog.Logger) (*notify.Engine, error) {
	mailer, err := notify.NewSESMailer(ctx,
		viper.GetString(prefix+".aws.region"),
		viper.GetString(prefix+".sender"),
	)
	if err != nil {
		return nil, err
	}

	return notify.NewEngine(&notify.EngineConfig{
		Logger: logger,
		Source: st,
		Mailer: notify.NewBreakerMailer(mailer, viper.GetDuration(prefix+".send_timeout")),
	})
}

func runNotify(_ *cobra.Command, _ []string) error {
	logger := GetLogger("notify")
	logger.Info("starting notification cycle")

	ctx := context.Background()

	db, err := store.NewDB(dbConfigFromViper("notify", logger))
	if err != nil {
		logger.Error("failed to connect to database", "error", err)
		return err
	}
	defer store.CloseDB(db, logger)

	engine, err := newNotifyEngine(ctx, "notify", store.New(db), logger)
	if err != nil {
		logger.Error("failed to create notification engine", "error", err)
		return err
	}

	if err := engine.Run(ctx); err != nil {
		logger.Error("notification cycle error", "error", err)
		return err
	}

	logger.Info("notification cycle complete")
	return nil
}
