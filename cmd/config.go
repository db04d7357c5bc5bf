// Package main provides the unified CLI entry point for the weather-alerts services.
package main

import (
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/spf13/viper"

	"skycast.dev/weather-alerts/internal/store"
	"skycast.dev/weather-alerts/pkg/logger"
)

// InitConfig initializes Viper configuration.
// It supports reading from config files (config.yaml) and environment variables.
func InitConfig(cfgFile string) error {
	if cfgFile != "" {
		// Use config file from the flag
		viper.SetConfigFile(cfgFile)
	} else {
		// Search for config in current directory and /etc/weather-alerts/
		viper.AddConfigPath(".")
		viper.AddConfigPath("/etc/weather-alerts/")
		viper.SetConfigType("yaml")
		viper.SetConfigName("config")
	}

	// Environment variables
	viper.SetEnvPrefix("WEATHER_ALERTS")
	viper.SetEnvKeyReplacer(strings.NewReplacer(".", "_", "-", "_"))
	viper.AutomaticEnv()

	// Read config file if it exists
	if err := viper.ReadInConfig(); err != nil {
		var configNotFoundErr viper.ConfigFileNotFoundError
		if errors.As(err, &configNotFoundErr) {
			// Config file not found; rely on env vars and defaults
			return nil
		}
		return fmt.Errorf("failed to read config file: %w", err)
	}

	return nil
}

// GetLogger creates a slog.Logger for the named service based on
// configuration.
func GetLogger(service string) *slog.Logger {
	logLevel := viper.GetString("log.level")
	if logLevel == "" {
		logLevel = "info"
	}

	return logger.NewService(service, logger.ParseLevel(logLevel))
}

// dbConfigFromViper builds a database config from the keys under prefix.
// Every subcommand shares the same db flag set, so the lookup is shared too.
func dbConfigFromViper(prefix string, logger *slog.Logger) *store.DBConfig {
	return &store.DBConfig{
		Logger:   logger,
		Host:     viper.GetString(prefix + ".db.host"),
		Port:     viper.GetInt(prefix + ".db.port"),
		User:     viper.GetString(prefix + ".db.user"),
		Password: viper.GetString(prefix + ".db.password"),
		DBName:   viper.GetString(prefix + ".db.name"),
		SSLMode:  viper.GetString(prefix + ".db.sslmode"),
	}
}
