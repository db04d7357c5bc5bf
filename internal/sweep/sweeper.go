// Package sweep removes expired and orphaned rows from the database so the
// tables only hold data that can still produce a notification.
package sweep

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync/atomic"
	"time"

	"github.com/jonboulle/clockwork"

	"skycast.dev/weather-alerts/internal/store"
	"skycast.dev/weather-alerts/pkg/metrics"
)

// Default retention windows. Forecasts refresh often, so stale rows are
// worthless fast; flood warnings stay visible for a week of history.
const (
	DefaultForecastWindow   = 30 * time.Minute
	DefaultAirQualityWindow = 24 * time.Hour
	DefaultFloodWindow      = 7 * 24 * time.Hour
)

// ErrSweepInProgress is returned when a sweep is requested while a previous
// one is still running.
var ErrSweepInProgress = errors.New("sweep already in progress")

// Sweeper runs the retention pass over the alert tables.
type Sweeper struct {
	store   *store.Store
	logger  *slog.Logger
	clock   clockwork.Clock
	metrics *metrics.SweepMetrics // Optional metrics

	forecastWindow   time.Duration
	airQualityWindow time.Duration
	floodWindow      time.Duration

	running atomic.Bool
}

// SweeperConfig holds the configuration for a Sweeper.
type SweeperConfig struct {
	Logger *slog.Logger
	Store  *store.Store
	// Clock is optional; a nil clock uses the real one.
	Clock clockwork.Clock

	// Zero windows fall back to the defaults above.
	ForecastWindow   time.Duration
	AirQualityWindow time.Duration
	FloodWindow      time.Duration
}

// NewSweeper creates a new Sweeper instance.
func NewSweeper(cfg *SweeperConfig) (*Sweeper, error) {
	if cfg == nil {
		return nil, errors.New("sweeper config cannot be nil")
	}

	if cfg.Logger == nil {
		return nil, errors.New("logger cannot be nil")
	}

	if cfg.Store == nil {
		return nil, errors.New("store cannot be nil")
	}

	clock := cfg.Clock
	if clock == nil {
		clock = clockwork.NewRealClock()
	}

	s := &Sweeper{
		store:            cfg.Store,
		logger:           cfg.Logger,
		clock:            clock,
		forecastWindow:   cfg.ForecastWindow,
		airQualityWindow: cfg.AirQualityWindow,
		floodWindow:      cfg.FloodWindow,
	}
	if s.forecastWindow <= 0 {
		s.forecastWindow = DefaultForecastWindow
	}
	if s.airQualityWindow <= 0 {
		s.airQualityWindow = DefaultAirQualityWindow
	}
	if s.floodWindow <= 0 {
		s.floodWindow = DefaultFloodWindow
	}
	return s, nil
}

// SetMetrics sets the metrics collector for this sweeper.
func (s *Sweeper) SetMetrics(m *metrics.SweepMetrics) {
	s.metrics = m
}

type step struct {
	name string
	run  func(ctx context.Context) (int64, error)
}

// Sweep runs one retention pass. Overlapping invocations are rejected with
// ErrSweepInProgress. Steps run in dependency order: alerts before the
// forecasts they reference, air readings before the reports they hang off.
// A failed step does not stop the pass; each later step re-checks its own
// references against the live tables.
func (s *Sweeper) Sweep(ctx context.Context) error {
	if !s.running.CompareAndSwap(false, true) {
		if s.metrics != nil {
			s.metrics.SweepsSkipped.Inc()
		}
		return ErrSweepInProgress
	}
	defer s.running.Store(false)

	now := s.clock.Now().UTC()
	steps := []step{
		{"weather_alerts", func(ctx context.Context) (int64, error) {
			return s.store.DeleteExpiredWeatherAlerts(ctx, now)
		}},
		{"forecasts", func(ctx context.Context) (int64, error) {
			return s.store.DeleteExpiredForecasts(ctx, now.Add(-s.forecastWindow))
		}},
		{"air_quality_readings", func(ctx context.Context) (int64, error) {
			return s.store.DeleteStaleAirQuality(ctx, now.Add(-s.airQualityWindow))
		}},
		{"weather_reports", s.store.DeleteOrphanWeatherReports},
		{"flood_warnings", func(ctx context.Context) (int64, error) {
			return s.store.DeleteExpiredFloodWarnings(ctx, now.Add(-s.floodWindow))
		}},
	}

	var errs []error
	for _, st := range steps {
		if ctx.Err() != nil {
			errs = append(errs, ctx.Err())
			break
		}

		start := time.Now()
		deleted, err := st.run(ctx)
		if s.metrics != nil {
			s.metrics.StepDuration.WithLabelValues(st.name).Observe(time.Since(start).Seconds())
		}
		if err != nil {
			if s.metrics != nil {
				s.metrics.StepFailures.WithLabelValues(st.name).Inc()
			}
			s.logger.Error("sweep step failed", "step", st.name, "error", err)
			errs = append(errs, fmt.Errorf("%s: %w", st.name, err))
			continue
		}

		if s.metrics != nil {
			s.metrics.RowsDeleted.WithLabelValues(st.name).Add(float64(deleted))
		}
		s.logger.Info("sweep step done", "step", st.name, "deleted", deleted)
	}

	if s.metrics != nil {
		s.metrics.LastSweepTime.SetToCurrentTime()
	}
	return errors.Join(errs...)
}
