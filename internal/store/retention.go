package store

import (
	"context"
	"fmt"
	"time"

	"skycast.dev/weather-alerts/internal/classify"
)

// Retention deletes. Each method is a single atomic statement and deletes
// children before the sweeper moves on to parents; every subquery re-checks
// references so a partially-completed sweep can never strand a foreign key.

// DeleteExpiredWeatherAlerts removes alerts whose forecast timestamp has
// passed, plus any row that somehow carries Normal severity.
func (s *Store) DeleteExpiredWeatherAlerts(ctx context.Context, now time.Time) (int64, error) {
	res := s.db.WithContext(ctx).
		Where("forecast_id IN (?)",
			s.db.Model(&Forecast{}).Select("id").Where("forecast_at < ?", now.UTC())).
		Or("severity = ?", classify.Normal).
		Delete(&WeatherAlert{})
	if res.Error != nil {
		return 0, fmt.Errorf("delete expired weather alerts: %w", res.Error)
	}
	return res.RowsAffected, nil
}

// DeleteExpiredForecasts removes forecasts past the retention window that
// no weather alert still references.
func (s *Store) DeleteExpiredForecasts(ctx context.Context, cutoff time.Time) (int64, error) {
	res := s.db.WithContext(ctx).
		Where("forecast_at < ?", cutoff.UTC()).
		Where("id NOT IN (?)", s.db.Model(&WeatherAlert{}).Select("forecast_id")).
		Delete(&Forecast{})
	if res.Error != nil {
		return 0, fmt.Errorf("delete expired forecasts: %w", res.Error)
	}
	return res.RowsAffected, nil
}

// DeleteStaleAirQuality removes readings whose weather report was captured
// before the cutoff.
func (s *Store) DeleteStaleAirQuality(ctx context.Context, cutoff time.Time) (int64, error) {
	res := s.db.WithContext(ctx).
		Where("weather_report_id IN (?)",
			s.db.Model(&WeatherReport{}).Select("id").Where("captured_at < ?", cutoff.UTC())).
		Delete(&AirQualityReading{})
	if res.Error != nil {
		return 0, fmt.Errorf("delete stale air quality readings: %w", res.Error)
	}
	return res.RowsAffected, nil
}

// DeleteOrphanWeatherReports removes reports referenced by no forecast and
// no air-quality reading.
func (s *Store) DeleteOrphanWeatherReports(ctx context.Context) (int64, error) {
	res := s.db.WithContext(ctx).
		Where("id NOT IN (?)", s.db.Model(&Forecast{}).Select("weather_report_id")).
		Where("id NOT IN (?)", s.db.Model(&AirQualityReading{}).Select("weather_report_id")).
		Delete(&WeatherReport{})
	if res.Error != nil {
		return 0, fmt.Errorf("delete orphan weather reports: %w", res.Error)
	}
	return res.RowsAffected, nil
}

// DeleteExpiredFloodWarnings removes warnings raised before the cutoff,
// regardless of notified state.
func (s *Store) DeleteExpiredFloodWarnings(ctx context.Context, cutoff time.Time) (int64, error) {
	res := s.db.WithContext(ctx).
		Where("time_raised < ?", cutoff.UTC()).
		Delete(&FloodWarning{})
	if res.Error != nil {
		return 0, fmt.Errorf("delete expired flood warnings: %w", res.Error)
	}
	return res.RowsAffected, nil
}
