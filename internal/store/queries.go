package store

import (
	"context"
	"fmt"
	"sort"
	"time"

	"skycast.dev/weather-alerts/internal/classify"
)

// AlertCategory tags an alert record with its source table so rendering can
// group by category and pick the right label.
type AlertCategory string

const (
	CategoryWeather    AlertCategory = "weather"
	CategoryAirQuality AlertCategory = "air_quality"
	CategoryFlood      AlertCategory = "flood"
)

// AlertRecord is one undelivered alert joined with the context a
// notification needs: where it is, how bad it is, and the one measurement
// relevant to its hazard.
type AlertRecord struct {
	ForecastAt  time.Time
	TimeRaised  time.Time
	Category    AlertCategory
	Location    string
	County      string
	Severity    classify.Severity
	AlertType   classify.AlertType
	Measurement float64
	ID          uint
}

// weatherAlertRow is the scan target for the weather alert join; the
// forecast variables ride along so the relevant one can be picked per type.
type weatherAlertRow struct {
	ForecastAt         time.Time
	LocationName       string
	CountyName         string
	AlertType          classify.AlertType
	Severity           classify.Severity
	Temperature        float64
	WindSpeed          float64
	WindGusts          float64
	LightningPotential float64
	Snowfall           float64
	Visibility         float64
	UVIndex            float64
	Rainfall           float64
	ID                 uint
}

// measurement picks the forecast variable that matters for the alert type.
func (r weatherAlertRow) measurement() float64 {
	switch r.AlertType {
	case classify.HeatAlert, classify.IceAlert:
		return r.Temperature
	case classify.WindAlert:
		return r.WindGusts
	case classify.LightningAlert:
		return r.LightningPotential
	case classify.SnowfallAlert:
		return r.Snowfall
	case classify.VisibilityAlert:
		return r.Visibility
	case classify.UVAlert:
		return r.UVIndex
	case classify.RainAlert:
		return r.Rainfall
	default:
		return 0
	}
}

// UndeliveredRecipients returns every opted-in recipient with at least one
// un-notified alert row for a location they are assigned to. Air-quality
// rows at Normal severity never trigger notification.
func (s *Store) UndeliveredRecipients(ctx context.Context) ([]string, error) {
	seen := map[string]struct{}{}

	queries := []struct {
		name string
		run  func() ([]string, error)
	}{
		{"weather", func() ([]string, error) {
			var emails []string
			err := s.db.WithContext(ctx).
				Table("weather_alerts AS wa").
				Distinct().
				Joins("JOIN forecasts f ON f.id = wa.forecast_id").
				Joins("JOIN subscriptions sub ON sub.location_id = f.location_id").
				Joins("JOIN recipients r ON r.id = sub.recipient_id").
				Where("wa.notified = ? AND sub.alert_opt_in = ?", false, true).
				Pluck("r.email", &emails).Error
			return emails, err
		}},
		{"air quality", func() ([]string, error) {
			var emails []string
			err := s.db.WithContext(ctx).
				Table("air_quality_readings AS aq").
				Distinct().
				Joins("JOIN weather_reports wr ON wr.id = aq.weather_report_id").
				Joins("JOIN subscriptions sub ON sub.location_id = wr.location_id").
				Joins("JOIN recipients r ON r.id = sub.recipient_id").
				Where("aq.notified = ? AND aq.severity <> ? AND sub.alert_opt_in = ?",
					false, classify.Normal, true).
				Pluck("r.email", &emails).Error
			return emails, err
		}},
		{"flood", func() ([]string, error) {
			var emails []string
			err := s.db.WithContext(ctx).
				Table("flood_warnings AS fw").
				Distinct().
				Joins("JOIN subscriptions sub ON sub.location_id = fw.location_id").
				Joins("JOIN recipients r ON r.id = sub.recipient_id").
				Where("fw.notified = ? AND sub.alert_opt_in = ?", false, true).
				Pluck("r.email", &emails).Error
			return emails, err
		}},
	}

	for _, q := range queries {
		emails, err := q.run()
		if err != nil {
			return nil, fmt.Errorf("select %s recipients: %w", q.name, err)
		}
		for _, email := range emails {
			seen[email] = struct{}{}
		}
	}

	recipients := make([]string, 0, len(seen))
	for email := range seen {
		recipients = append(recipients, email)
	}
	sort.Strings(recipients)
	return recipients, nil
}

// AlertsForRecipient collects every un-notified alert visible to one
// recipient across the three alert tables, tagged by category. Weather
// rows come first ordered by forecast time, then air quality, then floods
// ordered by time raised, so rendering is deterministic.
func (s *Store) AlertsForRecipient(ctx context.Context, email string) ([]AlertRecord, error) {
	var records []AlertRecord

	var weatherRows []weatherAlertRow
	err := s.db.WithContext(ctx).
		Table("weather_alerts AS wa").
		Select(`wa.id, wa.alert_type, wa.severity, f.forecast_at,
			f.temperature, f.wind_speed, f.wind_gusts, f.lightning_potential,
			f.snowfall, f.visibility, f.uv_index, f.rainfall,
			l.name AS location_name, c.name AS county_name`).
		Joins("JOIN forecasts f ON f.id = wa.forecast_id").
		Joins("JOIN locations l ON l.id = f.location_id").
		Joins("JOIN counties c ON c.id = l.county_id").
		Joins("JOIN subscriptions sub ON sub.location_id = l.id").
		Joins("JOIN recipients r ON r.id = sub.recipient_id").
		Where("wa.notified = ? AND sub.alert_opt_in = ? AND r.email = ?", false, true, email).
		Order("f.forecast_at, wa.alert_type").
		Scan(&weatherRows).Error
	if err != nil {
		return nil, fmt.Errorf("collect weather alerts: %w", err)
	}
	for _, row := range weatherRows {
		records = append(records, AlertRecord{
			Category:    CategoryWeather,
			ID:          row.ID,
			Severity:    row.Severity,
			AlertType:   row.AlertType,
			Location:    row.LocationName,
			County:      row.CountyName,
			ForecastAt:  row.ForecastAt,
			Measurement: row.measurement(),
		})
	}

	var airRows []struct {
		LocationName    string
		CountyName      string
		Severity        classify.Severity
		O3Concentration float64
		ID              uint
	}
	err = s.db.WithContext(ctx).
		Table("air_quality_readings AS aq").
		Select(`aq.id, aq.severity, aq.o3_concentration,
			l.name AS location_name, c.name AS county_name`).
		Joins("JOIN weather_reports wr ON wr.id = aq.weather_report_id").
		Joins("JOIN locations l ON l.id = wr.location_id").
		Joins("JOIN counties c ON c.id = l.county_id").
		Joins("JOIN subscriptions sub ON sub.location_id = l.id").
		Joins("JOIN recipients r ON r.id = sub.recipient_id").
		Where("aq.notified = ? AND aq.severity <> ? AND sub.alert_opt_in = ? AND r.email = ?",
			false, classify.Normal, true, email).
		Order("aq.id").
		Scan(&airRows).Error
	if err != nil {
		return nil, fmt.Errorf("collect air quality alerts: %w", err)
	}
	for _, row := range airRows {
		records = append(records, AlertRecord{
			Category:    CategoryAirQuality,
			ID:          row.ID,
			Severity:    row.Severity,
			Location:    row.LocationName,
			County:      row.CountyName,
			Measurement: row.O3Concentration,
		})
	}

	var floodRows []struct {
		TimeRaised   time.Time
		LocationName string
		CountyName   string
		Severity     classify.Severity
		ID           uint
	}
	err = s.db.WithContext(ctx).
		Table("flood_warnings AS fw").
		Select(`fw.id, fw.severity, fw.time_raised,
			l.name AS location_name, c.name AS county_name`).
		Joins("JOIN locations l ON l.id = fw.location_id").
		Joins("JOIN counties c ON c.id = l.county_id").
		Joins("JOIN subscriptions sub ON sub.location_id = l.id").
		Joins("JOIN recipients r ON r.id = sub.recipient_id").
		Where("fw.notified = ? AND sub.alert_opt_in = ? AND r.email = ?", false, true, email).
		Order("fw.time_raised, fw.id").
		Scan(&floodRows).Error
	if err != nil {
		return nil, fmt.Errorf("collect flood warnings: %w", err)
	}
	for _, row := range floodRows {
		records = append(records, AlertRecord{
			Category:   CategoryFlood,
			ID:         row.ID,
			Severity:   row.Severity,
			Location:   row.LocationName,
			County:     row.CountyName,
			TimeRaised: row.TimeRaised,
		})
	}

	return records, nil
}

// MarkNotified flags the given alert rows as delivered. Marking is
// idempotent: rows already notified are untouched, so a shared alert marked
// by two recipients is a no-op the second time.
func (s *Store) MarkNotified(ctx context.Context, records []AlertRecord) error {
	ids := map[AlertCategory][]uint{}
	for _, rec := range records {
		ids[rec.Category] = append(ids[rec.Category], rec.ID)
	}

	tables := map[AlertCategory]string{
		CategoryWeather:    WeatherAlert{}.TableName(),
		CategoryAirQuality: AirQualityReading{}.TableName(),
		CategoryFlood:      FloodWarning{}.TableName(),
	}

	for category, rowIDs := range ids {
		if len(rowIDs) == 0 {
			continue
		}
		err := s.db.WithContext(ctx).
			Table(tables[category]).
			Where("id IN ?", rowIDs).
			Update("notified", true).Error
		if err != nil {
			return fmt.Errorf("mark %s notified: %w", category, err)
		}
	}
	return nil
}
