package store

import (
	"context"
	"errors"
	"fmt"
	"time"

	"gorm.io/gorm"

	"skycast.dev/weather-alerts/internal/classify"
)

var (
	// ErrNotFound is returned when a lookup matches no row.
	ErrNotFound = errors.New("store: not found")
	// ErrDuplicate is returned when a write loses a race against a
	// concurrent insert of the same natural key. Callers retry with a
	// fresh lookup; it is never fatal for the surrounding batch.
	ErrDuplicate = errors.New("store: duplicate key")
)

// Store provides the persistence operations over the alerting schema.
type Store struct {
	db *gorm.DB
}

// New wraps an open GORM session.
func New(db *gorm.DB) *Store {
	return &Store{db: db}
}

// Place carries the geocoded names for a previously-unseen coordinate pair.
type Place struct {
	Name    string
	County  string
	Country string
}

// LocationIDByCoords returns the location id for exact coordinates, or
// ErrNotFound when the location has never been seen.
func (s *Store) LocationIDByCoords(ctx context.Context, latitude, longitude float64) (uint, error) {
	var loc Location
	err := s.db.WithContext(ctx).
		Where("latitude = ? AND longitude = ?", latitude, longitude).
		First(&loc).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return 0, ErrNotFound
	}
	if err != nil {
		return 0, fmt.Errorf("lookup location: %w", err)
	}
	return loc.ID, nil
}

// CreateLocation inserts a location together with its lazily-created county
// and country. If a concurrent ingestion creates the same coordinates
// first, the existing id is returned instead of an error.
func (s *Store) CreateLocation(ctx context.Context, latitude, longitude float64, place Place) (uint, error) {
	var locID uint
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		country := Country{Name: place.Country}
		if err := tx.Where("name = ?", place.Country).FirstOrCreate(&country).Error; err != nil {
			return fmt.Errorf("find or create country: %w", err)
		}

		county := County{Name: place.County, CountryID: country.ID}
		if err := tx.Where("name = ? AND country_id = ?", place.County, country.ID).
			FirstOrCreate(&county).Error; err != nil {
			return fmt.Errorf("find or create county: %w", err)
		}

		loc := Location{
			Latitude:  latitude,
			Longitude: longitude,
			Name:      place.Name,
			CountyID:  county.ID,
		}
		if err := tx.Create(&loc).Error; err != nil {
			return err
		}
		locID = loc.ID
		return nil
	})
	if errors.Is(err, gorm.ErrDuplicatedKey) {
		// A concurrent writer won the insert; the unique coordinate
		// index guarantees the row now exists.
		return s.LocationIDByCoords(ctx, latitude, longitude)
	}
	if err != nil {
		return 0, fmt.Errorf("create location: %w", err)
	}
	return locID, nil
}

// CreateWeatherReport inserts the per-cycle report envelope for a location.
func (s *Store) CreateWeatherReport(ctx context.Context, locationID uint, capturedAt time.Time) (uint, error) {
	report := WeatherReport{LocationID: locationID, CapturedAt: capturedAt.UTC()}
	if err := s.db.WithContext(ctx).Create(&report).Error; err != nil {
		return 0, fmt.Errorf("create weather report: %w", err)
	}
	return report.ID, nil
}

// UpsertForecast writes one forecast keyed by (location, forecast
// timestamp). An existing row has every variable column updated and is
// re-pointed at the current weather report; a missing row is inserted. The
// check-then-write runs in a transaction and the unique identity index
// backstops it: when a concurrent ingestion wins the insert race, the write
// is retried once with a fresh lookup, so re-running ingestion never
// produces a second row and always leaves the latest values in place.
func (s *Store) UpsertForecast(ctx context.Context, f *Forecast) (uint, error) {
	f.ForecastAt = f.ForecastAt.UTC()

	var lastErr error
	for attempt := 0; attempt < 2; attempt++ {
		err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
			var existing Forecast
			err := tx.Where("location_id = ? AND forecast_at = ?", f.LocationID, f.ForecastAt).
				First(&existing).Error
			switch {
			case err == nil:
				f.ID = existing.ID
				f.CreatedAt = existing.CreatedAt
				return tx.Save(f).Error
			case errors.Is(err, gorm.ErrRecordNotFound):
				f.ID = 0
				return tx.Create(f).Error
			default:
				return err
			}
		})
		if err == nil {
			return f.ID, nil
		}
		if !errors.Is(err, gorm.ErrDuplicatedKey) {
			return 0, fmt.Errorf("upsert forecast: %w", err)
		}
		lastErr = err
	}
	return 0, fmt.Errorf("upsert forecast: %w: %w", ErrDuplicate, lastErr)
}

// InsertAlertIfAbsent inserts a weather alert unless a row for the same
// (forecast, alert type) already exists, in which case the existing id is
// returned untouched. Severity is deliberately never overwritten on the
// existing row.
func (s *Store) InsertAlertIfAbsent(ctx context.Context, forecastID uint, alertType classify.AlertType, severity classify.Severity) (uint, error) {
	var id uint
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var existing WeatherAlert
		err := tx.Where("forecast_id = ? AND alert_type = ?", forecastID, alertType).
			First(&existing).Error
		if err == nil {
			id = existing.ID
			return nil
		}
		if !errors.Is(err, gorm.ErrRecordNotFound) {
			return err
		}

		alert := WeatherAlert{
			ForecastID: forecastID,
			AlertType:  alertType,
			Severity:   severity,
			Notified:   false,
		}
		if err := tx.Create(&alert).Error; err != nil {
			return err
		}
		id = alert.ID
		return nil
	})
	if errors.Is(err, gorm.ErrDuplicatedKey) {
		// Lost the insert race; the identity index says the row exists now.
		var existing WeatherAlert
		if lookupErr := s.db.WithContext(ctx).
			Where("forecast_id = ? AND alert_type = ?", forecastID, alertType).
			First(&existing).Error; lookupErr != nil {
			return 0, fmt.Errorf("insert weather alert: %w: %w", ErrDuplicate, lookupErr)
		}
		return existing.ID, nil
	}
	if err != nil {
		return 0, fmt.Errorf("insert weather alert: %w", err)
	}
	return id, nil
}

// InsertFloodWarningIfAbsent inserts a flood warning unless the exact
// (location, severity, time raised) triple is already recorded. There is no
// update path. The bool reports whether a new row was written.
func (s *Store) InsertFloodWarningIfAbsent(ctx context.Context, locationID uint, severity classify.Severity, timeRaised time.Time) (uint, bool, error) {
	timeRaised = timeRaised.UTC()

	var id uint
	var inserted bool
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var existing FloodWarning
		err := tx.Where("location_id = ? AND severity = ? AND time_raised = ?",
			locationID, severity, timeRaised).
			First(&existing).Error
		if err == nil {
			id = existing.ID
			return nil
		}
		if !errors.Is(err, gorm.ErrRecordNotFound) {
			return err
		}

		warning := FloodWarning{
			LocationID: locationID,
			Severity:   severity,
			TimeRaised: timeRaised,
			Notified:   false,
		}
		if err := tx.Create(&warning).Error; err != nil {
			return err
		}
		id = warning.ID
		inserted = true
		return nil
	})
	if errors.Is(err, gorm.ErrDuplicatedKey) {
		var existing FloodWarning
		if lookupErr := s.db.WithContext(ctx).
			Where("location_id = ? AND severity = ? AND time_raised = ?",
				locationID, severity, timeRaised).
			First(&existing).Error; lookupErr != nil {
			return 0, false, fmt.Errorf("insert flood warning: %w: %w", ErrDuplicate, lookupErr)
		}
		return existing.ID, false, nil
	}
	if err != nil {
		return 0, false, fmt.Errorf("insert flood warning: %w", err)
	}
	return id, inserted, nil
}

// CreateAirQualityReading records the O₃ reading for a weather report.
// Always an insert: report identity already prevents duplication.
func (s *Store) CreateAirQualityReading(ctx context.Context, reportID uint, concentration float64, severity classify.Severity) (uint, error) {
	reading := AirQualityReading{
		WeatherReportID: reportID,
		O3Concentration: concentration,
		Severity:        severity,
		Notified:        false,
	}
	if err := s.db.WithContext(ctx).Create(&reading).Error; err != nil {
		return 0, fmt.Errorf("create air quality reading: %w", err)
	}
	return reading.ID, nil
}
