// Package store owns the relational schema for forecasts, alerts,
// air-quality readings and flood warnings, and provides the idempotent
// write operations the ingest and notification services depend on.
package store

import (
	"time"

	"skycast.dev/weather-alerts/internal/classify"
)

// Country is created lazily the first time a location resolves into it and
// is never deleted.
type Country struct {
	CreatedAt time.Time `gorm:"autoCreateTime"`
	Name      string    `gorm:"uniqueIndex;not null"`
	ID        uint      `gorm:"primaryKey"`
}

// TableName specifies the table name for the Country model.
func (Country) TableName() string {
	return "countries"
}

// County belongs to a Country; (name, country) is unique.
type County struct {
	CreatedAt time.Time `gorm:"autoCreateTime"`
	Name      string    `gorm:"index:idx_county_identity,unique;not null"`
	Country   Country
	CountryID uint `gorm:"index:idx_county_identity,unique;not null"`
	ID        uint `gorm:"primaryKey"`
}

// TableName specifies the table name for the County model.
func (County) TableName() string {
	return "counties"
}

// Location identifies a tracked place by its coordinates. The unique index
// on (latitude, longitude) carries the dedup guarantee: a location is
// created on first sighting and immutable afterwards.
type Location struct {
	CreatedAt time.Time `gorm:"autoCreateTime"`
	Name      string    `gorm:"not null"`
	County    County
	Latitude  float64 `gorm:"index:idx_location_coords,unique;not null"`
	Longitude float64 `gorm:"index:idx_location_coords,unique;not null"`
	CountyID  uint    `gorm:"not null"`
	ID        uint    `gorm:"primaryKey"`
}

// TableName specifies the table name for the Location model.
func (Location) TableName() string {
	return "locations"
}

// WeatherReport is the envelope created once per ingestion cycle per
// location. It groups that cycle's forecasts and air-quality reading and is
// never updated after creation.
type WeatherReport struct {
	CapturedAt time.Time `gorm:"index;not null"`
	CreatedAt  time.Time `gorm:"autoCreateTime"`
	Location   Location
	LocationID uint `gorm:"index;not null"`
	ID         uint `gorm:"primaryKey"`
}

// TableName specifies the table name for the WeatherReport model.
func (WeatherReport) TableName() string {
	return "weather_reports"
}

// Forecast is one timestamped set of weather variables for a location.
//
// Identity is (location, forecast timestamp) even though each row also
// points at the weather report that most recently carried it; the unique
// index on that pair is what makes UpsertForecast race-safe.
type Forecast struct {
	ForecastAt         time.Time `gorm:"index:idx_forecast_identity,unique;not null"`
	CreatedAt          time.Time `gorm:"autoCreateTime"`
	UpdatedAt          time.Time `gorm:"autoUpdateTime"`
	WeatherReport      WeatherReport
	Temperature        float64 `gorm:"not null"`
	ApparentTemp       float64 `gorm:"not null"`
	Humidity           float64 `gorm:"not null"`
	Precipitation      float64 `gorm:"not null"`
	PrecipitationProb  float64 `gorm:"not null"`
	Rainfall           float64 `gorm:"not null"`
	Snowfall           float64 `gorm:"not null"`
	Visibility         float64 `gorm:"not null"`
	WindSpeed          float64 `gorm:"not null"`
	WindDirection      float64 `gorm:"not null"`
	WindGusts          float64 `gorm:"not null"`
	LightningPotential float64 `gorm:"not null"`
	UVIndex            float64 `gorm:"not null"`
	CloudCover         float64 `gorm:"not null"`
	WeatherCode        int     `gorm:"not null"`
	WeatherReportID    uint    `gorm:"index;not null"`
	LocationID         uint    `gorm:"index:idx_forecast_identity,unique;not null"`
	ID                 uint    `gorm:"primaryKey"`
}

// TableName specifies the table name for the Forecast model.
func (Forecast) TableName() string {
	return "forecasts"
}

// WeatherAlert records one classified hazard for one forecast. At most one
// row exists per (forecast, alert type); Normal severity never produces a
// row at all.
type WeatherAlert struct {
	CreatedAt  time.Time `gorm:"autoCreateTime"`
	Forecast   Forecast
	AlertType  classify.AlertType `gorm:"index:idx_alert_identity,unique;not null"`
	Severity   classify.Severity  `gorm:"not null"`
	ForecastID uint               `gorm:"index:idx_alert_identity,unique;not null"`
	ID         uint               `gorm:"primaryKey"`
	Notified   bool               `gorm:"not null;default:false"`
}

// TableName specifies the table name for the WeatherAlert model.
func (WeatherAlert) TableName() string {
	return "weather_alerts"
}

// AirQualityReading holds the O₃ reading taken alongside a weather report.
// One row per report by construction; report identity prevents duplicates.
type AirQualityReading struct {
	CreatedAt       time.Time `gorm:"autoCreateTime"`
	WeatherReport   WeatherReport
	O3Concentration float64           `gorm:"not null"`
	Severity        classify.Severity `gorm:"not null"`
	WeatherReportID uint              `gorm:"index;not null"`
	ID              uint              `gorm:"primaryKey"`
	Notified        bool              `gorm:"not null;default:false"`
}

// TableName specifies the table name for the AirQualityReading model.
func (AirQualityReading) TableName() string {
	return "air_quality_readings"
}

// FloodWarning is deduplicated on the exact (location, severity, time
// raised) triple. There is no update path: a flood severity for an identical
// time raised is immutable once recorded.
type FloodWarning struct {
	TimeRaised time.Time `gorm:"index:idx_flood_identity,unique;not null"`
	CreatedAt  time.Time `gorm:"autoCreateTime"`
	Location   Location
	Severity   classify.Severity `gorm:"index:idx_flood_identity,unique;not null"`
	LocationID uint              `gorm:"index:idx_flood_identity,unique;not null"`
	ID         uint              `gorm:"primaryKey"`
	Notified   bool              `gorm:"not null;default:false"`
}

// TableName specifies the table name for the FloodWarning model.
func (FloodWarning) TableName() string {
	return "flood_warnings"
}

// Recipient is an alert subscriber. Rows are created by the external
// sign-up service; this module only ever reads them.
type Recipient struct {
	CreatedAt time.Time `gorm:"autoCreateTime"`
	Email     string    `gorm:"uniqueIndex;not null"`
	ID        uint      `gorm:"primaryKey"`
}

// TableName specifies the table name for the Recipient model.
func (Recipient) TableName() string {
	return "recipients"
}

// Subscription assigns a recipient to a location, with an opt-in flag for
// alert email.
type Subscription struct {
	CreatedAt   time.Time `gorm:"autoCreateTime"`
	Recipient   Recipient
	Location    Location
	RecipientID uint `gorm:"index:idx_subscription_identity,unique;not null"`
	LocationID  uint `gorm:"index:idx_subscription_identity,unique;not null"`
	ID          uint `gorm:"primaryKey"`
	AlertOptIn  bool `gorm:"not null;default:true"`
}

// TableName specifies the table name for the Subscription model.
func (Subscription) TableName() string {
	return "subscriptions"
}
