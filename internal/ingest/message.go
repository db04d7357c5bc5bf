// Package ingest consumes forecast and flood batches published by the
// external fetchers, classifies them, and persists the results through the
// store's idempotent writes.
package ingest

import (
	"encoding/json"
	"fmt"
	"time"

	"skycast.dev/weather-alerts/internal/classify"
)

// ForecastBatch is the JSON document the upstream weather fetcher publishes
// per location per cycle. O3Concentration is optional because the
// air-quality feed can lag the weather feed.
type ForecastBatch struct {
	Latitude        float64          `json:"latitude"`
	Longitude       float64          `json:"longitude"`
	CapturedAt      time.Time        `json:"captured_at"`
	O3Concentration *float64         `json:"o3_concentration,omitempty"`
	Forecasts       []ForecastRecord `json:"forecasts"`
}

// ForecastRecord carries the variables for one forecast timestamp. Pointer
// fields cover readings the upstream feed reports as null; they default to
// zero before classification.
type ForecastRecord struct {
	Timestamp          time.Time `json:"timestamp"`
	Temperature        float64   `json:"temperature"`
	ApparentTemp       float64   `json:"apparent_temperature"`
	Humidity           float64   `json:"humidity"`
	Precipitation      float64   `json:"precipitation"`
	PrecipitationProb  float64   `json:"precipitation_probability"`
	Rainfall           float64   `json:"rainfall"`
	Snowfall           float64   `json:"snowfall"`
	Visibility         float64   `json:"visibility"`
	WindSpeed          float64   `json:"wind_speed"`
	WindDirection      float64   `json:"wind_direction"`
	WindGusts          float64   `json:"wind_gusts"`
	LightningPotential *float64  `json:"lightning_potential"`
	UVIndex            float64   `json:"uv_index"`
	CloudCover         float64   `json:"cloud_cover"`
	WeatherCode        int       `json:"weather_code"`
}

// Lightning returns the lightning potential with null normalized to 0.
func (r ForecastRecord) Lightning() float64 {
	if r.LightningPotential == nil {
		return 0
	}
	return *r.LightningPotential
}

// Variables maps the record onto the classifier's input tuple.
func (r ForecastRecord) Variables() classify.Variables {
	return classify.Variables{
		Temperature:        r.Temperature,
		WindSpeed:          r.WindSpeed,
		WindGusts:          r.WindGusts,
		LightningPotential: r.Lightning(),
		Snowfall:           r.Snowfall,
		Visibility:         r.Visibility,
		UVIndex:            r.UVIndex,
		Rainfall:           r.Rainfall,
	}
}

// FloodBatch is the JSON document the flood fetcher publishes per raised
// warning. Severity uses the same inverted ordinals as everything else.
type FloodBatch struct {
	Latitude   float64   `json:"latitude"`
	Longitude  float64   `json:"longitude"`
	Severity   int       `json:"severity"`
	TimeRaised time.Time `json:"time_raised"`
}

// DecodeForecastBatch parses and validates a forecast batch payload.
func DecodeForecastBatch(data []byte) (ForecastBatch, error) {
	var batch ForecastBatch
	if err := json.Unmarshal(data, &batch); err != nil {
		return ForecastBatch{}, fmt.Errorf("decode forecast batch: %w", err)
	}
	if batch.CapturedAt.IsZero() {
		return ForecastBatch{}, fmt.Errorf("decode forecast batch: captured_at missing")
	}
	if len(batch.Forecasts) == 0 {
		return ForecastBatch{}, fmt.Errorf("decode forecast batch: no forecasts")
	}
	return batch, nil
}

// DecodeFloodBatch parses and validates a flood warning payload.
func DecodeFloodBatch(data []byte) (FloodBatch, error) {
	var batch FloodBatch
	if err := json.Unmarshal(data, &batch); err != nil {
		return FloodBatch{}, fmt.Errorf("decode flood batch: %w", err)
	}
	if batch.TimeRaised.IsZero() {
		return FloodBatch{}, fmt.Errorf("decode flood batch: time_raised missing")
	}
	if batch.Severity < int(classify.SevereWarning) || batch.Severity > int(classify.Normal) {
		return FloodBatch{}, fmt.Errorf("decode flood batch: severity %d out of range", batch.Severity)
	}
	return batch, nil
}
