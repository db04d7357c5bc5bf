package ingest

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/jonboulle/clockwork"

	"skycast.dev/weather-alerts/internal/classify"
	"skycast.dev/weather-alerts/internal/geo"
	"skycast.dev/weather-alerts/internal/store"
	"skycast.dev/weather-alerts/pkg/metrics"
)

// Processor turns decoded batches into rows: classify, then persist through
// the store's idempotent writes. It is shared by both consumers and by the
// one-shot ingestion used in tests.
type Processor struct {
	store    *store.Store
	resolver geo.Resolver
	logger   *slog.Logger
	clock    clockwork.Clock
	metrics  *metrics.IngestMetrics // Optional metrics
}

// NewProcessor wires a processor. The clock is injectable so the 12-hour
// alert window is testable; pass nil for real time.
func NewProcessor(st *store.Store, resolver geo.Resolver, logger *slog.Logger, clock clockwork.Clock) (*Processor, error) {
	if st == nil {
		return nil, errors.New("store cannot be nil")
	}
	if resolver == nil {
		return nil, errors.New("geo resolver cannot be nil")
	}
	if logger == nil {
		return nil, errors.New("logger cannot be nil")
	}
	if clock == nil {
		clock = clockwork.NewRealClock()
	}
	return &Processor{
		store:    st,
		resolver: resolver,
		logger:   logger,
		clock:    clock,
	}, nil
}

// SetMetrics sets the metrics collector for this processor.
func (p *Processor) SetMetrics(m *metrics.IngestMetrics) {
	p.metrics = m
}

// ProcessForecastBatch persists one location's batch: report envelope,
// forecast upserts, deduplicated alerts, and the air-quality reading when
// present. A failure on one forecast is logged and skipped so the rest of
// the batch still lands.
func (p *Processor) ProcessForecastBatch(ctx context.Context, batch ForecastBatch) error {
	locationID, err := p.resolveLocation(ctx, batch.Latitude, batch.Longitude)
	if err != nil {
		return fmt.Errorf("resolve location: %w", err)
	}

	reportID, err := p.store.CreateWeatherReport(ctx, locationID, batch.CapturedAt)
	if err != nil {
		return fmt.Errorf("create report: %w", err)
	}

	now := p.clock.Now()
	var failed int
	for _, rec := range batch.Forecasts {
		forecastID, err := p.store.UpsertForecast(ctx, &store.Forecast{
			LocationID:         locationID,
			WeatherReportID:    reportID,
			ForecastAt:         rec.Timestamp,
			Temperature:        rec.Temperature,
			ApparentTemp:       rec.ApparentTemp,
			Humidity:           rec.Humidity,
			Precipitation:      rec.Precipitation,
			PrecipitationProb:  rec.PrecipitationProb,
			Rainfall:           rec.Rainfall,
			Snowfall:           rec.Snowfall,
			Visibility:         rec.Visibility,
			WindSpeed:          rec.WindSpeed,
			WindDirection:      rec.WindDirection,
			WindGusts:          rec.WindGusts,
			LightningPotential: rec.Lightning(),
			UVIndex:            rec.UVIndex,
			CloudCover:         rec.CloudCover,
			WeatherCode:        rec.WeatherCode,
		})
		if err != nil {
			failed++
			p.logger.Error("forecast upsert failed",
				"location_id", locationID,
				"forecast_at", rec.Timestamp,
				"error", err,
			)
			continue
		}
		if p.metrics != nil {
			p.metrics.ForecastsUpserted.Inc()
		}

		for _, hazard := range classify.Evaluate(rec.Timestamp, now, rec.Variables()) {
			if _, err := p.store.InsertAlertIfAbsent(ctx, forecastID, hazard.Type, hazard.Severity); err != nil {
				failed++
				p.logger.Error("alert insert failed",
					"forecast_id", forecastID,
					"alert_type", hazard.Type.String(),
					"error", err,
				)
				continue
			}
			if p.metrics != nil {
				p.metrics.AlertsInserted.WithLabelValues(hazard.Type.String()).Inc()
			}
		}
	}

	if batch.O3Concentration != nil {
		severity := classify.AirQuality(*batch.O3Concentration)
		if _, err := p.store.CreateAirQualityReading(ctx, reportID, *batch.O3Concentration, severity); err != nil {
			return fmt.Errorf("create air quality reading: %w", err)
		}
	}

	if failed > 0 {
		p.logger.Warn("batch persisted with failures",
			"location_id", locationID,
			"failed", failed,
			"total", len(batch.Forecasts),
		)
	}
	return nil
}

// ProcessFloodBatch persists a flood warning, deduplicating on the exact
// (location, severity, time raised) triple.
func (p *Processor) ProcessFloodBatch(ctx context.Context, batch FloodBatch) error {
	locationID, err := p.resolveLocation(ctx, batch.Latitude, batch.Longitude)
	if err != nil {
		return fmt.Errorf("resolve location: %w", err)
	}

	severity := classify.Severity(batch.Severity)
	id, inserted, err := p.store.InsertFloodWarningIfAbsent(ctx, locationID, severity, batch.TimeRaised)
	if err != nil {
		return fmt.Errorf("insert flood warning: %w", err)
	}

	p.logger.Info("flood warning recorded",
		"flood_id", id,
		"location_id", locationID,
		"severity", severity.String(),
		"new", inserted,
	)
	if p.metrics != nil {
		if inserted {
			p.metrics.FloodsInserted.Inc()
		} else {
			p.metrics.FloodsDeduplicated.Inc()
		}
	}
	return nil
}

// resolveLocation returns the id for exact coordinates, geocoding and
// creating the location on first sighting.
func (p *Processor) resolveLocation(ctx context.Context, latitude, longitude float64) (uint, error) {
	id, err := p.store.LocationIDByCoords(ctx, latitude, longitude)
	if err == nil {
		return id, nil
	}
	if !errors.Is(err, store.ErrNotFound) {
		return 0, err
	}

	place, err := p.resolver.Reverse(latitude, longitude)
	if err != nil {
		if p.metrics != nil {
			p.metrics.GeocodeFailures.Inc()
		}
		return 0, fmt.Errorf("geocode: %w", err)
	}

	id, err = p.store.CreateLocation(ctx, latitude, longitude, place)
	if err != nil {
		return 0, err
	}
	p.logger.Info("location created",
		"location_id", id,
		"name", place.Name,
		"county", place.County,
	)
	if p.metrics != nil {
		p.metrics.LocationsCreated.Inc()
	}
	return id, nil
}
