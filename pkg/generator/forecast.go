package generator

import (
	"math"
	"math/rand"
	"time"

	"github.com/brianvoe/gofakeit/v7"

	"skycast.dev/weather-alerts/internal/ingest"
)

// Site is a synthetic observation point. Latitude and longitude are kept
// within ranges the reverse geocoder can resolve to a real place.
type Site struct {
	Name      string  `fake:"{city}"`
	Latitude  float64 `fake:"{latitude}"`
	Longitude float64 `fake:"{longitude}"`
}

// ForecastGenerator produces correlated synthetic forecast batches for one
// site. Baselines are randomized per site so a fleet of generators does not
// all cross the same thresholds at once.
type ForecastGenerator struct {
	site         Site
	baselineTemp float64
	baselineWind float64
	baselineO3   float64
	noise        float64
	windTrend    float64
	lastWind     float64
}

// NewSite creates a randomized site.
func NewSite() *Site {
	var site Site
	if err := gofakeit.Struct(&site); err != nil {
		return nil
	}
	return &site
}

// NewForecastGenerator creates a generator anchored to the given site.
func NewForecastGenerator(site Site) *ForecastGenerator {
	return &ForecastGenerator{
		site:         site,
		baselineTemp: 10.0 + rand.Float64()*15, // 10-25°C
		baselineWind: 15.0 + rand.Float64()*25, // 15-40 km/h
		baselineO3:   40.0 + rand.Float64()*40, // 40-80 µg/m³
		noise:        1.0 + rand.Float64()*2,
		windTrend:    (rand.Float64() - 0.5) * 2,
		lastWind:     20.0,
	}
}

// GenerateTemperature with daily cycle and occasional heat spikes.
func (g *ForecastGenerator) GenerateTemperature(t time.Time) float64 {
	hour := float64(t.Hour())

	// Daily cycle (peak around 2-3 PM)
	dailyCycle := 6 * math.Sin((hour-6)*math.Pi/12)

	noise := (rand.Float64() - 0.5) * g.noise

	// Occasional heatwave spike (4% chance) to exercise the heat thresholds
	anomaly := 0.0
	if rand.Float64() < 0.04 {
		anomaly = 10 + rand.Float64()*10
	}

	return g.baselineTemp + dailyCycle + noise + anomaly
}

// GenerateWind returns speed and gusts with slow trending behavior.
func (g *ForecastGenerator) GenerateWind(t time.Time) (speed, gusts float64) {
	// Wind follows a random walk with trend, like a passing front
	randomChange := (rand.Float64() - 0.5) * 3
	newWind := g.lastWind + randomChange + g.windTrend

	// Occasionally reverse trend (10% chance)
	if rand.Float64() < 0.1 {
		g.windTrend = -g.windTrend + (rand.Float64()-0.5)*0.5
	}

	// Storm front (3% chance) pushes speed toward the warning thresholds
	if rand.Float64() < 0.03 {
		newWind += 40 + rand.Float64()*50
		g.windTrend = 2
	}

	newWind = math.Max(0, math.Min(160, newWind))
	g.lastWind = newWind

	// Gusts run 30-70% above sustained speed
	gusts = newWind * (1.3 + rand.Float64()*0.4)
	return newWind, gusts
}

// GenerateO3 produces an ozone concentration with midday peaks.
func (g *ForecastGenerator) GenerateO3(t time.Time) float64 {
	hour := float64(t.Hour())

	// Ozone peaks in the afternoon sun
	dailyCycle := 20 * math.Sin((hour-8)*math.Pi/12)

	anomaly := 0.0
	if rand.Float64() < 0.03 {
		anomaly = 60 + rand.Float64()*120 // Pollution episode
	}

	return math.Max(0, g.baselineO3+dailyCycle+(rand.Float64()-0.5)*g.noise*5+anomaly)
}

// GenerateBatch builds a forecast batch for capturedAt with hourly records
// covering the given horizon.
func (g *ForecastGenerator) GenerateBatch(capturedAt time.Time, horizon time.Duration) *ingest.ForecastBatch {
	hours := int(horizon / time.Hour)
	if hours < 1 {
		hours = 1
	}

	records := make([]ingest.ForecastRecord, 0, hours)
	for i := 0; i < hours; i++ {
		ts := capturedAt.Add(time.Duration(i) * time.Hour)
		temp := g.GenerateTemperature(ts)
		speed, gusts := g.GenerateWind(ts)

		rain := 0.0
		snow := 0.0
		if rand.Float64() < 0.15 {
			if temp < 0 {
				snow = rand.Float64() * 3
			} else {
				rain = rand.Float64() * 12
			}
		}

		var lightning *float64
		if rand.Float64() < 0.05 {
			v := rand.Float64() * 3000
			lightning = &v
		}

		visibility := 10000 + rand.Float64()*40000
		if rain > 5 || snow > 1 || rand.Float64() < 0.02 {
			visibility = rand.Float64() * 200 // Fog or heavy precipitation
		}

		uv := 0.0
		hour := ts.Hour()
		if hour > 6 && hour < 20 {
			uv = math.Max(0, 7*math.Sin(float64(hour-6)*math.Pi/14)+(rand.Float64()-0.5)*2)
			if rand.Float64() < 0.03 {
				uv += 5
			}
		}

		records = append(records, ingest.ForecastRecord{
			Timestamp:          ts,
			Temperature:        round2(temp),
			ApparentTemp:       round2(temp - speed*0.05),
			Humidity:           round2(40 + rand.Float64()*50),
			Precipitation:      round2(rain + snow*10),
			PrecipitationProb:  round2(rand.Float64() * 100),
			Rainfall:           round2(rain),
			Snowfall:           round2(snow),
			Visibility:         round2(visibility),
			WindSpeed:          round2(speed),
			WindDirection:      round2(rand.Float64() * 360),
			WindGusts:          round2(gusts),
			LightningPotential: lightning,
			UVIndex:            round2(uv),
			CloudCover:         round2(rand.Float64() * 100),
			WeatherCode:        rand.Intn(100),
		})
	}

	o3 := round2(g.GenerateO3(capturedAt))
	return &ingest.ForecastBatch{
		Latitude:        g.site.Latitude,
		Longitude:       g.site.Longitude,
		CapturedAt:      capturedAt,
		O3Concentration: &o3,
		Forecasts:       records,
	}
}

// GenerateFlood builds a flood warning for the site. Severity skews toward
// the milder ordinals the way real feeds do.
func (g *ForecastGenerator) GenerateFlood(raisedAt time.Time) *ingest.FloodBatch {
	severity := 3
	switch r := rand.Float64(); {
	case r < 0.1:
		severity = 1
	case r < 0.35:
		severity = 2
	}

	return &ingest.FloodBatch{
		Latitude:   g.site.Latitude,
		Longitude:  g.site.Longitude,
		Severity:   severity,
		TimeRaised: raisedAt,
	}
}

func round2(v float64) float64 {
	return math.Round(v*100) / 100
}
