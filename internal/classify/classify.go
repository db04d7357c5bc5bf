package classify

import (
	"math"
	"time"
)

// AlertWindow bounds how far ahead a forecast timestamp may be and still be
// eligible for weather alerts. Data beyond the window is stored but never
// classified.
const AlertWindow = 12 * time.Hour

// Variables holds the classifier inputs for a single forecast timestamp.
// Units follow the upstream feeds: temperatures in °C, wind in km/h,
// lightning potential in J/kg, snowfall in cm, visibility in scaled metres,
// rainfall in mm.
type Variables struct {
	Temperature        float64
	WindSpeed          float64
	WindGusts          float64
	LightningPotential float64
	Snowfall           float64
	Visibility         float64
	UVIndex            float64
	Rainfall           float64
}

// Hazard pairs an alert type with its classified severity.
type Hazard struct {
	Type     AlertType
	Severity Severity
}

// Heat classifies air temperature. Bands are inclusive on their lower edge.
func Heat(temperature float64) Severity {
	switch {
	case temperature >= 32:
		return SevereWarning
	case temperature >= 27:
		return Warning
	case temperature >= 22:
		return Alert
	default:
		return Normal
	}
}

// Wind classifies gust and sustained speed together; the worse band wins.
func Wind(gust, speed float64) Severity {
	switch {
	case gust >= 130 || speed >= 80:
		return SevereWarning
	case gust >= 110 || speed >= 65:
		return Warning
	case gust >= 90 || speed >= 50:
		return Alert
	default:
		return Normal
	}
}

// Ice classifies sub-zero temperature. Unlike the other hazards the bands
// descend, so the comparisons run the other way.
func Ice(temperature float64) Severity {
	switch {
	case temperature <= -10:
		return SevereWarning
	case temperature < -5:
		return Warning
	case temperature < -3:
		return Alert
	default:
		return Normal
	}
}

// Lightning classifies lightning potential energy.
func Lightning(potential float64) Severity {
	switch {
	case potential >= 2500:
		return SevereWarning
	case potential >= 1000:
		return Warning
	case potential >= 300:
		return Alert
	default:
		return Normal
	}
}

// Snowfall classifies snowfall depth.
func Snowfall(depth float64) Severity {
	switch {
	case depth >= 2:
		return SevereWarning
	case depth >= 0.5:
		return Warning
	case depth >= 0.1:
		return Alert
	default:
		return Normal
	}
}

// Visibility classifies scaled visibility; low values are worse.
func Visibility(visibility float64) Severity {
	switch {
	case visibility <= 20:
		return SevereWarning
	case visibility < 50:
		return Warning
	case visibility < 150:
		return Alert
	default:
		return Normal
	}
}

// UV classifies the UV index.
func UV(index float64) Severity {
	switch {
	case index >= 11:
		return SevereWarning
	case index >= 8:
		return Warning
	case index >= 6:
		return Alert
	default:
		return Normal
	}
}

// Rain classifies rainfall.
func Rain(rainfall float64) Severity {
	switch {
	case rainfall >= 10:
		return SevereWarning
	case rainfall >= 5:
		return Warning
	case rainfall >= 3:
		return Alert
	default:
		return Normal
	}
}

// AirQuality classifies an O₃ concentration in µg/m³. A negative or
// non-finite concentration is malformed input and classifies as Normal
// rather than failing the batch.
func AirQuality(concentration float64) Severity {
	if concentration < 0 || math.IsNaN(concentration) || math.IsInf(concentration, 0) {
		return Normal
	}
	switch {
	case concentration >= 241:
		return SevereWarning
	case concentration >= 161:
		return Warning
	case concentration >= 101:
		return Alert
	default:
		return Normal
	}
}

// Evaluate classifies one forecast against every weather hazard and returns
// the hazards that warrant an alert row. Forecast timestamps outside the
// alert window relative to now return nil: stale or far-future data is
// stored but never alert-eligible. A forecast where everything classifies
// as Normal also returns nil.
func Evaluate(forecastAt, now time.Time, vars Variables) []Hazard {
	if forecastAt.After(now.Add(AlertWindow)) {
		return nil
	}

	vars = sanitize(vars)

	candidates := []Hazard{
		{HeatAlert, Heat(vars.Temperature)},
		{WindAlert, Wind(vars.WindGusts, vars.WindSpeed)},
		{IceAlert, Ice(vars.Temperature)},
		{LightningAlert, Lightning(vars.LightningPotential)},
		{SnowfallAlert, Snowfall(vars.Snowfall)},
		{VisibilityAlert, Visibility(vars.Visibility)},
		{UVAlert, UV(vars.UVIndex)},
		{RainAlert, Rain(vars.Rainfall)},
	}

	var hazards []Hazard
	for _, c := range candidates {
		if c.Severity.Actionable() {
			hazards = append(hazards, c)
		}
	}
	return hazards
}

// sanitize replaces NaN and infinite inputs with 0 so a missing upstream
// reading (lightning potential is often null) cannot poison classification.
func sanitize(v Variables) Variables {
	fix := func(f float64) float64 {
		if math.IsNaN(f) || math.IsInf(f, 0) {
			return 0
		}
		return f
	}
	v.Temperature = fix(v.Temperature)
	v.WindSpeed = fix(v.WindSpeed)
	v.WindGusts = fix(v.WindGusts)
	v.LightningPotential = fix(v.LightningPotential)
	v.Snowfall = fix(v.Snowfall)
	v.Visibility = fix(v.Visibility)
	v.UVIndex = fix(v.UVIndex)
	v.Rainfall = fix(v.Rainfall)
	return v
}
