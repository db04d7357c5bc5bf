package notify

import (
	"fmt"
	"html/template"
	"strings"
	"time"

	"skycast.dev/weather-alerts/internal/classify"
	"skycast.dev/weather-alerts/internal/store"
)

// Subject is the subject line of every alert email.
const Subject = "Weather Alert"

// messageTemplate renders one recipient's alerts: air-quality blocks, flood
// blocks, then the weather hazard table. Output depends only on the input
// records, so rendering is deterministic and the skip decision (no
// renderable records, no email) is made before delivery.
var messageTemplate = template.Must(template.New("alerts").Parse(`<!DOCTYPE html>
<html lang="en">
<head><meta charset="UTF-8"></head>
<body style="font-family: arial, sans-serif; background-color: white;">
<h1>Weather Alerts</h1>
{{- range .Air}}
<h3><span style="border: 1px solid black; background-color: {{.Color}}; text-align: center; font-size: 35px; display: inline-block; width: 20px;">!</span> {{.Headline}} in {{.Location}}</h3>
{{- end}}
{{- range .Flood}}
<h3><span style="border: 1px solid black; background-color: {{.Color}}; text-align: center; font-size: 35px; display: inline-block; width: 20px;">!</span> {{.Headline}} in {{.Location}} - {{.When}}</h3>
{{- end}}
{{- if .Weather}}
<table style="border-collapse: collapse; background-color: white;">
{{- range .Weather}}
<tr>
<td style="border: 1px solid black; padding: 8px; background-color: {{.Color}}; font-size: 30px;">!</td>
<td style="border: 1px solid black; text-align: left; padding: 8px;">{{.Headline}} {{.Icon}}</td>
<td style="border: 1px solid black; text-align: left; padding: 8px;">{{.Location}}</td>
<td style="border: 1px solid black; text-align: left; padding: 8px;">{{.Measurement}}</td>
<td style="border: 1px solid black; text-align: left; padding: 8px;">{{.When}}</td>
</tr>
{{- end}}
</table>
{{- end}}
</body>
</html>`))

type renderedAlert struct {
	Headline    string
	Color       string
	Icon        template.HTML
	Location    string
	Measurement string
	When        string
}

type messageData struct {
	Air     []renderedAlert
	Flood   []renderedAlert
	Weather []renderedAlert
}

// severityColor maps severity onto the highlight color used in the body.
func severityColor(s classify.Severity) string {
	switch s {
	case classify.SevereWarning:
		return "red"
	case classify.Warning:
		return "#FF8300"
	case classify.Alert:
		return "#f3d300"
	default:
		return ""
	}
}

// headline phrases a severity and subject the way the alert emails always
// have: "Alert! Elevated X", "Warning! High X", "Severe Warning! Extreme X".
func headline(s classify.Severity, subject string) string {
	switch s {
	case classify.Alert:
		return fmt.Sprintf("Alert! Elevated %s", subject)
	case classify.Warning:
		return fmt.Sprintf("Warning! High %s", subject)
	case classify.SevereWarning:
		return fmt.Sprintf("Severe Warning! Extreme %s", subject)
	default:
		return subject
	}
}

// alertIcon returns the emoji shown next to a weather hazard.
func alertIcon(t classify.AlertType) template.HTML {
	switch t {
	case classify.WindAlert:
		return "&#x1F32C;"
	case classify.HeatAlert, classify.IceAlert:
		return "&#x1F321;"
	case classify.LightningAlert:
		return "&#x26A1;"
	case classify.SnowfallAlert:
		return "&#x1F328;"
	case classify.VisibilityAlert:
		return "&#x1F32B;"
	case classify.UVAlert:
		return "&#x1F506;"
	case classify.RainAlert:
		return "&#x1F327;"
	default:
		return ""
	}
}

// Renderable reports whether a record belongs in an email at all. Normal
// severities are informational markers, not alerts.
func Renderable(rec store.AlertRecord) bool {
	return rec.Severity.Actionable()
}

// RenderMessage builds the HTML body for one recipient's alert list.
// Returns ok=false when nothing is renderable; no email is sent then.
func RenderMessage(records []store.AlertRecord) (string, bool) {
	var data messageData

	for _, rec := range records {
		if !Renderable(rec) {
			continue
		}

		place := rec.Location
		if rec.County != "" && rec.County != rec.Location {
			place = fmt.Sprintf("%s, %s", rec.Location, rec.County)
		}

		switch rec.Category {
		case store.CategoryAirQuality:
			data.Air = append(data.Air, renderedAlert{
				Headline: headline(rec.Severity, "Pollution Levels"),
				Color:    severityColor(rec.Severity),
				Location: place,
			})
		case store.CategoryFlood:
			data.Flood = append(data.Flood, renderedAlert{
				Headline: headline(rec.Severity, "Risk of Flooding"),
				Color:    severityColor(rec.Severity),
				Location: place,
				When:     rec.TimeRaised.UTC().Format("15:04:05"),
			})
		case store.CategoryWeather:
			data.Weather = append(data.Weather, renderedAlert{
				Headline:    headline(rec.Severity, rec.AlertType.String()),
				Color:       severityColor(rec.Severity),
				Icon:        alertIcon(rec.AlertType),
				Location:    place,
				Measurement: fmt.Sprintf("%.1f", rec.Measurement),
				When:        rec.ForecastAt.UTC().Format(time.RFC822),
			})
		}
	}

	if len(data.Air) == 0 && len(data.Flood) == 0 && len(data.Weather) == 0 {
		return "", false
	}

	var b strings.Builder
	if err := messageTemplate.Execute(&b, data); err != nil {
		// The template is static and the data contains no user input
		// that can fail execution; treat failure as empty.
		return "", false
	}
	return b.String(), true
}
