// Package classify maps raw forecast variables onto ordinal hazard
// severities. Every function here is pure: no I/O, no clocks, no state.
package classify

// Severity is the ordinal hazard level used across the alert tables.
//
// The ordering is inverted relative to the usual "bigger is worse"
// convention: 1 is the most severe and 4 means no hazard at all. The
// upstream data and the alert tables both encode severity this way, so the
// inversion is kept exactly. Compare severities with the named constants,
// never with raw < or > on assumptions about direction.
type Severity int

const (
	// SevereWarning is the worst level (ordinal 1).
	SevereWarning Severity = iota + 1
	// Warning is the second-worst level (ordinal 2).
	Warning
	// Alert is the mildest actionable level (ordinal 3).
	Alert
	// Normal (ordinal 4) means no hazard; it never produces an alert row.
	Normal
)

// String returns the human-readable label used in notification bodies.
func (s Severity) String() string {
	switch s {
	case SevereWarning:
		return "Severe Warning"
	case Warning:
		return "Warning"
	case Alert:
		return "Alert"
	case Normal:
		return "Normal"
	default:
		return "Unknown"
	}
}

// Actionable reports whether the severity should produce an alert row.
func (s Severity) Actionable() bool {
	return s >= SevereWarning && s < Normal
}

// AlertType identifies the hazard category of a weather alert.
type AlertType int

const (
	HeatAlert AlertType = iota + 1
	WindAlert
	IceAlert
	LightningAlert
	SnowfallAlert
	VisibilityAlert
	UVAlert
	RainAlert
)

// String returns the label shown in notification bodies.
func (t AlertType) String() string {
	switch t {
	case HeatAlert:
		return "Heat"
	case WindAlert:
		return "Wind"
	case IceAlert:
		return "Ice"
	case LightningAlert:
		return "Lightning"
	case SnowfallAlert:
		return "Snowfall"
	case VisibilityAlert:
		return "Visibility"
	case UVAlert:
		return "UV-index"
	case RainAlert:
		return "Rain"
	default:
		return "Unknown"
	}
}
