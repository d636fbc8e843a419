package geo

import "strings"

const (
	ColorGreen    = "#22c55e"
	ColorAmber    = "#f59e0b"
	ColorAmberAlt = "#fbbf24"
	ColorRed      = "#ef4444"
	ColorNeutral  = "#334155"
)

type Health int

const (
	HealthUnknown Health = iota
	HealthHealthy
	HealthWarning
	HealthCritical
)

func (h Health) String() string {
	switch h {
	case HealthHealthy:
		return "healthy"
	case HealthWarning:
		return "warning"
	case HealthCritical:
		return "critical"
	default:
		return "unknown"
	}
}

// ClassifyColor maps a marker color back onto its health bucket. Colors
// outside the status palette classify as unknown.
func ClassifyColor(hex string) Health {
	switch strings.ToLower(strings.TrimSpace(hex)) {
	case ColorRed:
		return HealthCritical
	case ColorAmber, ColorAmberAlt:
		return HealthWarning
	case ColorGreen:
		return HealthHealthy
	default:
		return HealthUnknown
	}
}

func (h Health) Color() string {
	switch h {
	case HealthHealthy:
		return ColorGreen
	case HealthWarning:
		return ColorAmber
	case HealthCritical:
		return ColorRed
	default:
		return ColorNeutral
	}
}

// BorderColor darkens the status palette for marker outlines.
func BorderColor(fill string) string {
	switch ClassifyColor(fill) {
	case HealthHealthy:
		return "#15803d"
	case HealthWarning:
		return "#b45309"
	case HealthCritical:
		return "#b91c1c"
	default:
		return "#0f172a"
	}
}
