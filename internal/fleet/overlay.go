package fleet

import (
	"math"
	"strings"

	"techloc/map-core/internal/geo"
)

// Hotspot is a coverage area drawn as a circle around a point.
type Hotspot struct {
	ID          string     `json:"id"`
	Position    *geo.Point `json:"position,omitempty"`
	RadiusMiles float64    `json:"radius_miles"`
	City        string     `json:"city,omitempty"`
	State       string     `json:"state,omitempty"`
	Zip         string     `json:"zip,omitempty"`
}

func (h Hotspot) Location() (geo.Point, bool) {
	if h.Position == nil {
		return geo.Point{}, false
	}
	return *h.Position, true
}

// Drawable reports whether the hotspot has a valid center and a positive,
// finite radius.
func (h Hotspot) Drawable() bool {
	if !geo.HasValidCoords(h) {
		return false
	}
	return h.RadiusMiles > 0 && !math.IsInf(h.RadiusMiles, 0)
}

// LocationText is "City, State, Zip" with empty parts omitted.
func (h Hotspot) LocationText() string {
	var parts []string
	for _, s := range []string{h.City, h.State, h.Zip} {
		if s = strings.TrimSpace(s); s != "" {
			parts = append(parts, s)
		}
	}
	return strings.Join(parts, ", ")
}

// RemovalSite is a place where a tracking device was taken off a vehicle.
type RemovalSite struct {
	ID        string     `json:"id"`
	Position  *geo.Point `json:"position,omitempty"`
	Company   string     `json:"company,omitempty"`
	AssocUnit string     `json:"assoc_unit,omitempty"`
	Note      string     `json:"note,omitempty"`
}

func (s RemovalSite) Location() (geo.Point, bool) {
	if s.Position == nil {
		return geo.Point{}, false
	}
	p := *s.Position
	if p.Label == "" {
		p.Label = s.DisplayName()
	}
	return p, true
}

func (s RemovalSite) DisplayName() string {
	if c := strings.TrimSpace(s.Company); c != "" {
		return c
	}
	return "Unknown"
}
