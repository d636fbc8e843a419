package layers

import (
	"techloc/map-core/internal/fleet"
	"techloc/map-core/internal/geo"
)

// StoppedZOffset lifts stopped vehicles above moving ones.
const StoppedZOffset = 500

// VehicleMarker builds the marker for v. ok is false when v has no valid
// position.
func VehicleMarker(v fleet.Vehicle) (Marker, bool) {
	p, ok := v.Location()
	if !ok || !geo.Valid(p) {
		return Marker{}, false
	}
	m := Marker{
		ID:       v.ID,
		Category: v.Category(),
		Position: p,
		Label:    p.Label,
		Color:    v.MarkerColor(),
		Health:   v.Health(),
		Stopped:  v.Stopped(),
		Entity:   v,
	}
	if m.Stopped {
		m.ZOffset = StoppedZOffset
	}
	return m, true
}

// PartnerMarker builds the marker for p using the category accent color.
func PartnerMarker(p fleet.Partner, accent string) (Marker, bool) {
	pt, ok := p.Location()
	if !ok || !geo.Valid(pt) {
		return Marker{}, false
	}
	color := p.MarkerColor(accent)
	return Marker{
		ID:       p.ID,
		Category: p.Kind,
		Position: pt,
		Label:    pt.Label,
		Color:    color,
		Health:   geo.ClassifyColor(color),
		Entity:   p,
	}, true
}
