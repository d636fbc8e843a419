package layers

import (
	"sort"

	"techloc/map-core/internal/fleet"
	"techloc/map-core/internal/geo"
)

// Overlay names a layer that is not a category: it is drawn under the
// markers, always attached, and replaced wholesale.
type Overlay string

const (
	OverlayHotspots     Overlay = "hotspots"
	OverlayRemovalSites Overlay = "removal_sites"
)

// RemovalSiteIcon is the warning glyph drawn for removal sites.
const RemovalSiteIcon = "warning"

// Circle is one hotspot coverage area.
type Circle struct {
	ID           string    `json:"id"`
	Center       geo.Point `json:"center"`
	RadiusMiles  float64   `json:"radius_miles"`
	RadiusMeters float64   `json:"radius_meters"`
	Color        string    `json:"color"`
	FillColor    string    `json:"fill_color"`
	FillOpacity  float64   `json:"fill_opacity"`
	Weight       float64   `json:"weight"`
	Opacity      float64   `json:"opacity"`
	Location     string    `json:"location,omitempty"`
}

// HotspotCircle builds the circle for h. ok is false when h has no valid
// center or radius.
func HotspotCircle(h fleet.Hotspot) (Circle, bool) {
	if !h.Drawable() {
		return Circle{}, false
	}
	center, _ := h.Location()
	return Circle{
		ID:           h.ID,
		Center:       center,
		RadiusMiles:  h.RadiusMiles,
		RadiusMeters: h.RadiusMiles * geo.MetersPerMile,
		Color:        geo.ColorGreen,
		FillColor:    geo.ColorGreen,
		FillOpacity:  0.18,
		Weight:       1.5,
		Opacity:      0.7,
		Location:     h.LocationText(),
	}, true
}

// SiteMarker is one device removal location.
type SiteMarker struct {
	ID        string    `json:"id"`
	Position  geo.Point `json:"position"`
	Icon      string    `json:"icon"`
	Company   string    `json:"company"`
	AssocUnit string    `json:"assoc_unit,omitempty"`
	Note      string    `json:"note,omitempty"`
}

func RemovalSiteMarker(s fleet.RemovalSite) (SiteMarker, bool) {
	p, ok := s.Location()
	if !ok || !geo.Valid(p) {
		return SiteMarker{}, false
	}
	return SiteMarker{
		ID:        s.ID,
		Position:  p,
		Icon:      RemovalSiteIcon,
		Company:   s.DisplayName(),
		AssocUnit: s.AssocUnit,
		Note:      s.Note,
	}, true
}

// ReplaceHotspots clears the hotspot overlay and draws every drawable
// hotspot. It returns how many were drawn.
func (r *Registry) ReplaceHotspots(hs []fleet.Hotspot) int {
	out := make([]Circle, 0, len(hs))
	for _, h := range hs {
		if c, ok := HotspotCircle(h); ok {
			out = append(out, c)
		}
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	if skipped := len(hs) - len(out); skipped > 0 {
		r.log.Debug().Int("skipped", skipped).Msg("hotspots without valid center or radius")
	}
	r.hotspots = out
	return len(out)
}

// ReplaceRemovalSites clears the removal site overlay and places every site
// with valid coordinates. It returns how many were placed.
func (r *Registry) ReplaceRemovalSites(sites []fleet.RemovalSite) int {
	out := make([]SiteMarker, 0, len(sites))
	for _, s := range sites {
		if m, ok := RemovalSiteMarker(s); ok {
			out = append(out, m)
		}
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	if skipped := len(sites) - len(out); skipped > 0 {
		r.log.Debug().Int("skipped", skipped).Msg("removal sites without valid coordinates")
	}
	r.sites = out
	return len(out)
}

func (r *Registry) Hotspots() []Circle {
	return append([]Circle(nil), r.hotspots...)
}

func (r *Registry) RemovalSites() []SiteMarker {
	return append([]SiteMarker(nil), r.sites...)
}

// OverlayLen returns the number of drawn items in an overlay.
func (r *Registry) OverlayLen(o Overlay) int {
	switch o {
	case OverlayHotspots:
		return len(r.hotspots)
	case OverlayRemovalSites:
		return len(r.sites)
	default:
		return 0
	}
}
