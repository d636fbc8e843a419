// Package connection draws the single dashed line between the current origin
// and its matched partner, labeled with the distance in miles.
package connection

import (
	"github.com/paulmach/orb"
	"github.com/paulmach/orb/geojson"

	"techloc/map-core/internal/geo"
)

const (
	DashArray = "6 4"
	Weight    = 3
	Opacity   = 0.85
)

type Connection struct {
	From          geo.Point `json:"from"`
	To            geo.Point `json:"to"`
	Color         string    `json:"color"`
	DistanceMiles float64   `json:"distance_miles"`
	Label         string    `json:"label"`
	Midpoint      geo.Point `json:"midpoint"`
	DashArray     string    `json:"dash_array"`
	Weight        int       `json:"weight"`
	Opacity       float64   `json:"opacity"`
}

// FeatureCollection renders the line and its label anchor as GeoJSON.
func (c Connection) FeatureCollection() *geojson.FeatureCollection {
	fc := geojson.NewFeatureCollection()

	line := geojson.NewFeature(orb.LineString{c.From.Orb(), c.To.Orb()})
	line.Properties["kind"] = "connection"
	line.Properties["color"] = c.Color
	line.Properties["dashArray"] = c.DashArray
	line.Properties["weight"] = c.Weight
	line.Properties["opacity"] = c.Opacity
	line.Properties["distanceMiles"] = c.DistanceMiles
	fc.Append(line)

	label := geojson.NewFeature(c.Midpoint.Orb())
	label.Properties["kind"] = "distance_label"
	label.Properties["text"] = c.Label
	fc.Append(label)

	return fc
}

// Renderer holds at most one connection at a time.
type Renderer struct {
	current *Connection
}

func NewRenderer() *Renderer {
	return &Renderer{}
}

// Draw replaces any existing connection with a line from origin to target.
func (r *Renderer) Draw(origin, target geo.Point, color string) Connection {
	d := geo.Distance(origin, target)
	c := Connection{
		From:          origin,
		To:            target,
		Color:         color,
		DistanceMiles: d,
		Label:         geo.FormatMiles(d),
		Midpoint:      geo.Midpoint(origin, target),
		DashArray:     DashArray,
		Weight:        Weight,
		Opacity:       Opacity,
	}
	r.current = &c
	return c
}

// Clear removes the connection. Clearing with nothing drawn is a no-op.
func (r *Renderer) Clear() bool {
	if r.current == nil {
		return false
	}
	r.current = nil
	return true
}

func (r *Renderer) Current() (Connection, bool) {
	if r.current == nil {
		return Connection{}, false
	}
	return *r.current, true
}
