// Package geo holds the coordinate type shared by every map layer and the
// small set of geometry and color helpers the matcher, cluster rollup and
// connection renderer depend on.
package geo

import (
	"fmt"
	"math"

	"github.com/paulmach/orb"
	orbgeo "github.com/paulmach/orb/geo"
)

// MetersPerMile converts haversine meters into the miles shown on the map.
const MetersPerMile = 1609.344

type Point struct {
	Lat   float64 `json:"lat"`
	Lng   float64 `json:"lng"`
	Label string  `json:"label,omitempty"`
}

// Locatable is anything that can be placed on the map. ok is false when the
// entity carries no coordinates at all.
type Locatable interface {
	Location() (p Point, ok bool)
}

func (p Point) Orb() orb.Point {
	return orb.Point{p.Lng, p.Lat}
}

func FromOrb(p orb.Point) Point {
	return Point{Lat: p.Lat(), Lng: p.Lon()}
}

// Equal compares coordinates only; labels are ignored.
func (p Point) Equal(o Point) bool {
	return p.Lat == o.Lat && p.Lng == o.Lng
}

func (p Point) String() string {
	return fmt.Sprintf("%.4f, %.4f", p.Lat, p.Lng)
}

// Valid reports whether both coordinates are finite and inside the WGS84
// ranges.
func Valid(p Point) bool {
	if math.IsNaN(p.Lat) || math.IsInf(p.Lat, 0) || math.IsNaN(p.Lng) || math.IsInf(p.Lng, 0) {
		return false
	}
	return p.Lat >= -90 && p.Lat <= 90 && p.Lng >= -180 && p.Lng <= 180
}

func HasValidCoords(l Locatable) bool {
	if l == nil {
		return false
	}
	p, ok := l.Location()
	return ok && Valid(p)
}

// SameLocation reports whether a and b name the same place on the globe.
// Unlike Equal it treats lng 180 and -180 as one meridian and ignores the
// longitude of points on a pole.
func SameLocation(a, b Point) bool {
	if a.Lat != b.Lat {
		return false
	}
	if math.Abs(a.Lat) == 90 {
		return true
	}
	return normalizeLng(a.Lng) == normalizeLng(b.Lng)
}

func normalizeLng(lng float64) float64 {
	if lng == -180 {
		return 180
	}
	return lng
}

// Distance is the great-circle distance between a and b in miles. It is zero
// exactly when SameLocation(a, b) holds.
func Distance(a, b Point) float64 {
	if SameLocation(a, b) {
		return 0
	}
	return orbgeo.DistanceHaversine(a.Orb(), b.Orb()) / MetersPerMile
}

// Midpoint is the plain coordinate average used to anchor distance labels.
func Midpoint(a, b Point) Point {
	return Point{Lat: (a.Lat + b.Lat) / 2, Lng: (a.Lng + b.Lng) / 2}
}

// RoundCoord rounds to 6 decimals, the precision kept for map clicks.
func RoundCoord(v float64) float64 {
	return math.Round(v*1e6) / 1e6
}

func FormatMiles(miles float64) string {
	if miles < 0 || math.IsNaN(miles) {
		miles = 0
	}
	return fmt.Sprintf("%.1f mi", miles)
}
