package cluster

import (
	"fmt"
	"math"
	"sort"

	"github.com/paulmach/orb/maptile"

	"techloc/map-core/internal/geo"
)

const (
	// tilePixelZoom is log2 of the 256px tile edge.
	tilePixelZoom = 8
	maxZoom       = 22
)

type Options struct {
	// MaxClusterRadius is the grouping cell edge in screen pixels.
	MaxClusterRadius int
	// DisableClusteringAtZoom leaves every marker on its own from this zoom
	// upward. Zero keeps clustering at every zoom.
	DisableClusteringAtZoom int
	// Disabled turns grouping off entirely.
	Disabled bool
}

var (
	VehicleOptions = Options{MaxClusterRadius: 35, DisableClusteringAtZoom: 17}
	PartnerOptions = Options{MaxClusterRadius: 45, DisableClusteringAtZoom: 17}
)

type Cluster struct {
	ID      string    `json:"id"`
	Center  geo.Point `json:"center"`
	Members []Member  `json:"-"`
	Rollup  Rollup    `json:"rollup"`
}

// Group buckets members into screen-space grid cells at the given zoom and
// rolls up each bucket. Output is ordered by cell, members keep input order.
func Group(members []Member, zoom int, opts Options) []Cluster {
	if len(members) == 0 {
		return nil
	}
	if zoom < 0 {
		zoom = 0
	}
	if zoom > maxZoom {
		zoom = maxZoom
	}

	if opts.Disabled || (opts.DisableClusteringAtZoom > 0 && zoom >= opts.DisableClusteringAtZoom) {
		return singletons(members)
	}

	cellZoom := maptile.Zoom(zoom + tilePixelZoom - cellShift(opts.MaxClusterRadius))

	type bucket struct {
		tile    maptile.Tile
		members []Member
	}
	byTile := make(map[maptile.Tile]*bucket)
	order := make([]maptile.Tile, 0)
	for _, m := range members {
		t := maptile.At(m.Position.Orb(), cellZoom)
		b, ok := byTile[t]
		if !ok {
			b = &bucket{tile: t}
			byTile[t] = b
			order = append(order, t)
		}
		b.members = append(b.members, m)
	}

	sort.Slice(order, func(i, j int) bool {
		if order[i].Y != order[j].Y {
			return order[i].Y < order[j].Y
		}
		return order[i].X < order[j].X
	})

	out := make([]Cluster, 0, len(order))
	for _, t := range order {
		b := byTile[t]
		out = append(out, Cluster{
			ID:      fmt.Sprintf("%d/%d/%d", t.Z, t.X, t.Y),
			Center:  centroid(b.members),
			Members: b.members,
			Rollup:  Aggregate(b.members),
		})
	}
	return out
}

func singletons(members []Member) []Cluster {
	out := make([]Cluster, 0, len(members))
	for _, m := range members {
		out = append(out, Cluster{
			ID:      "marker/" + m.ID,
			Center:  m.Position,
			Members: []Member{m},
			Rollup:  Aggregate([]Member{m}),
		})
	}
	return out
}

// cellShift converts a pixel radius into the power-of-two cell it rounds to.
func cellShift(radius int) int {
	if radius <= 1 {
		return 1
	}
	s := int(math.Round(math.Log2(float64(radius))))
	if s < 1 {
		return 1
	}
	if s > tilePixelZoom {
		return tilePixelZoom
	}
	return s
}

func centroid(members []Member) geo.Point {
	var lat, lng float64
	for _, m := range members {
		lat += m.Position.Lat
		lng += m.Position.Lng
	}
	n := float64(len(members))
	return geo.Point{Lat: lat / n, Lng: lng / n}
}
