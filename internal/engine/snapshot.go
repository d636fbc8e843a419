package engine

import (
	"techloc/map-core/internal/category"
	"techloc/map-core/internal/cluster"
	"techloc/map-core/internal/connection"
	"techloc/map-core/internal/fleet"
	"techloc/map-core/internal/geo"
	"techloc/map-core/internal/layers"
	"techloc/map-core/internal/matcher"
	"techloc/map-core/internal/sidebar"
)

type LayerState struct {
	Key     category.Key `json:"key"`
	Label   string       `json:"label"`
	Color   string       `json:"color"`
	Visible bool         `json:"visible"`
	Markers int          `json:"markers"`
}

// Snapshot is a read-only projection of the whole map state.
type Snapshot struct {
	Origin          *geo.Point                      `json:"origin,omitempty"`
	SelectedVehicle string                          `json:"selected_vehicle,omitempty"`
	Sidebar         sidebar.State                   `json:"sidebar"`
	Layout          sidebar.Layout                  `json:"layout"`
	Layers          []LayerState                    `json:"layers"`
	Match           *matcher.Match                  `json:"match,omitempty"`
	Connection      *connection.Connection          `json:"connection,omitempty"`
	Pinned          map[category.Key]string         `json:"pinned,omitempty"`
	Filters         map[category.Key]matcher.Filter `json:"filters,omitempty"`
	VehiclesVisible bool                            `json:"vehicles_visible"`
	Hotspots        []layers.Circle                 `json:"hotspots"`
	RemovalSites    []layers.SiteMarker             `json:"removal_sites"`
}

func (e *Engine) Snapshot() Snapshot {
	e.mu.Lock()
	defer e.mu.Unlock()

	s := Snapshot{
		SelectedVehicle: e.selectedVehicle,
		Sidebar:         e.side.State(),
		Layout:          e.layout,
		VehiclesVisible: e.vehicles.Visible(),
		Hotspots:        e.registry.Hotspots(),
		RemovalSites:    e.registry.RemovalSites(),
	}
	if e.origin != nil {
		o := *e.origin
		s.Origin = &o
	}
	for _, k := range e.registry.Keys() {
		d, _ := e.registry.Descriptor(k)
		s.Layers = append(s.Layers, LayerState{
			Key:     k,
			Label:   d.Label,
			Color:   d.Color,
			Visible: e.registry.IsVisible(k),
			Markers: e.registry.Len(k),
		})
	}
	if e.match != nil {
		m := *e.match
		s.Match = &m
	}
	if c, ok := e.conn.Current(); ok {
		s.Connection = &c
	}
	if len(e.pinned) > 0 {
		s.Pinned = make(map[category.Key]string, len(e.pinned))
		for k, p := range e.pinned {
			s.Pinned[k] = p.ID
		}
	}
	if len(e.filters) > 0 {
		s.Filters = make(map[category.Key]matcher.Filter, len(e.filters))
		for k, f := range e.filters {
			s.Filters[k] = f
		}
	}
	return s
}

// Connection returns the currently drawn connection, if any.
func (e *Engine) Connection() (connection.Connection, bool) {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.conn.Current()
}

// Clusters groups a layer's markers at zoom. Hidden and unknown layers
// yield nothing.
func (e *Engine) Clusters(key category.Key, zoom int) []cluster.Cluster {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.registry.Clusters(key, zoom)
}

// Markers returns copies of a layer's markers ordered by id.
func (e *Engine) Markers(key category.Key) []layers.Marker {
	e.mu.Lock()
	defer e.mu.Unlock()
	ms := e.registry.Markers(key)
	out := make([]layers.Marker, 0, len(ms))
	for _, m := range ms {
		out = append(out, *m)
	}
	return out
}

func (e *Engine) Hotspots() []layers.Circle {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.registry.Hotspots()
}

func (e *Engine) RemovalSites() []layers.SiteMarker {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.registry.RemovalSites()
}

func (e *Engine) VehiclesVisible() bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.vehicles.Visible()
}

func (e *Engine) Vehicles() []fleet.Vehicle {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.vehicles.Vehicles()
}

// Vehicle returns the merged record for id, positioned or not.
func (e *Engine) Vehicle(id string) (fleet.Vehicle, bool) {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.vehicles.Vehicle(id)
}

func (e *Engine) Partners(key category.Key) []fleet.Partner {
	e.mu.Lock()
	defer e.mu.Unlock()
	return append([]fleet.Partner(nil), e.partners[key]...)
}

func (e *Engine) Layout() sidebar.Layout {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.layout
}

func (e *Engine) Taxonomy() *category.Taxonomy {
	return e.tax
}
