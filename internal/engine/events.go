package engine

import (
	"techloc/map-core/internal/category"
	"techloc/map-core/internal/fleet"
	"techloc/map-core/internal/geo"
	"techloc/map-core/internal/matcher"
	"techloc/map-core/internal/sidebar"
)

// Event is one typed input to the engine. Every state change goes through
// Engine.Dispatch with one of the types below.
type Event interface {
	Name() string
	event()
}

// OriginSelected sets the reference point from an external selection.
type OriginSelected struct {
	Point geo.Point `json:"point"`
}

// MapClicked clears an existing selection, or pins the clicked point as the
// new origin when nothing is selected.
type MapClicked struct {
	Point geo.Point `json:"point"`
}

type OriginCleared struct{}

type CategoryToggled struct {
	Key    category.Key `json:"key"`
	Expand bool         `json:"expand"`
}

type RightPanelToggled struct {
	Expanded bool `json:"expanded"`
}

// VehicleSnapshot replaces the whole vehicle set.
type VehicleSnapshot struct {
	Vehicles []fleet.Vehicle `json:"vehicles"`
}

// VehicleDelta applies one push notification.
type VehicleDelta struct {
	Delta fleet.VehicleDelta `json:"delta"`
}

// PartnersLoaded replaces the partner list of one category.
type PartnersLoaded struct {
	Key      category.Key    `json:"key"`
	Partners []fleet.Partner `json:"partners"`
}

type PartnerPinned struct {
	Key category.Key `json:"key"`
	ID  string       `json:"id"`
}

type PartnerUnpinned struct {
	Key category.Key `json:"key"`
}

type FilterChanged struct {
	Key    category.Key   `json:"key"`
	Filter matcher.Filter `json:"filter"`
}

type PanelResized struct {
	Side  sidebar.Side `json:"side"`
	Width int          `json:"width"`
}

type ViewportResized struct{}

// VehicleFocused selects a vehicle and uses its position as the origin.
type VehicleFocused struct {
	ID string `json:"id"`
}

// VehicleLayerToggled switches the vehicle layer on or off at runtime.
// Switching off drops every vehicle marker.
type VehicleLayerToggled struct {
	Visible bool `json:"visible"`
}

// HotspotsLoaded replaces the hotspot coverage overlay.
type HotspotsLoaded struct {
	Hotspots []fleet.Hotspot `json:"hotspots"`
}

// RemovalSitesLoaded replaces the device removal site overlay.
type RemovalSitesLoaded struct {
	Sites []fleet.RemovalSite `json:"sites"`
}

func (OriginSelected) Name() string    { return "origin_selected" }
func (MapClicked) Name() string        { return "map_clicked" }
func (OriginCleared) Name() string     { return "origin_cleared" }
func (CategoryToggled) Name() string   { return "category_toggled" }
func (RightPanelToggled) Name() string { return "right_panel_toggled" }
func (VehicleSnapshot) Name() string   { return "vehicle_snapshot" }
func (VehicleDelta) Name() string      { return "vehicle_delta" }
func (PartnersLoaded) Name() string    { return "partners_loaded" }
func (PartnerPinned) Name() string     { return "partner_pinned" }
func (PartnerUnpinned) Name() string   { return "partner_unpinned" }
func (FilterChanged) Name() string     { return "filter_changed" }
func (PanelResized) Name() string      { return "panel_resized" }
func (ViewportResized) Name() string   { return "viewport_resized" }
func (VehicleFocused) Name() string    { return "vehicle_focused" }

func (VehicleLayerToggled) Name() string { return "vehicle_layer_toggled" }
func (HotspotsLoaded) Name() string      { return "hotspots_loaded" }
func (RemovalSitesLoaded) Name() string  { return "removal_sites_loaded" }

func (OriginSelected) event()    {}
func (MapClicked) event()        {}
func (OriginCleared) event()     {}
func (CategoryToggled) event()   {}
func (RightPanelToggled) event() {}
func (VehicleSnapshot) event()   {}
func (VehicleDelta) event()      {}
func (PartnersLoaded) event()    {}
func (PartnerPinned) event()     {}
func (PartnerUnpinned) event()   {}
func (FilterChanged) event()     {}
func (PanelResized) event()      {}
func (ViewportResized) event()   {}
func (VehicleFocused) event()    {}

func (VehicleLayerToggled) event() {}
func (HotspotsLoaded) event()      {}
func (RemovalSitesLoaded) event()  {}
