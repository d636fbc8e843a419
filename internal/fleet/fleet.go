// Package fleet defines the two kinds of entity placed on the map: vehicles,
// which are kept live by the telemetry feed, and partners, which are replaced
// wholesale on every directory refresh.
package fleet

import (
	"strings"
	"time"

	"techloc/map-core/internal/category"
	"techloc/map-core/internal/geo"
)

// Entity is implemented by Vehicle and Partner only.
type Entity interface {
	geo.Locatable
	EntityID() string
	Category() category.Key
	isEntity()
}

type VehicleStatus string

const (
	StatusMoving   VehicleStatus = "moving"
	StatusStopped  VehicleStatus = "stopped"
	StatusDisabled VehicleStatus = "disabled"
)

func ParseVehicleStatus(raw string) VehicleStatus {
	switch strings.ToLower(strings.TrimSpace(raw)) {
	case "moving", "active", "driving":
		return StatusMoving
	case "disabled", "alert", "critical", "offline":
		return StatusDisabled
	default:
		return StatusStopped
	}
}

type Vehicle struct {
	ID        string        `json:"id"`
	Label     string        `json:"label,omitempty"`
	Position  *geo.Point    `json:"position,omitempty"`
	Status    VehicleStatus `json:"status"`
	UpdatedAt time.Time     `json:"updated_at"`
}

func (v Vehicle) EntityID() string       { return v.ID }
func (v Vehicle) Category() category.Key { return category.Vehicle }
func (Vehicle) isEntity()                {}

func (v Vehicle) Location() (geo.Point, bool) {
	if v.Position == nil {
		return geo.Point{}, false
	}
	p := *v.Position
	if p.Label == "" {
		p.Label = v.Label
	}
	return p, true
}

// Stopped reports whether the vehicle should carry the not-moving badge.
func (v Vehicle) Stopped() bool {
	return v.Status != StatusMoving
}

// Health classifies the vehicle for marker and cluster coloring.
func (v Vehicle) Health() geo.Health {
	switch v.Status {
	case StatusMoving:
		return geo.HealthHealthy
	case StatusStopped:
		return geo.HealthWarning
	case StatusDisabled:
		return geo.HealthCritical
	default:
		return geo.HealthUnknown
	}
}

func (v Vehicle) MarkerColor() string {
	return v.Health().Color()
}

// Contact is passed through to popups untouched.
type Contact struct {
	Company      string `json:"company,omitempty"`
	Name         string `json:"name,omitempty"`
	Phone        string `json:"phone,omitempty"`
	Email        string `json:"email,omitempty"`
	Address      string `json:"address,omitempty"`
	City         string `json:"city,omitempty"`
	State        string `json:"state,omitempty"`
	Zip          string `json:"zip,omitempty"`
	Website      string `json:"website,omitempty"`
	Availability string `json:"availability,omitempty"`
	Notes        string `json:"notes,omitempty"`
}

type Partner struct {
	ID         string       `json:"id"`
	Kind       category.Key `json:"category"`
	Position   *geo.Point   `json:"position,omitempty"`
	Authorized bool         `json:"authorized"`
	Verified   bool         `json:"verified"`
	Contact    Contact      `json:"contact"`
}

func (p Partner) EntityID() string       { return p.ID }
func (p Partner) Category() category.Key { return p.Kind }
func (Partner) isEntity()                {}

func (p Partner) Location() (geo.Point, bool) {
	if p.Position == nil {
		return geo.Point{}, false
	}
	pt := *p.Position
	if pt.Label == "" {
		pt.Label = p.DisplayName()
	}
	return pt, true
}

func (p Partner) DisplayName() string {
	switch {
	case strings.TrimSpace(p.Contact.Company) != "":
		return strings.TrimSpace(p.Contact.Company)
	case strings.TrimSpace(p.Contact.Name) != "":
		return strings.TrimSpace(p.Contact.Name)
	default:
		return "Service"
	}
}

// LocationText is "City, ST 12345" with empty parts omitted.
func (p Partner) LocationText() string {
	var parts []string
	if c := strings.TrimSpace(p.Contact.City); c != "" {
		parts = append(parts, c)
	}
	tail := strings.TrimSpace(strings.TrimSpace(p.Contact.State) + " " + strings.TrimSpace(p.Contact.Zip))
	if tail != "" {
		parts = append(parts, tail)
	}
	return strings.Join(parts, ", ")
}

// MarkerColor keeps the category accent for authorized partners and marks
// unauthorized ones red.
func (p Partner) MarkerColor(accent string) string {
	if !p.Authorized {
		return geo.ColorRed
	}
	if accent == "" {
		return category.ColorFallback
	}
	return accent
}

func Ptr(p geo.Point) *geo.Point {
	return &p
}
