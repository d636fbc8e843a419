package fleet

import (
	"strings"
	"time"

	"techloc/map-core/internal/geo"
)

type DeltaOp string

const (
	OpCreated DeltaOp = "created"
	OpUpdated DeltaOp = "updated"
	OpDeleted DeltaOp = "deleted"
)

func ParseDeltaOp(raw string) (DeltaOp, bool) {
	switch strings.ToLower(strings.TrimSpace(raw)) {
	case "created", "create", "insert":
		return OpCreated, true
	case "updated", "update":
		return OpUpdated, true
	case "deleted", "delete", "remove":
		return OpDeleted, true
	default:
		return "", false
	}
}

// VehiclePatch carries a full or partial vehicle record. Nil fields are left
// untouched when merged.
type VehiclePatch struct {
	Label     *string        `json:"label,omitempty"`
	Lat       *float64       `json:"lat,omitempty"`
	Lng       *float64       `json:"lng,omitempty"`
	Status    *VehicleStatus `json:"status,omitempty"`
	UpdatedAt *time.Time     `json:"updated_at,omitempty"`
}

// VehicleDelta is one push notification from the telemetry provider.
type VehicleDelta struct {
	Op    DeltaOp      `json:"op"`
	ID    string       `json:"id"`
	Patch VehiclePatch `json:"vehicle"`
}

// Merge applies the patch on top of base. A patch that sets only one of
// lat/lng reuses the other coordinate from base; when base has no position
// the half-known point is dropped and the vehicle stays unplaced.
func (p VehiclePatch) Merge(base Vehicle) Vehicle {
	out := base
	if p.Label != nil {
		out.Label = *p.Label
	}
	if p.Lat != nil || p.Lng != nil {
		out.Position = mergePosition(base.Position, p.Lat, p.Lng)
	}
	if p.Status != nil {
		out.Status = *p.Status
	}
	if p.UpdatedAt != nil {
		out.UpdatedAt = *p.UpdatedAt
	}
	if out.Status == "" {
		out.Status = StatusStopped
	}
	return out
}

func mergePosition(base *geo.Point, lat, lng *float64) *geo.Point {
	var pos geo.Point
	switch {
	case lat != nil && lng != nil:
		pos = geo.Point{Lat: *lat, Lng: *lng}
	case base == nil:
		return nil
	default:
		pos = geo.Point{Lat: base.Lat, Lng: base.Lng}
		if lat != nil {
			pos.Lat = *lat
		}
		if lng != nil {
			pos.Lng = *lng
		}
	}
	if base != nil {
		pos.Label = base.Label
	}
	return &pos
}

// PatchFromVehicle builds a full-record patch.
func PatchFromVehicle(v Vehicle) VehiclePatch {
	p := VehiclePatch{}
	if v.Label != "" {
		label := v.Label
		p.Label = &label
	}
	if v.Position != nil {
		lat, lng := v.Position.Lat, v.Position.Lng
		p.Lat, p.Lng = &lat, &lng
	}
	if v.Status != "" {
		status := v.Status
		p.Status = &status
	}
	if !v.UpdatedAt.IsZero() {
		ts := v.UpdatedAt
		p.UpdatedAt = &ts
	}
	return p
}
