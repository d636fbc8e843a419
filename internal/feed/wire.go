package feed

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"techloc/map-core/internal/fleet"
)

var ErrInvalidDelta = errors.New("invalid vehicle delta")

// wireVehicle accepts the provider's loose field names and status values.
type wireVehicle struct {
	ID        string     `json:"id"`
	Label     *string    `json:"label"`
	Lat       *float64   `json:"lat"`
	Lng       *float64   `json:"lng"`
	Lon       *float64   `json:"lon"`
	Status    *string    `json:"status"`
	UpdatedAt *time.Time `json:"updated_at"`
}

type wireDelta struct {
	Op      string       `json:"op"`
	Type    string       `json:"type"`
	ID      string       `json:"id"`
	Vehicle *wireVehicle `json:"vehicle"`
}

// DecodeDelta parses one JSON delta message. The op may be given as "op"
// or "type"; the id falls back to the embedded vehicle's id.
func DecodeDelta(raw []byte) (fleet.VehicleDelta, error) {
	var w wireDelta
	if err := json.Unmarshal(raw, &w); err != nil {
		return fleet.VehicleDelta{}, fmt.Errorf("%w: %v", ErrInvalidDelta, err)
	}
	return w.delta()
}

// DecodeDeltas parses a JSON array of delta messages.
func DecodeDeltas(raw []byte) ([]fleet.VehicleDelta, error) {
	var ws []wireDelta
	if err := json.Unmarshal(raw, &ws); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidDelta, err)
	}
	out := make([]fleet.VehicleDelta, 0, len(ws))
	for i, w := range ws {
		d, err := w.delta()
		if err != nil {
			return nil, fmt.Errorf("delta %d: %w", i, err)
		}
		out = append(out, d)
	}
	return out, nil
}

func (w wireDelta) delta() (fleet.VehicleDelta, error) {
	rawOp := w.Op
	if strings.TrimSpace(rawOp) == "" {
		rawOp = w.Type
	}
	op, ok := fleet.ParseDeltaOp(rawOp)
	if !ok {
		return fleet.VehicleDelta{}, fmt.Errorf("%w: unknown op %q", ErrInvalidDelta, rawOp)
	}
	id := strings.TrimSpace(w.ID)
	if id == "" && w.Vehicle != nil {
		id = strings.TrimSpace(w.Vehicle.ID)
	}
	if id == "" {
		return fleet.VehicleDelta{}, fmt.Errorf("%w: missing id", ErrInvalidDelta)
	}

	d := fleet.VehicleDelta{Op: op, ID: id}
	if w.Vehicle != nil {
		d.Patch = w.Vehicle.patch()
	}
	return d, nil
}

func (w wireVehicle) patch() fleet.VehiclePatch {
	p := fleet.VehiclePatch{
		Label:     w.Label,
		Lat:       w.Lat,
		Lng:       w.Lng,
		UpdatedAt: w.UpdatedAt,
	}
	if p.Lng == nil {
		p.Lng = w.Lon
	}
	if w.Status != nil {
		s := fleet.ParseVehicleStatus(*w.Status)
		p.Status = &s
	}
	return p
}
