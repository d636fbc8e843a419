// Package vehiclesync keeps the vehicle layer's markers in step with the
// telemetry feed, from full snapshots and from incremental deltas.
package vehiclesync

import (
	"github.com/rs/zerolog"
	"k8s.io/apimachinery/pkg/util/sets"

	"techloc/map-core/internal/category"
	"techloc/map-core/internal/fleet"
	"techloc/map-core/internal/layers"
	"techloc/map-core/internal/metrics"
)

type Options struct {
	// RejectStale ignores deltas whose UpdatedAt is older than the record
	// already applied. By default the last applied delta wins.
	RejectStale bool
	// Hidden starts with the vehicle layer switched off.
	Hidden bool
}

type Result struct {
	Upserted int `json:"upserted"`
	Removed  int `json:"removed"`
	Ignored  int `json:"ignored"`
}

func (r Result) Changed() bool {
	return r.Upserted > 0 || r.Removed > 0
}

type Synchronizer struct {
	reg     *layers.Registry
	opts    Options
	log     zerolog.Logger
	metrics *metrics.Metrics

	// records holds the last merged record per id, including vehicles whose
	// position is currently invalid, so partial patches have a base.
	records map[string]fleet.Vehicle
	// hidden keeps records current but places no markers.
	hidden bool
}

func New(reg *layers.Registry, opts Options, log zerolog.Logger, m *metrics.Metrics) *Synchronizer {
	return &Synchronizer{
		reg:     reg,
		opts:    opts,
		log:     log,
		metrics: m,
		records: make(map[string]fleet.Vehicle),
		hidden:  opts.Hidden,
	}
}

// Sync applies a full snapshot. Afterwards the layer holds exactly one
// marker per snapshot vehicle with a valid position.
func (s *Synchronizer) Sync(snapshot []fleet.Vehicle) Result {
	var res Result
	valid := sets.NewString()
	records := make(map[string]fleet.Vehicle, len(snapshot))

	for _, v := range snapshot {
		if v.ID == "" {
			res.Ignored++
			continue
		}
		if v.Status == "" {
			v.Status = fleet.StatusStopped
		}
		records[v.ID] = v
		if s.hidden {
			continue
		}

		m, ok := layers.VehicleMarker(v)
		if !ok {
			s.log.Debug().Str("vehicle_id", v.ID).Msg("vehicle has no valid position; skipping marker")
			continue
		}
		if _, ok := s.reg.Upsert(category.Vehicle, m); ok {
			valid.Insert(v.ID)
			res.Upserted++
		}
	}

	current := sets.NewString(s.reg.IDs(category.Vehicle)...)
	for _, id := range current.Difference(valid).List() {
		if s.reg.Remove(category.Vehicle, id) {
			res.Removed++
		}
	}
	s.records = records

	s.metrics.ObserveVehicleSync(res.Upserted, res.Removed)
	s.metrics.SetVehicleMarkers(s.reg.Len(category.Vehicle))
	return res
}

// Apply merges one delta. Vehicles not mentioned by the delta are never
// touched.
func (s *Synchronizer) Apply(d fleet.VehicleDelta) Result {
	var res Result
	if d.ID == "" {
		res.Ignored++
		return res
	}
	s.metrics.IncVehicleDelta(string(d.Op))

	switch d.Op {
	case fleet.OpDeleted:
		delete(s.records, d.ID)
		if s.reg.Remove(category.Vehicle, d.ID) {
			res.Removed++
		}
	case fleet.OpCreated, fleet.OpUpdated:
		base, known := s.records[d.ID]
		if !known {
			base = fleet.Vehicle{ID: d.ID}
		}
		if known && s.stale(base, d.Patch) {
			s.log.Debug().Str("vehicle_id", d.ID).Msg("ignoring stale vehicle delta")
			res.Ignored++
			return res
		}

		merged := d.Patch.Merge(base)
		merged.ID = d.ID
		s.records[d.ID] = merged
		if s.hidden {
			break
		}

		m, ok := layers.VehicleMarker(merged)
		if !ok {
			if s.reg.Remove(category.Vehicle, d.ID) {
				res.Removed++
			}
			break
		}
		if _, ok := s.reg.Upsert(category.Vehicle, m); ok {
			res.Upserted++
		}
	default:
		s.log.Debug().Str("vehicle_id", d.ID).Str("op", string(d.Op)).Msg("unknown vehicle delta op")
		res.Ignored++
	}

	s.metrics.SetVehicleMarkers(s.reg.Len(category.Vehicle))
	return res
}

// SetVisible switches the vehicle layer on or off. Switching off drops every
// marker; switching on places one marker per record with a valid position.
// Records keep following the feed either way.
func (s *Synchronizer) SetVisible(visible bool) Result {
	var res Result
	if s.hidden == !visible {
		return res
	}
	s.hidden = !visible

	if s.hidden {
		res.Removed = s.reg.Len(category.Vehicle)
		s.reg.Clear(category.Vehicle)
		s.reg.Hide(category.Vehicle)
	} else {
		s.reg.Show(category.Vehicle)
		for _, v := range s.Vehicles() {
			m, ok := layers.VehicleMarker(v)
			if !ok {
				continue
			}
			if _, ok := s.reg.Upsert(category.Vehicle, m); ok {
				res.Upserted++
			}
		}
	}
	s.metrics.SetVehicleMarkers(s.reg.Len(category.Vehicle))
	return res
}

// Visible reports whether vehicle markers are being placed.
func (s *Synchronizer) Visible() bool {
	return !s.hidden
}

func (s *Synchronizer) stale(base fleet.Vehicle, p fleet.VehiclePatch) bool {
	if !s.opts.RejectStale || p.UpdatedAt == nil || base.UpdatedAt.IsZero() {
		return false
	}
	return p.UpdatedAt.Before(base.UpdatedAt)
}

// Vehicle returns the last applied record for id.
func (s *Synchronizer) Vehicle(id string) (fleet.Vehicle, bool) {
	v, ok := s.records[id]
	return v, ok
}

// Vehicles returns every known record ordered by id.
func (s *Synchronizer) Vehicles() []fleet.Vehicle {
	ids := sets.StringKeySet(s.records).List()
	out := make([]fleet.Vehicle, 0, len(ids))
	for _, id := range ids {
		out = append(out, s.records[id])
	}
	return out
}
