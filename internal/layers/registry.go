// Package layers owns one marker layer per category. A layer holds the
// markers for its category, tracks whether it is attached to the map, and
// groups its markers into clusters on demand.
package layers

import (
	"sort"

	"github.com/rs/zerolog"

	"techloc/map-core/internal/category"
	"techloc/map-core/internal/cluster"
	"techloc/map-core/internal/fleet"
	"techloc/map-core/internal/geo"
)

// Marker is the placed representation of one entity. Pointers returned by
// the registry stay stable for the life of the marker; updates mutate in
// place.
type Marker struct {
	ID       string       `json:"id"`
	Category category.Key `json:"category"`
	Position geo.Point    `json:"position"`
	Label    string       `json:"label,omitempty"`
	Color    string       `json:"color"`
	Health   geo.Health   `json:"-"`
	Stopped  bool         `json:"stopped"`
	ZOffset  int          `json:"z_offset"`
	Entity   fleet.Entity `json:"-"`
}

func (m *Marker) sameLook(o Marker) bool {
	return m.Position.Equal(o.Position) &&
		m.Label == o.Label &&
		m.Color == o.Color &&
		m.Health == o.Health &&
		m.Stopped == o.Stopped &&
		m.ZOffset == o.ZOffset
}

type layer struct {
	desc    category.Descriptor
	opts    cluster.Options
	visible bool
	markers map[string]*Marker
	// cache holds grouping results per zoom; nil means stale.
	cache map[int][]cluster.Cluster
}

func (l *layer) invalidate() {
	l.cache = nil
}

type Options struct {
	// ClusteringDisabled falls back to plain layers where every marker is
	// its own group.
	ClusteringDisabled bool
	// Visible lists the layers attached at startup.
	Visible []category.Key
}

// Registry is not safe for concurrent use; the engine serializes access.
type Registry struct {
	log    zerolog.Logger
	order  []category.Key
	layers map[category.Key]*layer

	hotspots []Circle
	sites    []SiteMarker
}

func New(tax *category.Taxonomy, opts Options, log zerolog.Logger) *Registry {
	r := &Registry{
		log:    log,
		layers: make(map[category.Key]*layer),
	}
	if opts.ClusteringDisabled {
		log.Warn().Msg("marker clustering unavailable; falling back to unclustered layers")
	}

	for _, d := range tax.Descriptors() {
		co := cluster.PartnerOptions
		if d.Key == category.Vehicle {
			co = cluster.VehicleOptions
		}
		co.Disabled = opts.ClusteringDisabled || !d.Clustered
		r.order = append(r.order, d.Key)
		r.layers[d.Key] = &layer{
			desc:    d,
			opts:    co,
			markers: make(map[string]*Marker),
		}
	}
	for _, k := range opts.Visible {
		if l, ok := r.layers[k]; ok {
			l.visible = true
		}
	}
	return r
}

func (r *Registry) Keys() []category.Key {
	return append([]category.Key(nil), r.order...)
}

func (r *Registry) Descriptor(key category.Key) (category.Descriptor, bool) {
	l, ok := r.layers[key]
	if !ok {
		return category.Descriptor{}, false
	}
	return l.desc, true
}

// Show attaches the layer. It reports whether visibility changed.
func (r *Registry) Show(key category.Key) bool {
	l, ok := r.layers[key]
	if !ok || l.visible {
		return false
	}
	l.visible = true
	return true
}

// Hide detaches the layer; its markers are kept.
func (r *Registry) Hide(key category.Key) bool {
	l, ok := r.layers[key]
	if !ok || !l.visible {
		return false
	}
	l.visible = false
	return true
}

func (r *Registry) IsVisible(key category.Key) bool {
	l, ok := r.layers[key]
	return ok && l.visible
}

// Clear drops every marker in the layer. Visibility is unchanged.
func (r *Registry) Clear(key category.Key) {
	l, ok := r.layers[key]
	if !ok {
		return
	}
	if len(l.markers) == 0 {
		return
	}
	l.markers = make(map[string]*Marker)
	l.invalidate()
}

// Upsert places m or updates the existing marker with the same id in place.
// Markers with invalid coordinates are rejected.
func (r *Registry) Upsert(key category.Key, m Marker) (*Marker, bool) {
	l, ok := r.layers[key]
	if !ok || m.ID == "" || !geo.Valid(m.Position) {
		return nil, false
	}
	m.Category = key

	if existing, ok := l.markers[m.ID]; ok {
		if !existing.sameLook(m) {
			l.invalidate()
		}
		*existing = m
		return existing, true
	}

	created := m
	l.markers[m.ID] = &created
	l.invalidate()
	return &created, true
}

func (r *Registry) Remove(key category.Key, id string) bool {
	l, ok := r.layers[key]
	if !ok {
		return false
	}
	if _, ok := l.markers[id]; !ok {
		return false
	}
	delete(l.markers, id)
	l.invalidate()
	return true
}

// Replace makes the layer hold exactly the given markers, reusing existing
// marker pointers for ids already present.
func (r *Registry) Replace(key category.Key, ms []Marker) int {
	l, ok := r.layers[key]
	if !ok {
		return 0
	}
	keep := make(map[string]struct{}, len(ms))
	for _, m := range ms {
		if _, ok := r.Upsert(key, m); ok {
			keep[m.ID] = struct{}{}
		}
	}
	for id := range l.markers {
		if _, ok := keep[id]; !ok {
			delete(l.markers, id)
			l.invalidate()
		}
	}
	return len(l.markers)
}

func (r *Registry) Marker(key category.Key, id string) (*Marker, bool) {
	l, ok := r.layers[key]
	if !ok {
		return nil, false
	}
	m, ok := l.markers[id]
	return m, ok
}

// IDs returns the marker ids of a layer in sorted order.
func (r *Registry) IDs(key category.Key) []string {
	l, ok := r.layers[key]
	if !ok {
		return nil
	}
	ids := make([]string, 0, len(l.markers))
	for id := range l.markers {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}

// Markers returns the layer's markers ordered by id.
func (r *Registry) Markers(key category.Key) []*Marker {
	l, ok := r.layers[key]
	if !ok {
		return nil
	}
	out := make([]*Marker, 0, len(l.markers))
	for _, id := range r.IDs(key) {
		out = append(out, l.markers[id])
	}
	return out
}

func (r *Registry) Len(key category.Key) int {
	l, ok := r.layers[key]
	if !ok {
		return 0
	}
	return len(l.markers)
}

// Clusters groups the layer's markers at zoom. Hidden and unknown layers
// yield nothing and do no grouping work.
func (r *Registry) Clusters(key category.Key, zoom int) []cluster.Cluster {
	l, ok := r.layers[key]
	if !ok || !l.visible {
		return nil
	}
	if cached, ok := l.cache[zoom]; ok {
		return cached
	}

	members := make([]cluster.Member, 0, len(l.markers))
	for _, m := range r.Markers(key) {
		members = append(members, cluster.Member{
			ID:       m.ID,
			Position: m.Position,
			Health:   m.Health,
			Stopped:  m.Stopped,
		})
	}
	out := cluster.Group(members, zoom, l.opts)

	if l.cache == nil {
		l.cache = make(map[int][]cluster.Cluster)
	}
	l.cache[zoom] = out
	return out
}
