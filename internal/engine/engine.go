// Package engine owns the map state and is its only writer. UI inputs and
// feed notifications arrive as typed events through Dispatch, which runs
// each one to completion before the next.
package engine

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"techloc/map-core/internal/category"
	"techloc/map-core/internal/connection"
	"techloc/map-core/internal/fleet"
	"techloc/map-core/internal/geo"
	"techloc/map-core/internal/layers"
	"techloc/map-core/internal/matcher"
	"techloc/map-core/internal/metrics"
	"techloc/map-core/internal/sidebar"
	"techloc/map-core/internal/vehiclesync"
)

var (
	ErrUnknownCategory = errors.New("unknown category")
	ErrUnknownPartner  = errors.New("unknown partner")
	ErrUnknownVehicle  = errors.New("unknown vehicle")
	ErrInvalidPoint    = errors.New("invalid coordinates")
	ErrUnknownEvent    = errors.New("unknown event")
)

// PinnedLocationLabel names an origin set by clicking the map.
const PinnedLocationLabel = "Pinned location"

type Options struct {
	Taxonomy           *category.Taxonomy
	Sidebar            sidebar.State
	Layout             sidebar.Layout
	ClusteringDisabled bool
	HideVehicles       bool
	Sync               vehiclesync.Options
	Frame              time.Duration
	Hooks              Hooks
	Log                zerolog.Logger
	Metrics            *metrics.Metrics
	Now                func() time.Time
}

// Change describes what one dispatched event did.
type Change struct {
	ID                string    `json:"id"`
	Event             string    `json:"event"`
	At                time.Time `json:"at"`
	OriginChanged     bool      `json:"origin_changed,omitempty"`
	SidebarChanged    bool      `json:"sidebar_changed,omitempty"`
	LayersChanged     bool      `json:"layers_changed,omitempty"`
	VehiclesChanged   bool      `json:"vehicles_changed,omitempty"`
	PartnersChanged   bool      `json:"partners_changed,omitempty"`
	ConnectionChanged bool      `json:"connection_changed,omitempty"`
	LayoutChanged     bool      `json:"layout_changed,omitempty"`
	OverlaysChanged   bool      `json:"overlays_changed,omitempty"`
}

func (c Change) Any() bool {
	return c.OriginChanged || c.SidebarChanged || c.LayersChanged || c.VehiclesChanged ||
		c.PartnersChanged || c.ConnectionChanged || c.LayoutChanged || c.OverlaysChanged
}

type Engine struct {
	mu sync.Mutex

	log     zerolog.Logger
	metrics *metrics.Metrics
	now     func() time.Time
	hooks   Hooks

	tax      *category.Taxonomy
	registry *layers.Registry
	vehicles *vehiclesync.Synchronizer
	conn     *connection.Renderer
	side     *sidebar.Machine
	relayout *relayout

	layout          sidebar.Layout
	origin          *geo.Point
	selectedVehicle string
	partners        map[category.Key][]fleet.Partner
	pinned          map[category.Key]fleet.Partner
	filters         map[category.Key]matcher.Filter
	match           *matcher.Match
}

func New(opts Options) *Engine {
	tax := opts.Taxonomy
	if tax == nil {
		tax = category.NewTaxonomy(nil)
	}
	now := opts.Now
	if now == nil {
		now = time.Now
	}

	side := sidebar.New(tax.PartnerKeys(), opts.Sidebar)

	var visible []category.Key
	if !opts.HideVehicles {
		visible = append(visible, category.Vehicle)
	}
	if k, ok := side.Active(); ok {
		visible = append(visible, k)
	}
	reg := layers.New(tax, layers.Options{ClusteringDisabled: opts.ClusteringDisabled, Visible: visible}, opts.Log)
	syncOpts := opts.Sync
	syncOpts.Hidden = syncOpts.Hidden || opts.HideVehicles

	return &Engine{
		log:      opts.Log,
		metrics:  opts.Metrics,
		now:      now,
		hooks:    opts.Hooks,
		tax:      tax,
		registry: reg,
		vehicles: vehiclesync.New(reg, syncOpts, opts.Log, opts.Metrics),
		conn:     connection.NewRenderer(),
		side:     side,
		relayout: newRelayout(opts.Frame, opts.Hooks.Invalidator),
		layout:   opts.Layout.Normalize(),
		partners: make(map[category.Key][]fleet.Partner),
		pinned:   make(map[category.Key]fleet.Partner),
		filters:  make(map[category.Key]matcher.Filter),
	}
}

// AddListener registers l for every subsequent change.
func (e *Engine) AddListener(l Listener) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.hooks.Listeners = append(e.hooks.Listeners, l)
}

// effects are run after the engine lock is released.
type effects struct {
	popups     []fleet.Entity
	saveLayout *sidebar.Layout
	relayout   bool
}

// Dispatch applies ev atomically. Errors report inputs that referred to
// something the engine does not know; state is left untouched in that case.
func (e *Engine) Dispatch(ctx context.Context, ev Event) (Change, error) {
	if ev == nil {
		return Change{}, ErrUnknownEvent
	}

	e.mu.Lock()
	ch := Change{ID: uuid.NewString(), Event: ev.Name(), At: e.now()}
	var fx effects
	err := e.apply(ev, &ch, &fx)
	listeners := append([]Listener(nil), e.hooks.Listeners...)
	e.mu.Unlock()

	if err != nil {
		e.log.Debug().Err(err).Str("event", ev.Name()).Msg("event ignored")
		return ch, err
	}
	e.metrics.IncEngineEvent(ev.Name())

	if fx.relayout {
		e.relayout.schedule()
	}
	if e.hooks.Popup != nil {
		for _, ent := range fx.popups {
			e.hooks.Popup.RenderDetail(ent)
		}
	}
	if fx.saveLayout != nil && e.hooks.Preferences != nil {
		if err := e.hooks.Preferences.SaveLayout(ctx, *fx.saveLayout); err != nil {
			e.log.Warn().Err(err).Msg("save layout preferences")
		}
	}
	if ch.Any() {
		for _, l := range listeners {
			l.OnChange(ch)
		}
	}
	return ch, nil
}

func (e *Engine) apply(ev Event, ch *Change, fx *effects) error {
	switch ev := ev.(type) {
	case OriginSelected:
		if !geo.Valid(ev.Point) {
			return ErrInvalidPoint
		}
		e.selectedVehicle = ""
		e.setOrigin(&ev.Point, ch, fx)

	case MapClicked:
		if e.origin != nil || e.selectedVehicle != "" {
			e.selectedVehicle = ""
			e.setOrigin(nil, ch, fx)
			return nil
		}
		p := geo.Point{
			Lat:   geo.RoundCoord(ev.Point.Lat),
			Lng:   geo.RoundCoord(ev.Point.Lng),
			Label: PinnedLocationLabel,
		}
		if !geo.Valid(p) {
			return ErrInvalidPoint
		}
		e.setOrigin(&p, ch, fx)

	case OriginCleared:
		e.selectedVehicle = ""
		e.setOrigin(nil, ch, fx)

	case CategoryToggled:
		if !e.side.Configured(ev.Key) {
			return fmt.Errorf("%w: %s", ErrUnknownCategory, ev.Key)
		}
		t := e.side.Toggle(ev.Key, ev.Expand)
		if !t.Changed {
			return nil
		}
		ch.SidebarChanged = true
		e.syncLeftVisibility(ch)
		fx.relayout = true
		e.rematch(ch, fx)

	case RightPanelToggled:
		if e.side.SetRight(ev.Expanded) {
			ch.SidebarChanged = true
			fx.relayout = true
		}

	case VehicleSnapshot:
		res := e.vehicles.Sync(ev.Vehicles)
		ch.VehiclesChanged = res.Changed()
		e.dropMissingSelection()

	case VehicleDelta:
		res := e.vehicles.Apply(ev.Delta)
		ch.VehiclesChanged = res.Changed()
		e.dropMissingSelection()

	case PartnersLoaded:
		if !e.isPartnerKey(ev.Key) {
			return fmt.Errorf("%w: %s", ErrUnknownCategory, ev.Key)
		}
		list := make([]fleet.Partner, 0, len(ev.Partners))
		for _, p := range ev.Partners {
			p.Kind = ev.Key
			list = append(list, p)
		}
		e.partners[ev.Key] = list
		if pin, ok := e.pinned[ev.Key]; ok {
			if fresh, ok := findPartner(list, pin.ID); ok {
				e.pinned[ev.Key] = fresh
			} else {
				delete(e.pinned, ev.Key)
			}
		}
		e.placePartners(ev.Key)
		ch.PartnersChanged = true
		e.rematch(ch, fx)

	case PartnerPinned:
		if !e.isPartnerKey(ev.Key) {
			return fmt.Errorf("%w: %s", ErrUnknownCategory, ev.Key)
		}
		p, ok := findPartner(e.partners[ev.Key], ev.ID)
		if !ok {
			return fmt.Errorf("%w: %s", ErrUnknownPartner, ev.ID)
		}
		e.pinned[ev.Key] = p
		e.rematch(ch, fx)

	case PartnerUnpinned:
		if !e.isPartnerKey(ev.Key) {
			return fmt.Errorf("%w: %s", ErrUnknownCategory, ev.Key)
		}
		if _, ok := e.pinned[ev.Key]; !ok {
			return nil
		}
		delete(e.pinned, ev.Key)
		e.rematch(ch, fx)

	case FilterChanged:
		if !e.isPartnerKey(ev.Key) {
			return fmt.Errorf("%w: %s", ErrUnknownCategory, ev.Key)
		}
		if ev.Filter.IsZero() {
			delete(e.filters, ev.Key)
		} else {
			e.filters[ev.Key] = ev.Filter
		}
		e.placePartners(ev.Key)
		ch.PartnersChanged = true
		e.rematch(ch, fx)

	case PanelResized:
		next, changed := e.layout.WithWidth(ev.Side, ev.Width)
		if !changed {
			return nil
		}
		e.layout = next
		ch.LayoutChanged = true
		saved := next
		fx.saveLayout = &saved
		fx.relayout = true

	case ViewportResized:
		fx.relayout = true

	case VehicleLayerToggled:
		if e.vehicles.Visible() == ev.Visible {
			return nil
		}
		res := e.vehicles.SetVisible(ev.Visible)
		ch.LayersChanged = true
		ch.VehiclesChanged = res.Changed()
		e.dropMissingSelection()

	case HotspotsLoaded:
		e.registry.ReplaceHotspots(ev.Hotspots)
		ch.OverlaysChanged = true

	case RemovalSitesLoaded:
		e.registry.ReplaceRemovalSites(ev.Sites)
		ch.OverlaysChanged = true

	case VehicleFocused:
		// Focus is unavailable while vehicle markers are switched off.
		if !e.vehicles.Visible() {
			return nil
		}
		v, ok := e.vehicles.Vehicle(ev.ID)
		if !ok {
			return fmt.Errorf("%w: %s", ErrUnknownVehicle, ev.ID)
		}
		p, ok := v.Location()
		if !ok || !geo.Valid(p) {
			return fmt.Errorf("%w: vehicle %s", ErrInvalidPoint, ev.ID)
		}
		e.selectedVehicle = v.ID
		fx.popups = append(fx.popups, v)
		e.setOrigin(&p, ch, fx)

	default:
		return ErrUnknownEvent
	}
	return nil
}

// setOrigin replaces the origin and re-runs matching. A nil point clears it.
func (e *Engine) setOrigin(p *geo.Point, ch *Change, fx *effects) {
	switch {
	case p == nil && e.origin == nil:
	case p == nil:
		e.origin = nil
		ch.OriginChanged = true
	default:
		pt := *p
		e.origin = &pt
		ch.OriginChanged = true
	}
	e.rematch(ch, fx)
}

// syncLeftVisibility shows the active left category and hides its siblings.
func (e *Engine) syncLeftVisibility(ch *Change) {
	active, _ := e.side.Active()
	for _, k := range e.side.LeftKeys() {
		var changed bool
		if k == active {
			changed = e.registry.Show(k)
		} else {
			changed = e.registry.Hide(k)
		}
		if changed {
			ch.LayersChanged = true
		}
	}
}

// rematch resolves the partner for the active category and redraws the
// connection. Without an origin, an active category, or a match, the
// connection is cleared.
func (e *Engine) rematch(ch *Change, fx *effects) {
	prev := e.match
	e.match = nil

	key, active := e.side.Active()
	if e.origin == nil || !active {
		if e.conn.Clear() {
			ch.ConnectionChanged = true
		}
		return
	}

	var pinned *fleet.Partner
	if p, ok := e.pinned[key]; ok {
		pinned = &p
	}
	candidates := e.filters[key].Apply(e.partners[key])
	m, ok := matcher.Select(*e.origin, candidates, pinned)
	target, hasTarget := m.Partner.Location()
	if !ok || !hasTarget || !geo.Valid(target) {
		e.metrics.IncMatch(string(key), "none")
		if e.conn.Clear() {
			ch.ConnectionChanged = true
		}
		return
	}

	outcome := "nearest"
	if m.Pinned {
		outcome = "pinned"
	}
	e.metrics.IncMatch(string(key), outcome)

	e.conn.Draw(*e.origin, target, m.Partner.MarkerColor(e.tax.Color(key)))
	e.match = &m
	ch.ConnectionChanged = true

	if prev == nil || prev.Partner.ID != m.Partner.ID {
		fx.popups = append(fx.popups, m.Partner)
	}
}

// placePartners mirrors the filtered partner list of key into its layer.
func (e *Engine) placePartners(key category.Key) {
	accent := e.tax.Color(key)
	list := e.filters[key].Apply(e.partners[key])
	ms := make([]layers.Marker, 0, len(list))
	for _, p := range list {
		if m, ok := layers.PartnerMarker(p, accent); ok {
			ms = append(ms, m)
		}
	}
	e.registry.Replace(key, ms)
}

func (e *Engine) dropMissingSelection() {
	if e.selectedVehicle == "" {
		return
	}
	if _, ok := e.registry.Marker(category.Vehicle, e.selectedVehicle); !ok {
		e.selectedVehicle = ""
	}
}

func (e *Engine) isPartnerKey(k category.Key) bool {
	return e.side.Configured(k)
}

func findPartner(list []fleet.Partner, id string) (fleet.Partner, bool) {
	for _, p := range list {
		if p.ID == id {
			return p, true
		}
	}
	return fleet.Partner{}, false
}

// OnOriginSelected is shorthand for dispatching OriginSelected.
func (e *Engine) OnOriginSelected(p geo.Point) error {
	_, err := e.Dispatch(context.Background(), OriginSelected{Point: p})
	return err
}

// OnCategoryToggle is shorthand for dispatching CategoryToggled.
func (e *Engine) OnCategoryToggle(key category.Key, expand bool) error {
	_, err := e.Dispatch(context.Background(), CategoryToggled{Key: key, Expand: expand})
	return err
}

// OnVehicleDelta is shorthand for dispatching VehicleDelta.
func (e *Engine) OnVehicleDelta(d fleet.VehicleDelta) error {
	_, err := e.Dispatch(context.Background(), VehicleDelta{Delta: d})
	return err
}

func (e *Engine) ActiveCategory() (category.Key, bool) {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.side.Active()
}

func (e *Engine) CurrentOrigin() (geo.Point, bool) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.origin == nil {
		return geo.Point{}, false
	}
	return *e.origin, true
}

func (e *Engine) IsCategoryVisible(key category.Key) bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.registry.IsVisible(key)
}
