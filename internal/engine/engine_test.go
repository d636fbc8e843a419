package engine

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/rs/zerolog"

	"techloc/map-core/internal/category"
	"techloc/map-core/internal/fleet"
	"techloc/map-core/internal/geo"
	"techloc/map-core/internal/matcher"
	"techloc/map-core/internal/sidebar"
)

var nyc = geo.Point{Lat: 40.7128, Lng: -74.0060}

func north(miles float64) *geo.Point {
	return fleet.Ptr(geo.Point{Lat: nyc.Lat + miles/69.0, Lng: nyc.Lng})
}

type fakePrefs struct {
	mu    sync.Mutex
	saved []sidebar.Layout
	err   error
}

func (f *fakePrefs) SaveLayout(_ context.Context, l sidebar.Layout) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.saved = append(f.saved, l)
	return f.err
}

func newEngine(t *testing.T, hooks Hooks) *Engine {
	t.Helper()
	return New(Options{
		Taxonomy: category.NewTaxonomy([]category.CustomSpec{{Key: "ev", Color: "#a855f7"}}),
		Hooks:    hooks,
		Log:      zerolog.Nop(),
		Frame:    5 * time.Millisecond,
	})
}

func dispatch(t *testing.T, e *Engine, ev Event) Change {
	t.Helper()
	ch, err := e.Dispatch(context.Background(), ev)
	if err != nil {
		t.Fatalf("dispatch %s: %v", ev.Name(), err)
	}
	return ch
}

func resellers() []fleet.Partner {
	return []fleet.Partner{
		{ID: "A", Position: north(3.2), Authorized: false},
		{ID: "B", Position: north(1.1), Authorized: true},
		{ID: "C", Position: north(1.1), Authorized: true},
	}
}

func TestEngine_MatchesNearestWithTieBreak(t *testing.T) {
	e := newEngine(t, Hooks{})
	dispatch(t, e, PartnersLoaded{Key: category.Reseller, Partners: resellers()})
	dispatch(t, e, CategoryToggled{Key: category.Reseller, Expand: true})
	dispatch(t, e, OriginSelected{Point: nyc})

	s := e.Snapshot()
	if s.Match == nil || s.Match.Partner.ID != "B" {
		t.Fatalf("expected B to be matched, got %+v", s.Match)
	}
	if s.Connection == nil || s.Connection.Color != category.ColorReseller {
		t.Fatalf("expected reseller-colored connection, got %+v", s.Connection)
	}
	if s.Connection.Label != "1.1 mi" {
		t.Fatalf("expected 1.1 mi label, got %q", s.Connection.Label)
	}
}

func TestEngine_ExpandCollapsesSiblingAndRematches(t *testing.T) {
	e := newEngine(t, Hooks{})
	dispatch(t, e, PartnersLoaded{Key: category.Technician, Partners: []fleet.Partner{{ID: "T1", Position: north(2), Authorized: true}}})
	dispatch(t, e, PartnersLoaded{Key: category.Reseller, Partners: resellers()})
	dispatch(t, e, RightPanelToggled{Expanded: true})
	dispatch(t, e, OriginSelected{Point: nyc})
	dispatch(t, e, CategoryToggled{Key: category.Technician, Expand: true})

	if m := e.Snapshot().Match; m == nil || m.Partner.ID != "T1" {
		t.Fatalf("expected technician match, got %+v", m)
	}

	ch := dispatch(t, e, CategoryToggled{Key: category.Reseller, Expand: true})
	if !ch.SidebarChanged || !ch.LayersChanged || !ch.ConnectionChanged {
		t.Fatalf("unexpected change %+v", ch)
	}
	if active, _ := e.ActiveCategory(); active != category.Reseller {
		t.Fatalf("expected reseller active, got %q", active)
	}
	if e.IsCategoryVisible(category.Technician) || !e.IsCategoryVisible(category.Reseller) {
		t.Fatalf("expected only reseller layer visible")
	}
	if !e.IsCategoryVisible(category.Vehicle) {
		t.Fatalf("expected vehicle layer unaffected")
	}
	s := e.Snapshot()
	if !s.Sidebar.RightExpanded {
		t.Fatalf("expected right panel unaffected")
	}
	if s.Match == nil || s.Match.Partner.ID != "B" {
		t.Fatalf("expected rematch for reseller, got %+v", s.Match)
	}
}

func TestEngine_CollapseClearsConnection(t *testing.T) {
	e := newEngine(t, Hooks{})
	dispatch(t, e, PartnersLoaded{Key: category.Reseller, Partners: resellers()})
	dispatch(t, e, OriginSelected{Point: nyc})
	dispatch(t, e, CategoryToggled{Key: category.Reseller, Expand: true})
	dispatch(t, e, CategoryToggled{Key: category.Reseller, Expand: false})

	if _, ok := e.Connection(); ok {
		t.Fatalf("expected connection cleared after collapse")
	}
	if e.IsCategoryVisible(category.Reseller) {
		t.Fatalf("expected reseller layer hidden after collapse")
	}
}

func TestEngine_UnknownCategoryIsIgnored(t *testing.T) {
	e := newEngine(t, Hooks{})
	_, err := e.Dispatch(context.Background(), CategoryToggled{Key: "custom-unknown", Expand: true})
	if !errors.Is(err, ErrUnknownCategory) {
		t.Fatalf("expected ErrUnknownCategory, got %v", err)
	}
	if _, ok := e.ActiveCategory(); ok {
		t.Fatalf("expected no active category")
	}
	if err := e.OnCategoryToggle("custom-ev", true); err != nil {
		t.Fatalf("expected configured custom category to toggle: %v", err)
	}
}

func TestEngine_NoMatchClearsConnection(t *testing.T) {
	e := newEngine(t, Hooks{})
	dispatch(t, e, PartnersLoaded{Key: category.Repair, Partners: []fleet.Partner{{ID: "R1", Position: north(1), Authorized: true}}})
	dispatch(t, e, CategoryToggled{Key: category.Repair, Expand: true})
	dispatch(t, e, OriginSelected{Point: nyc})
	if _, ok := e.Connection(); !ok {
		t.Fatalf("expected a connection")
	}

	dispatch(t, e, PartnersLoaded{Key: category.Repair, Partners: []fleet.Partner{{ID: "R2"}}})
	if _, ok := e.Connection(); ok {
		t.Fatalf("expected connection cleared when nothing matches")
	}
	if e.Snapshot().Match != nil {
		t.Fatalf("expected no match")
	}
}

func TestEngine_PinnedPartnerWins(t *testing.T) {
	e := newEngine(t, Hooks{})
	dispatch(t, e, PartnersLoaded{Key: category.Reseller, Partners: resellers()})
	dispatch(t, e, CategoryToggled{Key: category.Reseller, Expand: true})
	dispatch(t, e, OriginSelected{Point: nyc})
	dispatch(t, e, PartnerPinned{Key: category.Reseller, ID: "A"})

	s := e.Snapshot()
	if s.Match == nil || s.Match.Partner.ID != "A" || !s.Match.Pinned {
		t.Fatalf("expected pinned A, got %+v", s.Match)
	}
	if s.Connection.Color != geo.ColorRed {
		t.Fatalf("expected unauthorized partner connection to be red, got %s", s.Connection.Color)
	}

	if _, err := e.Dispatch(context.Background(), PartnerPinned{Key: category.Reseller, ID: "nope"}); !errors.Is(err, ErrUnknownPartner) {
		t.Fatalf("expected ErrUnknownPartner, got %v", err)
	}

	dispatch(t, e, PartnerUnpinned{Key: category.Reseller})
	if m := e.Snapshot().Match; m == nil || m.Partner.ID != "B" {
		t.Fatalf("expected nearest after unpin, got %+v", m)
	}
}

func TestEngine_FilterNarrowsCandidates(t *testing.T) {
	e := newEngine(t, Hooks{})
	list := resellers()
	list[0].Contact.Company = "Far Corp"
	dispatch(t, e, PartnersLoaded{Key: category.Reseller, Partners: list})
	dispatch(t, e, CategoryToggled{Key: category.Reseller, Expand: true})
	dispatch(t, e, OriginSelected{Point: nyc})
	dispatch(t, e, FilterChanged{Key: category.Reseller, Filter: matcher.Filter{Query: "far"}})

	if m := e.Snapshot().Match; m == nil || m.Partner.ID != "A" {
		t.Fatalf("expected filter to leave only A, got %+v", m)
	}
	if n := len(e.Markers(category.Reseller)); n != 1 {
		t.Fatalf("expected filtered layer to hold 1 marker, got %d", n)
	}
}

func TestEngine_MapClickTogglesSelection(t *testing.T) {
	e := newEngine(t, Hooks{})

	dispatch(t, e, MapClicked{Point: geo.Point{Lat: 40.71281234, Lng: -74.00601234}})
	o, ok := e.CurrentOrigin()
	if !ok {
		t.Fatalf("expected click to set an origin")
	}
	if o.Lat != 40.712812 || o.Lng != -74.006012 || o.Label != PinnedLocationLabel {
		t.Fatalf("unexpected origin %+v", o)
	}

	ch := dispatch(t, e, MapClicked{Point: nyc})
	if !ch.OriginChanged {
		t.Fatalf("expected second click to clear the selection")
	}
	if _, ok := e.CurrentOrigin(); ok {
		t.Fatalf("expected no origin after second click")
	}
}

func TestEngine_InvalidOriginRejected(t *testing.T) {
	e := newEngine(t, Hooks{})
	if err := e.OnOriginSelected(geo.Point{Lat: 91, Lng: 0}); !errors.Is(err, ErrInvalidPoint) {
		t.Fatalf("expected ErrInvalidPoint, got %v", err)
	}
	if _, ok := e.CurrentOrigin(); ok {
		t.Fatalf("expected origin unchanged")
	}
}

func TestEngine_VehicleFlow(t *testing.T) {
	var rendered []string
	e := newEngine(t, Hooks{Popup: PopupRendererFunc(func(ent fleet.Entity) {
		rendered = append(rendered, ent.EntityID())
	})})

	dispatch(t, e, VehicleSnapshot{Vehicles: []fleet.Vehicle{
		{ID: "v1", Position: fleet.Ptr(nyc), Status: fleet.StatusMoving},
		{ID: "v2", Status: fleet.StatusMoving},
	}})
	if n := len(e.Markers(category.Vehicle)); n != 1 {
		t.Fatalf("expected one vehicle marker, got %d", n)
	}

	lat := 41.0
	if err := e.OnVehicleDelta(fleet.VehicleDelta{Op: fleet.OpUpdated, ID: "v1", Patch: fleet.VehiclePatch{Lat: &lat}}); err != nil {
		t.Fatalf("delta: %v", err)
	}
	if ms := e.Markers(category.Vehicle); ms[0].Position.Lat != 41 {
		t.Fatalf("expected delta applied, got %+v", ms[0].Position)
	}

	dispatch(t, e, VehicleFocused{ID: "v1"})
	if o, _ := e.CurrentOrigin(); o.Lat != 41 {
		t.Fatalf("expected origin at focused vehicle, got %+v", o)
	}
	if len(rendered) != 1 || rendered[0] != "v1" {
		t.Fatalf("expected popup for focused vehicle, got %v", rendered)
	}
	if _, err := e.Dispatch(context.Background(), VehicleFocused{ID: "v2"}); !errors.Is(err, ErrInvalidPoint) {
		t.Fatalf("expected vehicle without position to be unfocusable, got %v", err)
	}

	dispatch(t, e, VehicleDelta{Delta: fleet.VehicleDelta{Op: fleet.OpDeleted, ID: "v1"}})
	if e.Snapshot().SelectedVehicle != "" {
		t.Fatalf("expected deleted vehicle to drop the selection")
	}
}

func TestEngine_VehicleLayerToggle(t *testing.T) {
	e := newEngine(t, Hooks{})
	dispatch(t, e, VehicleSnapshot{Vehicles: []fleet.Vehicle{{ID: "v1", Position: fleet.Ptr(nyc), Status: fleet.StatusMoving}}})
	dispatch(t, e, VehicleFocused{ID: "v1"})

	ch := dispatch(t, e, VehicleLayerToggled{Visible: false})
	if !ch.LayersChanged || !ch.VehiclesChanged {
		t.Fatalf("expected layer and vehicle change, got %+v", ch)
	}
	snap := e.Snapshot()
	if snap.VehiclesVisible || snap.SelectedVehicle != "" || len(e.Markers(category.Vehicle)) != 0 || e.IsCategoryVisible(category.Vehicle) {
		t.Fatalf("expected hidden vehicle layer with no markers or selection, got %+v", snap)
	}
	if ch := dispatch(t, e, VehicleLayerToggled{Visible: false}); ch.Any() {
		t.Fatalf("expected repeated hide to change nothing, got %+v", ch)
	}

	dispatch(t, e, VehicleDelta{Delta: fleet.VehicleDelta{Op: fleet.OpCreated, ID: "v2", Patch: fleet.VehiclePatch{Lat: &nyc.Lat, Lng: &nyc.Lng}}})
	if ch := dispatch(t, e, VehicleFocused{ID: "v2"}); ch.Any() || e.Snapshot().SelectedVehicle != "" {
		t.Fatalf("expected focus to be a no-op while hidden, got %+v", ch)
	}

	dispatch(t, e, VehicleLayerToggled{Visible: true})
	if n := len(e.Markers(category.Vehicle)); n != 2 || !e.VehiclesVisible() {
		t.Fatalf("expected both vehicles placed after showing, got %d", n)
	}
}

func TestEngine_HideVehiclesAtStart(t *testing.T) {
	e := New(Options{Log: zerolog.Nop(), HideVehicles: true})
	dispatch(t, e, VehicleSnapshot{Vehicles: []fleet.Vehicle{{ID: "v1", Position: fleet.Ptr(nyc)}}})
	if len(e.Markers(category.Vehicle)) != 0 || len(e.Vehicles()) != 1 {
		t.Fatalf("expected record kept without marker")
	}
}

func TestEngine_OverlaysLoaded(t *testing.T) {
	e := newEngine(t, Hooks{})

	ch := dispatch(t, e, HotspotsLoaded{Hotspots: []fleet.Hotspot{
		{ID: "h1", Position: fleet.Ptr(nyc), RadiusMiles: 10},
		{ID: "h2", RadiusMiles: 10},
	}})
	if !ch.OverlaysChanged || len(e.Hotspots()) != 1 {
		t.Fatalf("expected one drawable hotspot, got %+v %+v", ch, e.Hotspots())
	}

	dispatch(t, e, RemovalSitesLoaded{Sites: []fleet.RemovalSite{
		{ID: "s1", Position: north(2), Company: "Acme Tow"},
		{ID: "s2", Position: fleet.Ptr(geo.Point{Lat: -100, Lng: 0})},
	}})
	snap := e.Snapshot()
	if len(snap.RemovalSites) != 1 || snap.RemovalSites[0].Company != "Acme Tow" || len(snap.Hotspots) != 1 {
		t.Fatalf("unexpected overlays in snapshot %+v %+v", snap.Hotspots, snap.RemovalSites)
	}

	dispatch(t, e, HotspotsLoaded{})
	if len(e.Hotspots()) != 0 {
		t.Fatalf("expected reload to replace hotspots")
	}
}

func TestEngine_PanelResizeSavesClampedLayout(t *testing.T) {
	prefs := &fakePrefs{err: errors.New("store down")}
	e := newEngine(t, Hooks{Preferences: prefs})

	ch := dispatch(t, e, PanelResized{Side: sidebar.SideLeft, Width: 9000})
	if !ch.LayoutChanged {
		t.Fatalf("expected layout change")
	}
	if e.Layout().Left != sidebar.MaxWidth {
		t.Fatalf("expected clamped width, got %d", e.Layout().Left)
	}
	if len(prefs.saved) != 1 || prefs.saved[0].Left != sidebar.MaxWidth {
		t.Fatalf("expected layout to be saved once, got %+v", prefs.saved)
	}

	dispatch(t, e, PanelResized{Side: sidebar.SideLeft, Width: 10000})
	if len(prefs.saved) != 1 {
		t.Fatalf("expected unchanged layout not to be saved again")
	}
}

func TestEngine_RelayoutIsCoalesced(t *testing.T) {
	var calls int32
	done := make(chan struct{}, 8)
	e := newEngine(t, Hooks{Invalidator: InvalidatorFunc(func() {
		atomic.AddInt32(&calls, 1)
		done <- struct{}{}
	})})

	for i := 0; i < 10; i++ {
		dispatch(t, e, ViewportResized{})
	}

	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatalf("expected one relayout")
	}
	time.Sleep(30 * time.Millisecond)
	if got := atomic.LoadInt32(&calls); got != 1 {
		t.Fatalf("expected burst to collapse into one relayout, got %d", got)
	}
}

func TestEngine_ListenerSeesChanges(t *testing.T) {
	var changes []Change
	e := newEngine(t, Hooks{Listeners: []Listener{ListenerFunc(func(c Change) {
		changes = append(changes, c)
	})}})

	dispatch(t, e, OriginSelected{Point: nyc})
	dispatch(t, e, RightPanelToggled{Expanded: false})

	if len(changes) != 1 || changes[0].Event != "origin_selected" || changes[0].ID == "" {
		t.Fatalf("expected one origin change notification, got %+v", changes)
	}
}

func TestEngine_ConcurrentDispatch(t *testing.T) {
	e := newEngine(t, Hooks{})
	var wg sync.WaitGroup
	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			lat, lng := 40.0+float64(i)/100, -74.0
			_ = e.OnVehicleDelta(fleet.VehicleDelta{Op: fleet.OpCreated, ID: string(rune('a' + i)), Patch: fleet.VehiclePatch{Lat: &lat, Lng: &lng}})
			_ = e.Snapshot()
		}(i)
	}
	wg.Wait()
	if n := len(e.Vehicles()); n != 20 {
		t.Fatalf("expected 20 vehicles, got %d", n)
	}
}
