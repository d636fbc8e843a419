package directory

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/rs/zerolog"

	"techloc/map-core/internal/category"
	"techloc/map-core/internal/engine"
	"techloc/map-core/internal/fleet"
	"techloc/map-core/internal/geo"
	"techloc/map-core/internal/sqlcgen"
)

type fakeQueries struct {
	listCategoriesFn func(ctx context.Context) ([]string, error)
	listPartnersFn   func(ctx context.Context, category string) ([]sqlcgen.Partner, error)
	listVehiclesFn   func(ctx context.Context) ([]sqlcgen.Vehicle, error)
	listHotspotsFn   func(ctx context.Context) ([]sqlcgen.Hotspot, error)
	listSitesFn      func(ctx context.Context) ([]sqlcgen.RemovalSite, error)
}

func (f *fakeQueries) ListPartnerCategories(ctx context.Context) ([]string, error) {
	if f.listCategoriesFn == nil {
		return nil, nil
	}
	return f.listCategoriesFn(ctx)
}

func (f *fakeQueries) ListPartnersByCategory(ctx context.Context, category string) ([]sqlcgen.Partner, error) {
	if f.listPartnersFn == nil {
		return nil, nil
	}
	return f.listPartnersFn(ctx, category)
}

func (f *fakeQueries) ListVehicles(ctx context.Context) ([]sqlcgen.Vehicle, error) {
	if f.listVehiclesFn == nil {
		return nil, nil
	}
	return f.listVehiclesFn(ctx)
}

func (f *fakeQueries) ListHotspots(ctx context.Context) ([]sqlcgen.Hotspot, error) {
	if f.listHotspotsFn == nil {
		return nil, nil
	}
	return f.listHotspotsFn(ctx)
}

func (f *fakeQueries) ListRemovalSites(ctx context.Context) ([]sqlcgen.RemovalSite, error) {
	if f.listSitesFn == nil {
		return nil, nil
	}
	return f.listSitesFn(ctx)
}

func strPtr(s string) *string   { return &s }
func f64Ptr(f float64) *float64 { return &f }

func TestRefreshPartners_LoadsEveryCategory(t *testing.T) {
	e := engine.New(engine.Options{Log: zerolog.Nop()})
	q := &fakeQueries{listPartnersFn: func(_ context.Context, c string) ([]sqlcgen.Partner, error) {
		switch c {
		case string(category.Reseller):
			return []sqlcgen.Partner{
				{ID: "r1", Category: c, Company: strPtr(" Acme "), Lat: f64Ptr(40.7), Lng: f64Ptr(-74), Authorized: true},
				{ID: "r2", Category: c, Lat: f64Ptr(40.8)},
			}, nil
		case string(category.Repair):
			return nil, errors.New("table locked")
		default:
			return nil, nil
		}
	}}

	r := New(zerolog.Nop(), q, e, Options{Keys: []category.Key{category.Reseller, category.Repair, category.Technician}}, nil)
	err := r.RefreshPartners(context.Background())
	if err == nil {
		t.Fatalf("expected the repair failure to be reported")
	}

	ps := e.Partners(category.Reseller)
	if len(ps) != 2 {
		t.Fatalf("expected 2 resellers loaded despite repair failure, got %d", len(ps))
	}
	if ps[0].Contact.Company != "Acme" || ps[0].Position == nil {
		t.Fatalf("unexpected first partner %+v", ps[0])
	}
	if ps[1].Position != nil {
		t.Fatalf("expected partner with one coordinate to have no position")
	}
	if n := len(e.Markers(category.Reseller)); n != 1 {
		t.Fatalf("expected only the positioned partner to get a marker, got %d", n)
	}
}

func TestLoadVehicles(t *testing.T) {
	e := engine.New(engine.Options{Log: zerolog.Nop()})
	ts := time.Date(2024, 1, 2, 3, 4, 5, 0, time.UTC)
	q := &fakeQueries{listVehiclesFn: func(context.Context) ([]sqlcgen.Vehicle, error) {
		return []sqlcgen.Vehicle{
			{ID: "v1", Label: strPtr("Truck 1"), Lat: f64Ptr(40), Lng: f64Ptr(-74), Status: "moving", UpdatedAt: ts},
			{ID: "v2", Status: "offline"},
		}, nil
	}}

	r := New(zerolog.Nop(), q, e, Options{}, nil)
	if err := r.LoadVehicles(context.Background()); err != nil {
		t.Fatalf("load vehicles: %v", err)
	}
	vs := e.Vehicles()
	if len(vs) != 2 {
		t.Fatalf("expected 2 vehicle records, got %d", len(vs))
	}
	if vs[1].Status != fleet.StatusDisabled {
		t.Fatalf("expected offline to map to disabled, got %s", vs[1].Status)
	}
	ms := e.Markers(category.Vehicle)
	if len(ms) != 1 || ms[0].Label != "Truck 1" || ms[0].Color != geo.ColorGreen {
		t.Fatalf("unexpected markers %+v", ms)
	}
}

func TestLoadVehicles_QueryError(t *testing.T) {
	q := &fakeQueries{listVehiclesFn: func(context.Context) ([]sqlcgen.Vehicle, error) {
		return nil, errors.New("boom")
	}}
	r := New(zerolog.Nop(), q, engine.New(engine.Options{Log: zerolog.Nop()}), Options{}, nil)
	if err := r.LoadVehicles(context.Background()); err == nil {
		t.Fatalf("expected error")
	}
}

func TestRefreshOverlays_DispatchesBothLayers(t *testing.T) {
	e := engine.New(engine.Options{Log: zerolog.Nop()})
	q := &fakeQueries{
		listHotspotsFn: func(context.Context) ([]sqlcgen.Hotspot, error) {
			return []sqlcgen.Hotspot{
				{ID: "h1", Lat: f64Ptr(40.7), Lng: f64Ptr(-74), RadiusMiles: 5, City: strPtr("New York"), State: strPtr("NY")},
				{ID: "h2", Lat: f64Ptr(40.7), RadiusMiles: 5},
			}, nil
		},
		listSitesFn: func(context.Context) ([]sqlcgen.RemovalSite, error) {
			return []sqlcgen.RemovalSite{
				{ID: "s1", Lat: f64Ptr(34), Lng: f64Ptr(-118), Company: strPtr("Acme"), Note: strPtr("gps removed")},
			}, nil
		},
	}

	r := New(zerolog.Nop(), q, e, Options{}, nil)
	if err := r.RefreshOverlays(context.Background()); err != nil {
		t.Fatalf("refresh overlays: %v", err)
	}
	hs := e.Hotspots()
	if len(hs) != 1 || hs[0].ID != "h1" || hs[0].Location != "New York, NY" {
		t.Fatalf("expected only the centered hotspot drawn, got %+v", hs)
	}
	sites := e.RemovalSites()
	if len(sites) != 1 || sites[0].Company != "Acme" || sites[0].Note != "gps removed" {
		t.Fatalf("unexpected removal sites %+v", sites)
	}
}

func TestRefresh_OverlaysRunWhenPartnersFail(t *testing.T) {
	e := engine.New(engine.Options{Log: zerolog.Nop()})
	q := &fakeQueries{
		listPartnersFn: func(context.Context, string) ([]sqlcgen.Partner, error) {
			return nil, errors.New("table locked")
		},
		listHotspotsFn: func(context.Context) ([]sqlcgen.Hotspot, error) {
			return []sqlcgen.Hotspot{{ID: "h1", Lat: f64Ptr(1), Lng: f64Ptr(1), RadiusMiles: 1}}, nil
		},
	}

	r := New(zerolog.Nop(), q, e, Options{Keys: []category.Key{category.Reseller}}, nil)
	if err := r.Refresh(context.Background()); err == nil {
		t.Fatalf("expected the partner failure to be reported")
	}
	if len(e.Hotspots()) != 1 {
		t.Fatalf("expected overlays refreshed despite partner failure")
	}
}

func TestRefreshOverlays_QueryError(t *testing.T) {
	q := &fakeQueries{listSitesFn: func(context.Context) ([]sqlcgen.RemovalSite, error) {
		return nil, errors.New("boom")
	}}
	r := New(zerolog.Nop(), q, engine.New(engine.Options{Log: zerolog.Nop()}), Options{}, nil)
	if err := r.RefreshOverlays(context.Background()); err == nil {
		t.Fatalf("expected error")
	}
}
