package matcher

import (
	"math"
	"testing"

	"techloc/map-core/internal/category"
	"techloc/map-core/internal/fleet"
	"techloc/map-core/internal/geo"
)

var nyc = geo.Point{Lat: 40.7128, Lng: -74.0060}

// offsetNorth places a point roughly miles north of origin.
func offsetNorth(origin geo.Point, miles float64) *geo.Point {
	return fleet.Ptr(geo.Point{Lat: origin.Lat + miles/69.0, Lng: origin.Lng})
}

func partner(id string, pos *geo.Point, authorized bool) fleet.Partner {
	return fleet.Partner{ID: id, Kind: category.Reseller, Position: pos, Authorized: authorized}
}

func TestFindNearest_TieGoesToFirstInInputOrder(t *testing.T) {
	b := partner("B", offsetNorth(nyc, 1.1), true)
	c := partner("C", offsetNorth(nyc, 1.1), true)
	candidates := []fleet.Partner{
		partner("A", offsetNorth(nyc, 3.2), false),
		b,
		c,
	}

	got, _, ok := FindNearest(nyc, candidates)
	if !ok {
		t.Fatalf("expected a match")
	}
	if got.ID != "B" {
		t.Fatalf("expected B to win the tie by input order, got %s", got.ID)
	}

	got, _, _ = FindNearest(nyc, []fleet.Partner{c, b})
	if got.ID != "C" {
		t.Fatalf("expected C to win when listed first, got %s", got.ID)
	}
}

func TestFindNearest_MatchesBruteForceMinimum(t *testing.T) {
	candidates := []fleet.Partner{
		partner("far", offsetNorth(nyc, 40), true),
		partner("mid", offsetNorth(nyc, 5), true),
		partner("near", fleet.Ptr(geo.Point{Lat: 40.72, Lng: -74.01}), true),
		partner("west", fleet.Ptr(geo.Point{Lat: 40.7128, Lng: -75.0}), true),
	}

	got, dist, ok := FindNearest(nyc, candidates)
	if !ok {
		t.Fatalf("expected a match")
	}

	best := math.Inf(1)
	bestID := ""
	for _, c := range candidates {
		d := geo.Distance(nyc, *c.Position)
		if d < best {
			best, bestID = d, c.ID
		}
	}
	if got.ID != bestID || dist != best {
		t.Fatalf("expected %s at %v, got %s at %v", bestID, best, got.ID, dist)
	}
}

func TestFindNearest_ExcludesInvalidCoordinates(t *testing.T) {
	candidates := []fleet.Partner{
		partner("nil", nil, true),
		partner("nan", fleet.Ptr(geo.Point{Lat: math.NaN(), Lng: -74}), true),
		partner("out-of-range", fleet.Ptr(geo.Point{Lat: 40.7128, Lng: -200}), true),
		partner("valid", offsetNorth(nyc, 50), true),
	}
	got, _, ok := FindNearest(nyc, candidates)
	if !ok || got.ID != "valid" {
		t.Fatalf("expected only the valid candidate to be eligible, got %q ok=%v", got.ID, ok)
	}
}

func TestFindNearest_NoValidCandidate(t *testing.T) {
	if _, _, ok := FindNearest(nyc, nil); ok {
		t.Fatalf("expected no match for empty input")
	}
	if _, _, ok := FindNearest(nyc, []fleet.Partner{partner("nil", nil, true)}); ok {
		t.Fatalf("expected no match when every candidate is invalid")
	}
}

func TestSelect_PinnedOverridesNearest(t *testing.T) {
	pinned := partner("pinned", offsetNorth(nyc, 30), true)
	candidates := []fleet.Partner{partner("near", offsetNorth(nyc, 1), true)}

	m, ok := Select(nyc, candidates, &pinned)
	if !ok || !m.Pinned || m.Partner.ID != "pinned" {
		t.Fatalf("expected pinned partner, got %+v ok=%v", m, ok)
	}
	if m.DistanceMiles < 29 || m.DistanceMiles > 31 {
		t.Fatalf("expected pinned distance near 30 miles, got %v", m.DistanceMiles)
	}

	m, ok = Select(nyc, nil, &pinned)
	if !ok || m.Partner.ID != "pinned" {
		t.Fatalf("expected pinned partner even with no candidates")
	}

	m, ok = Select(nyc, candidates, nil)
	if !ok || m.Pinned || m.Partner.ID != "near" {
		t.Fatalf("expected nearest partner without pin, got %+v", m)
	}
}

func TestFilter_Apply(t *testing.T) {
	in := []fleet.Partner{
		{ID: "1", Authorized: true, Contact: fleet.Contact{Company: "Acme Towing", City: "Newark"}},
		{ID: "2", Authorized: false, Contact: fleet.Contact{Company: "Acme Repair"}},
		{ID: "3", Authorized: true, Contact: fleet.Contact{Company: "Bolt", Zip: "10001"}},
	}

	if got := (Filter{}).Apply(in); len(got) != 3 {
		t.Fatalf("expected zero filter to keep everything")
	}

	got := Filter{Query: "acme"}.Apply(in)
	if len(got) != 2 || got[0].ID != "1" || got[1].ID != "2" {
		t.Fatalf("expected query to keep order, got %+v", got)
	}

	got = Filter{Query: "ACME", AuthorizedOnly: true}.Apply(in)
	if len(got) != 1 || got[0].ID != "1" {
		t.Fatalf("expected authorized acme only, got %+v", got)
	}

	got = Filter{Query: "10001"}.Apply(in)
	if len(got) != 1 || got[0].ID != "3" {
		t.Fatalf("expected zip match, got %+v", got)
	}
}
