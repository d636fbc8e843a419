package connection

import (
	"encoding/json"
	"strings"
	"testing"

	"techloc/map-core/internal/geo"
)

var (
	nyc = geo.Point{Lat: 40.7128, Lng: -74.0060}
	phl = geo.Point{Lat: 39.9526, Lng: -75.1652}
)

func TestRenderer_DrawReplacesPrevious(t *testing.T) {
	r := NewRenderer()
	r.Draw(nyc, phl, "#34d399")
	second := r.Draw(phl, nyc, "#fb923c")

	got, ok := r.Current()
	if !ok {
		t.Fatalf("expected a connection")
	}
	if got != second || got.Color != "#fb923c" {
		t.Fatalf("expected latest connection to be current, got %+v", got)
	}
}

func TestRenderer_ClearIsIdempotent(t *testing.T) {
	r := NewRenderer()
	if r.Clear() {
		t.Fatalf("expected clearing nothing to report no change")
	}
	r.Draw(nyc, phl, "#34d399")
	if !r.Clear() {
		t.Fatalf("expected clear to remove the connection")
	}
	if r.Clear() {
		t.Fatalf("expected second clear to be a no-op")
	}
	if _, ok := r.Current(); ok {
		t.Fatalf("expected no connection after clear")
	}
}

func TestDraw_StyleAndLabel(t *testing.T) {
	c := NewRenderer().Draw(nyc, phl, "#34d399")

	if c.DashArray != "6 4" || c.Weight != 3 || c.Opacity != 0.85 {
		t.Fatalf("unexpected style %+v", c)
	}
	if !strings.HasSuffix(c.Label, " mi") {
		t.Fatalf("expected miles label, got %q", c.Label)
	}
	if c.Label != geo.FormatMiles(geo.Distance(nyc, phl)) {
		t.Fatalf("expected label to match distance, got %q", c.Label)
	}
	mid := geo.Midpoint(nyc, phl)
	if !c.Midpoint.Equal(mid) {
		t.Fatalf("expected label at midpoint, got %+v", c.Midpoint)
	}
}

func TestDraw_SamePointIsZeroMiles(t *testing.T) {
	c := NewRenderer().Draw(nyc, nyc, "#34d399")
	if c.Label != "0.0 mi" {
		t.Fatalf("expected 0.0 mi, got %q", c.Label)
	}
}

func TestConnection_FeatureCollection(t *testing.T) {
	c := NewRenderer().Draw(nyc, phl, "#34d399")
	fc := c.FeatureCollection()
	if len(fc.Features) != 2 {
		t.Fatalf("expected line and label features, got %d", len(fc.Features))
	}

	raw, err := json.Marshal(fc)
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	body := string(raw)
	if !strings.Contains(body, `"LineString"`) || !strings.Contains(body, `"distance_label"`) {
		t.Fatalf("unexpected geojson %s", body)
	}
}
