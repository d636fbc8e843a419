package httpapi

import (
	"net/http"
	"strconv"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/paulmach/orb/geojson"

	"techloc/map-core/internal/category"
	"techloc/map-core/internal/cluster"
	"techloc/map-core/internal/connection"
	"techloc/map-core/internal/engine"
	"techloc/map-core/internal/geo"
	"techloc/map-core/internal/layers"
	"techloc/map-core/internal/matcher"
	"techloc/map-core/internal/sidebar"
)

const (
	minZoom     = 0
	maxZoom     = 22
	defaultZoom = 12
)

type pointRequest struct {
	Lat   *float64 `json:"lat"`
	Lng   *float64 `json:"lng"`
	Label string   `json:"label,omitempty"`
}

func (p pointRequest) point() (geo.Point, bool) {
	if p.Lat == nil || p.Lng == nil {
		return geo.Point{}, false
	}
	return geo.Point{Lat: *p.Lat, Lng: *p.Lng, Label: strings.TrimSpace(p.Label)}, true
}

type toggleCategoryRequest struct {
	Expand bool `json:"expand"`
}

type rightPanelRequest struct {
	Expanded bool `json:"expanded"`
}

type panelWidthRequest struct {
	Width int `json:"width"`
}

type pinRequest struct {
	ID string `json:"id"`
}

type filterRequest struct {
	Query          string `json:"query"`
	AuthorizedOnly bool   `json:"authorized_only"`
}

// changeResponse is returned by every mutating map endpoint.
type changeResponse struct {
	Change engine.Change   `json:"change"`
	State  engine.Snapshot `json:"state"`
}

type connectionResponse struct {
	Connection *connection.Connection     `json:"connection"`
	GeoJSON    *geojson.FeatureCollection `json:"geojson,omitempty"`
}

type clustersResponse struct {
	Category category.Key      `json:"category"`
	Zoom     int               `json:"zoom"`
	Clusters []cluster.Cluster `json:"clusters"`
}

type markersResponse struct {
	Category category.Key    `json:"category"`
	Visible  bool            `json:"visible"`
	Markers  []layers.Marker `json:"markers"`
}

func (h *Handler) dispatch(w http.ResponseWriter, r *http.Request, ev engine.Event) {
	ch, err := h.engine.Dispatch(r.Context(), ev)
	if err != nil {
		h.writeEngineError(w, err)
		return
	}
	h.writeJSON(w, http.StatusOK, changeResponse{Change: ch, State: h.engine.Snapshot()})
}

// categoryParam resolves {key}, accepting aliases such as "resellers".
func (h *Handler) categoryParam(w http.ResponseWriter, r *http.Request) (category.Key, bool) {
	raw := chi.URLParam(r, "key")
	k, ok := category.Parse(raw)
	if !ok || !h.engine.Taxonomy().Has(k) {
		h.writeError(w, http.StatusNotFound, "unknown_category", "category not found", map[string]any{"key": raw})
		return "", false
	}
	return k, true
}

func (h *Handler) handleGetState(w http.ResponseWriter, r *http.Request) {
	h.writeJSON(w, http.StatusOK, h.engine.Snapshot())
}

func (h *Handler) handleGetConnection(w http.ResponseWriter, r *http.Request) {
	c, ok := h.engine.Connection()
	if !ok {
		h.writeJSON(w, http.StatusOK, connectionResponse{})
		return
	}
	h.writeJSON(w, http.StatusOK, connectionResponse{Connection: &c, GeoJSON: c.FeatureCollection()})
}

func (h *Handler) handleSetOrigin(w http.ResponseWriter, r *http.Request) {
	var req pointRequest
	if err := decodeJSONStrict(r, &req); err != nil {
		h.writeError(w, http.StatusBadRequest, "validation_failed", "invalid json body", map[string]any{"error": err.Error()})
		return
	}
	p, ok := req.point()
	if !ok {
		h.writeError(w, http.StatusBadRequest, "validation_failed", "lat and lng are required", nil)
		return
	}
	h.dispatch(w, r, engine.OriginSelected{Point: p})
}

func (h *Handler) handleClearOrigin(w http.ResponseWriter, r *http.Request) {
	h.dispatch(w, r, engine.OriginCleared{})
}

func (h *Handler) handleMapClick(w http.ResponseWriter, r *http.Request) {
	var req pointRequest
	if err := decodeJSONStrict(r, &req); err != nil {
		h.writeError(w, http.StatusBadRequest, "validation_failed", "invalid json body", map[string]any{"error": err.Error()})
		return
	}
	p, ok := req.point()
	if !ok {
		h.writeError(w, http.StatusBadRequest, "validation_failed", "lat and lng are required", nil)
		return
	}
	h.dispatch(w, r, engine.MapClicked{Point: p})
}

func (h *Handler) handleViewportResized(w http.ResponseWriter, r *http.Request) {
	h.dispatch(w, r, engine.ViewportResized{})
}

func (h *Handler) handleToggleCategory(w http.ResponseWriter, r *http.Request) {
	key, ok := h.categoryParam(w, r)
	if !ok {
		return
	}
	var req toggleCategoryRequest
	if err := decodeJSONStrict(r, &req); err != nil {
		h.writeError(w, http.StatusBadRequest, "validation_failed", "invalid json body", map[string]any{"error": err.Error()})
		return
	}
	h.dispatch(w, r, engine.CategoryToggled{Key: key, Expand: req.Expand})
}

func (h *Handler) handleToggleRightPanel(w http.ResponseWriter, r *http.Request) {
	var req rightPanelRequest
	if err := decodeJSONStrict(r, &req); err != nil {
		h.writeError(w, http.StatusBadRequest, "validation_failed", "invalid json body", map[string]any{"error": err.Error()})
		return
	}
	h.dispatch(w, r, engine.RightPanelToggled{Expanded: req.Expanded})
}

func (h *Handler) handleResizePanel(w http.ResponseWriter, r *http.Request) {
	side, err := sidebar.ParseSide(chi.URLParam(r, "side"))
	if err != nil {
		h.writeError(w, http.StatusNotFound, "unknown_panel", "panel not found", map[string]any{"side": chi.URLParam(r, "side")})
		return
	}
	var req panelWidthRequest
	if err := decodeJSONStrict(r, &req); err != nil {
		h.writeError(w, http.StatusBadRequest, "validation_failed", "invalid json body", map[string]any{"error": err.Error()})
		return
	}
	if req.Width <= 0 {
		h.writeError(w, http.StatusBadRequest, "validation_failed", "width must be positive", map[string]any{"width": req.Width})
		return
	}
	h.dispatch(w, r, engine.PanelResized{Side: side, Width: req.Width})
}

func parseZoom(raw string) (int, error) {
	if strings.TrimSpace(raw) == "" {
		return defaultZoom, nil
	}
	z, err := strconv.Atoi(raw)
	if err != nil {
		return 0, err
	}
	if z < minZoom || z > maxZoom {
		return 0, strconv.ErrRange
	}
	return z, nil
}

func (h *Handler) handleListClusters(w http.ResponseWriter, r *http.Request) {
	key, ok := h.categoryParam(w, r)
	if !ok {
		return
	}
	zoom, err := parseZoom(r.URL.Query().Get("zoom"))
	if err != nil {
		h.writeError(w, http.StatusBadRequest, "validation_failed", "zoom must be an integer between 0 and 22", map[string]any{"zoom": r.URL.Query().Get("zoom")})
		return
	}
	cs := h.engine.Clusters(key, zoom)
	if cs == nil {
		cs = []cluster.Cluster{}
	}
	h.writeJSON(w, http.StatusOK, clustersResponse{Category: key, Zoom: zoom, Clusters: cs})
}

func (h *Handler) handleListMarkers(w http.ResponseWriter, r *http.Request) {
	key, ok := h.categoryParam(w, r)
	if !ok {
		return
	}
	h.writeJSON(w, http.StatusOK, markersResponse{
		Category: key,
		Visible:  h.engine.IsCategoryVisible(key),
		Markers:  h.engine.Markers(key),
	})
}

func (h *Handler) handleListPartners(w http.ResponseWriter, r *http.Request) {
	key, ok := h.categoryParam(w, r)
	if !ok {
		return
	}
	h.writeJSON(w, http.StatusOK, h.engine.Partners(key))
}

func (h *Handler) handleSetFilter(w http.ResponseWriter, r *http.Request) {
	key, ok := h.categoryParam(w, r)
	if !ok {
		return
	}
	var req filterRequest
	if err := decodeJSONStrict(r, &req); err != nil {
		h.writeError(w, http.StatusBadRequest, "validation_failed", "invalid json body", map[string]any{"error": err.Error()})
		return
	}
	h.dispatch(w, r, engine.FilterChanged{Key: key, Filter: matcher.Filter{
		Query:          strings.TrimSpace(req.Query),
		AuthorizedOnly: req.AuthorizedOnly,
	}})
}

func (h *Handler) handlePinPartner(w http.ResponseWriter, r *http.Request) {
	key, ok := h.categoryParam(w, r)
	if !ok {
		return
	}
	var req pinRequest
	if err := decodeJSONStrict(r, &req); err != nil {
		h.writeError(w, http.StatusBadRequest, "validation_failed", "invalid json body", map[string]any{"error": err.Error()})
		return
	}
	if strings.TrimSpace(req.ID) == "" {
		h.writeError(w, http.StatusBadRequest, "validation_failed", "id is required", nil)
		return
	}
	h.dispatch(w, r, engine.PartnerPinned{Key: key, ID: strings.TrimSpace(req.ID)})
}

func (h *Handler) handleUnpinPartner(w http.ResponseWriter, r *http.Request) {
	key, ok := h.categoryParam(w, r)
	if !ok {
		return
	}
	h.dispatch(w, r, engine.PartnerUnpinned{Key: key})
}
