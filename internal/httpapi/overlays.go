package httpapi

import (
	"net/http"

	"techloc/map-core/internal/engine"
	"techloc/map-core/internal/fleet"
	"techloc/map-core/internal/layers"
)

type overlaysResponse struct {
	Hotspots     []layers.Circle     `json:"hotspots"`
	RemovalSites []layers.SiteMarker `json:"removal_sites"`
}

type replaceHotspotsRequest struct {
	Hotspots []fleet.Hotspot `json:"hotspots"`
}

type replaceRemovalSitesRequest struct {
	Sites []fleet.RemovalSite `json:"sites"`
}

type vehicleVisibilityRequest struct {
	Visible *bool `json:"visible"`
}

func (h *Handler) handleGetOverlays(w http.ResponseWriter, r *http.Request) {
	h.writeJSON(w, http.StatusOK, overlaysResponse{
		Hotspots:     h.engine.Hotspots(),
		RemovalSites: h.engine.RemovalSites(),
	})
}

func (h *Handler) handleReplaceHotspots(w http.ResponseWriter, r *http.Request) {
	var req replaceHotspotsRequest
	if err := decodeJSONStrict(r, &req); err != nil {
		h.writeError(w, http.StatusBadRequest, "validation_failed", "invalid json body", map[string]any{"error": err.Error()})
		return
	}
	h.dispatch(w, r, engine.HotspotsLoaded{Hotspots: req.Hotspots})
}

func (h *Handler) handleReplaceRemovalSites(w http.ResponseWriter, r *http.Request) {
	var req replaceRemovalSitesRequest
	if err := decodeJSONStrict(r, &req); err != nil {
		h.writeError(w, http.StatusBadRequest, "validation_failed", "invalid json body", map[string]any{"error": err.Error()})
		return
	}
	h.dispatch(w, r, engine.RemovalSitesLoaded{Sites: req.Sites})
}

func (h *Handler) handleSetVehicleVisibility(w http.ResponseWriter, r *http.Request) {
	var req vehicleVisibilityRequest
	if err := decodeJSONStrict(r, &req); err != nil {
		h.writeError(w, http.StatusBadRequest, "validation_failed", "invalid json body", map[string]any{"error": err.Error()})
		return
	}
	if req.Visible == nil {
		h.writeError(w, http.StatusBadRequest, "validation_failed", "visible is required", nil)
		return
	}
	h.dispatch(w, r, engine.VehicleLayerToggled{Visible: *req.Visible})
}
