package httpapi

import (
	"bytes"
	"errors"
	"io"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"

	"techloc/map-core/internal/engine"
	"techloc/map-core/internal/feed"
	"techloc/map-core/internal/fleet"
)

const maxDeltaBody = 1 << 20

type replaceVehiclesRequest struct {
	Vehicles []fleet.Vehicle `json:"vehicles"`
}

type deltasResponse struct {
	Received int `json:"received"`
	Applied  int `json:"applied"`
	Ignored  int `json:"ignored"`
}

func (h *Handler) handleListVehicles(w http.ResponseWriter, r *http.Request) {
	h.writeJSON(w, http.StatusOK, h.engine.Vehicles())
}

func (h *Handler) handleReplaceVehicles(w http.ResponseWriter, r *http.Request) {
	var req replaceVehiclesRequest
	if err := decodeJSONStrict(r, &req); err != nil {
		h.writeError(w, http.StatusBadRequest, "validation_failed", "invalid json body", map[string]any{"error": err.Error()})
		return
	}
	for i := range req.Vehicles {
		req.Vehicles[i].Status = fleet.ParseVehicleStatus(string(req.Vehicles[i].Status))
	}
	h.dispatch(w, r, engine.VehicleSnapshot{Vehicles: req.Vehicles})
}

// handleVehicleDeltas accepts a single delta object or an array of them in
// the same wire format as the Kafka feed.
func (h *Handler) handleVehicleDeltas(w http.ResponseWriter, r *http.Request) {
	body, err := io.ReadAll(io.LimitReader(r.Body, maxDeltaBody))
	if err != nil {
		h.writeError(w, http.StatusBadRequest, "validation_failed", "failed to read body", map[string]any{"error": err.Error()})
		return
	}
	body = bytes.TrimSpace(body)

	var deltas []fleet.VehicleDelta
	if bytes.HasPrefix(body, []byte("[")) {
		deltas, err = feed.DecodeDeltas(body)
	} else {
		var d fleet.VehicleDelta
		d, err = feed.DecodeDelta(body)
		deltas = []fleet.VehicleDelta{d}
	}
	if err != nil {
		h.writeError(w, http.StatusBadRequest, "invalid_delta", "invalid vehicle delta", map[string]any{"error": err.Error()})
		return
	}

	resp := deltasResponse{Received: len(deltas)}
	for _, d := range deltas {
		ch, err := h.engine.Dispatch(r.Context(), engine.VehicleDelta{Delta: d})
		switch {
		case err != nil && !errors.Is(err, engine.ErrUnknownVehicle) && !errors.Is(err, engine.ErrInvalidPoint):
			h.writeEngineError(w, err)
			return
		case err == nil && ch.VehiclesChanged:
			resp.Applied++
		default:
			resp.Ignored++
		}
	}
	h.writeJSON(w, http.StatusAccepted, resp)
}

func (h *Handler) handleFocusVehicle(w http.ResponseWriter, r *http.Request) {
	id := strings.TrimSpace(chi.URLParam(r, "id"))
	if id == "" {
		h.writeError(w, http.StatusBadRequest, "validation_failed", "vehicle id is required", nil)
		return
	}
	h.dispatch(w, r, engine.VehicleFocused{ID: id})
}
