package httpapi

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/rs/zerolog"

	"techloc/map-core/internal/db"
	"techloc/map-core/internal/engine"
	"techloc/map-core/internal/metrics"
)

type Handler struct {
	log     zerolog.Logger
	pool    *db.Pool
	engine  *engine.Engine
	metrics *metrics.Metrics
	hub     *Hub
	timeout time.Duration
}

// NewHandler wires the HTTP surface to eng. A nil engine gets a default one
// so the router can be built in isolation.
func NewHandler(log zerolog.Logger, pool *db.Pool, eng *engine.Engine, m *metrics.Metrics) *Handler {
	if eng == nil {
		eng = engine.New(engine.Options{Log: log, Metrics: m})
	}
	h := &Handler{
		log:     log,
		pool:    pool,
		engine:  eng,
		metrics: m,
		timeout: 15 * time.Second,
	}
	h.hub = NewHub(log, eng, m)
	eng.AddListener(h.hub)
	return h
}

// WithRequestTimeout overrides the per-request timeout middleware value.
func (h *Handler) WithRequestTimeout(d time.Duration) *Handler {
	if d > 0 {
		h.timeout = d
	}
	return h
}

func (h *Handler) Hub() *Hub { return h.hub }

func (h *Handler) Router() http.Handler {
	r := chi.NewRouter()

	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Recoverer)
	r.Use(h.accessLog)

	// Websocket connections outlive the request timeout.
	r.Get("/ws", h.hub.ServeWS)

	r.Group(func(r chi.Router) {
		r.Use(middleware.Timeout(h.timeout))

		// Health
		r.Get("/healthz", h.handleHealthz)
		r.Get("/readyz", h.handleReadyZ)
		r.Method(http.MethodGet, "/metrics", h.metrics.Handler())

		// API
		r.Route("/api", func(r chi.Router) {
			r.Route("/v1", func(r chi.Router) {
				r.Route("/map", func(r chi.Router) {
					r.Get("/state", h.handleGetState)
					r.Get("/connection", h.handleGetConnection)
					r.Post("/click", h.handleMapClick)
					r.Post("/viewport", h.handleViewportResized)

					r.Route("/origin", func(r chi.Router) {
						r.Post("/", h.handleSetOrigin)
						r.Delete("/", h.handleClearOrigin)
					})

					r.Route("/panels", func(r chi.Router) {
						r.Post("/right", h.handleToggleRightPanel)
						r.Put("/{side}/width", h.handleResizePanel)
					})

					r.Route("/overlays", func(r chi.Router) {
						r.Get("/", h.handleGetOverlays)
						r.Put("/hotspots", h.handleReplaceHotspots)
						r.Put("/removal-sites", h.handleReplaceRemovalSites)
					})

					r.Route("/layers/{key}", func(r chi.Router) {
						r.Get("/markers", h.handleListMarkers)
						r.Get("/clusters", h.handleListClusters)
					})

					r.Route("/categories/{key}", func(r chi.Router) {
						r.Post("/", h.handleToggleCategory)
						r.Get("/partners", h.handleListPartners)
						r.Put("/filter", h.handleSetFilter)
						r.Post("/pin", h.handlePinPartner)
						r.Delete("/pin", h.handleUnpinPartner)
					})
				})

				r.Route("/vehicles", func(r chi.Router) {
					r.Get("/", h.handleListVehicles)
					r.Put("/", h.handleReplaceVehicles)
					r.Post("/deltas", h.handleVehicleDeltas)
					r.Put("/visibility", h.handleSetVehicleVisibility)
					r.Post("/{id}/focus", h.handleFocusVehicle)
				})
			})
		})
	})

	return r
}

func (h *Handler) accessLog(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)

		next.ServeHTTP(ww, r)

		route := r.URL.Path
		if rctx := chi.RouteContext(r.Context()); rctx != nil {
			if p := rctx.RoutePattern(); p != "" {
				route = p
			}
		}
		h.metrics.ObserveHTTPRequest(r.Method, route, ww.Status(), time.Since(start))

		h.log.Info().
			Str("request_id", middleware.GetReqID(r.Context())).
			Str("method", r.Method).
			Str("path", r.URL.Path).
			Int("status", ww.Status()).
			Int("bytes", ww.BytesWritten()).
			Int64("duration_ms", time.Since(start).Milliseconds()).
			Msg("http_request")
	})
}

func (h *Handler) writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func (h *Handler) writeError(w http.ResponseWriter, status int, code, msg string, details map[string]any) {
	resp := map[string]any{
		"error": map[string]any{
			"code":    code,
			"message": msg,
		},
	}
	if details != nil {
		resp["error"].(map[string]any)["details"] = details
	}
	h.writeJSON(w, status, resp)
}

// writeEngineError maps dispatch errors onto the error envelope.
func (h *Handler) writeEngineError(w http.ResponseWriter, err error) {
	details := map[string]any{"error": err.Error()}
	switch {
	case errors.Is(err, engine.ErrUnknownCategory):
		h.writeError(w, http.StatusNotFound, "unknown_category", "category not found", details)
	case errors.Is(err, engine.ErrUnknownPartner):
		h.writeError(w, http.StatusNotFound, "not_found", "partner not found", details)
	case errors.Is(err, engine.ErrUnknownVehicle):
		h.writeError(w, http.StatusNotFound, "not_found", "vehicle not found", details)
	case errors.Is(err, engine.ErrInvalidPoint):
		h.writeError(w, http.StatusBadRequest, "invalid_coordinates", "coordinates are missing or out of range", details)
	default:
		h.log.Error().Err(err).Msg("dispatch failed")
		h.writeError(w, http.StatusInternalServerError, "engine_error", "failed to apply event", nil)
	}
}

func decodeJSONStrict(r *http.Request, dst any) error {
	dec := json.NewDecoder(r.Body)
	dec.DisallowUnknownFields()
	if err := dec.Decode(dst); err != nil {
		return err
	}
	if err := dec.Decode(&struct{}{}); err != io.EOF {
		if err == nil {
			return errors.New("unexpected extra data after JSON body")
		}
		return err
	}
	return nil
}

func (h *Handler) handleHealthz(w http.ResponseWriter, r *http.Request) {
	h.writeJSON(w, http.StatusOK, map[string]any{"ok": true})
}

func (h *Handler) handleReadyZ(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
	defer cancel()

	// Without a database the engine runs from memory and is ready at once.
	if h.pool == nil {
		h.writeJSON(w, http.StatusOK, map[string]any{"ready": true, "database": "disabled"})
		return
	}

	if err := h.pool.Ping(ctx); err != nil {
		h.writeError(w, http.StatusServiceUnavailable, "db_unavailable", "database not ready", map[string]any{"error": err.Error()})
		return
	}

	h.writeJSON(w, http.StatusOK, map[string]any{"ready": true})
}
