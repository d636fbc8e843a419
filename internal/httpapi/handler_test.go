package httpapi

import (
	"bytes"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/rs/zerolog"

	"techloc/map-core/internal/engine"
	"techloc/map-core/internal/metrics"
)

func decodeBody(t *testing.T, rr *httptest.ResponseRecorder) map[string]any {
	t.Helper()
	var v map[string]any
	if err := json.Unmarshal(rr.Body.Bytes(), &v); err != nil {
		t.Fatalf("failed to decode body as json: %v\nbody=%s", err, rr.Body.String())
	}
	return v
}

func errorCode(t *testing.T, rr *httptest.ResponseRecorder) string {
	t.Helper()
	body := decodeBody(t, rr)
	e, ok := body["error"].(map[string]any)
	if !ok {
		t.Fatalf("expected error envelope, got %v", body)
	}
	code, _ := e["code"].(string)
	return code
}

func newTestHandler(t *testing.T, opts engine.Options) (*Handler, http.Handler) {
	t.Helper()
	opts.Log = zerolog.New(io.Discard)
	h := NewHandler(opts.Log, nil, engine.New(opts), nil)
	return h, h.Router()
}

func do(t *testing.T, router http.Handler, method, path, body string) *httptest.ResponseRecorder {
	t.Helper()
	var rd io.Reader
	if body != "" {
		rd = bytes.NewBufferString(body)
	}
	req := httptest.NewRequest(method, path, rd)
	if body != "" {
		req.Header.Set("Content-Type", "application/json")
	}
	rr := httptest.NewRecorder()
	router.ServeHTTP(rr, req)
	return rr
}

func TestHealthz(t *testing.T) {
	_, router := newTestHandler(t, engine.Options{})
	rr := do(t, router, http.MethodGet, "/healthz", "")
	if rr.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rr.Code)
	}
	if ok, _ := decodeBody(t, rr)["ok"].(bool); !ok {
		t.Fatalf("expected ok=true, got %s", rr.Body.String())
	}
}

func TestReadyz_NoDatabase(t *testing.T) {
	_, router := newTestHandler(t, engine.Options{})
	rr := do(t, router, http.MethodGet, "/readyz", "")
	if rr.Code != http.StatusOK {
		t.Fatalf("expected in-memory service to be ready, got %d", rr.Code)
	}
	body := decodeBody(t, rr)
	if body["ready"] != true || body["database"] != "disabled" {
		t.Fatalf("unexpected readiness body %v", body)
	}
}

func TestMetrics_NilRegistry(t *testing.T) {
	_, router := newTestHandler(t, engine.Options{})
	rr := do(t, router, http.MethodGet, "/metrics", "")
	if rr.Code != http.StatusServiceUnavailable {
		t.Fatalf("expected 503 without metrics, got %d", rr.Code)
	}
}

func TestMetrics_CountsRequests(t *testing.T) {
	log := zerolog.New(io.Discard)
	m := metrics.New()
	h := NewHandler(log, nil, nil, m)
	router := h.Router()

	_ = do(t, router, http.MethodGet, "/api/v1/map/state", "")
	rr := do(t, router, http.MethodGet, "/metrics", "")
	if rr.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rr.Code)
	}
	body := rr.Body.String()
	if !strings.Contains(body, "mapcore_http_requests_total") || !strings.Contains(body, `path="/api/v1/map/state"`) {
		t.Fatalf("expected request counter with route pattern, got:\n%s", body)
	}
}

func TestDecodeJSONStrict_RejectsUnknownAndTrailing(t *testing.T) {
	_, router := newTestHandler(t, engine.Options{})

	rr := do(t, router, http.MethodPost, "/api/v1/map/origin", `{"lat":1,"lng":2,"zoom":3}`)
	if rr.Code != http.StatusBadRequest || errorCode(t, rr) != "validation_failed" {
		t.Fatalf("expected validation_failed for unknown field, got %d %s", rr.Code, rr.Body.String())
	}

	rr = do(t, router, http.MethodPost, "/api/v1/map/origin", `{"lat":1,"lng":2}{}`)
	if rr.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 for trailing data, got %d", rr.Code)
	}
}
