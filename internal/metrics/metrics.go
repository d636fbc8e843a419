package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "mapcore"

// Metrics exposes application metrics that are safe to scrape via Prometheus.
// A nil *Metrics is valid and records nothing.
type Metrics struct {
	registry            *prometheus.Registry
	httpRequests        *prometheus.CounterVec
	httpRequestDuration *prometheus.HistogramVec
	engineEvents        *prometheus.CounterVec
	vehicleDeltas       *prometheus.CounterVec
	vehicleSyncChanges  *prometheus.CounterVec
	vehicleMarkers      prometheus.Gauge
	matches             *prometheus.CounterVec
	feedPolls           *prometheus.CounterVec
	feedPollDuration    *prometheus.HistogramVec
	wsClients           prometheus.Gauge
}

// New creates a fresh Metrics registry with HTTP, engine and feed metrics registered.
func New() *Metrics {
	registry := prometheus.NewRegistry()

	httpRequests := prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "http_requests_total",
		Help:      "Count of HTTP requests processed by map-core",
	}, []string{"method", "path", "status"})

	httpRequestDuration := prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: namespace,
		Name:      "http_request_duration_seconds",
		Help:      "Duration of HTTP requests served by map-core",
		Buckets:   prometheus.DefBuckets,
	}, []string{"method", "path", "status"})

	engineEvents := prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "engine_events_total",
		Help:      "Map engine events dispatched, by event type",
	}, []string{"event"})

	vehicleDeltas := prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "vehicle_deltas_total",
		Help:      "Vehicle deltas applied, by operation",
	}, []string{"op"})

	vehicleSyncChanges := prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "vehicle_sync_markers_total",
		Help:      "Vehicle markers upserted or pruned by snapshot syncs",
	}, []string{"change"})

	vehicleMarkers := prometheus.NewGauge(prometheus.GaugeOpts{
		Namespace: namespace,
		Name:      "vehicle_markers",
		Help:      "Vehicle markers currently placed",
	})

	matches := prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "partner_matches_total",
		Help:      "Partner match attempts, by category and outcome",
	}, []string{"category", "outcome"})

	feedPolls := prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "feed_polls_total",
		Help:      "Telemetry and directory polls, by source and result",
	}, []string{"source", "result"})

	feedPollDuration := prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: namespace,
		Name:      "feed_poll_duration_seconds",
		Help:      "Duration of telemetry and directory polls",
		Buckets:   []float64{0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10, 30},
	}, []string{"source"})

	wsClients := prometheus.NewGauge(prometheus.GaugeOpts{
		Namespace: namespace,
		Name:      "ws_clients",
		Help:      "Connected websocket clients",
	})

	registry.MustRegister(
		httpRequests,
		httpRequestDuration,
		engineEvents,
		vehicleDeltas,
		vehicleSyncChanges,
		vehicleMarkers,
		matches,
		feedPolls,
		feedPollDuration,
		wsClients,
	)

	return &Metrics{
		registry:            registry,
		httpRequests:        httpRequests,
		httpRequestDuration: httpRequestDuration,
		engineEvents:        engineEvents,
		vehicleDeltas:       vehicleDeltas,
		vehicleSyncChanges:  vehicleSyncChanges,
		vehicleMarkers:      vehicleMarkers,
		matches:             matches,
		feedPolls:           feedPolls,
		feedPollDuration:    feedPollDuration,
		wsClients:           wsClients,
	}
}

// ObserveHTTPRequest records a single HTTP request/response cycle.
func (m *Metrics) ObserveHTTPRequest(method, path string, status int, duration time.Duration) {
	if m == nil {
		return
	}
	labels := prometheus.Labels{
		"method": method,
		"path":   path,
		"status": strconv.Itoa(status),
	}
	m.httpRequests.With(labels).Inc()
	m.httpRequestDuration.With(labels).Observe(duration.Seconds())
}

func (m *Metrics) IncEngineEvent(event string) {
	if m == nil {
		return
	}
	m.engineEvents.WithLabelValues(event).Inc()
}

func (m *Metrics) IncVehicleDelta(op string) {
	if m == nil {
		return
	}
	if op == "" {
		op = "unknown"
	}
	m.vehicleDeltas.WithLabelValues(op).Inc()
}

// ObserveVehicleSync records the marker churn of one snapshot sync.
func (m *Metrics) ObserveVehicleSync(upserted, removed int) {
	if m == nil {
		return
	}
	m.vehicleSyncChanges.WithLabelValues("upserted").Add(float64(upserted))
	m.vehicleSyncChanges.WithLabelValues("removed").Add(float64(removed))
}

func (m *Metrics) SetVehicleMarkers(n int) {
	if m == nil {
		return
	}
	m.vehicleMarkers.Set(float64(n))
}

// IncMatch counts a match attempt; outcome is "nearest", "pinned" or "none".
func (m *Metrics) IncMatch(category, outcome string) {
	if m == nil {
		return
	}
	m.matches.WithLabelValues(category, outcome).Inc()
}

// ObserveFeedPoll records one poll of a telemetry or directory source.
func (m *Metrics) ObserveFeedPoll(source string, err error, duration time.Duration) {
	if m == nil {
		return
	}
	result := "ok"
	if err != nil {
		result = "error"
	}
	m.feedPolls.WithLabelValues(source, result).Inc()
	m.feedPollDuration.WithLabelValues(source).Observe(duration.Seconds())
}

func (m *Metrics) SetWSClients(n int) {
	if m == nil {
		return
	}
	m.wsClients.Set(float64(n))
}

// Handler exposes the Prometheus registry over HTTP.
func (m *Metrics) Handler() http.Handler {
	if m == nil {
		return http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
			w.WriteHeader(http.StatusServiceUnavailable)
			_, _ = w.Write([]byte("metrics unavailable"))
		})
	}
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}
