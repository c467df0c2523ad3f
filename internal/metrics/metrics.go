// Package metrics provides Prometheus metrics collection for the chat service.
package metrics

import (
	"bufio"
	"errors"
	"net"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const (
	outcomeSuccess = "success"
	outcomeFailure = "failure"
)

// Metrics holds all Prometheus collectors. Every Record method is safe to
// call on a nil *Metrics.
type Metrics struct {
	// HTTP
	HTTPRequestsTotal    *prometheus.CounterVec
	HTTPRequestDuration  *prometheus.HistogramVec
	HTTPRequestsInFlight prometheus.Gauge
	WebsocketConnections prometheus.Gauge

	// Dialogue
	SessionsCreated     prometheus.Counter
	ChatTurnsTotal      *prometheus.CounterVec
	StaleCompletions    prometheus.Counter
	FunnelStageReached  *prometheus.CounterVec
	FAQHitsTotal        prometheus.Counter
	CatalogBusinesses   prometheus.Gauge
	FAQEntries          prometheus.Gauge
	AcquisitionRequests prometheus.Counter

	// Completion providers
	LLMCallsTotal       *prometheus.CounterVec
	LLMCallDuration     *prometheus.HistogramVec
	CircuitBreakerState *prometheus.GaugeVec

	// Analytics recorder
	RecorderEventsTotal *prometheus.CounterVec
	RecorderQueueDepth  prometheus.Gauge

	registry prometheus.Gatherer
}

// NewMetrics creates a Metrics registered on the default registry.
func NewMetrics() *Metrics {
	m := newMetricsWithRegistry(prometheus.DefaultRegisterer)
	m.registry = prometheus.DefaultGatherer
	return m
}

// NewMetricsWithRegistry creates metrics on a custom registry (for testing).
func NewMetricsWithRegistry(reg *prometheus.Registry) *Metrics {
	m := newMetricsWithRegistry(reg)
	m.registry = reg
	return m
}

func newMetricsWithRegistry(registerer prometheus.Registerer) *Metrics {
	factory := promauto.With(registerer)

	return &Metrics{
		HTTPRequestsTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "tekki_http_requests_total",
				Help: "Total number of HTTP requests by method, route, and status code",
			},
			[]string{"method", "route", "status"},
		),
		HTTPRequestDuration: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "tekki_http_request_duration_seconds",
				Help:    "HTTP request duration in seconds",
				Buckets: []float64{.005, .01, .025, .05, .1, .25, .5, 1, 2.5, 5, 10, 30},
			},
			[]string{"method", "route"},
		),
		HTTPRequestsInFlight: factory.NewGauge(prometheus.GaugeOpts{
			Name: "tekki_http_requests_in_flight",
			Help: "Number of HTTP requests currently being processed",
		}),
		WebsocketConnections: factory.NewGauge(prometheus.GaugeOpts{
			Name: "tekki_websocket_connections",
			Help: "Open chat websocket connections",
		}),

		SessionsCreated: factory.NewCounter(prometheus.CounterOpts{
			Name: "tekki_chat_sessions_created_total",
			Help: "Chat sessions created",
		}),
		ChatTurnsTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "tekki_chat_turns_total",
				Help: "Visitor turns by the dialogue route that answered them",
			},
			[]string{"route"},
		),
		StaleCompletions: factory.NewCounter(prometheus.CounterOpts{
			Name: "tekki_chat_stale_completions_total",
			Help: "Completions discarded because a newer visitor input arrived",
		}),
		FunnelStageReached: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "tekki_funnel_stage_reached_total",
				Help: "Sessions advancing into a funnel stage",
			},
			[]string{"stage"},
		),
		FAQHitsTotal: factory.NewCounter(prometheus.CounterOpts{
			Name: "tekki_faq_hits_total",
			Help: "Visitor turns answered from the FAQ cache",
		}),
		CatalogBusinesses: factory.NewGauge(prometheus.GaugeOpts{
			Name: "tekki_catalog_available_businesses",
			Help: "Available businesses currently loaded in the catalog",
		}),
		FAQEntries: factory.NewGauge(prometheus.GaugeOpts{
			Name: "tekki_faq_entries",
			Help: "Active FAQ entries currently cached",
		}),
		AcquisitionRequests: factory.NewCounter(prometheus.CounterOpts{
			Name: "tekki_acquisition_requests_total",
			Help: "Acquisition requests stored",
		}),

		LLMCallsTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "tekki_llm_calls_total",
				Help: "Completion provider calls by provider and outcome",
			},
			[]string{"provider", "outcome"},
		),
		LLMCallDuration: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "tekki_llm_call_duration_seconds",
				Help:    "Completion provider call duration in seconds",
				Buckets: []float64{.25, .5, 1, 2, 4, 8, 16, 32},
			},
			[]string{"provider"},
		),
		CircuitBreakerState: factory.NewGaugeVec(
			prometheus.GaugeOpts{
				Name: "tekki_circuit_breaker_state",
				Help: "Circuit breaker state per provider (0=closed, 1=open, 2=half-open)",
			},
			[]string{"provider"},
		),

		RecorderEventsTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "tekki_recorder_events_total",
				Help: "Analytics events by kind (turn, snapshot) and result (enqueued, dropped, written, failed)",
			},
			[]string{"kind", "result"},
		),
		RecorderQueueDepth: factory.NewGauge(prometheus.GaugeOpts{
			Name: "tekki_recorder_queue_depth",
			Help: "Analytics events waiting to be written",
		}),
	}
}

// Handler returns the Prometheus HTTP handler for scraping metrics.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

// Middleware records request count, latency and in-flight requests. Routes
// are labelled with the chi route pattern to keep cardinality bounded.
func (m *Metrics) Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		m.HTTPRequestsInFlight.Inc()
		defer m.HTTPRequestsInFlight.Dec()

		start := time.Now()
		wrapped := &responseWriter{ResponseWriter: w, statusCode: http.StatusOK}
		next.ServeHTTP(wrapped, r)

		route := routePattern(r)
		m.HTTPRequestsTotal.WithLabelValues(r.Method, route, strconv.Itoa(wrapped.statusCode)).Inc()
		m.HTTPRequestDuration.WithLabelValues(r.Method, route).Observe(time.Since(start).Seconds())
	})
}

func routePattern(r *http.Request) string {
	if rctx := chi.RouteContext(r.Context()); rctx != nil {
		if p := rctx.RoutePattern(); p != "" {
			return p
		}
	}
	return "unmatched"
}

type responseWriter struct {
	http.ResponseWriter
	statusCode int
	written    bool
}

func (rw *responseWriter) WriteHeader(code int) {
	if !rw.written {
		rw.statusCode = code
		rw.written = true
	}
	rw.ResponseWriter.WriteHeader(code)
}

func (rw *responseWriter) Write(b []byte) (int, error) {
	rw.written = true
	return rw.ResponseWriter.Write(b)
}

// Unwrap exposes the underlying writer to http.ResponseController.
func (rw *responseWriter) Unwrap() http.ResponseWriter {
	return rw.ResponseWriter
}

// Hijack lets websocket upgrades through the middleware.
func (rw *responseWriter) Hijack() (net.Conn, *bufio.ReadWriter, error) {
	h, ok := rw.ResponseWriter.(http.Hijacker)
	if !ok {
		return nil, nil, errors.New("response writer does not support hijacking")
	}
	rw.statusCode = http.StatusSwitchingProtocols
	rw.written = true
	return h.Hijack()
}

// RecordSessionCreated counts a new chat session.
func (m *Metrics) RecordSessionCreated() {
	if m == nil {
		return
	}
	m.SessionsCreated.Inc()
}

// RecordTurn counts a visitor turn answered by route.
func (m *Metrics) RecordTurn(route string) {
	if m == nil {
		return
	}
	m.ChatTurnsTotal.WithLabelValues(route).Inc()
}

// RecordStaleCompletion counts a discarded out-of-date completion.
func (m *Metrics) RecordStaleCompletion() {
	if m == nil {
		return
	}
	m.StaleCompletions.Inc()
}

// RecordStageReached counts a funnel advancing into stage.
func (m *Metrics) RecordStageReached(stage string) {
	if m == nil {
		return
	}
	m.FunnelStageReached.WithLabelValues(stage).Inc()
}

// RecordFAQHit counts a turn answered from the FAQ cache.
func (m *Metrics) RecordFAQHit() {
	if m == nil {
		return
	}
	m.FAQHitsTotal.Inc()
}

// SetCatalogSize reports the number of available businesses.
func (m *Metrics) SetCatalogSize(n int) {
	if m == nil {
		return
	}
	m.CatalogBusinesses.Set(float64(n))
}

// SetFAQEntries reports the number of cached FAQ entries.
func (m *Metrics) SetFAQEntries(n int) {
	if m == nil {
		return
	}
	m.FAQEntries.Set(float64(n))
}

// RecordAcquisitionRequest counts a stored acquisition lead.
func (m *Metrics) RecordAcquisitionRequest() {
	if m == nil {
		return
	}
	m.AcquisitionRequests.Inc()
}

// RecordLLMCall records one completion provider call.
func (m *Metrics) RecordLLMCall(provider string, success bool, duration time.Duration) {
	if m == nil {
		return
	}
	outcome := outcomeSuccess
	if !success {
		outcome = outcomeFailure
	}
	m.LLMCallsTotal.WithLabelValues(provider, outcome).Inc()
	m.LLMCallDuration.WithLabelValues(provider).Observe(duration.Seconds())
}

// SetCircuitBreakerState reports a provider breaker state.
func (m *Metrics) SetCircuitBreakerState(provider string, state int) {
	if m == nil {
		return
	}
	m.CircuitBreakerState.WithLabelValues(provider).Set(float64(state))
}

// RecordRecorderEvent counts an analytics event outcome.
func (m *Metrics) RecordRecorderEvent(kind, result string) {
	if m == nil {
		return
	}
	m.RecorderEventsTotal.WithLabelValues(kind, result).Inc()
}

// SetRecorderQueueDepth reports the recorder backlog.
func (m *Metrics) SetRecorderQueueDepth(n int) {
	if m == nil {
		return
	}
	m.RecorderQueueDepth.Set(float64(n))
}

// WebsocketOpened and WebsocketClosed track open websocket connections.
func (m *Metrics) WebsocketOpened() {
	if m == nil {
		return
	}
	m.WebsocketConnections.Inc()
}

func (m *Metrics) WebsocketClosed() {
	if m == nil {
		return
	}
	m.WebsocketConnections.Dec()
}
