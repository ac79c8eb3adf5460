package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/gorilla/mux"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/opticore/opticore/internal/config"
)

const namespace = "opticore"

// Manager defines the interface for metrics management
type Manager interface {
	// HTTP Metrics
	RecordHTTPRequest(method, route, status string, duration time.Duration)

	// Stylesheet pipeline
	RecordPipelineOutcome(outcome string)
	RecordFetch(duration time.Duration, success bool)

	// Settings console
	RecordSettingsSave(success bool)
	RecordCacheWipe(success bool)

	// Export
	GetMetricsHandler() http.Handler

	// HTTP Middleware
	Middleware() func(http.Handler) http.Handler
}

// metricsManager implements the Manager interface using Prometheus
type metricsManager struct {
	registry *prometheus.Registry

	httpRequestsTotal   *prometheus.CounterVec
	httpRequestDuration *prometheus.HistogramVec

	pipelineOutcomesTotal *prometheus.CounterVec
	fetchDuration         *prometheus.HistogramVec

	settingsSavesTotal *prometheus.CounterVec
	cacheWipesTotal    *prometheus.CounterVec
}

// NewManager creates a new metrics manager
func NewManager(cfg config.MetricsConfig) Manager {
	if !cfg.Enable {
		return &noopManager{}
	}

	manager := &metricsManager{
		registry: prometheus.NewRegistry(),
	}

	manager.initializeMetrics()
	manager.registerMetrics()
	return manager
}

// initializeMetrics sets up all Prometheus metrics
func (m *metricsManager) initializeMetrics() {
	m.httpRequestsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "http",
			Name:      "requests_total",
			Help:      "Total number of HTTP requests",
		},
		[]string{"method", "route", "status"},
	)

	m.httpRequestDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "http",
			Name:      "request_duration_seconds",
			Help:      "HTTP request duration in seconds",
			Buckets:   prometheus.DefBuckets,
		},
		[]string{"method", "route"},
	)

	m.pipelineOutcomesTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "css",
			Name:      "pipeline_outcomes_total",
			Help:      "Stylesheet handles processed by the minify pipeline, by outcome",
		},
		[]string{"outcome"},
	)

	m.fetchDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "css",
			Name:      "fetch_duration_seconds",
			Help:      "Time spent downloading stylesheets",
			Buckets:   []float64{.05, .1, .25, .5, 1, 2.5, 5},
		},
		[]string{"success"},
	)

	m.settingsSavesTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "settings",
			Name:      "saves_total",
			Help:      "Settings save attempts",
		},
		[]string{"success"},
	)

	m.cacheWipesTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "cache",
			Name:      "wipes_total",
			Help:      "Cache directory wipes",
		},
		[]string{"success"},
	)
}

// registerMetrics registers all metrics with the Prometheus registry
func (m *metricsManager) registerMetrics() {
	metrics := []prometheus.Collector{
		m.httpRequestsTotal,
		m.httpRequestDuration,
		m.pipelineOutcomesTotal,
		m.fetchDuration,
		m.settingsSavesTotal,
		m.cacheWipesTotal,
	}

	for _, metric := range metrics {
		m.registry.MustRegister(metric)
	}
}

func (m *metricsManager) RecordHTTPRequest(method, route, status string, duration time.Duration) {
	m.httpRequestsTotal.WithLabelValues(method, route, status).Inc()
	m.httpRequestDuration.WithLabelValues(method, route).Observe(duration.Seconds())
}

func (m *metricsManager) RecordPipelineOutcome(outcome string) {
	m.pipelineOutcomesTotal.WithLabelValues(outcome).Inc()
}

func (m *metricsManager) RecordFetch(duration time.Duration, success bool) {
	m.fetchDuration.WithLabelValues(strconv.FormatBool(success)).Observe(duration.Seconds())
}

func (m *metricsManager) RecordSettingsSave(success bool) {
	m.settingsSavesTotal.WithLabelValues(strconv.FormatBool(success)).Inc()
}

func (m *metricsManager) RecordCacheWipe(success bool) {
	m.cacheWipesTotal.WithLabelValues(strconv.FormatBool(success)).Inc()
}

func (m *metricsManager) GetMetricsHandler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

// Middleware records one sample per request. Requests are labelled with
// the matched route template so cache file names don't explode the
// label space.
func (m *metricsManager) Middleware() func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()

			// Create response writer wrapper to capture status code
			wrapped := &responseWriterWrapper{
				ResponseWriter: w,
				statusCode:     http.StatusOK,
			}

			next.ServeHTTP(wrapped, r)

			m.RecordHTTPRequest(r.Method, routeLabel(r), strconv.Itoa(wrapped.statusCode), time.Since(start))
		})
	}
}

func routeLabel(r *http.Request) string {
	if route := mux.CurrentRoute(r); route != nil {
		if tpl, err := route.GetPathTemplate(); err == nil {
			return tpl
		}
	}
	return "other"
}

// responseWriterWrapper wraps http.ResponseWriter to capture status code
type responseWriterWrapper struct {
	http.ResponseWriter
	statusCode int
}

func (w *responseWriterWrapper) WriteHeader(statusCode int) {
	w.statusCode = statusCode
	w.ResponseWriter.WriteHeader(statusCode)
}

// noopManager is a no-op implementation when metrics are disabled
type noopManager struct{}

func (n *noopManager) RecordHTTPRequest(method, route, status string, duration time.Duration) {}
func (n *noopManager) RecordPipelineOutcome(outcome string)                                  {}
func (n *noopManager) RecordFetch(duration time.Duration, success bool)                      {}
func (n *noopManager) RecordSettingsSave(success bool)                                       {}
func (n *noopManager) RecordCacheWipe(success bool)                                          {}
func (n *noopManager) GetMetricsHandler() http.Handler                                       { return http.NotFoundHandler() }
func (n *noopManager) Middleware() func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler { return next }
}
