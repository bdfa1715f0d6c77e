package observability

import (
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Histogram bucket definitions.
var (
	httpDurationBuckets    = []float64{0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10}
	backendDurationBuckets = []float64{0.005, 0.01, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5}
	bodySizeBuckets        = []float64{100, 1024, 10240, 102400, 1048576}
)

// Metrics holds all Prometheus metric instruments for the service.
type Metrics struct {
	// HTTP metrics
	HTTPRequestsTotal     *prometheus.CounterVec
	HTTPRequestDuration   *prometheus.HistogramVec
	HTTPRequestSizeBytes  *prometheus.HistogramVec
	HTTPResponseSizeBytes *prometheus.HistogramVec

	// Filter and list metrics
	FilterCommitsTotal    *prometheus.CounterVec
	ListFetchesTotal      *prometheus.CounterVec
	ListFetchDuration     *prometheus.HistogramVec
	FilterSessionsActive  prometheus.Gauge
	FilterSessionsExpired prometheus.Counter

	// Option metrics
	OptionResolutionsTotal *prometheus.CounterVec
	OptionCacheHitsTotal   *prometheus.CounterVec
	OptionCacheMissesTotal *prometheus.CounterVec
	OptionWarmupRunsTotal  *prometheus.CounterVec

	// Backend invocation metrics
	BackendRequestsTotal       *prometheus.CounterVec
	BackendRequestDuration     *prometheus.HistogramVec
	BackendCircuitBreakerState *prometheus.GaugeVec
	BackendRetriesTotal        *prometheus.CounterVec

	// System metrics
	DefinitionReloadTotal    *prometheus.CounterVec
	DefinitionsLoaded        prometheus.Gauge
	OpenAPIOperationsIndexed *prometheus.GaugeVec
}

const namespace = "backoffice"

// InitMetrics creates every instrument and registers it with reg.
func InitMetrics(reg prometheus.Registerer) *Metrics {
	f := factory{reg: reg}
	return &Metrics{
		HTTPRequestsTotal:     f.counterVec("http", "requests_total", "HTTP requests served.", "method", "path_pattern", "status"),
		HTTPRequestDuration:   f.histogramVec("http", "request_duration_seconds", "HTTP request latency.", httpDurationBuckets, "method", "path_pattern"),
		HTTPRequestSizeBytes:  f.histogramVec("http", "request_size_bytes", "HTTP request body size.", bodySizeBuckets, "method", "path_pattern"),
		HTTPResponseSizeBytes: f.histogramVec("http", "response_size_bytes", "HTTP response body size.", bodySizeBuckets, "method", "path_pattern"),

		FilterCommitsTotal:    f.counterVec("filter", "commits_total", "Committed filter changes by trigger.", "view_id", "trigger"),
		ListFetchesTotal:      f.counterVec("list", "fetches_total", "List data fetches by outcome.", "view_id", "outcome"),
		ListFetchDuration:     f.histogramVec("list", "fetch_duration_seconds", "List data fetch latency.", backendDurationBuckets, "view_id"),
		FilterSessionsActive:  f.gauge("filter", "sessions_active", "Open filter sessions."),
		FilterSessionsExpired: f.counter("filter", "sessions_expired_total", "Filter sessions removed by expiry."),

		OptionResolutionsTotal: f.counterVec("option", "resolutions_total", "Option resolutions by outcome (success, fallback, superseded, static).", "capability", "outcome"),
		OptionCacheHitsTotal:   f.counterVec("option", "cache_hits_total", "Option cache hits.", "source_id"),
		OptionCacheMissesTotal: f.counterVec("option", "cache_misses_total", "Option cache misses.", "source_id"),
		OptionWarmupRunsTotal:  f.counterVec("option", "warmup_runs_total", "Option cache warm-up fetches per source.", "source_id", "status"),

		BackendRequestsTotal:       f.counterVec("backend", "requests_total", "Backend service requests.", "service_id", "operation_id", "status"),
		BackendRequestDuration:     f.histogramVec("backend", "request_duration_seconds", "Backend request latency.", backendDurationBuckets, "service_id"),
		BackendCircuitBreakerState: f.gaugeVec("backend", "circuit_breaker_state", "Circuit breaker state (0=closed, 1=half-open, 2=open).", "service_id"),
		BackendRetriesTotal:        f.counterVec("backend", "retries_total", "Backend request retries.", "service_id"),

		DefinitionReloadTotal:    f.counterVec("definition", "reload_total", "Definition loads by status.", "status"),
		DefinitionsLoaded:        f.gauge("", "definitions_loaded", "Loaded view definitions."),
		OpenAPIOperationsIndexed: f.gaugeVec("openapi", "operations_indexed", "Indexed OpenAPI operations.", "service_id"),
	}
}

// factory builds instruments under the service namespace and registers
// each as it is made.
type factory struct {
	reg prometheus.Registerer
}

func register[C prometheus.Collector](reg prometheus.Registerer, c C) C {
	reg.MustRegister(c)
	return c
}

func (f factory) counter(subsystem, name, help string) prometheus.Counter {
	return register(f.reg, prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: namespace, Subsystem: subsystem, Name: name, Help: help,
	}))
}

func (f factory) counterVec(subsystem, name, help string, labels ...string) *prometheus.CounterVec {
	return register(f.reg, prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace, Subsystem: subsystem, Name: name, Help: help,
	}, labels))
}

func (f factory) gauge(subsystem, name, help string) prometheus.Gauge {
	return register(f.reg, prometheus.NewGauge(prometheus.GaugeOpts{
		Namespace: namespace, Subsystem: subsystem, Name: name, Help: help,
	}))
}

func (f factory) gaugeVec(subsystem, name, help string, labels ...string) *prometheus.GaugeVec {
	return register(f.reg, prometheus.NewGaugeVec(prometheus.GaugeOpts{
		Namespace: namespace, Subsystem: subsystem, Name: name, Help: help,
	}, labels))
}

func (f factory) histogramVec(subsystem, name, help string, buckets []float64, labels ...string) *prometheus.HistogramVec {
	return register(f.reg, prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: namespace, Subsystem: subsystem, Name: name, Help: help, Buckets: buckets,
	}, labels))
}

// RecordHTTPRequest records HTTP request metrics.
func (m *Metrics) RecordHTTPRequest(method, pathPattern string, status int, duration time.Duration, reqSize, respSize int) {
	statusStr := strconv.Itoa(status)
	m.HTTPRequestsTotal.WithLabelValues(method, pathPattern, statusStr).Inc()
	m.HTTPRequestDuration.WithLabelValues(method, pathPattern).Observe(duration.Seconds())
	m.HTTPRequestSizeBytes.WithLabelValues(method, pathPattern).Observe(float64(reqSize))
	m.HTTPResponseSizeBytes.WithLabelValues(method, pathPattern).Observe(float64(respSize))
}

// RecordFilterCommit records a committed filter change. Trigger is one of
// submit, blur, change or clear.
func (m *Metrics) RecordFilterCommit(viewID, trigger string) {
	m.FilterCommitsTotal.WithLabelValues(viewID, trigger).Inc()
}

// RecordListFetch records a list data fetch.
func (m *Metrics) RecordListFetch(viewID, outcome string, duration time.Duration) {
	m.ListFetchesTotal.WithLabelValues(viewID, outcome).Inc()
	m.ListFetchDuration.WithLabelValues(viewID).Observe(duration.Seconds())
}

// SetFilterSessionsActive sets the number of open filter sessions.
func (m *Metrics) SetFilterSessionsActive(count int) {
	m.FilterSessionsActive.Set(float64(count))
}

// RecordFilterSessionsExpired records sessions removed by expiry.
func (m *Metrics) RecordFilterSessionsExpired(count int) {
	m.FilterSessionsExpired.Add(float64(count))
}

// RecordOptionResolution records the outcome of one option resolution.
func (m *Metrics) RecordOptionResolution(capability, outcome string) {
	m.OptionResolutionsTotal.WithLabelValues(capability, outcome).Inc()
}

// RecordOptionCacheHit records an option cache hit.
func (m *Metrics) RecordOptionCacheHit(sourceID string) {
	m.OptionCacheHitsTotal.WithLabelValues(sourceID).Inc()
}

// RecordOptionCacheMiss records an option cache miss.
func (m *Metrics) RecordOptionCacheMiss(sourceID string) {
	m.OptionCacheMissesTotal.WithLabelValues(sourceID).Inc()
}

// RecordOptionWarmup records one warm-up fetch of an option source.
func (m *Metrics) RecordOptionWarmup(sourceID, status string) {
	m.OptionWarmupRunsTotal.WithLabelValues(sourceID, status).Inc()
}

// RecordBackendRequest records a backend service request.
func (m *Metrics) RecordBackendRequest(serviceID, operationID string, status int, duration time.Duration) {
	m.BackendRequestsTotal.WithLabelValues(serviceID, operationID, strconv.Itoa(status)).Inc()
	m.BackendRequestDuration.WithLabelValues(serviceID).Observe(duration.Seconds())
}

// SetBackendCircuitBreakerState sets the circuit breaker state for a service.
// State: 0=closed, 1=half-open, 2=open.
func (m *Metrics) SetBackendCircuitBreakerState(serviceID string, state float64) {
	m.BackendCircuitBreakerState.WithLabelValues(serviceID).Set(state)
}

// RecordBackendRetry records a backend request retry.
func (m *Metrics) RecordBackendRetry(serviceID string) {
	m.BackendRetriesTotal.WithLabelValues(serviceID).Inc()
}

// RecordDefinitionReload records a definition reload.
func (m *Metrics) RecordDefinitionReload(status string) {
	m.DefinitionReloadTotal.WithLabelValues(status).Inc()
}

// SetDefinitionsLoaded sets the number of loaded definitions.
func (m *Metrics) SetDefinitionsLoaded(count float64) {
	m.DefinitionsLoaded.Set(count)
}

// SetOpenAPIOperationsIndexed sets the number of indexed OpenAPI operations.
func (m *Metrics) SetOpenAPIOperationsIndexed(serviceID string, count float64) {
	m.OpenAPIOperationsIndexed.WithLabelValues(serviceID).Set(count)
}

// MetricsMiddleware returns HTTP middleware that records request metrics using
// chi's route pattern (not the actual URL path) to avoid label cardinality
// explosion.
func (m *Metrics) MetricsMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		rec := NewStatusRecorder(w)
		next.ServeHTTP(rec, r)

		m.RecordHTTPRequest(r.Method, routePattern(r), rec.Status, time.Since(start),
			max(int(r.ContentLength), 0), rec.Bytes)
	})
}

// Handler returns the Prometheus HTTP handler for the /metrics endpoint.
func Handler() http.Handler {
	return promhttp.Handler()
}

// routePattern extracts chi's route pattern from the request context.
// Falls back to the raw URL path if no pattern is found.
func routePattern(r *http.Request) string {
	rctx := chi.RouteContext(r.Context())
	if rctx == nil {
		return r.URL.Path
	}
	pattern := strings.Join(rctx.RoutePatterns, "")
	// chi route patterns have trailing /*, remove it.
	pattern = strings.TrimSuffix(pattern, "/*")
	if pattern == "" {
		return r.URL.Path
	}
	return pattern
}
