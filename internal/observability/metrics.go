package observability

import (
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics collects the Prometheus metrics of the API process.
type Metrics struct {
	registry        *prometheus.Registry
	handler         http.Handler
	requestsTotal   *prometheus.CounterVec
	requestDuration *prometheus.HistogramVec
	cacheHits       *prometheus.CounterVec
	cacheMisses     *prometheus.CounterVec
	cacheErrors     *prometheus.CounterVec
	cacheLoad       *prometheus.HistogramVec
}

// NewMetrics initialises the registry with the HTTP and cache collectors.
func NewMetrics() *Metrics {
	registry := prometheus.NewRegistry()
	requests := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "contas_http_requests_total",
		Help: "HTTP requests by route and status code.",
	}, []string{"route", "code"})
	duration := prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "contas_http_request_duration_seconds",
		Help:    "HTTP request duration per route.",
		Buckets: prometheus.DefBuckets,
	}, []string{"route"})
	hits := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "contas_cache_hits_total",
		Help: "Cache-aside reads served from the cache, by key family.",
	}, []string{"family"})
	misses := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "contas_cache_miss_total",
		Help: "Cache-aside reads that fell through to the database, by key family.",
	}, []string{"family"})
	cacheErrors := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "contas_cache_errors_total",
		Help: "Cache store failures by operation; reads fail open to the database.",
	}, []string{"op"})
	load := prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "contas_cache_load_duration_seconds",
		Help:    "Time spent loading a missed cache entry from the database.",
		Buckets: prometheus.DefBuckets,
	}, []string{"family"})
	registry.MustRegister(requests, duration, hits, misses, cacheErrors, load)
	return &Metrics{
		registry:        registry,
		handler:         promhttp.HandlerFor(registry, promhttp.HandlerOpts{}),
		requestsTotal:   requests,
		requestDuration: duration,
		cacheHits:       hits,
		cacheMisses:     misses,
		cacheErrors:     cacheErrors,
		cacheLoad:       load,
	}
}

// Handler returns the http.Handler for the /metrics endpoint.
func (m *Metrics) Handler() http.Handler {
	if m == nil {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			http.Error(w, http.StatusText(http.StatusServiceUnavailable), http.StatusServiceUnavailable)
		})
	}
	return m.handler
}

// Middleware records request count and latency per route pattern.
func (m *Metrics) Middleware(next http.Handler) http.Handler {
	if m == nil {
		return next
	}
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		recorder := statusRecorder{ResponseWriter: w, status: http.StatusOK}
		next.ServeHTTP(&recorder, r)
		route := routePattern(r)
		m.requestsTotal.WithLabelValues(route, strconv.Itoa(recorder.status)).Inc()
		m.requestDuration.WithLabelValues(route).Observe(time.Since(start).Seconds())
	})
}

// Registerer exposes the registry for additional collectors.
func (m *Metrics) Registerer() prometheus.Registerer {
	if m == nil {
		return prometheus.DefaultRegisterer
	}
	return m.registry
}

// CacheHit counts a read served from the cache.
func (m *Metrics) CacheHit(family string) {
	if m == nil {
		return
	}
	m.cacheHits.WithLabelValues(family).Inc()
}

// CacheMiss counts a read that had to load from the database.
func (m *Metrics) CacheMiss(family string) {
	if m == nil {
		return
	}
	m.cacheMisses.WithLabelValues(family).Inc()
}

// CacheError counts a failed cache operation (get, set, delete, decode).
func (m *Metrics) CacheError(op string) {
	if m == nil {
		return
	}
	m.cacheErrors.WithLabelValues(op).Inc()
}

// ObserveCacheLoad records how long a miss took to load.
func (m *Metrics) ObserveCacheLoad(family string, d time.Duration) {
	if m == nil {
		return
	}
	m.cacheLoad.WithLabelValues(family).Observe(d.Seconds())
}

type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (r *statusRecorder) WriteHeader(status int) {
	r.status = status
	r.ResponseWriter.WriteHeader(status)
}

func routePattern(r *http.Request) string {
	if routeCtx := chi.RouteContext(r.Context()); routeCtx != nil {
		if pattern := routeCtx.RoutePattern(); pattern != "" {
			return pattern
		}
	}
	return "unknown"
}
