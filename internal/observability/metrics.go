package observability

import (
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics bundles every Prometheus collector the application exposes.
// It owns its registry, so tests can build isolated instances without
// collector name collisions.
type Metrics struct {
	registry *prometheus.Registry

	httpRequests *prometheus.CounterVec
	httpDuration *prometheus.HistogramVec

	uploads *prometheus.CounterVec

	cacheHits          *prometheus.CounterVec
	cacheMisses        *prometheus.CounterVec
	cacheRevalidations *prometheus.CounterVec
	cacheFetchErrors   *prometheus.CounterVec
}

// NewMetrics creates and registers all collectors.
func NewMetrics() *Metrics {
	reg := prometheus.NewRegistry()
	factory := promauto.With(reg)

	return &Metrics{
		registry: reg,
		httpRequests: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: "fisdash",
			Name:      "http_requests_total",
			Help:      "HTTP requests by method, route and status code.",
		}, []string{"method", "route", "status"}),
		httpDuration: factory.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: "fisdash",
			Name:      "http_request_duration_seconds",
			Help:      "HTTP request latency by route.",
			Buckets:   prometheus.DefBuckets,
		}, []string{"route"}),
		uploads: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: "fisdash",
			Name:      "uploads_total",
			Help:      "Receipt uploads by outcome code.",
		}, []string{"outcome"}),
		cacheHits: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: "fisdash",
			Subsystem: "cache",
			Name:      "hits_total",
			Help:      "Cache reads served fresh from memory.",
		}, []string{"resource"}),
		cacheMisses: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: "fisdash",
			Subsystem: "cache",
			Name:      "misses_total",
			Help:      "Cache reads that had no resolved value.",
		}, []string{"resource"}),
		cacheRevalidations: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: "fisdash",
			Subsystem: "cache",
			Name:      "revalidations_total",
			Help:      "Background refetches of stale entries.",
		}, []string{"resource"}),
		cacheFetchErrors: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: "fisdash",
			Subsystem: "cache",
			Name:      "fetch_errors_total",
			Help:      "Fetches that failed after all retries.",
		}, []string{"resource"}),
	}
}

// Handler returns the /metrics scrape handler.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

// ObserveHTTP records one finished HTTP request.
func (m *Metrics) ObserveHTTP(method, route string, status int, elapsed time.Duration) {
	m.httpRequests.WithLabelValues(method, route, strconv.Itoa(status)).Inc()
	m.httpDuration.WithLabelValues(route).Observe(elapsed.Seconds())
}

// UploadCompleted records one upload attempt. outcome is "success" or
// the failure code.
func (m *Metrics) UploadCompleted(outcome string) {
	m.uploads.WithLabelValues(outcome).Inc()
}

// CacheHit implements cache.MetricsRecorder.
func (m *Metrics) CacheHit(resource string) {
	m.cacheHits.WithLabelValues(resource).Inc()
}

// CacheMiss implements cache.MetricsRecorder.
func (m *Metrics) CacheMiss(resource string) {
	m.cacheMisses.WithLabelValues(resource).Inc()
}

// CacheRevalidation implements cache.MetricsRecorder.
func (m *Metrics) CacheRevalidation(resource string) {
	m.cacheRevalidations.WithLabelValues(resource).Inc()
}

// CacheFetchError implements cache.MetricsRecorder.
func (m *Metrics) CacheFetchError(resource string) {
	m.cacheFetchErrors.WithLabelValues(resource).Inc()
}
