package observability

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics holds every Prometheus metric the daemon exposes on /metrics.
type Metrics struct {
	// Translation metrics
	TranslationRequests  *prometheus.CounterVec
	TranslationLatency   *prometheus.HistogramVec
	TranslationErrors    *prometheus.CounterVec
	TranslationCacheHits *prometheus.CounterVec

	// Cache metrics
	CacheHits      *prometheus.CounterVec
	CacheMisses    *prometheus.CounterVec
	CacheEvictions *prometheus.CounterVec
	CacheSize      *prometheus.GaugeVec

	// Database metrics (sqlite backend only; text backend has no query surface)
	DBQueryDuration *prometheus.HistogramVec
	DBErrors        *prometheus.CounterVec

	// HTTP metrics
	HTTPRequestsTotal   *prometheus.CounterVec
	HTTPRequestDuration *prometheus.HistogramVec
	HTTPResponseSize    *prometheus.HistogramVec
}

// NewMetrics creates and registers every metric. All names follow
// transbasket_<subsystem>_<metric>_<unit>.
func NewMetrics() *Metrics {
	return &Metrics{
		TranslationRequests: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "transbasket_translation_requests_total",
				Help: "Total number of translation requests",
			},
			[]string{"lang_pair", "status"}, // status: success, cached (failures go to TranslationErrors)
		),

		TranslationLatency: promauto.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "transbasket_translation_latency_milliseconds",
				Help:    "Translation request latency in milliseconds",
				Buckets: []float64{50, 100, 170, 250, 500, 1000, 2000},
			},
			[]string{"lang_pair"},
		),

		TranslationErrors: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "transbasket_translation_errors_total",
				Help: "Total number of translation errors",
			},
			[]string{"error_type"},
		),

		TranslationCacheHits: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "transbasket_translation_cache_hits_total",
				Help: "Total number of translation cache hits",
			},
			[]string{"lang_pair"},
		),

		CacheHits: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "transbasket_cache_hits_total",
				Help: "Total number of cache hits",
			},
			[]string{"backend"}, // text, sqlite
		),

		CacheMisses: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "transbasket_cache_misses_total",
				Help: "Total number of cache misses",
			},
			[]string{"backend"},
		),

		CacheEvictions: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "transbasket_cache_evictions_total",
				Help: "Total number of entries removed by the background cleanup sweep",
			},
			[]string{"backend"},
		),

		CacheSize: promauto.NewGaugeVec(
			prometheus.GaugeOpts{
				Name: "transbasket_cache_size_entries",
				Help: "Current number of entries in the cache",
			},
			[]string{"backend"},
		),

		DBQueryDuration: promauto.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "transbasket_db_query_duration_milliseconds",
				Help:    "SQLite backend query duration in milliseconds",
				Buckets: []float64{1, 5, 10, 25, 50, 100, 250, 500},
			},
			[]string{"operation"},
		),

		DBErrors: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "transbasket_db_errors_total",
				Help: "Total number of SQLite backend errors",
			},
			[]string{"operation"},
		),

		HTTPRequestsTotal: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "transbasket_http_requests_total",
				Help: "Total number of HTTP requests",
			},
			[]string{"method", "path", "status"},
		),

		HTTPRequestDuration: promauto.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "transbasket_http_request_duration_milliseconds",
				Help:    "HTTP request duration in milliseconds",
				Buckets: []float64{10, 50, 100, 250, 500, 1000, 2500, 5000},
			},
			[]string{"method", "path"},
		),

		HTTPResponseSize: promauto.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "transbasket_http_response_size_bytes",
				Help:    "HTTP response size in bytes",
				Buckets: []float64{100, 1000, 10000, 100000, 1000000},
			},
			[]string{"method", "path"},
		),
	}
}
