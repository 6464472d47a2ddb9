package providers

import (
	"deckpack/internal/structures"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"time"
)

type MetricsProviderInterface interface {
	IncRequestsTotal(endpoint string, status int)
	ObserveRequestDuration(endpoint string, duration time.Duration)
	IncCacheHits()
	IncCacheMisses()
	IncExports(outcome string)
	IncImports(outcome string)
	ObserveCodecDuration(operation string, duration time.Duration)
	AddNotesSkipped(count int)
	AddMediaBytes(count int64)
}

type MetricsProvider struct {
	requestsTotal   *prometheus.CounterVec
	requestDuration *prometheus.HistogramVec
	cacheHits       prometheus.Counter
	cacheMisses     prometheus.Counter
	exportsTotal    *prometheus.CounterVec
	importsTotal    *prometheus.CounterVec
	codecDuration   *prometheus.HistogramVec
	notesSkipped    prometheus.Counter
	mediaBytes      prometheus.Counter
}

func (m *MetricsProvider) IncRequestsTotal(endpoint string, status int) {
	m.requestsTotal.WithLabelValues(endpoint, httpStatusBucket(status)).Inc()
}

func (m *MetricsProvider) ObserveRequestDuration(endpoint string, duration time.Duration) {
	m.requestDuration.WithLabelValues(endpoint).Observe(duration.Seconds())
}

func (m *MetricsProvider) IncCacheHits() {
	m.cacheHits.Inc()
}

func (m *MetricsProvider) IncCacheMisses() {
	m.cacheMisses.Inc()
}

func (m *MetricsProvider) IncExports(outcome string) {
	m.exportsTotal.WithLabelValues(outcome).Inc()
}

func (m *MetricsProvider) IncImports(outcome string) {
	m.importsTotal.WithLabelValues(outcome).Inc()
}

func (m *MetricsProvider) ObserveCodecDuration(operation string, duration time.Duration) {
	m.codecDuration.WithLabelValues(operation).Observe(duration.Seconds())
}

func (m *MetricsProvider) AddNotesSkipped(count int) {
	if count > 0 {
		m.notesSkipped.Add(float64(count))
	}
}

func (m *MetricsProvider) AddMediaBytes(count int64) {
	if count > 0 {
		m.mediaBytes.Add(float64(count))
	}
}

func httpStatusBucket(code int) string {
	switch {
	case code < 200:
		return "1xx"
	case code < 300:
		return "2xx"
	case code < 400:
		return "3xx"
	case code < 500:
		return "4xx"
	default:
		return "5xx"
	}
}

func NewMetricsProvider(conf *structures.Config) MetricsProviderInterface {
	if !conf.Metrics.Enabled {
		return &noopMetrics{}
	}

	return &MetricsProvider{
		requestsTotal: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "deckpack_requests_total",
			Help: "Total number of HTTP requests",
		}, []string{"endpoint", "status"}),

		requestDuration: promauto.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "deckpack_request_duration_seconds",
			Help:    "HTTP request duration in seconds",
			Buckets: prometheus.DefBuckets,
		}, []string{"endpoint"}),

		cacheHits: promauto.NewCounter(prometheus.CounterOpts{
			Name: "deckpack_cache_hits_total",
			Help: "Total number of cache hits",
		}),

		cacheMisses: promauto.NewCounter(prometheus.CounterOpts{
			Name: "deckpack_cache_misses_total",
			Help: "Total number of cache misses",
		}),

		exportsTotal: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "deckpack_exports_total",
			Help: "Deck exports by outcome",
		}, []string{"outcome"}),

		importsTotal: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "deckpack_imports_total",
			Help: "Deck imports by outcome",
		}, []string{"outcome"}),

		codecDuration: promauto.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "deckpack_codec_duration_seconds",
			Help:    "Duration of encode and decode calls in seconds",
			Buckets: prometheus.DefBuckets,
		}, []string{"operation"}),

		notesSkipped: promauto.NewCounter(prometheus.CounterOpts{
			Name: "deckpack_notes_skipped_total",
			Help: "Notes skipped as malformed during import",
		}),

		mediaBytes: promauto.NewCounter(prometheus.CounterOpts{
			Name: "deckpack_media_bytes_total",
			Help: "Media bytes packed into exported archives",
		}),
	}
}

// noopMetrics is a no-op implementation for when metrics are disabled.
type noopMetrics struct{}

func (n *noopMetrics) IncRequestsTotal(_ string, _ int)                 {}
func (n *noopMetrics) ObserveRequestDuration(_ string, _ time.Duration) {}
func (n *noopMetrics) IncCacheHits()                                    {}
func (n *noopMetrics) IncCacheMisses()                                  {}
func (n *noopMetrics) IncExports(_ string)                              {}
func (n *noopMetrics) IncImports(_ string)                              {}
func (n *noopMetrics) ObserveCodecDuration(_ string, _ time.Duration)   {}
func (n *noopMetrics) AddNotesSkipped(_ int)                            {}
func (n *noopMetrics) AddMediaBytes(_ int64)                            {}
