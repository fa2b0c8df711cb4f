// Package metrics provides Prometheus metrics for the job recommendation service.
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const (
	defaultRefreshInterval = 10 * time.Second
)

// Stage names used as the "stage" label.
const (
	StageValidate = "validate"
	StageRecall   = "recall"
	StageFilter   = "filter"
	StageRank     = "rank"
	StageFuse     = "fuse"
	StageTotal    = "total"
)

// Manager owns every Prometheus collector of the service.
type Manager struct {
	namespace        string
	subsystem        string
	histogramBuckets []float64
	enabled          bool
	refreshInterval  time.Duration
	customLabels     map[string]string
	metricPrefix     string
	registry         prometheus.Registerer

	// Funnel
	requests        *prometheus.CounterVec
	stageLatency    *prometheus.HistogramVec
	funnelSize      *prometheus.HistogramVec
	coldStarts      prometheus.Counter
	proxyEmbeddings prometheus.Counter
	degraded        *prometheus.CounterVec
	filteredEmpty   prometheus.Counter
	neutralScores   prometheus.Counter

	// Knowledge store
	ksQueries      *prometheus.CounterVec
	ksErrors       *prometheus.CounterVec
	ksRetries      *prometheus.CounterVec
	ksQueryLatency *prometheus.HistogramVec
	cacheHits      prometheus.Counter
	cacheMisses    prometheus.Counter

	// Index
	indexSize    prometheus.Gauge
	indexDropped prometheus.Gauge
	indexSwaps   prometheus.Counter

	// HTTP
	httpRequests *prometheus.CounterVec
	httpDuration *prometheus.HistogramVec

	// System
	systemMemoryUsage    prometheus.Gauge
	systemGoroutineCount prometheus.Gauge
	systemGCPauseTime    prometheus.Histogram
}

var globalManager *Manager //nolint:gochecknoglobals // singleton metrics manager

// Custom registry to avoid default Go metrics.
var customRegistry = prometheus.NewRegistry() //nolint:gochecknoglobals // metrics registry

func init() { //nolint:gochecknoinits // global metrics setup
	globalManager = NewManager(WithPrometheusRegistry(customRegistry))
}

// NewManager creates a metrics manager registered on the configured registry.
func NewManager(opts ...Option) *Manager {
	m := &Manager{
		namespace:        "jobrec",
		subsystem:        "recommender",
		histogramBuckets: []float64{0.5, 1, 2.5, 5, 10, 25, 50, 100, 250, 500, 1000, 2500},
		enabled:          true,
		refreshInterval:  defaultRefreshInterval,
		customLabels:     make(map[string]string),
		registry:         prometheus.DefaultRegisterer,
	}
	for _, opt := range opts {
		opt(m)
	}
	m.initializeMetrics()
	return m
}

func (m *Manager) name(n string) string {
	return m.metricPrefix + n
}

func (m *Manager) initializeMetrics() { //nolint:funlen // one place for every collector
	auto := promauto.With(m.registry)
	constLabels := prometheus.Labels(m.customLabels)

	m.requests = auto.NewCounterVec(prometheus.CounterOpts{
		Namespace: m.namespace, Subsystem: m.subsystem, ConstLabels: constLabels,
		Name: m.name("requests_total"),
		Help: "Recommendation requests by fusion policy and outcome",
	}, []string{"policy", "outcome"})

	m.stageLatency = auto.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: m.namespace, Subsystem: m.subsystem, ConstLabels: constLabels,
		Name:    m.name("stage_latency_milliseconds"),
		Help:    "Latency of each funnel stage in milliseconds",
		Buckets: m.histogramBuckets,
	}, []string{"stage"})

	m.funnelSize = auto.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: m.namespace, Subsystem: m.subsystem, ConstLabels: constLabels,
		Name:    m.name("funnel_items"),
		Help:    "Number of items leaving each funnel stage",
		Buckets: prometheus.ExponentialBuckets(1, 2, 12),
	}, []string{"stage"})

	m.coldStarts = auto.NewCounter(prometheus.CounterOpts{
		Namespace: m.namespace, Subsystem: m.subsystem, ConstLabels: constLabels,
		Name: m.name("cold_starts_total"),
		Help: "Requests served without any query embedding",
	})

	m.proxyEmbeddings = auto.NewCounter(prometheus.CounterOpts{
		Namespace: m.namespace, Subsystem: m.subsystem, ConstLabels: constLabels,
		Name: m.name("proxy_embeddings_total"),
		Help: "Query embeddings synthesized from feature embeddings",
	})

	m.degraded = auto.NewCounterVec(prometheus.CounterOpts{
		Namespace: m.namespace, Subsystem: m.subsystem, ConstLabels: constLabels,
		Name: m.name("degraded_total"),
		Help: "Degradations by reason (deadline, skill_overlap, attributes)",
	}, []string{"reason"})

	m.filteredEmpty = auto.NewCounter(prometheus.CounterOpts{
		Namespace: m.namespace, Subsystem: m.subsystem, ConstLabels: constLabels,
		Name: m.name("filter_short_circuits_total"),
		Help: "Requests whose location filter removed every recalled item",
	})

	m.neutralScores = auto.NewCounter(prometheus.CounterOpts{
		Namespace: m.namespace, Subsystem: m.subsystem, ConstLabels: constLabels,
		Name: m.name("neutral_scores_total"),
		Help: "Items that received the neutral rank score",
	})

	m.ksQueries = auto.NewCounterVec(prometheus.CounterOpts{
		Namespace: m.namespace, Subsystem: "knowledge", ConstLabels: constLabels,
		Name: m.name("queries_total"),
		Help: "Knowledge store queries by operation",
	}, []string{"op"})

	m.ksErrors = auto.NewCounterVec(prometheus.CounterOpts{
		Namespace: m.namespace, Subsystem: "knowledge", ConstLabels: constLabels,
		Name: m.name("errors_total"),
		Help: "Knowledge store queries that failed after retries",
	}, []string{"op"})

	m.ksRetries = auto.NewCounterVec(prometheus.CounterOpts{
		Namespace: m.namespace, Subsystem: "knowledge", ConstLabels: constLabels,
		Name: m.name("retries_total"),
		Help: "Knowledge store retry attempts by operation",
	}, []string{"op"})

	m.ksQueryLatency = auto.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: m.namespace, Subsystem: "knowledge", ConstLabels: constLabels,
		Name:    m.name("query_latency_milliseconds"),
		Help:    "Knowledge store query latency in milliseconds",
		Buckets: m.histogramBuckets,
	}, []string{"op"})

	m.cacheHits = auto.NewCounter(prometheus.CounterOpts{
		Namespace: m.namespace, Subsystem: "knowledge", ConstLabels: constLabels,
		Name: m.name("cache_hits_total"),
		Help: "Item attribute cache hits",
	})

	m.cacheMisses = auto.NewCounter(prometheus.CounterOpts{
		Namespace: m.namespace, Subsystem: "knowledge", ConstLabels: constLabels,
		Name: m.name("cache_misses_total"),
		Help: "Item attribute cache misses",
	})

	m.indexSize = auto.NewGauge(prometheus.GaugeOpts{
		Namespace: m.namespace, Subsystem: "index", ConstLabels: constLabels,
		Name: m.name("items"),
		Help: "Items in the active vector index",
	})

	m.indexDropped = auto.NewGauge(prometheus.GaugeOpts{
		Namespace: m.namespace, Subsystem: "index", ConstLabels: constLabels,
		Name: m.name("dropped_items"),
		Help: "Items rejected by the last index build (bad dimension or non-finite values)",
	})

	m.indexSwaps = auto.NewCounter(prometheus.CounterOpts{
		Namespace: m.namespace, Subsystem: "index", ConstLabels: constLabels,
		Name: m.name("swaps_total"),
		Help: "Index replacements published",
	})

	m.httpRequests = auto.NewCounterVec(prometheus.CounterOpts{
		Namespace: m.namespace, Subsystem: "http", ConstLabels: constLabels,
		Name: m.name("requests_total"),
		Help: "HTTP requests served on the ops listener",
	}, []string{"endpoint", "method", "status"})

	m.httpDuration = auto.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: m.namespace, Subsystem: "http", ConstLabels: constLabels,
		Name:    m.name("request_duration_milliseconds"),
		Help:    "HTTP request duration in milliseconds",
		Buckets: m.histogramBuckets,
	}, []string{"endpoint", "method"})

	m.systemMemoryUsage = auto.NewGauge(prometheus.GaugeOpts{
		Namespace: m.namespace, Subsystem: "system", ConstLabels: constLabels,
		Name: m.name("memory_usage_bytes"),
		Help: "Current memory usage in bytes",
	})

	m.systemGoroutineCount = auto.NewGauge(prometheus.GaugeOpts{
		Namespace: m.namespace, Subsystem: "system", ConstLabels: constLabels,
		Name: m.name("goroutines"),
		Help: "Current number of goroutines",
	})

	m.systemGCPauseTime = auto.NewHistogram(prometheus.HistogramOpts{
		Namespace: m.namespace, Subsystem: "system", ConstLabels: constLabels,
		Name:    m.name("gc_pause_milliseconds"),
		Help:    "Average GC pause time in milliseconds",
		Buckets: m.histogramBuckets,
	})
}

// Enabled reports whether recording is active on the global manager.
func Enabled() bool {
	return globalManager.enabled
}

// Funnel

// RecordRequest counts a finished request.
func RecordRequest(policy, outcome string) {
	if !globalManager.enabled {
		return
	}
	globalManager.requests.WithLabelValues(policy, outcome).Inc()
}

// RecordStageLatency records the duration of one funnel stage.
func RecordStageLatency(stage string, d time.Duration) {
	if !globalManager.enabled {
		return
	}
	globalManager.stageLatency.WithLabelValues(stage).Observe(float64(d) / float64(time.Millisecond))
}

// RecordFunnelSize records how many items left a stage.
func RecordFunnelSize(stage string, n int) {
	if !globalManager.enabled {
		return
	}
	globalManager.funnelSize.WithLabelValues(stage).Observe(float64(n))
}

// RecordColdStart counts a request without a query embedding.
func RecordColdStart() {
	if globalManager.enabled {
		globalManager.coldStarts.Inc()
	}
}

// RecordProxyEmbedding counts a query embedding built from features.
func RecordProxyEmbedding() {
	if globalManager.enabled {
		globalManager.proxyEmbeddings.Inc()
	}
}

// RecordDegraded counts a degradation by reason.
func RecordDegraded(reason string) {
	if globalManager.enabled {
		globalManager.degraded.WithLabelValues(reason).Inc()
	}
}

// RecordFilterShortCircuit counts a request emptied by the location filter.
func RecordFilterShortCircuit() {
	if globalManager.enabled {
		globalManager.filteredEmpty.Inc()
	}
}

// RecordNeutralScores counts items that were assigned the neutral score.
func RecordNeutralScores(n int) {
	if globalManager.enabled && n > 0 {
		globalManager.neutralScores.Add(float64(n))
	}
}

// Knowledge store

// RecordKnowledgeQuery counts a knowledge store query and its latency.
func RecordKnowledgeQuery(op string, d time.Duration) {
	if !globalManager.enabled {
		return
	}
	globalManager.ksQueries.WithLabelValues(op).Inc()
	globalManager.ksQueryLatency.WithLabelValues(op).Observe(float64(d) / float64(time.Millisecond))
}

// RecordKnowledgeError counts a query that failed for good.
func RecordKnowledgeError(op string) {
	if globalManager.enabled {
		globalManager.ksErrors.WithLabelValues(op).Inc()
	}
}

// RecordKnowledgeRetry counts a retry attempt.
func RecordKnowledgeRetry(op string) {
	if globalManager.enabled {
		globalManager.ksRetries.WithLabelValues(op).Inc()
	}
}

// RecordCacheHit counts an item attribute cache hit.
func RecordCacheHit() {
	if globalManager.enabled {
		globalManager.cacheHits.Inc()
	}
}

// RecordCacheMiss counts an item attribute cache miss.
func RecordCacheMiss() {
	if globalManager.enabled {
		globalManager.cacheMisses.Inc()
	}
}

// Index

// UpdateIndexSize sets the active index size and the dropped count of its build.
func UpdateIndexSize(items, dropped int) {
	if !globalManager.enabled {
		return
	}
	globalManager.indexSize.Set(float64(items))
	globalManager.indexDropped.Set(float64(dropped))
}

// RecordIndexSwap counts a published index replacement.
func RecordIndexSwap() {
	if globalManager.enabled {
		globalManager.indexSwaps.Inc()
	}
}

// HTTP

// RecordHTTPRequest counts one served HTTP request and its duration.
func RecordHTTPRequest(endpoint, method, status string, d time.Duration) {
	if !globalManager.enabled {
		return
	}
	globalManager.httpRequests.WithLabelValues(endpoint, method, status).Inc()
	globalManager.httpDuration.WithLabelValues(endpoint, method).Observe(float64(d.Microseconds()) / 1000)
}

// System

// UpdateSystemMemoryUsage sets the memory usage in bytes.
func UpdateSystemMemoryUsage(bytes uint64) {
	globalManager.systemMemoryUsage.Set(float64(bytes))
}

// UpdateSystemGoroutineCount sets the number of goroutines.
func UpdateSystemGoroutineCount(count int) {
	globalManager.systemGoroutineCount.Set(float64(count))
}

// RecordSystemGCPauseTime records GC pause time in milliseconds.
func RecordSystemGCPauseTime(pauseMs float64) {
	globalManager.systemGCPauseTime.Observe(pauseMs)
}

// GetRegistry returns the custom Prometheus registry used by our metrics.
func GetRegistry() *prometheus.Registry {
	return customRegistry
}
