// Package metrics provides Prometheus metrics for the tailor personalization service.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Breaker states reported by UpdateBreakerState.
const (
	BreakerClosed   = 0
	BreakerHalfOpen = 1
	BreakerOpen     = 2
)

// Manager manages all Prometheus metrics for the tailor service.
type Manager struct {
	namespace        string
	subsystem        string
	histogramBuckets []float64
	constLabels      map[string]string
	registry         prometheus.Registerer

	// Event ingestion
	eventsAccepted  prometheus.Counter
	eventsDuplicate prometheus.Counter
	eventsApplied   prometheus.Counter
	eventsRejected  *prometheus.CounterVec

	// Queue
	queueSize              prometheus.Gauge
	queueCapacity          prometheus.Gauge
	queueUtilization       prometheus.Gauge
	queueEnqueueRate       prometheus.Counter
	queueDequeueRate       prometheus.Counter
	queueEnqueueErrors     prometheus.Counter
	queueProcessingLatency prometheus.Histogram

	// Workers
	workerCount             prometheus.Gauge
	workerActiveCount       prometheus.Gauge
	workerIdleCount         prometheus.Gauge
	workerProcessingLatency prometheus.Histogram
	workerErrorRate         prometheus.Counter

	// Ranking
	rankingLatency  *prometheus.HistogramVec
	pagesServed     *prometheus.CounterVec
	rankingCounters *prometheus.CounterVec

	// Candidate sources
	sourceRequests *prometheus.CounterVec
	sourceLatency  *prometheus.HistogramVec
	breakerState   *prometheus.GaugeVec

	// Profiles
	profileBytes        prometheus.Histogram
	profileCompactions  *prometheus.CounterVec
	profileStoreLatency *prometheus.HistogramVec
	profileStoreErrors  *prometheus.CounterVec
	poolCacheLookups    *prometheus.CounterVec

	// HTTP
	httpRequests        *prometheus.CounterVec
	httpRequestDuration *prometheus.HistogramVec

	// Errors
	errorRateByComponent *prometheus.CounterVec
	errorRateByType      *prometheus.CounterVec
	errorRateByEndpoint  *prometheus.CounterVec

	// System
	systemMemoryUsage    prometheus.Gauge
	systemGoroutineCount prometheus.Gauge
	systemGCPauseTime    prometheus.Histogram
}

// Global metrics manager instance.
var globalManager *Manager //nolint:gochecknoglobals // intentional global for singleton metrics manager

// Custom registry to avoid default Go metrics.
var customRegistry = prometheus.NewRegistry() //nolint:gochecknoglobals // intentional global for metrics registry

func init() { //nolint:gochecknoinits // intentional init for global metrics setup
	globalManager = NewManager(WithPrometheusRegistry(customRegistry))
}

// Configure rebuilds the global manager on a fresh registry with opts. Call it
// once at startup, before any metric is recorded.
func Configure(opts ...Option) {
	reg := prometheus.NewRegistry()
	customRegistry = reg
	globalManager = NewManager(append(opts, WithPrometheusRegistry(reg))...)
}

// NewManager creates a new metrics manager with default configuration.
func NewManager(opts ...Option) *Manager {
	m := &Manager{
		namespace:        "tailor",
		subsystem:        "personalize",
		histogramBuckets: []float64{0.5, 1, 2.5, 5, 10, 25, 50, 100, 250, 500, 1000, 2500},
		registry:         prometheus.DefaultRegisterer,
	}
	for _, opt := range opts {
		opt(m)
	}
	m.initializeMetrics()
	return m
}

func (m *Manager) counter(name, help string) prometheus.Counter {
	return promauto.With(m.registry).NewCounter(prometheus.CounterOpts{
		Namespace: m.namespace, Subsystem: m.subsystem, Name: name, Help: help, ConstLabels: m.constLabels,
	})
}

func (m *Manager) counterVec(name, help string, labels ...string) *prometheus.CounterVec {
	return promauto.With(m.registry).NewCounterVec(prometheus.CounterOpts{
		Namespace: m.namespace, Subsystem: m.subsystem, Name: name, Help: help, ConstLabels: m.constLabels,
	}, labels)
}

func (m *Manager) gauge(name, help string) prometheus.Gauge {
	return promauto.With(m.registry).NewGauge(prometheus.GaugeOpts{
		Namespace: m.namespace, Subsystem: m.subsystem, Name: name, Help: help, ConstLabels: m.constLabels,
	})
}

func (m *Manager) gaugeVec(name, help string, labels ...string) *prometheus.GaugeVec {
	return promauto.With(m.registry).NewGaugeVec(prometheus.GaugeOpts{
		Namespace: m.namespace, Subsystem: m.subsystem, Name: name, Help: help, ConstLabels: m.constLabels,
	}, labels)
}

func (m *Manager) histogram(name, help string, buckets []float64) prometheus.Histogram {
	return promauto.With(m.registry).NewHistogram(prometheus.HistogramOpts{
		Namespace: m.namespace, Subsystem: m.subsystem, Name: name, Help: help, ConstLabels: m.constLabels, Buckets: buckets,
	})
}

func (m *Manager) histogramVec(name, help string, buckets []float64, labels ...string) *prometheus.HistogramVec {
	return promauto.With(m.registry).NewHistogramVec(prometheus.HistogramOpts{
		Namespace: m.namespace, Subsystem: m.subsystem, Name: name, Help: help, ConstLabels: m.constLabels, Buckets: buckets,
	}, labels)
}

// initializeMetrics creates all the Prometheus metrics.
func (m *Manager) initializeMetrics() { //nolint:funlen // long function required for comprehensive metrics initialization
	b := m.histogramBuckets

	m.eventsAccepted = m.counter("events_accepted_total", "Behavioral events accepted for processing")
	m.eventsDuplicate = m.counter("events_duplicate_total", "Behavioral events dropped as duplicates")
	m.eventsApplied = m.counter("events_applied_total", "Behavioral events folded into a stored profile")
	m.eventsRejected = m.counterVec("events_rejected_total", "Behavioral events rejected before queueing", "reason")

	m.queueSize = m.gauge("queue_size", "Current size of the event queue (backlog indicator)")
	m.queueCapacity = m.gauge("queue_capacity", "Maximum queue capacity")
	m.queueUtilization = m.gauge("queue_utilization_ratio", "Queue utilization ratio (current size / capacity)")
	m.queueEnqueueRate = m.counter("queue_enqueue_total", "Total number of events enqueued")
	m.queueDequeueRate = m.counter("queue_dequeue_total", "Total number of events dequeued")
	m.queueEnqueueErrors = m.counter("queue_enqueue_errors_total", "Total number of enqueue errors")
	m.queueProcessingLatency = m.histogram("queue_processing_latency_milliseconds", "Enqueue latency in milliseconds", b)

	m.workerCount = m.gauge("worker_count", "Configured number of event workers")
	m.workerActiveCount = m.gauge("worker_active_count", "Number of workers currently applying an event")
	m.workerIdleCount = m.gauge("worker_idle_count", "Number of idle workers")
	m.workerProcessingLatency = m.histogram("worker_processing_latency_milliseconds", "Time to apply one event to a stored profile", b)
	m.workerErrorRate = m.counter("worker_errors_total", "Total number of worker errors")

	m.rankingLatency = m.histogramVec("ranking_latency_milliseconds", "End-to-end page latency by surface", b, "surface")
	m.pagesServed = m.counterVec("pages_served_total", "Pages served by surface and cold start", "surface", "cold_start")
	m.rankingCounters = m.counterVec("ranking_events_total", "Named ranking counters emitted by the engines", "surface", "name")

	m.sourceRequests = m.counterVec("source_requests_total", "Candidate source calls by source and outcome", "source", "outcome")
	m.sourceLatency = m.histogramVec("source_latency_milliseconds", "Candidate source call latency", b, "source")
	m.breakerState = m.gaugeVec("source_breaker_state", "Circuit breaker state per source (0 closed, 1 half-open, 2 open)", "source")

	m.profileBytes = m.histogram("profile_bytes", "Encoded profile size at persist time",
		[]float64{256, 1024, 4096, 8192, 16384, 32768, 49152, 65536})
	m.profileCompactions = m.counterVec("profile_compactions_total", "Profile compaction runs by resulting stage", "stage")
	m.profileStoreLatency = m.histogramVec("profile_store_latency_milliseconds", "Profile store latency by operation", b, "op")
	m.profileStoreErrors = m.counterVec("profile_store_errors_total", "Profile store errors by operation", "op")
	m.poolCacheLookups = m.counterVec("pool_cache_lookups_total", "Candidate pool cache lookups", "result")

	m.httpRequests = m.counterVec("http_requests_total", "Total number of HTTP requests by endpoint and method",
		"endpoint", "method", "status_code")
	m.httpRequestDuration = m.histogramVec("http_request_duration_milliseconds", "HTTP request duration in milliseconds", b,
		"endpoint", "method", "status_code")

	m.errorRateByComponent = m.counterVec("errors_by_component_total", "Total number of errors by component", "component", "error_type")
	m.errorRateByType = m.counterVec("errors_by_type_total", "Total number of errors by type", "error_type", "severity")
	m.errorRateByEndpoint = m.counterVec("errors_by_endpoint_total", "Total number of errors by endpoint", "endpoint", "method", "error_type")

	m.systemMemoryUsage = m.gauge("system_memory_usage_bytes", "System memory usage in bytes")
	m.systemGoroutineCount = m.gauge("system_goroutine_count", "Number of goroutines")
	m.systemGCPauseTime = m.histogram("system_gc_pause_time_milliseconds", "GC pause time in milliseconds",
		[]float64{0.1, 0.5, 1, 2, 5, 10, 25, 50, 100, 250, 500, 1000})
}

// Event metrics.

// RecordEventAccepted increments the accepted events counter.
func RecordEventAccepted() { globalManager.eventsAccepted.Inc() }

// RecordEventDuplicate increments the duplicate events counter.
func RecordEventDuplicate() { globalManager.eventsDuplicate.Inc() }

// RecordEventApplied increments the applied events counter.
func RecordEventApplied() { globalManager.eventsApplied.Inc() }

// RecordEventRejected counts an event rejected for reason.
func RecordEventRejected(reason string) { globalManager.eventsRejected.WithLabelValues(reason).Inc() }

// Queue metrics.

// UpdateQueueSize sets the current queue size.
func UpdateQueueSize(size int) { globalManager.queueSize.Set(float64(size)) }

// UpdateQueueCapacity sets the maximum queue capacity.
func UpdateQueueCapacity(capacity int) { globalManager.queueCapacity.Set(float64(capacity)) }

// UpdateQueueUtilization sets the queue utilization ratio.
func UpdateQueueUtilization(utilization float64) { globalManager.queueUtilization.Set(utilization) }

// RecordQueueEnqueue increments the enqueue counter.
func RecordQueueEnqueue() { globalManager.queueEnqueueRate.Inc() }

// RecordQueueDequeue increments the dequeue counter.
func RecordQueueDequeue() { globalManager.queueDequeueRate.Inc() }

// RecordQueueEnqueueError increments the enqueue error counter.
func RecordQueueEnqueueError() { globalManager.queueEnqueueErrors.Inc() }

// RecordQueueProcessingLatency records enqueue latency.
func RecordQueueProcessingLatency(latencyMs float64) {
	globalManager.queueProcessingLatency.Observe(latencyMs)
}

// Worker metrics.

// UpdateWorkerCount sets the configured worker count.
func UpdateWorkerCount(count int) { globalManager.workerCount.Set(float64(count)) }

// UpdateWorkerActiveCount sets the number of active workers.
func UpdateWorkerActiveCount(count int) { globalManager.workerActiveCount.Set(float64(count)) }

// UpdateWorkerIdleCount sets the number of idle workers.
func UpdateWorkerIdleCount(count int) { globalManager.workerIdleCount.Set(float64(count)) }

// RecordWorkerProcessingLatency records worker processing latency.
func RecordWorkerProcessingLatency(latencyMs float64) {
	globalManager.workerProcessingLatency.Observe(latencyMs)
}

// RecordWorkerError increments the worker error counter.
func RecordWorkerError() { globalManager.workerErrorRate.Inc() }

// Ranking metrics.

// RecordRankingLatency records the latency of one page on surface.
func RecordRankingLatency(surface string, latencyMs float64) {
	globalManager.rankingLatency.WithLabelValues(surface).Observe(latencyMs)
}

// RecordPageServed counts a page served on surface.
func RecordPageServed(surface string, coldStart bool) {
	cold := "false"
	if coldStart {
		cold = "true"
	}
	globalManager.pagesServed.WithLabelValues(surface, cold).Inc()
}

// RecordRankingCounter adds n to the named ranking counter of surface.
func RecordRankingCounter(surface, name string, n int) {
	if n <= 0 {
		return
	}
	globalManager.rankingCounters.WithLabelValues(surface, name).Add(float64(n))
}

// Source metrics.

// RecordSourceRequest records one candidate source call.
func RecordSourceRequest(source, outcome string, latencyMs float64) {
	globalManager.sourceRequests.WithLabelValues(source, outcome).Inc()
	globalManager.sourceLatency.WithLabelValues(source).Observe(latencyMs)
}

// UpdateBreakerState sets the circuit breaker state of source.
func UpdateBreakerState(source string, state int) {
	globalManager.breakerState.WithLabelValues(source).Set(float64(state))
}

// Profile metrics.

// RecordProfileBytes observes the encoded size of a persisted profile.
func RecordProfileBytes(n int) { globalManager.profileBytes.Observe(float64(n)) }

// RecordCompaction counts a compaction run that ended in stage.
func RecordCompaction(stage string) { globalManager.profileCompactions.WithLabelValues(stage).Inc() }

// RecordProfileStoreLatency records the latency of a profile store operation.
func RecordProfileStoreLatency(op string, latencyMs float64) {
	globalManager.profileStoreLatency.WithLabelValues(op).Observe(latencyMs)
}

// RecordProfileStoreError counts a failed profile store operation.
func RecordProfileStoreError(op string) { globalManager.profileStoreErrors.WithLabelValues(op).Inc() }

// RecordPoolCacheLookup counts a pool cache hit or miss.
func RecordPoolCacheLookup(hit bool) {
	result := "miss"
	if hit {
		result = "hit"
	}
	globalManager.poolCacheLookups.WithLabelValues(result).Inc()
}

// HTTP metrics.

// RecordHTTPRequest records an HTTP request.
func RecordHTTPRequest(endpoint, method, statusCode string) {
	globalManager.httpRequests.WithLabelValues(endpoint, method, statusCode).Inc()
}

// RecordHTTPRequestDuration records HTTP request duration.
func RecordHTTPRequestDuration(endpoint, method, statusCode string, duration float64) {
	globalManager.httpRequestDuration.WithLabelValues(endpoint, method, statusCode).Observe(duration)
}

// Error metrics.

// RecordErrorByComponent records an error with component and type labels.
func RecordErrorByComponent(component, errorType string) {
	globalManager.errorRateByComponent.WithLabelValues(component, errorType).Inc()
}

// RecordErrorByType records an error with type and severity labels.
func RecordErrorByType(errorType, severity string) {
	globalManager.errorRateByType.WithLabelValues(errorType, severity).Inc()
}

// RecordErrorByEndpoint records an error with endpoint, method, and error type labels.
func RecordErrorByEndpoint(endpoint, method, errorType string) {
	globalManager.errorRateByEndpoint.WithLabelValues(endpoint, method, errorType).Inc()
}

// System metrics.

// UpdateSystemMemoryUsage sets the system memory usage in bytes.
func UpdateSystemMemoryUsage(bytes uint64) { globalManager.systemMemoryUsage.Set(float64(bytes)) }

// UpdateSystemGoroutineCount sets the number of goroutines.
func UpdateSystemGoroutineCount(count int) { globalManager.systemGoroutineCount.Set(float64(count)) }

// RecordSystemGCPauseTime records GC pause time in milliseconds.
func RecordSystemGCPauseTime(pauseMs float64) { globalManager.systemGCPauseTime.Observe(pauseMs) }

// GetRegistry returns the custom Prometheus registry used by our metrics.
func GetRegistry() *prometheus.Registry {
	return customRegistry
}
