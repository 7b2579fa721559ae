// Package metrics provides Prometheus metrics for the reputation service.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Manager manages all Prometheus metrics for the reputation service.
type Manager struct {
	namespace        string
	subsystem        string
	histogramBuckets []float64
	constLabels      prometheus.Labels
	registry         prometheus.Registerer

	// Engine Metrics - outcome of every public operation
	operations       *prometheus.CounterVec
	operationLatency *prometheus.HistogramVec
	scoreDelta       *prometheus.HistogramVec
	scoreSaturation  prometheus.Counter
	cooldownEviction prometheus.Counter
	changesDropped   *prometheus.CounterVec

	// Repository Metrics - lock stripes and committed records
	repositoryShardCount    prometheus.Gauge
	repositoryRecordsTotal  prometheus.Gauge
	repositoryRealmsTotal   prometheus.Gauge
	repositoryEventsTotal   prometheus.Gauge
	repositoryUpdateLatency prometheus.Histogram
	repositoryQueryLatency  prometheus.Histogram
	repositoryRollbacks     prometheus.Counter

	// HTTP Performance Metrics
	httpRequests        *prometheus.CounterVec
	httpRequestDuration *prometheus.HistogramVec

	// Queue Metrics - change outbox
	queueCapacity          prometheus.Gauge
	queueSize              prometheus.Gauge
	queueUtilization       prometheus.Gauge
	queueEnqueueRate       prometheus.Counter
	queueDequeueRate       prometheus.Counter
	queueEnqueueErrors     prometheus.Counter
	queueProcessingLatency prometheus.Histogram

	// Worker Metrics - change delivery
	workerCount             prometheus.Gauge
	workerActiveCount       prometheus.Gauge
	workerIdleCount         prometheus.Gauge
	workerMessagesPerSecond prometheus.Gauge
	workerProcessingLatency prometheus.Histogram
	workerErrorRate         prometheus.Counter
	workerRetryCount        prometheus.Counter

	// Sink Metrics - downstream deliveries
	sinkDeliveries *prometheus.CounterVec
	sinkLatency    *prometheus.HistogramVec

	// Enhanced Error Metrics - Detailed error tracking
	errorRateByComponent *prometheus.CounterVec
	errorRateByType      *prometheus.CounterVec
	errorRateByEndpoint  *prometheus.CounterVec
	errorLatency         *prometheus.HistogramVec

	// System Performance Metrics
	systemMemoryUsage    prometheus.Gauge
	systemGoroutineCount prometheus.Gauge
	systemGCPauseTime    prometheus.Histogram
}

// Global metrics manager instance.
var globalManager *Manager //nolint:gochecknoglobals // intentional global for singleton metrics manager

// Custom registry to avoid default Go metrics.
var customRegistry = prometheus.NewRegistry() //nolint:gochecknoglobals // intentional global for metrics registry

// Initialize global metrics.
func init() { //nolint:gochecknoinits // intentional init for global metrics setup
	globalManager = NewManager(WithPrometheusRegistry(customRegistry))
}

// NewManager creates a new metrics manager with default configuration.
func NewManager(opts ...Option) *Manager {
	m := &Manager{
		namespace:        "repdao",
		subsystem:        "engine",
		histogramBuckets: prometheus.DefBuckets,
		constLabels:      prometheus.Labels{},
		registry:         prometheus.DefaultRegisterer,
	}

	// Apply all options
	for _, opt := range opts {
		opt(m)
	}

	// Initialize metrics
	m.initializeMetrics()

	return m
}

func (m *Manager) counterOpts(name, help string) prometheus.CounterOpts {
	return prometheus.CounterOpts{
		Namespace:   m.namespace,
		Subsystem:   m.subsystem,
		Name:        name,
		Help:        help,
		ConstLabels: m.constLabels,
	}
}

func (m *Manager) gaugeOpts(name, help string) prometheus.GaugeOpts {
	return prometheus.GaugeOpts{
		Namespace:   m.namespace,
		Subsystem:   m.subsystem,
		Name:        name,
		Help:        help,
		ConstLabels: m.constLabels,
	}
}

func (m *Manager) histogramOpts(name, help string, buckets []float64) prometheus.HistogramOpts {
	return prometheus.HistogramOpts{
		Namespace:   m.namespace,
		Subsystem:   m.subsystem,
		Name:        name,
		Help:        help,
		Buckets:     buckets,
		ConstLabels: m.constLabels,
	}
}

// initializeMetrics creates all the Prometheus metrics.
func (m *Manager) initializeMetrics() { //nolint:funlen // long function required for comprehensive metrics initialization
	// Ensure metrics are registered on the configured registry (custom by default)
	auto := promauto.With(m.registry)

	// Engine Metrics
	m.operations = auto.NewCounterVec(
		m.counterOpts("operations_total", "Engine operations by name and outcome kind"),
		[]string{"operation", "outcome"},
	)
	m.operationLatency = auto.NewHistogramVec(
		m.histogramOpts("operation_latency_milliseconds", "Engine operation latency in milliseconds", m.histogramBuckets),
		[]string{"operation"},
	)
	m.scoreDelta = auto.NewHistogramVec(
		m.histogramOpts("score_delta", "Score credited per accepted interaction",
			prometheus.ExponentialBuckets(1, 4, 10)),
		[]string{"category"},
	)
	m.scoreSaturation = auto.NewCounter(m.counterOpts("score_saturation_total",
		"Interactions whose credit clamped at the maximum score"))
	m.cooldownEviction = auto.NewCounter(m.counterOpts("cooldown_witness_evictions_total",
		"Counterparties evicted from a full cooldown witness"))
	m.changesDropped = auto.NewCounterVec(
		m.counterOpts("changes_dropped_total", "Committed changes the outbox refused"),
		[]string{"kind"},
	)

	// Repository Metrics
	m.repositoryShardCount = auto.NewGauge(m.gaugeOpts("repository_shard_count", "Number of repository lock stripes"))
	m.repositoryRecordsTotal = auto.NewGauge(m.gaugeOpts("repository_records_total", "Number of profile records"))
	m.repositoryRealmsTotal = auto.NewGauge(m.gaugeOpts("repository_realms_total", "Number of realm records"))
	m.repositoryEventsTotal = auto.NewGauge(m.gaugeOpts("repository_events_total", "Number of stored interaction events"))
	m.repositoryUpdateLatency = auto.NewHistogram(m.histogramOpts("repository_update_latency_milliseconds",
		"Repository transaction latency in milliseconds", m.histogramBuckets))
	m.repositoryQueryLatency = auto.NewHistogram(m.histogramOpts("repository_query_latency_milliseconds",
		"Repository query latency in milliseconds", m.histogramBuckets))
	m.repositoryRollbacks = auto.NewCounter(m.counterOpts("repository_rollbacks_total",
		"Transactions discarded because the callback failed"))

	// HTTP Performance Metrics
	m.httpRequests = auto.NewCounterVec(
		m.counterOpts("http_requests_total", "Total number of HTTP requests by endpoint and method"),
		[]string{"endpoint", "method", "status_code"},
	)
	m.httpRequestDuration = auto.NewHistogramVec(
		m.histogramOpts("http_request_duration_milliseconds", "HTTP request duration in milliseconds", m.histogramBuckets),
		[]string{"endpoint", "method", "status_code"},
	)

	// Queue Metrics
	m.queueCapacity = auto.NewGauge(m.gaugeOpts("queue_capacity", "Maximum outbox capacity"))
	m.queueSize = auto.NewGauge(m.gaugeOpts("queue_size", "Current outbox backlog"))
	m.queueUtilization = auto.NewGauge(m.gaugeOpts("queue_utilization_ratio", "Outbox utilization ratio (size / capacity)"))
	m.queueEnqueueRate = auto.NewCounter(m.counterOpts("queue_enqueue_total", "Total number of changes enqueued"))
	m.queueDequeueRate = auto.NewCounter(m.counterOpts("queue_dequeue_total", "Total number of changes dequeued"))
	m.queueEnqueueErrors = auto.NewCounter(m.counterOpts("queue_enqueue_errors_total", "Total number of enqueue errors"))
	m.queueProcessingLatency = auto.NewHistogram(m.histogramOpts("queue_processing_latency_milliseconds",
		"Time a change spent in the outbox in milliseconds", m.histogramBuckets))

	// Worker Metrics
	m.workerCount = auto.NewGauge(m.gaugeOpts("worker_count", "Configured number of delivery workers"))
	m.workerActiveCount = auto.NewGauge(m.gaugeOpts("worker_active_count", "Number of active workers"))
	m.workerIdleCount = auto.NewGauge(m.gaugeOpts("worker_idle_count", "Number of idle workers"))
	m.workerMessagesPerSecond = auto.NewGauge(m.gaugeOpts("worker_messages_per_second",
		"Average changes delivered per second by workers"))
	m.workerProcessingLatency = auto.NewHistogram(m.histogramOpts("worker_processing_latency_milliseconds",
		"Worker delivery latency in milliseconds", m.histogramBuckets))
	m.workerErrorRate = auto.NewCounter(m.counterOpts("worker_errors_total", "Total number of worker errors"))
	m.workerRetryCount = auto.NewCounter(m.counterOpts("worker_retries_total", "Total number of worker retries"))

	// Sink Metrics
	m.sinkDeliveries = auto.NewCounterVec(
		m.counterOpts("sink_deliveries_total", "Sink deliveries by sink and outcome"),
		[]string{"sink", "outcome"},
	)
	m.sinkLatency = auto.NewHistogramVec(
		m.histogramOpts("sink_latency_milliseconds", "Sink delivery latency in milliseconds", m.histogramBuckets),
		[]string{"sink"},
	)

	// Enhanced Error Metrics
	m.errorRateByComponent = auto.NewCounterVec(
		m.counterOpts("errors_by_component_total", "Total number of errors by component"),
		[]string{"component", "error_type"},
	)
	m.errorRateByType = auto.NewCounterVec(
		m.counterOpts("errors_by_type_total", "Total number of errors by type"),
		[]string{"error_type", "severity"},
	)
	m.errorRateByEndpoint = auto.NewCounterVec(
		m.counterOpts("errors_by_endpoint_total", "Total number of errors by endpoint"),
		[]string{"endpoint", "method", "error_type"},
	)
	m.errorLatency = auto.NewHistogramVec(
		m.histogramOpts("error_latency_milliseconds", "Latency of operations that resulted in errors", m.histogramBuckets),
		[]string{"component", "error_type"},
	)

	// System Performance Metrics
	m.systemMemoryUsage = auto.NewGauge(m.gaugeOpts("system_memory_usage_bytes", "System memory usage in bytes"))
	m.systemGoroutineCount = auto.NewGauge(m.gaugeOpts("system_goroutine_count", "Number of goroutines"))
	m.systemGCPauseTime = auto.NewHistogram(m.histogramOpts("system_gc_pause_time_milliseconds",
		"GC pause time in milliseconds", []float64{0.1, 0.5, 1, 2, 5, 10, 25, 50, 100, 250, 500, 1000}))
}

// Engine Metrics Functions.

// RecordOperation counts one engine operation with its outcome kind.
func RecordOperation(operation, outcome string) {
	globalManager.operations.WithLabelValues(operation, outcome).Inc()
}

// RecordOperationLatency records engine operation latency in milliseconds.
func RecordOperationLatency(operation string, latencyMs float64) {
	globalManager.operationLatency.WithLabelValues(operation).Observe(latencyMs)
}

// RecordScoreDelta records the delta credited to category.
func RecordScoreDelta(category string, delta float64) {
	globalManager.scoreDelta.WithLabelValues(category).Observe(delta)
}

// RecordScoreSaturation increments the saturation counter.
func RecordScoreSaturation() {
	globalManager.scoreSaturation.Inc()
}

// RecordCooldownEviction increments the witness eviction counter.
func RecordCooldownEviction() {
	globalManager.cooldownEviction.Inc()
}

// RecordChangeDropped counts a change the outbox refused.
func RecordChangeDropped(kind string) {
	globalManager.changesDropped.WithLabelValues(kind).Inc()
}

// Repository Metrics Functions.

// UpdateRepositoryShardCount sets the number of lock stripes.
func UpdateRepositoryShardCount(count int) {
	globalManager.repositoryShardCount.Set(float64(count))
}

// UpdateRepositoryRecordsTotal sets the number of profile records.
func UpdateRepositoryRecordsTotal(count int) {
	globalManager.repositoryRecordsTotal.Set(float64(count))
}

// UpdateRepositoryRealmsTotal sets the number of realm records.
func UpdateRepositoryRealmsTotal(count int) {
	globalManager.repositoryRealmsTotal.Set(float64(count))
}

// UpdateRepositoryEventsTotal sets the number of stored events.
func UpdateRepositoryEventsTotal(count int) {
	globalManager.repositoryEventsTotal.Set(float64(count))
}

// RecordRepositoryUpdateLatency records repository transaction latency.
func RecordRepositoryUpdateLatency(latencyMs float64) {
	globalManager.repositoryUpdateLatency.Observe(latencyMs)
}

// RecordRepositoryQueryLatency records repository query operation latency.
func RecordRepositoryQueryLatency(latencyMs float64) {
	globalManager.repositoryQueryLatency.Observe(latencyMs)
}

// RecordRepositoryRollback increments the rollback counter.
func RecordRepositoryRollback() {
	globalManager.repositoryRollbacks.Inc()
}

// HTTP Metrics Functions.

// RecordHTTPRequest records an HTTP request.
func RecordHTTPRequest(endpoint, method, statusCode string) {
	globalManager.httpRequests.WithLabelValues(endpoint, method, statusCode).Inc()
}

// RecordHTTPRequestDuration records HTTP request duration.
func RecordHTTPRequestDuration(endpoint, method, statusCode string, duration float64) {
	globalManager.httpRequestDuration.WithLabelValues(endpoint, method, statusCode).Observe(duration)
}

// Queue Metrics Functions.

// UpdateQueueCapacity sets the maximum queue capacity.
func UpdateQueueCapacity(capacity int) {
	globalManager.queueCapacity.Set(float64(capacity))
}

// UpdateQueueSize sets the current queue size.
func UpdateQueueSize(size int) {
	globalManager.queueSize.Set(float64(size))
}

// UpdateQueueUtilization sets the queue utilization ratio.
func UpdateQueueUtilization(utilization float64) {
	globalManager.queueUtilization.Set(utilization)
}

// RecordQueueEnqueue increments the enqueue counter.
func RecordQueueEnqueue() {
	globalManager.queueEnqueueRate.Inc()
}

// RecordQueueDequeue increments the dequeue counter.
func RecordQueueDequeue() {
	globalManager.queueDequeueRate.Inc()
}

// RecordQueueEnqueueError increments the enqueue error counter.
func RecordQueueEnqueueError() {
	globalManager.queueEnqueueErrors.Inc()
}

// RecordQueueProcessingLatency records queue processing latency.
func RecordQueueProcessingLatency(latencyMs float64) {
	globalManager.queueProcessingLatency.Observe(latencyMs)
}

// Worker Metrics Functions.

// UpdateWorkerCount sets the configured worker count.
func UpdateWorkerCount(count int) {
	globalManager.workerCount.Set(float64(count))
}

// UpdateWorkerActiveCount sets the number of active workers.
func UpdateWorkerActiveCount(count int) {
	globalManager.workerActiveCount.Set(float64(count))
}

// UpdateWorkerIdleCount sets the number of idle workers.
func UpdateWorkerIdleCount(count int) {
	globalManager.workerIdleCount.Set(float64(count))
}

// UpdateWorkerMessagesPerSecond sets the average messages processed per second.
func UpdateWorkerMessagesPerSecond(rate float64) {
	globalManager.workerMessagesPerSecond.Set(rate)
}

// RecordWorkerProcessingLatency records worker processing latency.
func RecordWorkerProcessingLatency(latencyMs float64) {
	globalManager.workerProcessingLatency.Observe(latencyMs)
}

// RecordWorkerError increments the worker error counter.
func RecordWorkerError() {
	globalManager.workerErrorRate.Inc()
}

// RecordWorkerRetry increments the worker retry counter.
func RecordWorkerRetry() {
	globalManager.workerRetryCount.Inc()
}

// Sink Metrics Functions.

// RecordSinkDelivery counts one delivery attempt to sink.
func RecordSinkDelivery(sink, outcome string) {
	globalManager.sinkDeliveries.WithLabelValues(sink, outcome).Inc()
}

// RecordSinkLatency records a sink delivery latency in milliseconds.
func RecordSinkLatency(sink string, latencyMs float64) {
	globalManager.sinkLatency.WithLabelValues(sink).Observe(latencyMs)
}

// Enhanced Error Metrics Functions.

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

// RecordErrorLatency records the latency of an operation that resulted in an error.
func RecordErrorLatency(component, errorType string, latencyMs float64) {
	globalManager.errorLatency.WithLabelValues(component, errorType).Observe(latencyMs)
}

// System Performance Metrics Functions.

// UpdateSystemMemoryUsage sets the system memory usage in bytes.
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
