// Package metrics provides Prometheus metrics for the MedSafety reporting service.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Manager manages all Prometheus metrics for the service.
type Manager struct {
	namespace        string
	subsystem        string
	histogramBuckets []float64
	constLabels      prometheus.Labels
	registry         prometheus.Registerer

	// Persistence
	storageOps       *prometheus.CounterVec
	storageErrors    *prometheus.CounterVec
	storageLatency   *prometheus.HistogramVec
	reportsSaved     prometheus.Counter
	reportsDeleted   prometheus.Counter
	usersDeleted     prometheus.Counter
	reportsTotal     prometheus.Gauge
	usersTotal       prometheus.Gauge

	// Change feed
	feedSubscribers   prometheus.Gauge
	feedNotifications prometheus.Counter
	feedErrors        prometheus.Counter

	// Aggregation and dashboards
	aggregationLatency prometheus.Histogram
	aggregatedReports  prometheus.Histogram
	dashboardPublishes prometheus.Counter
	activeDashboards   prometheus.Gauge

	// Change queue
	queueSize              prometheus.Gauge
	queueCapacity          prometheus.Gauge
	queueUtilization       prometheus.Gauge
	queueEnqueued          prometheus.Counter
	queueDequeued          prometheus.Counter
	queueEnqueueErrors     prometheus.Counter
	queueProcessingLatency prometheus.Histogram

	// Dispatch worker
	workerProcessingLatency prometheus.Histogram
	workerErrors            prometheus.Counter

	// HTTP
	httpRequests        *prometheus.CounterVec
	httpRequestDuration *prometheus.HistogramVec

	// Errors
	errorRateByComponent *prometheus.CounterVec
	errorRateByType      *prometheus.CounterVec
	errorRateByEndpoint  *prometheus.CounterVec
	errorLatency         *prometheus.HistogramVec

	// System
	systemMemoryUsage    prometheus.Gauge
	systemGoroutineCount prometheus.Gauge
	systemGCPauseTime    prometheus.Histogram
}

var globalManager *Manager //nolint:gochecknoglobals // intentional global for singleton metrics manager

// Custom registry to avoid default Go metrics.
var customRegistry = prometheus.NewRegistry() //nolint:gochecknoglobals // intentional global for metrics registry

func init() { //nolint:gochecknoinits // intentional init for global metrics setup
	globalManager = NewManager(WithPrometheusRegistry(customRegistry))
}

// NewManager creates a new metrics manager with default configuration.
func NewManager(opts ...Option) *Manager {
	m := &Manager{
		namespace:        "medsafety",
		subsystem:        "reporting",
		histogramBuckets: []float64{0.1, 0.5, 1, 2, 5, 10, 25, 50, 100, 250, 500, 1000},
		constLabels:      prometheus.Labels{},
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

func (m *Manager) gauge(name, help string) prometheus.Gauge {
	return promauto.With(m.registry).NewGauge(prometheus.GaugeOpts{
		Namespace: m.namespace, Subsystem: m.subsystem, Name: name, Help: help, ConstLabels: m.constLabels,
	})
}

func (m *Manager) histogram(name, help string, buckets []float64) prometheus.Histogram {
	return promauto.With(m.registry).NewHistogram(prometheus.HistogramOpts{
		Namespace: m.namespace, Subsystem: m.subsystem, Name: name, Help: help, ConstLabels: m.constLabels, Buckets: buckets,
	})
}

func (m *Manager) counterVec(name, help string, labels ...string) *prometheus.CounterVec {
	return promauto.With(m.registry).NewCounterVec(prometheus.CounterOpts{
		Namespace: m.namespace, Subsystem: m.subsystem, Name: name, Help: help, ConstLabels: m.constLabels,
	}, labels)
}

func (m *Manager) histogramVec(name, help string, labels ...string) *prometheus.HistogramVec {
	return promauto.With(m.registry).NewHistogramVec(prometheus.HistogramOpts{
		Namespace: m.namespace, Subsystem: m.subsystem, Name: name, Help: help, ConstLabels: m.constLabels, Buckets: m.histogramBuckets,
	}, labels)
}

func (m *Manager) initializeMetrics() {
	m.storageOps = m.counterVec("storage_operations_total", "Storage operations by backend and operation", "backend", "op")
	m.storageErrors = m.counterVec("storage_errors_total", "Storage failures by backend and operation", "backend", "op")
	m.storageLatency = m.histogramVec("storage_latency_milliseconds", "Storage operation latency in milliseconds", "backend", "op")
	m.reportsSaved = m.counter("reports_saved_total", "Reports created or replaced")
	m.reportsDeleted = m.counter("reports_deleted_total", "Reports deleted")
	m.usersDeleted = m.counter("users_deleted_total", "Users deleted")
	m.reportsTotal = m.gauge("reports", "Reports in the active backend at the last full read")
	m.usersTotal = m.gauge("users", "Users in the active backend at the last full read")

	m.feedSubscribers = m.gauge("feed_subscribers", "Live change-feed subscriptions")
	m.feedNotifications = m.counter("feed_notifications_total", "Report collections delivered to subscribers")
	m.feedErrors = m.counter("feed_errors_total", "Change-feed disconnects surfaced to subscribers")

	m.aggregationLatency = m.histogram("aggregation_latency_milliseconds", "Aggregation latency in milliseconds", m.histogramBuckets)
	m.aggregatedReports = m.histogram("aggregated_reports", "Reports participating in one aggregation",
		prometheus.ExponentialBuckets(1, 4, 8))
	m.dashboardPublishes = m.counter("dashboard_publishes_total", "View-models published by dashboard controllers")
	m.activeDashboards = m.gauge("active_dashboards", "Dashboard controllers attached to the feed")

	m.queueSize = m.gauge("change_queue_size", "Pending change notifications")
	m.queueCapacity = m.gauge("change_queue_capacity", "Change queue capacity")
	m.queueUtilization = m.gauge("change_queue_utilization_ratio", "Change queue utilization ratio (size / capacity)")
	m.queueEnqueued = m.counter("change_queue_enqueued_total", "Change notifications enqueued")
	m.queueDequeued = m.counter("change_queue_dequeued_total", "Change notifications dequeued")
	m.queueEnqueueErrors = m.counter("change_queue_enqueue_errors_total", "Change notifications dropped at enqueue")
	m.queueProcessingLatency = m.histogram("change_queue_processing_latency_milliseconds", "Enqueue latency in milliseconds", m.histogramBuckets)

	m.workerProcessingLatency = m.histogram("dispatch_latency_milliseconds", "Time to fetch and fan out one change in milliseconds", m.histogramBuckets)
	m.workerErrors = m.counter("dispatch_errors_total", "Dispatch failures")

	m.httpRequests = m.counterVec("http_requests_total", "Total number of HTTP requests by endpoint and method", "endpoint", "method", "status_code")
	m.httpRequestDuration = m.histogramVec("http_request_duration_milliseconds", "HTTP request duration in milliseconds", "endpoint", "method", "status_code")

	m.errorRateByComponent = m.counterVec("errors_by_component_total", "Errors by component", "component", "error_type")
	m.errorRateByType = m.counterVec("errors_by_type_total", "Errors by type and severity", "error_type", "severity")
	m.errorRateByEndpoint = m.counterVec("errors_by_endpoint_total", "Errors by HTTP endpoint", "endpoint", "method", "error_type")
	m.errorLatency = m.histogramVec("error_latency_milliseconds", "Latency of failed operations in milliseconds", "component", "error_type")

	m.systemMemoryUsage = m.gauge("system_memory_bytes", "Allocated heap bytes")
	m.systemGoroutineCount = m.gauge("system_goroutines", "Number of goroutines")
	m.systemGCPauseTime = m.histogram("system_gc_pause_milliseconds", "Average GC pause in milliseconds", m.histogramBuckets)
}

// Persistence.

// RecordStorageOp counts one backend operation and its latency.
func RecordStorageOp(backend, op string, latencyMs float64) {
	globalManager.storageOps.WithLabelValues(backend, op).Inc()
	globalManager.storageLatency.WithLabelValues(backend, op).Observe(latencyMs)
}

// RecordStorageError counts one failed backend operation.
func RecordStorageError(backend, op string) {
	globalManager.storageErrors.WithLabelValues(backend, op).Inc()
	globalManager.errorRateByComponent.WithLabelValues("repository", op).Inc()
}

// RecordReportSaved increments the saved reports counter.
func RecordReportSaved() { globalManager.reportsSaved.Inc() }

// RecordReportsDeleted adds n to the deleted reports counter.
func RecordReportsDeleted(n int) { globalManager.reportsDeleted.Add(float64(n)) }

// RecordUserDeleted increments the deleted users counter.
func RecordUserDeleted() { globalManager.usersDeleted.Inc() }

// UpdateReportsTotal sets the report count observed at the last full read.
func UpdateReportsTotal(n int) { globalManager.reportsTotal.Set(float64(n)) }

// UpdateUsersTotal sets the user count observed at the last full read.
func UpdateUsersTotal(n int) { globalManager.usersTotal.Set(float64(n)) }

// Change feed.

// UpdateFeedSubscribers sets the live subscription count.
func UpdateFeedSubscribers(n int) { globalManager.feedSubscribers.Set(float64(n)) }

// RecordFeedNotification counts one delivery to one subscriber.
func RecordFeedNotification() { globalManager.feedNotifications.Inc() }

// RecordFeedError counts one disconnect surfaced to a subscriber.
func RecordFeedError() {
	globalManager.feedErrors.Inc()
	globalManager.errorRateByComponent.WithLabelValues("feed", "disconnect").Inc()
}

// Aggregation and dashboards.

// RecordAggregation records one aggregation run.
func RecordAggregation(latencyMs float64, reports int) {
	globalManager.aggregationLatency.Observe(latencyMs)
	globalManager.aggregatedReports.Observe(float64(reports))
}

// RecordDashboardPublish counts one published view-model.
func RecordDashboardPublish() { globalManager.dashboardPublishes.Inc() }

// UpdateActiveDashboards sets the number of attached dashboard controllers.
func UpdateActiveDashboards(n int) { globalManager.activeDashboards.Set(float64(n)) }

// Change queue.

// UpdateQueueSize sets the current queue size.
func UpdateQueueSize(size int) { globalManager.queueSize.Set(float64(size)) }

// UpdateQueueCapacity sets the queue capacity.
func UpdateQueueCapacity(capacity int) { globalManager.queueCapacity.Set(float64(capacity)) }

// UpdateQueueUtilization sets the queue utilization ratio.
func UpdateQueueUtilization(utilization float64) { globalManager.queueUtilization.Set(utilization) }

// RecordQueueEnqueue increments the enqueue counter.
func RecordQueueEnqueue() { globalManager.queueEnqueued.Inc() }

// RecordQueueDequeue increments the dequeue counter.
func RecordQueueDequeue() { globalManager.queueDequeued.Inc() }

// RecordQueueEnqueueError increments the dropped-at-enqueue counter.
func RecordQueueEnqueueError() { globalManager.queueEnqueueErrors.Inc() }

// RecordQueueProcessingLatency records enqueue latency in milliseconds.
func RecordQueueProcessingLatency(latencyMs float64) {
	globalManager.queueProcessingLatency.Observe(latencyMs)
}

// Dispatch worker.

// RecordWorkerProcessingLatency records dispatch latency in milliseconds.
func RecordWorkerProcessingLatency(latencyMs float64) {
	globalManager.workerProcessingLatency.Observe(latencyMs)
}

// RecordWorkerError increments the dispatch error counter.
func RecordWorkerError() { globalManager.workerErrors.Inc() }

// HTTP.

// RecordHTTPRequest records an HTTP request.
func RecordHTTPRequest(endpoint, method, statusCode string) {
	globalManager.httpRequests.WithLabelValues(endpoint, method, statusCode).Inc()
}

// RecordHTTPRequestDuration records HTTP request duration.
func RecordHTTPRequestDuration(endpoint, method, statusCode string, duration float64) {
	globalManager.httpRequestDuration.WithLabelValues(endpoint, method, statusCode).Observe(duration)
}

// Errors.

// RecordErrorByComponent records an error for a component.
func RecordErrorByComponent(component, errorType string) {
	globalManager.errorRateByComponent.WithLabelValues(component, errorType).Inc()
}

// RecordErrorByType records an error by type and severity.
func RecordErrorByType(errorType, severity string) {
	globalManager.errorRateByType.WithLabelValues(errorType, severity).Inc()
}

// RecordErrorByEndpoint records an error for an HTTP endpoint.
func RecordErrorByEndpoint(endpoint, method, errorType string) {
	globalManager.errorRateByEndpoint.WithLabelValues(endpoint, method, errorType).Inc()
}

// RecordErrorLatency records the latency of a failed operation.
func RecordErrorLatency(component, errorType string, latencyMs float64) {
	globalManager.errorLatency.WithLabelValues(component, errorType).Observe(latencyMs)
}

// System.

// UpdateSystemMemoryUsage sets allocated heap bytes.
func UpdateSystemMemoryUsage(bytes uint64) { globalManager.systemMemoryUsage.Set(float64(bytes)) }

// UpdateSystemGoroutineCount sets the goroutine count.
func UpdateSystemGoroutineCount(count int) { globalManager.systemGoroutineCount.Set(float64(count)) }

// RecordSystemGCPauseTime records GC pause time in milliseconds.
func RecordSystemGCPauseTime(pauseMs float64) { globalManager.systemGCPauseTime.Observe(pauseMs) }

// GetRegistry returns the custom Prometheus registry used by our metrics.
func GetRegistry() *prometheus.Registry {
	return customRegistry
}
