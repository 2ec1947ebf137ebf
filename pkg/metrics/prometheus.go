// Package metrics provides Prometheus metrics for the podium service.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Manager manages all Prometheus metrics for the podium service.
type Manager struct {
	namespace        string
	subsystem        string
	histogramBuckets []float64
	constLabels      map[string]string
	registry         prometheus.Registerer

	// Contribution ingestion
	contributionsProcessed prometheus.Counter
	contributionsDuplicate prometheus.Counter
	contributionsRemoved   prometheus.Counter
	contributionErrors     prometheus.Counter

	// Queue
	queueSize          prometheus.Gauge
	queueCapacity      prometheus.Gauge
	queueUtilization   prometheus.Gauge
	queueEnqueued      prometheus.Counter
	queueDequeued      prometheus.Counter
	queueEnqueueErrors prometheus.Counter

	// Workers
	workerCount             prometheus.Gauge
	workerProcessingLatency prometheus.Histogram

	// Role synchronization
	syncTriggers       *prometheus.CounterVec
	syncRuns           *prometheus.CounterVec
	syncRunDuration    prometheus.Histogram
	syncRoleChanges    *prometheus.CounterVec
	syncRoleErrors     prometheus.Counter
	syncSkippedSlots   prometheus.Counter
	rankedSubjects     prometheus.Gauge
	syncLastSuccessSec prometheus.Gauge

	// Duels
	duels          *prometheus.CounterVec
	duelRejections *prometheus.CounterVec
	duelRolls      prometheus.Histogram
	cooldownActive prometheus.Gauge
	cooldownPruned prometheus.Counter

	// Repository
	repositoryQueryLatency  prometheus.Histogram
	repositoryUpdateLatency prometheus.Histogram
	repositorySubjects      prometheus.Gauge

	// HTTP
	httpRequests        *prometheus.CounterVec
	httpRequestDuration *prometheus.HistogramVec

	// Errors
	errorsByComponent *prometheus.CounterVec

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

// NewManager creates a new metrics manager with default configuration.
func NewManager(opts ...Option) *Manager {
	m := &Manager{
		namespace:        "podium",
		subsystem:        "ranks",
		histogramBuckets: prometheus.DefBuckets,
		constLabels:      map[string]string{},
		registry:         prometheus.DefaultRegisterer,
	}

	for _, opt := range opts {
		opt(m)
	}

	m.initializeMetrics()

	return m
}

func (m *Manager) counterOpts(name, help string) prometheus.CounterOpts {
	return prometheus.CounterOpts{Namespace: m.namespace, Subsystem: m.subsystem, Name: name, Help: help, ConstLabels: m.constLabels}
}

func (m *Manager) gaugeOpts(name, help string) prometheus.GaugeOpts {
	return prometheus.GaugeOpts{Namespace: m.namespace, Subsystem: m.subsystem, Name: name, Help: help, ConstLabels: m.constLabels}
}

func (m *Manager) histogramOpts(name, help string, buckets []float64) prometheus.HistogramOpts {
	if buckets == nil {
		buckets = m.histogramBuckets
	}
	return prometheus.HistogramOpts{Namespace: m.namespace, Subsystem: m.subsystem, Name: name, Help: help, Buckets: buckets, ConstLabels: m.constLabels}
}

// initializeMetrics creates all the Prometheus metrics.
func (m *Manager) initializeMetrics() { //nolint:funlen // long function required for comprehensive metrics initialization
	auto := promauto.With(m.registry)

	m.contributionsProcessed = auto.NewCounter(m.counterOpts("contributions_processed_total", "Contributions persisted to the leaderboard store"))
	m.contributionsDuplicate = auto.NewCounter(m.counterOpts("contributions_duplicate_total", "Contributions rejected as duplicates"))
	m.contributionsRemoved = auto.NewCounter(m.counterOpts("contributions_removed_total", "Contributions soft-removed by owners or admins"))
	m.contributionErrors = auto.NewCounter(m.counterOpts("contribution_errors_total", "Contributions that failed to persist"))

	m.queueSize = auto.NewGauge(m.gaugeOpts("queue_size", "Current size of the contribution queue (backlog indicator)"))
	m.queueCapacity = auto.NewGauge(m.gaugeOpts("queue_capacity", "Maximum capacity of the contribution queue"))
	m.queueUtilization = auto.NewGauge(m.gaugeOpts("queue_utilization_ratio", "Queue utilization ratio (size / capacity)"))
	m.queueEnqueued = auto.NewCounter(m.counterOpts("queue_enqueued_total", "Contributions enqueued"))
	m.queueDequeued = auto.NewCounter(m.counterOpts("queue_dequeued_total", "Contributions dequeued by workers"))
	m.queueEnqueueErrors = auto.NewCounter(m.counterOpts("queue_enqueue_errors_total", "Enqueue attempts rejected (full or closed)"))

	m.workerCount = auto.NewGauge(m.gaugeOpts("worker_count", "Number of ingestion workers"))
	m.workerProcessingLatency = auto.NewHistogram(m.histogramOpts("worker_processing_latency_milliseconds", "Time spent persisting one contribution", nil))

	m.syncTriggers = auto.NewCounterVec(m.counterOpts("sync_triggers_total", "Role sync triggers by result (started, queued, coalesced)"), []string{"result"})
	m.syncRuns = auto.NewCounterVec(m.counterOpts("sync_runs_total", "Role sync runs by status"), []string{"status"})
	m.syncRunDuration = auto.NewHistogram(m.histogramOpts("sync_run_duration_milliseconds", "Duration of a full role sync run",
		[]float64{5, 10, 25, 50, 100, 250, 500, 1000, 2500, 5000, 10000, 30000}))
	m.syncRoleChanges = auto.NewCounterVec(m.counterOpts("sync_role_changes_total", "Role mutations applied by operation"), []string{"op"})
	m.syncRoleErrors = auto.NewCounter(m.counterOpts("sync_role_change_errors_total", "Subjects whose role change failed"))
	m.syncSkippedSlots = auto.NewCounter(m.counterOpts("sync_skipped_slots_total", "Rank slots skipped for missing role configuration"))
	m.rankedSubjects = auto.NewGauge(m.gaugeOpts("ranked_subjects", "Subjects holding a rank slot after the last run"))
	m.syncLastSuccessSec = auto.NewGauge(m.gaugeOpts("sync_last_success_unix_seconds", "Unix time of the last successful sync run"))

	m.duels = auto.NewCounterVec(m.counterOpts("duels_total", "Resolved duels by outcome"), []string{"outcome"})
	m.duelRejections = auto.NewCounterVec(m.counterOpts("duel_rejections_total", "Duels rejected before resolution by reason"), []string{"reason"})
	m.duelRolls = auto.NewHistogram(m.histogramOpts("duel_roll_value", "Distribution of per-mille duel rolls",
		[]float64{1, 10, 50, 100, 250, 500, 750, 900, 1000}))
	m.cooldownActive = auto.NewGauge(m.gaugeOpts("cooldown_entries", "Directed cooldown entries currently stored"))
	m.cooldownPruned = auto.NewCounter(m.counterOpts("cooldown_pruned_total", "Expired cooldown entries removed"))

	m.repositoryQueryLatency = auto.NewHistogram(m.histogramOpts("repository_query_latency_milliseconds", "Leaderboard store query latency", nil))
	m.repositoryUpdateLatency = auto.NewHistogram(m.histogramOpts("repository_update_latency_milliseconds", "Leaderboard store write latency", nil))
	m.repositorySubjects = auto.NewGauge(m.gaugeOpts("repository_subjects", "Subjects with a non-zero rolling total"))

	m.httpRequests = auto.NewCounterVec(m.counterOpts("http_requests_total", "HTTP requests by endpoint and method"),
		[]string{"endpoint", "method", "status_code"})
	m.httpRequestDuration = auto.NewHistogramVec(m.histogramOpts("http_request_duration_milliseconds", "HTTP request duration in milliseconds", nil),
		[]string{"endpoint", "method", "status_code"})

	m.errorsByComponent = auto.NewCounterVec(m.counterOpts("errors_by_component_total", "Errors by component and type"),
		[]string{"component", "error_type"})

	m.systemMemoryUsage = auto.NewGauge(m.gaugeOpts("system_memory_usage_bytes", "System memory usage in bytes"))
	m.systemGoroutineCount = auto.NewGauge(m.gaugeOpts("system_goroutine_count", "Number of goroutines"))
	m.systemGCPauseTime = auto.NewHistogram(m.histogramOpts("system_gc_pause_time_milliseconds", "GC pause time in milliseconds",
		[]float64{0.1, 0.5, 1, 2, 5, 10, 25, 50, 100, 250, 500, 1000}))
}

// RecordContributionProcessed increments the persisted contributions counter.
func RecordContributionProcessed() { globalManager.contributionsProcessed.Inc() }

// RecordContributionDuplicate increments the duplicate contributions counter.
func RecordContributionDuplicate() { globalManager.contributionsDuplicate.Inc() }

// RecordContributionRemoved increments the removed contributions counter.
func RecordContributionRemoved() { globalManager.contributionsRemoved.Inc() }

// RecordContributionError increments the contribution error counter.
func RecordContributionError() { globalManager.contributionErrors.Inc() }

// UpdateQueueSize sets the current queue size.
func UpdateQueueSize(size int) { globalManager.queueSize.Set(float64(size)) }

// UpdateQueueCapacity sets the maximum queue capacity.
func UpdateQueueCapacity(capacity int) { globalManager.queueCapacity.Set(float64(capacity)) }

// UpdateQueueUtilization sets the queue utilization ratio.
func UpdateQueueUtilization(utilization float64) { globalManager.queueUtilization.Set(utilization) }

// RecordQueueEnqueue increments the enqueue counter.
func RecordQueueEnqueue() { globalManager.queueEnqueued.Inc() }

// RecordQueueDequeue increments the dequeue counter.
func RecordQueueDequeue() { globalManager.queueDequeued.Inc() }

// RecordQueueEnqueueError increments the enqueue error counter.
func RecordQueueEnqueueError() { globalManager.queueEnqueueErrors.Inc() }

// UpdateWorkerCount sets the current worker count.
func UpdateWorkerCount(count int) { globalManager.workerCount.Set(float64(count)) }

// RecordWorkerProcessingLatency records worker processing latency.
func RecordWorkerProcessingLatency(latencyMs float64) {
	globalManager.workerProcessingLatency.Observe(latencyMs)
}

// RecordSyncTrigger counts a coordinator trigger by its result.
func RecordSyncTrigger(result string) { globalManager.syncTriggers.WithLabelValues(result).Inc() }

// RecordSyncRun records a finished sync run.
func RecordSyncRun(status string, durationMs float64) {
	globalManager.syncRuns.WithLabelValues(status).Inc()
	globalManager.syncRunDuration.Observe(durationMs)
}

// RecordRoleChange counts one applied role mutation ("add" or "remove").
func RecordRoleChange(op string) { globalManager.syncRoleChanges.WithLabelValues(op).Inc() }

// RecordRoleChangeError counts a subject whose change was skipped.
func RecordRoleChangeError() { globalManager.syncRoleErrors.Inc() }

// RecordSkippedSlot counts a slot skipped for missing configuration.
func RecordSkippedSlot() { globalManager.syncSkippedSlots.Inc() }

// UpdateRankedSubjects sets the number of subjects holding a slot.
func UpdateRankedSubjects(count int) { globalManager.rankedSubjects.Set(float64(count)) }

// UpdateSyncLastSuccess sets the unix time of the last successful run.
func UpdateSyncLastSuccess(unix float64) { globalManager.syncLastSuccessSec.Set(unix) }

// RecordDuel counts a resolved duel by outcome.
func RecordDuel(outcome string) { globalManager.duels.WithLabelValues(outcome).Inc() }

// RecordDuelRejection counts a duel rejected before resolution.
func RecordDuelRejection(reason string) { globalManager.duelRejections.WithLabelValues(reason).Inc() }

// RecordDuelRoll observes a per-mille roll.
func RecordDuelRoll(roll int) { globalManager.duelRolls.Observe(float64(roll)) }

// UpdateCooldownEntries sets the number of stored cooldown entries.
func UpdateCooldownEntries(count int) { globalManager.cooldownActive.Set(float64(count)) }

// RecordCooldownPruned counts pruned cooldown entries.
func RecordCooldownPruned(count int) { globalManager.cooldownPruned.Add(float64(count)) }

// RecordRepositoryQueryLatency records store query latency.
func RecordRepositoryQueryLatency(latencyMs float64) {
	globalManager.repositoryQueryLatency.Observe(latencyMs)
}

// RecordRepositoryUpdateLatency records store write latency.
func RecordRepositoryUpdateLatency(latencyMs float64) {
	globalManager.repositoryUpdateLatency.Observe(latencyMs)
}

// UpdateRepositorySubjects sets the number of subjects with a rolling total.
func UpdateRepositorySubjects(count int) { globalManager.repositorySubjects.Set(float64(count)) }

// RecordHTTPRequest records an HTTP request.
func RecordHTTPRequest(endpoint, method, statusCode string) {
	globalManager.httpRequests.WithLabelValues(endpoint, method, statusCode).Inc()
}

// RecordHTTPRequestDuration records HTTP request duration.
func RecordHTTPRequestDuration(endpoint, method, statusCode string, duration float64) {
	globalManager.httpRequestDuration.WithLabelValues(endpoint, method, statusCode).Observe(duration)
}

// RecordErrorByComponent records an error with component and type labels.
func RecordErrorByComponent(component, errorType string) {
	globalManager.errorsByComponent.WithLabelValues(component, errorType).Inc()
}

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
