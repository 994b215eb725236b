// Package metrics provides Prometheus metrics for the arena client core.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Manager owns every collector exported by arena.
type Manager struct {
	namespace        string
	subsystem        string
	histogramBuckets []float64
	constLabels      map[string]string
	registry         prometheus.Registerer

	// Backend calls
	backendRequests        *prometheus.CounterVec
	backendRequestDuration *prometheus.HistogramVec

	// Leaderboard
	leaderboardFetches *prometheus.CounterVec
	treeCacheHits      prometheus.Counter
	treeCacheMisses    prometheus.Counter
	treeCacheEntries   prometheus.Gauge

	// Verification
	verificationAttempts    *prometheus.CounterVec
	verificationTransitions *prometheus.CounterVec
	verificationSessions    prometheus.Gauge

	// Score editor
	scoreSaves *prometheus.CounterVec

	// Cache refresh queue and workers
	refreshEnqueues    *prometheus.CounterVec
	refreshQueueSize   prometheus.Gauge
	refreshJobs        *prometheus.CounterVec
	refreshJobDuration prometheus.Histogram
	refreshWorkers     prometheus.Gauge

	// BFF HTTP
	httpRequests        *prometheus.CounterVec
	httpRequestDuration *prometheus.HistogramVec
	errorRateByEndpoint *prometheus.CounterVec
	errorRateByType     *prometheus.CounterVec
	websocketSessions   prometheus.Gauge

	// Runtime
	systemMemoryUsage    prometheus.Gauge
	systemGoroutineCount prometheus.Gauge
}

var globalManager *Manager //nolint:gochecknoglobals // singleton used by package-level helpers

var customRegistry = prometheus.NewRegistry() //nolint:gochecknoglobals // keeps default Go collectors out

func init() { //nolint:gochecknoinits // global metrics setup
	globalManager = NewManager(WithPrometheusRegistry(customRegistry))
}

// NewManager creates a metrics manager and registers its collectors.
func NewManager(opts ...Option) *Manager {
	m := &Manager{
		namespace:        "arena",
		subsystem:        "client",
		histogramBuckets: []float64{5, 10, 25, 50, 100, 250, 500, 1000, 2500, 5000, 10000},
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

func (m *Manager) histogramOpts(name, help string) prometheus.HistogramOpts {
	return prometheus.HistogramOpts{
		Namespace:   m.namespace,
		Subsystem:   m.subsystem,
		Name:        name,
		Help:        help,
		Buckets:     m.histogramBuckets,
		ConstLabels: m.constLabels,
	}
}

func (m *Manager) initializeMetrics() { //nolint:funlen // one place for every collector
	auto := promauto.With(m.registry)

	m.backendRequests = auto.NewCounterVec(
		m.counterOpts("backend_requests_total", "Requests sent to the platform backend"),
		[]string{"endpoint", "method", "status_code"},
	)
	m.backendRequestDuration = auto.NewHistogramVec(
		m.histogramOpts("backend_request_duration_milliseconds", "Backend request latency in milliseconds"),
		[]string{"endpoint", "method"},
	)

	m.leaderboardFetches = auto.NewCounterVec(
		m.counterOpts("leaderboard_fetches_total", "Leaderboard tree fetches by result (loaded, empty, failed)"),
		[]string{"result"},
	)
	m.treeCacheHits = auto.NewCounter(m.counterOpts("tree_cache_hits_total", "Leaderboard tree cache hits"))
	m.treeCacheMisses = auto.NewCounter(m.counterOpts("tree_cache_misses_total", "Leaderboard tree cache misses"))
	m.treeCacheEntries = auto.NewGauge(m.gaugeOpts("tree_cache_entries", "Leaderboard trees currently cached"))

	m.verificationAttempts = auto.NewCounterVec(
		m.counterOpts("verification_attempts_total", "Payment verification attempts by trigger and result"),
		[]string{"trigger", "result"},
	)
	m.verificationTransitions = auto.NewCounterVec(
		m.counterOpts("verification_transitions_total", "Verification state transitions by target state"),
		[]string{"state"},
	)
	m.verificationSessions = auto.NewGauge(m.gaugeOpts("verification_sessions", "Active verification pollers"))

	m.scoreSaves = auto.NewCounterVec(
		m.counterOpts("score_saves_total", "Score adjustment batch saves by result"),
		[]string{"result"},
	)

	m.refreshEnqueues = auto.NewCounterVec(
		m.counterOpts("refresh_enqueues_total", "Tree refresh jobs offered to the queue by result"),
		[]string{"result"},
	)
	m.refreshQueueSize = auto.NewGauge(m.gaugeOpts("refresh_queue_size", "Tree refresh jobs waiting"))
	m.refreshJobs = auto.NewCounterVec(
		m.counterOpts("refresh_jobs_total", "Tree refresh jobs processed by result"),
		[]string{"result"},
	)
	m.refreshJobDuration = auto.NewHistogram(
		m.histogramOpts("refresh_job_duration_milliseconds", "Tree refresh job duration in milliseconds"),
	)
	m.refreshWorkers = auto.NewGauge(m.gaugeOpts("refresh_workers", "Running tree refresh workers"))

	m.httpRequests = auto.NewCounterVec(
		m.counterOpts("http_requests_total", "BFF HTTP requests by endpoint and method"),
		[]string{"endpoint", "method", "status_code"},
	)
	m.httpRequestDuration = auto.NewHistogramVec(
		m.histogramOpts("http_request_duration_milliseconds", "BFF HTTP request duration in milliseconds"),
		[]string{"endpoint", "method", "status_code"},
	)
	m.errorRateByEndpoint = auto.NewCounterVec(
		m.counterOpts("errors_by_endpoint_total", "BFF errors by endpoint, method and error type"),
		[]string{"endpoint", "method", "error_type"},
	)
	m.errorRateByType = auto.NewCounterVec(
		m.counterOpts("errors_by_type_total", "Errors by type and severity"),
		[]string{"error_type", "severity"},
	)
	m.websocketSessions = auto.NewGauge(m.gaugeOpts("websocket_sessions", "Open verification websocket connections"))

	m.systemMemoryUsage = auto.NewGauge(m.gaugeOpts("system_memory_usage_bytes", "Allocated heap bytes"))
	m.systemGoroutineCount = auto.NewGauge(m.gaugeOpts("system_goroutines", "Number of goroutines"))
}

// Backend.

// RecordBackendRequest counts one backend call and observes its latency.
func RecordBackendRequest(endpoint, method, statusCode string, durationMs float64) {
	globalManager.backendRequests.WithLabelValues(endpoint, method, statusCode).Inc()
	globalManager.backendRequestDuration.WithLabelValues(endpoint, method).Observe(durationMs)
}

// Leaderboard.

// RecordLeaderboardFetch counts a tree fetch outcome.
func RecordLeaderboardFetch(result string) {
	globalManager.leaderboardFetches.WithLabelValues(result).Inc()
}

// RecordTreeCacheHit increments the cache hit counter.
func RecordTreeCacheHit() {
	globalManager.treeCacheHits.Inc()
}

// RecordTreeCacheMiss increments the cache miss counter.
func RecordTreeCacheMiss() {
	globalManager.treeCacheMisses.Inc()
}

// UpdateTreeCacheEntries sets the number of cached trees.
func UpdateTreeCacheEntries(n int) {
	globalManager.treeCacheEntries.Set(float64(n))
}

// Verification.

// RecordVerificationAttempt counts one verification request.
// trigger is "initial", "interval" or "manual"; result is "success" or "error".
func RecordVerificationAttempt(trigger, result string) {
	globalManager.verificationAttempts.WithLabelValues(trigger, result).Inc()
}

// RecordVerificationTransition counts a state change into state.
func RecordVerificationTransition(state string) {
	globalManager.verificationTransitions.WithLabelValues(state).Inc()
}

// AddVerificationSessions adjusts the active poller gauge by delta.
func AddVerificationSessions(delta int) {
	globalManager.verificationSessions.Add(float64(delta))
}

// Scores.

// RecordScoreSave counts a batch save outcome.
func RecordScoreSave(result string) {
	globalManager.scoreSaves.WithLabelValues(result).Inc()
}

// Refresh.

// RecordRefreshEnqueue counts an enqueue attempt (queued, full, closed).
func RecordRefreshEnqueue(result string) {
	globalManager.refreshEnqueues.WithLabelValues(result).Inc()
}

// UpdateRefreshQueueSize sets the number of waiting refresh jobs.
func UpdateRefreshQueueSize(n int) {
	globalManager.refreshQueueSize.Set(float64(n))
}

// RecordRefreshJob counts a processed job and observes its duration.
func RecordRefreshJob(result string, durationMs float64) {
	globalManager.refreshJobs.WithLabelValues(result).Inc()
	globalManager.refreshJobDuration.Observe(durationMs)
}

// AddRefreshWorkers adjusts the running worker gauge by delta.
func AddRefreshWorkers(delta int) {
	globalManager.refreshWorkers.Add(float64(delta))
}

// HTTP.

// RecordHTTPRequest increments the BFF request counter.
func RecordHTTPRequest(endpoint, method, statusCode string) {
	globalManager.httpRequests.WithLabelValues(endpoint, method, statusCode).Inc()
}

// RecordHTTPRequestDuration observes BFF request latency.
func RecordHTTPRequestDuration(endpoint, method, statusCode string, duration float64) {
	globalManager.httpRequestDuration.WithLabelValues(endpoint, method, statusCode).Observe(duration)
}

// RecordErrorByEndpoint records an error with endpoint, method, and error type labels.
func RecordErrorByEndpoint(endpoint, method, errorType string) {
	globalManager.errorRateByEndpoint.WithLabelValues(endpoint, method, errorType).Inc()
}

// RecordErrorByType records an error with type and severity labels.
func RecordErrorByType(errorType, severity string) {
	globalManager.errorRateByType.WithLabelValues(errorType, severity).Inc()
}

// AddWebsocketSessions adjusts the open websocket gauge by delta.
func AddWebsocketSessions(delta int) {
	globalManager.websocketSessions.Add(float64(delta))
}

// Runtime.

// UpdateSystemMemoryUsage sets the allocated heap in bytes.
func UpdateSystemMemoryUsage(bytes uint64) {
	globalManager.systemMemoryUsage.Set(float64(bytes))
}

// UpdateSystemGoroutineCount sets the number of goroutines.
func UpdateSystemGoroutineCount(count int) {
	globalManager.systemGoroutineCount.Set(float64(count))
}

// GetRegistry returns the registry all package-level helpers record into.
func GetRegistry() *prometheus.Registry {
	return customRegistry
}
