// Package metrics provides Prometheus metrics for the divtracker service.
package metrics

import (
	"runtime"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const (
	defaultRefreshInterval = 10 * time.Second
)

// Outcome label values shared by the counters below.
const (
	OutcomeSuccess   = "success"
	OutcomeFailure   = "failure"
	OutcomeEmpty     = "empty"
	OutcomeUpstream  = "upstream_error"
	OutcomeExhausted = "exhausted"
	OutcomeTimeout   = "timeout"
	OutcomeCached    = "cached"
)

// Manager manages all Prometheus metrics for the divtracker service.
type Manager struct {
	namespace        string
	subsystem        string
	histogramBuckets []float64
	refreshInterval  time.Duration
	registry         prometheus.Registerer

	// Session
	ticketRenewals *prometheus.CounterVec
	ticketValid    prometheus.Gauge

	// Lookups
	resolveTotal   *prometheus.CounterVec
	batchesTotal   *prometheus.CounterVec
	fetchTasks     *prometheus.CounterVec
	fetchLatency   *prometheus.HistogramVec
	nameRecords    *prometheus.CounterVec
	storeLatency   *prometheus.HistogramVec
	browserSession *prometheus.CounterVec

	// HTTP
	httpRequests        *prometheus.CounterVec
	httpRequestDuration *prometheus.HistogramVec

	// Errors
	errorRateByComponent *prometheus.CounterVec
	errorRateByEndpoint  *prometheus.CounterVec

	// System
	systemMemoryUsage    prometheus.Gauge
	systemGoroutineCount prometheus.Gauge
}

var globalManager *Manager //nolint:gochecknoglobals // singleton metrics manager

// Custom registry to avoid default Go metrics.
var customRegistry = prometheus.NewRegistry() //nolint:gochecknoglobals // metrics registry

func init() { //nolint:gochecknoinits // global metrics setup
	globalManager = NewManager(WithPrometheusRegistry(customRegistry))
}

// NewManager creates a new metrics manager with default configuration.
func NewManager(opts ...Option) *Manager {
	m := &Manager{
		namespace:        "divtracker",
		subsystem:        "lookup",
		histogramBuckets: []float64{5, 10, 25, 50, 100, 250, 500, 1000, 2500, 5000, 10000},
		refreshInterval:  defaultRefreshInterval,
		registry:         prometheus.DefaultRegisterer,
	}

	for _, opt := range opts {
		opt(m)
	}

	m.initializeMetrics()

	return m
}

// RefreshInterval reports how often system gauges should be sampled.
func (m *Manager) RefreshInterval() time.Duration {
	return m.refreshInterval
}

func (m *Manager) counterVec(name, help string, labels ...string) *prometheus.CounterVec {
	return promauto.With(m.registry).NewCounterVec(prometheus.CounterOpts{
		Namespace: m.namespace,
		Subsystem: m.subsystem,
		Name:      name,
		Help:      help,
	}, labels)
}

func (m *Manager) histogramVec(name, help string, labels ...string) *prometheus.HistogramVec {
	return promauto.With(m.registry).NewHistogramVec(prometheus.HistogramOpts{
		Namespace: m.namespace,
		Subsystem: m.subsystem,
		Name:      name,
		Help:      help,
		Buckets:   m.histogramBuckets,
	}, labels)
}

func (m *Manager) gauge(name, help string) prometheus.Gauge {
	return promauto.With(m.registry).NewGauge(prometheus.GaugeOpts{
		Namespace: m.namespace,
		Subsystem: m.subsystem,
		Name:      name,
		Help:      help,
	})
}

func (m *Manager) initializeMetrics() {
	m.ticketRenewals = m.counterVec("ticket_renewals_total",
		"Session ticket renewals by outcome", "outcome")
	m.ticketValid = m.gauge("ticket_valid",
		"1 when the cached session ticket is outside the renewal margin")

	m.resolveTotal = m.counterVec("resolve_total",
		"Name resolutions by outcome", "outcome")
	m.batchesTotal = m.counterVec("batches_total",
		"Batch stats fetches by game and outcome", "game", "outcome")
	m.fetchTasks = m.counterVec("fetch_tasks_total",
		"Per-profile fetch tasks by game and outcome", "game", "outcome")
	m.fetchLatency = m.histogramVec("fetch_latency_milliseconds",
		"Per-profile fetch latency", "game")
	m.nameRecords = m.counterVec("name_records_total",
		"Name store writes by outcome", "outcome")
	m.storeLatency = m.histogramVec("store_latency_milliseconds",
		"Name store operation latency", "op")
	m.browserSession = m.counterVec("browser_sessions_total",
		"Headless browser sessions by driver and outcome", "driver", "outcome")

	m.httpRequests = m.counterVec("http_requests_total",
		"Total number of HTTP requests", "endpoint", "method", "status_code")
	m.httpRequestDuration = m.histogramVec("http_request_duration_milliseconds",
		"HTTP request duration", "endpoint", "method", "status_code")

	m.errorRateByComponent = m.counterVec("errors_by_component_total",
		"Total number of errors by component", "component", "error_type")
	m.errorRateByEndpoint = m.counterVec("errors_by_endpoint_total",
		"Total number of errors by endpoint", "endpoint", "method", "error_type")

	m.systemMemoryUsage = m.gauge("system_memory_usage_bytes", "Heap memory in use")
	m.systemGoroutineCount = m.gauge("system_goroutine_count", "Number of goroutines")
}

// RecordTicketRenewal counts a renewal attempt sequence by outcome.
func RecordTicketRenewal(outcome string) {
	globalManager.ticketRenewals.WithLabelValues(outcome).Inc()
}

// UpdateTicketValid sets the ticket validity gauge.
func UpdateTicketValid(valid bool) {
	v := 0.0
	if valid {
		v = 1
	}
	globalManager.ticketValid.Set(v)
}

// RecordResolve counts a name resolution.
func RecordResolve(outcome string) {
	globalManager.resolveTotal.WithLabelValues(outcome).Inc()
}

// RecordBatch counts a finished batch.
func RecordBatch(game, outcome string) {
	globalManager.batchesTotal.WithLabelValues(game, outcome).Inc()
}

// RecordFetchTask counts one per-profile task.
func RecordFetchTask(game, outcome string) {
	globalManager.fetchTasks.WithLabelValues(game, outcome).Inc()
}

// RecordFetchLatency records per-profile fetch latency in milliseconds.
func RecordFetchLatency(game string, latencyMs float64) {
	globalManager.fetchLatency.WithLabelValues(game).Observe(latencyMs)
}

// RecordNameRecord counts a name store write.
func RecordNameRecord(outcome string) {
	globalManager.nameRecords.WithLabelValues(outcome).Inc()
}

// RecordStoreLatency records a name store operation latency in milliseconds.
func RecordStoreLatency(op string, latencyMs float64) {
	globalManager.storeLatency.WithLabelValues(op).Observe(latencyMs)
}

// RecordBrowserSession counts a browser session.
func RecordBrowserSession(driver, outcome string) {
	globalManager.browserSession.WithLabelValues(driver, outcome).Inc()
}

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
	globalManager.errorRateByComponent.WithLabelValues(component, errorType).Inc()
}

// RecordErrorByEndpoint records an error with endpoint, method, and error type labels.
func RecordErrorByEndpoint(endpoint, method, errorType string) {
	globalManager.errorRateByEndpoint.WithLabelValues(endpoint, method, errorType).Inc()
}

// UpdateSystemMetrics samples heap and goroutine gauges.
func UpdateSystemMetrics() {
	var ms runtime.MemStats
	runtime.ReadMemStats(&ms)
	globalManager.systemMemoryUsage.Set(float64(ms.HeapInuse))
	globalManager.systemGoroutineCount.Set(float64(runtime.NumGoroutine()))
}

// RefreshInterval returns the sampling interval of the global manager.
func RefreshInterval() time.Duration {
	return globalManager.refreshInterval
}

// GetRegistry returns the custom Prometheus registry used by our metrics.
func GetRegistry() *prometheus.Registry {
	return customRegistry
}
