package metrics

import (
	"runtime"
	"sync"
	"sync/atomic"
	"time"
)

// EndpointMetrics tracks metrics for a specific endpoint
type EndpointMetrics struct {
	Requests     int64
	Errors       int64
	TotalLatency int64
}

// Metrics holds all application metrics
type Metrics struct {
	mu sync.RWMutex

	// Request metrics
	TotalRequests      int64
	SuccessfulRequests int64
	FailedRequests     int64

	// Request latency (in milliseconds)
	TotalLatency int64
	RequestCount int64

	// Estimate metrics
	EstimatesRequested  int64
	EstimatesSucceeded  int64
	EstimatesDeclined   int64
	EstimatesFailed     int64
	EstimatesInFlight   int64
	EstimateLatency     int64
	ValidationRejects   int64
	InFlightRejects     int64
	failuresByKind      map[string]int64
	failuresByKindMutex sync.Mutex

	// Session metrics
	SessionsCreated int64
	SessionsExpired int64

	// WebSocket metrics
	WSConnections int64
	WSMessagesIn  int64
	WSMessagesOut int64

	// Endpoint-specific metrics
	EndpointMetrics map[string]*EndpointMetrics

	// Start time for uptime calculation
	StartTime time.Time
}

var globalMetrics *Metrics
var once sync.Once

// Init initializes the global metrics instance
func Init() {
	once.Do(func() {
		globalMetrics = New()
	})
}

// New creates an empty metrics set
func New() *Metrics {
	return &Metrics{
		StartTime:       time.Now(),
		EndpointMetrics: make(map[string]*EndpointMetrics),
		failuresByKind:  make(map[string]int64),
	}
}

// Get returns the global metrics instance
func Get() *Metrics {
	Init()
	return globalMetrics
}

// IncrementRequests increments request counters
func (m *Metrics) IncrementRequests(success bool, latencyMs int64) {
	atomic.AddInt64(&m.TotalRequests, 1)
	atomic.AddInt64(&m.TotalLatency, latencyMs)
	atomic.AddInt64(&m.RequestCount, 1)

	if success {
		atomic.AddInt64(&m.SuccessfulRequests, 1)
	} else {
		atomic.AddInt64(&m.FailedRequests, 1)
	}
}

// IncrementEstimateRequested counts an estimate that reached the API
func (m *Metrics) IncrementEstimateRequested() {
	atomic.AddInt64(&m.EstimatesRequested, 1)
	atomic.AddInt64(&m.EstimatesInFlight, 1)
}

// IncrementEstimateSucceeded counts a parsed estimate; declines are counted separately
func (m *Metrics) IncrementEstimateSucceeded(doable bool, latencyMs int64) {
	atomic.AddInt64(&m.EstimatesSucceeded, 1)
	atomic.AddInt64(&m.EstimatesInFlight, -1)
	atomic.AddInt64(&m.EstimateLatency, latencyMs)
	if !doable {
		atomic.AddInt64(&m.EstimatesDeclined, 1)
	}
}

// IncrementEstimateFailed counts a failed estimate under its failure kind
func (m *Metrics) IncrementEstimateFailed(kind string, latencyMs int64) {
	atomic.AddInt64(&m.EstimatesFailed, 1)
	atomic.AddInt64(&m.EstimatesInFlight, -1)
	atomic.AddInt64(&m.EstimateLatency, latencyMs)

	m.failuresByKindMutex.Lock()
	if m.failuresByKind == nil {
		m.failuresByKind = make(map[string]int64)
	}
	m.failuresByKind[kind]++
	m.failuresByKindMutex.Unlock()
}

// IncrementEstimateRejected counts a submission that never reached the API
func (m *Metrics) IncrementEstimateRejected(inFlight bool) {
	if inFlight {
		atomic.AddInt64(&m.InFlightRejects, 1)
		return
	}
	atomic.AddInt64(&m.ValidationRejects, 1)
}

// IncrementSessionCreated increments session counter
func (m *Metrics) IncrementSessionCreated() {
	atomic.AddInt64(&m.SessionsCreated, 1)
}

// IncrementSessionExpired increments expired session counter
func (m *Metrics) IncrementSessionExpired(n int) {
	atomic.AddInt64(&m.SessionsExpired, int64(n))
}

// IncrementWSConnection increments WebSocket connection counter
func (m *Metrics) IncrementWSConnection() {
	atomic.AddInt64(&m.WSConnections, 1)
}

// DecrementWSConnection decrements WebSocket connection counter
func (m *Metrics) DecrementWSConnection() {
	atomic.AddInt64(&m.WSConnections, -1)
}

// IncrementWSMessageIn increments WebSocket incoming message counter
func (m *Metrics) IncrementWSMessageIn() {
	atomic.AddInt64(&m.WSMessagesIn, 1)
}

// IncrementWSMessageOut increments WebSocket outgoing message counter
func (m *Metrics) IncrementWSMessageOut() {
	atomic.AddInt64(&m.WSMessagesOut, 1)
}

// TrackEndpoint tracks metrics for a specific endpoint
func (m *Metrics) TrackEndpoint(path, method string, statusCode int, latencyMs int64) {
	key := method + " " + path

	m.mu.Lock()
	defer m.mu.Unlock()

	if m.EndpointMetrics == nil {
		m.EndpointMetrics = make(map[string]*EndpointMetrics)
	}

	em, exists := m.EndpointMetrics[key]
	if !exists {
		em = &EndpointMetrics{}
		m.EndpointMetrics[key] = em
	}

	atomic.AddInt64(&em.Requests, 1)
	atomic.AddInt64(&em.TotalLatency, latencyMs)
	if statusCode >= 400 {
		atomic.AddInt64(&em.Errors, 1)
	}
}

// GetEndpointMetrics returns a copy of endpoint metrics
func (m *Metrics) GetEndpointMetrics() map[string]EndpointMetrics {
	m.mu.RLock()
	defer m.mu.RUnlock()

	result := make(map[string]EndpointMetrics)
	for k, v := range m.EndpointMetrics {
		result[k] = EndpointMetrics{
			Requests:     atomic.LoadInt64(&v.Requests),
			Errors:       atomic.LoadInt64(&v.Errors),
			TotalLatency: atomic.LoadInt64(&v.TotalLatency),
		}
	}
	return result
}

// FailuresByKind returns a copy of the failure counts per kind
func (m *Metrics) FailuresByKind() map[string]int64 {
	m.failuresByKindMutex.Lock()
	defer m.failuresByKindMutex.Unlock()

	out := make(map[string]int64, len(m.failuresByKind))
	for k, v := range m.failuresByKind {
		out[k] = v
	}
	return out
}

// GetAverageLatency returns average request latency in milliseconds
func (m *Metrics) GetAverageLatency() float64 {
	count := atomic.LoadInt64(&m.RequestCount)
	if count == 0 {
		return 0
	}
	total := atomic.LoadInt64(&m.TotalLatency)
	return float64(total) / float64(count)
}

// GetUptime returns the application uptime
func (m *Metrics) GetUptime() time.Duration {
	return time.Since(m.StartTime)
}

// EndpointMetricsSnapshot represents endpoint metrics in a snapshot
type EndpointMetricsSnapshot struct {
	Requests     int64   `json:"requests"`
	Errors       int64   `json:"errors"`
	ErrorRate    float64 `json:"error_rate"`
	AvgLatencyMs float64 `json:"avg_latency_ms"`
}

// MetricsSnapshot represents a point-in-time snapshot of all metrics
type MetricsSnapshot struct {
	UptimeSeconds float64 `json:"uptime_seconds"`
	StartTime     string  `json:"start_time"`

	Requests struct {
		Total        int64   `json:"total"`
		Successful   int64   `json:"successful"`
		Failed       int64   `json:"failed"`
		AvgLatencyMs float64 `json:"avg_latency_ms"`
	} `json:"requests"`

	Estimates struct {
		Requested         int64            `json:"requested"`
		Succeeded         int64            `json:"succeeded"`
		Declined          int64            `json:"declined"`
		Failed            int64            `json:"failed"`
		InFlight          int64            `json:"in_flight"`
		ValidationRejects int64            `json:"validation_rejects"`
		InFlightRejects   int64            `json:"in_flight_rejects"`
		AvgLatencyMs      float64          `json:"avg_latency_ms"`
		FailuresByKind    map[string]int64 `json:"failures_by_kind,omitempty"`
	} `json:"estimates"`

	Sessions struct {
		Created int64 `json:"created"`
		Expired int64 `json:"expired"`
		Active  int   `json:"active"`
	} `json:"sessions"`

	WebSocket struct {
		Connections int64 `json:"connections"`
		MessagesIn  int64 `json:"messages_in"`
		MessagesOut int64 `json:"messages_out"`
	} `json:"websocket"`

	System struct {
		Goroutines   int    `json:"goroutines"`
		HeapAllocMB  uint64 `json:"heap_alloc_mb"`
		HeapInUseMB  uint64 `json:"heap_inuse_mb"`
		StackInUseMB uint64 `json:"stack_inuse_mb"`
		NumGC        uint32 `json:"num_gc"`
	} `json:"system"`

	Endpoints map[string]EndpointMetricsSnapshot `json:"endpoints,omitempty"`
}

// Snapshot returns a point-in-time snapshot of all metrics
func (m *Metrics) Snapshot() MetricsSnapshot {
	var memStats runtime.MemStats
	runtime.ReadMemStats(&memStats)

	snapshot := MetricsSnapshot{}

	snapshot.UptimeSeconds = m.GetUptime().Seconds()
	snapshot.StartTime = m.StartTime.Format(time.RFC3339)

	snapshot.Requests.Total = atomic.LoadInt64(&m.TotalRequests)
	snapshot.Requests.Successful = atomic.LoadInt64(&m.SuccessfulRequests)
	snapshot.Requests.Failed = atomic.LoadInt64(&m.FailedRequests)
	snapshot.Requests.AvgLatencyMs = m.GetAverageLatency()

	succeeded := atomic.LoadInt64(&m.EstimatesSucceeded)
	failed := atomic.LoadInt64(&m.EstimatesFailed)
	snapshot.Estimates.Requested = atomic.LoadInt64(&m.EstimatesRequested)
	snapshot.Estimates.Succeeded = succeeded
	snapshot.Estimates.Declined = atomic.LoadInt64(&m.EstimatesDeclined)
	snapshot.Estimates.Failed = failed
	snapshot.Estimates.InFlight = atomic.LoadInt64(&m.EstimatesInFlight)
	snapshot.Estimates.ValidationRejects = atomic.LoadInt64(&m.ValidationRejects)
	snapshot.Estimates.InFlightRejects = atomic.LoadInt64(&m.InFlightRejects)
	if done := succeeded + failed; done > 0 {
		snapshot.Estimates.AvgLatencyMs = float64(atomic.LoadInt64(&m.EstimateLatency)) / float64(done)
	}
	if kinds := m.FailuresByKind(); len(kinds) > 0 {
		snapshot.Estimates.FailuresByKind = kinds
	}

	snapshot.Sessions.Created = atomic.LoadInt64(&m.SessionsCreated)
	snapshot.Sessions.Expired = atomic.LoadInt64(&m.SessionsExpired)

	snapshot.WebSocket.Connections = atomic.LoadInt64(&m.WSConnections)
	snapshot.WebSocket.MessagesIn = atomic.LoadInt64(&m.WSMessagesIn)
	snapshot.WebSocket.MessagesOut = atomic.LoadInt64(&m.WSMessagesOut)

	snapshot.System.Goroutines = runtime.NumGoroutine()
	snapshot.System.HeapAllocMB = memStats.HeapAlloc / 1024 / 1024
	snapshot.System.HeapInUseMB = memStats.HeapInuse / 1024 / 1024
	snapshot.System.StackInUseMB = memStats.StackInuse / 1024 / 1024
	snapshot.System.NumGC = memStats.NumGC

	endpointMetrics := m.GetEndpointMetrics()
	if len(endpointMetrics) > 0 {
		snapshot.Endpoints = make(map[string]EndpointMetricsSnapshot)
		for k, v := range endpointMetrics {
			em := EndpointMetricsSnapshot{
				Requests: v.Requests,
				Errors:   v.Errors,
			}
			if v.Requests > 0 {
				em.ErrorRate = float64(v.Errors) / float64(v.Requests) * 100
				em.AvgLatencyMs = float64(v.TotalLatency) / float64(v.Requests)
			}
			snapshot.Endpoints[k] = em
		}
	}

	return snapshot
}

// Health status values
const (
	StatusHealthy   = "healthy"
	StatusDegraded  = "degraded"
	StatusUnhealthy = "unhealthy"
)

// HealthStatus represents the health status of a component
type HealthStatus struct {
	Status  string `json:"status"`
	Message string `json:"message,omitempty"`
	Latency int64  `json:"latency_ms,omitempty"`
}

// HealthCheck represents the overall health check response
type HealthCheck struct {
	Status     string                  `json:"status"`
	Version    string                  `json:"version"`
	Uptime     string                  `json:"uptime"`
	Timestamp  string                  `json:"timestamp"`
	Components map[string]HealthStatus `json:"components"`
}

// CheckEstimatorHealth reports whether the estimator can reach the API at all.
// Without a key every estimate fails closed, so the component is degraded.
func CheckEstimatorHealth(configured bool, model string) HealthStatus {
	if !configured {
		return HealthStatus{
			Status:  StatusDegraded,
			Message: "GEMINI_API_KEY not configured; estimates will fail",
		}
	}
	return HealthStatus{
		Status:  StatusHealthy,
		Message: "model " + model,
	}
}

// CheckMemoryHealth checks memory usage
func CheckMemoryHealth(maxHeapMB uint64) HealthStatus {
	var memStats runtime.MemStats
	runtime.ReadMemStats(&memStats)

	heapMB := memStats.HeapAlloc / 1024 / 1024

	if heapMB > maxHeapMB {
		return HealthStatus{
			Status:  StatusUnhealthy,
			Message: "heap memory exceeds limit",
		}
	}

	// Warn above 80% of limit
	if heapMB > (maxHeapMB * 80 / 100) {
		return HealthStatus{
			Status:  StatusDegraded,
			Message: "heap memory usage high",
		}
	}

	return HealthStatus{
		Status: StatusHealthy,
	}
}

// DetermineOverallStatus determines overall health from component statuses
func DetermineOverallStatus(components map[string]HealthStatus) string {
	hasUnhealthy := false
	hasDegraded := false

	for _, status := range components {
		switch status.Status {
		case StatusUnhealthy:
			hasUnhealthy = true
		case StatusDegraded:
			hasDegraded = true
		}
	}

	if hasUnhealthy {
		return StatusUnhealthy
	}
	if hasDegraded {
		return StatusDegraded
	}
	return StatusHealthy
}
