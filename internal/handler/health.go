package handler

import (
	"net/http"
	"runtime"
	"time"

	"github.com/gfearing/fearings-services/internal/metrics"
	"github.com/gfearing/fearings-services/internal/session"
	"github.com/gfearing/fearings-services/internal/websocket"
	"github.com/gin-gonic/gin"
)

// maxHeapMB bounds heap use before the service reports itself unhealthy
const maxHeapMB = 512

// EstimatorStatus reports whether estimates can reach the API
type EstimatorStatus interface {
	Configured() bool
	Model() string
}

// HealthHandler handles health check and metrics endpoints
type HealthHandler struct {
	estimator EstimatorStatus
	wsHub     *websocket.Hub
	store     *session.Store
	version   string
	startTime time.Time
}

// NewHealthHandler creates a new health handler
func NewHealthHandler(estimator EstimatorStatus, wsHub *websocket.Hub, store *session.Store, version string) *HealthHandler {
	return &HealthHandler{
		estimator: estimator,
		wsHub:     wsHub,
		store:     store,
		version:   version,
		startTime: time.Now(),
	}
}

// LivenessCheck returns basic liveness status
// @Summary Liveness check
// @Tags health
// @Produce json
// @Success 200 {object} map[string]string
// @Router /health/live [get]
func (h *HealthHandler) LivenessCheck(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"status": "ok",
	})
}

// ReadinessCheck reports degraded when no API key is configured; the page
// still serves, only estimates fail
// @Summary Readiness check
// @Tags health
// @Produce json
// @Success 200 {object} metrics.HealthCheck
// @Failure 503 {object} metrics.HealthCheck
// @Router /health/ready [get]
func (h *HealthHandler) ReadinessCheck(c *gin.Context) {
	components := map[string]metrics.HealthStatus{
		"estimator": metrics.CheckEstimatorHealth(h.estimator.Configured(), h.estimator.Model()),
		"memory":    metrics.CheckMemoryHealth(maxHeapMB),
	}

	h.respond(c, components)
}

// DetailedHealthCheck returns comprehensive health information
// @Summary Detailed health check
// @Tags health
// @Produce json
// @Success 200 {object} metrics.HealthCheck
// @Failure 503 {object} metrics.HealthCheck
// @Router /health [get]
func (h *HealthHandler) DetailedHealthCheck(c *gin.Context) {
	components := map[string]metrics.HealthStatus{
		"estimator": metrics.CheckEstimatorHealth(h.estimator.Configured(), h.estimator.Model()),
		"memory":    metrics.CheckMemoryHealth(maxHeapMB),
		"websocket": h.checkWebSocketHealth(),
		"estimates": h.checkEstimateHealth(),
	}

	h.respond(c, components)
}

func (h *HealthHandler) respond(c *gin.Context, components map[string]metrics.HealthStatus) {
	overallStatus := metrics.DetermineOverallStatus(components)

	healthCheck := metrics.HealthCheck{
		Status:     overallStatus,
		Version:    h.version,
		Uptime:     time.Since(h.startTime).String(),
		Timestamp:  time.Now().UTC().Format(time.RFC3339),
		Components: components,
	}

	statusCode := http.StatusOK
	if overallStatus == metrics.StatusUnhealthy {
		statusCode = http.StatusServiceUnavailable
	}

	c.JSON(statusCode, healthCheck)
}

// checkWebSocketHealth checks WebSocket hub health
func (h *HealthHandler) checkWebSocketHealth() metrics.HealthStatus {
	if h.wsHub == nil {
		return metrics.HealthStatus{
			Status:  metrics.StatusUnhealthy,
			Message: "WebSocket hub not initialized",
		}
	}

	return metrics.HealthStatus{
		Status: metrics.StatusHealthy,
	}
}

// checkEstimateHealth degrades when most recent estimates fail
func (h *HealthHandler) checkEstimateHealth() metrics.HealthStatus {
	snapshot := metrics.Get().Snapshot()

	total := snapshot.Estimates.Succeeded + snapshot.Estimates.Failed
	if total >= 5 {
		failureRate := float64(snapshot.Estimates.Failed) / float64(total) * 100
		if failureRate > 50 {
			return metrics.HealthStatus{
				Status:  metrics.StatusDegraded,
				Message: "High estimate failure rate",
			}
		}
	}

	return metrics.HealthStatus{
		Status: metrics.StatusHealthy,
	}
}

// GetMetrics returns application metrics
// @Summary Get application metrics
// @Tags metrics
// @Produce json
// @Success 200 {object} metrics.MetricsSnapshot
// @Router /metrics [get]
func (h *HealthHandler) GetMetrics(c *gin.Context) {
	snapshot := metrics.Get().Snapshot()
	if h.store != nil {
		snapshot.Sessions.Active = h.store.Size()
	}
	c.JSON(http.StatusOK, snapshot)
}

// DebugMemory returns runtime memory statistics
func (h *HealthHandler) DebugMemory(c *gin.Context) {
	var m runtime.MemStats
	runtime.ReadMemStats(&m)

	c.JSON(http.StatusOK, gin.H{
		"alloc_mb":       m.Alloc / 1024 / 1024,
		"total_alloc_mb": m.TotalAlloc / 1024 / 1024,
		"sys_mb":         m.Sys / 1024 / 1024,
		"heap_alloc_mb":  m.HeapAlloc / 1024 / 1024,
		"heap_inuse_mb":  m.HeapInuse / 1024 / 1024,
		"heap_objects":   m.HeapObjects,
		"goroutines":     runtime.NumGoroutine(),
		"gc_runs":        m.NumGC,
		"gc_pause_total": m.PauseTotalNs / 1000000, // ms
	})
}
