package middleware

import (
	"net/http"
	"time"

	"github.com/gfearing/fearings-services/internal/logger"
	"github.com/gfearing/fearings-services/internal/metrics"
	"github.com/gin-gonic/gin"
)

// MetricsMiddleware tracks request metrics
func MetricsMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()

		c.Next()

		latency := time.Since(start).Milliseconds()
		statusCode := c.Writer.Status()
		success := statusCode < 400

		metrics.Get().IncrementRequests(success, latency)

		path := c.FullPath()
		if path == "" {
			path = "unmatched"
		}
		metrics.Get().TrackEndpoint(path, c.Request.Method, statusCode, latency)
	}
}

// AuditMiddleware writes an audit record for every state-changing API request
func AuditMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()

		c.Next()

		switch c.Request.Method {
		case http.MethodPost, http.MethodPut, http.MethodDelete:
			logger.AuditRequest(
				c.Request.Context(),
				c.Request.Method,
				c.Request.URL.Path,
				c.Writer.Status(),
				time.Since(start).Milliseconds(),
				c.ClientIP(),
			)
		}
	}
}
