package middleware

import (
	"net/http"

	"github.com/gfearing/fearings-services/internal/logger"
	"github.com/gin-gonic/gin"
)

// Recovery logs panics through the request logger and answers with a generic 500
func Recovery() gin.HandlerFunc {
	return gin.CustomRecovery(func(c *gin.Context, recovered any) {
		logger.FromGin(c).Error().
			Interface("panic", recovered).
			Str("path", c.Request.URL.Path).
			Msg("Panic recovered")

		c.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{
			"success": false,
			"error":   "Internal server error",
			"code":    "INTERNAL_ERROR",
		})
	})
}
