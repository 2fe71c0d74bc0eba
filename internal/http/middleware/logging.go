// README: Request logging middleware on the shared structured logger.
package middleware

import (
	"time"

	"github.com/gin-gonic/gin"

	"unipool/internal/logger"
)

func Logging() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()
		logger.L.WithFields(map[string]any{
			"method":  c.Request.Method,
			"path":    c.Request.URL.Path,
			"status":  c.Writer.Status(),
			"elapsed": time.Since(start).String(),
		}).Info("http request")
	}
}
