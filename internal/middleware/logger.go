package middleware

import (
	"time"

	"github.com/charmbracelet/log"
	"github.com/gin-gonic/gin"
)

// RequestLogger logs one line per request. Server errors are logged at
// error level, client errors at warn, everything else at info.
func RequestLogger(logger *log.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		path := c.Request.URL.Path

		c.Next()

		status := c.Writer.Status()
		kv := []any{
			"method", c.Request.Method,
			"path", path,
			"status", status,
			"latency", time.Since(start),
			"ip", c.ClientIP(),
		}
		if len(c.Errors) > 0 {
			kv = append(kv, "err", c.Errors.String())
		}

		switch {
		case status >= 500:
			logger.Error("request", kv...)
		case status >= 400:
			logger.Warn("request", kv...)
		default:
			logger.Info("request", kv...)
		}
	}
}
