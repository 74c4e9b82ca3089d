package middleware

import (
	"time"

	"github.com/gin-gonic/gin"

	"github.com/kbukum/sttkit/logger"
	"github.com/kbukum/sttkit/observability"
)

// RequestLogger logs every request with method, route, status and latency
// and records request metrics when metrics is non-nil. Health checks are
// recorded but not logged.
func RequestLogger(log *logger.Logger, metrics *observability.Metrics) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()
		latency := time.Since(start)

		status := c.Writer.Status()
		route := c.FullPath()
		if route == "" {
			route = "unmatched"
		}
		if metrics != nil {
			metrics.RecordRequest(c.Request.Context(), c.Request.Method, route, status, latency)
		}
		if isHealthEndpoint(c.Request.URL.Path) {
			return
		}

		fields := logger.MergeWithDuration(logger.Fields(
			"method", c.Request.Method,
			"path", c.Request.URL.Path,
			logger.FieldStatus, status,
			"client", c.ClientIP(),
			logger.FieldRequestID, RequestIDFrom(c),
		), latency)
		if latency > 30*time.Second {
			fields["slow"] = true
		}
		logByStatus(log, fields, status)
	}
}

func isHealthEndpoint(path string) bool {
	switch path {
	case "/healthz", "/health", "/ready", "/alive":
		return true
	}
	return false
}

// logByStatus logs request fields at the level matching the status code.
func logByStatus(log *logger.Logger, fields map[string]interface{}, status int) {
	switch {
	case status >= 500:
		log.Error("request completed", fields)
	case status >= 400:
		log.Warn("request completed", fields)
	default:
		log.Debug("request completed", fields)
	}
}
