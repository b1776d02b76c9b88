package middleware

import (
	"log/slog"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"

	"ridecore/internal/observability"
)

// MetricsMiddleware records request totals and latency by route template.
func MetricsMiddleware(logger *slog.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()

		route := c.FullPath()
		if route == "" {
			route = "unmatched"
		}
		status := strconv.Itoa(c.Writer.Status())
		elapsed := time.Since(start)

		observability.HTTPRequestsTotal.WithLabelValues(c.Request.Method, route, status).Inc()
		observability.HTTPRequestDuration.WithLabelValues(c.Request.Method, route, status).Observe(elapsed.Seconds())

		if c.Writer.Status() >= 500 {
			logger.Error("http_request",
				"method", c.Request.Method,
				"route", route,
				"status", c.Writer.Status(),
				"duration_ms", elapsed.Milliseconds(),
				"errors", c.Errors.String(),
			)
		}
	}
}
