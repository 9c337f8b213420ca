package middleware

import (
	"strconv"
	"time"

	"patapesa/internal/metrics"

	"github.com/gin-gonic/gin"
)

// MetricsMiddleware counts requests per route template, so /profile/:userId
// stays one series.
func MetricsMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()

		route := c.FullPath()
		if route == "" {
			route = "unmatched"
		}
		metrics.HTTPRequests.WithLabelValues(route, c.Request.Method, strconv.Itoa(c.Writer.Status())).Inc()
		metrics.HTTPDuration.WithLabelValues(route, c.Request.Method).Observe(time.Since(start).Seconds())
	}
}
