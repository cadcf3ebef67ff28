package middleware

import (
	"strconv"
	"time"

	"github.com/gin-gonic/gin"

	"sitepulse/monitoring"
)

// Metrics records request counts and durations labelled by route template.
func Metrics(m *monitoring.Metrics) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()

		path := c.FullPath()
		if path == "" {
			path = "unmatched"
		}
		status := strconv.Itoa(c.Writer.Status())

		m.HTTPRequestDuration.WithLabelValues(c.Request.Method, path, status).Observe(time.Since(start).Seconds())
		m.HTTPRequestsTotal.WithLabelValues(c.Request.Method, path, status).Inc()
	}
}
