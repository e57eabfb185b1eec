package middleware

import (
	"strconv"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/resoniratech-svg/school-erp-manoj-sub004/internal/metrics"
)

// MetricsMiddleware tracks HTTP request metrics
func MetricsMiddleware() fiber.Handler {
	return func(c *fiber.Ctx) error {
		// Skip metrics endpoint to avoid infinite loop
		if c.Path() == "/metrics" {
			return c.Next()
		}

		metrics.HTTPRequestsInFlight.Inc()
		defer metrics.HTTPRequestsInFlight.Dec()

		start := time.Now()
		err := c.Next()
		duration := time.Since(start).Seconds()

		status := strconv.Itoa(c.Response().StatusCode())
		path := routePath(c)

		metrics.HTTPRequestsTotal.WithLabelValues(c.Method(), path, status).Inc()
		metrics.HTTPRequestDuration.WithLabelValues(c.Method(), path, status).Observe(duration)

		return err
	}
}

// routePath returns the route template (e.g. /v1/students/:id) so that
// entity IDs do not become label values.
func routePath(c *fiber.Ctx) string {
	if r := c.Route(); r != nil && r.Path != "" && r.Path != "/" {
		return r.Path
	}
	return "unmatched"
}
