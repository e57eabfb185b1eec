package middleware

import (
	"math"
	"strconv"

	"github.com/gofiber/fiber/v2"
	"github.com/resoniratech-svg/school-erp-manoj-sub004/internal/logger"
	"github.com/resoniratech-svg/school-erp-manoj-sub004/internal/metrics"
	"github.com/resoniratech-svg/school-erp-manoj-sub004/internal/ratelimit"
)

// RateLimit throttles requests per client IP. limiterType labels the
// metrics, e.g. "login".
func RateLimit(store *ratelimit.Store, limiterType string) fiber.Handler {
	return func(c *fiber.Ctx) error {
		key := c.IP()
		allowed := store.Allow(key)
		metrics.RateLimitActiveClients.WithLabelValues(limiterType).Set(float64(store.Count()))

		if !allowed {
			metrics.RateLimitExceeded.WithLabelValues(limiterType).Inc()

			retryAfter := int(math.Ceil(store.RetryAfter(key).Seconds()))
			if retryAfter < 1 {
				retryAfter = 1
			}
			c.Set(fiber.HeaderRetryAfter, strconv.Itoa(retryAfter))

			GetLogger(c).Warn("Rate limit exceeded",
				logger.String("limiter", limiterType),
				logger.String("ip", key))
			return TooManyRequests(c, "too many attempts, retry after "+strconv.Itoa(retryAfter)+"s")
		}

		return c.Next()
	}
}
