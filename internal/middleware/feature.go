package middleware

import (
	"github.com/gofiber/fiber/v2"
	"github.com/resoniratech-svg/school-erp-manoj-sub004/internal/featureflag"
	"github.com/resoniratech-svg/school-erp-manoj-sub004/internal/logger"
)

// RequireFeature hides a route group when key is disabled for the actor's
// tenant. A disabled module answers 404 so that it looks absent rather
// than forbidden.
func RequireFeature(registry *featureflag.Registry, key string) fiber.Handler {
	normalized := featureflag.NormalizeKey(key)

	return func(c *fiber.Ctx) error {
		tenantID := GetTenantID(c)
		if tenantID == "" {
			return Unauthorized(c, "authentication required")
		}

		if !registry.IsEnabled(c.UserContext(), tenantID, normalized) {
			GetLogger(c).Debug("Feature disabled for tenant",
				logger.String("tenant_id", tenantID),
				logger.String("feature", normalized))
			return NotFound(c, "module not available")
		}
		return c.Next()
	}
}
