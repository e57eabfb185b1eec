package middleware

import (
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/resoniratech-svg/school-erp-manoj-sub004/internal/authz"
	"github.com/resoniratech-svg/school-erp-manoj-sub004/internal/logger"
	"github.com/resoniratech-svg/school-erp-manoj-sub004/internal/metrics"
)

// RequirePermission lets the request through only if the actor holds p.
func RequirePermission(p authz.Permission) fiber.Handler {
	return Require(authz.Require(p))
}

// RequireAnyPermission lets the request through if the actor holds at
// least one of ps.
func RequireAnyPermission(ps ...authz.Permission) fiber.Handler {
	return Require(authz.RequireAny(ps...))
}

// RequireAllPermissions lets the request through only if the actor holds
// every one of ps.
func RequireAllPermissions(ps ...authz.Permission) fiber.Handler {
	return Require(authz.RequireAll(ps...))
}

// Require enforces req. A request without an actor gets 401, an actor that
// does not satisfy req gets 403.
func Require(req authz.Requirement) fiber.Handler {
	mode := string(req.Mode)
	required := req.Strings()

	return func(c *fiber.Ctx) error {
		start := time.Now()
		actor := GetActor(c)
		allowed := req.Allows(actor)
		metrics.AuthzDecisionDuration.WithLabelValues(mode).Observe(time.Since(start).Seconds())

		if actor == nil {
			metrics.AuthzDecisionsTotal.WithLabelValues(mode, "unauthenticated").Inc()
			return Unauthorized(c, "authentication required")
		}
		if !allowed {
			metrics.AuthzDecisionsTotal.WithLabelValues(mode, "deny").Inc()
			GetLogger(c).Warn("Permission denied",
				logger.String("tenant_id", actor.TenantID),
				logger.String("user_id", actor.ID),
				logger.String("mode", mode),
				logger.Strings("required", required),
				logger.String("path", c.Path()))
			return Forbidden(c, "insufficient permissions")
		}

		metrics.AuthzDecisionsTotal.WithLabelValues(mode, "allow").Inc()
		return c.Next()
	}
}
