package middleware

import (
	"github.com/gofiber/fiber/v2"
	"github.com/resoniratech-svg/school-erp-manoj-sub004/internal/audit"
	"github.com/resoniratech-svg/school-erp-manoj-sub004/internal/authz"
)

// AuditContext gives every request its own audit context, seeded with the
// request metadata, and clears it when the request leaves the chain.
// Authentication later replaces it with an actor-attributed one.
func AuditContext() fiber.Handler {
	return func(c *fiber.Ctx) error {
		ctx := audit.WithScope(c.UserContext())
		audit.SetContext(ctx, AuditContextFor(c, nil))
		c.SetUserContext(ctx)
		defer audit.ClearContext(ctx)

		return c.Next()
	}
}

// AuditContextFor builds the audit context of the current request.
func AuditContextFor(c *fiber.Ctx, actor *authz.Actor) audit.Context {
	ac := audit.Context{
		IPAddress:     c.IP(),
		UserAgent:     c.Get(fiber.HeaderUserAgent),
		RequestPath:   c.Path(),
		RequestMethod: c.Method(),
	}
	if actor != nil {
		ac.TenantID = actor.TenantID
		ac.BranchID = actor.BranchID
		ac.UserID = actor.ID
	}
	return ac
}
