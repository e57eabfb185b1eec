package middleware

import (
	"errors"
	"strings"

	"github.com/gofiber/fiber/v2"
	"github.com/resoniratech-svg/school-erp-manoj-sub004/internal/audit"
	"github.com/resoniratech-svg/school-erp-manoj-sub004/internal/auth"
	"github.com/resoniratech-svg/school-erp-manoj-sub004/internal/authz"
	"github.com/resoniratech-svg/school-erp-manoj-sub004/internal/logger"
)

const (
	claimsKey = "claims"
	actorKey  = "actor"
)

// RevocationChecker reports whether a token ID was logged out.
type RevocationChecker interface {
	IsRevoked(jti string) (bool, error)
}

// JWTAuth authenticates bearer tokens and installs the request actor.
// Entries of publicPaths ending in "/" match as prefixes.
func JWTAuth(jwtService *auth.JWTService, revoked RevocationChecker, publicPaths []string) fiber.Handler {
	exact := make(map[string]bool)
	var prefixes []string
	for _, path := range publicPaths {
		if strings.HasSuffix(path, "/") {
			prefixes = append(prefixes, path)
			continue
		}
		exact[path] = true
	}

	isPublic := func(path string) bool {
		if exact[path] {
			return true
		}
		for _, p := range prefixes {
			if strings.HasPrefix(path, p) {
				return true
			}
		}
		return false
	}

	return func(c *fiber.Ctx) error {
		if isPublic(c.Path()) {
			return c.Next()
		}

		token, ok := bearerToken(c.Get(fiber.HeaderAuthorization))
		if !ok {
			msg := "invalid authorization header format"
			if c.Get(fiber.HeaderAuthorization) == "" {
				msg = "missing authorization header"
			}
			return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{"error": msg})
		}

		claims, err := jwtService.ValidateToken(token)
		if err != nil {
			switch {
			case errors.Is(err, auth.ErrTokenExpired):
				return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{"error": "token expired"})
			case errors.Is(err, auth.ErrTokenMissing):
				return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{"error": "token missing"})
			default:
				return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{"error": "invalid token"})
			}
		}

		if revoked != nil {
			isRevoked, err := revoked.IsRevoked(claims.ID)
			if err != nil {
				GetLogger(c).Error("Token revocation lookup failed", logger.Error(err))
				return InternalServerError(c, "unable to verify token")
			}
			if isRevoked {
				return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{"error": "token revoked"})
			}
		}

		SetActor(c, claims.Actor())
		c.Locals(claimsKey, claims)

		return c.Next()
	}
}

// SetActor makes actor the principal of the request: it is stored in
// Locals and the user context, and the audit context is replaced with one
// attributed to actor.
func SetActor(c *fiber.Ctx, actor *authz.Actor) {
	c.Locals(actorKey, actor)
	ctx := authz.ContextWithActor(c.UserContext(), actor)
	ctx = audit.SetContext(ctx, AuditContextFor(c, actor))
	c.SetUserContext(ctx)
}

func bearerToken(header string) (string, bool) {
	parts := strings.Split(header, " ")
	if len(parts) != 2 || parts[0] != "Bearer" || parts[1] == "" {
		return "", false
	}
	return parts[1], true
}

// GetActor returns the authenticated actor, or nil.
func GetActor(c *fiber.Ctx) *authz.Actor {
	if actor, ok := c.Locals(actorKey).(*authz.Actor); ok {
		return actor
	}
	return nil
}

// GetClaims returns the JWT claims from the context
func GetClaims(c *fiber.Ctx) *auth.Claims {
	if claims, ok := c.Locals(claimsKey).(*auth.Claims); ok {
		return claims
	}
	return nil
}

// GetTenantID returns the tenant of the authenticated actor
func GetTenantID(c *fiber.Ctx) string {
	if actor := GetActor(c); actor != nil {
		return actor.TenantID
	}
	return ""
}
