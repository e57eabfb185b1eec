package middleware

import (
	"testing"

	"github.com/gofiber/fiber/v2"
	"github.com/resoniratech-svg/school-erp-manoj-sub004/internal/authz"
)

func TestRequirePermissionModes(t *testing.T) {
	svc := newTestJWT()

	tests := []struct {
		name   string
		guard  fiber.Handler
		held   []string
		status int
	}{
		{
			name:   "single held",
			guard:  RequirePermission(authz.UserRead),
			held:   []string{"user:read:tenant"},
			status: fiber.StatusOK,
		},
		{
			name:   "single missing",
			guard:  RequirePermission(authz.UserRead),
			held:   []string{"user:read:own"},
			status: fiber.StatusForbidden,
		},
		{
			name:   "no wildcard or scope implication",
			guard:  RequirePermission(authz.StudentReadBranch),
			held:   []string{"student:read:tenant"},
			status: fiber.StatusForbidden,
		},
		{
			name:   "any with one held",
			guard:  RequireAnyPermission(authz.StudentReadTenant, authz.StudentReadBranch),
			held:   []string{"student:read:branch"},
			status: fiber.StatusOK,
		},
		{
			name:   "any with none held",
			guard:  RequireAnyPermission(authz.StudentReadTenant, authz.StudentReadBranch),
			held:   []string{"fee:read:tenant"},
			status: fiber.StatusForbidden,
		},
		{
			name:   "all with all held",
			guard:  RequireAllPermissions(authz.UserRead, authz.UserUpdate),
			held:   []string{"user:read:tenant", "user:update:tenant"},
			status: fiber.StatusOK,
		},
		{
			name:   "all with one missing",
			guard:  RequireAllPermissions(authz.UserRead, authz.UserUpdate),
			held:   []string{"user:read:tenant"},
			status: fiber.StatusForbidden,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			app := fiber.New()
			app.Use(JWTAuth(svc, nil, nil))
			app.Get("/v1/users", tt.guard, func(c *fiber.Ctx) error {
				return c.SendString("ok")
			})

			resp := doRequest(t, app, "GET", "/v1/users", tokenFor(t, svc, "tenant-1", tt.held...))
			if resp.StatusCode != tt.status {
				t.Errorf("expected status %d, got %d", tt.status, resp.StatusCode)
			}
		})
	}
}

func TestRequirePermission_NoActorIsUnauthorized(t *testing.T) {
	app := fiber.New()
	app.Get("/v1/users", RequirePermission(authz.UserRead), func(c *fiber.Ctx) error {
		t.Error("handler must not run without an actor")
		return c.SendString("ok")
	})

	resp := doRequest(t, app, "GET", "/v1/users", "")
	if resp.StatusCode != fiber.StatusUnauthorized {
		t.Errorf("expected status 401, got %d", resp.StatusCode)
	}
}

func TestRequirePermission_ForbiddenBody(t *testing.T) {
	svc := newTestJWT()

	app := fiber.New()
	app.Use(RequestLogging(nopLogger()))
	app.Use(JWTAuth(svc, nil, nil))
	app.Delete("/v1/users/:id", RequirePermission(authz.UserDelete), func(c *fiber.Ctx) error {
		return c.SendStatus(fiber.StatusNoContent)
	})

	resp := doRequest(t, app, "DELETE", "/v1/users/u2", tokenFor(t, svc, "tenant-1", "user:read:tenant"))
	if resp.StatusCode != fiber.StatusForbidden {
		t.Fatalf("expected status 403, got %d", resp.StatusCode)
	}

	errResp := decodeError(t, resp)
	if errResp.Error != "Forbidden" || errResp.Message != "insufficient permissions" {
		t.Errorf("unexpected error body %+v", errResp)
	}
	if errResp.RequestID == "" {
		t.Error("expected request ID to be set")
	}
}
