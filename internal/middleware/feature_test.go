package middleware

import (
	"testing"

	"github.com/gofiber/fiber/v2"
	"github.com/resoniratech-svg/school-erp-manoj-sub004/internal/featureflag"
)

func TestRequireFeature(t *testing.T) {
	svc := newTestJWT()
	registry := featureflag.NewRegistry(featureflag.StaticSource{
		Flags: featureflag.Set{
			"exams.enabled":   false,
			"library.enabled": true,
		},
	}, nopLogger())

	tests := []struct {
		name   string
		key    string
		status int
	}{
		{"disabled module is hidden", "exams", fiber.StatusNotFound},
		{"enabled module passes", "library.enabled", fiber.StatusOK},
		{"default table enables academics", "academics", fiber.StatusOK},
		{"unknown key fails open", "hostel", fiber.StatusOK},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			app := fiber.New()
			app.Use(JWTAuth(svc, nil, nil))
			app.Get("/v1/module", RequireFeature(registry, tt.key), func(c *fiber.Ctx) error {
				return c.SendString("ok")
			})

			resp := doRequest(t, app, "GET", "/v1/module", tokenFor(t, svc, "tenant-1"))
			if resp.StatusCode != tt.status {
				t.Errorf("expected status %d, got %d", tt.status, resp.StatusCode)
			}
		})
	}
}

func TestRequireFeature_NoTenant(t *testing.T) {
	registry := featureflag.NewRegistry(featureflag.StaticSource{}, nopLogger())

	app := fiber.New()
	app.Get("/v1/module", RequireFeature(registry, "exams"), func(c *fiber.Ctx) error {
		return c.SendString("ok")
	})

	resp := doRequest(t, app, "GET", "/v1/module", "")
	if resp.StatusCode != fiber.StatusUnauthorized {
		t.Errorf("expected status 401, got %d", resp.StatusCode)
	}
}
