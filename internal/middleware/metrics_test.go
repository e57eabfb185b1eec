package middleware

import (
	"testing"

	"github.com/gofiber/fiber/v2"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/resoniratech-svg/school-erp-manoj-sub004/internal/authz"
	"github.com/resoniratech-svg/school-erp-manoj-sub004/internal/metrics"
)

func TestMetricsMiddleware_UsesRouteTemplate(t *testing.T) {
	app := fiber.New()
	app.Use(MetricsMiddleware())
	app.Get("/v1/students/:id", func(c *fiber.Ctx) error {
		return c.SendString("ok")
	})

	counter := metrics.HTTPRequestsTotal.WithLabelValues("GET", "/v1/students/:id", "200")
	before := testutil.ToFloat64(counter)

	doRequest(t, app, "GET", "/v1/students/s1", "")
	doRequest(t, app, "GET", "/v1/students/s2", "")

	if got := testutil.ToFloat64(counter) - before; got != 2 {
		t.Errorf("expected 2 requests under the route template, got %v", got)
	}
}

func TestMetricsMiddleware_SkipsMetricsEndpoint(t *testing.T) {
	app := fiber.New()
	app.Use(MetricsMiddleware())
	app.Get("/metrics", func(c *fiber.Ctx) error {
		return c.SendString("metrics")
	})

	counter := metrics.HTTPRequestsTotal.WithLabelValues("GET", "/metrics", "200")
	before := testutil.ToFloat64(counter)

	doRequest(t, app, "GET", "/metrics", "")

	if got := testutil.ToFloat64(counter) - before; got != 0 {
		t.Errorf("metrics endpoint should not be counted, got %v", got)
	}
}

func TestAuthzDecisionMetrics(t *testing.T) {
	svc := newTestJWT()

	app := fiber.New()
	app.Use(JWTAuth(svc, nil, nil))
	app.Get("/v1/fees", RequireAnyPermission(authz.FeeReadTenant), func(c *fiber.Ctx) error {
		return c.SendString("ok")
	})

	allow := metrics.AuthzDecisionsTotal.WithLabelValues("any", "allow")
	deny := metrics.AuthzDecisionsTotal.WithLabelValues("any", "deny")
	allowBefore, denyBefore := testutil.ToFloat64(allow), testutil.ToFloat64(deny)

	doRequest(t, app, "GET", "/v1/fees", tokenFor(t, svc, "tenant-1", "fee:read:tenant"))
	doRequest(t, app, "GET", "/v1/fees", tokenFor(t, svc, "tenant-1"))

	if got := testutil.ToFloat64(allow) - allowBefore; got != 1 {
		t.Errorf("expected 1 allow decision, got %v", got)
	}
	if got := testutil.ToFloat64(deny) - denyBefore; got != 1 {
		t.Errorf("expected 1 deny decision, got %v", got)
	}
}
