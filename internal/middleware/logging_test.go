package middleware

import (
	"errors"
	"net/http/httptest"
	"testing"

	"github.com/gofiber/fiber/v2"
	"github.com/resoniratech-svg/school-erp-manoj-sub004/internal/logger"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"
)

func TestRequestLogging_WithRequestID(t *testing.T) {
	app := fiber.New()
	app.Use(RequestLogging(nopLogger()))
	app.Get("/test", func(c *fiber.Ctx) error {
		requestID := GetRequestID(c)
		if len(requestID) != 36 {
			t.Errorf("expected UUID length 36, got %d", len(requestID))
		}
		return c.SendString("ok")
	})

	resp := doRequest(t, app, "GET", "/test", "")
	if resp.Header.Get(RequestIDHeader) == "" {
		t.Error("expected request ID response header")
	}
}

func TestRequestLogging_HonoursIncomingRequestID(t *testing.T) {
	app := fiber.New()
	app.Use(RequestLogging(nopLogger()))
	app.Get("/test", func(c *fiber.Ctx) error {
		return c.SendString(GetRequestID(c))
	})

	req := httptest.NewRequest("GET", "/test", nil)
	req.Header.Set(RequestIDHeader, "corr-123")
	resp, err := app.Test(req)
	if err != nil {
		t.Fatalf("request failed: %v", err)
	}
	if got := resp.Header.Get(RequestIDHeader); got != "corr-123" {
		t.Errorf("expected request ID corr-123, got %q", got)
	}
}

func TestRequestLogging_LevelByStatus(t *testing.T) {
	tests := []struct {
		status int
		level  zapcore.Level
	}{
		{fiber.StatusOK, zapcore.InfoLevel},
		{fiber.StatusNotFound, zapcore.WarnLevel},
		{fiber.StatusInternalServerError, zapcore.ErrorLevel},
	}

	for _, tt := range tests {
		core, logs := observer.New(zapcore.DebugLevel)

		app := fiber.New()
		app.Use(RequestLogging(logger.NewFromCore(core)))
		app.Get("/test", func(c *fiber.Ctx) error {
			return c.SendStatus(tt.status)
		})

		doRequest(t, app, "GET", "/test", "")

		completed := logs.FilterMessage("Request completed").All()
		if len(completed) != 1 {
			t.Fatalf("status %d: expected 1 completion entry, got %d", tt.status, len(completed))
		}
		if completed[0].Level != tt.level {
			t.Errorf("status %d: expected level %s, got %s", tt.status, tt.level, completed[0].Level)
		}
	}
}

func TestRequestLogging_IncludesActor(t *testing.T) {
	core, logs := observer.New(zapcore.InfoLevel)
	svc := newTestJWT()

	app := fiber.New()
	app.Use(RequestLogging(logger.NewFromCore(core)))
	app.Use(JWTAuth(svc, nil, nil))
	app.Get("/v1/me", func(c *fiber.Ctx) error {
		return c.SendString("ok")
	})

	doRequest(t, app, "GET", "/v1/me", tokenFor(t, svc, "tenant-7"))

	entries := logs.FilterMessage("Request completed").All()
	if len(entries) != 1 {
		t.Fatalf("expected 1 entry, got %d", len(entries))
	}
	fields := entries[0].ContextMap()
	if fields["tenant_id"] != "tenant-7" || fields["user_id"] != "user123" {
		t.Errorf("expected actor fields, got %v", fields)
	}
}

func TestRequestLogging_WithError(t *testing.T) {
	core, logs := observer.New(zapcore.ErrorLevel)

	app := fiber.New()
	app.Use(RequestLogging(logger.NewFromCore(core)))
	app.Get("/test", func(c *fiber.Ctx) error {
		return errors.New("handler failed")
	})

	doRequest(t, app, "GET", "/test", "")

	if logs.FilterMessage("Request error").Len() != 1 {
		t.Error("expected the handler error to be logged")
	}
}

func TestGetLogger_NoContext(t *testing.T) {
	app := fiber.New()
	app.Get("/test", func(c *fiber.Ctx) error {
		if GetLogger(c) == nil {
			t.Error("expected fallback logger")
		}
		if GetRequestID(c) != "" {
			t.Error("expected empty request ID")
		}
		return c.SendString("ok")
	})

	doRequest(t, app, "GET", "/test", "")
}
