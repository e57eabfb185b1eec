package middleware

import (
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/resoniratech-svg/school-erp-manoj-sub004/internal/auth"
	"github.com/resoniratech-svg/school-erp-manoj-sub004/internal/logger"
)

func newTestJWT() *auth.JWTService {
	return auth.NewJWTService("test-secret", 15*time.Minute, 24*time.Hour, "erp-test")
}

func tokenFor(t *testing.T, svc *auth.JWTService, tenantID string, permissions ...string) string {
	t.Helper()
	token, err := svc.GenerateToken(auth.Identity{
		UserID:      "user123",
		Email:       "teacher@school.test",
		TenantID:    tenantID,
		BranchID:    "branch-1",
		Roles:       []string{"teacher"},
		Permissions: permissions,
	})
	if err != nil {
		t.Fatalf("failed to generate token: %v", err)
	}
	return token
}

func doRequest(t *testing.T, app *fiber.App, method, path, token string) *http.Response {
	t.Helper()
	req := httptest.NewRequest(method, path, nil)
	req.Header.Set("User-Agent", "test-agent")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	resp, err := app.Test(req)
	if err != nil {
		t.Fatalf("request failed: %v", err)
	}
	return resp
}

func decodeError(t *testing.T, resp *http.Response) ErrorResponse {
	t.Helper()
	var errResp ErrorResponse
	body, _ := io.ReadAll(resp.Body)
	if err := json.Unmarshal(body, &errResp); err != nil {
		t.Fatalf("failed to parse response %q: %v", body, err)
	}
	return errResp
}

func nopLogger() logger.Logger {
	return logger.NewNop()
}
