package handlers

import (
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gofiber/fiber/v2"

	"github.com/resoniratech-svg/school-erp-manoj-sub004/internal/persistence"
)

func healthApp(probes map[string]Probe) *fiber.App {
	app := fiber.New()
	h := NewHealthHandler("1.0.0-test", probes)
	app.Get("/health", h.Check)
	app.Get("/health/live", h.Liveness)
	app.Get("/health/ready", h.Readiness)
	return app
}

func TestHealthHandler_Check(t *testing.T) {
	app := healthApp(map[string]Probe{"persistence": EngineProbe(persistence.NewMemoryEngine())})

	req := httptest.NewRequest("GET", "/health", nil)
	resp, err := app.Test(req, -1)

	if err != nil {
		t.Fatalf("Failed to perform request: %v", err)
	}

	if resp.StatusCode != http.StatusOK {
		t.Fatalf("Expected status 200, got %d", resp.StatusCode)
	}

	var health HealthStatus
	if err := json.NewDecoder(resp.Body).Decode(&health); err != nil {
		t.Fatalf("Failed to decode response: %v", err)
	}

	if health.Status != "healthy" {
		t.Errorf("Expected status 'healthy', got '%s'", health.Status)
	}

	if health.Version != "1.0.0-test" {
		t.Errorf("Expected version '1.0.0-test', got '%s'", health.Version)
	}

	if health.Components["persistence"] != "healthy" {
		t.Errorf("Expected healthy persistence, got '%s'", health.Components["persistence"])
	}

	if health.System.Goroutines == 0 {
		t.Error("Expected goroutine count")
	}
}

func TestHealthHandler_CheckDegraded(t *testing.T) {
	app := healthApp(map[string]Probe{
		"persistence": func() error { return nil },
		"audit_sink":  func() error { return errors.New("connection refused") },
	})

	resp, err := app.Test(httptest.NewRequest("GET", "/health", nil), -1)
	if err != nil {
		t.Fatalf("Failed to perform request: %v", err)
	}

	if resp.StatusCode != http.StatusServiceUnavailable {
		t.Fatalf("Expected status 503, got %d", resp.StatusCode)
	}

	var health HealthStatus
	if err := json.NewDecoder(resp.Body).Decode(&health); err != nil {
		t.Fatalf("Failed to decode response: %v", err)
	}
	if health.Status != "degraded" {
		t.Errorf("Expected status 'degraded', got '%s'", health.Status)
	}
	if health.Components["audit_sink"] != "unhealthy: connection refused" {
		t.Errorf("Unexpected audit_sink status '%s'", health.Components["audit_sink"])
	}
	if health.Components["persistence"] != "healthy" {
		t.Errorf("Expected healthy persistence, got '%s'", health.Components["persistence"])
	}
}

func TestHealthHandler_Liveness(t *testing.T) {
	app := healthApp(nil)

	req := httptest.NewRequest("GET", "/health/live", nil)
	resp, err := app.Test(req, -1)

	if err != nil {
		t.Fatalf("Failed to perform request: %v", err)
	}

	if resp.StatusCode != http.StatusOK {
		t.Fatalf("Expected status 200, got %d", resp.StatusCode)
	}

	var result map[string]interface{}
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		t.Fatalf("Failed to decode response: %v", err)
	}

	if result["status"] != "alive" {
		t.Errorf("Expected status 'alive', got '%s'", result["status"])
	}
}

func TestHealthHandler_Readiness(t *testing.T) {
	tests := []struct {
		name   string
		probe  Probe
		code   int
		status string
	}{
		{"ready", func() error { return nil }, http.StatusOK, "ready"},
		{"not ready", func() error { return errors.New("closed") }, http.StatusServiceUnavailable, "not_ready"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			app := healthApp(map[string]Probe{"persistence": tt.probe})

			resp, err := app.Test(httptest.NewRequest("GET", "/health/ready", nil), -1)
			if err != nil {
				t.Fatalf("Failed to perform request: %v", err)
			}
			if resp.StatusCode != tt.code {
				t.Fatalf("Expected status %d, got %d", tt.code, resp.StatusCode)
			}

			var result map[string]interface{}
			if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
				t.Fatalf("Failed to decode response: %v", err)
			}
			if result["status"] != tt.status {
				t.Errorf("Expected status '%s', got '%s'", tt.status, result["status"])
			}
		})
	}
}
