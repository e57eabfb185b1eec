package handlers

import (
	"errors"
	"runtime"
	"time"

	"github.com/gofiber/fiber/v2"

	"github.com/resoniratech-svg/school-erp-manoj-sub004/internal/persistence"
)

// HealthStatus represents the health status of the service
type HealthStatus struct {
	Status     string            `json:"status"`
	Version    string            `json:"version"`
	Uptime     string            `json:"uptime"`
	Timestamp  time.Time         `json:"timestamp"`
	Components map[string]string `json:"components"`
	System     SystemHealth      `json:"system"`
}

type SystemHealth struct {
	Goroutines  int    `json:"goroutines"`
	MemoryAlloc uint64 `json:"memory_alloc_bytes"`
	MemorySys   uint64 `json:"memory_sys_bytes"`
	NumGC       uint32 `json:"num_gc"`
}

// Probe reports whether a dependency is usable.
type Probe func() error

// HealthHandler handles health check operations
type HealthHandler struct {
	probes    map[string]Probe
	startTime time.Time
	version   string
}

// NewHealthHandler creates a new health handler
func NewHealthHandler(version string, probes map[string]Probe) *HealthHandler {
	if probes == nil {
		probes = map[string]Probe{}
	}
	return &HealthHandler{
		probes:    probes,
		startTime: time.Now(),
		version:   version,
	}
}

// EngineProbe checks that the document engine answers reads. A missing
// key is a healthy answer.
func EngineProbe(engine persistence.Engine) Probe {
	return func() error {
		_, err := engine.Get("health/probe")
		if err != nil && !errors.Is(err, persistence.ErrNotFound) {
			return err
		}
		return nil
	}
}

func (h *HealthHandler) runProbes() (map[string]string, bool) {
	results := make(map[string]string, len(h.probes))
	healthy := true
	for name, probe := range h.probes {
		if err := probe(); err != nil {
			results[name] = "unhealthy: " + err.Error()
			healthy = false
			continue
		}
		results[name] = "healthy"
	}
	return results, healthy
}

// Check returns the health status of the service
func (h *HealthHandler) Check(c *fiber.Ctx) error {
	var m runtime.MemStats
	runtime.ReadMemStats(&m)

	components, healthy := h.runProbes()
	status := HealthStatus{
		Status:     "healthy",
		Version:    h.version,
		Uptime:     time.Since(h.startTime).String(),
		Timestamp:  time.Now(),
		Components: components,
		System: SystemHealth{
			Goroutines:  runtime.NumGoroutine(),
			MemoryAlloc: m.Alloc,
			MemorySys:   m.Sys,
			NumGC:       m.NumGC,
		},
	}
	if !healthy {
		status.Status = "degraded"
		return c.Status(fiber.StatusServiceUnavailable).JSON(status)
	}
	return c.JSON(status)
}

// Liveness is a simple liveness probe
func (h *HealthHandler) Liveness(c *fiber.Ctx) error {
	return c.JSON(fiber.Map{
		"status":    "alive",
		"timestamp": time.Now(),
	})
}

// Readiness checks if the service is ready to accept traffic
func (h *HealthHandler) Readiness(c *fiber.Ctx) error {
	components, healthy := h.runProbes()
	if !healthy {
		return c.Status(fiber.StatusServiceUnavailable).JSON(fiber.Map{
			"status":     "not_ready",
			"components": components,
			"timestamp":  time.Now(),
		})
	}
	return c.JSON(fiber.Map{
		"status":    "ready",
		"timestamp": time.Now(),
	})
}
