package metrics

import (
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
)

func TestMetricsRegistration(t *testing.T) {
	registry := prometheus.NewRegistry()

	decisions := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "test_authz_decisions_total",
			Help: "Test authz decisions",
		},
		[]string{"mode", "result"},
	)
	dropped := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "test_audit_events_dropped_total",
			Help: "Test dropped audit events",
		},
		[]string{"sink", "reason"},
	)

	if err := registry.Register(decisions); err != nil {
		t.Fatalf("Failed to register decisions metric: %v", err)
	}
	if err := registry.Register(dropped); err != nil {
		t.Fatalf("Failed to register dropped metric: %v", err)
	}

	decisions.WithLabelValues("all", "allow").Inc()
	dropped.WithLabelValues("file", "buffer_full").Inc()

	metricFamilies, err := registry.Gather()
	if err != nil {
		t.Fatalf("Failed to gather metrics: %v", err)
	}
	if len(metricFamilies) != 2 {
		t.Errorf("Expected 2 metric families, got %d", len(metricFamilies))
	}
}

func TestAuthzMetrics(t *testing.T) {
	before := testutil.ToFloat64(AuthzDecisionsTotal.WithLabelValues("single", "deny"))
	AuthzDecisionsTotal.WithLabelValues("single", "deny").Inc()
	AuthzDecisionDuration.WithLabelValues("single").Observe(0.0001)

	if got := testutil.ToFloat64(AuthzDecisionsTotal.WithLabelValues("single", "deny")); got != before+1 {
		t.Errorf("expected counter to increase by 1, got %v -> %v", before, got)
	}
}

func TestAuditMetrics(t *testing.T) {
	AuditEventsTotal.WithLabelValues("stdout", "written").Inc()
	AuditEventsDroppedTotal.WithLabelValues("stdout", "buffer_full").Inc()
	AuditWriterFlushDuration.WithLabelValues("stdout").Observe(0.01)
}

func TestFeatureFlagMetrics(t *testing.T) {
	FeatureFlagLoadsTotal.WithLabelValues("http", "fallback").Inc()
	FeatureFlagUnknownKeysTotal.WithLabelValues("chess.enabled").Inc()
}

func TestHTTPMetrics(t *testing.T) {
	HTTPRequestsTotal.WithLabelValues("GET", "/v1/users", "200").Inc()
	HTTPRequestDuration.WithLabelValues("GET", "/v1/users", "200").Observe(0.1)
	HTTPRequestsInFlight.Inc()
	HTTPRequestsInFlight.Dec()
	BuildInfo.WithLabelValues("1.0.0", "go1.24").Set(1)
}
