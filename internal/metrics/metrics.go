package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// HTTP metrics
	HTTPRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "erp_http_requests_total",
			Help: "Total number of HTTP requests",
		},
		[]string{"method", "path", "status"},
	)

	HTTPRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "erp_http_request_duration_seconds",
			Help:    "HTTP request latencies in seconds",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"method", "path", "status"},
	)

	HTTPRequestsInFlight = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "erp_http_requests_in_flight",
			Help: "Number of HTTP requests currently being processed",
		},
	)

	BuildInfo = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "erp_build_info",
			Help: "Build information about the ERP API",
		},
		[]string{"version", "go_version"},
	)

	// Authorization metrics
	AuthzDecisionsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "erp_authz_decisions_total",
			Help: "Total number of route guard decisions",
		},
		[]string{"mode", "result"},
	)

	AuthzDecisionDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "erp_authz_decision_duration_seconds",
			Help:    "Route guard decision latencies in seconds",
			Buckets: []float64{0.00001, 0.0001, 0.0005, 0.001, 0.005, 0.01},
		},
		[]string{"mode"},
	)

	LoginAttemptsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "erp_login_attempts_total",
			Help: "Total number of login attempts",
		},
		[]string{"result"},
	)

	// Rate limiting metrics
	RateLimitExceeded = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "erp_rate_limit_exceeded_total",
			Help: "Total number of requests that exceeded rate limits",
		},
		[]string{"limiter_type"},
	)

	RateLimitActiveClients = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "erp_rate_limit_active_clients",
			Help: "Number of clients currently tracked by a limiter",
		},
		[]string{"limiter_type"},
	)

	// Feature flag metrics
	FeatureFlagLoadsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "erp_feature_flag_loads_total",
			Help: "Total number of tenant feature flag loads",
		},
		[]string{"source", "result"},
	)

	FeatureFlagUnknownKeysTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "erp_feature_flag_unknown_keys_total",
			Help: "Flag lookups that fell through to the fail-open default",
		},
		[]string{"key"},
	)

	// Audit metrics
	AuditEventsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "erp_audit_events_total",
			Help: "Total number of audit records handled by the sink",
		},
		[]string{"sink", "status"},
	)

	AuditEventsDroppedTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "erp_audit_events_dropped_total",
			Help: "Total number of audit records dropped before reaching the sink",
		},
		[]string{"sink", "reason"},
	)

	AuditWriterFlushDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "erp_audit_writer_flush_duration_seconds",
			Help:    "Audit sink flush latencies in seconds",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"sink"},
	)

	// Persistence metrics
	StoreOperationsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "erp_store_operations_total",
			Help: "Total number of document store operations",
		},
		[]string{"entity", "operation", "status"},
	)
)
