package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"
)

// Config represents the application configuration
type Config struct {
	Server      ServerConfig
	Log         LogConfig
	Auth        AuthConfig
	Audit       AuditConfig
	Persistence PersistenceConfig
	Database    DatabaseConfig
	Features    FeaturesConfig
	RateLimit   RateLimitConfig
	Tracing     TracingConfig
	Bootstrap   BootstrapConfig
}

// ServerConfig contains HTTP server configuration
type ServerConfig struct {
	Host            string
	Port            int
	ShutdownTimeout time.Duration
}

// LogConfig contains logging configuration
type LogConfig struct {
	Level  string
	Format string
}

// AuthConfig contains token configuration. Tokens carry the final,
// role-expanded permission list of the actor.
type AuthConfig struct {
	JWTSecret     string
	JWTExpiry     time.Duration
	RefreshExpiry time.Duration
	Issuer        string
	PublicPaths   []string
}

// AuditConfig controls the audit log writer
type AuditConfig struct {
	Enabled       bool
	Sink          string // stdout, file, badger, postgres
	FilePath      string
	Table         string
	BufferSize    int
	FlushInterval time.Duration
	DropPolicy    string // drop, block
}

// PersistenceConfig selects the document engine backing users, students and flags
type PersistenceConfig struct {
	Type       string // memory, badger
	DataDir    string
	SyncWrites bool
}

// DatabaseConfig holds the postgres connection used by the postgres audit sink
type DatabaseConfig struct {
	DSN          string
	MaxOpenConns int
	MaxIdleConns int
}

// FeaturesConfig selects where tenant feature flags are loaded from
type FeaturesConfig struct {
	Source  string // static, http, store
	URL     string
	Timeout time.Duration
}

// RateLimitConfig throttles login attempts per client IP
type RateLimitConfig struct {
	Enabled        bool
	RequestsPerSec float64
	Burst          int
}

// TracingConfig contains OpenTelemetry tracing configuration
type TracingConfig struct {
	Enabled        bool
	Endpoint       string
	ServiceName    string
	ServiceVersion string
	Environment    string
	SamplingRatio  float64
	InsecureConn   bool
}

// BootstrapConfig seeds the first administrator of a fresh install
type BootstrapConfig struct {
	TenantID string
	Email    string
	Password string
}

// Load loads configuration from environment variables with defaults
func Load() (*Config, error) {
	config := &Config{
		Server: ServerConfig{
			Host:            getEnvString("ERP_HOST", ""),
			Port:            getEnvInt("ERP_PORT", 8080),
			ShutdownTimeout: getEnvDuration("ERP_SHUTDOWN_TIMEOUT", 10*time.Second),
		},
		Log: LogConfig{
			Level:  getEnvString("ERP_LOG_LEVEL", "info"),
			Format: getEnvString("ERP_LOG_FORMAT", "text"),
		},
		Auth: AuthConfig{
			JWTSecret:     getEnvString("ERP_JWT_SECRET", ""),
			JWTExpiry:     getEnvDuration("ERP_JWT_EXPIRY", 15*time.Minute),
			RefreshExpiry: getEnvDuration("ERP_REFRESH_EXPIRY", 7*24*time.Hour),
			Issuer:        getEnvString("ERP_JWT_ISSUER", "school-erp"),
			PublicPaths: getEnvStringSlice("ERP_PUBLIC_PATHS", []string{
				"/health", "/health/live", "/health/ready", "/metrics",
				"/v1/auth/login", "/v1/auth/refresh",
			}),
		},
		Audit: AuditConfig{
			Enabled:       getEnvBool("ERP_AUDIT_ENABLED", true),
			Sink:          getEnvString("ERP_AUDIT_SINK", "stdout"),
			FilePath:      getEnvString("ERP_AUDIT_FILE_PATH", "./logs/audit.log"),
			Table:         getEnvString("ERP_AUDIT_TABLE", "audit_logs"),
			BufferSize:    getEnvInt("ERP_AUDIT_BUFFER_SIZE", 1024),
			FlushInterval: getEnvDuration("ERP_AUDIT_FLUSH_INTERVAL", 5*time.Second),
			DropPolicy:    getEnvString("ERP_AUDIT_DROP_POLICY", "drop"),
		},
		Persistence: PersistenceConfig{
			Type:       getEnvString("ERP_PERSISTENCE_TYPE", "memory"),
			DataDir:    getEnvString("ERP_DATA_DIR", "./data"),
			SyncWrites: getEnvBool("ERP_SYNC_WRITES", true),
		},
		Database: DatabaseConfig{
			DSN:          getEnvString("ERP_DATABASE_URL", ""),
			MaxOpenConns: getEnvInt("ERP_DATABASE_MAX_OPEN_CONNS", 10),
			MaxIdleConns: getEnvInt("ERP_DATABASE_MAX_IDLE_CONNS", 5),
		},
		Features: FeaturesConfig{
			Source:  getEnvString("ERP_FEATURES_SOURCE", "store"),
			URL:     getEnvString("ERP_FEATURES_URL", ""),
			Timeout: getEnvDuration("ERP_FEATURES_TIMEOUT", 3*time.Second),
		},
		RateLimit: RateLimitConfig{
			Enabled:        getEnvBool("ERP_LOGIN_RATE_LIMIT_ENABLED", true),
			RequestsPerSec: getEnvFloat("ERP_LOGIN_RATE_LIMIT_PER_SEC", 1.0),
			Burst:          getEnvInt("ERP_LOGIN_RATE_LIMIT_BURST", 5),
		},
		Tracing: TracingConfig{
			Enabled:        getEnvBool("ERP_TRACING_ENABLED", false),
			Endpoint:       getEnvString("ERP_TRACING_ENDPOINT", "otel-collector:4318"),
			ServiceName:    getEnvString("ERP_TRACING_SERVICE_NAME", "school-erp"),
			ServiceVersion: getEnvString("ERP_TRACING_SERVICE_VERSION", "1.0.0"),
			Environment:    getEnvString("ERP_TRACING_ENVIRONMENT", "development"),
			SamplingRatio:  getEnvFloat("ERP_TRACING_SAMPLING_RATIO", 1.0),
			InsecureConn:   getEnvBool("ERP_TRACING_INSECURE", true),
		},
		Bootstrap: BootstrapConfig{
			TenantID: getEnvString("ERP_BOOTSTRAP_TENANT", ""),
			Email:    getEnvString("ERP_BOOTSTRAP_EMAIL", ""),
			Password: getEnvString("ERP_BOOTSTRAP_PASSWORD", ""),
		},
	}

	if err := config.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return config, nil
}

// Validate validates the configuration
func (c *Config) Validate() error {
	if c.Server.Port <= 0 || c.Server.Port > 65535 {
		return fmt.Errorf("invalid port: %d (must be 1-65535)", c.Server.Port)
	}

	validLogLevels := map[string]bool{"debug": true, "info": true, "warn": true, "error": true}
	if !validLogLevels[c.Log.Level] {
		return fmt.Errorf("invalid log level: %s (must be debug, info, warn, or error)", c.Log.Level)
	}

	validLogFormats := map[string]bool{"text": true, "json": true}
	if !validLogFormats[c.Log.Format] {
		return fmt.Errorf("invalid log format: %s (must be text or json)", c.Log.Format)
	}

	if c.Auth.JWTSecret == "" {
		return fmt.Errorf("JWT secret must be specified")
	}
	if c.Auth.JWTExpiry <= 0 {
		return fmt.Errorf("JWT expiry must be positive")
	}
	if c.Auth.RefreshExpiry <= 0 {
		return fmt.Errorf("refresh expiry must be positive")
	}
	if c.Auth.Issuer == "" {
		return fmt.Errorf("JWT issuer must be specified")
	}

	validPersistenceTypes := map[string]bool{"memory": true, "badger": true}
	if !validPersistenceTypes[c.Persistence.Type] {
		return fmt.Errorf("invalid persistence type: %s (must be memory or badger)", c.Persistence.Type)
	}
	if c.Persistence.Type == "badger" && c.Persistence.DataDir == "" {
		return fmt.Errorf("data directory must be specified for badger persistence")
	}

	if c.Audit.Enabled {
		switch c.Audit.Sink {
		case "stdout":
		case "file":
			if c.Audit.FilePath == "" {
				return fmt.Errorf("audit file path must be specified for file sink")
			}
		case "badger":
			if c.Persistence.Type != "badger" {
				return fmt.Errorf("badger audit sink requires badger persistence")
			}
		case "postgres":
			if c.Database.DSN == "" {
				return fmt.Errorf("database URL must be specified for postgres audit sink")
			}
			if c.Audit.Table == "" {
				return fmt.Errorf("audit table must be specified for postgres audit sink")
			}
		default:
			return fmt.Errorf("invalid audit sink: %s (must be stdout, file, badger, or postgres)", c.Audit.Sink)
		}
		if c.Audit.BufferSize <= 0 {
			return fmt.Errorf("audit buffer size must be positive")
		}
		if c.Audit.FlushInterval <= 0 {
			return fmt.Errorf("audit flush interval must be positive")
		}
		if c.Audit.DropPolicy != "drop" && c.Audit.DropPolicy != "block" {
			return fmt.Errorf("invalid audit drop policy: %s (must be drop or block)", c.Audit.DropPolicy)
		}
	}

	switch c.Features.Source {
	case "static", "store":
	case "http":
		if c.Features.URL == "" {
			return fmt.Errorf("features URL must be specified for http source")
		}
		if c.Features.Timeout <= 0 {
			return fmt.Errorf("features timeout must be positive")
		}
	default:
		return fmt.Errorf("invalid features source: %s (must be static, http, or store)", c.Features.Source)
	}

	if c.RateLimit.Enabled {
		if c.RateLimit.RequestsPerSec <= 0 {
			return fmt.Errorf("rate limit requests per second must be positive")
		}
		if c.RateLimit.Burst <= 0 {
			return fmt.Errorf("rate limit burst must be positive")
		}
	}

	if (c.Bootstrap.Email == "") != (c.Bootstrap.Password == "") {
		return fmt.Errorf("bootstrap email and password must be set together")
	}
	if c.Bootstrap.Email != "" && c.Bootstrap.TenantID == "" {
		return fmt.Errorf("bootstrap tenant must be specified with bootstrap credentials")
	}

	return nil
}

// Address returns the server address in host:port format
func (c *Config) Address() string {
	if c.Server.Host == "" {
		return fmt.Sprintf(":%d", c.Server.Port)
	}
	return fmt.Sprintf("%s:%d", c.Server.Host, c.Server.Port)
}

func getEnvString(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if intValue, err := strconv.Atoi(value); err == nil {
			return intValue
		}
	}
	return defaultValue
}

func getEnvDuration(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if duration, err := time.ParseDuration(value); err == nil {
			return duration
		}
	}
	return defaultValue
}

func getEnvBool(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		if boolValue, err := strconv.ParseBool(value); err == nil {
			return boolValue
		}
	}
	return defaultValue
}

func getEnvFloat(key string, defaultValue float64) float64 {
	if value := os.Getenv(key); value != "" {
		if floatValue, err := strconv.ParseFloat(value, 64); err == nil {
			return floatValue
		}
	}
	return defaultValue
}

// getEnvStringSlice reads a comma-separated list, dropping empty items
func getEnvStringSlice(key string, defaultValue []string) []string {
	if value := os.Getenv(key); value != "" {
		result := []string{}
		for _, v := range strings.Split(value, ",") {
			if v = strings.TrimSpace(v); v != "" {
				result = append(result, v)
			}
		}
		if len(result) > 0 {
			return result
		}
	}
	return defaultValue
}
