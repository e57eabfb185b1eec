package logger

import (
	"strings"
	"time"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// ParseLevel parses string to zapcore.Level
func ParseLevel(s string) zapcore.Level {
	switch strings.ToLower(s) {
	case "debug":
		return zapcore.DebugLevel
	case "info":
		return zapcore.InfoLevel
	case "warn":
		return zapcore.WarnLevel
	case "error":
		return zapcore.ErrorLevel
	default:
		return zapcore.InfoLevel
	}
}

// Field is an alias for zap.Field for interface compatibility
type Field = zap.Field

// Logger interface for structured logging
type Logger interface {
	Debug(msg string, fields ...Field)
	Info(msg string, fields ...Field)
	Warn(msg string, fields ...Field)
	Error(msg string, fields ...Field)
	WithRequest(requestID string) Logger
	WithTenant(tenantID string) Logger
	WithFields(fields ...Field) Logger
}

type zapLogger struct {
	logger *zap.Logger
}

// New creates a new logger with zap. format is "json" for production
// encoding, anything else selects the development console encoder.
func New(level zapcore.Level, format string) Logger {
	var config zap.Config

	if format == "json" {
		config = zap.NewProductionConfig()
	} else {
		config = zap.NewDevelopmentConfig()
		config.EncoderConfig.EncodeTime = zapcore.RFC3339TimeEncoder
	}

	config.Level = zap.NewAtomicLevelAt(level)

	logger, err := config.Build()
	if err != nil {
		logger = zap.NewNop()
	}

	return &zapLogger{logger: logger.With(zap.String("service", "school-erp"))}
}

// NewFromConfig creates a logger from string configuration
func NewFromConfig(level, format string) Logger {
	return New(ParseLevel(level), format)
}

// NewFromCore wraps an existing zap core. Tests use it with
// zaptest/observer to assert on emitted entries.
func NewFromCore(core zapcore.Core) Logger {
	return &zapLogger{logger: zap.New(core)}
}

// NewNop returns a logger that discards everything.
func NewNop() Logger {
	return &zapLogger{logger: zap.NewNop()}
}

func (l *zapLogger) Debug(msg string, fields ...Field) {
	l.logger.Debug(msg, fields...)
}

func (l *zapLogger) Info(msg string, fields ...Field) {
	l.logger.Info(msg, fields...)
}

func (l *zapLogger) Warn(msg string, fields ...Field) {
	l.logger.Warn(msg, fields...)
}

func (l *zapLogger) Error(msg string, fields ...Field) {
	l.logger.Error(msg, fields...)
}

// WithRequest returns a new logger with request ID field
func (l *zapLogger) WithRequest(requestID string) Logger {
	return l.WithFields(zap.String("request_id", requestID))
}

// WithTenant returns a new logger scoped to a tenant
func (l *zapLogger) WithTenant(tenantID string) Logger {
	if tenantID == "" {
		return l
	}
	return l.WithFields(zap.String("tenant_id", tenantID))
}

// WithFields returns a new logger with additional fields
func (l *zapLogger) WithFields(fields ...Field) Logger {
	return &zapLogger{logger: l.logger.With(fields...)}
}

// Field helpers

func String(key, value string) Field {
	return zap.String(key, value)
}

func Strings(key string, values []string) Field {
	return zap.Strings(key, values)
}

func Int(key string, value int) Field {
	return zap.Int(key, value)
}

func Bool(key string, value bool) Field {
	return zap.Bool(key, value)
}

func Duration(key string, value time.Duration) Field {
	return zap.Duration(key, value)
}

func Error(err error) Field {
	return zap.Error(err)
}

var defaultLogger Logger = NewFromConfig("info", "text")

// SetDefault sets the default logger
func SetDefault(l Logger) {
	defaultLogger = l
}

// GetDefault returns the default logger instance
func GetDefault() Logger {
	return defaultLogger
}

func Debug(msg string, fields ...Field) {
	defaultLogger.Debug(msg, fields...)
}

func Info(msg string, fields ...Field) {
	defaultLogger.Info(msg, fields...)
}

func Warn(msg string, fields ...Field) {
	defaultLogger.Warn(msg, fields...)
}

func ErrorLog(msg string, fields ...Field) {
	defaultLogger.Error(msg, fields...)
}
