package logging

import (
	"io"
	"os"
	"strings"

	"github.com/sirupsen/logrus"
)

// NewLogger builds the process logger. Development gets human-readable text,
// every other environment gets JSON.
func NewLogger(logLevel string, environment string) *logrus.Logger {
	return NewLoggerWithOutput(logLevel, environment, os.Stdout)
}

// NewLoggerWithOutput is NewLogger writing to out
func NewLoggerWithOutput(logLevel string, environment string, out io.Writer) *logrus.Logger {
	logger := logrus.New()
	logger.SetOutput(out)
	logger.SetLevel(ParseLogrusLevel(logLevel))

	if strings.EqualFold(environment, "development") {
		logger.SetFormatter(&logrus.TextFormatter{FullTimestamp: true})
	} else {
		logger.SetFormatter(&logrus.JSONFormatter{})
	}
	return logger
}

// ParseLogrusLevel converts string level to logrus.Level
func ParseLogrusLevel(level string) logrus.Level {
	switch strings.ToLower(level) {
	case "debug":
		return logrus.DebugLevel
	case "warn", "warning":
		return logrus.WarnLevel
	case "error":
		return logrus.ErrorLevel
	default:
		return logrus.InfoLevel
	}
}

// WithComponent creates a logger with component context
func WithComponent(logger logrus.FieldLogger, componentName string) *logrus.Entry {
	return logger.WithField("component", componentName)
}

// WithSymbol creates a logger with symbol context
func WithSymbol(logger logrus.FieldLogger, symbol string) *logrus.Entry {
	return logger.WithField("symbol", symbol)
}

// WithRequestID creates a logger with request ID context
func WithRequestID(logger logrus.FieldLogger, requestID string) *logrus.Entry {
	return logger.WithField("request_id", requestID)
}

// LogStartup logs application startup information
func LogStartup(logger logrus.FieldLogger, serviceName string, version string, port int) {
	logger.WithFields(logrus.Fields{
		"service": serviceName,
		"version": version,
		"port":    port,
		"event":   "startup",
	}).Info("Service starting")
}

// LogShutdown logs application shutdown information
func LogShutdown(logger logrus.FieldLogger, serviceName string, reason string) {
	logger.WithFields(logrus.Fields{
		"service": serviceName,
		"reason":  reason,
		"event":   "shutdown",
	}).Info("Service shutting down")
}

// LogAPIRequest logs a served HTTP request. Server errors log at error level
// and client errors at warn level.
func LogAPIRequest(logger logrus.FieldLogger, method string, path string, statusCode int, durationMs int64, requestID string) {
	entry := logger.WithFields(logrus.Fields{
		"method":      method,
		"path":        path,
		"status_code": statusCode,
		"duration_ms": durationMs,
		"request_id":  requestID,
		"event":       "api_request",
	})
	switch {
	case statusCode >= 500:
		entry.Error("API request failed")
	case statusCode >= 400:
		entry.Warn("API request rejected")
	default:
		entry.Info("API request")
	}
}

// LogCacheOperation logs cache operations in a standardized format
func LogCacheOperation(logger logrus.FieldLogger, operation string, key string, hit bool, durationMs int64) {
	logger.WithFields(logrus.Fields{
		"operation":   operation,
		"cache_key":   key,
		"cache_hit":   hit,
		"duration_ms": durationMs,
		"event":       "cache_operation",
	}).Debug("Cache operation")
}
