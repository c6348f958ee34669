package middleware

import (
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/irfndi/market-gateway/internal/logging"
	"github.com/irfndi/market-gateway/internal/metrics"
	"github.com/sirupsen/logrus"
)

const (
	// RequestIDHeader carries the request id in both directions
	RequestIDHeader = "X-Request-ID"
	requestIDKey    = "request_id"
)

// RequestID reuses the caller's X-Request-ID or generates one
func RequestID() gin.HandlerFunc {
	return func(c *gin.Context) {
		id := c.GetHeader(RequestIDHeader)
		if id == "" || len(id) > 128 {
			id = uuid.NewString()
		}
		c.Set(requestIDKey, id)
		c.Header(RequestIDHeader, id)
		AddSpanAttribute(c, "http.request_id", id)
		c.Next()
	}
}

// GetRequestID returns the id assigned by RequestID, or ""
func GetRequestID(c *gin.Context) string {
	return c.GetString(requestIDKey)
}

// RequestLogger logs every request and records it in the HTTP metrics
func RequestLogger(logger logrus.FieldLogger, collector *metrics.Collector) gin.HandlerFunc {
	if logger == nil {
		logger = logrus.StandardLogger()
	}
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()

		duration := time.Since(start)
		status := c.Writer.Status()
		collector.ObserveHTTPRequest(c.Request.Method, c.FullPath(), status, duration)

		path := c.Request.URL.Path
		if untracedPaths[path] && status < 400 {
			return
		}
		entry := logger
		if len(c.Errors) > 0 {
			entry = logger.WithField("errors", c.Errors.String())
		}
		logging.LogAPIRequest(entry, c.Request.Method, path, status, duration.Milliseconds(), GetRequestID(c))
	}
}
