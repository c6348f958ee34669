package providers

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/sirupsen/logrus"
	"golang.org/x/time/rate"
)

// ErrRateLimited is returned when the local limiter cannot grant a request in time
var ErrRateLimited = errors.New("provider rate limit exceeded")

// ErrNoData is returned when a provider answers successfully but without usable data
var ErrNoData = errors.New("provider returned no data")

// StatusError is an upstream HTTP response with status >= 400
type StatusError struct {
	Provider   string
	StatusCode int
	Body       string
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("%s error (%d): %s", e.Provider, e.StatusCode, e.Body)
}

// IsRetryable reports whether a provider failure is worth retrying:
// network failures, upstream 5xx and upstream 429.
func IsRetryable(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, context.Canceled) || errors.Is(err, ErrNoData) || errors.Is(err, ErrRateLimited) {
		return false
	}
	var se *StatusError
	if errors.As(err, &se) {
		return se.StatusCode >= 500 || se.StatusCode == http.StatusTooManyRequests
	}
	var ne net.Error
	return errors.As(err, &ne) || errors.Is(err, context.DeadlineExceeded)
}

// RequestObserver receives the outcome of every upstream request
type RequestObserver interface {
	ObserveProviderRequest(provider, operation, outcome string, duration time.Duration)
}

// ClientOptions configures a provider HTTP client
type ClientOptions struct {
	Name              string
	BaseURL           string
	Timeout           time.Duration
	Headers           map[string]string
	RequestsPerMinute int
	Burst             int
	Observer          RequestObserver
	Logger            logrus.FieldLogger
}

// Client is the shared JSON-over-HTTP client of all provider adapters
type Client struct {
	HTTPClient *http.Client
	BaseURL    string
	name       string
	headers    map[string]string
	limiter    *rate.Limiter
	observer   RequestObserver
	logger     logrus.FieldLogger
}

// NewClient creates a provider client. RequestsPerMinute <= 0 disables limiting.
func NewClient(opts ClientOptions) *Client {
	timeout := opts.Timeout
	if timeout == 0 {
		timeout = 30 * time.Second
	}
	logger := opts.Logger
	if logger == nil {
		logger = logrus.StandardLogger()
	}

	var limiter *rate.Limiter
	if opts.RequestsPerMinute > 0 {
		burst := opts.Burst
		if burst <= 0 {
			burst = 1
		}
		limiter = rate.NewLimiter(rate.Limit(float64(opts.RequestsPerMinute)/60.0), burst)
	}

	return &Client{
		HTTPClient: &http.Client{Timeout: timeout},
		BaseURL:    strings.TrimSuffix(opts.BaseURL, "/"),
		name:       opts.Name,
		headers:    opts.Headers,
		limiter:    limiter,
		observer:   opts.Observer,
		logger:     logger.WithField("provider", opts.Name),
	}
}

// Name identifies the provider in logs, metrics and errors
func (c *Client) Name() string {
	return c.name
}

// SetHeader adds a header sent with every request
func (c *Client) SetHeader(key, value string) {
	if c.headers == nil {
		c.headers = make(map[string]string)
	}
	c.headers[key] = value
}

// getJSON performs a GET request and decodes the JSON body into result
func (c *Client) getJSON(ctx context.Context, operation, path string, query url.Values, result interface{}) (err error) {
	start := time.Now()
	defer func() {
		if c.observer != nil {
			c.observer.ObserveProviderRequest(c.name, operation, outcomeOf(err), time.Since(start))
		}
	}()

	if c.limiter != nil {
		if werr := c.limiter.Wait(ctx); werr != nil {
			return fmt.Errorf("%s %s: %w: %v", c.name, operation, ErrRateLimited, werr)
		}
	}

	reqURL := c.BaseURL + path
	if len(query) > 0 {
		reqURL += "?" + query.Encode()
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, reqURL, nil)
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	req.Header.Set("User-Agent", "Mozilla/5.0 (compatible; market-gateway/1.0)")
	for k, v := range c.headers {
		req.Header.Set(k, v)
	}

	resp, err := c.HTTPClient.Do(req)
	if err != nil {
		return fmt.Errorf("%s %s: failed to make request: %w", c.name, operation, err)
	}
	defer func() {
		if cerr := resp.Body.Close(); cerr != nil {
			c.logger.WithError(cerr).Warn("Error closing response body")
		}
	}()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("%s %s: failed to read response body: %w", c.name, operation, err)
	}

	if resp.StatusCode >= 400 {
		body := string(respBody)
		if len(body) > 512 {
			body = body[:512]
		}
		return &StatusError{Provider: c.name, StatusCode: resp.StatusCode, Body: body}
	}

	if result != nil {
		if err := json.Unmarshal(respBody, result); err != nil {
			return fmt.Errorf("%s %s: failed to unmarshal response: %w", c.name, operation, err)
		}
	}

	c.logger.WithFields(logrus.Fields{
		"operation":   operation,
		"path":        path,
		"duration_ms": time.Since(start).Milliseconds(),
	}).Debug("Provider request completed")
	return nil
}

func outcomeOf(err error) string {
	if err == nil {
		return "success"
	}
	var se *StatusError
	switch {
	case errors.As(err, &se):
		return fmt.Sprintf("http_%d", se.StatusCode)
	case errors.Is(err, ErrRateLimited):
		return "rate_limited"
	default:
		return "error"
	}
}
