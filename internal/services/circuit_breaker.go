package services

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/sirupsen/logrus"
)

// ErrCircuitOpen is returned when a breaker rejects a call
var ErrCircuitOpen = errors.New("circuit breaker is open")

// CircuitBreakerState represents the current state of the circuit breaker
type CircuitBreakerState int

const (
	Closed CircuitBreakerState = iota
	HalfOpen
	Open
)

func (s CircuitBreakerState) String() string {
	switch s {
	case Closed:
		return "closed"
	case Open:
		return "open"
	case HalfOpen:
		return "half-open"
	default:
		return "unknown"
	}
}

// CircuitBreakerConfig holds configuration for the circuit breaker
type CircuitBreakerConfig struct {
	FailureThreshold int           `json:"failure_threshold"` // consecutive failures before opening
	SuccessThreshold int           `json:"success_threshold"` // successes needed to close from half-open
	Timeout          time.Duration `json:"timeout"`           // wait before trying half-open
	MaxRequests      int           `json:"max_requests"`      // concurrent trial calls in half-open
}

// CircuitBreakerStats holds statistics for the circuit breaker
type CircuitBreakerStats struct {
	State              string    `json:"state"`
	TotalRequests      int64     `json:"total_requests"`
	SuccessfulRequests int64     `json:"successful_requests"`
	FailedRequests     int64     `json:"failed_requests"`
	RejectedRequests   int64     `json:"rejected_requests"`
	LastFailureTime    time.Time `json:"last_failure_time"`
	LastSuccessTime    time.Time `json:"last_success_time"`
	StateChanges       int64     `json:"state_changes"`
}

// StateListener is notified on every state transition
type StateListener func(name string, from, to CircuitBreakerState)

// CircuitBreaker guards an upstream provider. Only errors accepted by
// IsFailure count against it, so a 404 for an unknown ticker does not trip the breaker.
type CircuitBreaker struct {
	name            string
	config          CircuitBreakerConfig
	logger          logrus.FieldLogger
	isFailure       func(error) bool
	listener        StateListener
	now             func() time.Time
	mu              sync.Mutex
	state           CircuitBreakerState
	failureCount    int
	successCount    int
	inFlight        int
	lastStateChange time.Time
	stats           CircuitBreakerStats
}

// NewCircuitBreaker creates a new circuit breaker. A nil isFailure counts every error.
func NewCircuitBreaker(name string, config CircuitBreakerConfig, isFailure func(error) bool, logger logrus.FieldLogger) *CircuitBreaker {
	if config.FailureThreshold <= 0 {
		config.FailureThreshold = 5
	}
	if config.SuccessThreshold <= 0 {
		config.SuccessThreshold = 2
	}
	if config.Timeout <= 0 {
		config.Timeout = 30 * time.Second
	}
	if config.MaxRequests <= 0 {
		config.MaxRequests = 1
	}
	if isFailure == nil {
		isFailure = func(err error) bool { return err != nil }
	}
	if logger == nil {
		logger = logrus.StandardLogger()
	}

	return &CircuitBreaker{
		name:            name,
		config:          config,
		logger:          logger.WithField("circuit_breaker", name),
		isFailure:       isFailure,
		now:             time.Now,
		state:           Closed,
		lastStateChange: time.Now(),
	}
}

// OnStateChange registers a listener for state transitions
func (cb *CircuitBreaker) OnStateChange(listener StateListener) {
	cb.mu.Lock()
	defer cb.mu.Unlock()
	cb.listener = listener
}

// Execute runs fn with circuit breaker protection. The lock is not held while fn runs.
func (cb *CircuitBreaker) Execute(ctx context.Context, fn func(context.Context) error) error {
	if err := cb.beforeCall(); err != nil {
		return err
	}

	start := cb.now()
	err := fn(ctx)
	cb.afterCall(err, cb.now().Sub(start))
	return err
}

func (cb *CircuitBreaker) beforeCall() error {
	cb.mu.Lock()
	defer cb.mu.Unlock()

	cb.stats.TotalRequests++
	switch cb.state {
	case Open:
		if cb.now().Sub(cb.lastStateChange) < cb.config.Timeout {
			cb.stats.RejectedRequests++
			return ErrCircuitOpen
		}
		cb.setState(HalfOpen)
	case HalfOpen:
		if cb.inFlight >= cb.config.MaxRequests {
			cb.stats.RejectedRequests++
			return ErrCircuitOpen
		}
	}
	cb.inFlight++
	return nil
}

func (cb *CircuitBreaker) afterCall(err error, duration time.Duration) {
	cb.mu.Lock()
	defer cb.mu.Unlock()

	cb.inFlight--
	if err != nil && cb.isFailure(err) {
		cb.onFailure(err, duration)
		return
	}
	cb.onSuccess(duration)
}

func (cb *CircuitBreaker) onSuccess(duration time.Duration) {
	cb.stats.SuccessfulRequests++
	cb.stats.LastSuccessTime = cb.now()

	switch cb.state {
	case Closed:
		cb.failureCount = 0
	case HalfOpen:
		cb.successCount++
		if cb.successCount >= cb.config.SuccessThreshold {
			cb.setState(Closed)
		}
	}

	cb.logger.WithFields(logrus.Fields{
		"state":       cb.state.String(),
		"duration_ms": duration.Milliseconds(),
	}).Debug("Circuit breaker: successful execution")
}

func (cb *CircuitBreaker) onFailure(err error, duration time.Duration) {
	cb.stats.FailedRequests++
	cb.stats.LastFailureTime = cb.now()

	switch cb.state {
	case Closed:
		cb.failureCount++
		if cb.failureCount >= cb.config.FailureThreshold {
			cb.setState(Open)
		}
	case HalfOpen:
		// any failure while probing reopens
		cb.setState(Open)
	}

	cb.logger.WithFields(logrus.Fields{
		"state":         cb.state.String(),
		"error":         err.Error(),
		"duration_ms":   duration.Milliseconds(),
		"failure_count": cb.failureCount,
	}).Warn("Circuit breaker: failed execution")
}

// setState must be called with mu held
func (cb *CircuitBreaker) setState(newState CircuitBreakerState) {
	if cb.state == newState {
		return
	}
	oldState := cb.state
	cb.state = newState
	cb.lastStateChange = cb.now()
	cb.stats.StateChanges++
	cb.failureCount = 0
	cb.successCount = 0

	cb.logger.WithFields(logrus.Fields{
		"old_state": oldState.String(),
		"new_state": newState.String(),
	}).Info("Circuit breaker state changed")

	if cb.listener != nil {
		cb.listener(cb.name, oldState, newState)
	}
}

// GetState returns the current state of the circuit breaker
func (cb *CircuitBreaker) GetState() CircuitBreakerState {
	cb.mu.Lock()
	defer cb.mu.Unlock()
	return cb.state
}

// GetStats returns the current statistics
func (cb *CircuitBreaker) GetStats() CircuitBreakerStats {
	cb.mu.Lock()
	defer cb.mu.Unlock()
	stats := cb.stats
	stats.State = cb.state.String()
	return stats
}

// Reset manually resets the circuit breaker to closed state
func (cb *CircuitBreaker) Reset() {
	cb.mu.Lock()
	defer cb.mu.Unlock()
	cb.setState(Closed)
	cb.failureCount = 0
	cb.logger.Info("Circuit breaker manually reset")
}

// CircuitBreakerManager hands out one breaker per provider
type CircuitBreakerManager struct {
	breakers  map[string]*CircuitBreaker
	config    CircuitBreakerConfig
	isFailure func(error) bool
	listener  StateListener
	logger    logrus.FieldLogger
	mu        sync.RWMutex
}

// NewCircuitBreakerManager creates a manager whose breakers share config and failure predicate
func NewCircuitBreakerManager(config CircuitBreakerConfig, isFailure func(error) bool, listener StateListener, logger logrus.FieldLogger) *CircuitBreakerManager {
	return &CircuitBreakerManager{
		breakers:  make(map[string]*CircuitBreaker),
		config:    config,
		isFailure: isFailure,
		listener:  listener,
		logger:    logger,
	}
}

// GetOrCreate gets an existing circuit breaker or creates a new one
func (cbm *CircuitBreakerManager) GetOrCreate(name string) *CircuitBreaker {
	cbm.mu.Lock()
	defer cbm.mu.Unlock()

	if breaker, exists := cbm.breakers[name]; exists {
		return breaker
	}
	breaker := NewCircuitBreaker(name, cbm.config, cbm.isFailure, cbm.logger)
	if cbm.listener != nil {
		breaker.OnStateChange(cbm.listener)
	}
	cbm.breakers[name] = breaker
	return breaker
}

// GetAllStats returns statistics for all circuit breakers
func (cbm *CircuitBreakerManager) GetAllStats() map[string]CircuitBreakerStats {
	cbm.mu.RLock()
	defer cbm.mu.RUnlock()

	stats := make(map[string]CircuitBreakerStats, len(cbm.breakers))
	for name, breaker := range cbm.breakers {
		stats[name] = breaker.GetStats()
	}
	return stats
}

// ResetAll resets all circuit breakers
func (cbm *CircuitBreakerManager) ResetAll() {
	cbm.mu.RLock()
	defer cbm.mu.RUnlock()
	for _, breaker := range cbm.breakers {
		breaker.Reset()
	}
}
