package services

import (
	"context"
	"math/rand"
	"time"

	"github.com/sirupsen/logrus"
)

// RetryPolicy defines retry behavior for failed upstream calls
type RetryPolicy struct {
	MaxRetries    int
	InitialDelay  time.Duration
	MaxDelay      time.Duration
	BackoffFactor float64
	JitterEnabled bool
}

// DefaultRetryPolicy is used when retries are enabled without explicit tuning
func DefaultRetryPolicy() RetryPolicy {
	return RetryPolicy{
		MaxRetries:    2,
		InitialDelay:  200 * time.Millisecond,
		MaxDelay:      2 * time.Second,
		BackoffFactor: 2.0,
		JitterEnabled: true,
	}
}

// ErrorRecoveryManager combines a per-provider circuit breaker with retries.
// A call is retried only while Retryable accepts the error and the breaker stays closed.
type ErrorRecoveryManager struct {
	logger    logrus.FieldLogger
	breakers  *CircuitBreakerManager
	policy    RetryPolicy
	retryable func(error) bool
	sleep     func(ctx context.Context, d time.Duration) error
}

// NewErrorRecoveryManager creates a manager. A nil breakers disables circuit breaking;
// a policy with MaxRetries 0 disables retries.
func NewErrorRecoveryManager(breakers *CircuitBreakerManager, policy RetryPolicy, retryable func(error) bool, logger logrus.FieldLogger) *ErrorRecoveryManager {
	if retryable == nil {
		retryable = func(error) bool { return false }
	}
	if policy.BackoffFactor < 1 {
		policy.BackoffFactor = 1
	}
	if logger == nil {
		logger = logrus.StandardLogger()
	}
	return &ErrorRecoveryManager{
		logger:    logger,
		breakers:  breakers,
		policy:    policy,
		retryable: retryable,
		sleep:     sleepContext,
	}
}

// Breakers exposes the underlying breaker manager for health reporting
func (erm *ErrorRecoveryManager) Breakers() *CircuitBreakerManager {
	return erm.breakers
}

// ExecuteWithRecovery runs operation against the named provider with breaker and retry protection
func (erm *ErrorRecoveryManager) ExecuteWithRecovery(ctx context.Context, provider, operationName string, operation func(context.Context) error) error {
	run := operation
	if erm.breakers != nil {
		breaker := erm.breakers.GetOrCreate(provider)
		run = func(ctx context.Context) error {
			return breaker.Execute(ctx, operation)
		}
	}
	return erm.executeWithRetry(ctx, provider+"."+operationName, run)
}

func (erm *ErrorRecoveryManager) executeWithRetry(ctx context.Context, operationName string, operation func(context.Context) error) error {
	start := time.Now()
	delay := erm.policy.InitialDelay
	var lastErr error

	for attempt := 0; attempt <= erm.policy.MaxRetries; attempt++ {
		if err := ctx.Err(); err != nil {
			if lastErr != nil {
				return lastErr
			}
			return err
		}

		err := operation(ctx)
		if err == nil {
			if attempt > 0 {
				erm.logger.WithFields(logrus.Fields{
					"operation": operationName,
					"attempts":  attempt + 1,
					"duration":  time.Since(start),
				}).Info("Operation recovered after retry")
			}
			return nil
		}

		lastErr = err
		if attempt == erm.policy.MaxRetries || !erm.retryable(err) {
			break
		}

		wait := erm.calculateDelay(delay)
		erm.logger.WithFields(logrus.Fields{
			"operation": operationName,
			"attempt":   attempt + 1,
			"error":     err.Error(),
			"delay":     wait,
		}).Warn("Operation failed, retrying")

		if err := erm.sleep(ctx, wait); err != nil {
			break
		}
		delay = time.Duration(float64(delay) * erm.policy.BackoffFactor)
		if erm.policy.MaxDelay > 0 && delay > erm.policy.MaxDelay {
			delay = erm.policy.MaxDelay
		}
	}

	return lastErr
}

// calculateDelay adds up to +/-12.5% jitter
func (erm *ErrorRecoveryManager) calculateDelay(baseDelay time.Duration) time.Duration {
	if !erm.policy.JitterEnabled || baseDelay <= 0 {
		return baseDelay
	}
	jitter := time.Duration(float64(baseDelay) * 0.25 * (rand.Float64() - 0.5))
	return baseDelay + jitter
}

func sleepContext(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return nil
	}
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
