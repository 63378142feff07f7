// Package retry provides opt-in retry logic with exponential backoff for
// whole-run resilience. Only transient forge errors are retried; policy
// rejections and reference errors fail immediately.
package retry

import (
	"context"
	"errors"
	"fmt"
	"math"
	"time"

	"mergegate/pkg/forge"
)

// Config defines configuration for retry behavior.
type Config struct {
	MaxAttempts   int           `json:"max_attempts"`   // Maximum number of attempts (including initial)
	InitialDelay  time.Duration `json:"initial_delay"`  // Initial delay before first retry
	MaxDelay      time.Duration `json:"max_delay"`      // Maximum delay between retries
	BackoffFactor float64       `json:"backoff_factor"` // Multiplier for exponential backoff
	Jitter        bool          `json:"jitter"`         // Add random jitter to prevent thundering herd
}

// DefaultConfig provides reasonable defaults for retry behavior.
//
//nolint:gochecknoglobals // Sensible default config pattern
var DefaultConfig = Config{
	MaxAttempts:   3,
	InitialDelay:  500 * time.Millisecond,
	MaxDelay:      10 * time.Second,
	BackoffFactor: 2.0,
	Jitter:        true,
}

// Classifier determines if an error should be retried.
type Classifier func(error) bool

// ShouldRetry is the default error classifier. Only transient forge errors
// qualify. Per-request HTTP timeouts wrap DeadlineExceeded while the parent
// context is still valid, so only outright cancellation stops retries.
func ShouldRetry(err error) bool {
	if err == nil {
		return false
	}

	if errors.Is(err, context.Canceled) {
		return false
	}

	return forge.IsRetryable(err)
}

// Policy encapsulates retry configuration and logic.
//
//nolint:govet // Simple struct, logical grouping preferred
type Policy struct {
	Config     Config
	Classifier Classifier
}

// NewPolicy creates a new retry policy with the given configuration and classifier.
func NewPolicy(config Config, classifier Classifier) *Policy {
	if classifier == nil {
		classifier = ShouldRetry
	}
	if config.MaxAttempts <= 0 {
		config.MaxAttempts = 1
	}
	return &Policy{
		Config:     config,
		Classifier: classifier,
	}
}

// CalculateDelay computes the delay for the given attempt number.
func (p *Policy) CalculateDelay(attempt int) time.Duration {
	if attempt <= 1 {
		return 0
	}

	delay := time.Duration(float64(p.Config.InitialDelay) * math.Pow(p.Config.BackoffFactor, float64(attempt-2)))

	// Cap at maximum delay
	if delay > p.Config.MaxDelay {
		delay = p.Config.MaxDelay
	}

	// Add jitter if enabled
	if p.Config.Jitter && delay > 0 {
		jitterFactor := (2*time.Now().UnixNano()%2 - 1) // -1 or 1
		jitter := time.Duration(float64(delay) * 0.1 * float64(jitterFactor))
		delay += jitter
		if delay < 0 {
			delay = p.Config.InitialDelay
		}
	}

	return delay
}

// ShouldRetry determines if an error should be retried based on the configured classifier.
func (p *Policy) ShouldRetry(err error) bool {
	return p.Classifier(err)
}

// Do runs fn up to MaxAttempts times, sleeping per the backoff schedule
// between attempts. Non-retryable errors abort immediately; the last error
// is returned once attempts are exhausted.
func Do[T any](ctx context.Context, policy *Policy, fn func(context.Context) (T, error)) (T, error) {
	var zero T
	var lastErr error

	for attempt := 1; attempt <= policy.Config.MaxAttempts; attempt++ {
		// Wait for backoff delay (except on first attempt)
		if attempt > 1 {
			delay := policy.CalculateDelay(attempt)
			if delay > 0 {
				select {
				case <-ctx.Done():
					return zero, fmt.Errorf("retry cancelled: %w", ctx.Err())
				case <-time.After(delay):
					// Continue with retry
				}
			}
		}

		result, err := fn(ctx)
		if err == nil {
			return result, nil
		}

		lastErr = err

		if !policy.ShouldRetry(err) {
			break
		}

		if attempt >= policy.Config.MaxAttempts {
			break
		}
	}

	return zero, lastErr
}
