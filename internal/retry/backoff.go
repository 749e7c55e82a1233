package retry

import (
	"context"
	"math/rand/v2"
	"time"
)

// BackoffConfig contains configuration for exponential backoff
type BackoffConfig struct {
	InitialDelay time.Duration `json:"initial_delay"`
	MaxDelay     time.Duration `json:"max_delay"`
	Multiplier   float64       `json:"multiplier"`
	MaxAttempts  int           `json:"max_attempts"`
	Jitter       bool          `json:"jitter"`
}

// DefaultBackoffConfig returns a sensible default configuration
func DefaultBackoffConfig() BackoffConfig {
	return BackoffConfig{
		InitialDelay: 100 * time.Millisecond,
		MaxDelay:     30 * time.Second,
		Multiplier:   2.0,
		MaxAttempts:  5,
		Jitter:       true,
	}
}

// Backoff implements exponential backoff with optional jitter
type Backoff struct {
	config BackoffConfig
}

// NewBackoff creates a new exponential backoff instance
func NewBackoff(config BackoffConfig) *Backoff {
	return &Backoff{
		config: config,
	}
}

// Retry executes the operation with exponential backoff retry logic
func (b *Backoff) Retry(ctx context.Context, operation func() error) error {
	return b.RetryWithPredicate(ctx, operation, func(error) bool { return true })
}

// RetryWithPredicate executes the operation with exponential backoff, using a
// predicate to decide whether a failure is worth another attempt.
func (b *Backoff) RetryWithPredicate(ctx context.Context, operation func() error, isRetryable func(error) bool) error {
	var lastErr error

	for attempt := 1; attempt <= b.config.MaxAttempts; attempt++ {
		select {
		case <-ctx.Done():
			return ctx.Err()
		default:
		}

		err := operation()
		if err == nil {
			return nil
		}

		lastErr = err

		if !isRetryable(err) {
			return err
		}

		if attempt == b.config.MaxAttempts {
			break
		}

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(b.calculateDelay(attempt)):
		}
	}

	return lastErr
}

// calculateDelay computes the delay for the given attempt with exponential
// backoff and optional jitter (+-25%).
func (b *Backoff) calculateDelay(attempt int) time.Duration {
	delay := float64(b.config.InitialDelay)
	for i := 1; i < attempt; i++ {
		delay *= b.config.Multiplier
	}

	if delay > float64(b.config.MaxDelay) {
		delay = float64(b.config.MaxDelay)
	}

	if b.config.Jitter {
		jitter := delay * 0.25
		delay += (rand.Float64() - 0.5) * 2 * jitter

		if delay < 0 {
			delay = float64(b.config.InitialDelay)
		}
		if delay > float64(b.config.MaxDelay) {
			delay = float64(b.config.MaxDelay)
		}
	}

	return time.Duration(delay)
}

// GetNextDelay returns the delay that would be used for the given attempt
func (b *Backoff) GetNextDelay(attempt int) time.Duration {
	return b.calculateDelay(attempt)
}
