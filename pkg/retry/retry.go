// Package retry wraps one conversion attempt with classification-aware
// exponential backoff. Transient failures are retried; the fixed permanent
// set (missing files, permissions, corrupt input, cancellation, exhausted
// resources) aborts immediately.
package retry

import (
	"context"
	"fmt"
	"time"

	"github.com/psantana5/mediaconv/pkg/cancel"
	"github.com/psantana5/mediaconv/pkg/converr"
)

// Config holds retry configuration
type Config struct {
	MaxRetries int           // additional attempts after the first
	BaseDelay  time.Duration // delay before the first retry
	Multiplier float64       // exponential backoff multiplier
	MaxDelay   time.Duration // optional ceiling, 0 means uncapped
}

// DefaultConfig returns sensible defaults for encoder retries
func DefaultConfig() Config {
	return Config{
		MaxRetries: 2,
		BaseDelay:  2 * time.Second,
		Multiplier: 2.0,
		MaxDelay:   30 * time.Second,
	}
}

// AggregateError reports retry exhaustion, wrapping the last underlying
// error and the number of attempts made
type AggregateError struct {
	Attempts int
	Last     error
}

// Error implements the error interface
func (e *AggregateError) Error() string {
	return fmt.Sprintf("operation failed after %d attempts: %v", e.Attempts, e.Last)
}

// Unwrap returns the last underlying error
func (e *AggregateError) Unwrap() error {
	return e.Last
}

// Do executes fn with exponential backoff. A non-retryable failure is
// returned as-is after the first attempt; exhausting the retry budget
// returns an AggregateError. Cancellation observed between attempts or
// during a backoff sleep short-circuits without further attempts.
func Do(ctx context.Context, cfg Config, token *cancel.Token, fn func(attempt int) error) error {
	if cfg.Multiplier <= 0 {
		cfg.Multiplier = 2.0
	}
	delay := cfg.BaseDelay

	var lastErr error
	attempts := 0
	for attempt := 1; attempt <= cfg.MaxRetries+1; attempt++ {
		if err := token.Check(); err != nil {
			return err
		}
		if err := ctx.Err(); err != nil {
			return fmt.Errorf("retry cancelled: %w", err)
		}

		attempts++
		err := fn(attempt)
		if err == nil {
			return nil
		}
		lastErr = err

		if converr.IsCancellation(err) {
			return err
		}
		if !converr.IsRetryable(err) {
			return err
		}
		if attempt == cfg.MaxRetries+1 {
			break
		}

		select {
		case <-ctx.Done():
			return fmt.Errorf("retry cancelled: %w", ctx.Err())
		case <-token.Done():
			return converr.NewCancellation()
		case <-time.After(delay):
		}

		delay = time.Duration(float64(delay) * cfg.Multiplier)
		if cfg.MaxDelay > 0 && delay > cfg.MaxDelay {
			delay = cfg.MaxDelay
		}
	}

	return &AggregateError{Attempts: attempts, Last: lastErr}
}
