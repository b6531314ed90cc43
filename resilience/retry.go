package resilience

import (
	"context"
	"errors"
	"math"
	"math/rand"
	"strings"
	"time"
)

// RetryOptions configures WithRetry.
type RetryOptions struct {
	// MaxRetries is the number of re-attempts after the first call.
	MaxRetries int // default: 3

	// BaseDelay is the delay before the first retry.
	BaseDelay time.Duration // default: 1s

	// MaxDelay caps each computed delay.
	MaxDelay time.Duration // default: 30s

	// Multiplier is the exponential backoff factor.
	Multiplier float64 // default: 2

	// OnRetry is invoked before each wait, for observability.
	OnRetry func(attempt int, err error, delay time.Duration)
}

func (o RetryOptions) withDefaults() RetryOptions {
	if o.MaxRetries < 0 {
		o.MaxRetries = 0
	}
	if o.BaseDelay <= 0 {
		o.BaseDelay = time.Second
	}
	if o.MaxDelay <= 0 {
		o.MaxDelay = 30 * time.Second
	}
	if o.Multiplier <= 0 {
		o.Multiplier = 2
	}
	return o
}

// retryableSubstrings marks transient failures by message. The set is
// fixed; collaborators that want retries for other conditions return an
// HTTPStatusError or implement Retryable() bool.
var retryableSubstrings = []string{
	"ETIMEDOUT",
	"ECONNRESET",
	"ECONNREFUSED",
	"fetch failed",
	"timeout",
	"connection reset",
	"connection refused",
}

// retryableStatuses are the HTTP statuses routed through the retry path.
var retryableStatuses = map[int]bool{429: true, 502: true, 503: true}

// IsRetryable reports whether err is worth another attempt.
func IsRetryable(err error) bool {
	if err == nil {
		return false
	}

	var marker interface{ Retryable() bool }
	if errors.As(err, &marker) {
		return marker.Retryable()
	}

	var statusErr *HTTPStatusError
	if errors.As(err, &statusErr) {
		return retryableStatuses[statusErr.Status]
	}

	msg := err.Error()
	for _, s := range retryableSubstrings {
		if strings.Contains(msg, s) {
			return true
		}
	}
	return false
}

// WithRetry attempts fn up to MaxRetries+1 times. The delay before
// attempt n (n>=2) is min(MaxDelay, BaseDelay * Multiplier^(n-1) *
// (1 + U(0,0.3))). Non-retryable errors are returned on first
// occurrence; context cancellation always stops the loop.
func WithRetry[T any](ctx context.Context, fn func(context.Context) (T, error), opts RetryOptions) (T, error) {
	opts = opts.withDefaults()

	var zero T
	var lastErr error

	for attempt := 0; attempt <= opts.MaxRetries; attempt++ {
		if attempt > 0 {
			delay := backoffDelay(attempt, opts)
			if opts.OnRetry != nil {
				opts.OnRetry(attempt, lastErr, delay)
			}
			select {
			case <-time.After(delay):
			case <-ctx.Done():
				return zero, ctx.Err()
			}
		}

		result, err := fn(ctx)
		if err == nil {
			return result, nil
		}
		lastErr = err

		if ctx.Err() != nil {
			return zero, ctx.Err()
		}
		if !IsRetryable(err) {
			return zero, err
		}
	}
	return zero, lastErr
}

// backoffDelay computes the jittered exponential delay before attempt n.
func backoffDelay(attempt int, opts RetryOptions) time.Duration {
	base := float64(opts.BaseDelay) * math.Pow(opts.Multiplier, float64(attempt-1))
	jittered := base * (1 + rand.Float64()*0.3)
	if d := time.Duration(jittered); d < opts.MaxDelay {
		return d
	}
	return opts.MaxDelay
}
