package resilience

import (
	"context"
	"errors"
	"testing"
	"time"
)

func TestWithRetry_SucceedsAfterTransientFailures(t *testing.T) {
	calls := 0
	var delays []time.Duration

	result, err := WithRetry(context.Background(), func(ctx context.Context) (string, error) {
		calls++
		if calls <= 3 {
			return "", errors.New("ETIMEDOUT: connect")
		}
		return "done", nil
	}, RetryOptions{
		MaxRetries: 3,
		BaseDelay:  10 * time.Millisecond,
		Multiplier: 2,
		OnRetry: func(attempt int, err error, delay time.Duration) {
			delays = append(delays, delay)
		},
	})

	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if result != "done" {
		t.Errorf("result = %q, want %q", result, "done")
	}
	if calls != 4 {
		t.Errorf("fn invoked %d times, want 4", calls)
	}
	if len(delays) != 3 {
		t.Fatalf("expected 3 inter-attempt delays, got %d", len(delays))
	}

	// Delay before attempt n lies in [base*2^(n-1), base*2^(n-1)*1.3].
	base := 10 * time.Millisecond
	for n, delay := range delays {
		min := base << n
		max := time.Duration(float64(min) * 1.3)
		if delay < min || delay > max {
			t.Errorf("delay %d = %v, want in [%v, %v]", n+1, delay, min, max)
		}
	}
}

func TestWithRetry_NonRetryableStopsImmediately(t *testing.T) {
	calls := 0
	wantErr := errors.New("invalid credentials")

	_, err := WithRetry(context.Background(), func(ctx context.Context) (int, error) {
		calls++
		return 0, wantErr
	}, RetryOptions{MaxRetries: 3, BaseDelay: time.Millisecond})

	if !errors.Is(err, wantErr) {
		t.Fatalf("error = %v, want %v", err, wantErr)
	}
	if calls != 1 {
		t.Errorf("fn invoked %d times, want 1", calls)
	}
}

func TestWithRetry_ExhaustsAttempts(t *testing.T) {
	calls := 0
	_, err := WithRetry(context.Background(), func(ctx context.Context) (int, error) {
		calls++
		return 0, errors.New("fetch failed")
	}, RetryOptions{MaxRetries: 2, BaseDelay: time.Millisecond})

	if err == nil {
		t.Fatal("expected error after exhausting attempts")
	}
	if calls != 3 {
		t.Errorf("fn invoked %d times, want 3", calls)
	}
}

func TestWithRetry_DelaysCappedAtMax(t *testing.T) {
	var delays []time.Duration
	_, _ = WithRetry(context.Background(), func(ctx context.Context) (int, error) {
		return 0, errors.New("timeout")
	}, RetryOptions{
		MaxRetries: 3,
		BaseDelay:  4 * time.Millisecond,
		MaxDelay:   5 * time.Millisecond,
		Multiplier: 10,
		OnRetry: func(attempt int, err error, delay time.Duration) {
			delays = append(delays, delay)
		},
	})

	for i, d := range delays {
		if d > 5*time.Millisecond {
			t.Errorf("delay %d = %v exceeds cap", i+1, d)
		}
	}
}

func TestWithRetry_ContextCancellation(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	calls := 0

	_, err := WithRetry(ctx, func(ctx context.Context) (int, error) {
		calls++
		cancel()
		return 0, errors.New("timeout")
	}, RetryOptions{MaxRetries: 5, BaseDelay: time.Millisecond})

	if !errors.Is(err, context.Canceled) {
		t.Fatalf("error = %v, want context.Canceled", err)
	}
	if calls != 1 {
		t.Errorf("fn invoked %d times after cancellation, want 1", calls)
	}
}

func TestIsRetryable(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want bool
	}{
		{"nil", nil, false},
		{"timed out", errors.New("dial: ETIMEDOUT"), true},
		{"conn reset", errors.New("read: ECONNRESET"), true},
		{"conn refused", errors.New("dial: ECONNREFUSED"), true},
		{"fetch failed", errors.New("fetch failed: no route"), true},
		{"generic timeout", errors.New("command Page.navigate timeout after 30s"), true},
		{"status 429", &HTTPStatusError{Status: 429}, true},
		{"status 502", &HTTPStatusError{Status: 502}, true},
		{"status 503", &HTTPStatusError{Status: 503}, true},
		{"status 400", &HTTPStatusError{Status: 400}, false},
		{"status 404", &HTTPStatusError{Status: 404}, false},
		{"plain error", errors.New("parse failure"), false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := IsRetryable(tt.err); got != tt.want {
				t.Errorf("IsRetryable(%v) = %v, want %v", tt.err, got, tt.want)
			}
		})
	}
}

type retryableErr struct{}

func (retryableErr) Error() string   { return "transient thing" }
func (retryableErr) Retryable() bool { return true }

func TestIsRetryable_MarkerInterface(t *testing.T) {
	if !IsRetryable(retryableErr{}) {
		t.Error("errors implementing Retryable() should be retryable")
	}
}
