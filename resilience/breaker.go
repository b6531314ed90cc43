package resilience

import (
	"context"
	"fmt"
	"sync"
	"time"
)

// Breaker states.
const (
	stateClosed = iota
	stateOpen
	stateHalfOpen
)

// BreakerOptions configures a circuit breaker.
type BreakerOptions struct {
	// FailureThreshold opens the circuit after this many consecutive
	// failures.
	FailureThreshold int // default: 5

	// ResetTime is how long the circuit stays open after the last
	// failure before a half-open probe is allowed.
	ResetTime time.Duration // default: 60s
}

func (o BreakerOptions) withDefaults() BreakerOptions {
	if o.FailureThreshold <= 0 {
		o.FailureThreshold = 5
	}
	if o.ResetTime <= 0 {
		o.ResetTime = 60 * time.Second
	}
	return o
}

// CircuitOpenError is returned without invoking the wrapped function
// while the circuit is open.
type CircuitOpenError struct {
	Key        string
	RetryAfter time.Duration
}

func (e *CircuitOpenError) Error() string {
	return fmt.Sprintf("circuit %q open, retry after %ds", e.Key, int(e.RetryAfter.Seconds()+0.5))
}

type breaker struct {
	failures    int
	lastFailure time.Time
	state       int
}

// Registry holds circuit breaker state per resource key. It is injected
// into callers rather than kept as a package global so tests can use
// independent instances. A fresh registry starts every key closed.
type Registry struct {
	mu       sync.Mutex
	breakers map[string]*breaker
	now      func() time.Time
}

// NewRegistry creates an empty breaker registry.
func NewRegistry() *Registry {
	return &Registry{
		breakers: make(map[string]*breaker),
		now:      time.Now,
	}
}

// allow decides whether a call for key may proceed. It transitions
// open breakers to half-open once ResetTime has elapsed.
func (r *Registry) allow(key string, opts BreakerOptions) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	b, ok := r.breakers[key]
	if !ok {
		b = &breaker{}
		r.breakers[key] = b
	}

	switch b.state {
	case stateClosed:
		return nil
	case stateHalfOpen:
		// A probe is already in flight.
		return &CircuitOpenError{Key: key, RetryAfter: opts.ResetTime}
	default: // stateOpen
		elapsed := r.now().Sub(b.lastFailure)
		if elapsed < opts.ResetTime {
			return &CircuitOpenError{Key: key, RetryAfter: opts.ResetTime - elapsed}
		}
		b.state = stateHalfOpen
		return nil
	}
}

// record updates breaker state after a call for key completed.
func (r *Registry) record(key string, opts BreakerOptions, callErr error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	b := r.breakers[key]
	if b == nil {
		return
	}

	if callErr == nil {
		b.failures = 0
		b.state = stateClosed
		return
	}

	b.lastFailure = r.now()
	if b.state == stateHalfOpen {
		// Probe failed: reopen and restart the cool-down clock.
		b.state = stateOpen
		return
	}
	b.failures++
	if b.failures >= opts.FailureThreshold {
		b.state = stateOpen
	}
}

// WithBreaker guards fn with the named circuit breaker. While open,
// calls fail fast with CircuitOpenError; after ResetTime one probe call
// is allowed through, and its outcome closes or reopens the circuit.
func WithBreaker[T any](ctx context.Context, reg *Registry, key string, fn func(context.Context) (T, error), opts BreakerOptions) (T, error) {
	opts = opts.withDefaults()

	var zero T
	if err := reg.allow(key, opts); err != nil {
		return zero, err
	}

	result, err := fn(ctx)
	reg.record(key, opts, err)
	if err != nil {
		return zero, err
	}
	return result, nil
}
