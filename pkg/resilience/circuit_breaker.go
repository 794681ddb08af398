// SPDX-License-Identifier: Apache-2.0
package resilience

import (
	"context"
	"sync"
	"time"

	kerrors "github.com/jllopis/campusdesk/pkg/errors"
)

// CircuitBreakerState represents the state of a circuit breaker.
type CircuitBreakerState string

const (
	StateClosed   CircuitBreakerState = "closed"
	StateOpen     CircuitBreakerState = "open"
	StateHalfOpen CircuitBreakerState = "half-open"
)

// Level maps the state onto a gauge value: 0 open, 1 half-open, 2 closed.
func (s CircuitBreakerState) Level() int64 {
	switch s {
	case StateOpen:
		return 0
	case StateHalfOpen:
		return 1
	default:
		return 2
	}
}

// CircuitBreakerConfig configures a circuit breaker.
type CircuitBreakerConfig struct {
	// FailureThreshold is the number of consecutive failures before opening.
	FailureThreshold int

	// SuccessThreshold is the number of successes in half-open before closing.
	SuccessThreshold int

	// Cooldown is how long the circuit stays open before a trial call.
	Cooldown time.Duration

	Name string
}

// CircuitBreaker fails fast while a dependency keeps failing. The lock is
// never held while the guarded call runs.
type CircuitBreaker struct {
	config       CircuitBreakerConfig
	now          func() time.Time
	mu           sync.Mutex
	state        CircuitBreakerState
	failures     int
	successes    int
	lastFailTime time.Time
	observer     func(name string, state CircuitBreakerState)
}

// NewCircuitBreaker creates a new circuit breaker with the given config.
func NewCircuitBreaker(config CircuitBreakerConfig) *CircuitBreaker {
	if config.FailureThreshold < 1 {
		config.FailureThreshold = 5
	}
	if config.SuccessThreshold < 1 {
		config.SuccessThreshold = 1
	}
	if config.Cooldown == 0 {
		config.Cooldown = 30 * time.Second
	}
	if config.Name == "" {
		config.Name = "circuit_breaker"
	}
	return &CircuitBreaker{config: config, state: StateClosed, now: time.Now}
}

// Call executes fn if the circuit allows it. An open circuit returns a
// non-recoverable ORACLE_UNAVAILABLE error without calling fn.
func (cb *CircuitBreaker) Call(ctx context.Context, fn func(context.Context) error) error {
	if !cb.allow() {
		return kerrors.New(kerrors.CodeOracleUnavailable, "circuit breaker open", nil).
			WithContext("breaker", cb.config.Name)
	}
	err := fn(ctx)
	cb.record(err)
	return err
}

// Observe registers fn to be called after every state transition.
func (cb *CircuitBreaker) Observe(fn func(name string, state CircuitBreakerState)) {
	cb.mu.Lock()
	cb.observer = fn
	cb.mu.Unlock()
}

func (cb *CircuitBreaker) allow() bool {
	cb.mu.Lock()
	from := cb.state
	if cb.state == StateOpen && cb.now().Sub(cb.lastFailTime) >= cb.config.Cooldown {
		cb.state = StateHalfOpen
		cb.successes = 0
	}
	allowed := cb.state != StateOpen
	cb.transitioned(from)
	return allowed
}

func (cb *CircuitBreaker) record(err error) {
	cb.mu.Lock()
	from := cb.state
	if err != nil {
		cb.failures++
		cb.lastFailTime = cb.now()
		if cb.state == StateHalfOpen || cb.failures >= cb.config.FailureThreshold {
			cb.state = StateOpen
			cb.failures = 0
			cb.successes = 0
		}
	} else {
		cb.failures = 0
		if cb.state == StateHalfOpen {
			cb.successes++
			if cb.successes >= cb.config.SuccessThreshold {
				cb.state = StateClosed
				cb.successes = 0
			}
		}
	}
	cb.transitioned(from)
}

// transitioned releases cb.mu and notifies the observer when the state
// moved away from from.
func (cb *CircuitBreaker) transitioned(from CircuitBreakerState) {
	to, fn := cb.state, cb.observer
	cb.mu.Unlock()
	if fn != nil && to != from {
		fn(cb.config.Name, to)
	}
}

// State returns the current circuit breaker state.
func (cb *CircuitBreaker) State() CircuitBreakerState {
	cb.mu.Lock()
	defer cb.mu.Unlock()
	return cb.state
}

// Reset manually resets the circuit breaker to closed state.
func (cb *CircuitBreaker) Reset() {
	cb.mu.Lock()
	from := cb.state
	cb.state = StateClosed
	cb.failures = 0
	cb.successes = 0
	cb.transitioned(from)
}
