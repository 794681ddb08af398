package llm

import (
	"context"
	"time"

	"github.com/jllopis/campusdesk/pkg/core"
	"github.com/jllopis/campusdesk/pkg/resilience"
)

// GuardedProvider wraps a provider with a per-attempt timeout, retries and
// a circuit breaker. The breaker sees one outcome per Chat call.
type GuardedProvider struct {
	next    Provider
	retry   resilience.RetryConfig
	breaker *resilience.CircuitBreaker
	timeout time.Duration
}

// Guard wraps next. breaker may be nil.
func Guard(next Provider, retry resilience.RetryConfig, breaker *resilience.CircuitBreaker, timeout time.Duration) *GuardedProvider {
	return &GuardedProvider{next: next, retry: retry, breaker: breaker, timeout: timeout}
}

// Chat implements Provider.
func (g *GuardedProvider) Chat(ctx context.Context, req ChatRequest) (*ChatResponse, error) {
	call := func(ctx context.Context) (*ChatResponse, error) {
		return resilience.Retry(ctx, g.retry, func(ctx context.Context) (*ChatResponse, error) {
			return resilience.WithTimeout(ctx, g.timeout, func(ctx context.Context) (*ChatResponse, error) {
				return g.next.Chat(ctx, req)
			})
		})
	}
	if g.breaker == nil {
		return call(ctx)
	}

	var resp *ChatResponse
	err := g.breaker.Call(ctx, func(ctx context.Context) error {
		var err error
		resp, err = call(ctx)
		return err
	})
	return resp, err
}

// ObserveBreaker registers fn for breaker state transitions. It is a
// no-op without a breaker.
func (g *GuardedProvider) ObserveBreaker(fn func(name string, state resilience.CircuitBreakerState)) {
	if g.breaker != nil {
		g.breaker.Observe(fn)
	}
}

// Check reports oracle health from the breaker state. It implements
// core.HealthChecker.
func (g *GuardedProvider) Check(context.Context) core.HealthResult {
	if g.breaker == nil {
		return core.HealthResult{Status: core.HealthHealthy}
	}
	switch g.breaker.State() {
	case resilience.StateOpen:
		return core.HealthResult{Status: core.HealthUnhealthy, Message: "circuit open"}
	case resilience.StateHalfOpen:
		return core.HealthResult{Status: core.HealthDegraded, Message: "circuit half-open"}
	default:
		return core.HealthResult{Status: core.HealthHealthy}
	}
}

var (
	_ Provider           = (*GuardedProvider)(nil)
	_ core.HealthChecker = (*GuardedProvider)(nil)
)
