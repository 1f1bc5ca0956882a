package resilience

import (
	"context"
	"time"

	"github.com/goa-design/agentswarm/internal/agenterr"
	"github.com/goa-design/agentswarm/internal/classify"
)

// RetryStrategy is the per-category recovery strategy from spec.md §4.4:
// exponential backoff capped at maxDelayMs.
type RetryStrategy struct {
	MaxAttempts       int
	BaseDelay         time.Duration
	BackoffMultiplier float64
}

// maxDelay caps every strategy's computed delay (spec.md §4.4 default 30s).
const maxDelay = 30 * time.Second

// delay returns the backoff delay before the given retry attempt (1-based:
// attempt 1 is the delay before the first retry, i.e. after the first
// failure).
func (s RetryStrategy) delay(attempt int) time.Duration {
	d := s.BaseDelay
	mult := s.BackoffMultiplier
	if mult <= 0 {
		mult = 1
	}
	for i := 1; i < attempt; i++ {
		d = time.Duration(float64(d) * mult)
	}
	if d > maxDelay {
		d = maxDelay
	}
	return d
}

// defaultStrategies holds the spec.md §4.4 default per-category retry
// policies. Configuration/Memory/Permission are intentionally absent: they
// default to Fail (zero-value RetryStrategy, MaxAttempts 0, i.e. no retry).
var defaultStrategies = map[agenterr.Category]RetryStrategy{
	agenterr.CategoryNetwork:   {MaxAttempts: 3, BaseDelay: 1 * time.Second, BackoffMultiplier: 1},
	agenterr.CategoryTimeout:   {MaxAttempts: 2, BaseDelay: 2 * time.Second, BackoffMultiplier: 1},
	agenterr.CategoryRateLimit: {MaxAttempts: 3, BaseDelay: 5 * time.Second, BackoffMultiplier: 2},
	agenterr.CategoryStreaming: {MaxAttempts: 2, BaseDelay: 500 * time.Millisecond, BackoffMultiplier: 1},
	agenterr.CategorySession:   {MaxAttempts: 2, BaseDelay: 1 * time.Second, BackoffMultiplier: 1},
	agenterr.CategoryProcess:   {MaxAttempts: 2, BaseDelay: 2 * time.Second, BackoffMultiplier: 1},
	agenterr.CategoryProvider:  {MaxAttempts: 2, BaseDelay: 1500 * time.Millisecond, BackoffMultiplier: 1},
	agenterr.CategoryUnknown:   {MaxAttempts: 1, BaseDelay: 1 * time.Second, BackoffMultiplier: 1},
}

// RecoveryRegistry maps an error category to its retry strategy. A category
// absent from overrides and defaultStrategies never retries (Fail).
type RecoveryRegistry struct {
	strategies map[agenterr.Category]RetryStrategy
}

// NewRecoveryRegistry constructs a RecoveryRegistry seeded with spec.md
// §4.4's defaults, overridden by any entries in overrides.
func NewRecoveryRegistry(overrides map[agenterr.Category]RetryStrategy) *RecoveryRegistry {
	merged := make(map[agenterr.Category]RetryStrategy, len(defaultStrategies))
	for k, v := range defaultStrategies {
		merged[k] = v
	}
	for k, v := range overrides {
		merged[k] = v
	}
	return &RecoveryRegistry{strategies: merged}
}

// StrategyFor returns the retry strategy registered for category. The zero
// value (MaxAttempts 0) means "fail immediately, no retry".
func (r *RecoveryRegistry) StrategyFor(category agenterr.Category) RetryStrategy {
	return r.strategies[category]
}

// Operation is a single unit of work the Run* helpers retry.
type Operation[T any] func(ctx context.Context) (T, error)

// Run classifies the first failure, looks up its retry strategy, and
// retries per spec.md §4.4: "classify the first exception, pick strategy,
// apply it. Retries must be cancellation-aware and never retry a
// cancellation exception."
func Run[T any](ctx context.Context, r *RecoveryRegistry, op Operation[T]) (T, error) {
	var zero T
	var firstErr *agenterr.AgentError
	attempt := 0
	for {
		attempt++
		result, err := op(ctx)
		if err == nil {
			return result, nil
		}
		if agenterr.IsCancellation(err) {
			return zero, err
		}
		classified := classify.Classify(err)
		if firstErr == nil {
			firstErr = classified
		}
		strategy := r.StrategyFor(firstErr.Category)
		if attempt >= strategy.MaxAttempts || strategy.MaxAttempts <= 0 {
			return zero, classified
		}
		select {
		case <-ctx.Done():
			return zero, ctx.Err()
		case <-time.After(strategy.delay(attempt)):
		}
	}
}
