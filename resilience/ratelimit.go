package resilience

import (
	"context"
	"sync"

	"golang.org/x/time/rate"

	"github.com/goa-design/agentswarm/internal/agenterr"
	"github.com/goa-design/agentswarm/internal/classify"
)

// AdaptiveRateLimiter applies an AIMD-style token bucket in front of a
// provider: it blocks callers until budget is available, then halves its
// effective tokens-per-minute budget on a rate-limit error and grows it
// back gradually on success. Grounded directly on the teacher's
// features/model/middleware/ratelimit.go AdaptiveRateLimiter, trimmed to
// the process-local case (the teacher's cluster-coordinated variant
// depends on goa.design/pulse/rmap, which nothing else in this module
// pulls in).
type AdaptiveRateLimiter struct {
	mu sync.Mutex

	limiter *rate.Limiter

	currentTPM   float64
	minTPM       float64
	maxTPM       float64
	recoveryRate float64
}

// NewAdaptiveRateLimiter constructs a limiter with an initial and maximum
// tokens-per-minute budget. A non-positive initialTPM defaults to 60000; a
// maxTPM below initialTPM is clamped up to it.
func NewAdaptiveRateLimiter(initialTPM, maxTPM float64) *AdaptiveRateLimiter {
	if initialTPM <= 0 {
		initialTPM = 60000
	}
	if maxTPM <= 0 || maxTPM < initialTPM {
		maxTPM = initialTPM
	}
	minTPM := initialTPM * 0.1
	if minTPM < 1 {
		minTPM = 1
	}
	recoveryRate := initialTPM * 0.05
	if recoveryRate < 1 {
		recoveryRate = 1
	}
	return &AdaptiveRateLimiter{
		limiter:      rate.NewLimiter(rate.Limit(initialTPM/60.0), int(initialTPM)),
		currentTPM:   initialTPM,
		minTPM:       minTPM,
		maxTPM:       maxTPM,
		recoveryRate: recoveryRate,
	}
}

// isRateLimited classifies an upstream error as a provider rate-limit
// signal, the same condition internal/classify.Classify maps to
// agenterr.CategoryRateLimit.
func isRateLimited(err error) bool {
	return err != nil && classify.Classify(err).Category == agenterr.CategoryRateLimit
}

// wait blocks until tokens is estimated to fit the current budget, or until
// ctx is cancelled.
func (l *AdaptiveRateLimiter) wait(ctx context.Context, tokens int) error {
	if tokens < 1 {
		tokens = 1
	}
	if burst := l.limiter.Burst(); tokens > burst {
		tokens = burst
	}
	return l.limiter.WaitN(ctx, tokens)
}

// observe adjusts the effective budget based on the outcome of the call
// that just consumed tokens from wait.
func (l *AdaptiveRateLimiter) observe(err error) {
	if err == nil {
		l.probe()
		return
	}
	if isRateLimited(err) {
		l.backoff()
	}
}

func (l *AdaptiveRateLimiter) backoff() {
	l.mu.Lock()
	defer l.mu.Unlock()
	newTPM := l.currentTPM * 0.5
	if newTPM < l.minTPM {
		newTPM = l.minTPM
	}
	if newTPM == l.currentTPM {
		return
	}
	l.currentTPM = newTPM
	l.limiter.SetLimit(rate.Limit(newTPM / 60.0))
	l.limiter.SetBurst(int(newTPM))
}

func (l *AdaptiveRateLimiter) probe() {
	l.mu.Lock()
	defer l.mu.Unlock()
	newTPM := l.currentTPM + l.recoveryRate
	if newTPM > l.maxTPM {
		newTPM = l.maxTPM
	}
	if newTPM == l.currentTPM {
		return
	}
	l.currentTPM = newTPM
	l.limiter.SetLimit(rate.Limit(newTPM / 60.0))
	l.limiter.SetBurst(int(newTPM))
}

// CurrentTPM returns the limiter's current effective tokens-per-minute
// budget, mostly useful for tests and telemetry.
func (l *AdaptiveRateLimiter) CurrentTPM() float64 {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.currentTPM
}

// estimateTokens is a cheap heuristic over a prompt's length, mirroring the
// teacher's character-count-over-three-plus-buffer estimate.
func estimateTokens(prompt string) int {
	if len(prompt) == 0 {
		return 500
	}
	tokens := len(prompt) / 3
	if tokens < 1 {
		tokens = 1
	}
	return tokens + 500
}
