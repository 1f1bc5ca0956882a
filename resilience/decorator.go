package resilience

import (
	"context"

	"github.com/goa-design/agentswarm/agentprovider"
	"github.com/goa-design/agentswarm/domain"
	"github.com/goa-design/agentswarm/internal/agenterr"
	"github.com/goa-design/agentswarm/internal/classify"
)

// DecoratorConfig configures the combined decorator stack.
type DecoratorConfig struct {
	Breakers                   *Registry
	Recovery                   *RecoveryRegistry
	Conversations              ConversationTail // optional; nil disables session recovery
	MaxSessionRecoveryAttempts int              // default 2
	RateLimiter                *AdaptiveRateLimiter // optional; nil disables rate limiting
}

// Decorate wraps base with the decorator stack
// RateLimiter(SessionRecovery(Recovery(Breaker(base)))): the breaker is
// checked on every attempt the recovery registry makes, and each
// session-recovery attempt re-enters the recovery registry. Run and
// RunStreaming are the only methods decorated; lifecycle methods
// (IsHealthy, Interrupt, Cleanup, Shutdown, Capabilities) pass straight
// through to base since spec.md assigns the breaker and recovery registry
// no role in lifecycle management. The rate limiter sits outermost,
// matching the teacher's own AdaptiveRateLimiter sitting at the
// model.Client boundary ahead of any other middleware.
func Decorate(base agentprovider.Provider, cfg DecoratorConfig) agentprovider.Provider {
	if cfg.MaxSessionRecoveryAttempts <= 0 {
		cfg.MaxSessionRecoveryAttempts = MaxSessionRecoveryAttempts
	}
	return &decorated{base: base, cfg: cfg}
}

type decorated struct {
	base agentprovider.Provider
	cfg  DecoratorConfig
}

func (d *decorated) breaker() *CircuitBreaker {
	name := d.base.Capabilities().Name
	return d.cfg.Breakers.Get(name)
}

// Run implements agentprovider.Provider with the full decorator stack.
func (d *decorated) Run(ctx context.Context, role domain.Role, agentID, prompt string) (string, error) {
	if d.cfg.RateLimiter != nil {
		if err := d.cfg.RateLimiter.wait(ctx, estimateTokens(prompt)); err != nil {
			return "", err
		}
	}
	b := d.breaker()
	text, err := d.runWithSessionRecovery(ctx, b, agentID, func(ctx context.Context, p string) (string, error) {
		return d.recoveredRun(ctx, b, role, agentID, p)
	}, prompt)
	if d.cfg.RateLimiter != nil {
		d.cfg.RateLimiter.observe(err)
	}
	return text, err
}

// recoveredRun runs the base provider through the breaker and the
// category-keyed recovery registry (spec.md §4.4: "classify the first
// exception, pick strategy, apply it").
func (d *decorated) recoveredRun(ctx context.Context, b *CircuitBreaker, role domain.Role, agentID, prompt string) (string, error) {
	return Run(ctx, d.cfg.Recovery, func(ctx context.Context) (string, error) {
		if !b.Allow() {
			return "", &ErrCircuitOpen{Provider: d.base.Capabilities().Name}
		}
		text, err := d.base.Run(ctx, role, agentID, prompt)
		if err != nil {
			b.RecordFailure()
			return "", err
		}
		b.RecordSuccess()
		return text, nil
	})
}

// runWithSessionRecovery retries the wrapped call with a rebuilt prompt
// when it fails with a Session-category error (spec.md §4.4), up to
// MaxSessionRecoveryAttempts. Each recovery attempt is itself still guarded
// by the breaker since it re-enters call.
func (d *decorated) runWithSessionRecovery(
	ctx context.Context,
	b *CircuitBreaker,
	agentID string,
	call func(ctx context.Context, prompt string) (string, error),
	prompt string,
) (string, error) {
	text, err := call(ctx, prompt)
	if err == nil || d.cfg.Conversations == nil {
		return text, err
	}
	classified := classify.Classify(err)
	if classified.Category != agenterr.CategorySession {
		return text, err
	}
	var lastErr error = err
	for attempt := 1; attempt <= d.cfg.MaxSessionRecoveryAttempts; attempt++ {
		recoveryPrompt := buildSessionRecoveryPrompt(d.cfg.Conversations, agentID, prompt)
		text, lastErr = call(ctx, recoveryPrompt)
		if lastErr == nil {
			return text, nil
		}
		if agenterr.IsCancellation(lastErr) {
			return "", lastErr
		}
	}
	return "", lastErr
}

// RunStreaming implements agentprovider.Provider. Streaming calls are
// decorated with the breaker and recovery registry but not with session
// recovery: a partially-delivered stream cannot be safely replayed to a
// sink without risking duplicate chunks, so a Session-category streaming
// failure is surfaced to the caller like any other exhausted retry.
func (d *decorated) RunStreaming(ctx context.Context, role domain.Role, agentID, prompt string, sink agentprovider.Sink) (string, error) {
	if d.cfg.RateLimiter != nil {
		if err := d.cfg.RateLimiter.wait(ctx, estimateTokens(prompt)); err != nil {
			sink(agentID, agentprovider.ErrorChunk(err.Error(), false))
			return "", err
		}
	}
	b := d.breaker()
	text, err := Run(ctx, d.cfg.Recovery, func(ctx context.Context) (string, error) {
		if !b.Allow() {
			err := &ErrCircuitOpen{Provider: d.base.Capabilities().Name}
			sink(agentID, agentprovider.ErrorChunk(err.Error(), false))
			return "", err
		}
		text, err := d.base.RunStreaming(ctx, role, agentID, prompt, sink)
		if err != nil {
			b.RecordFailure()
			return "", err
		}
		b.RecordSuccess()
		return text, nil
	})
	if d.cfg.RateLimiter != nil {
		d.cfg.RateLimiter.observe(err)
	}
	return text, err
}

func (d *decorated) IsHealthy(agentID string) bool   { return d.base.IsHealthy(agentID) }
func (d *decorated) Interrupt(agentID string) error  { return d.base.Interrupt(agentID) }
func (d *decorated) Cleanup(agentID string) error    { return d.base.Cleanup(agentID) }
func (d *decorated) Shutdown() error                 { return d.base.Shutdown() }
func (d *decorated) Capabilities() agentprovider.Capabilities {
	return d.base.Capabilities()
}
