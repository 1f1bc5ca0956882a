// Package resilience implements the decorator stack spec.md §4.4 composes
// around any agentprovider.Provider: a per-provider circuit breaker, an
// error classifier (internal/classify) backed category-keyed recovery
// registry, and a session-recovery wrapper. The mutex-guarded
// state-plus-snapshot shape of CircuitBreaker is grounded on the teacher's
// own AdaptiveRateLimiter (features/model/middleware/ratelimit.go), which
// guards a small piece of shared numeric state behind a single mutex and
// exposes lock-free-feeling accessors via short critical sections.
package resilience

import (
	"sync"
	"time"
)

// BreakerState is one of the three circuit breaker states (spec.md §4.4).
type BreakerState string

const (
	BreakerClosed   BreakerState = "closed"
	BreakerOpen     BreakerState = "open"
	BreakerHalfOpen BreakerState = "half_open"
)

// BreakerConfig configures a CircuitBreaker. Zero values take the spec
// defaults.
type BreakerConfig struct {
	FailureThreshold  int           // default 5
	SuccessThreshold  int           // default 2
	Timeout           time.Duration // default 60s
	VolumeThreshold   int           // default 10
}

func (c BreakerConfig) withDefaults() BreakerConfig {
	if c.FailureThreshold <= 0 {
		c.FailureThreshold = 5
	}
	if c.SuccessThreshold <= 0 {
		c.SuccessThreshold = 2
	}
	if c.Timeout <= 0 {
		c.Timeout = 60 * time.Second
	}
	if c.VolumeThreshold <= 0 {
		c.VolumeThreshold = 10
	}
	return c
}

// BreakerMetrics is a point-in-time copy of a breaker's counters.
// Snapshot takes the breaker's mutex to make the copy, so it is not a
// lock-free read and waits for any transition in progress.
type BreakerMetrics struct {
	State          BreakerState
	Failures       int
	TotalRequests  int
	ConsecutiveOK  int
	LastFailure    time.Time
}

// CircuitBreaker implements the three-state breaker from spec.md §4.4: a
// provider failing too often inside a request window is taken out of
// rotation until a cooldown elapses, then probed back in gradually.
type CircuitBreaker struct {
	cfg BreakerConfig

	mu            sync.Mutex
	state         BreakerState
	failures      int
	totalRequests int
	consecutiveOK int
	lastFailure   time.Time
}

// NewCircuitBreaker constructs a CircuitBreaker in the Closed state.
func NewCircuitBreaker(cfg BreakerConfig) *CircuitBreaker {
	return &CircuitBreaker{cfg: cfg.withDefaults(), state: BreakerClosed}
}

// ErrCircuitOpen is returned by Allow when the breaker is rejecting calls.
type ErrCircuitOpen struct {
	Provider string
}

func (e *ErrCircuitOpen) Error() string {
	if e.Provider == "" {
		return "resilience: circuit open"
	}
	return "resilience: circuit open for provider " + e.Provider
}

// Allow reports whether a call should be admitted right now. When the
// breaker is Open and the cooldown has elapsed, Allow admits exactly one
// probing call and transitions the state to HalfOpen as a side effect.
func (b *CircuitBreaker) Allow() bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	switch b.state {
	case BreakerClosed, BreakerHalfOpen:
		return true
	case BreakerOpen:
		if time.Since(b.lastFailure) >= b.cfg.Timeout {
			b.state = BreakerHalfOpen
			b.consecutiveOK = 0
			return true
		}
		return false
	default:
		return true
	}
}

// RecordSuccess registers a successful call. In Closed it decays the
// failure counter by one, floored at zero. In HalfOpen it counts toward
// SuccessThreshold consecutive successes before returning to Closed.
func (b *CircuitBreaker) RecordSuccess() {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.totalRequests++
	switch b.state {
	case BreakerClosed:
		if b.failures > 0 {
			b.failures--
		}
	case BreakerHalfOpen:
		b.consecutiveOK++
		if b.consecutiveOK >= b.cfg.SuccessThreshold {
			b.state = BreakerClosed
			b.failures = 0
			b.consecutiveOK = 0
		}
	}
}

// RecordFailure registers a failed call. In Closed it increments the
// failure counter and trips to Open once both failureThreshold and
// volumeThreshold are met. In HalfOpen any failure reopens the breaker and
// resets the cooldown clock.
func (b *CircuitBreaker) RecordFailure() {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.totalRequests++
	b.lastFailure = time.Now()
	switch b.state {
	case BreakerClosed:
		b.failures++
		if b.failures >= b.cfg.FailureThreshold && b.totalRequests >= b.cfg.VolumeThreshold {
			b.state = BreakerOpen
		}
	case BreakerHalfOpen:
		b.state = BreakerOpen
		b.consecutiveOK = 0
	}
}

// Snapshot returns a copy of the breaker's current counters.
func (b *CircuitBreaker) Snapshot() BreakerMetrics {
	b.mu.Lock()
	defer b.mu.Unlock()
	return BreakerMetrics{
		State:         b.state,
		Failures:      b.failures,
		TotalRequests: b.totalRequests,
		ConsecutiveOK: b.consecutiveOK,
		LastFailure:   b.lastFailure,
	}
}

// Registry is a keyed set of singleton breakers, one per provider name.
type Registry struct {
	cfg BreakerConfig

	mu       sync.Mutex
	breakers map[string]*CircuitBreaker
}

// NewRegistry constructs a Registry. Every breaker it mints shares cfg.
func NewRegistry(cfg BreakerConfig) *Registry {
	return &Registry{cfg: cfg, breakers: make(map[string]*CircuitBreaker)}
}

// Get returns the singleton breaker for providerName, creating it on first
// use.
func (r *Registry) Get(providerName string) *CircuitBreaker {
	r.mu.Lock()
	defer r.mu.Unlock()
	if b, ok := r.breakers[providerName]; ok {
		return b
	}
	b := NewCircuitBreaker(r.cfg)
	r.breakers[providerName] = b
	return b
}

// All returns a snapshot of every breaker the registry has minted so far,
// keyed by provider name, for the observer surface's circuitBreakerMetrics
// command (spec.md §6).
func (r *Registry) All() map[string]BreakerMetrics {
	r.mu.Lock()
	names := make([]string, 0, len(r.breakers))
	breakers := make([]*CircuitBreaker, 0, len(r.breakers))
	for name, b := range r.breakers {
		names = append(names, name)
		breakers = append(breakers, b)
	}
	r.mu.Unlock()

	out := make(map[string]BreakerMetrics, len(names))
	for i, name := range names {
		out[name] = breakers[i].Snapshot()
	}
	return out
}
