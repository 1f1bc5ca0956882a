// Package router implements the Capability Router from spec.md §4.5: an
// ordered registry of agentprovider.Provider backends, selecting the
// highest-priority provider whose capabilities satisfy a role's fixed
// requirements. The registration-order-keyed, mutex-guarded registry shape
// is grounded on the teacher's runtime/agent/reminder.Engine, which keeps a
// priority-tiered collection under a single mutex and produces a
// stable-sorted view (priority first, tie broken by a stable secondary
// key) rather than mutating call order.
package router

import (
	"fmt"
	"strings"
	"sync"

	"github.com/goa-design/agentswarm/agentprovider"
	"github.com/goa-design/agentswarm/domain"
)

// NoSuitableProvider is returned by Select when no registered provider
// satisfies the role's requirements (spec.md §4.5).
type NoSuitableProvider struct {
	Role         domain.Role
	Requirements agentprovider.Requirements
	Gaps         map[string][]string // provider name -> missing capabilities
}

func (e *NoSuitableProvider) Error() string {
	var sb strings.Builder
	fmt.Fprintf(&sb, "router: no provider satisfies role %q", e.Role)
	for name, gaps := range e.Gaps {
		fmt.Fprintf(&sb, "; %s missing %s", name, strings.Join(gaps, ","))
	}
	return sb.String()
}

// entry pairs a registered provider with its registration order, so ties
// on priority break by registration order rather than map iteration order.
type entry struct {
	provider agentprovider.Provider
	order    int
}

// Router holds an ordered registry of providers and selects among them per
// role (spec.md §4.5).
type Router struct {
	mu       sync.Mutex
	entries  []entry
	nextOrder int
}

// New constructs an empty Router.
func New() *Router {
	return &Router{}
}

// Register adds a provider to the registry. Providers are tried in
// priority order (highest first); among equal priorities, the
// first-registered provider wins.
func (r *Router) Register(p agentprovider.Provider) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.entries = append(r.entries, entry{provider: p, order: r.nextOrder})
	r.nextOrder++
}

// Select picks the best provider for role, or returns *NoSuitableProvider
// carrying every candidate's capability gaps.
func (r *Router) Select(role domain.Role) (agentprovider.Provider, error) {
	req := agentprovider.RoleRequirements(role)
	r.mu.Lock()
	snapshot := make([]entry, len(r.entries))
	copy(snapshot, r.entries)
	r.mu.Unlock()

	var best *entry
	gaps := make(map[string][]string)
	for i := range snapshot {
		e := snapshot[i]
		caps := e.provider.Capabilities()
		if caps.Supports.Satisfies(req) {
			if best == nil || betterCandidate(e, *best) {
				cp := e
				best = &cp
			}
			continue
		}
		gaps[caps.Name] = caps.Supports.Gaps(req)
	}
	if best == nil {
		return nil, &NoSuitableProvider{Role: role, Requirements: req, Gaps: gaps}
	}
	return best.provider, nil
}

// betterCandidate reports whether candidate should replace current as the
// selected provider: higher priority wins; ties keep the earlier
// registration (lower order).
func betterCandidate(candidate, current entry) bool {
	cp := candidate.provider.Capabilities().Priority
	up := current.provider.Capabilities().Priority
	if cp != up {
		return cp > up
	}
	return candidate.order < current.order
}

// Providers returns a snapshot of all registered providers, in registration
// order.
func (r *Router) Providers() []agentprovider.Provider {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]agentprovider.Provider, len(r.entries))
	for i, e := range r.entries {
		out[i] = e.provider
	}
	return out
}

// Interrupt broadcasts Interrupt(agentID) to every registered provider,
// best-effort: one provider's error does not prevent the others (spec.md
// §4.5).
func (r *Router) Interrupt(agentID string) []error {
	var errs []error
	for _, p := range r.Providers() {
		if err := p.Interrupt(agentID); err != nil {
			errs = append(errs, err)
		}
	}
	return errs
}

// Cleanup broadcasts Cleanup(agentID) to every registered provider,
// best-effort.
func (r *Router) Cleanup(agentID string) []error {
	var errs []error
	for _, p := range r.Providers() {
		if err := p.Cleanup(agentID); err != nil {
			errs = append(errs, err)
		}
	}
	return errs
}

// Shutdown broadcasts Shutdown to every registered provider, best-effort.
func (r *Router) Shutdown() []error {
	var errs []error
	for _, p := range r.Providers() {
		if err := p.Shutdown(); err != nil {
			errs = append(errs, err)
		}
	}
	return errs
}

// IsHealthy is conjunctive across every registered provider that might own
// agentID: since the router has no record of which provider actually ran a
// given agent, it is conservative and requires all of them to report
// healthy (spec.md §4.5: "an agent is healthy only if every provider that
// might own it reports healthy").
func (r *Router) IsHealthy(agentID string) bool {
	for _, p := range r.Providers() {
		if !p.IsHealthy(agentID) {
			return false
		}
	}
	return true
}
