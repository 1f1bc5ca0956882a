// Package agentprovider defines the uniform driver interface that fronts
// every concrete agent backend (sub-process, in-process LLM client). It is
// grounded on the teacher's runtime/agent/stream package for its
// tagged-variant streaming shape, translated from a Sink-of-Event model
// into the flat StreamChunk variant the spec calls for.
package agentprovider

import "github.com/goa-design/agentswarm/domain"

// Capabilities describes what a provider can do. Providers advertise a
// fixed Capabilities value; the router matches it against a role's
// requirements.
type Capabilities struct {
	Name                string
	Supports            Supports
	MaxConcurrentAgents int
	Priority            int
}

// Supports is the boolean capability vector a provider advertises.
type Supports struct {
	Streaming    bool
	Interrupt    bool
	HealthCheck  bool
	FileEditing  bool
	Terminal     bool
	ToolCalling  bool
}

// Requirements is the capability subset a role demands of a provider.
type Requirements struct {
	FileEditing bool
	Terminal    bool
	ToolCalling bool
}

// RoleRequirements returns the fixed capability requirements for role
// (spec.md §4.3: "Coordinator requires tool-calling; Implementor requires
// file-editing and terminal; Verifier requires terminal").
func RoleRequirements(role domain.Role) Requirements {
	switch role {
	case domain.RoleCoordinator:
		return Requirements{ToolCalling: true}
	case domain.RoleImplementor:
		return Requirements{FileEditing: true, Terminal: true}
	case domain.RoleVerifier:
		return Requirements{Terminal: true}
	default:
		return Requirements{}
	}
}

// Satisfies reports whether s meets every requirement in r.
func (s Supports) Satisfies(r Requirements) bool {
	if r.FileEditing && !s.FileEditing {
		return false
	}
	if r.Terminal && !s.Terminal {
		return false
	}
	if r.ToolCalling && !s.ToolCalling {
		return false
	}
	return true
}

// Gaps returns the human-readable list of requirements s fails to meet,
// used to populate NoSuitableProvider's per-candidate gap list.
func (s Supports) Gaps(r Requirements) []string {
	var gaps []string
	if r.FileEditing && !s.FileEditing {
		gaps = append(gaps, "file-editing")
	}
	if r.Terminal && !s.Terminal {
		gaps = append(gaps, "terminal")
	}
	if r.ToolCalling && !s.ToolCalling {
		gaps = append(gaps, "tool-calling")
	}
	return gaps
}
