// Package domain defines the core data model shared by every component of
// the orchestration engine (spec.md §3): agents, tasks, conversations,
// completion reports, and the domain events that announce their mutation.
// All identifiers are opaque strings minted by the stores; callers must not
// parse them (spec.md §4.1).
package domain

import "time"

// Role is one of the three agent archetypes (spec.md Glossary).
type Role string

const (
	RoleCoordinator Role = "coordinator"
	RoleImplementor Role = "implementor"
	RoleVerifier    Role = "verifier"
)

// AgentStatus is the lifecycle status of an Agent.
type AgentStatus string

const (
	AgentIdle      AgentStatus = "idle"
	AgentActive    AgentStatus = "active"
	AgentCompleted AgentStatus = "completed"
	AgentCancelled AgentStatus = "cancelled"
	AgentError     AgentStatus = "error"
)

// ModelTier is the agent's preferred model tier. It is recorded on the
// agent and validated by the system facade; the capability router does not
// consult it and selects providers by capabilities and priority only.
type ModelTier string

const (
	ModelTierSmart ModelTier = "smart"
	ModelTierFast  ModelTier = "fast"
)

// Agent is one spawned or in-process worker executing a single role within
// a run (spec.md §3).
type Agent struct {
	ID                string
	Name              string
	Role              Role
	Status            AgentStatus
	WorkspaceID       string
	ParentID          string // empty when this agent has no parent
	PreferredModel    ModelTier
	CreatedAt         time.Time
	UpdatedAt         time.Time
}

// Clone returns a deep-enough copy of a for safe handoff across goroutines;
// Agent has no reference fields requiring deeper copying today, but Clone
// exists so stores never hand out aliases to their internal records.
func (a Agent) Clone() Agent { return a }
