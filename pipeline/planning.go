package pipeline

import (
	"context"

	"github.com/goa-design/agentswarm/domain"
)

// PlanningStage invokes the provider in the Coordinator role with the user
// request, writing the raw text to MetaPlanOutput (spec.md §4.7). It runs
// once per pipeline: a single-attempt retry policy and, when resumed via
// RepeatPipeline, never restarts from here since the engine's startIndex
// computation skips one-shot stages on fix waves.
type PlanningStage struct{}

// Name implements Stage.
func (PlanningStage) Name() string { return "planning" }

// Description implements Stage.
func (PlanningStage) Description() string {
	return "invokes the coordinator-role provider with the user request and records its plan output"
}

// RetryPolicy implements Stage: single attempt (spec.md §4.7).
func (PlanningStage) RetryPolicy() RetryPolicy { return RetryPolicy{MaxAttempts: 1} }

// Execute implements Stage.
func (PlanningStage) Execute(ctx context.Context, pc *Context) (StageResult, error) {
	if err := pc.EnsureActive(ctx); err != nil {
		return StageResult{}, err
	}

	agentID := pc.GetString(MetaCoordinatorAgent)
	if agentID == "" {
		agent, err := pc.Stores.Agents.Create(ctx, domain.Agent{
			WorkspaceID: pc.Workspace,
			Role:        domain.RoleCoordinator,
			Name:        "coordinator",
		})
		if err != nil {
			return StageResult{}, err
		}
		agentID = agent.ID
		pc.Set(MetaCoordinatorAgent, agentID)
	}

	provider, err := selectProvider(pc, domain.RoleCoordinator)
	if err != nil {
		return StageResult{}, err
	}

	text, err := provider.Run(ctx, domain.RoleCoordinator, agentID, pc.UserRequest)
	if err != nil {
		return StageResult{}, err
	}
	pc.Set(MetaPlanOutput, text)

	if err := pc.Coordinator.PlanReady(); err != nil {
		return StageResult{}, &ErrState{Cause: err}
	}
	pc.NotifyPhase(PhaseEvent{Kind: PhasePlanReady})
	return Continue(), nil
}
