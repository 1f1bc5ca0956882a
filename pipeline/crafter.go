package pipeline

import (
	"context"
	"sync"
	"time"

	"github.com/goa-design/agentswarm/agentprovider"
	"github.com/goa-design/agentswarm/coordinator"
	"github.com/goa-design/agentswarm/domain"
)

// CrafterExecutionStage drives every Implementor wave that the current DAG
// allows, one dependency layer after another, until no task is Ready
// anymore (spec.md §4.7). A DAG with a task depending on another only
// becomes fully Ready across several internal waves as each layer
// completes, and the coordination state machine has a single
// Executing -> Verifying edge, so this stage keeps calling
// coordinator.ExecuteNextWave internally rather than handing control back
// to the engine between layers; MetaDelegations accumulates every
// delegation across those internal waves so gate-verification checks and
// verifies the whole run, not just its last layer. A plan that registered
// zero tasks short-circuits here with the NoTasks outcome (spec.md S4)
// before any wave bookkeeping happens. Each delegate's free-form
// completion text is parsed into a CompletionReport only when the agent
// did not already report itself (status still not domain.AgentCompleted
// after the run), matching the native report_to_parent path
// coordinator.ReportCompletion already implements for providers that call
// it directly.
type CrafterExecutionStage struct{}

// Name implements Stage.
func (CrafterExecutionStage) Name() string { return "crafter-execution" }

// Description implements Stage.
func (CrafterExecutionStage) Description() string {
	return "assigns and runs the next wave of implementor agents against the ready tasks"
}

// RetryPolicy implements Stage (spec.md §4.7: "2 attempts, base 2s, x2").
func (CrafterExecutionStage) RetryPolicy() RetryPolicy {
	return RetryPolicy{MaxAttempts: 2, BaseDelay: 2 * time.Second, BackoffMultiplier: 2}
}

// Execute implements Stage.
func (s CrafterExecutionStage) Execute(ctx context.Context, pc *Context) (StageResult, error) {
	if err := pc.EnsureActive(ctx); err != nil {
		return StageResult{}, err
	}

	taskIDs := pc.GetStringSlice(MetaTaskIDs)
	if len(taskIDs) == 0 {
		return Done(Outcome{Kind: OutcomeNoTasks, PlanOutput: pc.GetString(MetaPlanOutput)}), nil
	}

	var all []coordinator.Delegation

	// A stage-level retry (executeStageWithResilience re-invoking Execute
	// after a failed attempt) re-enters here after ExecuteNextWave already
	// moved some tasks to InProgress and assigned them an agent; those
	// tasks are no longer Ready, so the wave loop below would never pick
	// them up again. Resume them first so a transient implementor failure
	// (spec.md S5) actually gets retried instead of stranding the task.
	if resumed := s.resumeInFlight(pc, taskIDs); len(resumed) > 0 {
		var err error
		if pc.ParallelCrafters && len(resumed) >= 2 {
			err = s.runParallel(ctx, pc, resumed)
		} else {
			err = s.runSequential(ctx, pc, resumed)
		}
		if err != nil {
			return StageResult{}, err
		}
		all = append(all, resumed...)
	}

	for {
		if err := pc.EnsureActive(ctx); err != nil {
			return StageResult{}, err
		}

		delegations, err := pc.Coordinator.ExecuteNextWave(ctx)
		if err != nil {
			return StageResult{}, err
		}
		if len(delegations) == 0 {
			break
		}

		wave := pc.GetInt(MetaWaveNumber) + 1
		pc.Set(MetaWaveNumber, wave)
		pc.NotifyPhase(PhaseEvent{Kind: PhaseWaveStarting, WaveNumber: wave})

		if pc.ParallelCrafters && len(delegations) >= 2 {
			err = s.runParallel(ctx, pc, delegations)
		} else {
			err = s.runSequential(ctx, pc, delegations)
		}
		if err != nil {
			return StageResult{}, err
		}
		all = append(all, delegations...)
	}

	if len(all) == 0 {
		// Nothing ready to run: every task is either already completed
		// awaiting verification or blocked on a dependency that will
		// never resolve. Either way there is no wave to execute.
		return SkipRemaining(Outcome{Kind: OutcomeSuccess, TaskSummaries: summarize(pc.Stores.Tasks, taskIDs)}), nil
	}
	pc.Set(MetaDelegations, all)
	return Continue(), nil
}

// resumeInFlight returns a Delegation for every task in taskIDs that is
// already Assigned or InProgress with a live assigned agent but has not
// yet been marked Completed, in creation order. These are tasks a prior,
// now-retried attempt of this same stage invocation handed to an
// implementor without reaching a result.
func (s CrafterExecutionStage) resumeInFlight(pc *Context, taskIDs []string) []coordinator.Delegation {
	var out []coordinator.Delegation
	for _, id := range taskIDs {
		t, err := pc.Stores.Tasks.Get(id)
		if err != nil {
			continue
		}
		if t.AssignedAgentID == "" {
			continue
		}
		if t.Status != domain.TaskAssigned && t.Status != domain.TaskInProgress {
			continue
		}
		out = append(out, coordinator.Delegation{AgentID: t.AssignedAgentID, TaskID: t.ID})
	}
	return out
}

func (s CrafterExecutionStage) runSequential(ctx context.Context, pc *Context, delegations []coordinator.Delegation) error {
	for _, d := range delegations {
		if err := pc.EnsureActive(ctx); err != nil {
			return err
		}
		if err := s.runDelegation(ctx, pc, d); err != nil {
			return err
		}
	}
	return nil
}

func (s CrafterExecutionStage) runParallel(ctx context.Context, pc *Context, delegations []coordinator.Delegation) error {
	var (
		wg      sync.WaitGroup
		mu      sync.Mutex
		firstErr error
	)
	for _, d := range delegations {
		wg.Add(1)
		go func(d coordinator.Delegation) {
			defer wg.Done()
			err := s.runDelegation(ctx, pc, d)
			if err == nil {
				return
			}
			mu.Lock()
			if firstErr == nil {
				firstErr = err
			}
			mu.Unlock()
		}(d)
	}
	wg.Wait()
	return firstErr
}

// runDelegation runs one Implementor agent to completion and reconciles its
// result into the coordinator, unless the agent already reported itself via
// the native report_to_parent path (spec.md §4.6).
func (s CrafterExecutionStage) runDelegation(ctx context.Context, pc *Context, d coordinator.Delegation) error {
	prompt, err := pc.Coordinator.BuildAgentContext(d.AgentID)
	if err != nil {
		return err
	}

	provider, err := selectProvider(pc, domain.RoleImplementor)
	if err != nil {
		return err
	}

	pc.NotifyPhase(PhaseEvent{Kind: PhaseCrafterRunning, AgentID: d.AgentID, TaskID: d.TaskID})

	sink := pc.ChunkSink
	if sink == nil {
		sink = func(string, agentprovider.StreamChunk) {}
	}
	text, runErr := provider.RunStreaming(ctx, domain.RoleImplementor, d.AgentID, prompt, sink)
	if runErr != nil {
		return runErr
	}

	agent, err := pc.Stores.Agents.Get(d.AgentID)
	if err != nil {
		return err
	}
	if agent.Status != domain.AgentCompleted {
		report, parseErr := pc.ReportParser.Parse(d.AgentID, d.TaskID, text)
		if parseErr != nil {
			report = SynthesizeFailureReport(d.AgentID, d.TaskID, text)
			sink(d.AgentID, agentprovider.ErrorChunk(parseErr.Error(), false))
		}
		if err := pc.Coordinator.ReportCompletion(ctx, report); err != nil {
			return err
		}
	}

	if err := provider.Cleanup(d.AgentID); err != nil {
		return err
	}
	pc.NotifyPhase(PhaseEvent{Kind: PhaseCrafterCompleted, AgentID: d.AgentID, TaskID: d.TaskID})
	return nil
}
