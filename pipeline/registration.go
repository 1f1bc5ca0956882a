package pipeline

import (
	"context"

	"github.com/goa-design/agentswarm/domain"
	"github.com/goa-design/agentswarm/taskparser"
)

// TaskRegistrationStage uses the pluggable task parser to extract
// structured task blocks from MetaPlanOutput, validates the resulting
// dependency DAG, stores the tasks, and writes their ids to MetaTaskIDs
// (spec.md §4.7). An empty plan output (spec.md S4: "planner returns no
// tasks") is not an error here: it simply yields an empty MetaTaskIDs,
// which CrafterExecutionStage turns into the NoTasks outcome.
type TaskRegistrationStage struct {
	Parser taskparser.Parser // defaults to taskparser.DefaultParser{} when nil
}

// Name implements Stage.
func (TaskRegistrationStage) Name() string { return "task-registration" }

// Description implements Stage.
func (TaskRegistrationStage) Description() string {
	return "parses structured task blocks out of the plan output, validates the DAG, and stores them"
}

// RetryPolicy implements Stage: parsing is deterministic, so a single
// attempt suffices (spec.md §4.7 leaves this stage's policy unstated;
// single-attempt matches Planning's own default for non-provider work).
func (TaskRegistrationStage) RetryPolicy() RetryPolicy { return RetryPolicy{MaxAttempts: 1} }

// Execute implements Stage.
func (s TaskRegistrationStage) Execute(ctx context.Context, pc *Context) (StageResult, error) {
	if err := pc.EnsureActive(ctx); err != nil {
		return StageResult{}, err
	}

	parser := s.Parser
	if parser == nil {
		parser = taskparser.DefaultParser{}
	}

	planOutput := pc.GetString(MetaPlanOutput)
	parsed, err := parser.Parse(planOutput)
	if err != nil {
		return StageResult{}, &ErrArgument{Message: err.Error()}
	}
	if len(parsed) == 0 {
		pc.Set(MetaTaskIDs, []string{})
		pc.NotifyPhase(PhaseEvent{Kind: PhaseTasksRegistered, Count: 0})
		return Continue(), nil
	}

	if err := taskparser.ValidateDAG(parsed); err != nil {
		return StageResult{}, &ErrArgument{Message: err.Error()}
	}

	titleToID := make(map[string]string, len(parsed))
	ids := make([]string, 0, len(parsed))
	for _, pt := range parsed {
		dependsOn := make([]string, 0, len(pt.Dependencies))
		for _, title := range pt.Dependencies {
			if id, ok := titleToID[title]; ok {
				dependsOn = append(dependsOn, id)
			}
		}
		task, err := pc.Stores.Tasks.Create(ctx, domain.Task{
			WorkspaceID:       pc.Workspace,
			Title:             pt.Title,
			Objective:         pt.Objective,
			Scope:             pt.Scope,
			DefinitionOfDone:  pt.DefinitionOfDone,
			VerificationHints: pt.VerificationHints,
			DependsOn:         dependsOn,
		})
		if err != nil {
			return StageResult{}, err
		}
		titleToID[pt.Title] = task.ID
		ids = append(ids, task.ID)
	}

	pc.Set(MetaTaskIDs, ids)
	pc.NotifyPhase(PhaseEvent{Kind: PhaseTasksRegistered, Count: len(ids)})
	return Continue(), nil
}
