package pipeline

import "github.com/goa-design/agentswarm/domain"

// OutcomeKind is the boundary-level result the caller of a pipeline run
// sees (spec.md §7 "At the boundary").
type OutcomeKind string

const (
	OutcomeSuccess        OutcomeKind = "success"
	OutcomeNoTasks        OutcomeKind = "no_tasks"
	OutcomeMaxWavesReached OutcomeKind = "max_waves_reached"
	OutcomeFailed          OutcomeKind = "failed"
	OutcomeCancelled       OutcomeKind = "cancelled"
)

// TaskSummary is the per-task projection returned to the caller once a run
// ends (spec.md §8 property 1: "every task id ... appears exactly once in
// the final task summaries").
type TaskSummary struct {
	TaskID  string
	Title   string
	Status  domain.TaskStatus
	Verdict domain.Verdict
	Result  string
}

// Outcome is the terminal result of one pipeline run.
type Outcome struct {
	Kind OutcomeKind

	// Success, MaxWavesReached
	TaskSummaries []TaskSummary

	// NoTasks
	PlanOutput string

	// MaxWavesReached
	Waves int

	// Failed
	StageName  string
	Category   string
	Message    string
	Retries    int
	Fallback   bool
}

// summarize builds the task summary list for every id in taskIDs, in the
// order given.
func summarize(stores interface {
	Get(id string) (domain.Task, error)
}, taskIDs []string) []TaskSummary {
	out := make([]TaskSummary, 0, len(taskIDs))
	for _, id := range taskIDs {
		t, err := stores.Get(id)
		if err != nil {
			continue
		}
		out = append(out, TaskSummary{
			TaskID:  t.ID,
			Title:   t.Title,
			Status:  t.Status,
			Verdict: t.Verdict,
			Result:  t.Result,
		})
	}
	return out
}
