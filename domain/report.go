package domain

// CompletionReport is produced when an agent finishes (spec.md §3). It is
// persisted into the task's result and emitted as a critical AgentCompleted
// event.
type CompletionReport struct {
	ReportingAgentID string
	TaskID           string
	// Summary is a 1-3 sentence human-readable summary of the work done.
	Summary string
	// ModifiedFiles lists files touched while completing the task; may be
	// empty.
	ModifiedFiles []string
	Success       bool
}
