package domain

import "time"

// TaskStatus is the lifecycle status of a Task (spec.md §3).
type TaskStatus string

const (
	TaskPending    TaskStatus = "pending"
	TaskReady      TaskStatus = "ready"
	TaskAssigned   TaskStatus = "assigned"
	TaskInProgress TaskStatus = "in_progress"
	TaskCompleted  TaskStatus = "completed"
	TaskFailed     TaskStatus = "failed"
	TaskBlocked    TaskStatus = "blocked"
)

// Verdict is the current verification outcome of a Task (spec.md §3).
type Verdict string

const (
	VerdictUnverified Verdict = "unverified"
	VerdictApproved   Verdict = "approved"
	VerdictNeedsFix   Verdict = "needs_fix"
)

// resultCap bounds the accumulated result text carried on a Task (spec.md
// §3: "accumulated result text (capped)").
const resultCap = 4000

// Task is one unit of delegated work (spec.md §3). A task is ready iff
// every dependency id in DependsOn resolves to a Task whose Status is
// TaskCompleted; TaskStore.Ready computes this.
type Task struct {
	ID                string
	WorkspaceID       string
	Title             string
	Objective         string
	Scope             []string
	DefinitionOfDone  []string
	VerificationHints []string
	Status            TaskStatus
	Verdict           Verdict
	DependsOn         []string
	AssignedAgentID   string // empty when unassigned
	Result            string
	CreatedAt         time.Time
	UpdatedAt         time.Time
}

// AppendResult appends text to t.Result, truncating the combined text to
// resultCap bytes so a verbose agent cannot grow a task's stored result
// without bound (spec.md §3 "accumulated result text (capped)").
func (t *Task) AppendResult(text string) {
	if text == "" {
		return
	}
	combined := text
	if t.Result != "" {
		combined = t.Result + "\n" + text
	}
	if len(combined) > resultCap {
		combined = combined[len(combined)-resultCap:]
	}
	t.Result = combined
}

// Clone returns an independent copy of t so stores never hand out mutable
// aliases to callers.
func (t Task) Clone() Task {
	cp := t
	cp.Scope = append([]string(nil), t.Scope...)
	cp.DefinitionOfDone = append([]string(nil), t.DefinitionOfDone...)
	cp.VerificationHints = append([]string(nil), t.VerificationHints...)
	cp.DependsOn = append([]string(nil), t.DependsOn...)
	return cp
}
