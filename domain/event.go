package domain

import "time"

// EventKind enumerates the domain event variants (spec.md §3). All kinds
// are critical (retained for replay by the event bus) except
// EventMessageReceived.
type EventKind string

const (
	EventAgentCreated       EventKind = "agent_created"
	EventAgentStatusChanged EventKind = "agent_status_changed"
	EventAgentCompleted     EventKind = "agent_completed"
	EventTaskDelegated      EventKind = "task_delegated"
	EventTaskStatusChanged  EventKind = "task_status_changed"
	EventMessageReceived    EventKind = "message_received"
)

// Event is a tagged-variant domain event. Exactly the fields relevant to
// Kind are populated; the rest are left zero. This mirrors the teacher's
// preference for a closed, flat event shape over runtime polymorphism
// (spec.md §9 "Static dispatch over runtime polymorphism").
type Event struct {
	Kind      EventKind
	Timestamp time.Time

	// AgentCreated, AgentStatusChanged
	AgentID     string
	AgentStatus AgentStatus

	// AgentCompleted
	Report CompletionReport

	// TaskDelegated
	DelegatedAgentID string
	TaskID           string

	// TaskStatusChanged
	NewTaskStatus TaskStatus

	// MessageReceived
	Message Message
}

// Critical reports whether the event must be retained in the bounded replay
// log (spec.md §4.2). Every kind except MessageReceived is critical.
func (e Event) Critical() bool { return e.Kind != EventMessageReceived }
