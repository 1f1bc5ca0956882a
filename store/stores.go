package store

import "github.com/goa-design/agentswarm/eventbus"

// Stores bundles the workspace-scoped stores and wires the cross-store
// checks (agent deletion against in-flight tasks, task assignment against
// agent existence) that would otherwise require an import cycle.
type Stores struct {
	Workspaces    *WorkspaceStore
	Agents        *AgentStore
	Tasks         *TaskStore
	Conversations *ConversationStore
}

// NewStores constructs a fully wired set of stores publishing to bus.
func NewStores(bus *eventbus.Bus) *Stores {
	agents := NewAgentStore(bus)
	tasks := NewTaskStore(bus)
	agents.SetInFlightChecker(tasks)
	tasks.SetAgentExistence(agents)
	return &Stores{
		Workspaces:    NewWorkspaceStore(),
		Agents:        agents,
		Tasks:         tasks,
		Conversations: NewConversationStore(bus),
	}
}
