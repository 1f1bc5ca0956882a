// Package system implements the observer-and-command facade from spec.md
// §6: a uniform-result command surface (createAgent, delegate,
// messageAgent, reportToParent, wakeOrCreateTaskAgent,
// sendMessageToTaskAgent, subscribeToEvents, unsubscribeFromEvents) plus
// the observer snapshots (listAgents, getAgent, listTasks, getTask,
// getConversation, getAgentStatus, getAgentSummary, circuitBreakerMetrics)
// that an external shell (CLI, IDE extension, web server) drives instead of
// reaching into the stores/coordinator/bus directly.
//
// Grounded on the teacher's runtime.Runtime
// (runtime/agent/runtime/runtime.go): a single struct holding the
// subsystem handles behind a mutex, exposing thread-safe, validated public
// methods as the one supported entry point, rather than letting callers
// touch the subsystems directly the way cmd/demo does for illustration.
// AgentSummary is grounded on the coordination.AgentSummary shape retrieved
// from the example pack's dlorenc-multiclaude coordinator.
package system

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/google/uuid"

	"github.com/goa-design/agentswarm/coordinator"
	"github.com/goa-design/agentswarm/domain"
	"github.com/goa-design/agentswarm/eventbus"
	"github.com/goa-design/agentswarm/resilience"
	"github.com/goa-design/agentswarm/router"
	"github.com/goa-design/agentswarm/store"
)

// Result is the uniform envelope every command returns (spec.md §6: "Each
// returns a uniform result {success, data | error}").
type Result struct {
	Success bool
	Data    any
	Error   string
}

func ok(data any) Result { return Result{Success: true, Data: data} }

func fail(err error) Result { return Result{Success: false, Error: err.Error()} }

// AgentSummary is a brief, UI-facing view of an agent plus its currently
// assigned task, if any (spec.md §6's getAgentSummary).
type AgentSummary struct {
	AgentID   string
	Name      string
	Role      domain.Role
	Status    domain.AgentStatus
	TaskID    string
	TaskTitle string
}

// System is the validated command-and-observer facade described by spec.md
// §6.
type System struct {
	stores      *store.Stores
	bus         *eventbus.Bus
	coordinator *coordinator.Coordinator
	router      *router.Router
	breakers    *resilience.Registry
	workspaceID string

	mu   sync.Mutex
	subs map[string]eventbus.Subscription
}

// New constructs a System bound to one workspace's already-wired
// subsystems (the same ones cmd/demo assembles by hand).
func New(stores *store.Stores, bus *eventbus.Bus, coord *coordinator.Coordinator, rt *router.Router, breakers *resilience.Registry, workspaceID string) *System {
	return &System{
		stores:      stores,
		bus:         bus,
		coordinator: coord,
		router:      rt,
		breakers:    breakers,
		workspaceID: workspaceID,
		subs:        make(map[string]eventbus.Subscription),
	}
}

func nonEmpty(field, value string) error {
	if value == "" {
		return fmt.Errorf("system: %s must not be empty", field)
	}
	return nil
}

func validRole(role domain.Role) error {
	switch role {
	case domain.RoleCoordinator, domain.RoleImplementor, domain.RoleVerifier:
		return nil
	default:
		return fmt.Errorf("system: invalid role %q", role)
	}
}

// validModelTier allows the zero value (no preference expressed).
func validModelTier(tier domain.ModelTier) error {
	switch tier {
	case "", domain.ModelTierSmart, domain.ModelTierFast:
		return nil
	default:
		return fmt.Errorf("system: invalid model tier %q", tier)
	}
}

func (s *System) agentExists(id string) (domain.Agent, error) {
	a, err := s.stores.Agents.Get(id)
	if err != nil {
		return domain.Agent{}, fmt.Errorf("system: agent %q not found: %w", id, err)
	}
	return a, nil
}

func (s *System) taskExists(id string) (domain.Task, error) {
	t, err := s.stores.Tasks.Get(id)
	if err != nil {
		return domain.Task{}, fmt.Errorf("system: task %q not found: %w", id, err)
	}
	return t, nil
}

// CreateAgent validates role/model-tier and optional parent referential
// integrity, then mints a new Agent (spec.md §6's createAgent command).
func (s *System) CreateAgent(ctx context.Context, role domain.Role, name string, preferredModel domain.ModelTier, parentID string) Result {
	if err := validRole(role); err != nil {
		return fail(err)
	}
	if err := validModelTier(preferredModel); err != nil {
		return fail(err)
	}
	if parentID != "" {
		if _, err := s.agentExists(parentID); err != nil {
			return fail(err)
		}
	}
	agent, err := s.stores.Agents.Create(ctx, domain.Agent{
		WorkspaceID:    s.workspaceID,
		Role:           role,
		Name:           name,
		ParentID:       parentID,
		PreferredModel: preferredModel,
	})
	if err != nil {
		return fail(err)
	}
	return ok(agent)
}

// Delegate assigns taskID to agentID on behalf of callerAgentID, validating
// that all three ids exist before mutating the store (spec.md §6's
// delegate(agentId, taskId, callerAgentId)). Unlike
// coordinator.ExecuteNextWave's automatic wave computation, this is an
// explicit, caller-driven assignment.
func (s *System) Delegate(ctx context.Context, agentID, taskID, callerAgentID string) Result {
	if err := nonEmpty("agentId", agentID); err != nil {
		return fail(err)
	}
	if err := nonEmpty("taskId", taskID); err != nil {
		return fail(err)
	}
	if err := nonEmpty("callerAgentId", callerAgentID); err != nil {
		return fail(err)
	}
	if _, err := s.agentExists(callerAgentID); err != nil {
		return fail(err)
	}
	if _, err := s.agentExists(agentID); err != nil {
		return fail(err)
	}
	if _, err := s.taskExists(taskID); err != nil {
		return fail(err)
	}

	task, err := s.stores.Tasks.AssignAgent(ctx, taskID, agentID)
	if err != nil {
		return fail(err)
	}
	if task, err = s.stores.Tasks.UpdateStatus(ctx, taskID, domain.TaskInProgress); err != nil {
		return fail(err)
	}
	s.bus.Publish(ctx, domain.Event{
		Kind:             domain.EventTaskDelegated,
		DelegatedAgentID: agentID,
		TaskID:           taskID,
	})
	return ok(task)
}

// MessageAgent appends text to to's conversation, attributed to from, and
// emits the (ephemeral) MessageReceived event (spec.md §6's
// messageAgent(from, to, text)). from is free-form: it may name a real
// agent, or the literal sentinel "user" for a human-originated message;
// only to's referential integrity is enforced, since every message must
// land on a real, addressable agent.
func (s *System) MessageAgent(ctx context.Context, from, to, text string) Result {
	if err := nonEmpty("from", from); err != nil {
		return fail(err)
	}
	if err := nonEmpty("to", to); err != nil {
		return fail(err)
	}
	if _, err := s.agentExists(to); err != nil {
		return fail(err)
	}

	role := domain.MessageInfo
	content := fmt.Sprintf("[from %s] %s", from, text)
	if from == "user" {
		role = domain.MessageUser
		content = text
	}
	conv, err := s.stores.Conversations.Append(ctx, to, domain.Message{Role: role, Content: content})
	if err != nil {
		return fail(err)
	}
	return ok(conv)
}

// ReportToParent implements the native report_to_parent command path
// (spec.md §4.6, §6): agentID must match report.ReportingAgentID (an empty
// ReportingAgentID defaults to agentID), and both the agent and its task
// must exist before the coordinator records the report.
func (s *System) ReportToParent(ctx context.Context, agentID string, report domain.CompletionReport) Result {
	if err := nonEmpty("agentId", agentID); err != nil {
		return fail(err)
	}
	if report.ReportingAgentID == "" {
		report.ReportingAgentID = agentID
	}
	if report.ReportingAgentID != agentID {
		return fail(fmt.Errorf("system: report.ReportingAgentID %q does not match agentId %q", report.ReportingAgentID, agentID))
	}
	if err := nonEmpty("taskId", report.TaskID); err != nil {
		return fail(err)
	}
	if _, err := s.agentExists(agentID); err != nil {
		return fail(err)
	}
	if _, err := s.taskExists(report.TaskID); err != nil {
		return fail(err)
	}
	if err := s.coordinator.ReportCompletion(ctx, report); err != nil {
		return fail(err)
	}
	return ok(report)
}

// WakeOrCreateTaskAgent returns the agent currently assigned to taskID,
// waking it (resetting status to Active) if it is idle/finished, or mints a
// fresh Implementor agent and assigns it to taskID if none exists yet
// (spec.md §6's wakeOrCreateTaskAgent). When contextMessage is non-empty it
// is delivered via MessageAgent from callerID once the agent is resolved.
func (s *System) WakeOrCreateTaskAgent(ctx context.Context, taskID, contextMessage, callerID string, preferredModel domain.ModelTier) Result {
	if err := nonEmpty("taskId", taskID); err != nil {
		return fail(err)
	}
	if err := nonEmpty("callerId", callerID); err != nil {
		return fail(err)
	}
	if err := validModelTier(preferredModel); err != nil {
		return fail(err)
	}
	if _, err := s.agentExists(callerID); err != nil {
		return fail(err)
	}
	task, err := s.taskExists(taskID)
	if err != nil {
		return fail(err)
	}

	var agentID string
	if task.AssignedAgentID != "" {
		agent, err := s.agentExists(task.AssignedAgentID)
		if err != nil {
			return fail(err)
		}
		agentID = agent.ID
		if agent.Status != domain.AgentActive {
			if _, err := s.stores.Agents.UpdateStatus(ctx, agentID, domain.AgentActive); err != nil {
				return fail(err)
			}
		}
	} else {
		agent, err := s.stores.Agents.Create(ctx, domain.Agent{
			WorkspaceID:    s.workspaceID,
			Role:           domain.RoleImplementor,
			Name:           fmt.Sprintf("implementor-%s", task.ID),
			PreferredModel: preferredModel,
		})
		if err != nil {
			return fail(err)
		}
		if _, err := s.stores.Tasks.AssignAgent(ctx, taskID, agent.ID); err != nil {
			return fail(err)
		}
		agentID = agent.ID
	}

	if contextMessage != "" {
		if res := s.MessageAgent(ctx, callerID, agentID, contextMessage); !res.Success {
			return res
		}
	}
	return ok(agentID)
}

// SendMessageToTaskAgent looks up taskID's assigned agent and forwards
// message to it on callerID's behalf (spec.md §6's
// sendMessageToTaskAgent(taskId, message, callerId)). The task must already
// have an assigned agent; unlike WakeOrCreateTaskAgent this command never
// creates one.
func (s *System) SendMessageToTaskAgent(ctx context.Context, taskID, message, callerID string) Result {
	if err := nonEmpty("taskId", taskID); err != nil {
		return fail(err)
	}
	if err := nonEmpty("message", message); err != nil {
		return fail(err)
	}
	if err := nonEmpty("callerId", callerID); err != nil {
		return fail(err)
	}
	if _, err := s.agentExists(callerID); err != nil {
		return fail(err)
	}
	task, err := s.taskExists(taskID)
	if err != nil {
		return fail(err)
	}
	if task.AssignedAgentID == "" {
		return fail(fmt.Errorf("system: task %q has no assigned agent", taskID))
	}
	return s.MessageAgent(ctx, callerID, task.AssignedAgentID, message)
}

// SubscribeToEvents registers a filtered subscription to the domain event
// bus (spec.md §6's subscribeToEvents(agentId, agentName, types,
// excludeSelf)): when types is non-empty only matching kinds are delivered;
// excludeSelf additionally drops events whose AgentID equals agentId. The
// returned Result's Data is the opaque subscription id later passed to
// UnsubscribeFromEvents.
func (s *System) SubscribeToEvents(agentID, agentName string, types []domain.EventKind, excludeSelf bool, handler func(domain.Event)) Result {
	if err := nonEmpty("agentName", agentName); err != nil {
		return fail(err)
	}
	if handler == nil {
		return fail(errors.New("system: subscribeToEvents requires a non-nil handler"))
	}

	wanted := make(map[domain.EventKind]struct{}, len(types))
	for _, k := range types {
		wanted[k] = struct{}{}
	}

	sub := s.bus.Register(eventbus.SubscriberFunc(func(_ context.Context, event domain.Event) error {
		if len(wanted) > 0 {
			if _, ok := wanted[event.Kind]; !ok {
				return nil
			}
		}
		if excludeSelf && agentID != "" && event.AgentID == agentID {
			return nil
		}
		handler(event)
		return nil
	}))

	id := uuid.NewString()
	s.mu.Lock()
	s.subs[id] = sub
	s.mu.Unlock()
	return ok(id)
}

// UnsubscribeFromEvents closes and forgets the subscription named by
// subscriptionID (spec.md §6's unsubscribeFromEvents).
func (s *System) UnsubscribeFromEvents(subscriptionID string) Result {
	if err := nonEmpty("subscriptionId", subscriptionID); err != nil {
		return fail(err)
	}
	s.mu.Lock()
	sub, ok := s.subs[subscriptionID]
	if ok {
		delete(s.subs, subscriptionID)
	}
	s.mu.Unlock()
	if !ok {
		return fail(fmt.Errorf("system: subscription %q not found", subscriptionID))
	}
	if err := sub.Close(); err != nil {
		return fail(err)
	}
	return ok(nil)
}

// ListAgents returns a creation-ordered snapshot of every agent in
// workspaceID (spec.md §6).
func (s *System) ListAgents(workspaceID string) []domain.Agent {
	return s.stores.Agents.List(workspaceID)
}

// GetAgent returns the agent record for id (spec.md §6).
func (s *System) GetAgent(id string) (domain.Agent, error) {
	return s.stores.Agents.Get(id)
}

// ListTasks returns a creation-ordered snapshot of every task in
// workspaceID (spec.md §6).
func (s *System) ListTasks(workspaceID string) []domain.Task {
	return s.stores.Tasks.List(workspaceID)
}

// GetTask returns the task record for id (spec.md §6).
func (s *System) GetTask(id string) (domain.Task, error) {
	return s.stores.Tasks.Get(id)
}

// GetConversation returns the last lastN messages of agentID's
// conversation, or every message when lastN <= 0 (spec.md §6's
// getConversation(agentId, lastN?)).
func (s *System) GetConversation(agentID string, lastN int) []domain.Message {
	return s.stores.Conversations.Tail(agentID, lastN)
}

// GetAgentStatus returns agentID's current status (spec.md §6).
func (s *System) GetAgentStatus(agentID string) (domain.AgentStatus, error) {
	agent, err := s.stores.Agents.Get(agentID)
	if err != nil {
		return "", err
	}
	return agent.Status, nil
}

// GetAgentSummary composes agentID's identity and status with the title of
// its currently assigned task, if any (spec.md §6's getAgentSummary).
func (s *System) GetAgentSummary(agentID string) (AgentSummary, error) {
	agent, err := s.stores.Agents.Get(agentID)
	if err != nil {
		return AgentSummary{}, err
	}
	summary := AgentSummary{
		AgentID: agent.ID,
		Name:    agent.Name,
		Role:    agent.Role,
		Status:  agent.Status,
	}
	for _, t := range s.stores.Tasks.List(agent.WorkspaceID) {
		if t.AssignedAgentID == agent.ID && (t.Status == domain.TaskAssigned || t.Status == domain.TaskInProgress) {
			summary.TaskID = t.ID
			summary.TaskTitle = t.Title
			break
		}
	}
	return summary, nil
}

// CircuitBreakerMetrics returns a snapshot of every provider breaker's
// metrics, keyed by provider name (spec.md §6).
func (s *System) CircuitBreakerMetrics() map[string]resilience.BreakerMetrics {
	if s.breakers == nil {
		return nil
	}
	return s.breakers.All()
}
