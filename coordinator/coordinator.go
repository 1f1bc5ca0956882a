package coordinator

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/goa-design/agentswarm/domain"
	"github.com/goa-design/agentswarm/eventbus"
	"github.com/goa-design/agentswarm/store"
)

// Delegation pairs a freshly (or previously) assigned Implementor agent
// with the task it is now working (spec.md §4.6).
type Delegation struct {
	AgentID string
	TaskID  string
}

// Coordinator owns the coordination state machine and the mutation policy
// on the stores (spec.md §4.6).
type Coordinator struct {
	stores      *store.Stores
	bus         *eventbus.Bus
	state       *CoordinationState
	workspaceID string
}

// New constructs a Coordinator for one workspace.
func New(stores *store.Stores, bus *eventbus.Bus, workspaceID string) *Coordinator {
	return &Coordinator{stores: stores, bus: bus, state: NewCoordinationState(), workspaceID: workspaceID}
}

// State returns the coordination state machine.
func (c *Coordinator) State() *CoordinationState { return c.state }

// StartRun transitions Idle -> Planning (spec.md §4.6).
func (c *Coordinator) StartRun() error {
	return c.state.Transition(PhasePlanning)
}

// PlanReady transitions Planning -> Ready, once the planner has returned
// output and tasks have been registered.
func (c *Coordinator) PlanReady() error {
	return c.state.Transition(PhaseReady)
}

// ExecuteNextWave selects every Ready task whose dependencies are
// Completed, assigns (creating or reusing) an Implementor agent to each,
// transitions each task Assigned -> InProgress, and emits TaskDelegated.
// Ties are broken by task creation order, which store.TaskStore.Ready
// already guarantees. The Ready -> Executing (or NeedsFix -> Executing)
// phase transition only happens when the resulting delegation list is
// non-empty, and is skipped (rather than re-attempted) when a caller
// drives several internal waves back to back while already Executing
// (spec.md §4.6).
func (c *Coordinator) ExecuteNextWave(ctx context.Context) ([]Delegation, error) {
	ready := c.stores.Tasks.Ready(c.workspaceID)
	if len(ready) == 0 {
		return nil, nil
	}

	var delegations []Delegation
	for _, t := range ready {
		agentID := t.AssignedAgentID
		if agentID == "" {
			agent, err := c.stores.Agents.Create(ctx, domain.Agent{
				WorkspaceID:    c.workspaceID,
				Role:           domain.RoleImplementor,
				Name:           fmt.Sprintf("implementor-%s", t.ID),
				PreferredModel: domain.ModelTierFast,
			})
			if err != nil {
				return nil, err
			}
			agentID = agent.ID
		} else if _, err := c.stores.Agents.UpdateStatus(ctx, agentID, domain.AgentActive); err != nil {
			// Reusing an agent from a prior, now-repeated wave (spec.md
			// "create (or reuse) an Implementor agent"): its status is
			// still Completed from that wave, and runDelegation reads
			// agent status to tell whether this run already self-reported
			// via report_to_parent. Reset it to Active so the upcoming run
			// is not mistaken for one that already reported.
			return nil, err
		}
		if _, err := c.stores.Tasks.AssignAgent(ctx, t.ID, agentID); err != nil {
			return nil, err
		}
		if _, err := c.stores.Tasks.UpdateStatus(ctx, t.ID, domain.TaskInProgress); err != nil {
			return nil, err
		}
		c.bus.Publish(ctx, domain.Event{
			Kind:             domain.EventTaskDelegated,
			Timestamp:        time.Now(),
			DelegatedAgentID: agentID,
			TaskID:           t.ID,
		})
		delegations = append(delegations, Delegation{AgentID: agentID, TaskID: t.ID})
	}

	if c.state.Phase() != PhaseExecuting {
		if err := c.state.Transition(PhaseExecuting); err != nil {
			return nil, err
		}
	}
	return delegations, nil
}

// ErrNoAssignedTask is returned by BuildAgentContext when agentID has no
// currently assigned task.
var ErrNoAssignedTask = errors.New("coordinator: agent has no assigned task")

// BuildAgentContext returns a self-contained prompt for agentID: the
// task's objective/scope/definition-of-done/verification hints, summaries
// of dependency tasks whose result is non-empty, and an identity block the
// caller must inject unchanged (spec.md §4.6).
func (c *Coordinator) BuildAgentContext(agentID string) (string, error) {
	task, err := c.findAssignedTask(agentID)
	if err != nil {
		return "", err
	}

	var sb strings.Builder
	fmt.Fprintf(&sb, "## Objective\n%s\n\n", task.Objective)
	if len(task.Scope) > 0 {
		sb.WriteString("## Scope\n")
		for _, s := range task.Scope {
			fmt.Fprintf(&sb, "- %s\n", s)
		}
		sb.WriteString("\n")
	}
	if len(task.DefinitionOfDone) > 0 {
		sb.WriteString("## Definition of Done\n")
		for _, d := range task.DefinitionOfDone {
			fmt.Fprintf(&sb, "- %s\n", d)
		}
		sb.WriteString("\n")
	}
	if len(task.VerificationHints) > 0 {
		sb.WriteString("## Verification\n")
		for _, v := range task.VerificationHints {
			fmt.Fprintf(&sb, "- %s\n", v)
		}
		sb.WriteString("\n")
	}
	if deps := c.dependencySummaries(task.DependsOn); deps != "" {
		sb.WriteString("## Dependency results\n")
		sb.WriteString(deps)
		sb.WriteString("\n")
	}
	fmt.Fprintf(&sb, "## Identity\nagent id: %s\nassigned task id: %s\n", agentID, task.ID)
	return sb.String(), nil
}

func (c *Coordinator) findAssignedTask(agentID string) (domain.Task, error) {
	for _, t := range c.stores.Tasks.List(c.workspaceID) {
		if t.AssignedAgentID == agentID && (t.Status == domain.TaskAssigned || t.Status == domain.TaskInProgress) {
			return t, nil
		}
	}
	return domain.Task{}, ErrNoAssignedTask
}

// dependencySummaries returns a bullet list of result summaries for every
// dependency id whose task result is non-empty (spec.md §4.6: "only tasks
// whose result is non-empty").
func (c *Coordinator) dependencySummaries(dependsOn []string) string {
	if len(dependsOn) == 0 {
		return ""
	}
	byID := make(map[string]domain.Task, len(dependsOn))
	for _, t := range c.stores.Tasks.List(c.workspaceID) {
		byID[t.ID] = t
	}
	var sb strings.Builder
	for _, id := range dependsOn {
		t, ok := byID[id]
		if !ok || t.Result == "" {
			continue
		}
		fmt.Fprintf(&sb, "- %s: %s\n", t.Title, t.Result)
	}
	return sb.String()
}

// ReportCompletion implements the native report_to_parent path (spec.md
// §4.6): it records the report as the task's result, marks the task
// Completed, marks the agent Completed, and emits the corresponding
// events. The pipeline is responsible for deciding whether this or the
// parsed-text path applies.
func (c *Coordinator) ReportCompletion(ctx context.Context, report domain.CompletionReport) error {
	if _, err := c.stores.Tasks.AppendResult(report.TaskID, report.Summary); err != nil {
		return err
	}
	if _, err := c.stores.Tasks.UpdateStatus(ctx, report.TaskID, domain.TaskCompleted); err != nil {
		return err
	}
	if _, err := c.stores.Agents.UpdateStatus(ctx, report.ReportingAgentID, domain.AgentCompleted); err != nil {
		return err
	}
	c.bus.Publish(ctx, domain.Event{
		Kind:      domain.EventAgentCompleted,
		Timestamp: time.Now(),
		AgentID:   report.ReportingAgentID,
		Report:    report,
	})
	return nil
}

// WaveComplete reports whether every task in the current wave is
// Completed, the precondition for the Executing -> Verifying transition
// (spec.md §4.6).
func (c *Coordinator) WaveComplete(taskIDs []string) bool {
	for _, id := range taskIDs {
		t, err := c.stores.Tasks.Get(id)
		if err != nil || t.Status != domain.TaskCompleted {
			return false
		}
	}
	return true
}

// ApplyVerdict sets verdict on every task in taskIDs and transitions the
// coordination phase: NeedsFix if any task carries VerdictNeedsFix (and the
// iteration budget is not exhausted, which the caller enforces), Completed
// if every task is Approved (spec.md §4.6).
func (c *Coordinator) ApplyVerdict(ctx context.Context, taskIDs []string, verdict domain.Verdict) error {
	for _, id := range taskIDs {
		if _, err := c.stores.Tasks.SetVerdict(ctx, id, verdict); err != nil {
			return err
		}
	}
	if verdict == domain.VerdictNeedsFix {
		return c.state.Transition(PhaseNeedsFix)
	}
	return c.state.Transition(PhaseCompleted)
}

// BeginVerifying transitions Executing -> Verifying.
func (c *Coordinator) BeginVerifying() error {
	return c.state.Transition(PhaseVerifying)
}

// Fail transitions to Failed from any phase.
func (c *Coordinator) Fail() {
	_ = c.state.Transition(PhaseFailed)
}
