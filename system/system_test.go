package system_test

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/goa-design/agentswarm/coordinator"
	"github.com/goa-design/agentswarm/domain"
	"github.com/goa-design/agentswarm/eventbus"
	"github.com/goa-design/agentswarm/resilience"
	"github.com/goa-design/agentswarm/router"
	"github.com/goa-design/agentswarm/store"
	"github.com/goa-design/agentswarm/system"
)

func newFixture(t *testing.T) (*system.System, *store.Stores, string) {
	t.Helper()
	bus := eventbus.NewBus(32, 500)
	stores := store.NewStores(bus)
	ws := stores.Workspaces.Create()
	coord := coordinator.New(stores, bus, ws.ID)
	rt := router.New()
	breakers := resilience.NewRegistry(resilience.BreakerConfig{})
	return system.New(stores, bus, coord, rt, breakers, ws.ID), stores, ws.ID
}

func TestCreateAgentValidatesRoleAndModelTier(t *testing.T) {
	ctx := context.Background()
	sys, _, _ := newFixture(t)

	res := sys.CreateAgent(ctx, domain.Role("bogus"), "a", "", "")
	assert.False(t, res.Success)
	assert.Contains(t, res.Error, "invalid role")

	res = sys.CreateAgent(ctx, domain.RoleImplementor, "a", domain.ModelTier("bogus"), "")
	assert.False(t, res.Success)
	assert.Contains(t, res.Error, "invalid model tier")

	res = sys.CreateAgent(ctx, domain.RoleImplementor, "a", domain.ModelTierFast, "does-not-exist")
	assert.False(t, res.Success)
	assert.Contains(t, res.Error, "not found")
}

func TestCreateAgentSucceeds(t *testing.T) {
	ctx := context.Background()
	sys, stores, ws := newFixture(t)

	res := sys.CreateAgent(ctx, domain.RoleImplementor, "worker", domain.ModelTierFast, "")
	require.True(t, res.Success)
	agent, ok := res.Data.(domain.Agent)
	require.True(t, ok)
	assert.Equal(t, domain.RoleImplementor, agent.Role)

	listed := stores.Agents.List(ws)
	require.Len(t, listed, 1)
	assert.Equal(t, agent.ID, listed[0].ID)
}

func TestDelegateValidatesReferentialIntegrity(t *testing.T) {
	ctx := context.Background()
	sys, _, _ := newFixture(t)

	res := sys.Delegate(ctx, "", "task", "caller")
	assert.False(t, res.Success)

	res = sys.Delegate(ctx, "agent", "task", "missing-caller")
	assert.False(t, res.Success)
	assert.Contains(t, res.Error, "not found")
}

func TestDelegateAssignsTaskAndEmitsEvent(t *testing.T) {
	ctx := context.Background()
	sys, stores, ws := newFixture(t)

	callerRes := sys.CreateAgent(ctx, domain.RoleCoordinator, "caller", "", "")
	require.True(t, callerRes.Success)
	caller := callerRes.Data.(domain.Agent)

	implRes := sys.CreateAgent(ctx, domain.RoleImplementor, "impl", "", "")
	require.True(t, implRes.Success)
	impl := implRes.Data.(domain.Agent)

	task, err := stores.Tasks.Create(ctx, domain.Task{WorkspaceID: ws, Title: "t"})
	require.NoError(t, err)

	res := sys.Delegate(ctx, impl.ID, task.ID, caller.ID)
	require.True(t, res.Success)

	updated, err := stores.Tasks.Get(task.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.TaskInProgress, updated.Status)
	assert.Equal(t, impl.ID, updated.AssignedAgentID)
}

func TestMessageAgentRequiresExistingRecipient(t *testing.T) {
	ctx := context.Background()
	sys, _, _ := newFixture(t)

	res := sys.MessageAgent(ctx, "user", "does-not-exist", "hello")
	assert.False(t, res.Success)
	assert.Contains(t, res.Error, "not found")
}

func TestMessageAgentAppendsToConversation(t *testing.T) {
	ctx := context.Background()
	sys, stores, _ := newFixture(t)

	agentRes := sys.CreateAgent(ctx, domain.RoleImplementor, "impl", "", "")
	require.True(t, agentRes.Success)
	agent := agentRes.Data.(domain.Agent)

	res := sys.MessageAgent(ctx, "user", agent.ID, "hello there")
	require.True(t, res.Success)

	conv := stores.Conversations.Get(agent.ID)
	require.Len(t, conv.Messages, 1)
	assert.Equal(t, domain.MessageUser, conv.Messages[0].Role)
	assert.Equal(t, "hello there", conv.Messages[0].Content)

	res = sys.MessageAgent(ctx, "coordinator-1", agent.ID, "context from a peer")
	require.True(t, res.Success)
	conv = stores.Conversations.Get(agent.ID)
	require.Len(t, conv.Messages, 2)
	assert.Equal(t, domain.MessageInfo, conv.Messages[1].Role)
	assert.Contains(t, conv.Messages[1].Content, "coordinator-1")
}

func TestReportToParentValidatesAgentIDMatch(t *testing.T) {
	ctx := context.Background()
	sys, stores, ws := newFixture(t)

	agentRes := sys.CreateAgent(ctx, domain.RoleImplementor, "impl", "", "")
	require.True(t, agentRes.Success)
	agent := agentRes.Data.(domain.Agent)

	task, err := stores.Tasks.Create(ctx, domain.Task{WorkspaceID: ws, Title: "t"})
	require.NoError(t, err)

	res := sys.ReportToParent(ctx, agent.ID, domain.CompletionReport{
		ReportingAgentID: "someone-else",
		TaskID:           task.ID,
	})
	assert.False(t, res.Success)
	assert.Contains(t, res.Error, "does not match")
}

func TestReportToParentRecordsCompletion(t *testing.T) {
	ctx := context.Background()
	sys, stores, ws := newFixture(t)

	agentRes := sys.CreateAgent(ctx, domain.RoleImplementor, "impl", "", "")
	require.True(t, agentRes.Success)
	agent := agentRes.Data.(domain.Agent)

	task, err := stores.Tasks.Create(ctx, domain.Task{WorkspaceID: ws, Title: "t"})
	require.NoError(t, err)

	res := sys.ReportToParent(ctx, agent.ID, domain.CompletionReport{
		TaskID:  task.ID,
		Summary: "done",
		Success: true,
	})
	require.True(t, res.Success)

	updatedTask, err := stores.Tasks.Get(task.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.TaskCompleted, updatedTask.Status)

	updatedAgent, err := stores.Agents.Get(agent.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.AgentCompleted, updatedAgent.Status)
}

func TestWakeOrCreateTaskAgentCreatesWhenUnassigned(t *testing.T) {
	ctx := context.Background()
	sys, stores, ws := newFixture(t)

	callerRes := sys.CreateAgent(ctx, domain.RoleCoordinator, "caller", "", "")
	require.True(t, callerRes.Success)
	caller := callerRes.Data.(domain.Agent)

	task, err := stores.Tasks.Create(ctx, domain.Task{WorkspaceID: ws, Title: "t"})
	require.NoError(t, err)

	res := sys.WakeOrCreateTaskAgent(ctx, task.ID, "get started", caller.ID, domain.ModelTierSmart)
	require.True(t, res.Success)
	agentID, ok := res.Data.(string)
	require.True(t, ok)
	require.NotEmpty(t, agentID)

	updatedTask, err := stores.Tasks.Get(task.ID)
	require.NoError(t, err)
	assert.Equal(t, agentID, updatedTask.AssignedAgentID)

	conv := stores.Conversations.Get(agentID)
	require.Len(t, conv.Messages, 1)
	assert.Contains(t, conv.Messages[0].Content, "get started")
}

func TestWakeOrCreateTaskAgentWakesExistingIdleAgent(t *testing.T) {
	ctx := context.Background()
	sys, stores, ws := newFixture(t)

	callerRes := sys.CreateAgent(ctx, domain.RoleCoordinator, "caller", "", "")
	require.True(t, callerRes.Success)
	caller := callerRes.Data.(domain.Agent)

	implRes := sys.CreateAgent(ctx, domain.RoleImplementor, "impl", "", "")
	require.True(t, implRes.Success)
	impl := implRes.Data.(domain.Agent)
	_, err := stores.Agents.UpdateStatus(ctx, impl.ID, domain.AgentCompleted)
	require.NoError(t, err)

	task, err := stores.Tasks.Create(ctx, domain.Task{WorkspaceID: ws, Title: "t"})
	require.NoError(t, err)
	_, err = stores.Tasks.AssignAgent(ctx, task.ID, impl.ID)
	require.NoError(t, err)

	res := sys.WakeOrCreateTaskAgent(ctx, task.ID, "", caller.ID, "")
	require.True(t, res.Success)
	assert.Equal(t, impl.ID, res.Data.(string))

	woken, err := stores.Agents.Get(impl.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.AgentActive, woken.Status)
}

func TestSendMessageToTaskAgentRequiresAssignment(t *testing.T) {
	ctx := context.Background()
	sys, stores, ws := newFixture(t)

	callerRes := sys.CreateAgent(ctx, domain.RoleCoordinator, "caller", "", "")
	require.True(t, callerRes.Success)
	caller := callerRes.Data.(domain.Agent)

	task, err := stores.Tasks.Create(ctx, domain.Task{WorkspaceID: ws, Title: "t"})
	require.NoError(t, err)

	res := sys.SendMessageToTaskAgent(ctx, task.ID, "hi", caller.ID)
	assert.False(t, res.Success)
	assert.Contains(t, res.Error, "no assigned agent")
}

func TestSendMessageToTaskAgentForwardsToAssignedAgent(t *testing.T) {
	ctx := context.Background()
	sys, stores, ws := newFixture(t)

	callerRes := sys.CreateAgent(ctx, domain.RoleCoordinator, "caller", "", "")
	require.True(t, callerRes.Success)
	caller := callerRes.Data.(domain.Agent)

	implRes := sys.CreateAgent(ctx, domain.RoleImplementor, "impl", "", "")
	require.True(t, implRes.Success)
	impl := implRes.Data.(domain.Agent)

	task, err := stores.Tasks.Create(ctx, domain.Task{WorkspaceID: ws, Title: "t"})
	require.NoError(t, err)
	_, err = stores.Tasks.AssignAgent(ctx, task.ID, impl.ID)
	require.NoError(t, err)

	res := sys.SendMessageToTaskAgent(ctx, task.ID, "keep going", caller.ID)
	require.True(t, res.Success)

	conv := stores.Conversations.Get(impl.ID)
	require.Len(t, conv.Messages, 1)
	assert.Contains(t, conv.Messages[0].Content, "keep going")
}

func TestSubscribeAndUnsubscribeFromEvents(t *testing.T) {
	ctx := context.Background()
	sys, _, _ := newFixture(t)

	var mu sync.Mutex
	var received []domain.Event
	res := sys.SubscribeToEvents("", "observer", []domain.EventKind{domain.EventAgentCreated}, false, func(e domain.Event) {
		mu.Lock()
		received = append(received, e)
		mu.Unlock()
	})
	require.True(t, res.Success)
	subID := res.Data.(string)

	createRes := sys.CreateAgent(ctx, domain.RoleImplementor, "impl", "", "")
	require.True(t, createRes.Success)

	require.Eventually(t, func() bool {
		mu.Lock()
		defer mu.Unlock()
		return len(received) == 1
	}, time.Second, time.Millisecond)
	mu.Lock()
	assert.Equal(t, domain.EventAgentCreated, received[0].Kind)
	mu.Unlock()

	unsubRes := sys.UnsubscribeFromEvents(subID)
	assert.True(t, unsubRes.Success)

	againRes := sys.UnsubscribeFromEvents(subID)
	assert.False(t, againRes.Success)
}

func TestSubscribeToEventsExcludesSelf(t *testing.T) {
	ctx := context.Background()
	sys, _, _ := newFixture(t)

	observerRes := sys.CreateAgent(ctx, domain.RoleImplementor, "observer", "", "")
	require.True(t, observerRes.Success)
	observer := observerRes.Data.(domain.Agent)

	var mu sync.Mutex
	var received []domain.Event
	res := sys.SubscribeToEvents(observer.ID, "observer", []domain.EventKind{domain.EventMessageReceived}, true, func(e domain.Event) {
		mu.Lock()
		received = append(received, e)
		mu.Unlock()
	})
	require.True(t, res.Success)

	_ = sys.MessageAgent(ctx, "user", observer.ID, "message about myself")

	otherRes := sys.CreateAgent(ctx, domain.RoleImplementor, "other", "", "")
	require.True(t, otherRes.Success)
	other := otherRes.Data.(domain.Agent)
	_ = sys.MessageAgent(ctx, "user", other.ID, "message about someone else")

	require.Eventually(t, func() bool {
		mu.Lock()
		defer mu.Unlock()
		for _, e := range received {
			if e.AgentID == other.ID {
				return true
			}
		}
		return false
	}, time.Second, time.Millisecond)

	mu.Lock()
	defer mu.Unlock()
	for _, e := range received {
		assert.NotEqual(t, observer.ID, e.AgentID)
	}
}

func TestObserverSnapshots(t *testing.T) {
	ctx := context.Background()
	sys, stores, ws := newFixture(t)

	agentRes := sys.CreateAgent(ctx, domain.RoleImplementor, "impl", domain.ModelTierFast, "")
	require.True(t, agentRes.Success)
	agent := agentRes.Data.(domain.Agent)

	task, err := stores.Tasks.Create(ctx, domain.Task{WorkspaceID: ws, Title: "t"})
	require.NoError(t, err)
	_, err = stores.Tasks.AssignAgent(ctx, task.ID, agent.ID)
	require.NoError(t, err)
	_, err = stores.Tasks.UpdateStatus(ctx, task.ID, domain.TaskInProgress)
	require.NoError(t, err)

	assert.Len(t, sys.ListAgents(ws), 1)
	gotAgent, err := sys.GetAgent(agent.ID)
	require.NoError(t, err)
	assert.Equal(t, agent.ID, gotAgent.ID)

	assert.Len(t, sys.ListTasks(ws), 1)
	gotTask, err := sys.GetTask(task.ID)
	require.NoError(t, err)
	assert.Equal(t, task.ID, gotTask.ID)

	status, err := sys.GetAgentStatus(agent.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.AgentIdle, status)

	summary, err := sys.GetAgentSummary(agent.ID)
	require.NoError(t, err)
	assert.Equal(t, task.ID, summary.TaskID)
	assert.Equal(t, "t", summary.TaskTitle)

	_ = sys.MessageAgent(ctx, "user", agent.ID, "hi")
	assert.Len(t, sys.GetConversation(agent.ID, 0), 1)

	metrics := sys.CircuitBreakerMetrics()
	assert.NotNil(t, metrics)
}
