package store

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/goa-design/agentswarm/domain"
	"github.com/goa-design/agentswarm/eventbus"
)

// AgentExistence is consulted by TaskStore.AssignAgent to enforce spec.md
// §3's "Assigned/InProgress implies a non-null, existing assigned agent"
// invariant without an import cycle against AgentStore.
type AgentExistence interface {
	Get(id string) (domain.Agent, error)
}

// TaskStore holds Task records, enforcing the dependency-DAG, assignment,
// and verdict invariants from spec.md §3 and emitting TaskStatusChanged
// strictly after each commit.
type TaskStore struct {
	bus    *eventbus.Bus
	locks  *keyedMutex
	agents AgentExistence

	mu    sync.RWMutex
	byID  map[string]domain.Task
	order map[string][]string // workspaceID -> task ids, creation order
}

// NewTaskStore constructs a TaskStore publishing to bus. agents may be nil
// until the owning AgentStore is constructed; SetAgentExistence wires it in
// afterward.
func NewTaskStore(bus *eventbus.Bus) *TaskStore {
	return &TaskStore{
		bus:   bus,
		locks: newKeyedMutex(),
		byID:  make(map[string]domain.Task),
		order: make(map[string][]string),
	}
}

// SetAgentExistence wires the agent store used to validate assignment
// targets.
func (s *TaskStore) SetAgentExistence(a AgentExistence) { s.agents = a }

// HasInFlightTasks implements AgentStore's InFlightChecker: true if any task
// assigned to agentID is Assigned or InProgress.
func (s *TaskStore) HasInFlightTasks(agentID string) bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	for _, t := range s.byID {
		if t.AssignedAgentID != agentID {
			continue
		}
		if t.Status == domain.TaskAssigned || t.Status == domain.TaskInProgress {
			return true
		}
	}
	return false
}

// Create stores a new Task, rejecting dependency edges that would
// introduce a cycle (spec.md §3: "the dependency graph is acyclic").
// Status defaults to TaskReady if DependsOn is empty, TaskPending
// otherwise.
func (s *TaskStore) Create(ctx context.Context, t domain.Task) (domain.Task, error) {
	if t.WorkspaceID == "" {
		return domain.Task{}, ErrInvalidEntity
	}
	if t.ID == "" {
		t.ID = uuid.NewString()
	}
	now := time.Now()
	t.CreatedAt, t.UpdatedAt = now, now
	if t.Status == "" {
		if len(t.DependsOn) == 0 {
			t.Status = domain.TaskReady
		} else {
			t.Status = domain.TaskPending
		}
	}
	if t.Verdict == "" {
		t.Verdict = domain.VerdictUnverified
	}

	s.mu.Lock()
	if s.wouldCycleLocked(t.ID, t.DependsOn) {
		s.mu.Unlock()
		return domain.Task{}, ErrConflict
	}
	s.byID[t.ID] = t
	s.order[t.WorkspaceID] = append(s.order[t.WorkspaceID], t.ID)
	s.mu.Unlock()

	s.bus.Publish(ctx, domain.Event{
		Kind:          domain.EventTaskStatusChanged,
		Timestamp:     now,
		TaskID:        t.ID,
		NewTaskStatus: t.Status,
	})
	return t, nil
}

// wouldCycleLocked reports whether adding edges "id depends on dependsOn"
// would create a cycle in the dependency graph. Callers must hold s.mu.
// Implements Kahn's algorithm: a cycle exists iff some node cannot reach
// in-degree zero after repeatedly removing zero in-degree nodes.
func (s *TaskStore) wouldCycleLocked(id string, dependsOn []string) bool {
	adj := make(map[string][]string, len(s.byID)+1)
	for tid, t := range s.byID {
		adj[tid] = append(adj[tid], t.DependsOn...)
	}
	adj[id] = append(adj[id], dependsOn...)
	for _, deps := range adj {
		for _, dep := range deps {
			if _, ok := adj[dep]; !ok {
				adj[dep] = nil
			}
		}
	}

	// depCount[node] is node's remaining unsatisfied dependency count; Kahn's
	// algorithm repeatedly removes zero-count nodes. A cycle exists iff some
	// node never reaches zero.
	depCount := make(map[string]int, len(adj))
	dependents := make(map[string][]string, len(adj))
	for node, deps := range adj {
		depCount[node] = len(deps)
		for _, dep := range deps {
			dependents[dep] = append(dependents[dep], node)
		}
	}

	var queue []string
	for node, c := range depCount {
		if c == 0 {
			queue = append(queue, node)
		}
	}
	visited := 0
	for len(queue) > 0 {
		n := queue[0]
		queue = queue[1:]
		visited++
		for _, dependent := range dependents[n] {
			depCount[dependent]--
			if depCount[dependent] == 0 {
				queue = append(queue, dependent)
			}
		}
	}
	return visited != len(depCount)
}

// Get returns a copy of the task for id.
func (s *TaskStore) Get(id string) (domain.Task, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	t, ok := s.byID[id]
	if !ok {
		return domain.Task{}, ErrNotFound
	}
	return t.Clone(), nil
}

// AssignAgent transitions a task to TaskAssigned, enforcing that
// agentID names an existing agent (spec.md §3).
func (s *TaskStore) AssignAgent(ctx context.Context, taskID, agentID string) (domain.Task, error) {
	if s.agents != nil {
		if _, err := s.agents.Get(agentID); err != nil {
			return domain.Task{}, ErrConflict
		}
	}
	unlock := s.locks.lock(taskID)
	defer unlock()

	s.mu.Lock()
	t, ok := s.byID[taskID]
	if !ok {
		s.mu.Unlock()
		return domain.Task{}, ErrNotFound
	}
	t.AssignedAgentID = agentID
	t.Status = domain.TaskAssigned
	t.UpdatedAt = time.Now()
	s.byID[taskID] = t
	s.mu.Unlock()

	s.bus.Publish(ctx, domain.Event{
		Kind:          domain.EventTaskStatusChanged,
		Timestamp:     t.UpdatedAt,
		TaskID:        taskID,
		NewTaskStatus: t.Status,
	})
	return t.Clone(), nil
}

// UpdateStatus transitions a task's status, emitting TaskStatusChanged
// after commit. Assigned and InProgress require a non-empty
// AssignedAgentID already on record (use AssignAgent first).
func (s *TaskStore) UpdateStatus(ctx context.Context, taskID string, status domain.TaskStatus) (domain.Task, error) {
	unlock := s.locks.lock(taskID)
	defer unlock()

	s.mu.Lock()
	t, ok := s.byID[taskID]
	if !ok {
		s.mu.Unlock()
		return domain.Task{}, ErrNotFound
	}
	if (status == domain.TaskAssigned || status == domain.TaskInProgress) && t.AssignedAgentID == "" {
		s.mu.Unlock()
		return domain.Task{}, ErrConflict
	}
	t.Status = status
	t.UpdatedAt = time.Now()
	s.byID[taskID] = t
	s.mu.Unlock()

	s.bus.Publish(ctx, domain.Event{
		Kind:          domain.EventTaskStatusChanged,
		Timestamp:     t.UpdatedAt,
		TaskID:        taskID,
		NewTaskStatus: status,
	})
	return t.Clone(), nil
}

// SetVerdict records a verification verdict. VerdictApproved forces the
// task's status to TaskCompleted in the same commit (spec.md §3: "Verdict
// Approved implies Status Completed").
func (s *TaskStore) SetVerdict(ctx context.Context, taskID string, verdict domain.Verdict) (domain.Task, error) {
	unlock := s.locks.lock(taskID)
	defer unlock()

	s.mu.Lock()
	t, ok := s.byID[taskID]
	if !ok {
		s.mu.Unlock()
		return domain.Task{}, ErrNotFound
	}
	t.Verdict = verdict
	statusChanged := false
	if verdict == domain.VerdictApproved && t.Status != domain.TaskCompleted {
		t.Status = domain.TaskCompleted
		statusChanged = true
	}
	t.UpdatedAt = time.Now()
	s.byID[taskID] = t
	s.mu.Unlock()

	if statusChanged {
		s.bus.Publish(ctx, domain.Event{
			Kind:          domain.EventTaskStatusChanged,
			Timestamp:     t.UpdatedAt,
			TaskID:        taskID,
			NewTaskStatus: t.Status,
		})
	}
	return t.Clone(), nil
}

// AppendResult appends text to the task's accumulated result (spec.md §3's
// capped result text). No event is emitted: result accumulation is not a
// status transition.
func (s *TaskStore) AppendResult(taskID, text string) (domain.Task, error) {
	unlock := s.locks.lock(taskID)
	defer unlock()

	s.mu.Lock()
	defer s.mu.Unlock()
	t, ok := s.byID[taskID]
	if !ok {
		return domain.Task{}, ErrNotFound
	}
	t.AppendResult(text)
	t.UpdatedAt = time.Now()
	s.byID[taskID] = t
	return t.Clone(), nil
}

// Ready returns, in creation order, every task in workspaceID whose status
// is Pending or Ready and whose dependencies have all completed (spec.md
// §3: a task is ready iff every DependsOn id resolves to a completed task).
func (s *TaskStore) Ready(workspaceID string) []domain.Task {
	s.mu.RLock()
	defer s.mu.RUnlock()

	ids := s.order[workspaceID]
	out := make([]domain.Task, 0, len(ids))
	for _, id := range ids {
		t, ok := s.byID[id]
		if !ok {
			continue
		}
		if t.Status != domain.TaskPending && t.Status != domain.TaskReady {
			continue
		}
		if s.allDependenciesCompletedLocked(t.DependsOn) {
			out = append(out, t.Clone())
		}
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].CreatedAt.Before(out[j].CreatedAt) })
	return out
}

func (s *TaskStore) allDependenciesCompletedLocked(dependsOn []string) bool {
	for _, dep := range dependsOn {
		d, ok := s.byID[dep]
		if !ok || d.Status != domain.TaskCompleted {
			return false
		}
	}
	return true
}

// List returns a snapshot of every task in workspaceID, creation-time
// ascending.
func (s *TaskStore) List(workspaceID string) []domain.Task {
	s.mu.RLock()
	defer s.mu.RUnlock()
	ids := s.order[workspaceID]
	out := make([]domain.Task, 0, len(ids))
	for _, id := range ids {
		if t, ok := s.byID[id]; ok {
			out = append(out, t.Clone())
		}
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].CreatedAt.Before(out[j].CreatedAt) })
	return out
}
