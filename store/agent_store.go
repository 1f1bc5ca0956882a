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

// InFlightChecker reports whether an agent has tasks currently assigned to
// it. AgentStore consults it before Delete to enforce spec.md §4.1:
// "Deletion of an agent with in-flight tasks fails with Conflict." It is
// satisfied by *TaskStore without introducing an import cycle between the
// two stores.
type InFlightChecker interface {
	HasInFlightTasks(agentID string) bool
}

// AgentStore holds Agent records, enforcing spec.md §3's agent invariants
// and emitting AgentCreated/AgentStatusChanged events after each commit.
type AgentStore struct {
	bus   *eventbus.Bus
	locks *keyedMutex

	mu    sync.RWMutex
	byID  map[string]domain.Agent
	order map[string][]string // workspaceID -> agent ids, creation order

	inFlight InFlightChecker
}

// NewAgentStore constructs an AgentStore publishing to bus. inFlight may be
// nil until the owning TaskStore is constructed; SetInFlightChecker wires it
// in afterward to break the natural AgentStore<->TaskStore cycle.
func NewAgentStore(bus *eventbus.Bus) *AgentStore {
	return &AgentStore{
		bus:   bus,
		locks: newKeyedMutex(),
		byID:  make(map[string]domain.Agent),
		order: make(map[string][]string),
	}
}

// SetInFlightChecker wires the task store used to enforce the
// delete-with-in-flight-tasks invariant.
func (s *AgentStore) SetInFlightChecker(c InFlightChecker) { s.inFlight = c }

// Create mints and stores a new Agent, emitting AgentCreated after commit.
func (s *AgentStore) Create(ctx context.Context, a domain.Agent) (domain.Agent, error) {
	if a.WorkspaceID == "" {
		return domain.Agent{}, ErrInvalidEntity
	}
	if a.ID == "" {
		a.ID = uuid.NewString()
	}
	now := time.Now()
	a.CreatedAt, a.UpdatedAt = now, now
	if a.Status == "" {
		a.Status = domain.AgentIdle
	}

	unlock := s.locks.lock(a.ID)
	defer unlock()

	s.mu.Lock()
	s.byID[a.ID] = a
	s.order[a.WorkspaceID] = append(s.order[a.WorkspaceID], a.ID)
	s.mu.Unlock()

	s.bus.Publish(ctx, domain.Event{
		Kind:        domain.EventAgentCreated,
		Timestamp:   now,
		AgentID:     a.ID,
		AgentStatus: a.Status,
	})
	return a, nil
}

// Get returns a copy of the agent for id.
func (s *AgentStore) Get(id string) (domain.Agent, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	a, ok := s.byID[id]
	if !ok {
		return domain.Agent{}, ErrNotFound
	}
	return a.Clone(), nil
}

// UpdateStatus transitions an agent's status, emitting AgentStatusChanged
// after commit (spec.md §3: "status mutated only via store transitions that
// emit a status-change event").
func (s *AgentStore) UpdateStatus(ctx context.Context, id string, status domain.AgentStatus) (domain.Agent, error) {
	unlock := s.locks.lock(id)
	defer unlock()

	s.mu.Lock()
	a, ok := s.byID[id]
	if !ok {
		s.mu.Unlock()
		return domain.Agent{}, ErrNotFound
	}
	a.Status = status
	a.UpdatedAt = time.Now()
	s.byID[id] = a
	s.mu.Unlock()

	s.bus.Publish(ctx, domain.Event{
		Kind:        domain.EventAgentStatusChanged,
		Timestamp:   a.UpdatedAt,
		AgentID:     id,
		AgentStatus: status,
	})
	return a.Clone(), nil
}

// Save persists a mutated agent without changing its status (e.g. updating
// PreferredModel). No event is emitted: spec.md only requires events for
// observable status transitions.
func (s *AgentStore) Save(a domain.Agent) (domain.Agent, error) {
	if a.ID == "" {
		return domain.Agent{}, ErrInvalidEntity
	}
	unlock := s.locks.lock(a.ID)
	defer unlock()

	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.byID[a.ID]; !ok {
		return domain.Agent{}, ErrNotFound
	}
	a.UpdatedAt = time.Now()
	s.byID[a.ID] = a
	return a.Clone(), nil
}

// Delete removes the agent record. Fails with ErrConflict if the agent has
// in-flight tasks (spec.md §4.1).
func (s *AgentStore) Delete(id string) error {
	if s.inFlight != nil && s.inFlight.HasInFlightTasks(id) {
		return ErrConflict
	}
	unlock := s.locks.lock(id)
	defer unlock()

	s.mu.Lock()
	defer s.mu.Unlock()
	a, ok := s.byID[id]
	if !ok {
		return ErrNotFound
	}
	delete(s.byID, id)
	ids := s.order[a.WorkspaceID]
	for i, aid := range ids {
		if aid == id {
			s.order[a.WorkspaceID] = append(ids[:i], ids[i+1:]...)
			break
		}
	}
	return nil
}

// List returns a snapshot of every agent in workspaceID, creation-time
// ascending (spec.md §4.1).
func (s *AgentStore) List(workspaceID string) []domain.Agent {
	s.mu.RLock()
	defer s.mu.RUnlock()
	ids := s.order[workspaceID]
	out := make([]domain.Agent, 0, len(ids))
	for _, id := range ids {
		if a, ok := s.byID[id]; ok {
			out = append(out, a.Clone())
		}
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].CreatedAt.Before(out[j].CreatedAt) })
	return out
}
