package store

import (
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
)

// Workspace is the container that scopes agents, tasks, conversations for
// one orchestration session.
type Workspace struct {
	ID        string
	CreatedAt time.Time
}

// WorkspaceStore holds Workspace records. Workspaces have no invariants
// beyond existence, so it is a thin id-generating map.
type WorkspaceStore struct {
	mu    sync.RWMutex
	byID  map[string]Workspace
	order []string
}

// NewWorkspaceStore constructs an empty WorkspaceStore.
func NewWorkspaceStore() *WorkspaceStore {
	return &WorkspaceStore{byID: make(map[string]Workspace)}
}

// Create mints a new Workspace and returns it.
func (s *WorkspaceStore) Create() Workspace {
	s.mu.Lock()
	defer s.mu.Unlock()
	w := Workspace{ID: uuid.NewString(), CreatedAt: time.Now()}
	s.byID[w.ID] = w
	s.order = append(s.order, w.ID)
	return w
}

// Get returns the workspace for id.
func (s *WorkspaceStore) Get(id string) (Workspace, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	w, ok := s.byID[id]
	if !ok {
		return Workspace{}, ErrNotFound
	}
	return w, nil
}

// Delete removes a workspace record. Teardown of dependent agents/tasks is
// the caller's responsibility (spec.md §3: "Destroyed only on workspace
// teardown").
func (s *WorkspaceStore) Delete(id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.byID[id]; !ok {
		return ErrNotFound
	}
	delete(s.byID, id)
	for i, wid := range s.order {
		if wid == id {
			s.order = append(s.order[:i], s.order[i+1:]...)
			break
		}
	}
	return nil
}

// List returns every known workspace, creation-time ascending.
func (s *WorkspaceStore) List() []Workspace {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]Workspace, 0, len(s.order))
	for _, id := range s.order {
		out = append(out, s.byID[id])
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].CreatedAt.Before(out[j].CreatedAt) })
	return out
}
