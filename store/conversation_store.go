package store

import (
	"context"
	"sync"
	"time"

	"github.com/goa-design/agentswarm/domain"
	"github.com/goa-design/agentswarm/eventbus"
)

// ConversationStore holds one append-only Conversation per agent. Appends
// are serialised per agent id; MessageReceived events are ephemeral (spec.md
// §4.2: every kind but MessageReceived is critical), so they are published
// on the non-suspending path.
type ConversationStore struct {
	bus   *eventbus.Bus
	locks *keyedMutex

	mu sync.RWMutex
	by map[string]domain.Conversation
}

// NewConversationStore constructs a ConversationStore publishing to bus.
func NewConversationStore(bus *eventbus.Bus) *ConversationStore {
	return &ConversationStore{
		bus:   bus,
		locks: newKeyedMutex(),
		by:    make(map[string]domain.Conversation),
	}
}

// Append adds msg to agentID's conversation, creating it on first use, and
// emits MessageReceived.
func (s *ConversationStore) Append(ctx context.Context, agentID string, msg domain.Message) (domain.Conversation, error) {
	if agentID == "" {
		return domain.Conversation{}, ErrInvalidEntity
	}
	if msg.Timestamp.IsZero() {
		msg.Timestamp = time.Now()
	}

	unlock := s.locks.lock(agentID)
	defer unlock()

	s.mu.Lock()
	c, ok := s.by[agentID]
	if !ok {
		c = domain.Conversation{AgentID: agentID}
	}
	c.Messages = append(c.Messages, msg)
	s.by[agentID] = c
	snapshot := c
	s.mu.Unlock()

	s.bus.PublishNonSuspending(ctx, domain.Event{
		Kind:      domain.EventMessageReceived,
		Timestamp: msg.Timestamp,
		AgentID:   agentID,
		Message:   msg,
	})
	return cloneConversation(snapshot), nil
}

// Get returns a copy of agentID's conversation, or an empty conversation if
// none exists yet (no messages appended is not an error).
func (s *ConversationStore) Get(agentID string) domain.Conversation {
	s.mu.RLock()
	defer s.mu.RUnlock()
	c, ok := s.by[agentID]
	if !ok {
		return domain.Conversation{AgentID: agentID}
	}
	return cloneConversation(c)
}

// Tail returns the last n messages of agentID's conversation.
func (s *ConversationStore) Tail(agentID string, n int) []domain.Message {
	return s.Get(agentID).Tail(n)
}

func cloneConversation(c domain.Conversation) domain.Conversation {
	cp := c
	cp.Messages = append([]domain.Message(nil), c.Messages...)
	return cp
}
