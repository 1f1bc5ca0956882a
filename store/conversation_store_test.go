package store_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/goa-design/agentswarm/domain"
	"github.com/goa-design/agentswarm/eventbus"
	"github.com/goa-design/agentswarm/store"
)

func TestConversationStoreAppendAccumulatesMessagesAndEmitsEvent(t *testing.T) {
	bus := eventbus.NewBus(32, 500)
	s := store.NewConversationStore(bus)
	stream := eventbus.Subscribe(bus, domain.EventMessageReceived)
	defer stream.Close()

	ctx := context.Background()
	_, err := s.Append(ctx, "agent-1", domain.Message{Role: "user", Content: "hi"})
	require.NoError(t, err)
	c, err := s.Append(ctx, "agent-1", domain.Message{Role: "assistant", Content: "hello"})
	require.NoError(t, err)

	require.Len(t, c.Messages, 2)
	require.Equal(t, "hi", c.Messages[0].Content)
	require.Equal(t, "hello", c.Messages[1].Content)

	evt, ok := stream.Next(ctx)
	require.True(t, ok)
	require.Equal(t, "agent-1", evt.AgentID)
}

func TestConversationStoreAppendRejectsEmptyAgentID(t *testing.T) {
	bus := eventbus.NewBus(32, 500)
	s := store.NewConversationStore(bus)
	_, err := s.Append(context.Background(), "", domain.Message{Role: "user", Content: "hi"})
	require.ErrorIs(t, err, store.ErrInvalidEntity)
}

func TestConversationStoreGetUnknownAgentReturnsEmptyConversation(t *testing.T) {
	bus := eventbus.NewBus(32, 500)
	s := store.NewConversationStore(bus)
	c := s.Get("never-seen")
	require.Equal(t, "never-seen", c.AgentID)
	require.Empty(t, c.Messages)
}

func TestConversationStoreTailReturnsLastNMessages(t *testing.T) {
	bus := eventbus.NewBus(32, 500)
	s := store.NewConversationStore(bus)
	ctx := context.Background()
	for i := 0; i < 5; i++ {
		_, err := s.Append(ctx, "agent-1", domain.Message{Role: "user", Content: string(rune('a' + i))})
		require.NoError(t, err)
	}

	tail := s.Tail("agent-1", 2)
	require.Len(t, tail, 2)
	require.Equal(t, "d", tail[0].Content)
	require.Equal(t, "e", tail[1].Content)
}

func TestConversationStoreGetReturnsIndependentCopy(t *testing.T) {
	bus := eventbus.NewBus(32, 500)
	s := store.NewConversationStore(bus)
	ctx := context.Background()
	_, err := s.Append(ctx, "agent-1", domain.Message{Role: "user", Content: "hi"})
	require.NoError(t, err)

	c := s.Get("agent-1")
	c.Messages[0].Content = "mutated"

	fresh := s.Get("agent-1")
	require.Equal(t, "hi", fresh.Messages[0].Content, "Get must return a copy, not a shared slice")
}
