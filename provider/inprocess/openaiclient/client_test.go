package openaiclient

import (
	"context"
	"errors"
	"testing"

	openai "github.com/sashabaranov/go-openai"
	"github.com/stretchr/testify/require"

	"github.com/goa-design/agentswarm/domain"
	"github.com/goa-design/agentswarm/internal/agenterr"
)

type fakeChat struct {
	resp openai.ChatCompletionResponse
	err  error
}

func (f *fakeChat) CreateChatCompletion(context.Context, openai.ChatCompletionRequest) (openai.ChatCompletionResponse, error) {
	return f.resp, f.err
}

func TestNewRequiresChatAndModel(t *testing.T) {
	_, err := New(Config{Model: "gpt-4"})
	require.Error(t, err)

	_, err = New(Config{Chat: &fakeChat{}})
	require.Error(t, err)

	_, err = New(Config{Chat: &fakeChat{}, Model: "  "})
	require.Error(t, err, "blank model is rejected the same as empty")
}

func TestRunReturnsFirstChoiceContent(t *testing.T) {
	fake := &fakeChat{resp: openai.ChatCompletionResponse{
		Choices: []openai.ChatCompletionChoice{{Message: openai.ChatCompletionMessage{Content: "hello"}}},
	}}
	c, err := New(Config{Chat: fake, Model: "gpt-4"})
	require.NoError(t, err)

	text, err := c.Run(context.Background(), domain.RoleImplementor, "agent-1", "do it")
	require.NoError(t, err)
	require.Equal(t, "hello", text)
}

func TestRunErrorsOnEmptyChoices(t *testing.T) {
	c, err := New(Config{Chat: &fakeChat{}, Model: "gpt-4"})
	require.NoError(t, err)

	_, err = c.Run(context.Background(), domain.RoleImplementor, "agent-1", "do it")
	require.Error(t, err)
	var ae *agenterr.AgentError
	require.ErrorAs(t, err, &ae)
	require.Equal(t, agenterr.CategoryProvider, ae.Category)
}

func TestRunClassifiesProviderErrors(t *testing.T) {
	fake := &fakeChat{err: errors.New("boom")}
	c, err := New(Config{Chat: fake, Model: "gpt-4"})
	require.NoError(t, err)

	_, err = c.Run(context.Background(), domain.RoleImplementor, "agent-3", "do it")
	require.Error(t, err)
	var ae *agenterr.AgentError
	require.ErrorAs(t, err, &ae)
	require.Equal(t, "agent-3", ae.AgentID)
}

func TestInterruptIsIdempotentAndCleanupRestoresHealth(t *testing.T) {
	c, err := New(Config{Chat: &fakeChat{}, Model: "gpt-4"})
	require.NoError(t, err)

	require.NoError(t, c.Interrupt("agent-1"))
	require.NoError(t, c.Interrupt("agent-1"))
	require.False(t, c.IsHealthy("agent-1"))

	require.NoError(t, c.Cleanup("agent-1"))
	require.NoError(t, c.Cleanup("agent-1"))
	require.True(t, c.IsHealthy("agent-1"))
}
