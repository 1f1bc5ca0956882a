package bedrockclient

import (
	"context"
	"errors"
	"testing"

	"github.com/aws/aws-sdk-go-v2/service/bedrockruntime"
	brtypes "github.com/aws/aws-sdk-go-v2/service/bedrockruntime/types"
	"github.com/stretchr/testify/require"

	"github.com/goa-design/agentswarm/domain"
	"github.com/goa-design/agentswarm/internal/agenterr"
)

type fakeRuntime struct {
	out *bedrockruntime.ConverseOutput
	err error
}

func (f *fakeRuntime) Converse(context.Context, *bedrockruntime.ConverseInput, ...func(*bedrockruntime.Options)) (*bedrockruntime.ConverseOutput, error) {
	return f.out, f.err
}

func textOutput(text string) *bedrockruntime.ConverseOutput {
	return &bedrockruntime.ConverseOutput{
		Output: &brtypes.ConverseOutputMemberMessage{
			Value: brtypes.Message{
				Role:    brtypes.ConversationRoleAssistant,
				Content: []brtypes.ContentBlock{&brtypes.ContentBlockMemberText{Value: text}},
			},
		},
	}
}

func TestNewRequiresRuntimeAndModel(t *testing.T) {
	_, err := New(Config{Model: "anthropic.claude"})
	require.Error(t, err)

	_, err = New(Config{Runtime: &fakeRuntime{}})
	require.Error(t, err)
}

func TestRunExtractsTextFromConverseOutput(t *testing.T) {
	c, err := New(Config{Runtime: &fakeRuntime{out: textOutput("hello")}, Model: "anthropic.claude"})
	require.NoError(t, err)

	text, err := c.Run(context.Background(), domain.RoleImplementor, "agent-1", "do it")
	require.NoError(t, err)
	require.Equal(t, "hello", text)
}

func TestExtractTextHandlesNilAndNonMessageOutput(t *testing.T) {
	require.Equal(t, "", extractText(nil))
	require.Equal(t, "", extractText(&bedrockruntime.ConverseOutput{}))
}

func TestRunClassifiesProviderErrors(t *testing.T) {
	fake := &fakeRuntime{err: errors.New("boom")}
	c, err := New(Config{Runtime: fake, Model: "anthropic.claude"})
	require.NoError(t, err)

	_, err = c.Run(context.Background(), domain.RoleImplementor, "agent-9", "do it")
	require.Error(t, err)
	var ae *agenterr.AgentError
	require.ErrorAs(t, err, &ae)
	require.Equal(t, agenterr.CategoryProvider, ae.Category)
	require.Equal(t, "agent-9", ae.AgentID)
}

func TestInterruptBlocksFurtherRuns(t *testing.T) {
	c, err := New(Config{Runtime: &fakeRuntime{out: textOutput("hello")}, Model: "anthropic.claude"})
	require.NoError(t, err)

	require.NoError(t, c.Interrupt("agent-1"))
	_, err = c.Run(context.Background(), domain.RoleImplementor, "agent-1", "do it")
	require.Error(t, err)

	require.NoError(t, c.Cleanup("agent-1"))
	_, err = c.Run(context.Background(), domain.RoleImplementor, "agent-1", "do it")
	require.NoError(t, err)
}
