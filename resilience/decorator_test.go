package resilience

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/goa-design/agentswarm/agentprovider"
	"github.com/goa-design/agentswarm/domain"
	"github.com/goa-design/agentswarm/eventbus"
	"github.com/goa-design/agentswarm/internal/agenterr"
	"github.com/goa-design/agentswarm/store"
)

type scriptedProvider struct {
	name      string
	responses []string
	errs      []error
	call      int
}

func (p *scriptedProvider) Run(context.Context, domain.Role, string, string) (string, error) {
	i := p.call
	p.call++
	var err error
	if i < len(p.errs) {
		err = p.errs[i]
	}
	var text string
	if i < len(p.responses) {
		text = p.responses[i]
	}
	return text, err
}
func (p *scriptedProvider) RunStreaming(ctx context.Context, role domain.Role, agentID, prompt string, sink agentprovider.Sink) (string, error) {
	return agentprovider.StreamFallback(ctx, role, agentID, prompt, sink, p.Run)
}
func (p *scriptedProvider) IsHealthy(string) bool  { return true }
func (p *scriptedProvider) Interrupt(string) error { return nil }
func (p *scriptedProvider) Cleanup(string) error   { return nil }
func (p *scriptedProvider) Shutdown() error        { return nil }
func (p *scriptedProvider) Capabilities() agentprovider.Capabilities {
	return agentprovider.Capabilities{Name: p.name}
}

func TestDecorateRetriesThenSucceeds(t *testing.T) {
	base := &scriptedProvider{
		name:      "flaky",
		errs:      []error{errors.New("connection refused"), nil},
		responses: []string{"", "recovered"},
	}
	p := Decorate(base, DecoratorConfig{
		Breakers: NewRegistry(BreakerConfig{}),
		Recovery: NewRecoveryRegistry(map[agenterr.Category]RetryStrategy{
			agenterr.CategoryNetwork: {MaxAttempts: 3},
		}),
	})

	text, err := p.Run(context.Background(), domain.RoleImplementor, "agent-1", "do it")
	require.NoError(t, err)
	require.Equal(t, "recovered", text)
	require.Equal(t, 2, base.call)
}

func TestDecorateOpensBreakerAfterRepeatedFailures(t *testing.T) {
	base := &scriptedProvider{name: "always-fails", errs: []error{
		errors.New("permission denied"), errors.New("permission denied"),
	}}
	breakers := NewRegistry(BreakerConfig{FailureThreshold: 1, VolumeThreshold: 1})
	p := Decorate(base, DecoratorConfig{
		Breakers: breakers,
		Recovery: NewRecoveryRegistry(nil),
	})

	_, err := p.Run(context.Background(), domain.RoleImplementor, "agent-1", "do it")
	require.Error(t, err)

	_, err = p.Run(context.Background(), domain.RoleImplementor, "agent-1", "do it")
	var circuitOpen *ErrCircuitOpen
	require.ErrorAs(t, err, &circuitOpen)
	require.Equal(t, 1, base.call)
}

func TestDecorateSessionRecoveryRebuildsPromptOnSessionError(t *testing.T) {
	bus := eventbus.NewBus(32, 500)
	conversations := store.NewConversationStore(bus)
	_, err := conversations.Append(context.Background(), "agent-1", domain.Message{Role: "user", Content: "original ask"})
	require.NoError(t, err)

	base := &scriptedProvider{
		name:      "session-flaky",
		errs:      []error{errors.New("conversation not found"), nil},
		responses: []string{"", "recovered after resume"},
	}
	p := Decorate(base, DecoratorConfig{
		Breakers:      NewRegistry(BreakerConfig{}),
		Recovery:      NewRecoveryRegistry(map[agenterr.Category]RetryStrategy{agenterr.CategorySession: {MaxAttempts: 0}}),
		Conversations: conversations,
	})

	text, err := p.Run(context.Background(), domain.RoleImplementor, "agent-1", "do it")
	require.NoError(t, err)
	require.Equal(t, "recovered after resume", text)
	require.Equal(t, 2, base.call)
}

func TestDecorateLifecycleMethodsPassThrough(t *testing.T) {
	base := &scriptedProvider{name: "passthrough"}
	p := Decorate(base, DecoratorConfig{Breakers: NewRegistry(BreakerConfig{}), Recovery: NewRecoveryRegistry(nil)})

	require.True(t, p.IsHealthy("agent-1"))
	require.NoError(t, p.Interrupt("agent-1"))
	require.NoError(t, p.Cleanup("agent-1"))
	require.NoError(t, p.Shutdown())
	require.Equal(t, "passthrough", p.Capabilities().Name)
}
