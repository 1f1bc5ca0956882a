// Package anthropicclient is an in-process Smart-tier provider backed by
// github.com/anthropics/anthropic-sdk-go, grounded on the teacher's
// features/model/anthropic client (same MessagesClient seam; every SDK
// error is wrapped as a Provider-category error, with no separate
// rate-limit detection) but trimmed to the single-turn,
// whole-prompt-in/whole-text-out shape the orchestration core needs rather
// than the full tool-call/thinking-block translation the teacher's planner
// integration performs.
package anthropicclient

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"

	sdk "github.com/anthropics/anthropic-sdk-go"
	"github.com/anthropics/anthropic-sdk-go/option"

	"github.com/goa-design/agentswarm/agentprovider"
	"github.com/goa-design/agentswarm/domain"
	"github.com/goa-design/agentswarm/internal/agenterr"
)

// MessagesClient captures the subset of the Anthropic SDK used here,
// satisfied by *sdk.MessageService or a test double.
type MessagesClient interface {
	New(ctx context.Context, body sdk.MessageNewParams, opts ...option.RequestOption) (*sdk.Message, error)
}

// Config configures a Client.
type Config struct {
	Name                string
	Messages            MessagesClient
	Model               string
	MaxTokens           int64
	Priority            int
	MaxConcurrentAgents int
}

// Client is an in-process Agent Provider backend that invokes Anthropic's
// Messages API once per Run, with no native mid-run interrupt (spec.md
// §4.3: "In-process provider ... does not support mid-run interrupt;
// interrupt only marks a flag that makes isHealthy return false").
type Client struct {
	cfg          Config
	interrupted  sync.Map // agentID -> struct{}
	runningCount atomic.Int64
}

// New constructs a Client. cfg.Messages, cfg.Model, cfg.MaxTokens are
// required.
func New(cfg Config) (*Client, error) {
	if cfg.Messages == nil {
		return nil, errors.New("anthropicclient: Messages client is required")
	}
	if cfg.Model == "" {
		return nil, errors.New("anthropicclient: Model is required")
	}
	if cfg.MaxTokens <= 0 {
		cfg.MaxTokens = 4096
	}
	return &Client{cfg: cfg}, nil
}

// Run implements agentprovider.Provider.
func (c *Client) Run(ctx context.Context, role domain.Role, agentID, prompt string) (string, error) {
	if c.isInterrupted(agentID) {
		return "", agenterr.New("agent interrupted", agenterr.CategorySession, agenterr.SeverityLow, false).WithAgentID(agentID)
	}
	params := sdk.MessageNewParams{
		MaxTokens: c.cfg.MaxTokens,
		Model:     sdk.Model(c.cfg.Model),
		Messages:  []sdk.MessageParam{sdk.NewUserMessage(sdk.NewTextBlock(prompt))},
	}
	c.runningCount.Add(1)
	defer c.runningCount.Add(-1)
	msg, err := c.cfg.Messages.New(ctx, params)
	if err != nil {
		return "", classify(agentID, err)
	}
	var text string
	for _, block := range msg.Content {
		if block.Type == "text" {
			text += block.Text
		}
	}
	return text, nil
}

// RunStreaming implements agentprovider.Provider using the default
// single-chunk fallback (spec.md §4.3): the Anthropic Messages API call
// here is non-streaming, so chunked delivery degrades to one Text chunk
// followed by Completed.
func (c *Client) RunStreaming(ctx context.Context, role domain.Role, agentID, prompt string, sink agentprovider.Sink) (string, error) {
	return agentprovider.StreamFallback(ctx, role, agentID, prompt, sink, c.Run)
}

// IsHealthy implements agentprovider.Provider; false once interrupted.
func (c *Client) IsHealthy(agentID string) bool {
	return !c.isInterrupted(agentID)
}

// Interrupt implements agentprovider.Provider. Idempotent; marks agentID so
// IsHealthy reports false and the coordinator stops waiting on it.
func (c *Client) Interrupt(agentID string) error {
	c.interrupted.Store(agentID, struct{}{})
	return nil
}

// Cleanup implements agentprovider.Provider; idempotent.
func (c *Client) Cleanup(agentID string) error {
	c.interrupted.Delete(agentID)
	return nil
}

// Shutdown implements agentprovider.Provider; idempotent, no held resources.
func (c *Client) Shutdown() error { return nil }

// Capabilities implements agentprovider.Provider. In-process clients have
// no terminal or file-editing access of their own.
func (c *Client) Capabilities() agentprovider.Capabilities {
	return agentprovider.Capabilities{
		Name: c.cfg.Name,
		Supports: agentprovider.Supports{
			Streaming:   false,
			Interrupt:   true,
			HealthCheck: true,
			ToolCalling: true,
		},
		MaxConcurrentAgents: c.cfg.MaxConcurrentAgents,
		Priority:            c.cfg.Priority,
	}
}

func (c *Client) isInterrupted(agentID string) bool {
	_, ok := c.interrupted.Load(agentID)
	return ok
}

func classify(agentID string, err error) *agenterr.AgentError {
	msg := err.Error()
	return agenterr.New(fmt.Sprintf("anthropic: %s", msg), agenterr.CategoryProvider, agenterr.SeverityMedium, true).WithAgentID(agentID).WithCause(err)
}
