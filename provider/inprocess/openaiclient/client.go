// Package openaiclient is an in-process Fast-tier provider backed by
// github.com/sashabaranov/go-openai, grounded directly on the teacher's
// features/model/openai client (the same ChatClient seam and New/Options
// shape), trimmed to the single-turn whole-prompt-in/whole-text-out use the
// orchestration core needs.
package openaiclient

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"sync/atomic"

	openai "github.com/sashabaranov/go-openai"

	"github.com/goa-design/agentswarm/agentprovider"
	"github.com/goa-design/agentswarm/domain"
	"github.com/goa-design/agentswarm/internal/agenterr"
)

// ChatClient captures the subset of the go-openai client used here.
type ChatClient interface {
	CreateChatCompletion(ctx context.Context, request openai.ChatCompletionRequest) (openai.ChatCompletionResponse, error)
}

// Config configures a Client.
type Config struct {
	Name                string
	Chat                ChatClient
	Model               string
	MaxTokens           int
	Priority            int
	MaxConcurrentAgents int
}

// Client is an in-process Agent Provider backend for OpenAI Chat
// Completions. Like anthropicclient, it has no native mid-run interrupt.
type Client struct {
	cfg         Config
	interrupted sync.Map // agentID -> struct{}
	running     atomic.Int64
}

// New constructs a Client. cfg.Chat and cfg.Model are required.
func New(cfg Config) (*Client, error) {
	if cfg.Chat == nil {
		return nil, errors.New("openaiclient: Chat client is required")
	}
	if strings.TrimSpace(cfg.Model) == "" {
		return nil, errors.New("openaiclient: Model is required")
	}
	return &Client{cfg: cfg}, nil
}

// Run implements agentprovider.Provider.
func (c *Client) Run(ctx context.Context, role domain.Role, agentID, prompt string) (string, error) {
	if c.isInterrupted(agentID) {
		return "", agenterr.New("agent interrupted", agenterr.CategorySession, agenterr.SeverityLow, false).WithAgentID(agentID)
	}
	req := openai.ChatCompletionRequest{
		Model: c.cfg.Model,
		Messages: []openai.ChatCompletionMessage{
			{Role: openai.ChatMessageRoleUser, Content: prompt},
		},
		MaxTokens: c.cfg.MaxTokens,
	}
	c.running.Add(1)
	defer c.running.Add(-1)
	resp, err := c.cfg.Chat.CreateChatCompletion(ctx, req)
	if err != nil {
		return "", classify(agentID, err)
	}
	if len(resp.Choices) == 0 {
		return "", agenterr.New("openai: empty choices", agenterr.CategoryProvider, agenterr.SeverityMedium, true).WithAgentID(agentID)
	}
	return resp.Choices[0].Message.Content, nil
}

// RunStreaming implements agentprovider.Provider via the default
// single-chunk fallback (spec.md §4.3).
func (c *Client) RunStreaming(ctx context.Context, role domain.Role, agentID, prompt string, sink agentprovider.Sink) (string, error) {
	return agentprovider.StreamFallback(ctx, role, agentID, prompt, sink, c.Run)
}

// IsHealthy implements agentprovider.Provider.
func (c *Client) IsHealthy(agentID string) bool { return !c.isInterrupted(agentID) }

// Interrupt implements agentprovider.Provider; idempotent.
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

// Capabilities implements agentprovider.Provider.
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
	return agenterr.New(fmt.Sprintf("openai: %s", err.Error()), agenterr.CategoryProvider, agenterr.SeverityMedium, true).WithAgentID(agentID).WithCause(err)
}
