// Package bedrockclient is an in-process alternate-tier provider backed by
// the AWS Bedrock Converse API, grounded on the teacher's
// features/model/bedrock client (same RuntimeClient seam), trimmed to the
// single-turn whole-prompt-in/whole-text-out shape the orchestration core
// needs rather than the full tool-call/thinking-block translation the
// teacher's planner integration performs.
package bedrockclient

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"sync/atomic"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/bedrockruntime"
	brtypes "github.com/aws/aws-sdk-go-v2/service/bedrockruntime/types"

	"github.com/goa-design/agentswarm/agentprovider"
	"github.com/goa-design/agentswarm/domain"
	"github.com/goa-design/agentswarm/internal/agenterr"
)

// RuntimeClient captures the subset of the Bedrock runtime client used
// here, satisfied by *bedrockruntime.Client or a test double.
type RuntimeClient interface {
	Converse(ctx context.Context, params *bedrockruntime.ConverseInput, optFns ...func(*bedrockruntime.Options)) (*bedrockruntime.ConverseOutput, error)
}

// Config configures a Client.
type Config struct {
	Name                string
	Runtime             RuntimeClient
	Model               string
	MaxTokens           int32
	Priority            int
	MaxConcurrentAgents int
}

// Client is an in-process Agent Provider backend that invokes Bedrock's
// Converse API once per Run, with no native mid-run interrupt (spec.md
// §4.3: "In-process provider ... does not support mid-run interrupt;
// interrupt only marks a flag that makes isHealthy return false").
type Client struct {
	cfg          Config
	interrupted  sync.Map // agentID -> struct{}
	runningCount atomic.Int64
}

// New constructs a Client. cfg.Runtime and cfg.Model are required.
func New(cfg Config) (*Client, error) {
	if cfg.Runtime == nil {
		return nil, errors.New("bedrockclient: Runtime client is required")
	}
	if strings.TrimSpace(cfg.Model) == "" {
		return nil, errors.New("bedrockclient: Model is required")
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
	input := &bedrockruntime.ConverseInput{
		ModelId: aws.String(c.cfg.Model),
		Messages: []brtypes.Message{
			{
				Role: brtypes.ConversationRoleUser,
				Content: []brtypes.ContentBlock{
					&brtypes.ContentBlockMemberText{Value: prompt},
				},
			},
		},
		InferenceConfig: &brtypes.InferenceConfiguration{
			MaxTokens: aws.Int32(c.cfg.MaxTokens),
		},
	}
	c.runningCount.Add(1)
	defer c.runningCount.Add(-1)
	out, err := c.cfg.Runtime.Converse(ctx, input)
	if err != nil {
		return "", classify(agentID, err)
	}
	return extractText(out), nil
}

func extractText(out *bedrockruntime.ConverseOutput) string {
	if out == nil {
		return ""
	}
	msg, ok := out.Output.(*brtypes.ConverseOutputMemberMessage)
	if !ok {
		return ""
	}
	var text string
	for _, block := range msg.Value.Content {
		if t, ok := block.(*brtypes.ContentBlockMemberText); ok {
			text += t.Value
		}
	}
	return text
}

// RunStreaming implements agentprovider.Provider using the default
// single-chunk fallback (spec.md §4.3): the Converse call here is
// non-streaming, so chunked delivery degrades to one Text chunk followed
// by Completed.
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
	return agenterr.New(fmt.Sprintf("bedrock: %s", err.Error()), agenterr.CategoryProvider, agenterr.SeverityMedium, true).WithAgentID(agentID).WithCause(err)
}
