// Package subprocess implements the sub-process agent-provider shape
// template from spec.md §4.3: one child process per agent id, communicating
// over a line-delimited JSON-RPC 2.0 stdio protocol, with tool-call status
// mapped to the canonical four-state set and health derived from process
// liveness plus heartbeat staleness.
package subprocess

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"github.com/goa-design/agentswarm/agentprovider"
	"github.com/goa-design/agentswarm/domain"
	"github.com/goa-design/agentswarm/internal/agenterr"
	"github.com/goa-design/agentswarm/internal/telemetry"
)

// Config configures a Provider.
type Config struct {
	Name                string
	Spawn               Spawner
	StalenessThreshold  time.Duration // default 5 minutes
	RunTimeout          time.Duration // default 5 minutes, per-run wall clock
	MaxConcurrentAgents int
	Priority            int
	Logger              telemetry.Logger
}

// Provider drives one agent process per agent id.
type Provider struct {
	cfg    Config
	logger telemetry.Logger

	mu        sync.Mutex
	processes map[string]*process
	sinks     map[string]agentprovider.Sink
}

// New constructs a subprocess Provider.
func New(cfg Config) *Provider {
	if cfg.StalenessThreshold <= 0 {
		cfg.StalenessThreshold = 5 * time.Minute
	}
	if cfg.RunTimeout <= 0 {
		cfg.RunTimeout = 5 * time.Minute
	}
	if cfg.Logger == nil {
		cfg.Logger = telemetry.NoopLogger{}
	}
	return &Provider{
		cfg:       cfg,
		logger:    cfg.Logger,
		processes: make(map[string]*process),
		sinks:     make(map[string]agentprovider.Sink),
	}
}

func (p *Provider) getOrCreate(ctx context.Context, agentID string, sink agentprovider.Sink) (*process, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if proc, ok := p.processes[agentID]; ok {
		return proc, nil
	}
	effectiveSink := sink
	if effectiveSink == nil {
		effectiveSink = func(string, agentprovider.StreamChunk) {}
	}
	proc, err := newProcess(ctx, agentID, p.cfg.Spawn, effectiveSink, p.logger)
	if err != nil {
		return nil, agenterr.New(err.Error(), agenterr.CategoryProcess, agenterr.SeverityHigh, true).WithAgentID(agentID).WithCause(err)
	}
	p.processes[agentID] = proc
	return proc, nil
}

type runParams struct {
	Role    string `json:"role"`
	AgentID string `json:"agentId"`
	Prompt  string `json:"prompt"`
}

type runResult struct {
	Text string `json:"text"`
}

// Run implements agentprovider.Provider.
func (p *Provider) Run(ctx context.Context, role domain.Role, agentID, prompt string) (string, error) {
	proc, err := p.getOrCreate(ctx, agentID, nil)
	if err != nil {
		return "", err
	}
	runCtx, cancel := context.WithTimeout(ctx, p.cfg.RunTimeout)
	defer cancel()
	raw, err := proc.call(runCtx, "run", runParams{Role: string(role), AgentID: agentID, Prompt: prompt})
	if err != nil {
		return "", classifyProcessErr(agentID, err)
	}
	var res runResult
	if err := json.Unmarshal(raw, &res); err != nil {
		return "", agenterr.New(err.Error(), agenterr.CategoryProcess, agenterr.SeverityMedium, true).WithAgentID(agentID).WithCause(err)
	}
	return res.Text, nil
}

// RunStreaming implements agentprovider.Provider.
func (p *Provider) RunStreaming(ctx context.Context, role domain.Role, agentID, prompt string, sink agentprovider.Sink) (string, error) {
	proc, err := p.getOrCreate(ctx, agentID, sink)
	if err != nil {
		return "", err
	}
	sink(agentID, agentprovider.HeartbeatChunk())

	runCtx, cancel := context.WithTimeout(ctx, p.cfg.RunTimeout)
	defer cancel()
	raw, err := proc.call(runCtx, "run", runParams{Role: string(role), AgentID: agentID, Prompt: prompt})
	if err != nil {
		cerr := classifyProcessErr(agentID, err)
		sink(agentID, agentprovider.ErrorChunk(cerr.Error(), cerr.Recoverable))
		return "", cerr
	}
	var res runResult
	if err := json.Unmarshal(raw, &res); err != nil {
		sink(agentID, agentprovider.ErrorChunk(err.Error(), false))
		return "", err
	}
	sink(agentID, agentprovider.CompletedChunk("stop"))
	return res.Text, nil
}

// IsHealthy implements agentprovider.Provider. A run is unhealthy when
// either the OS process is dead or the last heartbeat predates the
// staleness threshold (spec.md §4.3).
func (p *Provider) IsHealthy(agentID string) bool {
	p.mu.Lock()
	proc, ok := p.processes[agentID]
	p.mu.Unlock()
	if !ok {
		return true
	}
	if proc.interrupted.Load() {
		return false
	}
	if !proc.alive() {
		return false
	}
	return !proc.staleSince(p.cfg.StalenessThreshold)
}

// Interrupt implements agentprovider.Provider; idempotent.
func (p *Provider) Interrupt(agentID string) error {
	p.mu.Lock()
	proc, ok := p.processes[agentID]
	p.mu.Unlock()
	if !ok {
		return nil
	}
	return proc.interrupt()
}

// Cleanup implements agentprovider.Provider; idempotent.
func (p *Provider) Cleanup(agentID string) error {
	p.mu.Lock()
	proc, ok := p.processes[agentID]
	if ok {
		delete(p.processes, agentID)
	}
	p.mu.Unlock()
	if !ok {
		return nil
	}
	return proc.close()
}

// Shutdown implements agentprovider.Provider; idempotent.
func (p *Provider) Shutdown() error {
	p.mu.Lock()
	procs := make([]*process, 0, len(p.processes))
	for id, proc := range p.processes {
		procs = append(procs, proc)
		delete(p.processes, id)
	}
	p.mu.Unlock()
	var firstErr error
	for _, proc := range procs {
		if err := proc.close(); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	return firstErr
}

// Capabilities implements agentprovider.Provider.
func (p *Provider) Capabilities() agentprovider.Capabilities {
	return agentprovider.Capabilities{
		Name: p.cfg.Name,
		Supports: agentprovider.Supports{
			Streaming:   true,
			Interrupt:   true,
			HealthCheck: true,
			FileEditing: true,
			Terminal:    true,
			ToolCalling: true,
		},
		MaxConcurrentAgents: p.cfg.MaxConcurrentAgents,
		Priority:            p.cfg.Priority,
	}
}

func classifyProcessErr(agentID string, err error) *agenterr.AgentError {
	if agenterr.IsCancellation(err) {
		return agenterr.New(err.Error(), agenterr.CategoryUnknown, agenterr.SeverityLow, false).WithAgentID(agentID).WithCause(err)
	}
	if err == context.DeadlineExceeded {
		return agenterr.New(fmt.Sprintf("agent %s run timed out", agentID), agenterr.CategoryTimeout, agenterr.SeverityMedium, true).WithAgentID(agentID).WithCause(err)
	}
	ae := agenterr.New(err.Error(), agenterr.CategoryProcess, agenterr.SeverityMedium, true).WithAgentID(agentID).WithCause(err)
	return ae
}
