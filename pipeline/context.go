// Package pipeline implements the stage-composed control plane from
// spec.md §4.7: an ordered list of stages driven over a bounded iteration
// budget, with per-stage retry policy, a stage-recovery handler, and a
// cancellation-aware execution loop that emits pipeline events as it goes.
// It is the top of the data flow described in spec.md §2: the pipeline
// drives the coordinator, which mutates the stores and publishes to the
// domain event bus, while providers stream chunks back up through the
// context's chunk sink.
package pipeline

import (
	"context"
	"sync"
	"sync/atomic"

	"github.com/goa-design/agentswarm/agentprovider"
	"github.com/goa-design/agentswarm/coordinator"
	"github.com/goa-design/agentswarm/internal/agenterr"
	"github.com/goa-design/agentswarm/internal/telemetry"
	"github.com/goa-design/agentswarm/router"
	"github.com/goa-design/agentswarm/store"
)

// Well-known metadata keys (spec.md §4.7).
const (
	MetaPlanOutput        = "planOutput"
	MetaTaskIDs           = "taskIds"
	MetaCoordinatorAgent  = "coordinatorAgentId"
	MetaWaveNumber        = "waveNumber"
	MetaDelegations       = "delegations"
)

// PhaseEventKind tags one of the granular, UI-facing phase notifications a
// stage emits through the context's phase-change sink (spec.md §4.7's
// default-stage descriptions: PlanReady, TasksRegistered, WaveStarting,
// CrafterRunning, CrafterCompleted, VerificationStarting,
// VerificationCompleted). These are distinct from both the coordinator's
// own Phase (spec.md §4.6) and the pipeline event stream (spec.md §4.7):
// they are a finer-grained narration of what a stage is doing, intended for
// an observer surface.
type PhaseEventKind string

const (
	PhasePlanReady             PhaseEventKind = "plan_ready"
	PhaseTasksRegistered       PhaseEventKind = "tasks_registered"
	PhaseWaveStarting          PhaseEventKind = "wave_starting"
	PhaseCrafterRunning        PhaseEventKind = "crafter_running"
	PhaseCrafterCompleted      PhaseEventKind = "crafter_completed"
	PhaseVerificationStarting  PhaseEventKind = "verification_starting"
	PhaseVerificationCompleted PhaseEventKind = "verification_completed"
)

// PhaseEvent is one granular phase notification (see PhaseEventKind).
type PhaseEvent struct {
	Kind       PhaseEventKind
	Count      int
	WaveNumber int
	AgentID    string
	TaskID     string
}

// PhaseSink receives phase notifications. A nil sink is valid; stages must
// guard calls through Context.NotifyPhase rather than invoking the sink
// field directly.
type PhaseSink func(PhaseEvent)

// CancelHandle is the single parent cancellation handle that propagates
// from the caller into the pipeline context (spec.md §5). It is shared
// between one orchestration run and whatever external code calls
// stopExecution; cancelling it is idempotent and observable from any
// goroutine.
type CancelHandle struct {
	cancelled atomic.Bool
}

// NewCancelHandle constructs an un-cancelled handle.
func NewCancelHandle() *CancelHandle { return &CancelHandle{} }

// Cancel marks the handle cancelled. Idempotent (spec.md §8 property 7).
func (c *CancelHandle) Cancel() { c.cancelled.Store(true) }

// Cancelled reports whether Cancel has been called.
func (c *CancelHandle) Cancelled() bool { return c.cancelled.Load() }

// Context is the pipeline's per-run state: an immutable configuration bundle
// plus a mutable string-keyed metadata map for inter-stage communication
// (spec.md §4.7).
type Context struct {
	// Immutable configuration.
	Stores           *store.Stores
	Coordinator      *coordinator.Coordinator
	Router           *router.Router
	Workspace        string
	UserRequest      string
	ParallelCrafters bool
	ReportParser     ReportParser
	PhaseSink        PhaseSink
	ChunkSink        agentprovider.Sink
	Cancel           *CancelHandle
	Logger           telemetry.Logger
	Tracer           telemetry.Tracer
	Metrics          telemetry.Metrics

	mu       sync.Mutex
	metadata map[string]any
}

// NewContext constructs a Context with an initialized metadata map and
// no-op telemetry defaults when unset.
func NewContext(cfg Context) *Context {
	cfg.metadata = make(map[string]any)
	if cfg.Logger == nil {
		cfg.Logger = telemetry.NoopLogger{}
	}
	if cfg.Tracer == nil {
		cfg.Tracer = telemetry.NoopTracer{}
	}
	if cfg.Metrics == nil {
		cfg.Metrics = telemetry.NoopMetrics{}
	}
	if cfg.Cancel == nil {
		cfg.Cancel = NewCancelHandle()
	}
	if cfg.ReportParser == nil {
		cfg.ReportParser = DefaultReportParser{}
	}
	return &cfg
}

// Set stores a metadata value under key.
func (c *Context) Set(key string, value any) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.metadata[key] = value
}

// Get returns the metadata value for key and whether it was present.
func (c *Context) Get(key string) (any, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	v, ok := c.metadata[key]
	return v, ok
}

// GetString returns the metadata value for key as a string, or "" if absent
// or not a string.
func (c *Context) GetString(key string) string {
	v, ok := c.Get(key)
	if !ok {
		return ""
	}
	s, _ := v.(string)
	return s
}

// GetStringSlice returns the metadata value for key as a []string, or nil.
func (c *Context) GetStringSlice(key string) []string {
	v, ok := c.Get(key)
	if !ok {
		return nil
	}
	s, _ := v.([]string)
	return s
}

// GetInt returns the metadata value for key as an int, or 0 if absent.
func (c *Context) GetInt(key string) int {
	v, ok := c.Get(key)
	if !ok {
		return 0
	}
	i, _ := v.(int)
	return i
}

// NotifyPhase delivers evt to the phase-change sink if one is configured.
func (c *Context) NotifyPhase(evt PhaseEvent) {
	if c.PhaseSink != nil {
		c.PhaseSink(evt)
	}
}

// EnsureActive checks the parent cancellation handle and ctx, raising a
// cancellation error if either has fired (spec.md §4.7: "Stages must call
// ensureActive(ctx) before any long operation"). This is the "atomic-bool
// check + early-return" model of cooperative suspension spec.md §9
// describes for languages without structured concurrency.
func (c *Context) EnsureActive(ctx context.Context) error {
	if c.Cancel != nil && c.Cancel.Cancelled() {
		return agenterr.ErrCancelled
	}
	select {
	case <-ctx.Done():
		return ctx.Err()
	default:
		return nil
	}
}
