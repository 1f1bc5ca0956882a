// Command demo wires up a complete, in-memory run of the orchestration
// engine: stores, event bus, coordinator, capability router, a resilience
// decorated provider, and the stage-composed pipeline engine, then runs one
// user request to completion and prints the resulting task summaries.
//
// The provider registered here is a fixed-response stand-in (echoProvider)
// rather than a real LLM backend, so the demo runs without network access
// or API credentials; swap in provider/subprocess or one of the
// provider/inprocess clients to drive the same pipeline against a real
// backend.
package main

import (
	"context"
	"fmt"

	"github.com/goa-design/agentswarm/agentprovider"
	"github.com/goa-design/agentswarm/coordinator"
	"github.com/goa-design/agentswarm/domain"
	"github.com/goa-design/agentswarm/eventbus"
	"github.com/goa-design/agentswarm/internal/config"
	"github.com/goa-design/agentswarm/pipeline"
	"github.com/goa-design/agentswarm/resilience"
	"github.com/goa-design/agentswarm/router"
	"github.com/goa-design/agentswarm/store"
	"github.com/goa-design/agentswarm/system"
)

func main() {
	ctx := context.Background()
	cfg := config.Default()

	bus := eventbus.NewBus(cfg.ReplaySize, cfg.MaxLogSize)
	stores := store.NewStores(bus)
	workspace := stores.Workspaces.Create()

	rt := router.New()
	breakers := resilience.NewRegistry(resilience.BreakerConfig(cfg.Breaker))
	recovery := resilience.NewRecoveryRegistry(nil)
	rt.Register(resilience.Decorate(&echoProvider{}, resilience.DecoratorConfig{
		Breakers:                   breakers,
		Recovery:                   recovery,
		MaxSessionRecoveryAttempts: cfg.MaxSessionRecoveryAttempts,
		RateLimiter:                resilience.NewAdaptiveRateLimiter(cfg.InitialTPM, cfg.MaxTPM),
	}))

	coord := coordinator.New(stores, bus, workspace.ID)
	sys := system.New(stores, bus, coord, rt, breakers, workspace.ID)

	unsub := bus.Register(eventbus.SubscriberFunc(func(_ context.Context, e domain.Event) error {
		fmt.Printf("[domain] %s\n", e.Kind)
		return nil
	}))
	defer unsub.Close()

	engine := pipeline.NewEngine(pipeline.DefaultStages(), cfg.MaxIterations, pipeline.DefaultRecoveryHandler{}, nil)
	sub := engine.Bus().Register(func(e pipeline.Event) {
		fmt.Printf("[pipeline] %s %s\n", e.Kind, e.StageName)
	})
	defer sub.Close()

	pc := pipeline.NewContext(pipeline.Context{
		Stores:           stores,
		Coordinator:      coord,
		Router:           rt,
		Workspace:        workspace.ID,
		UserRequest:      "Add a health check endpoint and cover it with a test.",
		ParallelCrafters: cfg.ParallelCrafters,
		PhaseSink: func(e pipeline.PhaseEvent) {
			fmt.Printf("[phase] %s\n", e.Kind)
		},
	})

	outcome := engine.Run(ctx, pc)
	fmt.Println("outcome:", outcome.Kind)
	for _, t := range outcome.TaskSummaries {
		fmt.Printf("  - %s: %s (%s)\n", t.Title, t.Status, t.Verdict)
	}

	// The pipeline above drives the stores/coordinator/router directly, as
	// befits the internal control plane (spec.md §1). Everything past this
	// point is what an external shell (CLI, IDE extension, web server)
	// would instead see through the system.System facade (spec.md §6).
	for _, agent := range sys.ListAgents(workspace.ID) {
		summary, err := sys.GetAgentSummary(agent.ID)
		if err != nil {
			continue
		}
		fmt.Printf("[agent] %s role=%s status=%s task=%q\n", summary.Name, summary.Role, summary.Status, summary.TaskTitle)
	}
	for name, metrics := range sys.CircuitBreakerMetrics() {
		fmt.Printf("[breaker] %s state=%s failures=%d\n", name, metrics.State, metrics.Failures)
	}

	if coordAgentID := pc.GetString(pipeline.MetaCoordinatorAgent); coordAgentID != "" {
		res := sys.MessageAgent(ctx, "user", coordAgentID, "Nice work, ship it.")
		fmt.Println("[messageAgent]", res.Success)
		fmt.Println("[conversation]", sys.GetConversation(coordAgentID, 0))
	}
}

// echoProvider is a fixed-response agentprovider.Provider satisfying every
// role's capability requirements at once, used only to make this demo
// runnable without external credentials.
type echoProvider struct{}

func (echoProvider) Run(_ context.Context, role domain.Role, _, _ string) (string, error) {
	switch role {
	case domain.RoleCoordinator:
		return coordinatorPlan, nil
	case domain.RoleVerifier:
		return "APPROVED: both tasks meet their definition of done.", nil
	default:
		return "Done.\nModified files: health.go, health_test.go", nil
	}
}

func (p echoProvider) RunStreaming(ctx context.Context, role domain.Role, agentID, prompt string, sink agentprovider.Sink) (string, error) {
	return agentprovider.StreamFallback(ctx, role, agentID, prompt, sink, p.Run)
}

func (echoProvider) IsHealthy(string) bool  { return true }
func (echoProvider) Interrupt(string) error { return nil }
func (echoProvider) Cleanup(string) error   { return nil }
func (echoProvider) Shutdown() error        { return nil }

func (echoProvider) Capabilities() agentprovider.Capabilities {
	return agentprovider.Capabilities{
		Name: "echo",
		Supports: agentprovider.Supports{
			Streaming:   true,
			Interrupt:   true,
			HealthCheck: true,
			FileEditing: true,
			Terminal:    true,
			ToolCalling: true,
		},
		MaxConcurrentAgents: 4,
		Priority:            1,
	}
}

const coordinatorPlan = `Here is the plan.

@@@task
# Add health check endpoint
## Objective
Expose a GET /healthz endpoint returning 200 OK.
## Scope
- health.go
## Definition of Done
- Endpoint registered and returns 200
@@@

@@@task
# Test health check endpoint
## Objective
Add a test exercising the new endpoint.
## Scope
- health_test.go
## Definition of Done
- Test passes and covers the happy path
## Dependencies
Add health check endpoint
@@@
`
