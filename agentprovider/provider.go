package agentprovider

import (
	"context"

	"github.com/goa-design/agentswarm/domain"
)

// Provider is the uniform driver interface every agent backend implements
// (spec.md §4.3).
type Provider interface {
	// Run executes one agent turn to completion and returns the produced
	// text. It fails with a Provider, Timeout, Session, Process, or
	// Configuration classified error.
	Run(ctx context.Context, role domain.Role, agentID, prompt string) (string, error)

	// RunStreaming invokes sink for each produced chunk in emission order.
	// Implementations must emit at least one Heartbeat chunk upon connect
	// and exactly one Completed chunk on success; on failure they emit an
	// Error chunk before returning the error.
	RunStreaming(ctx context.Context, role domain.Role, agentID, prompt string, sink Sink) (string, error)

	// IsHealthy reports whether agentID's run is currently healthy.
	// Implementation-specific; a provider with no process model may always
	// return true.
	IsHealthy(agentID string) bool

	// Interrupt requests that agentID's run stop promptly. Idempotent.
	Interrupt(agentID string) error

	// Cleanup releases any resources associated with agentID. Idempotent.
	Cleanup(agentID string) error

	// Shutdown releases all resources held by the provider. Idempotent.
	Shutdown() error

	// Capabilities describes what this provider supports.
	Capabilities() Capabilities
}

// StreamFallback runs the given runFn and delivers its result as the
// default streaming fallback (spec.md §4.3: "Default fallback: invoke run
// and deliver the result as a single Text chunk followed by Completed").
// Concrete providers that have no native incremental streaming call this
// from their RunStreaming implementation.
func StreamFallback(
	ctx context.Context,
	role domain.Role,
	agentID, prompt string,
	sink Sink,
	runFn func(context.Context, domain.Role, string, string) (string, error),
) (string, error) {
	sink(agentID, HeartbeatChunk())
	text, err := runFn(ctx, role, agentID, prompt)
	if err != nil {
		sink(agentID, ErrorChunk(err.Error(), false))
		return "", err
	}
	sink(agentID, TextChunk(text))
	sink(agentID, CompletedChunk("stop"))
	return text, nil
}
