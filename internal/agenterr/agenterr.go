// Package agenterr defines the structured error type propagated out of
// providers, stages, and decorators. It mirrors the chain-preserving shape
// of the teacher's runtime/agent/toolerrors.ToolError so errors.Is/As keep
// working across retries and decorator layers, while adding the
// category/severity/recoverable triad spec.md §4.4 and §7 require.
package agenterr

import (
	"context"
	"errors"
	"fmt"
)

// Category is the canonical error kind assigned by the classifier (spec.md
// §4.4). Category values are also used as recovery-registry keys.
type Category string

// Severity ranks how urgently an error category should be surfaced.
type Severity string

const (
	CategoryNetwork       Category = "network"
	CategoryTimeout       Category = "timeout"
	CategoryProvider      Category = "provider"
	CategoryRateLimit     Category = "rate_limit"
	CategoryStreaming     Category = "streaming"
	CategorySession       Category = "session"
	CategoryProcess       Category = "process"
	CategoryConfiguration Category = "configuration"
	CategoryMemory        Category = "memory"
	CategoryPermission    Category = "permission"
	CategoryUnknown       Category = "unknown"

	SeverityCritical Severity = "critical"
	SeverityHigh     Severity = "high"
	SeverityMedium   Severity = "medium"
	SeverityLow      Severity = "low"
)

// AgentError is the structured error raised by providers and decorators. It
// preserves message and causal context while implementing the standard
// error interface, and carries the agent id that was executing when the
// failure occurred (spec.md §7: "Inside a provider: classify and raise an
// AgentException carrying category/severity/recoverable/agentId").
type AgentError struct {
	Message     string
	Category    Category
	Severity    Severity
	Recoverable bool
	AgentID     string
	Cause       error
}

// New constructs an AgentError with the given category/severity/recoverable
// triad. message must be non-empty.
func New(message string, category Category, severity Severity, recoverable bool) *AgentError {
	return &AgentError{Message: message, Category: category, Severity: severity, Recoverable: recoverable}
}

// WithAgentID returns a copy of the error annotated with the agent id.
func (e *AgentError) WithAgentID(agentID string) *AgentError {
	if e == nil {
		return nil
	}
	cp := *e
	cp.AgentID = agentID
	return &cp
}

// WithCause returns a copy of the error wrapping cause.
func (e *AgentError) WithCause(cause error) *AgentError {
	if e == nil {
		return nil
	}
	cp := *e
	cp.Cause = cause
	return &cp
}

// Error implements the error interface.
func (e *AgentError) Error() string {
	if e == nil {
		return ""
	}
	if e.Cause != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.Cause)
	}
	return e.Message
}

// Unwrap supports errors.Is/errors.As across the cause chain.
func (e *AgentError) Unwrap() error {
	if e == nil {
		return nil
	}
	return e.Cause
}

// ErrCancelled is returned by ensureActive-style checks and must never be
// classified as recoverable (spec.md §5 "Cancellation is never classified
// as a recoverable error").
var ErrCancelled = errors.New("agentswarm: cancelled")

// IsCancellation reports whether err is, or wraps, ErrCancelled or a
// context.Canceled error.
func IsCancellation(err error) bool {
	return errors.Is(err, ErrCancelled) || errors.Is(err, context.Canceled)
}
