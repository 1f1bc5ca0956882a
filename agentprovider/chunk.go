package agentprovider

import (
	"time"

	"github.com/goa-design/agentswarm/domain"
)

// ChunkKind tags a StreamChunk variant (spec.md §3).
type ChunkKind string

const (
	ChunkText             ChunkKind = "text"
	ChunkThinking         ChunkKind = "thinking"
	ChunkToolCall         ChunkKind = "tool_call"
	ChunkHeartbeat        ChunkKind = "heartbeat"
	ChunkError            ChunkKind = "error"
	ChunkCompleted        ChunkKind = "completed"
	ChunkCompletionReport ChunkKind = "completion_report"
)

// ThinkingPhase tags the lifecycle position of a Thinking chunk.
type ThinkingPhase string

const (
	ThinkingStart ThinkingPhase = "start"
	ThinkingChunk ThinkingPhase = "chunk"
	ThinkingEnd   ThinkingPhase = "end"
)

// StreamChunk is a flat tagged-variant unit of incremental provider output
// (spec.md §3), mirroring domain.Event's closed-struct style rather than an
// interface hierarchy (spec.md §9: static dispatch over runtime
// polymorphism).
type StreamChunk struct {
	Kind      ChunkKind
	Timestamp time.Time

	// Text
	Content string

	// Thinking (also uses Content)
	ThinkingPhase ThinkingPhase

	// ToolCall
	ToolName       string
	ToolStatus     domain.ToolCallStatus
	ToolArgs       string
	ToolResult     string

	// Error
	Message     string
	Recoverable bool

	// Completed
	StopReason string
	TokenCount int
	HasTokenCount bool

	// CompletionReport
	Report domain.CompletionReport
}

// Sink receives one chunk at a time for a given agent id. Implementations
// must not block: the provider never waits on a slow sink beyond a bounded
// buffer (spec.md §9 "Streaming sinks"). Back-pressure is the sink's
// responsibility.
type Sink func(agentID string, chunk StreamChunk)

// TextChunk builds a Text chunk.
func TextChunk(content string) StreamChunk {
	return StreamChunk{Kind: ChunkText, Timestamp: time.Now(), Content: content}
}

// ThinkingChunkOf builds a Thinking chunk.
func ThinkingChunkOf(phase ThinkingPhase, content string) StreamChunk {
	return StreamChunk{Kind: ChunkThinking, Timestamp: time.Now(), ThinkingPhase: phase, Content: content}
}

// HeartbeatChunk builds a Heartbeat chunk.
func HeartbeatChunk() StreamChunk {
	return StreamChunk{Kind: ChunkHeartbeat, Timestamp: time.Now()}
}

// ErrorChunk builds an Error chunk.
func ErrorChunk(message string, recoverable bool) StreamChunk {
	return StreamChunk{Kind: ChunkError, Timestamp: time.Now(), Message: message, Recoverable: recoverable}
}

// CompletedChunk builds a Completed chunk with no token count.
func CompletedChunk(stopReason string) StreamChunk {
	return StreamChunk{Kind: ChunkCompleted, Timestamp: time.Now(), StopReason: stopReason}
}

// CompletedChunkWithTokens builds a Completed chunk carrying a token count.
func CompletedChunkWithTokens(stopReason string, tokenCount int) StreamChunk {
	return StreamChunk{Kind: ChunkCompleted, Timestamp: time.Now(), StopReason: stopReason, TokenCount: tokenCount, HasTokenCount: true}
}

// CompletionReportChunk builds a CompletionReport chunk.
func CompletionReportChunk(report domain.CompletionReport) StreamChunk {
	return StreamChunk{Kind: ChunkCompletionReport, Timestamp: time.Now(), Report: report}
}
