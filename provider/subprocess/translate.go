package subprocess

import (
	"encoding/json"

	"github.com/goa-design/agentswarm/agentprovider"
)

// translateNotification converts one inbound JSON-RPC notification into zero
// or more stream chunks, dispatching on which notification family the
// payload matches. The sub-process provider must translate either wire
// shape into the same canonical stream-chunk protocol (spec.md §6: "the
// provider must translate these identically so downstream consumers see
// the same stream-chunk protocol regardless of the underlying agent").
func translateNotification(method string, params json.RawMessage) []agentprovider.StreamChunk {
	switch method {
	case "session/update":
		var upd sessionUpdate
		if err := json.Unmarshal(params, &upd); err != nil {
			return nil
		}
		return translateSessionUpdate(upd)
	default:
		var evt streamEventMessage
		if err := json.Unmarshal(params, &evt); err != nil || evt.Type == "" {
			return nil
		}
		return translateStreamEvent(evt)
	}
}

func translateSessionUpdate(upd sessionUpdate) []agentprovider.StreamChunk {
	u := upd.Update
	switch u.SessionUpdate {
	case "agent_message_chunk":
		return []agentprovider.StreamChunk{agentprovider.TextChunk(u.Text)}
	case "agent_thought_chunk":
		return []agentprovider.StreamChunk{agentprovider.ThinkingChunkOf(agentprovider.ThinkingChunk, u.Text)}
	case "tool_call":
		return []agentprovider.StreamChunk{{
			Kind:       agentprovider.ChunkToolCall,
			ToolName:   u.Title,
			ToolStatus: mapToolStatus(u.Status),
			ToolArgs:   string(u.RawInput),
		}}
	case "tool_call_update":
		return []agentprovider.StreamChunk{{
			Kind:       agentprovider.ChunkToolCall,
			ToolName:   u.Title,
			ToolStatus: mapToolStatus(u.Status),
			ToolResult: string(u.RawOutput),
		}}
	default:
		return nil
	}
}

func translateStreamEvent(evt streamEventMessage) []agentprovider.StreamChunk {
	switch evt.Type {
	case "assistant":
		var chunks []agentprovider.StreamChunk
		for _, block := range evt.Message.Content {
			switch block.Type {
			case "text":
				chunks = append(chunks, agentprovider.TextChunk(block.Text))
			case "thinking":
				chunks = append(chunks, agentprovider.ThinkingChunkOf(agentprovider.ThinkingChunk, block.Text))
			case "tool_use":
				chunks = append(chunks, agentprovider.StreamChunk{
					Kind:       agentprovider.ChunkToolCall,
					ToolName:   block.Name,
					ToolStatus: mapToolStatus("started"),
					ToolArgs:   string(block.Input),
				})
			}
		}
		return chunks
	case "result":
		if evt.IsError {
			return []agentprovider.StreamChunk{agentprovider.ErrorChunk(evt.Result, true)}
		}
		return nil
	case "system", "user", "stream_event":
		return nil
	default:
		return nil
	}
}
