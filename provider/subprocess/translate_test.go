package subprocess

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/goa-design/agentswarm/agentprovider"
)

func TestTranslateSessionUpdateAgentMessageChunk(t *testing.T) {
	params, err := json.Marshal(map[string]any{
		"update": map[string]any{"sessionUpdate": "agent_message_chunk", "text": "hello"},
	})
	require.NoError(t, err)

	chunks := translateNotification("session/update", params)
	require.Len(t, chunks, 1)
	require.Equal(t, agentprovider.ChunkText, chunks[0].Kind)
	require.Equal(t, "hello", chunks[0].Content)
}

func TestTranslateSessionUpdateToolCallAndUpdate(t *testing.T) {
	started, err := json.Marshal(map[string]any{
		"update": map[string]any{"sessionUpdate": "tool_call", "title": "grep", "status": "started", "rawInput": json.RawMessage(`{"q":"x"}`)},
	})
	require.NoError(t, err)
	chunks := translateNotification("session/update", started)
	require.Len(t, chunks, 1)
	require.Equal(t, agentprovider.ChunkToolCall, chunks[0].Kind)
	require.Equal(t, "grep", chunks[0].ToolName)

	done, err := json.Marshal(map[string]any{
		"update": map[string]any{"sessionUpdate": "tool_call_update", "title": "grep", "status": "completed", "rawOutput": json.RawMessage(`{"n":3}`)},
	})
	require.NoError(t, err)
	chunks = translateNotification("session/update", done)
	require.Len(t, chunks, 1)
	require.NotEmpty(t, chunks[0].ToolResult)
}

func TestTranslateSessionUpdateUnknownKindYieldsNothing(t *testing.T) {
	params, err := json.Marshal(map[string]any{
		"update": map[string]any{"sessionUpdate": "something_new"},
	})
	require.NoError(t, err)
	require.Empty(t, translateNotification("session/update", params))
}

func TestTranslateStreamEventAssistantBlocks(t *testing.T) {
	params, err := json.Marshal(map[string]any{
		"type": "assistant",
		"message": map[string]any{
			"content": []map[string]any{
				{"type": "text", "text": "hi"},
				{"type": "thinking", "text": "hmm"},
				{"type": "tool_use", "name": "bash", "input": json.RawMessage(`{"cmd":"ls"}`)},
			},
		},
	})
	require.NoError(t, err)

	chunks := translateNotification("custom_method", params)
	require.Len(t, chunks, 3)
	require.Equal(t, agentprovider.ChunkText, chunks[0].Kind)
	require.Equal(t, agentprovider.ChunkThinking, chunks[1].Kind)
	require.Equal(t, agentprovider.ChunkToolCall, chunks[2].Kind)
	require.Equal(t, "bash", chunks[2].ToolName)
}

func TestTranslateStreamEventErrorResult(t *testing.T) {
	params, err := json.Marshal(map[string]any{
		"type": "result", "is_error": true, "result": "boom",
	})
	require.NoError(t, err)

	chunks := translateNotification("custom_method", params)
	require.Len(t, chunks, 1)
	require.Equal(t, agentprovider.ChunkError, chunks[0].Kind)
}

func TestTranslateStreamEventNonErrorResultAndOtherTypesYieldNothing(t *testing.T) {
	for _, typ := range []string{"system", "user", "stream_event"} {
		params, err := json.Marshal(map[string]any{"type": typ})
		require.NoError(t, err)
		require.Empty(t, translateNotification("custom_method", params), "type=%s", typ)
	}

	ok, err := json.Marshal(map[string]any{"type": "result", "is_error": false})
	require.NoError(t, err)
	require.Empty(t, translateNotification("custom_method", ok))
}

func TestTranslateNotificationIgnoresMalformedPayload(t *testing.T) {
	require.Empty(t, translateNotification("session/update", json.RawMessage(`not json`)))
	require.Empty(t, translateNotification("custom_method", json.RawMessage(`not json`)))
}
