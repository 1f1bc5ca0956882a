package subprocess

import (
	"context"
	"os/exec"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/goa-design/agentswarm/agentprovider"
	"github.com/goa-design/agentswarm/internal/telemetry"
)

// echoSpawner starts a tiny shell script that, for every line read on stdin,
// writes back a JSON-RPC response echoing the request id, plus one
// unsolicited notification up front. This stands in for a real agent binary
// the way the teacher's StdioCaller tests would script a fixture process.
func echoSpawner(t *testing.T) Spawner {
	t.Helper()
	script := `printf '{"jsonrpc":"2.0","method":"session/update","params":{"update":{"sessionUpdate":"agent_message_chunk","text":"hi"}}}\n'
while IFS= read -r line; do
  id=$(printf '%s' "$line" | sed -n 's/.*"id":\([0-9]*\).*/\1/p')
  printf '{"jsonrpc":"2.0","id":%s,"result":{"echo":true}}\n' "$id"
done
`
	return func(ctx context.Context, agentID string) (*exec.Cmd, error) {
		return exec.CommandContext(ctx, "sh", "-c", script), nil
	}
}

func TestProcessCallReturnsMatchingResponse(t *testing.T) {
	var chunks []agentprovider.StreamChunk
	sink := func(_ string, c agentprovider.StreamChunk) { chunks = append(chunks, c) }

	p, err := newProcess(context.Background(), "agent-1", echoSpawner(t), sink, telemetry.NoopLogger{})
	require.NoError(t, err)
	defer p.close()

	result, err := p.call(context.Background(), "run", map[string]string{"prompt": "hi"})
	require.NoError(t, err)
	require.JSONEq(t, `{"echo":true}`, string(result))
}

func TestProcessRoutesNotificationsToSink(t *testing.T) {
	var chunks []agentprovider.StreamChunk
	sink := func(_ string, c agentprovider.StreamChunk) { chunks = append(chunks, c) }

	p, err := newProcess(context.Background(), "agent-1", echoSpawner(t), sink, telemetry.NoopLogger{})
	require.NoError(t, err)
	defer p.close()

	// The notification is sent by the script before reading any request; the
	// first call below gives the read loop time to have already delivered it.
	_, err = p.call(context.Background(), "run", map[string]string{"prompt": "hi"})
	require.NoError(t, err)

	require.Eventually(t, func() bool { return len(chunks) > 0 }, time.Second, 10*time.Millisecond)
	require.Equal(t, agentprovider.ChunkText, chunks[0].Kind)
	require.Equal(t, "hi", chunks[0].Content)
}

func TestProcessCallFailsWhenContextCancelled(t *testing.T) {
	// A spawner whose process never responds lets us exercise the ctx.Done
	// branch deterministically.
	spawn := func(ctx context.Context, agentID string) (*exec.Cmd, error) {
		return exec.CommandContext(ctx, "sh", "-c", "cat >/dev/null"), nil
	}
	p, err := newProcess(context.Background(), "agent-1", spawn, func(string, agentprovider.StreamChunk) {}, telemetry.NoopLogger{})
	require.NoError(t, err)
	defer p.close()

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	_, err = p.call(ctx, "run", map[string]string{"prompt": "hi"})
	require.ErrorIs(t, err, context.DeadlineExceeded)
}

func TestProcessInterruptIsIdempotent(t *testing.T) {
	spawn := func(ctx context.Context, agentID string) (*exec.Cmd, error) {
		return exec.CommandContext(ctx, "sh", "-c", "cat >/dev/null"), nil
	}
	p, err := newProcess(context.Background(), "agent-1", spawn, func(string, agentprovider.StreamChunk) {}, telemetry.NoopLogger{})
	require.NoError(t, err)
	defer p.close()

	require.NoError(t, p.interrupt())
	require.NoError(t, p.interrupt())
}

func TestProcessCloseIsIdempotentAndFailsPendingCalls(t *testing.T) {
	spawn := func(ctx context.Context, agentID string) (*exec.Cmd, error) {
		return exec.CommandContext(ctx, "sh", "-c", "cat >/dev/null"), nil
	}
	p, err := newProcess(context.Background(), "agent-1", spawn, func(string, agentprovider.StreamChunk) {}, telemetry.NoopLogger{})
	require.NoError(t, err)

	done := make(chan error, 1)
	go func() {
		_, err := p.call(context.Background(), "run", map[string]string{"prompt": "hi"})
		done <- err
	}()
	time.Sleep(20 * time.Millisecond)

	require.NoError(t, p.close())
	require.NoError(t, p.close())

	select {
	case err := <-done:
		require.Error(t, err)
	case <-time.After(time.Second):
		t.Fatal("pending call never failed after close")
	}
}
