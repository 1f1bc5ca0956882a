package agenterr

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestAgentErrorErrorIncludesCause(t *testing.T) {
	cause := errors.New("boom")
	e := New("provider failed", CategoryProvider, SeverityHigh, true).WithCause(cause)
	require.Equal(t, "provider failed: boom", e.Error())
	require.True(t, errors.Is(e, cause))
}

func TestAgentErrorWithAgentIDIsACopy(t *testing.T) {
	original := New("msg", CategoryTimeout, SeverityMedium, true)
	tagged := original.WithAgentID("agent-1")
	require.Equal(t, "agent-1", tagged.AgentID)
	require.Empty(t, original.AgentID)
}

func TestIsCancellationDetectsErrCancelledAndContextCanceled(t *testing.T) {
	require.True(t, IsCancellation(ErrCancelled))
	require.True(t, IsCancellation(context.Canceled))
	require.True(t, IsCancellation(fmt.Errorf("wrapped: %w", ErrCancelled)))
	require.False(t, IsCancellation(errors.New("other")))
}
