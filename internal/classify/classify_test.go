package classify

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/goa-design/agentswarm/internal/agenterr"
)

func TestClassifyOrderedPatterns(t *testing.T) {
	cases := []struct {
		name     string
		err      error
		category agenterr.Category
	}{
		{"network", errors.New("dial tcp: connection refused"), agenterr.CategoryNetwork},
		{"timeout", errors.New("context deadline exceeded"), agenterr.CategoryTimeout},
		{"rate limit", errors.New("429 too many requests"), agenterr.CategoryRateLimit},
		{"provider", errors.New("upstream returned 503 bad gateway"), agenterr.CategoryProvider},
		{"streaming", errors.New("sse stream closed mid-chunk"), agenterr.CategoryStreaming},
		{"session", errors.New("conversation not found"), agenterr.CategorySession},
		{"process", errors.New("process exited with exit status 1"), agenterr.CategoryProcess},
		{"configuration", errors.New("invalid config value"), agenterr.CategoryConfiguration},
		{"memory", errors.New("out of memory"), agenterr.CategoryMemory},
		{"permission", errors.New("permission denied"), agenterr.CategoryPermission},
		{"unknown", errors.New("something unexpected happened"), agenterr.CategoryUnknown},
	}
	for _, c := range cases {
		t.Run(c.name, func(t *testing.T) {
			got := Classify(c.err)
			require.Equal(t, c.category, got.Category)
		})
	}
}

func TestClassifyNetworkBeforeTimeout(t *testing.T) {
	got := Classify(errors.New("network timeout while dialing"))
	require.Equal(t, agenterr.CategoryNetwork, got.Category)
}

func TestClassifyRateLimitBeforeProvider(t *testing.T) {
	got := Classify(errors.New("provider rate limit exceeded"))
	require.Equal(t, agenterr.CategoryRateLimit, got.Category)
}

func TestClassifyNilErrorIsNil(t *testing.T) {
	require.Nil(t, Classify(nil))
}

func TestClassifyPreservesExistingAgentError(t *testing.T) {
	original := agenterr.New("already classified", agenterr.CategorySession, agenterr.SeverityMedium, true)
	got := Classify(original)
	require.Same(t, original, got)
}

func TestClassifyAssignsFixedSeverityAndRecoverable(t *testing.T) {
	got := Classify(errors.New("permission denied"))
	require.Equal(t, agenterr.SeverityCritical, got.Severity)
	require.False(t, got.Recoverable)
}
