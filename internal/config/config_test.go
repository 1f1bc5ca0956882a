package config

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestDefaultMatchesSpecDefaults(t *testing.T) {
	d := Default()
	require.Equal(t, 3, d.MaxIterations)
	require.False(t, d.ParallelCrafters)
	require.Equal(t, 5, d.Breaker.FailureThreshold)
	require.Equal(t, 2, d.Breaker.SuccessThreshold)
	require.Equal(t, 10, d.Breaker.VolumeThreshold)
	require.Equal(t, 32, d.ReplaySize)
	require.Equal(t, 500, d.MaxLogSize)
	require.Equal(t, 2, d.MaxSessionRecoveryAttempts)
	require.Equal(t, float64(60000), d.InitialTPM)
	require.Equal(t, float64(120000), d.MaxTPM)
}

func TestLoadWithEmptyDocumentReturnsDefault(t *testing.T) {
	out, err := Load(nil)
	require.NoError(t, err)
	require.Equal(t, Default(), out)
}

func TestLoadOverridesOnlyNamedFields(t *testing.T) {
	doc := []byte(`
maxIterations: 5
parallelCrafters: true
breaker:
  failureThreshold: 9
initialTPM: 1000
`)
	out, err := Load(doc)
	require.NoError(t, err)
	require.Equal(t, 5, out.MaxIterations)
	require.True(t, out.ParallelCrafters)
	require.Equal(t, 9, out.Breaker.FailureThreshold)
	require.Equal(t, 2, out.Breaker.SuccessThreshold, "unset fields keep their default")
	require.Equal(t, float64(1000), out.InitialTPM)
	require.Equal(t, float64(120000), out.MaxTPM, "unset MaxTPM keeps its default")
}

func TestLoadRejectsUnknownField(t *testing.T) {
	_, err := Load([]byte("maxIteratons: 5\n"))
	require.Error(t, err)
}

func TestLoadRejectsInvalidType(t *testing.T) {
	_, err := Load([]byte("maxIterations: \"not a number\"\n"))
	require.Error(t, err)
}

func TestLoadDecodesMillisecondDurations(t *testing.T) {
	out, err := Load([]byte("breaker:\n  timeoutMs: 2500\nstalenessThresholdMs: 1000\n"))
	require.NoError(t, err)
	require.Equal(t, 2500_000_000, int(out.Breaker.Timeout))
	require.Equal(t, 1000_000_000, int(out.StalenessThreshold))
}
