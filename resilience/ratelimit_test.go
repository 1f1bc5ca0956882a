package resilience

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/goa-design/agentswarm/internal/agenterr"
)

func TestAdaptiveRateLimiterBacksOffOnRateLimitAndProbesBackOnSuccess(t *testing.T) {
	l := NewAdaptiveRateLimiter(1000, 1000)
	require.Equal(t, float64(1000), l.CurrentTPM())

	l.observe(agenterr.New("rate limited", agenterr.CategoryRateLimit, agenterr.SeverityMedium, true))
	require.Equal(t, float64(500), l.CurrentTPM())

	l.observe(nil)
	require.Greater(t, l.CurrentTPM(), float64(500))
}

func TestAdaptiveRateLimiterBackoffNeverGoesBelowMinTPM(t *testing.T) {
	l := NewAdaptiveRateLimiter(10, 10)
	for i := 0; i < 20; i++ {
		l.observe(agenterr.New("rate limited", agenterr.CategoryRateLimit, agenterr.SeverityMedium, true))
	}
	require.GreaterOrEqual(t, l.CurrentTPM(), float64(1))
}

func TestAdaptiveRateLimiterProbeNeverExceedsMaxTPM(t *testing.T) {
	l := NewAdaptiveRateLimiter(1000, 1200)
	for i := 0; i < 50; i++ {
		l.observe(nil)
	}
	require.LessOrEqual(t, l.CurrentTPM(), float64(1200))
}

func TestEstimateTokensIsNeverZeroAndGrowsWithLength(t *testing.T) {
	require.Greater(t, estimateTokens(""), 0)
	short := estimateTokens("hello")
	long := estimateTokens(string(make([]byte, 10_000)))
	require.Greater(t, long, short)
}
