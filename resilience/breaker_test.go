package resilience

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestCircuitBreakerTripsAfterThresholds(t *testing.T) {
	b := NewCircuitBreaker(BreakerConfig{FailureThreshold: 2, VolumeThreshold: 2})

	require.True(t, b.Allow())
	b.RecordFailure()
	require.Equal(t, BreakerClosed, b.Snapshot().State)
	b.RecordFailure()
	require.Equal(t, BreakerOpen, b.Snapshot().State)
	require.False(t, b.Allow())
}

func TestCircuitBreakerHalfOpenAfterTimeout(t *testing.T) {
	b := NewCircuitBreaker(BreakerConfig{FailureThreshold: 1, VolumeThreshold: 1, Timeout: time.Millisecond})
	b.RecordFailure()
	require.Equal(t, BreakerOpen, b.Snapshot().State)

	time.Sleep(2 * time.Millisecond)
	require.True(t, b.Allow())
	require.Equal(t, BreakerHalfOpen, b.Snapshot().State)
}

func TestCircuitBreakerHalfOpenFailureReopens(t *testing.T) {
	b := NewCircuitBreaker(BreakerConfig{FailureThreshold: 1, VolumeThreshold: 1, Timeout: time.Millisecond})
	b.RecordFailure()
	time.Sleep(2 * time.Millisecond)
	require.True(t, b.Allow())

	b.RecordFailure()
	require.Equal(t, BreakerOpen, b.Snapshot().State)
}

func TestCircuitBreakerHalfOpenClosesAfterSuccessThreshold(t *testing.T) {
	b := NewCircuitBreaker(BreakerConfig{FailureThreshold: 1, VolumeThreshold: 1, SuccessThreshold: 2, Timeout: time.Millisecond})
	b.RecordFailure()
	time.Sleep(2 * time.Millisecond)
	require.True(t, b.Allow())

	b.RecordSuccess()
	require.Equal(t, BreakerHalfOpen, b.Snapshot().State)
	b.RecordSuccess()
	require.Equal(t, BreakerClosed, b.Snapshot().State)
}

func TestCircuitBreakerClosedSuccessDecaysFailures(t *testing.T) {
	b := NewCircuitBreaker(BreakerConfig{FailureThreshold: 5, VolumeThreshold: 5})
	b.RecordFailure()
	b.RecordFailure()
	require.Equal(t, 2, b.Snapshot().Failures)
	b.RecordSuccess()
	require.Equal(t, 1, b.Snapshot().Failures)
}

func TestRegistryReturnsSameBreakerPerName(t *testing.T) {
	r := NewRegistry(BreakerConfig{})
	a := r.Get("provider-a")
	b := r.Get("provider-a")
	require.Same(t, a, b)

	other := r.Get("provider-b")
	require.NotSame(t, a, other)
}
