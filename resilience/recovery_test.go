package resilience

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/goa-design/agentswarm/internal/agenterr"
)

func TestRunRetriesAccordingToCategoryStrategy(t *testing.T) {
	registry := NewRecoveryRegistry(map[agenterr.Category]RetryStrategy{
		agenterr.CategoryNetwork: {MaxAttempts: 3, BaseDelay: time.Millisecond},
	})

	attempts := 0
	result, err := Run(context.Background(), registry, func(context.Context) (string, error) {
		attempts++
		if attempts < 3 {
			return "", errors.New("connection refused")
		}
		return "ok", nil
	})
	require.NoError(t, err)
	require.Equal(t, "ok", result)
	require.Equal(t, 3, attempts)
}

func TestRunStopsAfterMaxAttemptsExhausted(t *testing.T) {
	registry := NewRecoveryRegistry(map[agenterr.Category]RetryStrategy{
		agenterr.CategoryNetwork: {MaxAttempts: 2, BaseDelay: time.Millisecond},
	})

	attempts := 0
	_, err := Run(context.Background(), registry, func(context.Context) (string, error) {
		attempts++
		return "", errors.New("connection refused")
	})
	require.Error(t, err)
	require.Equal(t, 2, attempts)
}

func TestRunNeverRetriesCategoryWithZeroMaxAttempts(t *testing.T) {
	registry := NewRecoveryRegistry(nil)

	attempts := 0
	_, err := Run(context.Background(), registry, func(context.Context) (string, error) {
		attempts++
		return "", errors.New("permission denied")
	})
	require.Error(t, err)
	require.Equal(t, 1, attempts)
}

func TestRunNeverRetriesCancellation(t *testing.T) {
	registry := NewRecoveryRegistry(nil)

	attempts := 0
	_, err := Run(context.Background(), registry, func(context.Context) (string, error) {
		attempts++
		return "", agenterr.ErrCancelled
	})
	require.ErrorIs(t, err, agenterr.ErrCancelled)
	require.Equal(t, 1, attempts)
}

func TestRunHonorsContextCancellationDuringBackoff(t *testing.T) {
	registry := NewRecoveryRegistry(map[agenterr.Category]RetryStrategy{
		agenterr.CategoryNetwork: {MaxAttempts: 5, BaseDelay: time.Second},
	})

	ctx, cancel := context.WithCancel(context.Background())
	attempts := 0
	go func() {
		time.Sleep(5 * time.Millisecond)
		cancel()
	}()
	_, err := Run(ctx, registry, func(context.Context) (string, error) {
		attempts++
		return "", errors.New("connection refused")
	})
	require.ErrorIs(t, err, context.Canceled)
	require.Equal(t, 1, attempts)
}
