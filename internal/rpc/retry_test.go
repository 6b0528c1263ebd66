package rpc

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	walleterr "github.com/eigenix/walletd/pkg/errors"
)

func fastRetryConfig() RetryConfig {
	return RetryConfig{
		MaxAttempts: 3,
		BaseDelay:   time.Millisecond,
		MaxDelay:    4 * time.Millisecond,
	}
}

func TestRetry_SucceedsFirstAttempt(t *testing.T) {
	t.Parallel()

	calls := 0
	result, err := RetryWithConfig(context.Background(), fastRetryConfig(), func() (string, error) {
		calls++
		return "ok", nil
	})

	require.NoError(t, err)
	assert.Equal(t, "ok", result)
	assert.Equal(t, 1, calls)
}

func TestRetry_RetriesConnectivity(t *testing.T) {
	t.Parallel()

	calls := 0
	result, err := RetryWithConfig(context.Background(), fastRetryConfig(), func() (string, error) {
		calls++
		if calls < 3 {
			return "", walleterr.Wrap(walleterr.ErrConnectivity, "attempt %d", calls)
		}
		return "ok", nil
	})

	require.NoError(t, err)
	assert.Equal(t, "ok", result)
	assert.Equal(t, 3, calls)
}

func TestRetry_FatalErrorPropagatesImmediately(t *testing.T) {
	t.Parallel()

	calls := 0
	_, err := RetryWithConfig(context.Background(), fastRetryConfig(), func() (string, error) {
		calls++
		return "", walleterr.ErrNotProvisioned
	})

	require.Error(t, err)
	assert.True(t, walleterr.Is(err, walleterr.ErrNotProvisioned))
	assert.Equal(t, 1, calls, "not-provisioned must not be retried")
}

func TestRetry_ExhaustsAttempts(t *testing.T) {
	t.Parallel()

	calls := 0
	_, err := RetryWithConfig(context.Background(), fastRetryConfig(), func() (string, error) {
		calls++
		return "", walleterr.ErrConnectivity
	})

	require.Error(t, err)
	assert.Equal(t, 3, calls)
	assert.True(t, walleterr.Is(err, walleterr.ErrConnectivity))
	assert.Contains(t, err.Error(), "after 3 attempts")
}

func TestRetry_ContextCancelledDuringBackoff(t *testing.T) {
	t.Parallel()

	cfg := RetryConfig{
		MaxAttempts: 5,
		BaseDelay:   time.Hour,
		MaxDelay:    time.Hour,
	}

	ctx, cancel := context.WithCancel(context.Background())
	go func() {
		time.Sleep(10 * time.Millisecond)
		cancel()
	}()

	_, err := RetryWithConfig(ctx, cfg, func() (int, error) {
		return 0, walleterr.ErrConnectivity
	})

	require.ErrorIs(t, err, context.Canceled)
}

func TestIsRetryable(t *testing.T) {
	t.Parallel()

	assert.False(t, IsRetryable(nil))
	assert.True(t, IsRetryable(walleterr.ErrConnectivity))
	assert.True(t, IsRetryable(context.DeadlineExceeded))
	assert.False(t, IsRetryable(walleterr.ErrNotProvisioned))
	assert.False(t, IsRetryable(errors.New("arbitrary")))
}
