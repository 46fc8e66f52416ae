package cache

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCalculateBackoff(t *testing.T) {
	cfg := RetryConfig{MaxRetries: 5, InitialBackoff: 100 * time.Millisecond, MaxBackoff: time.Second}

	assert.Equal(t, 100*time.Millisecond, calculateBackoff(0, cfg))
	assert.Equal(t, 200*time.Millisecond, calculateBackoff(1, cfg))
	assert.Equal(t, 800*time.Millisecond, calculateBackoff(3, cfg))
	assert.Equal(t, time.Second, calculateBackoff(4, cfg))
}

func TestRetryWithBackoff(t *testing.T) {
	cfg := RetryConfig{MaxRetries: 3, InitialBackoff: time.Millisecond, MaxBackoff: time.Millisecond}

	t.Run("succeeds after failures", func(t *testing.T) {
		calls := 0
		err := retryWithBackoff(context.Background(), cfg, func(context.Context) error {
			calls++
			if calls < 3 {
				return errors.New("connection refused")
			}
			return nil
		})
		require.NoError(t, err)
		assert.Equal(t, 3, calls)
	})

	t.Run("gives up", func(t *testing.T) {
		refused := errors.New("connection refused")
		calls := 0
		err := retryWithBackoff(context.Background(), cfg, func(context.Context) error {
			calls++
			return refused
		})
		require.ErrorIs(t, err, refused)
		assert.Equal(t, 4, calls)
	})

	t.Run("stops on cancellation", func(t *testing.T) {
		ctx, cancel := context.WithCancel(context.Background())
		cancel()
		calls := 0
		err := retryWithBackoff(ctx, cfg, func(context.Context) error {
			calls++
			return nil
		})
		require.ErrorIs(t, err, context.Canceled)
		assert.Zero(t, calls)
	})
}

func TestNewRedisClient_Unreachable(t *testing.T) {
	_, err := NewRedisClient(RedisConfig{
		Addr:  "127.0.0.1:1",
		Retry: RetryConfig{MaxRetries: 1, InitialBackoff: time.Millisecond, MaxBackoff: time.Millisecond},
	})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "redis ping failed")
}

func TestNewRedisClient_BadURL(t *testing.T) {
	_, err := NewRedisClient(RedisConfig{URL: "http://not-redis"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "parse redis url")
}
