package ratelimit

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSleep(t *testing.T) {
	t.Run("zero delay returns immediately", func(t *testing.T) {
		start := time.Now()
		require.NoError(t, Sleep(context.Background(), 0))
		assert.Less(t, time.Since(start), 10*time.Millisecond)
	})

	t.Run("waits for the delay", func(t *testing.T) {
		start := time.Now()
		require.NoError(t, Sleep(context.Background(), 20*time.Millisecond))
		assert.GreaterOrEqual(t, time.Since(start), 20*time.Millisecond)
	})

	t.Run("cancelled context aborts", func(t *testing.T) {
		ctx, cancel := context.WithCancel(context.Background())
		cancel()

		err := Sleep(ctx, time.Hour)
		assert.ErrorIs(t, err, context.Canceled)
	})

	t.Run("cancelled context with zero delay", func(t *testing.T) {
		ctx, cancel := context.WithCancel(context.Background())
		cancel()

		assert.ErrorIs(t, Sleep(ctx, 0), context.Canceled)
	})
}

func TestSimpleRateLimiter_SpacesActions(t *testing.T) {
	limiter := NewSimpleRateLimiter(30*time.Millisecond, 30*time.Millisecond)
	ctx := context.Background()

	start := time.Now()
	require.NoError(t, limiter.Wait(ctx))
	assert.Less(t, time.Since(start), 10*time.Millisecond, "first action is not delayed")

	require.NoError(t, limiter.Wait(ctx))
	require.NoError(t, limiter.Wait(ctx))
	assert.GreaterOrEqual(t, time.Since(start), 60*time.Millisecond)
}

func TestSimpleRateLimiter_ContextCancel(t *testing.T) {
	limiter := NewSimpleRateLimiter(time.Hour, time.Hour)
	require.NoError(t, limiter.Wait(context.Background()))

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Millisecond)
	defer cancel()

	assert.ErrorIs(t, limiter.Wait(ctx), context.DeadlineExceeded)
}

func TestSimpleRateLimiter_Jitter(t *testing.T) {
	limiter := NewSimpleRateLimiter(10*time.Millisecond, 20*time.Millisecond)

	for i := 0; i < 50; i++ {
		d := limiter.calculateDelay()
		assert.GreaterOrEqual(t, d, 10*time.Millisecond)
		assert.Less(t, d, 20*time.Millisecond)
	}

	fixed := NewSimpleRateLimiter(5*time.Millisecond, time.Millisecond)
	assert.Equal(t, 5*time.Millisecond, fixed.calculateDelay())
}
