package handlers

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// memoryCounter is an atomic per-key counter with no expiry.
type memoryCounter struct {
	mu     sync.Mutex
	counts map[string]int64
	err    error
}

func (c *memoryCounter) Increment(_ context.Context, key string, window time.Duration) (int64, time.Duration, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.err != nil {
		return 0, 0, c.err
	}
	if c.counts == nil {
		c.counts = make(map[string]int64)
	}
	c.counts[key]++
	return c.counts[key], window, nil
}

func TestRateLimiter_SharedCounterUnderConcurrency(t *testing.T) {
	limiter := newRateLimiter(&memoryCounter{}, 10, time.Minute)

	var allowed atomic.Int32
	var wg sync.WaitGroup
	for range 50 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if ok, _ := limiter.allow(context.Background(), "comments:rate:ada"); ok {
				allowed.Add(1)
			}
		}()
	}
	wg.Wait()

	assert.Equal(t, int32(10), allowed.Load())

	ok, retryAfter := limiter.allow(context.Background(), "comments:rate:bob")
	assert.True(t, ok)
	assert.Equal(t, time.Minute, retryAfter)
}

func TestRateLimiter_FallsBackToMemoryWhenStoreFails(t *testing.T) {
	limiter := newRateLimiter(&memoryCounter{err: errors.New("connection refused")}, 2, time.Minute)

	for range 2 {
		ok, _ := limiter.allow(context.Background(), "comments:rate:ada")
		require.True(t, ok)
	}
	ok, _ := limiter.allow(context.Background(), "comments:rate:ada")
	assert.False(t, ok)
}

func TestLocalRateLimiter_WindowResetsAndExpiredKeysArePruned(t *testing.T) {
	now := time.Unix(1700000000, 0)
	limiter := newLocalRateLimiter(func() time.Time { return now })

	for _, key := range []string{"a", "b", "c"} {
		ok, _ := limiter.allow(key, 1, time.Minute)
		require.True(t, ok)
	}
	ok, retryAfter := limiter.allow("a", 1, time.Minute)
	assert.False(t, ok)
	assert.Equal(t, time.Minute, retryAfter)
	assert.Equal(t, 3, limiter.size())

	now = now.Add(2 * time.Minute)
	ok, _ = limiter.allow("a", 1, time.Minute)
	assert.True(t, ok)
	assert.Equal(t, 1, limiter.size())
}
