//go:build integration

package cache

import (
	"context"
	"os"
	"sync"
	"testing"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	redisclient "github.com/mytegroup/billtracker/internal/infrastructure/clients/redis"
)

func testRedis(t *testing.T) *redisclient.Client {
	host := os.Getenv("TEST_REDIS_HOST")
	if host == "" {
		t.Skip("TEST_REDIS_HOST not set")
	}
	rdb := redis.NewClient(&redis.Options{Addr: host, DB: 15})
	require.NoError(t, rdb.FlushDB(context.Background()).Err())
	t.Cleanup(func() { rdb.Close() })
	return redisclient.NewClientFromRedis(rdb)
}

func TestRedisAdapter_GetSetMiss(t *testing.T) {
	ctx := context.Background()
	adapter := NewRedisAdapter(testRedis(t))

	_, err := adapter.Get(ctx, "missing")
	assert.ErrorIs(t, err, ErrCacheMiss)

	require.NoError(t, adapter.Set(ctx, "k", []byte("v"), 60))
	got, err := adapter.Get(ctx, "k")
	require.NoError(t, err)
	assert.Equal(t, []byte("v"), got)
}

func TestRedisAdapter_DeletePattern(t *testing.T) {
	ctx := context.Background()
	adapter := NewRedisAdapter(testRedis(t))

	for _, key := range []string{"dashboard:aggregate:a", "dashboard:aggregate:b", "other"} {
		require.NoError(t, adapter.Set(ctx, key, []byte("{}"), 60))
	}

	require.NoError(t, adapter.DeletePattern(ctx, "dashboard:*"))

	exists, err := adapter.Exists(ctx, "dashboard:aggregate:a")
	require.NoError(t, err)
	assert.False(t, exists)
	exists, err = adapter.Exists(ctx, "other")
	require.NoError(t, err)
	assert.True(t, exists)
}

func TestRedisAdapter_IncrementStartsWindowOnce(t *testing.T) {
	ctx := context.Background()
	adapter := NewRedisAdapter(testRedis(t))

	count, ttl, err := adapter.Increment(ctx, "comments:rate:ada", time.Minute)
	require.NoError(t, err)
	assert.Equal(t, int64(1), count)
	assert.Greater(t, ttl, 55*time.Second)

	var wg sync.WaitGroup
	for range 20 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, _, err := adapter.Increment(ctx, "comments:rate:ada", time.Minute)
			assert.NoError(t, err)
		}()
	}
	wg.Wait()

	count, ttl, err = adapter.Increment(ctx, "comments:rate:ada", time.Hour)
	require.NoError(t, err)
	assert.Equal(t, int64(22), count)
	assert.LessOrEqual(t, ttl, time.Minute)
}
