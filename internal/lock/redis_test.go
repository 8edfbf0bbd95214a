//go:build integration

package lock

import (
	"context"
	"fmt"
	"testing"
	"time"

	goredis "github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func setupRedis(t *testing.T) (*Redis, *goredis.Client, string) {
	t.Helper()
	client := goredis.NewClient(&goredis.Options{Addr: "localhost:6379"})
	ctx := context.Background()

	if err := client.Ping(ctx).Err(); err != nil {
		t.Skipf("Redis not available: %v", err)
	}

	prefix := fmt.Sprintf("pbtoado-test-%d:", time.Now().UnixNano())
	t.Cleanup(func() {
		var cursor uint64
		for {
			keys, next, err := client.Scan(ctx, cursor, prefix+"*", 100).Result()
			if err != nil {
				break
			}
			if len(keys) > 0 {
				client.Del(ctx, keys...)
			}
			cursor = next
			if cursor == 0 {
				break
			}
		}
		client.Close()
	})
	return NewRedisFromClient(client, prefix), client, prefix
}

func TestRedis_AcquireRelease(t *testing.T) {
	r, _, _ := setupRedis(t)
	ctx := context.Background()

	ok, err := r.Acquire(ctx, "k", time.Minute)
	require.NoError(t, err)
	assert.True(t, ok)

	ok, err = r.Acquire(ctx, "k", time.Minute)
	require.NoError(t, err)
	assert.False(t, ok)

	require.NoError(t, r.Release(ctx, "k"))
	ok, err = r.Acquire(ctx, "k", time.Minute)
	require.NoError(t, err)
	assert.True(t, ok)
}

func TestRedis_ReleaseKeepsForeignLock(t *testing.T) {
	r, client, prefix := setupRedis(t)
	ctx := context.Background()

	ok, err := r.Acquire(ctx, "k", time.Minute)
	require.NoError(t, err)
	require.True(t, ok)

	// Simulate expiry followed by another owner taking the lock.
	require.NoError(t, client.Set(ctx, prefix+"lock:k", "someone-else", time.Minute).Err())

	require.NoError(t, r.Release(ctx, "k"))
	val, err := client.Get(ctx, prefix+"lock:k").Result()
	require.NoError(t, err)
	assert.Equal(t, "someone-else", val)
}

func TestRedis_ExpiresWithTTL(t *testing.T) {
	r, _, _ := setupRedis(t)
	ctx := context.Background()

	ok, err := r.Acquire(ctx, "k", 100*time.Millisecond)
	require.NoError(t, err)
	require.True(t, ok)

	time.Sleep(250 * time.Millisecond)
	other := NewRedisFromClient(r.client, r.prefix)
	ok, err = other.Acquire(ctx, "k", time.Minute)
	require.NoError(t, err)
	assert.True(t, ok)
}
