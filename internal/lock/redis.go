package lock

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/oklog/ulid/v2"
	goredis "github.com/redis/go-redis/v9"

	"github.com/AlieInmar1/pbtoado-sub002/pkg/types"
)

const defaultRedisPrefix = "pbtoado:"

// releaseScript deletes the key only while it still holds our token, so an
// owner whose TTL lapsed cannot drop a lock someone else has since taken.
var releaseScript = goredis.NewScript(`
if redis.call("GET", KEYS[1]) == ARGV[1] then
	return redis.call("DEL", KEYS[1])
end
return 0`)

// Redis is a Locker backed by SET NX with expiry.
type Redis struct {
	client goredis.UniversalClient
	prefix string

	mu     sync.Mutex
	tokens map[string]string
}

var _ Locker = (*Redis)(nil)

// NewRedis connects a Redis-backed Locker.
func NewRedis(cfg *types.RedisConfig) *Redis {
	client := goredis.NewClient(&goredis.Options{
		Addr:     cfg.Addr,
		Password: cfg.Password,
		DB:       cfg.DB,
	})
	return NewRedisFromClient(client, cfg.KeyPrefix)
}

// NewRedisFromClient wraps an existing client. Useful for tests.
func NewRedisFromClient(client goredis.UniversalClient, prefix string) *Redis {
	if prefix == "" {
		prefix = defaultRedisPrefix
	}
	return &Redis{client: client, prefix: prefix, tokens: make(map[string]string)}
}

func (r *Redis) lockKey(key string) string {
	return r.prefix + "lock:" + key
}

func (r *Redis) Acquire(ctx context.Context, key string, ttl time.Duration) (bool, error) {
	token := ulid.Make().String()
	ok, err := r.client.SetNX(ctx, r.lockKey(key), token, ttl).Result()
	if err != nil {
		return false, fmt.Errorf("redis setnx: %w", err)
	}
	if ok {
		r.mu.Lock()
		r.tokens[key] = token
		r.mu.Unlock()
	}
	return ok, nil
}

func (r *Redis) Release(ctx context.Context, key string) error {
	r.mu.Lock()
	token, ok := r.tokens[key]
	delete(r.tokens, key)
	r.mu.Unlock()
	if !ok {
		return nil
	}
	if err := releaseScript.Run(ctx, r.client, []string{r.lockKey(key)}, token).Err(); err != nil {
		return fmt.Errorf("redis release: %w", err)
	}
	return nil
}

// Ping checks connectivity.
func (r *Redis) Ping(ctx context.Context) error {
	return r.client.Ping(ctx).Err()
}

// Close closes the underlying client.
func (r *Redis) Close() error {
	return r.client.Close()
}
