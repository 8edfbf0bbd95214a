// Package lock serializes work on a single ProductBoard item across webhook
// deliveries and, with the redis and dynamodb backends, across processes.
package lock

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/AlieInmar1/pbtoado-sub002/pkg/types"
)

// Defaults applied when the webhook config leaves lock timing unset.
const (
	DefaultTTL  = 2 * time.Minute
	DefaultWait = 10 * time.Second

	pollInterval = 100 * time.Millisecond
)

// ErrNotAcquired is returned by AcquireWait when the lock stayed held by
// another owner for the whole wait window.
var ErrNotAcquired = errors.New("lock held by another owner")

// Locker is a TTL-bounded mutual exclusion keyed by string. Acquire never
// blocks: it reports false when another owner holds an unexpired lock.
// Release only removes a lock this Locker acquired.
type Locker interface {
	Acquire(ctx context.Context, key string, ttl time.Duration) (bool, error)
	Release(ctx context.Context, key string) error
}

// AcquireWait polls Acquire until it succeeds, the wait window elapses or ctx
// is cancelled.
func AcquireWait(ctx context.Context, l Locker, key string, ttl, wait time.Duration) error {
	deadline := time.Now().Add(wait)
	for {
		ok, err := l.Acquire(ctx, key, ttl)
		if err != nil {
			return fmt.Errorf("acquiring lock %q: %w", key, err)
		}
		if ok {
			return nil
		}
		if !time.Now().Before(deadline) {
			return fmt.Errorf("acquiring lock %q: %w", key, ErrNotAcquired)
		}
		t := time.NewTimer(pollInterval)
		select {
		case <-ctx.Done():
			t.Stop()
			return ctx.Err()
		case <-t.C:
		}
	}
}

// ItemKey is the lock key for a ProductBoard item.
func ItemKey(psID string) string {
	return "ps-item:" + psID
}

// New builds the Locker selected by cfg. An empty backend selects memory.
func New(ctx context.Context, cfg types.LockConfig) (Locker, error) {
	switch cfg.Backend {
	case "", "memory":
		return NewMemory(), nil
	case "redis":
		if cfg.Redis == nil {
			return nil, fmt.Errorf("lock backend redis requires lock.redis")
		}
		return NewRedis(cfg.Redis), nil
	case "dynamodb":
		if cfg.DynamoDB == nil {
			return nil, fmt.Errorf("lock backend dynamodb requires lock.dynamodb")
		}
		return NewDynamoDB(ctx, cfg.DynamoDB)
	default:
		return nil, fmt.Errorf("unknown lock backend %q", cfg.Backend)
	}
}
