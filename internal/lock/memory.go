package lock

import (
	"context"
	"sync"
	"time"
)

// Memory is an in-process Locker for single-replica deployments and tests.
type Memory struct {
	mu    sync.Mutex
	held  map[string]time.Time // key -> expiry
	nowFn func() time.Time
}

var _ Locker = (*Memory)(nil)

// NewMemory creates an empty in-process Locker.
func NewMemory() *Memory {
	return &Memory{held: make(map[string]time.Time), nowFn: time.Now}
}

func (m *Memory) Acquire(_ context.Context, key string, ttl time.Duration) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	now := m.nowFn()
	if exp, ok := m.held[key]; ok && now.Before(exp) {
		return false, nil
	}
	m.held[key] = now.Add(ttl)
	return true, nil
}

func (m *Memory) Release(_ context.Context, key string) error {
	m.mu.Lock()
	delete(m.held, key)
	m.mu.Unlock()
	return nil
}
