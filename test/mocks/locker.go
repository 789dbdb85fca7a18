package mocks

import (
	"context"
	"sync"
	"time"

	"github.com/john2100013/kpi-review/internal/cache"
)

// MockLocker is an in-process lock.
type MockLocker struct {
	AcquireFunc func(ctx context.Context, key string, ttl time.Duration) (*cache.Lock, error)

	mu   sync.Mutex
	held map[string]bool
}

func (m *MockLocker) Acquire(ctx context.Context, key string, ttl time.Duration) (*cache.Lock, error) {
	if m.AcquireFunc != nil {
		return m.AcquireFunc(ctx, key, ttl)
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.held == nil {
		m.held = make(map[string]bool)
	}
	if m.held[key] {
		return nil, cache.ErrLockHeld
	}
	m.held[key] = true
	return cache.NewLock(key, func(ctx context.Context) error {
		m.mu.Lock()
		delete(m.held, key)
		m.mu.Unlock()
		return nil
	}), nil
}
