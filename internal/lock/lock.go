// Package lock serializes mutations per tenant, either inside one process
// or across processes sharing a Redis instance.
package lock

import (
	"context"
	"fmt"
	"sync"

	"golang.org/x/sync/semaphore"
)

// Locker grants exclusive sections keyed by tenant. The returned function
// releases the section and is safe to call once.
type Locker interface {
	Lock(ctx context.Context, key string) (unlock func(), err error)
}

// Local is an in-process Locker with one weighted semaphore per key.
type Local struct {
	mu   sync.Mutex
	sems map[string]*semaphore.Weighted
}

func NewLocal() *Local {
	return &Local{sems: map[string]*semaphore.Weighted{}}
}

func (l *Local) Lock(ctx context.Context, key string) (func(), error) {
	l.mu.Lock()
	sem, ok := l.sems[key]
	if !ok {
		sem = semaphore.NewWeighted(1)
		l.sems[key] = sem
	}
	l.mu.Unlock()

	if err := sem.Acquire(ctx, 1); err != nil {
		return nil, fmt.Errorf("acquire lock %q: %w", key, err)
	}
	var once sync.Once
	return func() { once.Do(func() { sem.Release(1) }) }, nil
}
