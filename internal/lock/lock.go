// Package lock serializes read-modify-write cycles on the collection.
//
// The store engine itself gives no ordering between concurrent mutations:
// two writers that load the same revision race and the last save wins.
// Deployments that need stronger guarantees pick a Locker here.
package lock

import (
	"context"
	"sync"
)

// Locker grants exclusive access to key until release is called.
type Locker interface {
	Acquire(ctx context.Context, key string) (release func(), err error)
}

type noopLocker struct{}

// NewNoop returns a Locker that never blocks.
func NewNoop() Locker {
	return noopLocker{}
}

func (noopLocker) Acquire(context.Context, string) (func(), error) {
	return func() {}, nil
}

// localLocker holds one single-slot channel per key so waiting can be
// abandoned when ctx is cancelled.
type localLocker struct {
	mu    sync.Mutex
	slots map[string]chan struct{}
}

// NewLocal returns an in-process Locker. It only serializes mutations within
// a single server instance.
func NewLocal() Locker {
	return &localLocker{slots: make(map[string]chan struct{})}
}

func (l *localLocker) Acquire(ctx context.Context, key string) (func(), error) {
	l.mu.Lock()
	slot, ok := l.slots[key]
	if !ok {
		slot = make(chan struct{}, 1)
		l.slots[key] = slot
	}
	l.mu.Unlock()

	select {
	case slot <- struct{}{}:
	case <-ctx.Done():
		return nil, ctx.Err()
	}

	var once sync.Once
	return func() {
		once.Do(func() { <-slot })
	}, nil
}
