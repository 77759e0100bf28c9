// Package lock implements port/locker.KeyedLocker as an in-process,
// string-keyed mutex table — the single-instance replacement for the
// teacher's Postgres session advisory lock, since sqlite/mysql here are
// both accessed from one process and never need cross-instance
// coordination.
package lock

import "context"

type Locker struct {
	locks *keyTable
}

func New() *Locker {
	return &Locker{locks: newKeyTable()}
}

func (l *Locker) WithLock(ctx context.Context, key string, fn func(ctx context.Context) error) error {
	mu := l.locks.get(key)
	mu.Lock()
	defer mu.Unlock()
	return fn(ctx)
}
