package locker

import "context"

// KeyedLocker serialises a critical section per string key — e.g. one
// agent's registration ("<project>/agent/<id>") or one service's
// ("<project>/service/<name>") — within this single process. There is no cross-instance coordination
// requirement here: the store is a single database/sql handle owned by
// one process, so an in-process mutex keyed by string is sufficient and
// avoids a DB round trip per lock/unlock, unlike a Postgres session
// advisory lock.
type KeyedLocker interface {
	WithLock(ctx context.Context, key string, fn func(ctx context.Context) error) error
}
