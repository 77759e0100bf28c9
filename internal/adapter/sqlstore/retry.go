package sqlstore

import (
	"context"
	"math/rand"
	"strings"
	"time"

	"github.com/agentfleet/coordinator/internal/domain/apperr"
)

const (
	retryBaseDelay = 50 * time.Millisecond
	retryMaxDelay  = 500 * time.Millisecond
	retryMaxTries  = 6
)

// retryOnBusy retries f while it fails with a transient "database is
// locked"/"try restarting transaction" error, backing off exponentially
// with jitter between attempts. sqlite under WAL can still return
// SQLITE_BUSY under concurrent writers even with busy_timeout set if a
// write spans multiple statements; mysql returns a deadlock/lock-wait
// error under the equivalent CAS contention. Both are safe to retry since
// every caller only wraps idempotent, single-row CAS statements. If every
// try fails that way, the last error is returned wrapped as a Conflict.
func retryOnBusy(ctx context.Context, f func() error) error {
	var err error
	for attempt := 0; attempt < retryMaxTries; attempt++ {
		err = f()
		if err == nil || !isRetryable(err) {
			return err
		}
		delay := time.Duration(1<<attempt) * retryBaseDelay
		if delay > retryMaxDelay {
			delay = retryMaxDelay
		}
		jitter := time.Duration(rand.Int63n(int64(delay) / 2))
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(delay/2 + jitter):
		}
	}
	return apperr.Wrap(apperr.KindConflict, "storage contention persisted after retries", err)
}

func isRetryable(err error) bool {
	if err == nil {
		return false
	}
	msg := strings.ToLower(err.Error())
	switch {
	case strings.Contains(msg, "database is locked"):
		return true
	case strings.Contains(msg, "busy"):
		return true
	case strings.Contains(msg, "deadlock found"):
		return true
	case strings.Contains(msg, "lock wait timeout"):
		return true
	default:
		return false
	}
}
