// Package store defines the transactional-unit contract every repository
// adapter is built on: begin/commit/rollback scoped units, a monotonic
// clock for changelog ordering, and the changelog append itself, which
// must occur inside the same transaction as the change that caused it.
package store

import (
	"context"
	"time"

	"github.com/agentfleet/coordinator/internal/domain/changelog"
)

// Tx is a transactional handle passed through repository calls that need
// to participate in the caller's unit of work. Concrete adapters type-assert
// this back to their own *sql.Tx; it is opaque at the port boundary so the
// service layer never imports database/sql.
type Tx interface {
	// Commit finalizes the transaction.
	Commit(ctx context.Context) error
	// Rollback aborts the transaction. Safe to call after Commit (no-op).
	Rollback(ctx context.Context) error
}

// Store is the transactional root every service depends on to open a unit
// of work, get a monotonic timestamp, and append changelog entries.
type Store interface {
	// Begin opens a new transactional unit of work.
	Begin(ctx context.Context) (Tx, error)

	// MonotonicNow returns a (wallClock, seq) pair with the guarantee that
	// successive calls within this process strictly increase, even when
	// wall-clock resolution is coarser than the call rate.
	MonotonicNow() (time.Time, int64)

	// InsertChangelog appends a changelog entry within tx. Callers MUST
	// pass the same Tx as the mutation that produced this event.
	InsertChangelog(ctx context.Context, tx Tx, kind changelog.Kind, projectID, refID string, actorAgentID *string) error
}
