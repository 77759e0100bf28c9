package sqlstore

import (
	"context"
	"database/sql"
	"fmt"
	"sync/atomic"
	"time"

	"github.com/google/uuid"

	"github.com/agentfleet/coordinator/internal/domain/changelog"
	"github.com/agentfleet/coordinator/internal/port/store"
)

// Store is the sqlstore-wide transactional root: it opens units of work,
// hands out a monotonic (wallClock, seq) pair for changelog ordering, and
// appends changelog entries within a caller-supplied transaction.
type Store struct {
	db  *sql.DB
	seq atomic.Int64
}

// New applies the schema migrations to db and returns it as a Store.
func New(ctx context.Context, db *sql.DB) (*Store, error) {
	if err := migrate(ctx, db); err != nil {
		return nil, fmt.Errorf("migrating schema: %w", err)
	}
	return &Store{db: db}, nil
}

// DB exposes the raw handle; the repository adapters in this package run
// their non-transactional queries through it.
func (s *Store) DB() *sql.DB { return s.db }

func (s *Store) Begin(ctx context.Context) (store.Tx, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("beginning transaction: %w", err)
	}
	return &sqlTx{tx: tx}, nil
}

// MonotonicNow returns wall-clock time paired with a per-process counter
// that strictly increases on every call, so two changelog entries minted
// in the same clock tick still sort deterministically by (time, seq).
func (s *Store) MonotonicNow() (time.Time, int64) {
	return time.Now().UTC(), s.seq.Add(1)
}

func (s *Store) InsertChangelog(ctx context.Context, tx store.Tx, kind changelog.Kind, projectID, refID string, actorAgentID *string) error {
	sqlt, err := unwrapTx(tx)
	if err != nil {
		return err
	}
	createdAt, seq := s.MonotonicNow()
	_, err = sqlt.ExecContext(ctx,
		`INSERT INTO changelog (id, project_id, kind, ref_id, actor_agent_id, created_at, seq) VALUES (?, ?, ?, ?, ?, ?, ?)`,
		uuid.New().String(), projectID, string(kind), refID, actorAgentID, createdAt, seq,
	)
	if err != nil {
		return fmt.Errorf("inserting changelog entry: %w", err)
	}
	return nil
}
