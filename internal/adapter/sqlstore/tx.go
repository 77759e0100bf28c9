package sqlstore

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/agentfleet/coordinator/internal/port/store"
)

// sqlTx adapts *sql.Tx to the port/store.Tx interface so the service layer
// never imports database/sql directly.
type sqlTx struct {
	tx *sql.Tx
}

func (t *sqlTx) Commit(ctx context.Context) error { return t.tx.Commit() }

// Rollback is a no-op if the transaction already committed, per the
// store.Tx contract.
func (t *sqlTx) Rollback(ctx context.Context) error {
	if err := t.tx.Rollback(); err != nil && err != sql.ErrTxDone {
		return err
	}
	return nil
}

// unwrapTx type-asserts an opaque store.Tx back to the concrete *sql.Tx a
// repository adapter needs to participate in the caller's unit of work.
func unwrapTx(tx store.Tx) (*sql.Tx, error) {
	st, ok := tx.(*sqlTx)
	if !ok {
		return nil, fmt.Errorf("sqlstore: tx is not a sqlstore transaction (%T)", tx)
	}
	return st.tx, nil
}
