package sqlstore

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/google/uuid"

	"github.com/agentfleet/coordinator/internal/domain/apperr"
	"github.com/agentfleet/coordinator/internal/domain/epic"
)

// EpicRepository implements port/epic.Repository over database/sql.
type EpicRepository struct {
	store *Store
}

func NewEpicRepository(s *Store) *EpicRepository { return &EpicRepository{store: s} }

func (r *EpicRepository) Create(ctx context.Context, e epic.Epic) (epic.Epic, error) {
	if e.ID == "" {
		e.ID = uuid.New().String()
	}
	_, err := r.store.DB().ExecContext(ctx, `
		INSERT INTO epics (id, project_id, name, description, created_by_agent, created_at)
		VALUES (?, ?, ?, ?, ?, ?)`,
		e.ID, e.ProjectID, e.Name, e.Description, e.CreatedByAgent, e.CreatedAt,
	)
	if err != nil {
		return epic.Epic{}, fmt.Errorf("inserting epic: %w", err)
	}
	return e, nil
}

func (r *EpicRepository) GetByID(ctx context.Context, projectID, id string) (epic.Epic, error) {
	row := r.store.DB().QueryRowContext(ctx, epicSelect+" WHERE project_id = ? AND id = ?", projectID, id)
	e, err := scanEpic(row)
	if errors.Is(err, sql.ErrNoRows) {
		return epic.Epic{}, apperr.ErrNotFound
	}
	return e, err
}

func (r *EpicRepository) List(ctx context.Context, filters epic.ListFilters) ([]epic.Epic, error) {
	q := epicSelect + " WHERE 1=1"
	var args []any
	if filters.ProjectID != nil {
		q += " AND project_id = ?"
		args = append(args, *filters.ProjectID)
	}
	q += " ORDER BY created_at ASC"

	rows, err := r.store.DB().QueryContext(ctx, q, args...)
	if err != nil {
		return nil, fmt.Errorf("listing epics: %w", err)
	}
	defer rows.Close()

	var out []epic.Epic
	for rows.Next() {
		e, err := scanEpicRows(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, e)
	}
	return out, rows.Err()
}

const epicSelect = `SELECT id, project_id, name, description, created_by_agent, created_at FROM epics`

func scanEpic(row *sql.Row) (epic.Epic, error)      { return scanEpicScanner(row) }
func scanEpicRows(rows *sql.Rows) (epic.Epic, error) { return scanEpicScanner(rows) }

func scanEpicScanner(s rowScanner) (epic.Epic, error) {
	var e epic.Epic
	err := s.Scan(&e.ID, &e.ProjectID, &e.Name, &e.Description, &e.CreatedByAgent, &e.CreatedAt)
	if err != nil {
		return epic.Epic{}, fmt.Errorf("scanning epic: %w", err)
	}
	return e, nil
}
