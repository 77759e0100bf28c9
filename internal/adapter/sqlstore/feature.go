package sqlstore

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/google/uuid"

	"github.com/agentfleet/coordinator/internal/domain/apperr"
	"github.com/agentfleet/coordinator/internal/domain/feature"
)

// FeatureRepository implements port/feature.Repository over database/sql.
type FeatureRepository struct {
	store *Store
}

func NewFeatureRepository(s *Store) *FeatureRepository { return &FeatureRepository{store: s} }

func (r *FeatureRepository) Create(ctx context.Context, f feature.Feature) (feature.Feature, error) {
	if f.ID == "" {
		f.ID = uuid.New().String()
	}
	_, err := r.store.DB().ExecContext(ctx, `
		INSERT INTO features (id, epic_id, name, description, created_at) VALUES (?, ?, ?, ?, ?)`,
		f.ID, f.EpicID, f.Name, f.Description, f.CreatedAt,
	)
	if err != nil {
		return feature.Feature{}, fmt.Errorf("inserting feature: %w", err)
	}
	return f, nil
}

func (r *FeatureRepository) GetByID(ctx context.Context, id string) (feature.Feature, error) {
	row := r.store.DB().QueryRowContext(ctx, featureSelect+" WHERE id = ?", id)
	f, err := scanFeature(row)
	if errors.Is(err, sql.ErrNoRows) {
		return feature.Feature{}, apperr.ErrNotFound
	}
	return f, err
}

func (r *FeatureRepository) List(ctx context.Context, filters feature.ListFilters) ([]feature.Feature, error) {
	q := featureSelect + " WHERE 1=1"
	var args []any
	if filters.EpicID != nil {
		q += " AND epic_id = ?"
		args = append(args, *filters.EpicID)
	}
	q += " ORDER BY created_at ASC"

	rows, err := r.store.DB().QueryContext(ctx, q, args...)
	if err != nil {
		return nil, fmt.Errorf("listing features: %w", err)
	}
	defer rows.Close()

	var out []feature.Feature
	for rows.Next() {
		f, err := scanFeatureRows(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, f)
	}
	return out, rows.Err()
}

const featureSelect = `SELECT id, epic_id, name, description, created_at FROM features`

func scanFeature(row *sql.Row) (feature.Feature, error)      { return scanFeatureScanner(row) }
func scanFeatureRows(rows *sql.Rows) (feature.Feature, error) { return scanFeatureScanner(rows) }

func scanFeatureScanner(s rowScanner) (feature.Feature, error) {
	var f feature.Feature
	err := s.Scan(&f.ID, &f.EpicID, &f.Name, &f.Description, &f.CreatedAt)
	if err != nil {
		return feature.Feature{}, fmt.Errorf("scanning feature: %w", err)
	}
	return f, nil
}
