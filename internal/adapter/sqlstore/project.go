package sqlstore

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/agentfleet/coordinator/internal/domain/apperr"
	"github.com/agentfleet/coordinator/internal/domain/project"
)

// ProjectRepository implements port/project.Repository over database/sql.
type ProjectRepository struct {
	store *Store
}

func NewProjectRepository(s *Store) *ProjectRepository { return &ProjectRepository{store: s} }

func (r *ProjectRepository) Create(ctx context.Context, p project.Project) (project.Project, error) {
	_, err := r.store.DB().ExecContext(ctx, `
		INSERT INTO projects (id, name, paths_shared, paths_instructions, paths_docs, paths_guidelines,
			repo_url, repo_main_branch, repo_clone_path, created_at, deleted_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		p.ID, p.Name, p.Paths.Shared, p.Paths.Instructions, p.Paths.Docs, p.Paths.Guidelines,
		p.Repo.URL, p.Repo.MainBranch, p.Repo.ClonePath, p.CreatedAt, p.DeletedAt,
	)
	if err != nil {
		return project.Project{}, fmt.Errorf("inserting project: %w", err)
	}
	return p, nil
}

func (r *ProjectRepository) GetByID(ctx context.Context, id string) (project.Project, error) {
	row := r.store.DB().QueryRowContext(ctx, projectSelect+" WHERE id = ?", id)
	return scanProject(row)
}

func (r *ProjectRepository) GetByName(ctx context.Context, name string) (project.Project, error) {
	row := r.store.DB().QueryRowContext(ctx, projectSelect+" WHERE name = ?", name)
	return scanProject(row)
}

func (r *ProjectRepository) List(ctx context.Context) ([]project.Project, error) {
	rows, err := r.store.DB().QueryContext(ctx, projectSelect+" WHERE deleted_at IS NULL ORDER BY created_at ASC")
	if err != nil {
		return nil, fmt.Errorf("listing projects: %w", err)
	}
	defer rows.Close()

	var out []project.Project
	for rows.Next() {
		p, err := scanProjectRows(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, p)
	}
	return out, rows.Err()
}

func (r *ProjectRepository) SoftDelete(ctx context.Context, id string) error {
	_, err := r.store.DB().ExecContext(ctx, `UPDATE projects SET deleted_at = ? WHERE id = ? AND deleted_at IS NULL`,
		time.Now().UTC(), id)
	if err != nil {
		return fmt.Errorf("soft-deleting project: %w", err)
	}
	return nil
}

const projectSelect = `SELECT id, name, paths_shared, paths_instructions, paths_docs, paths_guidelines,
	repo_url, repo_main_branch, repo_clone_path, created_at, deleted_at FROM projects`

type rowScanner interface {
	Scan(dest ...any) error
}

func scanProject(row *sql.Row) (project.Project, error) {
	return scanProjectScanner(row)
}

func scanProjectRows(rows *sql.Rows) (project.Project, error) {
	return scanProjectScanner(rows)
}

func scanProjectScanner(s rowScanner) (project.Project, error) {
	var p project.Project
	var guidelines sql.NullString
	var clonePath sql.NullString
	err := s.Scan(&p.ID, &p.Name, &p.Paths.Shared, &p.Paths.Instructions, &p.Paths.Docs, &guidelines,
		&p.Repo.URL, &p.Repo.MainBranch, &clonePath, &p.CreatedAt, &p.DeletedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return project.Project{}, apperr.ErrNotFound
	}
	if err != nil {
		return project.Project{}, fmt.Errorf("scanning project: %w", err)
	}
	p.Paths.Guidelines = guidelines.String
	if clonePath.Valid {
		p.Repo.ClonePath = &clonePath.String
	}
	return p, nil
}
