package sqlstore

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/google/uuid"

	"github.com/agentfleet/coordinator/internal/domain/apperr"
	"github.com/agentfleet/coordinator/internal/domain/document"
)

// DocumentRepository implements port/document.Repository over database/sql.
type DocumentRepository struct {
	store *Store
}

func NewDocumentRepository(s *Store) *DocumentRepository { return &DocumentRepository{store: s} }

func (r *DocumentRepository) Create(ctx context.Context, d document.Document) (document.Document, error) {
	if d.ID == "" {
		d.ID = uuid.New().String()
	}
	_, err := r.store.DB().ExecContext(ctx, `
		INSERT INTO documents (id, project_id, author_agent_id, doc_type, title, body, created_at, expires_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		d.ID, d.ProjectID, d.AuthorAgentID, string(d.DocType), d.Title, d.Body, d.CreatedAt, d.ExpiresAt,
	)
	if err != nil {
		return document.Document{}, fmt.Errorf("inserting document: %w", err)
	}
	return d, nil
}

func (r *DocumentRepository) GetByID(ctx context.Context, projectID, id string) (document.Document, error) {
	row := r.store.DB().QueryRowContext(ctx, documentSelect+" WHERE project_id = ? AND id = ?", projectID, id)
	d, err := scanDocument(row)
	if errors.Is(err, sql.ErrNoRows) {
		return document.Document{}, apperr.ErrNotFound
	}
	return d, err
}

func (r *DocumentRepository) List(ctx context.Context, filters document.ListFilters) ([]document.Document, error) {
	q := documentSelect + " WHERE 1=1"
	var args []any
	if filters.ProjectID != nil {
		q += " AND project_id = ?"
		args = append(args, *filters.ProjectID)
	}
	if filters.DocType != nil {
		q += " AND doc_type = ?"
		args = append(args, string(*filters.DocType))
	}
	if filters.Author != nil {
		q += " AND author_agent_id = ?"
		args = append(args, *filters.Author)
	}
	q += " ORDER BY created_at DESC"

	rows, err := r.store.DB().QueryContext(ctx, q, args...)
	if err != nil {
		return nil, fmt.Errorf("listing documents: %w", err)
	}
	defer rows.Close()

	var out []document.Document
	for rows.Next() {
		d, err := scanDocumentRows(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, d)
	}
	return out, rows.Err()
}

const documentSelect = `SELECT id, project_id, author_agent_id, doc_type, title, body, created_at, expires_at FROM documents`

func scanDocument(row *sql.Row) (document.Document, error)      { return scanDocumentScanner(row) }
func scanDocumentRows(rows *sql.Rows) (document.Document, error) { return scanDocumentScanner(rows) }

func scanDocumentScanner(s rowScanner) (document.Document, error) {
	var d document.Document
	var docType string
	err := s.Scan(&d.ID, &d.ProjectID, &d.AuthorAgentID, &docType, &d.Title, &d.Body, &d.CreatedAt, &d.ExpiresAt)
	if err != nil {
		return document.Document{}, fmt.Errorf("scanning document: %w", err)
	}
	d.DocType = document.DocType(docType)
	return d, nil
}
