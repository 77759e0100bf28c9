package sqlstore

import (
	"context"
	"fmt"

	"github.com/google/uuid"

	"github.com/agentfleet/coordinator/internal/domain/comment"
)

// CommentRepository implements port/comment.Repository over database/sql.
type CommentRepository struct {
	store *Store
}

func NewCommentRepository(s *Store) *CommentRepository { return &CommentRepository{store: s} }

func (r *CommentRepository) Create(ctx context.Context, c comment.TaskComment) (comment.TaskComment, error) {
	if c.ID == "" {
		c.ID = uuid.New().String()
	}
	_, err := r.store.DB().ExecContext(ctx, `
		INSERT INTO task_comments (id, task_id, author_agent_id, body, created_at) VALUES (?, ?, ?, ?, ?)`,
		c.ID, c.TaskID, c.AuthorAgentID, c.Body, c.CreatedAt,
	)
	if err != nil {
		return comment.TaskComment{}, fmt.Errorf("inserting comment: %w", err)
	}
	return c, nil
}

func (r *CommentRepository) ListByTask(ctx context.Context, taskID string) ([]comment.TaskComment, error) {
	rows, err := r.store.DB().QueryContext(ctx,
		`SELECT id, task_id, author_agent_id, body, created_at FROM task_comments WHERE task_id = ? ORDER BY created_at ASC`,
		taskID)
	if err != nil {
		return nil, fmt.Errorf("listing comments: %w", err)
	}
	defer rows.Close()

	var out []comment.TaskComment
	for rows.Next() {
		var c comment.TaskComment
		if err := rows.Scan(&c.ID, &c.TaskID, &c.AuthorAgentID, &c.Body, &c.CreatedAt); err != nil {
			return nil, fmt.Errorf("scanning comment: %w", err)
		}
		out = append(out, c)
	}
	return out, rows.Err()
}
