package sqlstore

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/agentfleet/coordinator/internal/domain/mention"
)

// MentionRepository implements port/mention.Repository over database/sql.
// The (source_type, source_id, mentioned_handle) UNIQUE index is the
// durable backstop for the per-(source,recipient) dedup rule; Create
// treats a unique-constraint violation as "already recorded", not an error.
type MentionRepository struct {
	store *Store
}

func NewMentionRepository(s *Store) *MentionRepository { return &MentionRepository{store: s} }

func (r *MentionRepository) Create(ctx context.Context, m mention.Mention) (mention.Mention, error) {
	if m.ID == "" {
		m.ID = uuid.New().String()
	}
	_, err := r.store.DB().ExecContext(ctx, `
		INSERT INTO mentions (id, project_id, source_type, source_id, mentioned_handle, recipient_agent_id, created_at, read_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		m.ID, m.ProjectID, string(m.SourceType), m.SourceID, m.MentionedHandle, m.RecipientAgentID, m.CreatedAt, m.ReadAt,
	)
	if isUniqueViolation(err) {
		return r.getBySource(ctx, m.ProjectID, m.SourceType, m.SourceID, m.MentionedHandle)
	}
	if err != nil {
		return mention.Mention{}, fmt.Errorf("inserting mention: %w", err)
	}
	return m, nil
}

func (r *MentionRepository) getBySource(ctx context.Context, projectID string, sourceType mention.SourceType, sourceID, handle string) (mention.Mention, error) {
	row := r.store.DB().QueryRowContext(ctx, mentionSelect+` WHERE project_id = ? AND source_type = ? AND source_id = ? AND mentioned_handle = ?`,
		projectID, string(sourceType), sourceID, handle)
	return scanMention(row)
}

func (r *MentionRepository) ListForAgent(ctx context.Context, projectID, agentID string, unreadOnly bool) ([]mention.Mention, error) {
	q := mentionSelect + " WHERE project_id = ? AND recipient_agent_id = ?"
	args := []any{projectID, agentID}
	if unreadOnly {
		q += " AND read_at IS NULL"
	}
	q += " ORDER BY created_at DESC"

	rows, err := r.store.DB().QueryContext(ctx, q, args...)
	if err != nil {
		return nil, fmt.Errorf("listing mentions: %w", err)
	}
	defer rows.Close()

	var out []mention.Mention
	for rows.Next() {
		m, err := scanMentionRows(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, m)
	}
	return out, rows.Err()
}

func (r *MentionRepository) MarkRead(ctx context.Context, projectID, id string) error {
	_, err := r.store.DB().ExecContext(ctx, `UPDATE mentions SET read_at = ? WHERE project_id = ? AND id = ?`,
		time.Now().UTC(), projectID, id)
	if err != nil {
		return fmt.Errorf("marking mention read: %w", err)
	}
	return nil
}

func (r *MentionRepository) ExistsForSource(ctx context.Context, projectID string, sourceType mention.SourceType, sourceID, handle string) (bool, error) {
	var n int
	err := r.store.DB().QueryRowContext(ctx,
		`SELECT COUNT(*) FROM mentions WHERE project_id = ? AND source_type = ? AND source_id = ? AND mentioned_handle = ?`,
		projectID, string(sourceType), sourceID, handle).Scan(&n)
	if err != nil {
		return false, fmt.Errorf("checking mention existence: %w", err)
	}
	return n > 0, nil
}

const mentionSelect = `SELECT id, project_id, source_type, source_id, mentioned_handle, recipient_agent_id, created_at, read_at FROM mentions`

func scanMention(row *sql.Row) (mention.Mention, error)      { return scanMentionScanner(row) }
func scanMentionRows(rows *sql.Rows) (mention.Mention, error) { return scanMentionScanner(rows) }

func scanMentionScanner(s rowScanner) (mention.Mention, error) {
	var m mention.Mention
	var sourceType string
	var recipient sql.NullString
	err := s.Scan(&m.ID, &m.ProjectID, &sourceType, &m.SourceID, &m.MentionedHandle, &recipient, &m.CreatedAt, &m.ReadAt)
	if err != nil {
		return mention.Mention{}, fmt.Errorf("scanning mention: %w", err)
	}
	m.SourceType = mention.SourceType(sourceType)
	if recipient.Valid {
		m.RecipientAgentID = &recipient.String
	}
	return m, nil
}

// isUniqueViolation recognizes the unique-constraint error text both
// backends produce; there is no portable sentinel across database/sql
// drivers for this.
func isUniqueViolation(err error) bool {
	if err == nil {
		return false
	}
	msg := err.Error()
	return strings.Contains(msg, "UNIQUE constraint failed") || strings.Contains(msg, "Duplicate entry")
}
