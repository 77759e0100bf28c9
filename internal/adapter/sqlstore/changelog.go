package sqlstore

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	"github.com/agentfleet/coordinator/internal/domain/changelog"
)

// ChangelogReader implements port/changelog.Reader over database/sql.
type ChangelogReader struct {
	store *Store
}

func NewChangelogReader(s *Store) *ChangelogReader { return &ChangelogReader{store: s} }

func (r *ChangelogReader) Since(ctx context.Context, projectID string, since time.Time, sinceSeq int64, until time.Time, untilSeq int64, kinds []changelog.Kind, limit int) ([]changelog.Entry, error) {
	q := `SELECT id, project_id, kind, ref_id, actor_agent_id, created_at, seq FROM changelog
		WHERE project_id = ?
		AND (created_at > ? OR (created_at = ? AND seq > ?))
		AND (created_at < ? OR (created_at = ? AND seq <= ?))`
	args := []any{projectID, since, since, sinceSeq, until, until, untilSeq}

	if len(kinds) > 0 {
		placeholders := make([]string, len(kinds))
		for i, k := range kinds {
			placeholders[i] = "?"
			args = append(args, string(k))
		}
		q += fmt.Sprintf(" AND kind IN (%s)", strings.Join(placeholders, ","))
	}
	q += " ORDER BY created_at ASC, seq ASC"
	if limit > 0 {
		q += " LIMIT ?"
		args = append(args, limit)
	}

	rows, err := r.store.DB().QueryContext(ctx, q, args...)
	if err != nil {
		return nil, fmt.Errorf("querying changelog: %w", err)
	}
	defer rows.Close()

	var out []changelog.Entry
	for rows.Next() {
		e, err := scanChangelogEntry(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, e)
	}
	return out, rows.Err()
}

func scanChangelogEntry(rows *sql.Rows) (changelog.Entry, error) {
	var e changelog.Entry
	var kind string
	var actor sql.NullString
	if err := rows.Scan(&e.ID, &e.ProjectID, &kind, &e.RefID, &actor, &e.CreatedAt, &e.Seq); err != nil {
		return changelog.Entry{}, fmt.Errorf("scanning changelog entry: %w", err)
	}
	e.Kind = changelog.Kind(kind)
	if actor.Valid {
		e.ActorAgentID = &actor.String
	}
	return e, nil
}
