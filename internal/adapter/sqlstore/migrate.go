package sqlstore

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
)

// schemaVersion1 is the whole schema as of this release. Future breaking
// changes add schemaVersion2 and a migration step, not an edit to this
// constant's SQL — kept as a single version for now since nothing has
// shipped against an earlier one yet.
const schemaVersion1 = 1

// schemaV1 is portable across sqlite and mysql: no backend-specific types
// beyond TEXT/INTEGER/REAL, which both drivers accept.
const schemaV1 = `
CREATE TABLE IF NOT EXISTS schema_migrations (
	version INTEGER PRIMARY KEY
);

CREATE TABLE IF NOT EXISTS projects (
	id TEXT PRIMARY KEY,
	name TEXT NOT NULL UNIQUE,
	paths_shared TEXT NOT NULL,
	paths_instructions TEXT NOT NULL,
	paths_docs TEXT NOT NULL,
	paths_guidelines TEXT NOT NULL DEFAULT '',
	repo_url TEXT NOT NULL,
	repo_main_branch TEXT NOT NULL,
	repo_clone_path TEXT,
	created_at DATETIME NOT NULL,
	deleted_at DATETIME
);

CREATE TABLE IF NOT EXISTS agents (
	project_id TEXT NOT NULL REFERENCES projects(id),
	agent_id TEXT NOT NULL,
	role TEXT NOT NULL,
	level TEXT NOT NULL,
	connection_type TEXT NOT NULL,
	last_seen DATETIME NOT NULL,
	current_task_id TEXT,
	created_at DATETIME NOT NULL,
	PRIMARY KEY (project_id, agent_id)
);

CREATE TABLE IF NOT EXISTS epics (
	id TEXT PRIMARY KEY,
	project_id TEXT NOT NULL REFERENCES projects(id),
	name TEXT NOT NULL,
	description TEXT NOT NULL,
	created_by_agent TEXT NOT NULL,
	created_at DATETIME NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_epics_project ON epics(project_id);

CREATE TABLE IF NOT EXISTS features (
	id TEXT PRIMARY KEY,
	epic_id TEXT NOT NULL REFERENCES epics(id),
	name TEXT NOT NULL,
	description TEXT NOT NULL,
	created_at DATETIME NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_features_epic ON features(epic_id);

CREATE TABLE IF NOT EXISTS tasks (
	id TEXT PRIMARY KEY,
	project_id TEXT NOT NULL REFERENCES projects(id),
	feature_id TEXT NOT NULL REFERENCES features(id),
	title TEXT NOT NULL,
	description TEXT NOT NULL,
	target_role TEXT NOT NULL,
	difficulty TEXT NOT NULL,
	complexity TEXT NOT NULL,
	branch TEXT,
	status TEXT NOT NULL,
	locked_by_agent_id TEXT,
	locked_at DATETIME,
	created_by TEXT NOT NULL,
	assigned_to TEXT,
	notes TEXT,
	created_at DATETIME NOT NULL,
	updated_at DATETIME NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_tasks_project ON tasks(project_id);
CREATE INDEX IF NOT EXISTS idx_tasks_feature ON tasks(feature_id);
CREATE INDEX IF NOT EXISTS idx_tasks_dispatch ON tasks(project_id, status, target_role, difficulty);

CREATE TABLE IF NOT EXISTS task_comments (
	id TEXT PRIMARY KEY,
	task_id TEXT NOT NULL REFERENCES tasks(id),
	author_agent_id TEXT NOT NULL,
	body TEXT NOT NULL,
	created_at DATETIME NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_comments_task ON task_comments(task_id);

CREATE TABLE IF NOT EXISTS documents (
	id TEXT PRIMARY KEY,
	project_id TEXT NOT NULL REFERENCES projects(id),
	author_agent_id TEXT NOT NULL,
	doc_type TEXT NOT NULL,
	title TEXT NOT NULL,
	body TEXT NOT NULL,
	created_at DATETIME NOT NULL,
	expires_at DATETIME
);
CREATE INDEX IF NOT EXISTS idx_documents_project ON documents(project_id);

CREATE TABLE IF NOT EXISTS mentions (
	id TEXT PRIMARY KEY,
	project_id TEXT NOT NULL REFERENCES projects(id),
	source_type TEXT NOT NULL,
	source_id TEXT NOT NULL,
	mentioned_handle TEXT NOT NULL,
	recipient_agent_id TEXT,
	created_at DATETIME NOT NULL,
	read_at DATETIME,
	UNIQUE (source_type, source_id, mentioned_handle)
);
CREATE INDEX IF NOT EXISTS idx_mentions_recipient ON mentions(project_id, recipient_agent_id, read_at);

CREATE TABLE IF NOT EXISTS services (
	project_id TEXT NOT NULL REFERENCES projects(id),
	name TEXT NOT NULL,
	owner_agent_id TEXT NOT NULL,
	port INTEGER NOT NULL,
	status TEXT NOT NULL,
	ping_url TEXT,
	meta TEXT NOT NULL DEFAULT '{}',
	last_heartbeat DATETIME NOT NULL,
	created_at DATETIME NOT NULL,
	PRIMARY KEY (project_id, name)
);

CREATE TABLE IF NOT EXISTS changelog (
	id TEXT PRIMARY KEY,
	project_id TEXT NOT NULL REFERENCES projects(id),
	kind TEXT NOT NULL,
	ref_id TEXT NOT NULL,
	actor_agent_id TEXT,
	created_at DATETIME NOT NULL,
	seq INTEGER NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_changelog_cursor ON changelog(project_id, created_at, seq);
`

// migrate brings db up to schemaVersion1, idempotently. Every statement in
// schemaV1 uses IF NOT EXISTS so re-running on an already-current database
// is a no-op.
func migrate(ctx context.Context, db *sql.DB) error {
	if _, err := db.ExecContext(ctx, "CREATE TABLE IF NOT EXISTS schema_migrations (version INTEGER PRIMARY KEY)"); err != nil {
		return fmt.Errorf("creating schema_migrations: %w", err)
	}

	var current int
	row := db.QueryRowContext(ctx, "SELECT COALESCE(MAX(version), 0) FROM schema_migrations")
	if err := row.Scan(&current); err != nil {
		return fmt.Errorf("reading schema version: %w", err)
	}
	if current >= schemaVersion1 {
		return nil
	}

	tx, err := db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("beginning migration tx: %w", err)
	}
	defer tx.Rollback()

	for _, stmt := range splitStatements(schemaV1) {
		if _, err := tx.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("applying migration statement: %w", err)
		}
	}
	if _, err := tx.ExecContext(ctx, "INSERT INTO schema_migrations (version) VALUES (?)", schemaVersion1); err != nil {
		return fmt.Errorf("recording schema version: %w", err)
	}
	return tx.Commit()
}

// splitStatements breaks a semicolon-delimited DDL block into individual
// statements. Good enough for a static, author-controlled schema string
// with no semicolons inside string literals.
func splitStatements(block string) []string {
	var stmts []string
	for _, raw := range strings.Split(block, ";") {
		if s := strings.TrimSpace(raw); s != "" {
			stmts = append(stmts, s)
		}
	}
	return stmts
}
