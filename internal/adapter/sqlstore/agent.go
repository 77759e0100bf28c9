package sqlstore

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/agentfleet/coordinator/internal/domain/agent"
	"github.com/agentfleet/coordinator/internal/domain/apperr"
)

// AgentRepository implements port/agent.Repository over database/sql.
type AgentRepository struct {
	store *Store
}

func NewAgentRepository(s *Store) *AgentRepository { return &AgentRepository{store: s} }

// Register upserts by (project_id, agent_id): re-registering a known agent
// refreshes its role/level/connection/last_seen in place rather than
// erroring, since an MCP client reconnecting with the same agent_id is the
// common case, not an exceptional one. Implemented as update-then-insert
// rather than a dialect-specific upsert clause (sqlite's ON CONFLICT vs.
// mysql's ON DUPLICATE KEY UPDATE) to keep one code path for both backends.
func (r *AgentRepository) Register(ctx context.Context, a agent.Agent) (agent.Agent, error) {
	res, err := r.store.DB().ExecContext(ctx, `
		UPDATE agents SET role = ?, level = ?, connection_type = ?, last_seen = ?
		WHERE project_id = ? AND agent_id = ?`,
		string(a.Role), string(a.Level), string(a.ConnectionType), a.LastSeen, a.ProjectID, a.AgentID,
	)
	if err != nil {
		return agent.Agent{}, fmt.Errorf("registering agent: %w", err)
	}
	if n, _ := res.RowsAffected(); n > 0 {
		return a, nil
	}
	_, err = r.store.DB().ExecContext(ctx, `
		INSERT INTO agents (project_id, agent_id, role, level, connection_type, last_seen, current_task_id, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		a.ProjectID, a.AgentID, string(a.Role), string(a.Level), string(a.ConnectionType), a.LastSeen, a.CurrentTaskID, a.CreatedAt,
	)
	if err != nil {
		return agent.Agent{}, fmt.Errorf("registering agent: %w", err)
	}
	return a, nil
}

func (r *AgentRepository) GetByID(ctx context.Context, projectID, agentID string) (agent.Agent, error) {
	row := r.store.DB().QueryRowContext(ctx, agentSelect+" WHERE project_id = ? AND agent_id = ?", projectID, agentID)
	return scanAgent(row)
}

// ResolveHandle matches agent_id case-insensitively via LOWER(), which
// both sqlite and mysql evaluate identically for ASCII handles, avoiding
// a dialect-specific COLLATE clause.
func (r *AgentRepository) ResolveHandle(ctx context.Context, projectID, handle string) (agent.Agent, error) {
	row := r.store.DB().QueryRowContext(ctx, agentSelect+" WHERE project_id = ? AND LOWER(agent_id) = LOWER(?)", projectID, handle)
	return scanAgent(row)
}

func (r *AgentRepository) List(ctx context.Context, filters agent.ListFilters) ([]agent.Agent, error) {
	q := agentSelect + " WHERE 1=1"
	var args []any
	if filters.ProjectID != nil {
		q += " AND project_id = ?"
		args = append(args, *filters.ProjectID)
	}
	if filters.Role != nil {
		q += " AND role = ?"
		args = append(args, string(*filters.Role))
	}
	if filters.AgentID != nil {
		q += " AND agent_id = ?"
		args = append(args, *filters.AgentID)
	}
	q += " ORDER BY created_at ASC"

	rows, err := r.store.DB().QueryContext(ctx, q, args...)
	if err != nil {
		return nil, fmt.Errorf("listing agents: %w", err)
	}
	defer rows.Close()

	var out []agent.Agent
	for rows.Next() {
		a, err := scanAgentRows(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, a)
	}
	return out, rows.Err()
}

func (r *AgentRepository) Delete(ctx context.Context, projectID, agentID string) error {
	_, err := r.store.DB().ExecContext(ctx, `DELETE FROM agents WHERE project_id = ? AND agent_id = ?`, projectID, agentID)
	if err != nil {
		return fmt.Errorf("deleting agent: %w", err)
	}
	return nil
}

func (r *AgentRepository) Touch(ctx context.Context, projectID, agentID string) error {
	_, err := r.store.DB().ExecContext(ctx, `UPDATE agents SET last_seen = ? WHERE project_id = ? AND agent_id = ?`,
		time.Now().UTC(), projectID, agentID)
	if err != nil {
		return fmt.Errorf("touching agent: %w", err)
	}
	return nil
}

func (r *AgentRepository) SetCurrentTask(ctx context.Context, projectID, agentID string, taskID *string) error {
	_, err := r.store.DB().ExecContext(ctx, `UPDATE agents SET current_task_id = ? WHERE project_id = ? AND agent_id = ?`,
		taskID, projectID, agentID)
	if err != nil {
		return fmt.Errorf("setting agent current task: %w", err)
	}
	return nil
}

// ClaimCurrentTask is the CAS half of the single-active-task invariant: it
// only succeeds if the agent's current_task_id is still null, so two
// concurrent dispatcher claims for the same agent cannot both win even
// though they locked different task rows.
func (r *AgentRepository) ClaimCurrentTask(ctx context.Context, projectID, agentID, taskID string) (bool, error) {
	res, err := r.store.DB().ExecContext(ctx,
		`UPDATE agents SET current_task_id = ? WHERE project_id = ? AND agent_id = ? AND current_task_id IS NULL`,
		taskID, projectID, agentID)
	if err != nil {
		return false, fmt.Errorf("claiming agent current task: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("claiming agent current task: %w", err)
	}
	return n > 0, nil
}

const agentSelect = `SELECT project_id, agent_id, role, level, connection_type, last_seen, current_task_id, created_at FROM agents`

func scanAgent(row *sql.Row) (agent.Agent, error)   { return scanAgentScanner(row) }
func scanAgentRows(rows *sql.Rows) (agent.Agent, error) { return scanAgentScanner(rows) }

func scanAgentScanner(s rowScanner) (agent.Agent, error) {
	var a agent.Agent
	var role, level, conn string
	var currentTaskID sql.NullString
	err := s.Scan(&a.ProjectID, &a.AgentID, &role, &level, &conn, &a.LastSeen, &currentTaskID, &a.CreatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return agent.Agent{}, apperr.ErrNotFound
	}
	if err != nil {
		return agent.Agent{}, fmt.Errorf("scanning agent: %w", err)
	}
	a.Role = agent.Role(role)
	a.Level = agent.Level(level)
	a.ConnectionType = agent.ConnectionType(conn)
	if currentTaskID.Valid {
		a.CurrentTaskID = &currentTaskID.String
	}
	return a, nil
}
