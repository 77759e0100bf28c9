package sqlstore

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	domainagent "github.com/agentfleet/coordinator/internal/domain/agent"
	"github.com/agentfleet/coordinator/internal/domain/apperr"
	domaintask "github.com/agentfleet/coordinator/internal/domain/task"
	"github.com/agentfleet/coordinator/internal/port/store"
)

// TaskRepository implements port/task.Repository over database/sql. The
// exclusive-locking dispatch (ClaimNext) and the CAS status transition
// (UpdateStatus) are the two operations every other write rides on;
// everything here is built to make those two statements race-safe without
// Postgres-style session advisory locks.
type TaskRepository struct {
	store *Store
}

func NewTaskRepository(s *Store) *TaskRepository { return &TaskRepository{store: s} }

func (r *TaskRepository) Create(ctx context.Context, t domaintask.Task) (domaintask.Task, error) {
	if t.ID == "" {
		t.ID = uuid.New().String()
	}
	_, err := r.store.DB().ExecContext(ctx, `
		INSERT INTO tasks (id, project_id, feature_id, title, description, target_role, difficulty, complexity,
			branch, status, locked_by_agent_id, locked_at, created_by, assigned_to, notes, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		t.ID, t.ProjectID, t.FeatureID, t.Title, t.Description, string(t.TargetRole), string(t.Difficulty), string(t.Complexity),
		t.Branch, string(t.Status), t.LockedByAgentID, t.LockedAt, t.CreatedBy, t.AssignedTo, t.Notes, t.CreatedAt, t.UpdatedAt,
	)
	if err != nil {
		return domaintask.Task{}, fmt.Errorf("inserting task: %w", err)
	}
	return t, nil
}

func (r *TaskRepository) GetByID(ctx context.Context, projectID, id string) (domaintask.Task, error) {
	row := r.store.DB().QueryRowContext(ctx, taskSelect+" WHERE project_id = ? AND id = ?", projectID, id)
	t, err := scanTask(row)
	if errors.Is(err, sql.ErrNoRows) {
		return domaintask.Task{}, apperr.ErrNotFound
	}
	return t, err
}

func (r *TaskRepository) List(ctx context.Context, filters domaintask.ListFilters) ([]domaintask.Task, error) {
	q := taskSelect + " WHERE 1=1"
	var args []any
	if filters.ProjectID != nil {
		q += " AND project_id = ?"
		args = append(args, *filters.ProjectID)
	}
	if filters.FeatureID != nil {
		q += " AND feature_id = ?"
		args = append(args, *filters.FeatureID)
	}
	if filters.Status != nil {
		q += " AND status = ?"
		args = append(args, string(*filters.Status))
	}
	if filters.TargetRole != nil {
		q += " AND target_role = ?"
		args = append(args, string(*filters.TargetRole))
	}
	if filters.AssignedTo != nil {
		q += " AND assigned_to = ?"
		args = append(args, *filters.AssignedTo)
	}
	if filters.LockedBy != nil {
		q += " AND locked_by_agent_id = ?"
		args = append(args, *filters.LockedBy)
	}
	q += " ORDER BY created_at ASC"

	rows, err := r.store.DB().QueryContext(ctx, q, args...)
	if err != nil {
		return nil, fmt.Errorf("listing tasks: %w", err)
	}
	defer rows.Close()

	var out []domaintask.Task
	for rows.Next() {
		t, err := scanTaskRows(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, t)
	}
	return out, rows.Err()
}

// eligibleDifficulties returns every level an agent at `level` may take on,
// i.e. every difficulty d where level.Meets(d).
func eligibleDifficulties(level domainagent.Level) []domainagent.Level {
	all := []domainagent.Level{domainagent.LevelJunior, domainagent.LevelSenior, domainagent.LevelPrincipal}
	var out []domainagent.Level
	for _, d := range all {
		if level.Meets(d) {
			out = append(out, d)
		}
	}
	return out
}

// ClaimNext implements the §4.2.1 candidate selection and exclusive lock in
// one pass, generalized over the lifecycle.ClaimRule (fromStatus/toStatus,
// and whether target_role filters candidates) so the same statement serves
// both the dev claim (approved -> under_work) and the QA claim
// (dev_done -> testing): select the best-ranked eligible task, then CAS it
// to locked. A race loser (another claim won between select and update)
// falls through to (zero, false, nil) rather than retrying — the caller
// (dispatcher service) applies the §4.2.2 bounded retry on top of this.
func (r *TaskRepository) ClaimNext(ctx context.Context, projectID string, fromStatus, toStatus domaintask.Status, role domainagent.Role, filterByTarget bool, level domainagent.Level, agentID string) (domaintask.Task, bool, error) {
	diffs := eligibleDifficulties(level)
	if len(diffs) == 0 {
		return domaintask.Task{}, false, nil
	}

	var claimed domaintask.Task
	var ok bool
	err := retryOnBusy(ctx, func() error {
		tx, err := r.store.DB().BeginTx(ctx, nil)
		if err != nil {
			return fmt.Errorf("beginning claim tx: %w", err)
		}
		defer tx.Rollback()

		placeholders := make([]string, len(diffs))
		args := []any{projectID, string(fromStatus)}
		targetFilter := ""
		if filterByTarget {
			targetFilter = " AND target_role = ?"
			args = append(args, string(role))
		}
		for i, d := range diffs {
			placeholders[i] = "?"
			args = append(args, string(d))
		}
		q := fmt.Sprintf(`%s WHERE project_id = ? AND status = ?%s AND locked_by_agent_id IS NULL
			AND difficulty IN (%s)
			ORDER BY
				CASE complexity WHEN 'major' THEN 0 ELSE 1 END ASC,
				CASE difficulty WHEN 'principal' THEN 0 WHEN 'senior' THEN 1 WHEN 'junior' THEN 2 ELSE 3 END ASC,
				created_at ASC, id ASC
			LIMIT 1`, taskSelect, targetFilter, strings.Join(placeholders, ","))

		row := tx.QueryRowContext(ctx, q, args...)
		candidate, err := scanTask(row)
		if errors.Is(err, sql.ErrNoRows) {
			return nil
		}
		if err != nil {
			return fmt.Errorf("selecting claim candidate: %w", err)
		}

		now := time.Now().UTC()
		res, err := tx.ExecContext(ctx, `
			UPDATE tasks SET status = ?, locked_by_agent_id = ?, locked_at = ?, assigned_to = ?, updated_at = ?
			WHERE id = ? AND status = ? AND locked_by_agent_id IS NULL`,
			string(toStatus), agentID, now, agentID, now,
			candidate.ID, string(fromStatus),
		)
		if err != nil {
			return fmt.Errorf("claiming task: %w", err)
		}
		n, _ := res.RowsAffected()
		if n == 0 {
			// Lost the race; leave ok=false and let the caller re-poll.
			return tx.Commit()
		}
		candidate.Status = toStatus
		candidate.LockedByAgentID = &agentID
		candidate.LockedAt = &now
		candidate.AssignedTo = &agentID
		candidate.UpdatedAt = now
		claimed = candidate
		ok = true
		return tx.Commit()
	})
	if err != nil {
		return domaintask.Task{}, false, err
	}
	return claimed, ok, nil
}

// LockSpecific performs the same CAS lock ClaimNext does, but against a
// single caller-identified task instead of the best-ranked candidate —
// the explicit POST /tasks/{id}/lock path.
func (r *TaskRepository) LockSpecific(ctx context.Context, projectID, id string, fromStatus, toStatus domaintask.Status, agentID string) (domaintask.Task, bool, error) {
	var claimed domaintask.Task
	var ok bool
	err := retryOnBusy(ctx, func() error {
		tx, err := r.store.DB().BeginTx(ctx, nil)
		if err != nil {
			return fmt.Errorf("beginning lock tx: %w", err)
		}
		defer tx.Rollback()

		now := time.Now().UTC()
		res, err := tx.ExecContext(ctx, `
			UPDATE tasks SET status = ?, locked_by_agent_id = ?, locked_at = ?, assigned_to = ?, updated_at = ?
			WHERE project_id = ? AND id = ? AND status = ? AND locked_by_agent_id IS NULL`,
			string(toStatus), agentID, now, agentID, now,
			projectID, id, string(fromStatus),
		)
		if err != nil {
			return fmt.Errorf("locking task: %w", err)
		}
		n, _ := res.RowsAffected()
		if n == 0 {
			return tx.Commit()
		}

		row := tx.QueryRowContext(ctx, taskSelect+" WHERE project_id = ? AND id = ?", projectID, id)
		t, err := scanTask(row)
		if err != nil {
			return fmt.Errorf("reloading locked task: %w", err)
		}
		claimed = t
		ok = true
		return tx.Commit()
	})
	if err != nil {
		return domaintask.Task{}, false, err
	}
	return claimed, ok, nil
}

// Unclaim reverts a just-locked task back to revertStatus and clears its
// lock, scoped to the claiming agentID so a task that already moved on
// through another path (e.g. it was re-locked or transitioned again before
// this ran) is left untouched.
func (r *TaskRepository) Unclaim(ctx context.Context, projectID, id string, revertStatus domaintask.Status, agentID string) error {
	_, err := r.store.DB().ExecContext(ctx, `
		UPDATE tasks SET status = ?, locked_by_agent_id = NULL, locked_at = NULL, assigned_to = NULL, updated_at = ?
		WHERE project_id = ? AND id = ? AND locked_by_agent_id = ?`,
		string(revertStatus), time.Now().UTC(), projectID, id, agentID,
	)
	if err != nil {
		return fmt.Errorf("unclaiming task: %w", err)
	}
	return nil
}

// UpdateStatus performs the CAS transition inside the tx handle the
// lifecycle service opened, which appends the changelog entry in that
// same transaction.
func (r *TaskRepository) UpdateStatus(ctx context.Context, tx store.Tx, projectID, id string, fromStatus, toStatus domaintask.Status, byAgentID, note *string) (domaintask.Task, error) {
	sqlt, err := unwrapTx(tx)
	if err != nil {
		return domaintask.Task{}, err
	}

	now := time.Now().UTC()
	clearLock := domaintask.ClearsLock(fromStatus, toStatus)

	q := `UPDATE tasks SET status = ?, updated_at = ?, notes = COALESCE(?, notes)`
	args := []any{string(toStatus), now, note}
	if clearLock {
		q += `, locked_by_agent_id = NULL, locked_at = NULL`
	}
	q += ` WHERE project_id = ? AND id = ? AND status = ?`
	args = append(args, projectID, id, string(fromStatus))

	res, err := sqlt.ExecContext(ctx, q, args...)
	if err != nil {
		return domaintask.Task{}, fmt.Errorf("updating task status: %w", err)
	}
	n, _ := res.RowsAffected()
	if n == 0 {
		return domaintask.Task{}, apperr.Conflictf("task %s is not in status %s", id, fromStatus)
	}

	row := sqlt.QueryRowContext(ctx, taskSelect+" WHERE project_id = ? AND id = ?", projectID, id)
	return scanTask(row)
}

func (r *TaskRepository) UnassignByAgent(ctx context.Context, projectID, agentID string) error {
	_, err := r.store.DB().ExecContext(ctx, `
		UPDATE tasks SET locked_by_agent_id = NULL, locked_at = NULL, updated_at = ?
		WHERE project_id = ? AND locked_by_agent_id = ?`,
		time.Now().UTC(), projectID, agentID)
	if err != nil {
		return fmt.Errorf("unassigning agent's tasks: %w", err)
	}
	return nil
}

// ReleaseStale resets every under_work/testing task locked by agentID back
// to approved and unlocked, returning the released task IDs. Implemented
// as a SELECT-then-UPDATE pair rather than a single RETURNING statement
// since mysql has no equivalent of sqlite/Postgres's UPDATE ... RETURNING.
func (r *TaskRepository) ReleaseStale(ctx context.Context, projectID, agentID string) ([]string, error) {
	rows, err := r.store.DB().QueryContext(ctx, `
		SELECT id FROM tasks
		WHERE project_id = ? AND locked_by_agent_id = ? AND status IN (?, ?)`,
		projectID, agentID, string(domaintask.StatusUnderWork), string(domaintask.StatusTesting),
	)
	if err != nil {
		return nil, fmt.Errorf("selecting stale tasks: %w", err)
	}
	var ids []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			rows.Close()
			return nil, fmt.Errorf("scanning stale task id: %w", err)
		}
		ids = append(ids, id)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	rows.Close()
	if len(ids) == 0 {
		return nil, nil
	}

	_, err = r.store.DB().ExecContext(ctx, `
		UPDATE tasks SET status = ?, locked_by_agent_id = NULL, locked_at = NULL, updated_at = ?
		WHERE project_id = ? AND locked_by_agent_id = ? AND status IN (?, ?)`,
		string(domaintask.StatusApproved), time.Now().UTC(), projectID, agentID,
		string(domaintask.StatusUnderWork), string(domaintask.StatusTesting),
	)
	if err != nil {
		return nil, fmt.Errorf("releasing stale tasks: %w", err)
	}
	return ids, nil
}

func (r *TaskRepository) BeginTx(ctx context.Context) (store.Tx, error) {
	tx, err := r.store.DB().BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("beginning task tx: %w", err)
	}
	return &sqlTx{tx: tx}, nil
}

const taskSelect = `SELECT id, project_id, feature_id, title, description, target_role, difficulty, complexity,
	branch, status, locked_by_agent_id, locked_at, created_by, assigned_to, notes, created_at, updated_at FROM tasks`

func scanTask(row *sql.Row) (domaintask.Task, error)      { return scanTaskScanner(row) }
func scanTaskRows(rows *sql.Rows) (domaintask.Task, error) { return scanTaskScanner(rows) }

func scanTaskScanner(s rowScanner) (domaintask.Task, error) {
	var t domaintask.Task
	var targetRole, difficulty, complexity, status string
	var branch, lockedBy, assignedTo, notes sql.NullString
	var lockedAt sql.NullTime
	err := s.Scan(&t.ID, &t.ProjectID, &t.FeatureID, &t.Title, &t.Description, &targetRole, &difficulty, &complexity,
		&branch, &status, &lockedBy, &lockedAt, &t.CreatedBy, &assignedTo, &notes, &t.CreatedAt, &t.UpdatedAt)
	if err != nil {
		return domaintask.Task{}, fmt.Errorf("scanning task: %w", err)
	}
	t.TargetRole = domainagent.Role(targetRole)
	t.Difficulty = domaintask.Difficulty(difficulty)
	t.Complexity = domaintask.Complexity(complexity)
	t.Status = domaintask.Status(status)
	if branch.Valid {
		t.Branch = &branch.String
	}
	if lockedBy.Valid {
		t.LockedByAgentID = &lockedBy.String
	}
	if lockedAt.Valid {
		t.LockedAt = &lockedAt.Time
	}
	if assignedTo.Valid {
		t.AssignedTo = &assignedTo.String
	}
	if notes.Valid {
		t.Notes = &notes.String
	}
	return t, nil
}
