package task

import (
	"context"

	"github.com/agentfleet/coordinator/internal/port/store"

	domainagent "github.com/agentfleet/coordinator/internal/domain/agent"
	domaintask "github.com/agentfleet/coordinator/internal/domain/task"
)

// Repository manages task persistence and the exclusive-locking, CAS-based
// status transitions the dispatcher and lifecycle engine depend on.
type Repository interface {
	Create(ctx context.Context, t domaintask.Task) (domaintask.Task, error)
	GetByID(ctx context.Context, projectID, id string) (domaintask.Task, error)
	List(ctx context.Context, filters domaintask.ListFilters) ([]domaintask.Task, error)

	// ClaimNext atomically selects and locks the single best-ranked task in
	// fromStatus (optionally filtered to target_role = role, per the
	// lifecycle.ClaimRule for the requester's role) eligible for `level`,
	// per the §4.2.1 tie-break order (complexity major-first, difficulty
	// desc, created_at asc, id asc), transitioning it to toStatus and
	// setting locked_by_agent_id/locked_at in the same statement. Returns
	// (zero-value, false, nil) if nothing is eligible.
	ClaimNext(ctx context.Context, projectID string, fromStatus, toStatus domaintask.Status, role domainagent.Role, filterByTarget bool, level domainagent.Level, agentID string) (domaintask.Task, bool, error)

	// UpdateStatus performs an atomic CAS inside tx: it only transitions if
	// the current status matches `fromStatus`. It does not check the lock
	// owner and does not append a changelog entry; the lifecycle service
	// does both around this call.
	UpdateStatus(ctx context.Context, tx store.Tx, projectID, id string, fromStatus, toStatus domaintask.Status, byAgentID, note *string) (domaintask.Task, error)

	// UnassignByAgent clears the lock on every task the given agent
	// currently holds, used when an agent goes offline.
	UnassignByAgent(ctx context.Context, projectID, agentID string) error

	// ReleaseStale reclaims every task locked by agentID in under_work or
	// testing, resetting status to approved and clearing the lock, for the
	// reaper's grace-period release (§4.7.1). Returns the released task
	// IDs so the caller can sweep dispatch waiters for the freed role.
	ReleaseStale(ctx context.Context, projectID, agentID string) ([]string, error)

	// LockSpecific performs the same CAS lock as ClaimNext but against a
	// single, caller-identified task rather than the best-ranked candidate
	// — the explicit `POST /tasks/{id}/lock` path, for a caller that
	// already knows which task it wants rather than asking the dispatcher
	// to choose. Returns (zero-value, false, nil) if the task is not
	// currently in fromStatus and unlocked.
	LockSpecific(ctx context.Context, projectID, id string, fromStatus, toStatus domaintask.Status, agentID string) (domaintask.Task, bool, error)

	// BeginTx opens a unit of work participated in by UpdateStatus.
	BeginTx(ctx context.Context) (store.Tx, error)

	// Unclaim reverts a just-claimed task back to revertStatus and clears
	// its lock, scoped to the claiming agentID so it is a no-op if the
	// task has already moved on through another path. Used to roll back a
	// ClaimNext/LockSpecific win when the agent-row CAS that should follow
	// it loses the single-active-task race (§4.2.2 step 3).
	Unclaim(ctx context.Context, projectID, id string, revertStatus domaintask.Status, agentID string) error
}
