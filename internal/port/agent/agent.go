package agent

import (
	"context"

	domainagent "github.com/agentfleet/coordinator/internal/domain/agent"
)

// Repository manages agent state.
type Repository interface {
	Register(ctx context.Context, a domainagent.Agent) (domainagent.Agent, error)
	GetByID(ctx context.Context, projectID, agentID string) (domainagent.Agent, error)
	List(ctx context.Context, filters domainagent.ListFilters) ([]domainagent.Agent, error)
	Delete(ctx context.Context, projectID, agentID string) error

	// ResolveHandle looks up an agent by agent_id matched case-insensitively
	// against handle, per §4.4's mention-resolution rule. Returns
	// apperr.ErrNotFound if no agent in the project matches.
	ResolveHandle(ctx context.Context, projectID, handle string) (domainagent.Agent, error)

	// Touch refreshes LastSeen, called on every authenticated request.
	Touch(ctx context.Context, projectID, agentID string) error

	// SetCurrentTask records or clears the task an agent currently holds.
	// Used for the clearing (taskID == nil) side of the pointer only;
	// acquiring a task goes through ClaimCurrentTask's CAS instead.
	SetCurrentTask(ctx context.Context, projectID, agentID string, taskID *string) error

	// ClaimCurrentTask atomically sets current_task_id to taskID only if it
	// is currently null — the agent-row half of the single-active-task
	// invariant (§5: "locking the agent row... within one transaction").
	// Returns false if the agent already held a task at the moment of the
	// update, in which case the caller must release whatever task it just
	// locked and surface Conflict(already_holds_task).
	ClaimCurrentTask(ctx context.Context, projectID, agentID, taskID string) (bool, error)
}
