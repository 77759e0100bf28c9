package notifier

import "context"

// AgentNotifier pushes a best-effort event to a specific agent's connected
// dashboard session. This is never the contract for correctness — the
// polling /changes endpoint is — it only makes the WebSocket mirror feel
// live. A miss here is invisible to callers; nothing retries delivery.
type AgentNotifier interface {
	NotifyAgent(ctx context.Context, projectID, agentID string, event any) error
}
