// Package changelog defines the append-only ChangelogEntry stream that the
// change aggregator reads to answer "what changed since timestamp T".
package changelog

import "time"

// Kind is the closed set of change events.
type Kind string

const (
	KindTaskCreated       Kind = "task_created"
	KindTaskStatus        Kind = "task_status"
	KindTaskLocked        Kind = "task_locked"
	KindTaskUnlocked      Kind = "task_unlocked"
	KindDocumentCreated   Kind = "document_created"
	KindMentionCreated    Kind = "mention_created"
	KindAgentRegistered   Kind = "agent_registered"
	KindServiceRegistered Kind = "service_registered"
	KindServiceStatus     Kind = "service_status"
)

// Entry is one append-only row, ordered by (CreatedAt, Seq). Seq is the
// per-process monotonic tie-break counter composed with wall-clock time by
// store.MonotonicNow, persisted alongside CreatedAt so ordering survives a
// clock with coarser resolution than the event rate.
type Entry struct {
	ID            string    `json:"id"`
	ProjectID     string    `json:"project_id"`
	Kind          Kind      `json:"kind"`
	RefID         string    `json:"ref_id"`
	ActorAgentID  *string   `json:"actor_agent_id,omitempty"`
	CreatedAt     time.Time `json:"created_at"`
	Seq           int64     `json:"seq"`
}
