// Package task defines the Task entity and its §4.3 lifecycle state
// machine: the unit of dispatched work under a Feature, with
// exclusive-locking status transitions.
package task

import (
	"time"

	"github.com/agentfleet/coordinator/internal/domain/agent"
)

// Status is the closed set of task lifecycle states plus the dispatcher-only
// synthetic "waiting" pseudo-status, which is never persisted — it is
// returned in-band from a long-poll timeout so callers can distinguish "no
// task" from "here is a task" without an error.
type Status string

const (
	StatusCreated           Status = "created"
	StatusApproved          Status = "approved"
	StatusUnderWork         Status = "under_work"
	StatusDevDone           Status = "dev_done"
	StatusTesting           Status = "testing"
	StatusQADone            Status = "qa_done"
	StatusDocumentationDone Status = "documentation_done"
	StatusCommitted         Status = "committed"

	// StatusWaiting is never written to storage. It is the dispatcher's
	// in-band sentinel for "no eligible task before the long-poll deadline".
	StatusWaiting Status = "waiting"
)

// Complexity drives dispatch tie-breaking: major work is dispatched before
// minor work of equal difficulty, to reduce churn from picking up many
// small tasks ahead of one large one.
type Complexity string

const (
	ComplexityMajor Complexity = "major"
	ComplexityMinor Complexity = "minor"
)

// Difficulty reuses the agent skill-level enumeration: a task's difficulty
// is compared against an agent's level with the same ordinal ranking.
type Difficulty = agent.Level

// legalEdges enumerates every (from, to) pair from spec §4.3, excluding the
// universal override edge which is handled separately since it applies
// from any source state and is authorized differently.
var legalEdges = map[Status]map[Status]bool{
	StatusCreated:           {StatusApproved: true},
	StatusApproved:          {StatusUnderWork: true},
	StatusUnderWork:         {StatusDevDone: true},
	StatusDevDone:           {StatusTesting: true},
	StatusTesting:           {StatusQADone: true, StatusCreated: true},
	StatusQADone:            {StatusDocumentationDone: true},
	StatusDocumentationDone: {StatusCommitted: true},
	StatusCommitted:         {},
}

// CanTransitionTo reports whether (s -> target) is a legal non-override edge.
func (s Status) CanTransitionTo(target Status) bool {
	edges, ok := legalEdges[s]
	if !ok {
		return false
	}
	return edges[target]
}

// IsTerminal reports whether no further (non-override) transitions exist.
func (s Status) IsTerminal() bool { return s == StatusCommitted }

// RequiresComment reports whether moving from s to target must carry an
// accompanying note. Only QA failure (testing->created) does; the note on
// an evaluator rejection (created->created) is checked by the lifecycle
// service, not here.
func (s Status) RequiresComment(target Status) bool {
	return s == StatusTesting && target == StatusCreated
}

// ClearsLock reports whether leaving `from` for `to` must release the task
// lock and the actor's current-task pointer: every exit from {under_work,
// testing} that is not itself entering {under_work, testing} (i.e. not the
// "start work" transition).
func ClearsLock(from, to Status) bool {
	leavingLocked := from == StatusUnderWork || from == StatusTesting
	enteringLocked := to == StatusUnderWork || to == StatusTesting
	return leavingLocked && !enteringLocked
}

// Task is the unit of dispatched work.
type Task struct {
	ID              string     `json:"id"`
	ProjectID       string     `json:"project_id"`
	FeatureID       string     `json:"feature_id"`
	Title           string     `json:"title"`
	Description     string     `json:"description"`
	TargetRole      agent.Role `json:"target_role"`
	Difficulty      Difficulty `json:"difficulty"`
	Complexity      Complexity `json:"complexity"`
	Branch          *string    `json:"branch,omitempty"`
	Status          Status     `json:"status"`
	LockedByAgentID *string    `json:"locked_by_agent_id,omitempty"`
	LockedAt        *time.Time `json:"locked_at,omitempty"`
	CreatedBy       string     `json:"created_by"`
	AssignedTo      *string    `json:"assigned_to,omitempty"`
	UpdatedAt       time.Time  `json:"updated_at"`
	Notes           *string    `json:"notes,omitempty"`
	CreatedAt       time.Time  `json:"created_at"`
}

func New(projectID, featureID, title, description string, targetRole agent.Role, difficulty Difficulty, complexity Complexity, createdBy string) Task {
	now := time.Now().UTC()
	return Task{
		ProjectID:   projectID,
		FeatureID:   featureID,
		Title:       title,
		Description: description,
		TargetRole:  targetRole,
		Difficulty:  difficulty,
		Complexity:  complexity,
		Status:      StatusCreated,
		CreatedBy:   createdBy,
		CreatedAt:   now,
		UpdatedAt:   now,
	}
}

// IsLocked reports whether the task currently has an exclusive owner.
func (t Task) IsLocked() bool { return t.LockedByAgentID != nil }

// EligibleFor reports whether this task matches the §4.2.1 candidate rule
// generalized to an arbitrary claimable source status (see the lifecycle
// package's ClaimRule), ignoring the "requester already holds a task"
// check (the caller enforces that against the agent row, not the task
// row).
func (t Task) EligibleFor(fromStatus Status, role agent.Role, level agent.Level, filterByTarget bool) bool {
	if t.Status != fromStatus || t.IsLocked() || !level.Meets(t.Difficulty) {
		return false
	}
	return !filterByTarget || t.TargetRole == role
}

// ListFilters narrows a task listing/selection query.
type ListFilters struct {
	ProjectID  *string
	FeatureID  *string
	Status     *Status
	TargetRole *agent.Role
	AssignedTo *string
	LockedBy   *string
}
