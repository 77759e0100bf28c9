package task_test

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	domainagent "github.com/agentfleet/coordinator/internal/domain/agent"
	. "github.com/agentfleet/coordinator/internal/domain/task"
)

func TestCanTransitionTo(t *testing.T) {
	tests := []struct {
		name string
		from Status
		to   Status
		want bool
	}{
		{name: "created->approved", from: StatusCreated, to: StatusApproved, want: true},
		{name: "approved->under_work is claim-only", from: StatusApproved, to: StatusUnderWork, want: true},
		{name: "under_work->dev_done", from: StatusUnderWork, to: StatusDevDone, want: true},
		{name: "dev_done->testing is claim-only", from: StatusDevDone, to: StatusTesting, want: true},
		{name: "testing->qa_done", from: StatusTesting, to: StatusQADone, want: true},
		{name: "testing->created (qa reject)", from: StatusTesting, to: StatusCreated, want: true},
		{name: "qa_done->documentation_done", from: StatusQADone, to: StatusDocumentationDone, want: true},
		{name: "documentation_done->committed", from: StatusDocumentationDone, to: StatusCommitted, want: true},

		{name: "committed is terminal", from: StatusCommitted, to: StatusUnderWork, want: false},
		{name: "created cannot skip to under_work", from: StatusCreated, to: StatusUnderWork, want: false},
		{name: "approved cannot skip to dev_done", from: StatusApproved, to: StatusDevDone, want: false},
		{name: "qa_done cannot go back to testing", from: StatusQADone, to: StatusTesting, want: false},
		{name: "self-transition created", from: StatusCreated, to: StatusCreated, want: false},
		{name: "unknown source", from: Status("bogus"), to: StatusApproved, want: false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, tt.from.CanTransitionTo(tt.to))
		})
	}
}

func TestIsTerminal(t *testing.T) {
	assert.True(t, StatusCommitted.IsTerminal())
	assert.False(t, StatusQADone.IsTerminal())
}

func TestRequiresComment(t *testing.T) {
	assert.True(t, StatusTesting.RequiresComment(StatusCreated))
	assert.False(t, StatusTesting.RequiresComment(StatusQADone))
	assert.False(t, StatusUnderWork.RequiresComment(StatusDevDone))
}

func TestClearsLock(t *testing.T) {
	tests := []struct {
		name string
		from Status
		to   Status
		want bool
	}{
		{"under_work->dev_done clears", StatusUnderWork, StatusDevDone, true},
		{"testing->qa_done clears", StatusTesting, StatusQADone, true},
		{"testing->created clears (qa reject)", StatusTesting, StatusCreated, true},
		{"approved->under_work does not clear (entering locked)", StatusApproved, StatusUnderWork, false},
		{"dev_done->testing does not clear (entering locked)", StatusDevDone, StatusTesting, false},
		{"created->approved is unaffected (not leaving locked)", StatusCreated, StatusApproved, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, ClearsLock(tt.from, tt.to))
		})
	}
}

func TestTaskEligibleFor(t *testing.T) {
	mk := func(status Status, locked bool, role domainagent.Role, difficulty Difficulty) Task {
		tk := Task{Status: status, TargetRole: role, Difficulty: difficulty}
		if locked {
			id := "someone"
			tk.LockedByAgentID = &id
		}
		return tk
	}

	tests := []struct {
		name           string
		task           Task
		fromStatus     Status
		role           domainagent.Role
		level          domainagent.Level
		filterByTarget bool
		want           bool
	}{
		{
			name:           "matches status, role, and sufficient level",
			task:           mk(StatusApproved, false, domainagent.RoleBackendDev, domainagent.LevelSenior),
			fromStatus:     StatusApproved,
			role:           domainagent.RoleBackendDev,
			level:          domainagent.LevelSenior,
			filterByTarget: true,
			want:           true,
		},
		{
			name:           "principal meets senior requirement",
			task:           mk(StatusApproved, false, domainagent.RoleBackendDev, domainagent.LevelSenior),
			fromStatus:     StatusApproved,
			role:           domainagent.RoleBackendDev,
			level:          domainagent.LevelPrincipal,
			filterByTarget: true,
			want:           true,
		},
		{
			name:           "junior does not meet senior requirement",
			task:           mk(StatusApproved, false, domainagent.RoleBackendDev, domainagent.LevelSenior),
			fromStatus:     StatusApproved,
			role:           domainagent.RoleBackendDev,
			level:          domainagent.LevelJunior,
			filterByTarget: true,
			want:           false,
		},
		{
			name:           "wrong status excluded",
			task:           mk(StatusCreated, false, domainagent.RoleBackendDev, domainagent.LevelJunior),
			fromStatus:     StatusApproved,
			role:           domainagent.RoleBackendDev,
			level:          domainagent.LevelSenior,
			filterByTarget: true,
			want:           false,
		},
		{
			name:           "already locked excluded",
			task:           mk(StatusApproved, true, domainagent.RoleBackendDev, domainagent.LevelJunior),
			fromStatus:     StatusApproved,
			role:           domainagent.RoleBackendDev,
			level:          domainagent.LevelSenior,
			filterByTarget: true,
			want:           false,
		},
		{
			name:           "wrong target role excluded when filtering",
			task:           mk(StatusApproved, false, domainagent.RoleFrontendDev, domainagent.LevelJunior),
			fromStatus:     StatusApproved,
			role:           domainagent.RoleBackendDev,
			level:          domainagent.LevelSenior,
			filterByTarget: true,
			want:           false,
		},
		{
			name:           "QA ignores target role when not filtering",
			task:           mk(StatusDevDone, false, domainagent.RoleFrontendDev, domainagent.LevelJunior),
			fromStatus:     StatusDevDone,
			role:           domainagent.RoleQA,
			level:          domainagent.LevelSenior,
			filterByTarget: false,
			want:           true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := tt.task.EligibleFor(tt.fromStatus, tt.role, tt.level, tt.filterByTarget)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestNewTaskDefaults(t *testing.T) {
	before := time.Now().UTC()
	tk := New("proj-1", "feat-1", "Fix bug", "desc", domainagent.RoleBackendDev, domainagent.LevelSenior, ComplexityMajor, "pm_1")
	after := time.Now().UTC()

	assert.Equal(t, StatusCreated, tk.Status)
	assert.False(t, tk.IsLocked())
	assert.True(t, !tk.CreatedAt.Before(before) && !tk.CreatedAt.After(after))
	assert.Equal(t, tk.CreatedAt, tk.UpdatedAt)
}
