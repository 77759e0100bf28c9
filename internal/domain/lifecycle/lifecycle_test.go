package lifecycle_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	domainagent "github.com/agentfleet/coordinator/internal/domain/agent"
	. "github.com/agentfleet/coordinator/internal/domain/lifecycle"
	"github.com/agentfleet/coordinator/internal/domain/task"
)

func TestRuleFor(t *testing.T) {
	tests := []struct {
		name          string
		from          task.Status
		to            task.Status
		wantOK        bool
		wantAuthority Authority
		wantComment   bool
	}{
		{"evaluate approve", task.StatusCreated, task.StatusApproved, true, AuthorityArchitectOrPM, false},
		{"dev marks dev_done", task.StatusUnderWork, task.StatusDevDone, true, AuthorityLocker, false},
		{"qa passes", task.StatusTesting, task.StatusQADone, true, AuthorityLocker, false},
		{"qa fails, requires comment", task.StatusTesting, task.StatusCreated, true, AuthorityLocker, true},
		{"anyone marks documentation_done", task.StatusQADone, task.StatusDocumentationDone, true, AuthorityAnyAgent, false},
		{"dev commits", task.StatusDocumentationDone, task.StatusCommitted, true, AuthorityAnyDev, false},
		{"approved->under_work is claim-only, no direct rule", task.StatusApproved, task.StatusUnderWork, false, 0, false},
		{"dev_done->testing is claim-only, no direct rule", task.StatusDevDone, task.StatusTesting, false, 0, false},
		{"committed has no outgoing rule", task.StatusCommitted, task.StatusUnderWork, false, 0, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rule, ok := RuleFor(tt.from, tt.to)
			require.Equal(t, tt.wantOK, ok)
			if !ok {
				return
			}
			assert.Equal(t, tt.wantAuthority, rule.Authority)
			assert.Equal(t, tt.wantComment, rule.RequiresComment)
		})
	}
}

func TestClaimRuleFor(t *testing.T) {
	tests := []struct {
		name        string
		role        domainagent.Role
		wantOK      bool
		wantFrom    task.Status
		wantTo      task.Status
		wantFilter  bool
	}{
		{"backend dev claims approved work", domainagent.RoleBackendDev, true, task.StatusApproved, task.StatusUnderWork, true},
		{"frontend dev claims approved work", domainagent.RoleFrontendDev, true, task.StatusApproved, task.StatusUnderWork, true},
		{"qa claims dev_done work, ignoring target role", domainagent.RoleQA, true, task.StatusDevDone, task.StatusTesting, false},
		{"architect does not participate in claiming", domainagent.RoleArchitect, false, "", "", false},
		{"project pm does not participate in claiming", domainagent.RoleProjectPM, false, "", "", false},
		{"ui admin does not participate in claiming", domainagent.RoleUIAdmin, false, "", "", false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rule, ok := ClaimRuleFor(tt.role)
			require.Equal(t, tt.wantOK, ok)
			if !ok {
				return
			}
			assert.Equal(t, tt.wantFrom, rule.FromStatus)
			assert.Equal(t, tt.wantTo, rule.ToStatus)
			assert.Equal(t, tt.wantFilter, rule.FilterByTarget)
		})
	}
}

func TestWakesDispatch(t *testing.T) {
	assert.True(t, WakesDispatch(task.StatusApproved), "approved wakes dev claimants")
	assert.True(t, WakesDispatch(task.StatusDevDone), "dev_done wakes qa claimants")
	assert.False(t, WakesDispatch(task.StatusQADone))
	assert.False(t, WakesDispatch(task.StatusCommitted))
}

func TestIsArchitectOrPM(t *testing.T) {
	assert.True(t, IsArchitectOrPM(domainagent.RoleArchitect))
	assert.True(t, IsArchitectOrPM(domainagent.RoleProjectPM))
	assert.True(t, IsArchitectOrPM(domainagent.RoleGlobalPM))
	assert.False(t, IsArchitectOrPM(domainagent.RoleQA))
	assert.False(t, IsArchitectOrPM(domainagent.RoleBackendDev))
}

func TestIsDev(t *testing.T) {
	assert.True(t, IsDev(domainagent.RoleFrontendDev))
	assert.True(t, IsDev(domainagent.RoleBackendDev))
	assert.False(t, IsDev(domainagent.RoleQA))
	assert.False(t, IsDev(domainagent.RoleArchitect))
}
