package agent_test

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	. "github.com/agentfleet/coordinator/internal/domain/agent"
)

func TestLevelMeets(t *testing.T) {
	tests := []struct {
		name     string
		have     Level
		required Level
		want     bool
	}{
		{"principal meets senior", LevelPrincipal, LevelSenior, true},
		{"senior meets senior", LevelSenior, LevelSenior, true},
		{"junior does not meet senior", LevelJunior, LevelSenior, false},
		{"principal meets junior", LevelPrincipal, LevelJunior, true},
		{"junior meets junior", LevelJunior, LevelJunior, true},
		{"unknown level never meets junior", Level("bogus"), LevelJunior, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, tt.have.Meets(tt.required))
		})
	}
}

func TestRoleIsPM(t *testing.T) {
	assert.True(t, RoleProjectPM.IsPM())
	assert.True(t, RoleGlobalPM.IsPM())
	assert.False(t, RoleArchitect.IsPM())
	assert.False(t, RoleQA.IsPM())
}

func TestHoldsTask(t *testing.T) {
	a := New("proj-1", "agent-1", RoleBackendDev, LevelSenior, ConnectionMCP)
	assert.False(t, a.HoldsTask())

	id := "task-1"
	a.CurrentTaskID = &id
	assert.True(t, a.HoldsTask())
}

func TestTouchUpdatesLastSeen(t *testing.T) {
	a := New("proj-1", "agent-1", RoleQA, LevelJunior, ConnectionClient)
	stale := a.LastSeen.Add(-time.Hour)
	a.LastSeen = stale
	a.Touch()
	assert.True(t, a.LastSeen.After(stale))
}
