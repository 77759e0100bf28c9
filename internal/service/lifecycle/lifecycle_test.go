package lifecycle_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	realbroadcast "github.com/agentfleet/coordinator/internal/adapter/broadcast"
	domainagent "github.com/agentfleet/coordinator/internal/domain/agent"
	"github.com/agentfleet/coordinator/internal/domain/apperr"
	domaintask "github.com/agentfleet/coordinator/internal/domain/task"
	. "github.com/agentfleet/coordinator/internal/service/lifecycle"
	"github.com/agentfleet/coordinator/internal/testutil"
)

func newLifecycle(t *testing.T) (*Service, *testutil.FakeTaskRepository, *testutil.FakeAgentRepository) {
	t.Helper()
	tasks := testutil.NewFakeTaskRepository()
	agents := testutil.NewFakeAgentRepository()
	st := testutil.NewFakeStore()
	bc := realbroadcast.New()
	return New(tasks, agents, st, bc), tasks, agents
}

func note(s string) *string { return &s }

func TestTransitionApproveByArchitect(t *testing.T) {
	svc, tasks, _ := newLifecycle(t)
	tk := domaintask.New("proj-1", "feat-1", "t", "", domainagent.RoleBackendDev, domainagent.LevelSenior, domaintask.ComplexityMajor, "pm_1")
	seeded := tasks.Seed(tk)

	got, err := svc.Transition(context.Background(), "proj-1", seeded.ID, "architect_1", domainagent.RoleArchitect, domaintask.StatusApproved, nil, false)
	require.NoError(t, err)
	assert.Equal(t, domaintask.StatusApproved, got.Status)
}

func TestTransitionApproveRejectedForNonAuthority(t *testing.T) {
	svc, tasks, _ := newLifecycle(t)
	tk := domaintask.New("proj-1", "feat-1", "t", "", domainagent.RoleBackendDev, domainagent.LevelSenior, domaintask.ComplexityMajor, "pm_1")
	seeded := tasks.Seed(tk)

	_, err := svc.Transition(context.Background(), "proj-1", seeded.ID, "dev_1", domainagent.RoleBackendDev, domaintask.StatusApproved, nil, false)
	require.Error(t, err)
	assert.Equal(t, apperr.KindForbidden, apperr.KindOf(err))
}

func TestTransitionIllegalEdgeRejected(t *testing.T) {
	svc, tasks, _ := newLifecycle(t)
	tk := domaintask.New("proj-1", "feat-1", "t", "", domainagent.RoleBackendDev, domainagent.LevelSenior, domaintask.ComplexityMajor, "pm_1")
	seeded := tasks.Seed(tk)

	_, err := svc.Transition(context.Background(), "proj-1", seeded.ID, "pm_1", domainagent.RoleProjectPM, domaintask.StatusCommitted, nil, false)
	require.Error(t, err)
	assert.Equal(t, apperr.KindUnprocessableState, apperr.KindOf(err))
}

func TestTransitionDevDoneRequiresLocker(t *testing.T) {
	svc, tasks, agents := newLifecycle(t)
	locker := "dev_1"
	agents.Seed(domainagent.New("proj-1", locker, domainagent.RoleBackendDev, domainagent.LevelSenior, domainagent.ConnectionMCP))

	tk := domaintask.New("proj-1", "feat-1", "t", "", domainagent.RoleBackendDev, domainagent.LevelSenior, domaintask.ComplexityMajor, "pm_1")
	tk.Status = domaintask.StatusUnderWork
	tk.LockedByAgentID = &locker
	seeded := tasks.Seed(tk)

	_, err := svc.Transition(context.Background(), "proj-1", seeded.ID, "dev_2", domainagent.RoleBackendDev, domaintask.StatusDevDone, nil, false)
	require.Error(t, err, "only the locker may move the task it holds")
	assert.Equal(t, apperr.KindForbidden, apperr.KindOf(err))

	got, err := svc.Transition(context.Background(), "proj-1", seeded.ID, locker, domainagent.RoleBackendDev, domaintask.StatusDevDone, nil, false)
	require.NoError(t, err)
	assert.Equal(t, domaintask.StatusDevDone, got.Status)
}

// TestQARejectionUnlocksAndClearsAgent exercises scenario S2: a QA
// rejection moves the task back to created, unlocks it, and clears the
// locker's current-task pointer.
func TestQARejectionUnlocksAndClearsAgent(t *testing.T) {
	svc, tasks, agents := newLifecycle(t)
	qaID := "qa_1"
	agents.Seed(domainagent.New("proj-1", qaID, domainagent.RoleQA, domainagent.LevelSenior, domainagent.ConnectionMCP))

	tk := domaintask.New("proj-1", "feat-1", "t", "", domainagent.RoleBackendDev, domainagent.LevelSenior, domaintask.ComplexityMajor, "pm_1")
	tk.Status = domaintask.StatusTesting
	tk.LockedByAgentID = &qaID
	seeded := tasks.Seed(tk)
	require.NoError(t, agents.SetCurrentTask(context.Background(), "proj-1", qaID, &seeded.ID))

	_, err := svc.Transition(context.Background(), "proj-1", seeded.ID, qaID, domainagent.RoleQA, domaintask.StatusCreated, nil, false)
	require.Error(t, err, "qa rejection requires a note")
	assert.Equal(t, apperr.KindBadRequest, apperr.KindOf(err))

	got, err := svc.Transition(context.Background(), "proj-1", seeded.ID, qaID, domainagent.RoleQA, domaintask.StatusCreated, note("missing empty-password test"), false)
	require.NoError(t, err)
	assert.Equal(t, domaintask.StatusCreated, got.Status)
	assert.Nil(t, got.LockedByAgentID)

	reloaded, err := agents.GetByID(context.Background(), "proj-1", qaID)
	require.NoError(t, err)
	assert.Nil(t, reloaded.CurrentTaskID, "qa agent must be freed for new work")
}

func TestOverridePermitsAnyEdgeForArchitect(t *testing.T) {
	svc, tasks, _ := newLifecycle(t)
	tk := domaintask.New("proj-1", "feat-1", "t", "", domainagent.RoleBackendDev, domainagent.LevelSenior, domaintask.ComplexityMajor, "pm_1")
	tk.Status = domaintask.StatusQADone
	seeded := tasks.Seed(tk)

	got, err := svc.Transition(context.Background(), "proj-1", seeded.ID, "architect_1", domainagent.RoleArchitect, domaintask.StatusCreated, nil, true)
	require.NoError(t, err)
	assert.Equal(t, domaintask.StatusCreated, got.Status)
}

func TestOverrideForbiddenForNonArchitectPM(t *testing.T) {
	svc, tasks, _ := newLifecycle(t)
	tk := domaintask.New("proj-1", "feat-1", "t", "", domainagent.RoleBackendDev, domainagent.LevelSenior, domaintask.ComplexityMajor, "pm_1")
	tk.Status = domaintask.StatusQADone
	seeded := tasks.Seed(tk)

	_, err := svc.Transition(context.Background(), "proj-1", seeded.ID, "dev_1", domainagent.RoleBackendDev, domaintask.StatusCreated, nil, true)
	require.Error(t, err)
	assert.Equal(t, apperr.KindForbidden, apperr.KindOf(err))
}

func TestEvaluateRejectRequiresNoteAndStaysCreated(t *testing.T) {
	svc, tasks, _ := newLifecycle(t)
	tk := domaintask.New("proj-1", "feat-1", "t", "", domainagent.RoleBackendDev, domainagent.LevelSenior, domaintask.ComplexityMajor, "pm_1")
	seeded := tasks.Seed(tk)

	_, err := svc.Evaluate(context.Background(), "proj-1", seeded.ID, "pm_1", domainagent.RoleProjectPM, false, nil)
	require.Error(t, err)
	assert.Equal(t, apperr.KindBadRequest, apperr.KindOf(err))

	got, err := svc.Evaluate(context.Background(), "proj-1", seeded.ID, "pm_1", domainagent.RoleProjectPM, false, note("needs more detail"))
	require.NoError(t, err)
	assert.Equal(t, domaintask.StatusCreated, got.Status)
	require.NotNil(t, got.Notes)
	assert.Equal(t, "needs more detail", *got.Notes)
}

func TestEvaluateApproveDelegatesToTransition(t *testing.T) {
	svc, tasks, _ := newLifecycle(t)
	tk := domaintask.New("proj-1", "feat-1", "t", "", domainagent.RoleBackendDev, domainagent.LevelSenior, domaintask.ComplexityMajor, "pm_1")
	seeded := tasks.Seed(tk)

	got, err := svc.Evaluate(context.Background(), "proj-1", seeded.ID, "pm_1", domainagent.RoleProjectPM, true, nil)
	require.NoError(t, err)
	assert.Equal(t, domaintask.StatusApproved, got.Status)
}
