package liveness_test

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	realbroadcast "github.com/agentfleet/coordinator/internal/adapter/broadcast"
	domainagent "github.com/agentfleet/coordinator/internal/domain/agent"
	"github.com/agentfleet/coordinator/internal/domain/liveness"
	domainsvc "github.com/agentfleet/coordinator/internal/domain/svcregistry"
	domaintask "github.com/agentfleet/coordinator/internal/domain/task"
	. "github.com/agentfleet/coordinator/internal/service/liveness"
	"github.com/agentfleet/coordinator/internal/testutil"
)

func TestAgentLivenessClassifiesByLastSeen(t *testing.T) {
	svc := New(testutil.NewFakeAgentRepository(), testutil.NewFakeTaskRepository(), testutil.NewFakeServiceRegistry(), realbroadcast.New(), DefaultWindows())
	now := time.Now().UTC()

	a := domainagent.New("proj-1", "dev_1", domainagent.RoleBackendDev, domainagent.LevelSenior, domainagent.ConnectionMCP)
	a.LastSeen = now.Add(-time.Minute)
	status, _ := svc.AgentLiveness(a, now)
	assert.Equal(t, liveness.AgentOnline, status)

	a.LastSeen = now.Add(-2 * time.Hour)
	status, _ = svc.AgentLiveness(a, now)
	assert.Equal(t, liveness.AgentOffline, status)
}

func TestServiceLivenessOverridesToDownWhenHeartbeatStale(t *testing.T) {
	svc := New(testutil.NewFakeAgentRepository(), testutil.NewFakeTaskRepository(), testutil.NewFakeServiceRegistry(), realbroadcast.New(), DefaultWindows())
	now := time.Now().UTC()

	s := domainsvc.New("proj-1", "web", "dev_1", 3000, nil, nil)
	s.Status = domainsvc.StatusUp
	s.LastHeartbeat = now.Add(-time.Minute)
	assert.Equal(t, domainsvc.StatusUp, svc.ServiceLiveness(s, now))

	s.LastHeartbeat = now.Add(-10 * time.Minute)
	assert.Equal(t, domainsvc.StatusDown, svc.ServiceLiveness(s, now))
}

func TestReclaimStaleAgentsReleasesHeldTasksPastGrace(t *testing.T) {
	agents := testutil.NewFakeAgentRepository()
	tasks := testutil.NewFakeTaskRepository()
	bc := realbroadcast.New()
	windows := DefaultWindows()
	windows.TaskHoldGrace = time.Minute
	svc := New(agents, tasks, testutil.NewFakeServiceRegistry(), bc, windows)

	a := domainagent.New("proj-1", "dev_1", domainagent.RoleBackendDev, domainagent.LevelSenior, domainagent.ConnectionMCP)
	taskID := "task-1"
	a.CurrentTaskID = &taskID
	a.LastSeen = time.Now().UTC().Add(-time.Hour)
	agents.Seed(a)

	created := tasks.Seed(domaintask.Task{ID: taskID, ProjectID: "proj-1", Status: domaintask.StatusUnderWork, LockedByAgentID: &a.AgentID})
	require.Equal(t, taskID, created.ID)

	svc.RunProbes(canceledAfterOneSweep(t), func() []string { return []string{"proj-1"} })

	fetched, err := tasks.GetByID(context.Background(), "proj-1", taskID)
	require.NoError(t, err)
	assert.Equal(t, domaintask.StatusApproved, fetched.Status)
	assert.Nil(t, fetched.LockedByAgentID)

	refreshed, err := agents.GetByID(context.Background(), "proj-1", "dev_1")
	require.NoError(t, err)
	assert.Nil(t, refreshed.CurrentTaskID)
}

// canceledAfterOneSweep returns a context that RunProbes's startup sweep
// observes as live, then is cancelled before the probe ticker can fire a
// second time, so the test exercises exactly one reclaim pass.
func canceledAfterOneSweep(t *testing.T) context.Context {
	t.Helper()
	ctx, cancel := context.WithCancel(context.Background())
	t.Cleanup(cancel)
	go func() {
		time.Sleep(50 * time.Millisecond)
		cancel()
	}()
	return ctx
}
