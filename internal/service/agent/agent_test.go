package agent_test

import (
	"context"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	realbroadcast "github.com/agentfleet/coordinator/internal/adapter/broadcast"
	reallock "github.com/agentfleet/coordinator/internal/adapter/lock"
	domainagent "github.com/agentfleet/coordinator/internal/domain/agent"
	"github.com/agentfleet/coordinator/internal/domain/apperr"
	. "github.com/agentfleet/coordinator/internal/service/agent"
	"github.com/agentfleet/coordinator/internal/testutil"
)

func newAgentSvc(t *testing.T) (*Service, *testutil.FakeAgentRepository, *testutil.FakeTaskRepository, *testutil.FakeStore) {
	t.Helper()
	agents := testutil.NewFakeAgentRepository()
	tasks := testutil.NewFakeTaskRepository()
	st := testutil.NewFakeStore()
	return New(agents, tasks, st, realbroadcast.New(), reallock.New()), agents, tasks, st
}

func TestRegisterFirstSeenAppendsChangelogOnce(t *testing.T) {
	svc, _, _, st := newAgentSvc(t)
	ctx := context.Background()

	a, err := svc.Register(ctx, "proj-1", "dev_1", domainagent.RoleBackendDev, domainagent.LevelSenior, domainagent.ConnectionMCP)
	require.NoError(t, err)
	assert.Equal(t, "dev_1", a.AgentID)
	assert.Len(t, st.Changelog, 1, "first registration appends exactly one changelog entry")

	_, err = svc.Register(ctx, "proj-1", "dev_1", domainagent.RoleBackendDev, domainagent.LevelSenior, domainagent.ConnectionMCP)
	require.NoError(t, err)
	assert.Len(t, st.Changelog, 1, "a reconnecting agent refreshing its registration is not a new changelog event")
}

// TestConcurrentFirstRegistrationAppendsExactlyOneChangelogEntry guards the
// per-agent lock: without it, two goroutines racing Register for a brand
// new agent could both observe "not found" and both append a changelog
// entry for the same first registration.
func TestConcurrentFirstRegistrationAppendsExactlyOneChangelogEntry(t *testing.T) {
	svc, _, _, st := newAgentSvc(t)
	ctx := context.Background()

	var wg sync.WaitGroup
	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, _ = svc.Register(ctx, "proj-1", "dev_1", domainagent.RoleBackendDev, domainagent.LevelSenior, domainagent.ConnectionMCP)
		}()
	}
	wg.Wait()

	assert.Len(t, st.Changelog, 1, "concurrent first-registrations must append exactly one changelog entry")
}

func TestDeleteRequiresPMAuthority(t *testing.T) {
	svc, agents, _, _ := newAgentSvc(t)
	ctx := context.Background()
	agents.Seed(domainagent.New("proj-1", "dev_1", domainagent.RoleBackendDev, domainagent.LevelSenior, domainagent.ConnectionMCP))

	err := svc.Delete(ctx, "proj-1", "dev_1", domainagent.RoleBackendDev)
	var appErr *apperr.Error
	require.ErrorAs(t, err, &appErr)
	assert.Equal(t, apperr.KindForbidden, appErr.Kind)

	require.NoError(t, svc.Delete(ctx, "proj-1", "dev_1", domainagent.RoleProjectPM))
	_, err = svc.GetByID(ctx, "proj-1", "dev_1")
	require.ErrorIs(t, err, apperr.ErrNotFound)
}
