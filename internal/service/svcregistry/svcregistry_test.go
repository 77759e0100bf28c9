package svcregistry_test

import (
	"context"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	realbroadcast "github.com/agentfleet/coordinator/internal/adapter/broadcast"
	reallock "github.com/agentfleet/coordinator/internal/adapter/lock"
	domainsvc "github.com/agentfleet/coordinator/internal/domain/svcregistry"
	. "github.com/agentfleet/coordinator/internal/service/svcregistry"
	"github.com/agentfleet/coordinator/internal/testutil"
)

func newSvc(t *testing.T) (*Service, *testutil.FakeStore) {
	t.Helper()
	st := testutil.NewFakeStore()
	return New(testutil.NewFakeServiceRegistry(), st, realbroadcast.New(), reallock.New()), st
}

func TestRegisterFirstSeenAppendsChangelogOnce(t *testing.T) {
	svc, st := newSvc(t)
	ctx := context.Background()

	s, err := svc.Register(ctx, "proj-1", "web", "dev_1", 3000, nil, nil)
	require.NoError(t, err)
	assert.Equal(t, "web", s.Name)
	assert.Len(t, st.Changelog, 1)

	_, err = svc.Register(ctx, "proj-1", "web", "dev_1", 3001, nil, nil)
	require.NoError(t, err)
	assert.Len(t, st.Changelog, 1, "re-registering an existing service name is not a new changelog event")
}

func TestConcurrentFirstRegistrationAppendsExactlyOneChangelogEntry(t *testing.T) {
	svc, st := newSvc(t)
	ctx := context.Background()

	var wg sync.WaitGroup
	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, _ = svc.Register(ctx, "proj-1", "web", "dev_1", 3000, nil, nil)
		}()
	}
	wg.Wait()

	assert.Len(t, st.Changelog, 1)
}

func TestHeartbeatAppendsChangelogOnlyOnStatusChange(t *testing.T) {
	svc, st := newSvc(t)
	ctx := context.Background()
	_, err := svc.Register(ctx, "proj-1", "web", "dev_1", 3000, nil, nil)
	require.NoError(t, err)
	require.Len(t, st.Changelog, 1)

	require.NoError(t, svc.Heartbeat(ctx, "proj-1", "web", domainsvc.StatusStarting))
	assert.Len(t, st.Changelog, 1, "an unchanged status is not a notable event")

	require.NoError(t, svc.Heartbeat(ctx, "proj-1", "web", domainsvc.StatusUp))
	assert.Len(t, st.Changelog, 2, "a status transition appends a changelog entry")
}
