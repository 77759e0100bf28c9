package changes_test

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	realbroadcast "github.com/agentfleet/coordinator/internal/adapter/broadcast"
	domainagent "github.com/agentfleet/coordinator/internal/domain/agent"
	"github.com/agentfleet/coordinator/internal/domain/changelog"
	domainmention "github.com/agentfleet/coordinator/internal/domain/mention"
	domaintask "github.com/agentfleet/coordinator/internal/domain/task"
	"github.com/agentfleet/coordinator/internal/port/broadcast"
	. "github.com/agentfleet/coordinator/internal/service/changes"
	"github.com/agentfleet/coordinator/internal/testutil"
)

type harness struct {
	svc   *Service
	store *testutil.FakeStore
	tasks *testutil.FakeTaskRepository
	docs  *testutil.FakeDocumentRepository
	mentions *testutil.FakeMentionRepository
	agents *testutil.FakeAgentRepository
	svcs  *testutil.FakeServiceRegistry
	bc    *realbroadcast.Broadcaster
}

func newHarness(t *testing.T) *harness {
	t.Helper()
	st := testutil.NewFakeStore()
	h := &harness{
		store:    st,
		tasks:    testutil.NewFakeTaskRepository(),
		docs:     testutil.NewFakeDocumentRepository(),
		mentions: testutil.NewFakeMentionRepository(),
		agents:   testutil.NewFakeAgentRepository(),
		svcs:     testutil.NewFakeServiceRegistry(),
		bc:       realbroadcast.New(),
	}
	h.svc = New(testutil.NewFakeChangelogReader(st), h.tasks, h.docs, h.mentions, h.agents, h.svcs, st, h.bc)
	return h
}

func TestSinceReturnsNewTask(t *testing.T) {
	h := newHarness(t)
	tk := h.tasks.Seed(domaintask.New("proj-1", "feat-1", "t", "", domainagent.RoleBackendDev, domainagent.LevelSenior, domaintask.ComplexityMajor, "pm_1"))
	require.NoError(t, h.store.InsertChangelog(context.Background(), testutil.FakeTx{}, changelog.KindTaskCreated, "proj-1", tk.ID, nil))

	snap, err := h.svc.Since(context.Background(), "proj-1", time.Time{}, 0, "viewer", false)
	require.NoError(t, err)
	require.Len(t, snap.TasksNew, 1)
	assert.Equal(t, tk.ID, snap.TasksNew[0].ID)
	assert.False(t, snap.Empty())
}

// TestChangesRoundTripIsMonotone exercises scenario S6's non-waiting half:
// a second call using the first call's returned timestamp as `since` must
// not repeat any entry already delivered.
func TestChangesRoundTripIsMonotone(t *testing.T) {
	h := newHarness(t)
	tk := h.tasks.Seed(domaintask.New("proj-1", "feat-1", "t", "", domainagent.RoleBackendDev, domainagent.LevelSenior, domaintask.ComplexityMajor, "pm_1"))
	require.NoError(t, h.store.InsertChangelog(context.Background(), testutil.FakeTx{}, changelog.KindTaskCreated, "proj-1", tk.ID, nil))

	first, err := h.svc.Since(context.Background(), "proj-1", time.Time{}, 0, "viewer", false)
	require.NoError(t, err)
	require.Len(t, first.TasksNew, 1)

	second, err := h.svc.Since(context.Background(), "proj-1", first.Timestamp, first.TimestampSeq, "viewer", false)
	require.NoError(t, err)
	assert.True(t, second.Empty(), "no new activity since the first call's timestamp")
	assert.True(t, second.Timestamp.After(first.Timestamp) || second.Timestamp.Equal(first.Timestamp))
}

func TestMentionVisibilityScopedToRecipient(t *testing.T) {
	h := newHarness(t)
	h.agents.Seed(domainagent.New("proj-1", "dev_a", domainagent.RoleBackendDev, domainagent.LevelSenior, domainagent.ConnectionMCP))
	recipient := "dev_a"
	m, err := h.mentions.Create(context.Background(), domainmention.New("proj-1", domainmention.SourceDocument, "doc-1", "dev_a", &recipient))
	require.NoError(t, err)
	require.NoError(t, h.store.InsertChangelog(context.Background(), testutil.FakeTx{}, changelog.KindMentionCreated, "proj-1", m.ID, nil))

	visible, err := h.svc.Since(context.Background(), "proj-1", time.Time{}, 0, "dev_a", false)
	require.NoError(t, err)
	require.Len(t, visible.Mentions, 1)

	invisible, err := h.svc.Since(context.Background(), "proj-1", time.Time{}, 0, "dev_b", false)
	require.NoError(t, err)
	assert.Empty(t, invisible.Mentions, "a non-recipient, non-PM viewer must not see another agent's mention")

	asPM, err := h.svc.Since(context.Background(), "proj-1", time.Time{}, 0, "pm_1", true)
	require.NoError(t, err)
	assert.Len(t, asPM.Mentions, 1, "a project PM sees every mention")
}

func TestWaitTimesOutToEmptySnapshotWithAdvancingTimestamp(t *testing.T) {
	h := newHarness(t)
	snap, err := h.svc.Wait(context.Background(), "proj-1", time.Time{}, 0, "viewer", false, 100*time.Millisecond)
	require.NoError(t, err)
	assert.True(t, snap.Empty())
}

func TestWaitWakesOnChangelogAppend(t *testing.T) {
	h := newHarness(t)
	resultCh := make(chan Snapshot, 1)
	go func() {
		snap, _ := h.svc.Wait(context.Background(), "proj-1", time.Time{}, 0, "viewer", false, 2*time.Second)
		resultCh <- snap
	}()

	time.Sleep(50 * time.Millisecond)
	tk := h.tasks.Seed(domaintask.New("proj-1", "feat-1", "t", "", domainagent.RoleBackendDev, domainagent.LevelSenior, domaintask.ComplexityMajor, "pm_1"))
	require.NoError(t, h.store.InsertChangelog(context.Background(), testutil.FakeTx{}, changelog.KindTaskCreated, "proj-1", tk.ID, nil))
	h.bc.Publish("proj-1", broadcast.TopicChanges)

	select {
	case snap := <-resultCh:
		require.Len(t, snap.TasksNew, 1)
	case <-time.After(3 * time.Second):
		t.Fatal("waiter was not woken by the changelog append")
	}
}
