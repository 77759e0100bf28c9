package notifier_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	domainagent "github.com/agentfleet/coordinator/internal/domain/agent"
	domainmention "github.com/agentfleet/coordinator/internal/domain/mention"
	. "github.com/agentfleet/coordinator/internal/service/notifier"
	"github.com/agentfleet/coordinator/internal/testutil"
)

func newNotifier(t *testing.T) (*Service, *testutil.FakeAgentRepository) {
	t.Helper()
	mentions := testutil.NewFakeMentionRepository()
	agents := testutil.NewFakeAgentRepository()
	st := testutil.NewFakeStore()
	return New(mentions, agents, st, nil), agents
}

// TestMentionFanOut exercises scenario S3: a document body mentioning two
// resolvable handles and one unresolvable one returns exactly two
// mentions, both with a recipient; the unresolved handle is not returned.
func TestMentionFanOut(t *testing.T) {
	svc, agents := newNotifier(t)
	agents.Seed(domainagent.New("proj-1", "dev_a", domainagent.RoleBackendDev, domainagent.LevelSenior, domainagent.ConnectionMCP))
	agents.Seed(domainagent.New("proj-1", "dev_b", domainagent.RoleFrontendDev, domainagent.LevelJunior, domainagent.ConnectionClient))

	created, err := svc.ProcessBody(context.Background(), "proj-1", domainmention.SourceDocument, "doc-1", "cc @dev_a @dev_b @ghost")
	require.NoError(t, err)
	require.Len(t, created, 2, "only resolvable handles are returned")

	handles := map[string]bool{}
	for _, m := range created {
		handles[m.MentionedHandle] = true
		require.NotNil(t, m.RecipientAgentID)
	}
	assert.True(t, handles["dev_a"])
	assert.True(t, handles["dev_b"])
	assert.False(t, handles["ghost"])
}

func TestMentionFanOutNoHandles(t *testing.T) {
	svc, _ := newNotifier(t)
	created, err := svc.ProcessBody(context.Background(), "proj-1", domainmention.SourceDocument, "doc-1", "no handles here")
	require.NoError(t, err)
	assert.Empty(t, created)
}

func TestMentionFanOutIsIdempotentPerSource(t *testing.T) {
	svc, agents := newNotifier(t)
	agents.Seed(domainagent.New("proj-1", "dev_a", domainagent.RoleBackendDev, domainagent.LevelSenior, domainagent.ConnectionMCP))

	first, err := svc.ProcessBody(context.Background(), "proj-1", domainmention.SourceDocument, "doc-1", "hi @dev_a")
	require.NoError(t, err)
	require.Len(t, first, 1)

	second, err := svc.ProcessBody(context.Background(), "proj-1", domainmention.SourceDocument, "doc-1", "hi @dev_a")
	require.NoError(t, err)
	assert.Empty(t, second, "re-processing the same source must not duplicate the mention")

	all, err := svc.ListForAgent(context.Background(), "proj-1", "dev_a", false)
	require.NoError(t, err)
	assert.Len(t, all, 1)
}

func TestMarkReadIsIdempotent(t *testing.T) {
	svc, agents := newNotifier(t)
	agents.Seed(domainagent.New("proj-1", "dev_a", domainagent.RoleBackendDev, domainagent.LevelSenior, domainagent.ConnectionMCP))

	created, err := svc.ProcessBody(context.Background(), "proj-1", domainmention.SourceTaskComment, "task-1", "@dev_a please review")
	require.NoError(t, err)
	require.Len(t, created, 1)

	require.NoError(t, svc.MarkRead(context.Background(), "proj-1", created[0].ID))
	require.NoError(t, svc.MarkRead(context.Background(), "proj-1", created[0].ID))

	unread, err := svc.ListForAgent(context.Background(), "proj-1", "dev_a", true)
	require.NoError(t, err)
	assert.Empty(t, unread)
}
