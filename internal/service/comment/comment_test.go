package comment_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	domainmention "github.com/agentfleet/coordinator/internal/domain/mention"
	. "github.com/agentfleet/coordinator/internal/service/comment"
	"github.com/agentfleet/coordinator/internal/testutil"
)

func TestCreatePostsCommentAndProcessesMentions(t *testing.T) {
	repo := testutil.NewFakeCommentRepository()
	notifier := testutil.NewFakeMentionProcessor()
	svc := New(repo, notifier)
	ctx := context.Background()

	created, err := svc.Create(ctx, "proj-1", "task-1", "dev_1", "looping in @dev_2")
	require.NoError(t, err)
	assert.NotEmpty(t, created.ID)
	assert.Equal(t, "task-1", created.TaskID)

	require.Len(t, notifier.Calls, 1)
	assert.Equal(t, domainmention.SourceTaskComment, notifier.Calls[0].SourceType)
	assert.Equal(t, created.ID, notifier.Calls[0].SourceID)

	listed, err := svc.ListByTask(ctx, "task-1")
	require.NoError(t, err)
	require.Len(t, listed, 1)
	assert.Equal(t, created.ID, listed[0].ID)
}
