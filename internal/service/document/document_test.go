package document_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	realbroadcast "github.com/agentfleet/coordinator/internal/adapter/broadcast"
	domaindocument "github.com/agentfleet/coordinator/internal/domain/document"
	. "github.com/agentfleet/coordinator/internal/service/document"
	"github.com/agentfleet/coordinator/internal/testutil"
)

func TestCreatePublishesDocumentAppendsChangelogAndProcessesMentions(t *testing.T) {
	repo := testutil.NewFakeDocumentRepository()
	st := testutil.NewFakeStore()
	notifier := testutil.NewFakeMentionProcessor()
	svc := New(repo, notifier, st, realbroadcast.New())
	ctx := context.Background()

	created, err := svc.Create(ctx, "proj-1", "dev_1", domaindocument.DocTypeRunbook, "deploy steps", "ping @dev_2 before deploying", nil)
	require.NoError(t, err)
	assert.Equal(t, "deploy steps", created.Title)
	require.Len(t, st.Changelog, 1)
	require.Len(t, notifier.Calls, 1)
	assert.Equal(t, created.ID, notifier.Calls[0].SourceID)

	projectID := "proj-1"
	list, err := svc.List(ctx, domaindocument.ListFilters{ProjectID: &projectID})
	require.NoError(t, err)
	require.Len(t, list, 1)
	assert.Equal(t, created.ID, list[0].ID)
}
