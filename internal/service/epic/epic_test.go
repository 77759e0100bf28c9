package epic_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	domainepic "github.com/agentfleet/coordinator/internal/domain/epic"
	. "github.com/agentfleet/coordinator/internal/service/epic"
	"github.com/agentfleet/coordinator/internal/testutil"
)

func TestCreateAndListScopedToProject(t *testing.T) {
	svc := New(testutil.NewFakeEpicRepository())
	ctx := context.Background()

	e1, err := svc.Create(ctx, "proj-1", "billing", "billing epic", "pm_1")
	require.NoError(t, err)
	_, err = svc.Create(ctx, "proj-2", "search", "search epic", "pm_2")
	require.NoError(t, err)

	projectID := "proj-1"
	list, err := svc.List(ctx, domainepic.ListFilters{ProjectID: &projectID})
	require.NoError(t, err)
	require.Len(t, list, 1)
	assert.Equal(t, e1.ID, list[0].ID)
}
