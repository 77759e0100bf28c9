package feature_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	domainfeature "github.com/agentfleet/coordinator/internal/domain/feature"
	. "github.com/agentfleet/coordinator/internal/service/feature"
	"github.com/agentfleet/coordinator/internal/testutil"
)

func TestCreateAndListScopedToEpic(t *testing.T) {
	svc := New(testutil.NewFakeFeatureRepository())
	ctx := context.Background()

	f1, err := svc.Create(ctx, "epic-1", "checkout", "checkout flow")
	require.NoError(t, err)
	_, err = svc.Create(ctx, "epic-2", "search-ui", "search UI")
	require.NoError(t, err)

	epicID := "epic-1"
	list, err := svc.List(ctx, domainfeature.ListFilters{EpicID: &epicID})
	require.NoError(t, err)
	require.Len(t, list, 1)
	assert.Equal(t, f1.ID, list[0].ID)
}
