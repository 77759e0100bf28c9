package project_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	domainproject "github.com/agentfleet/coordinator/internal/domain/project"
	. "github.com/agentfleet/coordinator/internal/service/project"
	"github.com/agentfleet/coordinator/internal/testutil"
)

func TestCreateAndGetByIDRoundTrip(t *testing.T) {
	svc := New(testutil.NewFakeProjectRepository())
	ctx := context.Background()

	created, err := svc.Create(ctx, "demo", domainproject.Paths{Shared: "/shared"}, domainproject.Repo{URL: "git@x", MainBranch: "main"})
	require.NoError(t, err)
	assert.NotEmpty(t, created.ID)

	fetched, err := svc.GetByID(ctx, created.ID)
	require.NoError(t, err)
	assert.Equal(t, "demo", fetched.Name)
}

func TestDeleteHidesProjectFromListAndGet(t *testing.T) {
	svc := New(testutil.NewFakeProjectRepository())
	ctx := context.Background()

	created, err := svc.Create(ctx, "demo", domainproject.Paths{Shared: "/shared"}, domainproject.Repo{URL: "git@x", MainBranch: "main"})
	require.NoError(t, err)

	require.NoError(t, svc.Delete(ctx, created.ID))

	_, err = svc.GetByID(ctx, created.ID)
	assert.Error(t, err)

	list, err := svc.List(ctx)
	require.NoError(t, err)
	assert.Empty(t, list)
}
