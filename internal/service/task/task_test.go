package task_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	realbroadcast "github.com/agentfleet/coordinator/internal/adapter/broadcast"
	domainagent "github.com/agentfleet/coordinator/internal/domain/agent"
	domaintask "github.com/agentfleet/coordinator/internal/domain/task"
	. "github.com/agentfleet/coordinator/internal/service/task"
	"github.com/agentfleet/coordinator/internal/testutil"
)

func TestCreateInsertsTaskInCreatedStatusAndAppendsChangelog(t *testing.T) {
	repo := testutil.NewFakeTaskRepository()
	st := testutil.NewFakeStore()
	svc := New(repo, st, realbroadcast.New())
	ctx := context.Background()

	created, err := svc.Create(ctx, "proj-1", "feat-1", "wire up auth", "", domainagent.RoleBackendDev, domainagent.LevelSenior, domaintask.ComplexityMajor, "pm_1")
	require.NoError(t, err)
	assert.Equal(t, domaintask.StatusCreated, created.Status)
	require.Len(t, st.Changelog, 1)

	fetched, err := svc.GetByID(ctx, "proj-1", created.ID)
	require.NoError(t, err)
	assert.Equal(t, created.Title, fetched.Title)
}

func TestListFiltersByProject(t *testing.T) {
	repo := testutil.NewFakeTaskRepository()
	st := testutil.NewFakeStore()
	svc := New(repo, st, realbroadcast.New())
	ctx := context.Background()

	_, err := svc.Create(ctx, "proj-1", "feat-1", "task a", "", domainagent.RoleBackendDev, domainagent.LevelSenior, domaintask.ComplexityMajor, "pm_1")
	require.NoError(t, err)
	_, err = svc.Create(ctx, "proj-2", "feat-2", "task b", "", domainagent.RoleBackendDev, domainagent.LevelSenior, domaintask.ComplexityMajor, "pm_2")
	require.NoError(t, err)

	projectID := "proj-1"
	list, err := svc.List(ctx, domaintask.ListFilters{ProjectID: &projectID})
	require.NoError(t, err)
	require.Len(t, list, 1)
	assert.Equal(t, "task a", list[0].Title)
}
