// Package task implements task creation and read paths. The claim/lock/
// status-transition critical sections live in dispatcher and lifecycle —
// this package only owns what doesn't need CAS: creating a task in the
// created status and answering list/get queries.
package task

import (
	"context"
	"fmt"

	portbroadcast "github.com/agentfleet/coordinator/internal/port/broadcast"
	"github.com/agentfleet/coordinator/internal/port/store"
	porttask "github.com/agentfleet/coordinator/internal/port/task"

	domainagent "github.com/agentfleet/coordinator/internal/domain/agent"
	"github.com/agentfleet/coordinator/internal/domain/changelog"
	domaintask "github.com/agentfleet/coordinator/internal/domain/task"
)

type Service struct {
	repo        porttask.Repository
	store       store.Store
	broadcaster portbroadcast.Broadcaster
}

func New(repo porttask.Repository, s store.Store, broadcaster portbroadcast.Broadcaster) *Service {
	return &Service{repo: repo, store: s, broadcaster: broadcaster}
}

// Create inserts a new task in the created status and appends a
// task_created changelog entry. It does not enter the evaluate/approve
// path or the dispatcher's candidate pool — that happens only once an
// architect/pm approves it (service/lifecycle.Evaluate).
func (s *Service) Create(ctx context.Context, projectID, featureID, title, description string, targetRole domainagent.Role, difficulty domaintask.Difficulty, complexity domaintask.Complexity, createdBy string) (domaintask.Task, error) {
	t := domaintask.New(projectID, featureID, title, description, targetRole, difficulty, complexity, createdBy)
	created, err := s.repo.Create(ctx, t)
	if err != nil {
		return domaintask.Task{}, fmt.Errorf("create task: %w", err)
	}

	tx, err := s.store.Begin(ctx)
	if err != nil {
		return domaintask.Task{}, fmt.Errorf("begin changelog tx: %w", err)
	}
	defer tx.Rollback(ctx)
	if err := s.store.InsertChangelog(ctx, tx, changelog.KindTaskCreated, projectID, created.ID, &createdBy); err != nil {
		return domaintask.Task{}, fmt.Errorf("append task_created changelog: %w", err)
	}
	if err := tx.Commit(ctx); err != nil {
		return domaintask.Task{}, fmt.Errorf("commit changelog tx: %w", err)
	}

	s.broadcaster.Publish(projectID, portbroadcast.TopicChanges)
	return created, nil
}

func (s *Service) GetByID(ctx context.Context, projectID, id string) (domaintask.Task, error) {
	t, err := s.repo.GetByID(ctx, projectID, id)
	if err != nil {
		return domaintask.Task{}, fmt.Errorf("get task: %w", err)
	}
	return t, nil
}

func (s *Service) List(ctx context.Context, filters domaintask.ListFilters) ([]domaintask.Task, error) {
	tasks, err := s.repo.List(ctx, filters)
	if err != nil {
		return nil, fmt.Errorf("list tasks: %w", err)
	}
	return tasks, nil
}
