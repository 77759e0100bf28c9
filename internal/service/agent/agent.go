// Package agent implements agent registration, directory listing, and
// PM-gated removal.
package agent

import (
	"context"
	"errors"
	"fmt"

	portagent "github.com/agentfleet/coordinator/internal/port/agent"
	portbroadcast "github.com/agentfleet/coordinator/internal/port/broadcast"
	portlocker "github.com/agentfleet/coordinator/internal/port/locker"
	"github.com/agentfleet/coordinator/internal/port/store"
	porttask "github.com/agentfleet/coordinator/internal/port/task"

	domainagent "github.com/agentfleet/coordinator/internal/domain/agent"
	"github.com/agentfleet/coordinator/internal/domain/apperr"
	"github.com/agentfleet/coordinator/internal/domain/changelog"
)

type Service struct {
	repo        portagent.Repository
	tasks       porttask.Repository
	store       store.Store
	broadcaster portbroadcast.Broadcaster
	locker      portlocker.KeyedLocker
}

func New(repo portagent.Repository, tasks porttask.Repository, s store.Store, broadcaster portbroadcast.Broadcaster, locker portlocker.KeyedLocker) *Service {
	return &Service{repo: repo, tasks: tasks, store: s, broadcaster: broadcaster, locker: locker}
}

// Register upserts the calling agent. A changelog entry is only appended
// on first registration — a reconnecting agent refreshing its heartbeat
// is not itself a notable event on the change feed. The first-seen check
// and the upsert run inside a per-agent lock so two concurrent first
// registrations of the same agent can't both observe "not found" and
// both append a changelog entry.
func (s *Service) Register(ctx context.Context, projectID, agentID string, role domainagent.Role, level domainagent.Level, conn domainagent.ConnectionType) (domainagent.Agent, error) {
	var registered domainagent.Agent
	err := s.locker.WithLock(ctx, projectID+"/agent/"+agentID, func(ctx context.Context) error {
		_, err := s.repo.GetByID(ctx, projectID, agentID)
		isNew := errors.Is(err, apperr.ErrNotFound)
		if err != nil && !isNew {
			return fmt.Errorf("get agent before register: %w", err)
		}

		a := domainagent.New(projectID, agentID, role, level, conn)
		registered, err = s.repo.Register(ctx, a)
		if err != nil {
			return fmt.Errorf("register agent: %w", err)
		}

		if isNew {
			tx, err := s.store.Begin(ctx)
			if err != nil {
				return fmt.Errorf("begin changelog tx: %w", err)
			}
			defer tx.Rollback(ctx)
			if err := s.store.InsertChangelog(ctx, tx, changelog.KindAgentRegistered, projectID, agentID, &agentID); err != nil {
				return fmt.Errorf("append agent_registered changelog: %w", err)
			}
			if err := tx.Commit(ctx); err != nil {
				return fmt.Errorf("commit changelog tx: %w", err)
			}
			s.broadcaster.Publish(projectID, portbroadcast.TopicChanges)
		}
		return nil
	})
	if err != nil {
		return domainagent.Agent{}, err
	}
	return registered, nil
}

func (s *Service) GetByID(ctx context.Context, projectID, agentID string) (domainagent.Agent, error) {
	a, err := s.repo.GetByID(ctx, projectID, agentID)
	if err != nil {
		return domainagent.Agent{}, fmt.Errorf("get agent: %w", err)
	}
	return a, nil
}

func (s *Service) List(ctx context.Context, filters domainagent.ListFilters) ([]domainagent.Agent, error) {
	agents, err := s.repo.List(ctx, filters)
	if err != nil {
		return nil, fmt.Errorf("list agents: %w", err)
	}
	return agents, nil
}

// Delete removes an agent, restricted to PM authority. Any task it
// currently holds is released back to unlocked before the row is removed,
// so a deleted agent never leaves a dangling exclusive lock behind.
func (s *Service) Delete(ctx context.Context, projectID, agentID string, actorRole domainagent.Role) error {
	if !actorRole.IsPM() {
		return apperr.New(apperr.KindForbidden, "requires pm authority")
	}
	if err := s.tasks.UnassignByAgent(ctx, projectID, agentID); err != nil {
		return fmt.Errorf("release held tasks before delete: %w", err)
	}
	if err := s.repo.Delete(ctx, projectID, agentID); err != nil {
		return fmt.Errorf("delete agent: %w", err)
	}
	s.broadcaster.Publish(projectID, portbroadcast.TopicDispatch)
	s.broadcaster.Publish(projectID, portbroadcast.TopicChanges)
	return nil
}
