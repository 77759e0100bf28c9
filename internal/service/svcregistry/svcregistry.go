// Package svcregistry implements registration and heartbeat tracking for
// project services (e.g. dev servers) started by agents.
package svcregistry

import (
	"context"
	"errors"
	"fmt"

	portbroadcast "github.com/agentfleet/coordinator/internal/port/broadcast"
	portlocker "github.com/agentfleet/coordinator/internal/port/locker"
	"github.com/agentfleet/coordinator/internal/port/store"
	portsvc "github.com/agentfleet/coordinator/internal/port/svcregistry"

	"github.com/agentfleet/coordinator/internal/domain/apperr"
	"github.com/agentfleet/coordinator/internal/domain/changelog"
	domainsvc "github.com/agentfleet/coordinator/internal/domain/svcregistry"
)

type Service struct {
	repo        portsvc.Repository
	store       store.Store
	broadcaster portbroadcast.Broadcaster
	locker      portlocker.KeyedLocker
}

func New(repo portsvc.Repository, s store.Store, broadcaster portbroadcast.Broadcaster, locker portlocker.KeyedLocker) *Service {
	return &Service{repo: repo, store: s, broadcaster: broadcaster, locker: locker}
}

// Register upserts a named service, appending a service_registered
// changelog entry only the first time this (project, name) is seen. The
// first-seen check and the upsert run inside a per-(project, name) lock
// so two concurrent first registrations can't both see "not found" and
// both append a changelog entry.
func (s *Service) Register(ctx context.Context, projectID, name, ownerAgentID string, port int, pingURL *string, meta map[string]any) (domainsvc.Service, error) {
	var registered domainsvc.Service
	err := s.locker.WithLock(ctx, projectID+"/service/"+name, func(ctx context.Context) error {
		_, err := s.repo.GetByName(ctx, projectID, name)
		isNew := errors.Is(err, apperr.ErrNotFound)
		if err != nil && !isNew {
			return fmt.Errorf("get service before register: %w", err)
		}

		svc := domainsvc.New(projectID, name, ownerAgentID, port, pingURL, meta)
		registered, err = s.repo.Register(ctx, svc)
		if err != nil {
			return fmt.Errorf("register service: %w", err)
		}

		if isNew {
			if err := s.appendChangelog(ctx, changelog.KindServiceRegistered, projectID, name, ownerAgentID); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return domainsvc.Service{}, err
	}
	s.broadcaster.Publish(projectID, portbroadcast.TopicChanges)
	return registered, nil
}

// Heartbeat records a liveness ping. The changelog entry is appended only
// when status actually changed from what was last persisted — a steady
// stream of identical "up" heartbeats is not itself a notable change.
func (s *Service) Heartbeat(ctx context.Context, projectID, name string, status domainsvc.Status) error {
	existing, err := s.repo.GetByName(ctx, projectID, name)
	if err != nil {
		return fmt.Errorf("get service for heartbeat: %w", err)
	}

	if err := s.repo.Heartbeat(ctx, projectID, name, status); err != nil {
		return fmt.Errorf("record heartbeat: %w", err)
	}

	if existing.Status != status {
		if err := s.appendChangelog(ctx, changelog.KindServiceStatus, projectID, name, existing.OwnerAgentID); err != nil {
			return err
		}
		s.broadcaster.Publish(projectID, portbroadcast.TopicChanges)
	}
	return nil
}

func (s *Service) GetByName(ctx context.Context, projectID, name string) (domainsvc.Service, error) {
	svc, err := s.repo.GetByName(ctx, projectID, name)
	if err != nil {
		return domainsvc.Service{}, fmt.Errorf("get service: %w", err)
	}
	return svc, nil
}

func (s *Service) List(ctx context.Context, projectID string) ([]domainsvc.Service, error) {
	services, err := s.repo.List(ctx, projectID)
	if err != nil {
		return nil, fmt.Errorf("list services: %w", err)
	}
	return services, nil
}

// Delete removes a service registration; carries no changelog kind of its
// own, same as a project or epic deletion.
func (s *Service) Delete(ctx context.Context, projectID, name string) error {
	if err := s.repo.Delete(ctx, projectID, name); err != nil {
		return fmt.Errorf("delete service: %w", err)
	}
	s.broadcaster.Publish(projectID, portbroadcast.TopicChanges)
	return nil
}

func (s *Service) appendChangelog(ctx context.Context, kind changelog.Kind, projectID, refID, actorAgentID string) error {
	tx, err := s.store.Begin(ctx)
	if err != nil {
		return fmt.Errorf("begin changelog tx: %w", err)
	}
	defer tx.Rollback(ctx)
	if err := s.store.InsertChangelog(ctx, tx, kind, projectID, refID, &actorAgentID); err != nil {
		return fmt.Errorf("append %s changelog: %w", kind, err)
	}
	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("commit changelog tx: %w", err)
	}
	return nil
}
