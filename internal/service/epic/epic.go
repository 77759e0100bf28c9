// Package epic implements the top level of Epic -> Feature -> Task.
package epic

import (
	"context"
	"fmt"

	portepic "github.com/agentfleet/coordinator/internal/port/epic"

	domainepic "github.com/agentfleet/coordinator/internal/domain/epic"
)

// Service manages epic persistence. Like project, an epic carries no
// changelog kind of its own — the change feed tracks task/document/agent/
// service/mention activity, not the static hierarchy above it.
type Service struct {
	repo portepic.Repository
}

func New(repo portepic.Repository) *Service {
	return &Service{repo: repo}
}

func (s *Service) Create(ctx context.Context, projectID, name, description, createdByAgent string) (domainepic.Epic, error) {
	e := domainepic.New(projectID, name, description, createdByAgent)
	created, err := s.repo.Create(ctx, e)
	if err != nil {
		return domainepic.Epic{}, fmt.Errorf("create epic: %w", err)
	}
	return created, nil
}

func (s *Service) GetByID(ctx context.Context, projectID, id string) (domainepic.Epic, error) {
	e, err := s.repo.GetByID(ctx, projectID, id)
	if err != nil {
		return domainepic.Epic{}, fmt.Errorf("get epic: %w", err)
	}
	return e, nil
}

func (s *Service) List(ctx context.Context, filters domainepic.ListFilters) ([]domainepic.Epic, error) {
	epics, err := s.repo.List(ctx, filters)
	if err != nil {
		return nil, fmt.Errorf("list epics: %w", err)
	}
	return epics, nil
}
