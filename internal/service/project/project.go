// Package project implements the top of the work-item hierarchy: project
// registration and the read paths every other module scopes itself to.
package project

import (
	"context"
	"fmt"

	portproject "github.com/agentfleet/coordinator/internal/port/project"

	domainproject "github.com/agentfleet/coordinator/internal/domain/project"
)

// Service manages project persistence. Projects carry no changelog kind of
// their own (spec §3's Kind enum has no project_* entry) since nothing
// polls "what projects changed" — a project is selected once per session,
// not watched.
type Service struct {
	repo portproject.Repository
}

func New(repo portproject.Repository) *Service {
	return &Service{repo: repo}
}

func (s *Service) Create(ctx context.Context, name string, paths domainproject.Paths, repo domainproject.Repo) (domainproject.Project, error) {
	p := domainproject.New(name, paths, repo)
	created, err := s.repo.Create(ctx, p)
	if err != nil {
		return domainproject.Project{}, fmt.Errorf("create project: %w", err)
	}
	return created, nil
}

func (s *Service) GetByID(ctx context.Context, id string) (domainproject.Project, error) {
	p, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return domainproject.Project{}, fmt.Errorf("get project: %w", err)
	}
	return p, nil
}

func (s *Service) GetByName(ctx context.Context, name string) (domainproject.Project, error) {
	p, err := s.repo.GetByName(ctx, name)
	if err != nil {
		return domainproject.Project{}, fmt.Errorf("get project by name: %w", err)
	}
	return p, nil
}

func (s *Service) List(ctx context.Context) ([]domainproject.Project, error) {
	projects, err := s.repo.List(ctx)
	if err != nil {
		return nil, fmt.Errorf("list projects: %w", err)
	}
	return projects, nil
}

func (s *Service) Delete(ctx context.Context, id string) error {
	if err := s.repo.SoftDelete(ctx, id); err != nil {
		return fmt.Errorf("delete project: %w", err)
	}
	return nil
}
