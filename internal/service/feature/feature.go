// Package feature implements the middle level of Epic -> Feature -> Task.
package feature

import (
	"context"
	"fmt"

	portfeature "github.com/agentfleet/coordinator/internal/port/feature"

	domainfeature "github.com/agentfleet/coordinator/internal/domain/feature"
)

type Service struct {
	repo portfeature.Repository
}

func New(repo portfeature.Repository) *Service {
	return &Service{repo: repo}
}

func (s *Service) Create(ctx context.Context, epicID, name, description string) (domainfeature.Feature, error) {
	f := domainfeature.New(epicID, name, description)
	created, err := s.repo.Create(ctx, f)
	if err != nil {
		return domainfeature.Feature{}, fmt.Errorf("create feature: %w", err)
	}
	return created, nil
}

func (s *Service) GetByID(ctx context.Context, id string) (domainfeature.Feature, error) {
	f, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return domainfeature.Feature{}, fmt.Errorf("get feature: %w", err)
	}
	return f, nil
}

func (s *Service) List(ctx context.Context, filters domainfeature.ListFilters) ([]domainfeature.Feature, error) {
	features, err := s.repo.List(ctx, filters)
	if err != nil {
		return nil, fmt.Errorf("list features: %w", err)
	}
	return features, nil
}
