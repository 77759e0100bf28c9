package project

import (
	"context"

	domainproject "github.com/agentfleet/coordinator/internal/domain/project"
)

// Repository manages project persistence.
// [DIP] service/project depends on this interface, not on a concrete storage.
type Repository interface {
	Create(ctx context.Context, p domainproject.Project) (domainproject.Project, error)
	GetByID(ctx context.Context, id string) (domainproject.Project, error)
	GetByName(ctx context.Context, name string) (domainproject.Project, error)
	List(ctx context.Context) ([]domainproject.Project, error)
	SoftDelete(ctx context.Context, id string) error
}
