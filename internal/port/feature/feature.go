package feature

import (
	"context"

	domainfeature "github.com/agentfleet/coordinator/internal/domain/feature"
)

// Repository manages feature persistence, the middle of the work-item
// hierarchy.
type Repository interface {
	Create(ctx context.Context, f domainfeature.Feature) (domainfeature.Feature, error)
	GetByID(ctx context.Context, id string) (domainfeature.Feature, error)
	List(ctx context.Context, filters domainfeature.ListFilters) ([]domainfeature.Feature, error)
}
