package epic

import (
	"context"

	domainepic "github.com/agentfleet/coordinator/internal/domain/epic"
)

// Repository manages epic persistence, the top of the work-item hierarchy.
type Repository interface {
	Create(ctx context.Context, e domainepic.Epic) (domainepic.Epic, error)
	GetByID(ctx context.Context, projectID, id string) (domainepic.Epic, error)
	List(ctx context.Context, filters domainepic.ListFilters) ([]domainepic.Epic, error)
}
