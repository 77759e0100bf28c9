package document

import (
	"context"

	domaindocument "github.com/agentfleet/coordinator/internal/domain/document"
)

// Repository manages document persistence.
type Repository interface {
	Create(ctx context.Context, d domaindocument.Document) (domaindocument.Document, error)
	GetByID(ctx context.Context, projectID, id string) (domaindocument.Document, error)
	List(ctx context.Context, filters domaindocument.ListFilters) ([]domaindocument.Document, error)
}
