// Package feature defines the Feature entity, the middle level of the
// work-item hierarchy (Epic -> Feature -> Task).
package feature

import (
	"time"

	"github.com/google/uuid"
)

// Feature carries no project_id of its own: feature.project_id =
// feature.epic.project_id always holds by construction, so callers that
// need project scope resolve it through the parent Epic.
type Feature struct {
	ID          string    `json:"id"`
	EpicID      string    `json:"epic_id"`
	Name        string    `json:"name"`
	Description string    `json:"description"`
	CreatedAt   time.Time `json:"created_at"`
}

func New(epicID, name, description string) Feature {
	return Feature{
		ID:          uuid.New().String(),
		EpicID:      epicID,
		Name:        name,
		Description: description,
		CreatedAt:   time.Now().UTC(),
	}
}

// ListFilters narrows a feature listing.
type ListFilters struct {
	EpicID *string
}
