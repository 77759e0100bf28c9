// Package epic defines the Epic entity, the top level of the work-item
// hierarchy (Epic -> Feature -> Task).
package epic

import (
	"time"

	"github.com/google/uuid"
)

type Epic struct {
	ID             string    `json:"id"`
	ProjectID      string    `json:"project_id"`
	Name           string    `json:"name"`
	Description    string    `json:"description"`
	CreatedByAgent string    `json:"created_by_agent"`
	CreatedAt      time.Time `json:"created_at"`
}

func New(projectID, name, description, createdByAgent string) Epic {
	return Epic{
		ID:             uuid.New().String(),
		ProjectID:      projectID,
		Name:           name,
		Description:    description,
		CreatedByAgent: createdByAgent,
		CreatedAt:      time.Now().UTC(),
	}
}

// ListFilters narrows an epic listing.
type ListFilters struct {
	ProjectID *string
}
