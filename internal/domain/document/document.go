// Package document defines the Document entity: an unbounded-text note
// authored by an agent, scoped to a project, with an optional expiry.
package document

import "time"

// DocType is an open, string-backed classification rather than a closed
// enum, so new document kinds can be introduced without a migration.
type DocType string

const (
	DocTypeSpec     DocType = "spec"
	DocTypeDesign   DocType = "design"
	DocTypeRunbook  DocType = "runbook"
	DocTypeRetro    DocType = "retro"
	DocTypeNote     DocType = "note"
)

type Document struct {
	ID             string     `json:"id"`
	ProjectID      string     `json:"project_id"`
	AuthorAgentID  string     `json:"author_agent_id"`
	DocType        DocType    `json:"doc_type"`
	Title          string     `json:"title"`
	Body           string     `json:"body"`
	CreatedAt      time.Time  `json:"created_at"`
	ExpiresAt      *time.Time `json:"expires_at,omitempty"`
}

func New(projectID, authorAgentID string, docType DocType, title, body string, expiresAt *time.Time) Document {
	return Document{
		ProjectID:     projectID,
		AuthorAgentID: authorAgentID,
		DocType:       docType,
		Title:         title,
		Body:          body,
		CreatedAt:     time.Now().UTC(),
		ExpiresAt:     expiresAt,
	}
}

// Expired reports whether this document has passed its expiry, if any.
func (d Document) Expired(now time.Time) bool {
	return d.ExpiresAt != nil && now.After(*d.ExpiresAt)
}

// ListFilters narrows a document listing.
type ListFilters struct {
	ProjectID *string
	DocType   *DocType
	Author    *string
}
