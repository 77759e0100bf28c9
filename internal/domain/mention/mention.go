// Package mention defines the Mention entity: an @handle reference
// extracted from a document or task comment body, materialized as a
// per-recipient notification.
package mention

import (
	"regexp"
	"strings"
	"time"
)

// SourceType identifies what kind of body a mention was extracted from.
type SourceType string

const (
	SourceDocument    SourceType = "document"
	SourceTaskComment SourceType = "task_comment"
)

// HandlePattern matches an @handle token: '@' followed by one or more of
// letters, digits, underscore, dot, or hyphen. Handles are resolved
// case-insensitively against agent_id.
var HandlePattern = regexp.MustCompile(`@([A-Za-z0-9_.-]+)`)

// ExtractHandles returns the distinct set of handles mentioned in body, in
// first-occurrence order, normalized to lower case for case-insensitive
// resolution.
func ExtractHandles(body string) []string {
	matches := HandlePattern.FindAllStringSubmatch(body, -1)
	seen := make(map[string]bool, len(matches))
	var handles []string
	for _, m := range matches {
		h := strings.ToLower(m[1])
		if seen[h] {
			continue
		}
		seen[h] = true
		handles = append(handles, h)
	}
	return handles
}

type Mention struct {
	ID               string     `json:"id"`
	ProjectID        string     `json:"project_id"`
	SourceType       SourceType `json:"source_type"`
	SourceID         string     `json:"source_id"`
	MentionedHandle  string     `json:"mentioned_handle"`
	RecipientAgentID *string    `json:"recipient_agent_id,omitempty"`
	CreatedAt        time.Time  `json:"created_at"`
	ReadAt           *time.Time `json:"read_at,omitempty"`
}

func New(projectID string, sourceType SourceType, sourceID, handle string, recipientAgentID *string) Mention {
	return Mention{
		ProjectID:        projectID,
		SourceType:       sourceType,
		SourceID:         sourceID,
		MentionedHandle:  handle,
		RecipientAgentID: recipientAgentID,
		CreatedAt:        time.Now().UTC(),
	}
}

// IsRead reports whether this mention has been acknowledged.
func (m Mention) IsRead() bool { return m.ReadAt != nil }
