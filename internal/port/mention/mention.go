package mention

import (
	"context"

	domainmention "github.com/agentfleet/coordinator/internal/domain/mention"
)

// Repository manages mention persistence — one deduplicated row per
// (source, recipient) pair.
type Repository interface {
	Create(ctx context.Context, m domainmention.Mention) (domainmention.Mention, error)
	ListForAgent(ctx context.Context, projectID, agentID string, unreadOnly bool) ([]domainmention.Mention, error)
	MarkRead(ctx context.Context, projectID, id string) error
	// ExistsForSource reports whether a mention already exists for
	// (sourceType, sourceID, handle), enforcing the per-(source,recipient)
	// dedup rule idempotently across repeated extraction of the same body.
	ExistsForSource(ctx context.Context, projectID string, sourceType domainmention.SourceType, sourceID, handle string) (bool, error)
}
