package comment

import (
	"context"

	domaincomment "github.com/agentfleet/coordinator/internal/domain/comment"
)

// Repository manages task-comment persistence.
type Repository interface {
	Create(ctx context.Context, c domaincomment.TaskComment) (domaincomment.TaskComment, error)
	ListByTask(ctx context.Context, taskID string) ([]domaincomment.TaskComment, error)
}
