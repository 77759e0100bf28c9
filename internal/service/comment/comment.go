// Package comment implements posting and listing task comments, and
// driving mention extraction on the comment body.
package comment

import (
	"context"
	"fmt"

	portcomment "github.com/agentfleet/coordinator/internal/port/comment"

	domaincomment "github.com/agentfleet/coordinator/internal/domain/comment"
	domainmention "github.com/agentfleet/coordinator/internal/domain/mention"
)

type mentionProcessor interface {
	ProcessBody(ctx context.Context, projectID string, sourceType domainmention.SourceType, sourceID, body string) ([]domainmention.Mention, error)
}

type Service struct {
	repo     portcomment.Repository
	notifier mentionProcessor
}

func New(repo portcomment.Repository, notifier mentionProcessor) *Service {
	return &Service{repo: repo, notifier: notifier}
}

// Create posts a comment and extracts @handle mentions from its body. A
// comment carries no changelog kind of its own — only the mentions it
// produces appear on the change feed, same as a document body.
func (s *Service) Create(ctx context.Context, projectID, taskID, authorAgentID, body string) (domaincomment.TaskComment, error) {
	c := domaincomment.New(taskID, authorAgentID, body)
	created, err := s.repo.Create(ctx, c)
	if err != nil {
		return domaincomment.TaskComment{}, fmt.Errorf("create comment: %w", err)
	}

	if _, err := s.notifier.ProcessBody(ctx, projectID, domainmention.SourceTaskComment, created.ID, body); err != nil {
		return domaincomment.TaskComment{}, fmt.Errorf("process comment mentions: %w", err)
	}

	return created, nil
}

func (s *Service) ListByTask(ctx context.Context, taskID string) ([]domaincomment.TaskComment, error) {
	comments, err := s.repo.ListByTask(ctx, taskID)
	if err != nil {
		return nil, fmt.Errorf("list comments: %w", err)
	}
	return comments, nil
}
