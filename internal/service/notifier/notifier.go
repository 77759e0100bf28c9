// Package notifier implements §4.4: extracting @handle mentions from
// document and task-comment bodies, resolving them against project
// agents, materializing deduplicated Mention rows, and best-effort pushing
// them to any connected dashboard session.
package notifier

import (
	"context"
	"errors"

	portagent "github.com/agentfleet/coordinator/internal/port/agent"
	"github.com/agentfleet/coordinator/internal/port/notifier"
	portmention "github.com/agentfleet/coordinator/internal/port/mention"
	"github.com/agentfleet/coordinator/internal/port/store"

	"github.com/agentfleet/coordinator/internal/domain/apperr"
	"github.com/agentfleet/coordinator/internal/domain/changelog"
	domainmention "github.com/agentfleet/coordinator/internal/domain/mention"
)

type Service struct {
	mentions portmention.Repository
	agents   portagent.Repository
	store    store.Store
	push     notifier.AgentNotifier
}

func New(mentions portmention.Repository, agents portagent.Repository, s store.Store, push notifier.AgentNotifier) *Service {
	return &Service{mentions: mentions, agents: agents, store: s, push: push}
}

// ProcessBody extracts handles from body, resolves each against project
// agents, and stores one deduplicated Mention row per handle. A resolved
// mention also gets a changelog entry and a best-effort push; an
// unresolved handle is stored with no recipient and gets neither. Only
// the mentions with a recipient are returned. Extraction is idempotent
// against re-processing the same source, so re-running it is harmless.
func (s *Service) ProcessBody(ctx context.Context, projectID string, sourceType domainmention.SourceType, sourceID, body string) ([]domainmention.Mention, error) {
	handles := domainmention.ExtractHandles(body)
	if len(handles) == 0 {
		return nil, nil
	}

	var created []domainmention.Mention
	for _, handle := range handles {
		exists, err := s.mentions.ExistsForSource(ctx, projectID, sourceType, sourceID, handle)
		if err != nil {
			return nil, err
		}
		if exists {
			continue
		}

		a, err := s.agents.ResolveHandle(ctx, projectID, handle)
		var recipient *string
		switch {
		case err == nil:
			id := a.AgentID
			recipient = &id
		case errors.Is(err, apperr.ErrNotFound):
			// A lookup miss (agent not found) is expected for unresolved
			// handles: the mention row is still stored, with no recipient.
		default:
			return nil, err
		}

		m := domainmention.New(projectID, sourceType, sourceID, handle, recipient)
		m, err = s.mentions.Create(ctx, m)
		if err != nil {
			return nil, err
		}

		if recipient != nil {
			tx, err := s.store.Begin(ctx)
			if err != nil {
				return nil, err
			}
			if err := s.store.InsertChangelog(ctx, tx, changelog.KindMentionCreated, projectID, m.ID, nil); err != nil {
				tx.Rollback(ctx)
				return nil, err
			}
			if err := tx.Commit(ctx); err != nil {
				return nil, err
			}

			if s.push != nil {
				_ = s.push.NotifyAgent(ctx, projectID, *recipient, m)
			}

			created = append(created, m)
		}
	}
	return created, nil
}

// ListForAgent returns agentID's mentions newest first.
func (s *Service) ListForAgent(ctx context.Context, projectID, agentID string, unreadOnly bool) ([]domainmention.Mention, error) {
	return s.mentions.ListForAgent(ctx, projectID, agentID, unreadOnly)
}

// MarkRead idempotently marks a mention read.
func (s *Service) MarkRead(ctx context.Context, projectID, id string) error {
	return s.mentions.MarkRead(ctx, projectID, id)
}
