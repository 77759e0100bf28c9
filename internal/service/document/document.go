// Package document implements document publishing and mention extraction
// on the body.
package document

import (
	"context"
	"fmt"
	"time"

	portbroadcast "github.com/agentfleet/coordinator/internal/port/broadcast"
	portdocument "github.com/agentfleet/coordinator/internal/port/document"
	"github.com/agentfleet/coordinator/internal/port/store"

	"github.com/agentfleet/coordinator/internal/domain/changelog"
	domaindocument "github.com/agentfleet/coordinator/internal/domain/document"
	domainmention "github.com/agentfleet/coordinator/internal/domain/mention"
)

// mentionProcessor is the subset of service/notifier.Service a document
// publish drives; kept as a narrow local interface so this package doesn't
// import the concrete notifier service.
type mentionProcessor interface {
	ProcessBody(ctx context.Context, projectID string, sourceType domainmention.SourceType, sourceID, body string) ([]domainmention.Mention, error)
}

type Service struct {
	repo        portdocument.Repository
	notifier    mentionProcessor
	store       store.Store
	broadcaster portbroadcast.Broadcaster
}

func New(repo portdocument.Repository, notifier mentionProcessor, s store.Store, broadcaster portbroadcast.Broadcaster) *Service {
	return &Service{repo: repo, notifier: notifier, store: s, broadcaster: broadcaster}
}

// Create publishes a document, appends a document_created changelog entry,
// and extracts @handle mentions from the body.
func (s *Service) Create(ctx context.Context, projectID, authorAgentID string, docType domaindocument.DocType, title, body string, expiresAt *time.Time) (domaindocument.Document, error) {
	d := domaindocument.New(projectID, authorAgentID, docType, title, body, expiresAt)
	created, err := s.repo.Create(ctx, d)
	if err != nil {
		return domaindocument.Document{}, fmt.Errorf("create document: %w", err)
	}

	tx, err := s.store.Begin(ctx)
	if err != nil {
		return domaindocument.Document{}, fmt.Errorf("begin changelog tx: %w", err)
	}
	defer tx.Rollback(ctx)
	if err := s.store.InsertChangelog(ctx, tx, changelog.KindDocumentCreated, projectID, created.ID, &authorAgentID); err != nil {
		return domaindocument.Document{}, fmt.Errorf("append document_created changelog: %w", err)
	}
	if err := tx.Commit(ctx); err != nil {
		return domaindocument.Document{}, fmt.Errorf("commit changelog tx: %w", err)
	}
	s.broadcaster.Publish(projectID, portbroadcast.TopicChanges)

	if _, err := s.notifier.ProcessBody(ctx, projectID, domainmention.SourceDocument, created.ID, body); err != nil {
		return domaindocument.Document{}, fmt.Errorf("process document mentions: %w", err)
	}

	return created, nil
}

func (s *Service) GetByID(ctx context.Context, projectID, id string) (domaindocument.Document, error) {
	d, err := s.repo.GetByID(ctx, projectID, id)
	if err != nil {
		return domaindocument.Document{}, fmt.Errorf("get document: %w", err)
	}
	return d, nil
}

func (s *Service) List(ctx context.Context, filters domaindocument.ListFilters) ([]domaindocument.Document, error) {
	docs, err := s.repo.List(ctx, filters)
	if err != nil {
		return nil, fmt.Errorf("list documents: %w", err)
	}
	return docs, nil
}
