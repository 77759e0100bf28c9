package testutil

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/agentfleet/coordinator/internal/domain/apperr"
	domainchangelog "github.com/agentfleet/coordinator/internal/domain/changelog"
	domaindocument "github.com/agentfleet/coordinator/internal/domain/document"
	domainsvc "github.com/agentfleet/coordinator/internal/domain/svcregistry"
)

// FakeChangelogReader answers Since queries directly against a FakeStore's
// in-memory changelog slice, applying the same (CreatedAt, Seq) ordering
// and optional kind filter the sqlstore reader does.
type FakeChangelogReader struct {
	store *FakeStore
}

func NewFakeChangelogReader(s *FakeStore) *FakeChangelogReader { return &FakeChangelogReader{store: s} }

func (r *FakeChangelogReader) Since(ctx context.Context, projectID string, since time.Time, sinceSeq int64, until time.Time, untilSeq int64, kinds []domainchangelog.Kind, limit int) ([]domainchangelog.Entry, error) {
	allowed := map[domainchangelog.Kind]bool{}
	for _, k := range kinds {
		allowed[k] = true
	}

	r.store.mu.Lock()
	entries := append([]domainchangelog.Entry(nil), r.store.Changelog...)
	r.store.mu.Unlock()

	sort.Slice(entries, func(i, j int) bool {
		if !entries[i].CreatedAt.Equal(entries[j].CreatedAt) {
			return entries[i].CreatedAt.Before(entries[j].CreatedAt)
		}
		return entries[i].Seq < entries[j].Seq
	})

	var out []domainchangelog.Entry
	for _, e := range entries {
		if e.ProjectID != projectID {
			continue
		}
		if e.CreatedAt.Before(since) || (e.CreatedAt.Equal(since) && e.Seq <= sinceSeq) {
			continue
		}
		if e.CreatedAt.After(until) || (e.CreatedAt.Equal(until) && e.Seq > untilSeq) {
			continue
		}
		if len(allowed) > 0 && !allowed[e.Kind] {
			continue
		}
		out = append(out, e)
		if limit > 0 && len(out) >= limit {
			break
		}
	}
	return out, nil
}

// FakeDocumentRepository is an in-memory port/document.Repository.
type FakeDocumentRepository struct {
	mu    sync.Mutex
	docs  map[string]domaindocument.Document
	nextID int
}

func NewFakeDocumentRepository() *FakeDocumentRepository {
	return &FakeDocumentRepository{docs: make(map[string]domaindocument.Document)}
}

func (r *FakeDocumentRepository) Create(ctx context.Context, d domaindocument.Document) (domaindocument.Document, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.nextID++
	d.ID = "doc-" + itoa(r.nextID)
	r.docs[d.ID] = d
	return d, nil
}

func (r *FakeDocumentRepository) GetByID(ctx context.Context, projectID, id string) (domaindocument.Document, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	d, ok := r.docs[id]
	if !ok || d.ProjectID != projectID {
		return domaindocument.Document{}, apperr.ErrNotFound
	}
	return d, nil
}

func (r *FakeDocumentRepository) List(ctx context.Context, filters domaindocument.ListFilters) ([]domaindocument.Document, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []domaindocument.Document
	for _, d := range r.docs {
		if filters.ProjectID != nil && d.ProjectID != *filters.ProjectID {
			continue
		}
		out = append(out, d)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.Before(out[j].CreatedAt) })
	return out, nil
}

// FakeServiceRegistry is an in-memory port/svcregistry.Repository.
type FakeServiceRegistry struct {
	mu       sync.Mutex
	services map[string]domainsvc.Service
}

func NewFakeServiceRegistry() *FakeServiceRegistry {
	return &FakeServiceRegistry{services: make(map[string]domainsvc.Service)}
}

func (r *FakeServiceRegistry) Register(ctx context.Context, s domainsvc.Service) (domainsvc.Service, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.services[key(s.ProjectID, s.Name)] = s
	return s, nil
}

func (r *FakeServiceRegistry) GetByName(ctx context.Context, projectID, name string) (domainsvc.Service, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	s, ok := r.services[key(projectID, name)]
	if !ok {
		return domainsvc.Service{}, apperr.ErrNotFound
	}
	return s, nil
}

func (r *FakeServiceRegistry) List(ctx context.Context, projectID string) ([]domainsvc.Service, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []domainsvc.Service
	for _, s := range r.services {
		if s.ProjectID == projectID {
			out = append(out, s)
		}
	}
	return out, nil
}

func (r *FakeServiceRegistry) Heartbeat(ctx context.Context, projectID, name string, status domainsvc.Status) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	s, ok := r.services[key(projectID, name)]
	if !ok {
		return apperr.ErrNotFound
	}
	s.Status = status
	r.services[key(projectID, name)] = s
	return nil
}

func (r *FakeServiceRegistry) Delete(ctx context.Context, projectID, name string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.services, key(projectID, name))
	return nil
}
