package testutil

import (
	"context"
	"sync"

	domaincomment "github.com/agentfleet/coordinator/internal/domain/comment"
	domainepic "github.com/agentfleet/coordinator/internal/domain/epic"
	domainfeature "github.com/agentfleet/coordinator/internal/domain/feature"
	domainmention "github.com/agentfleet/coordinator/internal/domain/mention"
	domainproject "github.com/agentfleet/coordinator/internal/domain/project"

	"github.com/agentfleet/coordinator/internal/domain/apperr"
)

// FakeCommentRepository is an in-memory port/comment.Repository.
type FakeCommentRepository struct {
	mu       sync.Mutex
	comments map[string][]domaincomment.TaskComment
	nextID   int
}

func NewFakeCommentRepository() *FakeCommentRepository {
	return &FakeCommentRepository{comments: make(map[string][]domaincomment.TaskComment)}
}

func (r *FakeCommentRepository) Create(ctx context.Context, c domaincomment.TaskComment) (domaincomment.TaskComment, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.nextID++
	c.ID = "comment-" + itoa(r.nextID)
	r.comments[c.TaskID] = append(r.comments[c.TaskID], c)
	return c, nil
}

func (r *FakeCommentRepository) ListByTask(ctx context.Context, taskID string) ([]domaincomment.TaskComment, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]domaincomment.TaskComment(nil), r.comments[taskID]...), nil
}

// FakeMentionProcessor is a recording stub for the comment/document
// services' mentionProcessor dependency, standing in for
// service/notifier.Service without pulling in its own repository deps.
type FakeMentionProcessor struct {
	mu    sync.Mutex
	Calls []ProcessBodyCall
}

type ProcessBodyCall struct {
	ProjectID  string
	SourceType domainmention.SourceType
	SourceID   string
	Body       string
}

func NewFakeMentionProcessor() *FakeMentionProcessor { return &FakeMentionProcessor{} }

func (p *FakeMentionProcessor) ProcessBody(ctx context.Context, projectID string, sourceType domainmention.SourceType, sourceID, body string) ([]domainmention.Mention, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.Calls = append(p.Calls, ProcessBodyCall{ProjectID: projectID, SourceType: sourceType, SourceID: sourceID, Body: body})
	return nil, nil
}

// FakeProjectRepository is an in-memory port/project.Repository.
type FakeProjectRepository struct {
	mu       sync.Mutex
	projects map[string]domainproject.Project
}

func NewFakeProjectRepository() *FakeProjectRepository {
	return &FakeProjectRepository{projects: make(map[string]domainproject.Project)}
}

func (r *FakeProjectRepository) Create(ctx context.Context, p domainproject.Project) (domainproject.Project, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.projects[p.ID] = p
	return p, nil
}

func (r *FakeProjectRepository) GetByID(ctx context.Context, id string) (domainproject.Project, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	p, ok := r.projects[id]
	if !ok || p.IsDeleted() {
		return domainproject.Project{}, apperr.ErrNotFound
	}
	return p, nil
}

func (r *FakeProjectRepository) GetByName(ctx context.Context, name string) (domainproject.Project, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, p := range r.projects {
		if p.Name == name && !p.IsDeleted() {
			return p, nil
		}
	}
	return domainproject.Project{}, apperr.ErrNotFound
}

func (r *FakeProjectRepository) List(ctx context.Context) ([]domainproject.Project, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []domainproject.Project
	for _, p := range r.projects {
		if !p.IsDeleted() {
			out = append(out, p)
		}
	}
	return out, nil
}

func (r *FakeProjectRepository) SoftDelete(ctx context.Context, id string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	p, ok := r.projects[id]
	if !ok {
		return apperr.ErrNotFound
	}
	now := p.CreatedAt
	p.DeletedAt = &now
	r.projects[id] = p
	return nil
}

// FakeEpicRepository is an in-memory port/epic.Repository.
type FakeEpicRepository struct {
	mu    sync.Mutex
	epics map[string]domainepic.Epic
}

func NewFakeEpicRepository() *FakeEpicRepository {
	return &FakeEpicRepository{epics: make(map[string]domainepic.Epic)}
}

func (r *FakeEpicRepository) Create(ctx context.Context, e domainepic.Epic) (domainepic.Epic, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.epics[e.ID] = e
	return e, nil
}

func (r *FakeEpicRepository) GetByID(ctx context.Context, projectID, id string) (domainepic.Epic, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	e, ok := r.epics[id]
	if !ok || e.ProjectID != projectID {
		return domainepic.Epic{}, apperr.ErrNotFound
	}
	return e, nil
}

func (r *FakeEpicRepository) List(ctx context.Context, filters domainepic.ListFilters) ([]domainepic.Epic, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []domainepic.Epic
	for _, e := range r.epics {
		if filters.ProjectID != nil && e.ProjectID != *filters.ProjectID {
			continue
		}
		out = append(out, e)
	}
	return out, nil
}

// FakeFeatureRepository is an in-memory port/feature.Repository.
type FakeFeatureRepository struct {
	mu       sync.Mutex
	features map[string]domainfeature.Feature
}

func NewFakeFeatureRepository() *FakeFeatureRepository {
	return &FakeFeatureRepository{features: make(map[string]domainfeature.Feature)}
}

func (r *FakeFeatureRepository) Create(ctx context.Context, f domainfeature.Feature) (domainfeature.Feature, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.features[f.ID] = f
	return f, nil
}

func (r *FakeFeatureRepository) GetByID(ctx context.Context, id string) (domainfeature.Feature, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	f, ok := r.features[id]
	if !ok {
		return domainfeature.Feature{}, apperr.ErrNotFound
	}
	return f, nil
}

func (r *FakeFeatureRepository) List(ctx context.Context, filters domainfeature.ListFilters) ([]domainfeature.Feature, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []domainfeature.Feature
	for _, f := range r.features {
		if filters.EpicID != nil && f.EpicID != *filters.EpicID {
			continue
		}
		out = append(out, f)
	}
	return out, nil
}
