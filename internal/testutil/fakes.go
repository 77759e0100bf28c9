// Package testutil provides small, deterministic in-memory fakes for the
// store/task/agent/mention ports, used in place of a real database in
// service-level unit tests. Each fake mirrors the CAS semantics its
// sqlstore counterpart implements (see internal/adapter/sqlstore), just
// over a Go map guarded by a mutex instead of SQL, so service tests can
// exercise the real race-sensitive claim/lock/transition logic without a
// database.
package testutil

import (
	"context"
	"sort"
	"sync"
	"time"

	domainagent "github.com/agentfleet/coordinator/internal/domain/agent"
	"github.com/agentfleet/coordinator/internal/domain/apperr"
	"github.com/agentfleet/coordinator/internal/domain/changelog"
	domainmention "github.com/agentfleet/coordinator/internal/domain/mention"
	domaintask "github.com/agentfleet/coordinator/internal/domain/task"
	"github.com/agentfleet/coordinator/internal/port/store"
)

// FakeTx is a no-op transaction handle: the fakes apply mutations directly
// under their own mutex, so Tx here only needs to satisfy the interface.
type FakeTx struct{}

func (FakeTx) Commit(ctx context.Context) error   { return nil }
func (FakeTx) Rollback(ctx context.Context) error { return nil }

// FakeStore implements port/store.Store with an in-process monotonic
// counter and an in-memory changelog slice, the same composite-clock shape
// store.MonotonicNow documents.
type FakeStore struct {
	mu        sync.Mutex
	seq       int64
	Changelog []changelog.Entry
}

func NewFakeStore() *FakeStore { return &FakeStore{} }

func (s *FakeStore) Begin(ctx context.Context) (store.Tx, error) { return FakeTx{}, nil }

func (s *FakeStore) MonotonicNow() (time.Time, int64) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.seq++
	return time.Now().UTC(), s.seq
}

func (s *FakeStore) InsertChangelog(ctx context.Context, tx store.Tx, kind changelog.Kind, projectID, refID string, actorAgentID *string) error {
	ts, seq := s.MonotonicNow()
	s.mu.Lock()
	defer s.mu.Unlock()
	s.Changelog = append(s.Changelog, changelog.Entry{
		ID: ts.String(), ProjectID: projectID, Kind: kind, RefID: refID,
		ActorAgentID: actorAgentID, CreatedAt: ts, Seq: seq,
	})
	return nil
}

// FakeTaskRepository is an in-memory port/task.Repository mirroring the
// sqlstore CAS semantics for ClaimNext/LockSpecific/UpdateStatus.
type FakeTaskRepository struct {
	mu     sync.Mutex
	tasks  map[string]domaintask.Task
	nextID int
}

func NewFakeTaskRepository() *FakeTaskRepository {
	return &FakeTaskRepository{tasks: make(map[string]domaintask.Task)}
}

func (r *FakeTaskRepository) Seed(t domaintask.Task) domaintask.Task {
	r.mu.Lock()
	defer r.mu.Unlock()
	if t.ID == "" {
		r.nextID++
		t.ID = time.Now().UTC().Format("20060102150405.000000000") + "-" + itoa(r.nextID)
	}
	r.tasks[t.ID] = t
	return t
}

func itoa(n int) string {
	if n == 0 {
		return "0"
	}
	var buf [20]byte
	i := len(buf)
	neg := n < 0
	if neg {
		n = -n
	}
	for n > 0 {
		i--
		buf[i] = byte('0' + n%10)
		n /= 10
	}
	if neg {
		i--
		buf[i] = '-'
	}
	return string(buf[i:])
}

func (r *FakeTaskRepository) Create(ctx context.Context, t domaintask.Task) (domaintask.Task, error) {
	return r.Seed(t), nil
}

func (r *FakeTaskRepository) GetByID(ctx context.Context, projectID, id string) (domaintask.Task, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	t, ok := r.tasks[id]
	if !ok || t.ProjectID != projectID {
		return domaintask.Task{}, apperr.ErrNotFound
	}
	return t, nil
}

func (r *FakeTaskRepository) List(ctx context.Context, filters domaintask.ListFilters) ([]domaintask.Task, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []domaintask.Task
	for _, t := range r.tasks {
		if filters.ProjectID != nil && t.ProjectID != *filters.ProjectID {
			continue
		}
		if filters.Status != nil && t.Status != *filters.Status {
			continue
		}
		out = append(out, t)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.Before(out[j].CreatedAt) })
	return out, nil
}

func eligibleDifficulties(level domainagent.Level) map[domaintask.Difficulty]bool {
	all := []domainagent.Level{domainagent.LevelJunior, domainagent.LevelSenior, domainagent.LevelPrincipal}
	out := map[domaintask.Difficulty]bool{}
	for _, d := range all {
		if level.Meets(d) {
			out[d] = true
		}
	}
	return out
}

// ClaimNext mirrors the sqlstore ordering: major before minor, difficulty
// descending, created_at ascending, id ascending.
func (r *FakeTaskRepository) ClaimNext(ctx context.Context, projectID string, fromStatus, toStatus domaintask.Status, role domainagent.Role, filterByTarget bool, level domainagent.Level, agentID string) (domaintask.Task, bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	diffs := eligibleDifficulties(level)
	var candidates []domaintask.Task
	for _, t := range r.tasks {
		if t.ProjectID != projectID || t.Status != fromStatus || t.IsLocked() || !diffs[t.Difficulty] {
			continue
		}
		if filterByTarget && t.TargetRole != role {
			continue
		}
		candidates = append(candidates, t)
	}
	if len(candidates) == 0 {
		return domaintask.Task{}, false, nil
	}

	diffRank := map[domaintask.Difficulty]int{domainagent.LevelPrincipal: 0, domainagent.LevelSenior: 1, domainagent.LevelJunior: 2}
	sort.Slice(candidates, func(i, j int) bool {
		a, b := candidates[i], candidates[j]
		if (a.Complexity == domaintask.ComplexityMajor) != (b.Complexity == domaintask.ComplexityMajor) {
			return a.Complexity == domaintask.ComplexityMajor
		}
		if diffRank[a.Difficulty] != diffRank[b.Difficulty] {
			return diffRank[a.Difficulty] < diffRank[b.Difficulty]
		}
		if !a.CreatedAt.Equal(b.CreatedAt) {
			return a.CreatedAt.Before(b.CreatedAt)
		}
		return a.ID < b.ID
	})

	chosen := candidates[0]
	// Re-check under the lock (mimics the CAS WHERE clause): still unlocked
	// and still in fromStatus.
	cur := r.tasks[chosen.ID]
	if cur.IsLocked() || cur.Status != fromStatus {
		return domaintask.Task{}, false, nil
	}
	now := time.Now().UTC()
	cur.Status = toStatus
	cur.LockedByAgentID = &agentID
	cur.LockedAt = &now
	cur.AssignedTo = &agentID
	cur.UpdatedAt = now
	r.tasks[cur.ID] = cur
	return cur, true, nil
}

func (r *FakeTaskRepository) LockSpecific(ctx context.Context, projectID, id string, fromStatus, toStatus domaintask.Status, agentID string) (domaintask.Task, bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	t, ok := r.tasks[id]
	if !ok || t.ProjectID != projectID || t.Status != fromStatus || t.IsLocked() {
		return domaintask.Task{}, false, nil
	}
	now := time.Now().UTC()
	t.Status = toStatus
	t.LockedByAgentID = &agentID
	t.LockedAt = &now
	t.AssignedTo = &agentID
	t.UpdatedAt = now
	r.tasks[id] = t
	return t, true, nil
}

func (r *FakeTaskRepository) UpdateStatus(ctx context.Context, tx store.Tx, projectID, id string, fromStatus, toStatus domaintask.Status, byAgentID, note *string) (domaintask.Task, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	t, ok := r.tasks[id]
	if !ok || t.ProjectID != projectID || t.Status != fromStatus {
		return domaintask.Task{}, apperr.Conflictf("task %s is not in status %s", id, fromStatus)
	}
	if note != nil {
		t.Notes = note
	}
	t.Status = toStatus
	t.UpdatedAt = time.Now().UTC()
	if domaintask.ClearsLock(fromStatus, toStatus) {
		t.LockedByAgentID = nil
		t.LockedAt = nil
	}
	r.tasks[id] = t
	return t, nil
}

func (r *FakeTaskRepository) UnassignByAgent(ctx context.Context, projectID, agentID string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	for id, t := range r.tasks {
		if t.ProjectID == projectID && t.LockedByAgentID != nil && *t.LockedByAgentID == agentID {
			t.LockedByAgentID = nil
			t.LockedAt = nil
			r.tasks[id] = t
		}
	}
	return nil
}

func (r *FakeTaskRepository) ReleaseStale(ctx context.Context, projectID, agentID string) ([]string, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var ids []string
	for id, t := range r.tasks {
		if t.ProjectID == projectID && t.LockedByAgentID != nil && *t.LockedByAgentID == agentID &&
			(t.Status == domaintask.StatusUnderWork || t.Status == domaintask.StatusTesting) {
			t.Status = domaintask.StatusApproved
			t.LockedByAgentID = nil
			t.LockedAt = nil
			r.tasks[id] = t
			ids = append(ids, id)
		}
	}
	return ids, nil
}

func (r *FakeTaskRepository) Unclaim(ctx context.Context, projectID, id string, revertStatus domaintask.Status, agentID string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	t, ok := r.tasks[id]
	if !ok || t.ProjectID != projectID || t.LockedByAgentID == nil || *t.LockedByAgentID != agentID {
		return nil
	}
	t.Status = revertStatus
	t.LockedByAgentID = nil
	t.LockedAt = nil
	t.AssignedTo = nil
	r.tasks[id] = t
	return nil
}

func (r *FakeTaskRepository) BeginTx(ctx context.Context) (store.Tx, error) { return FakeTx{}, nil }

// FakeAgentRepository is an in-memory port/agent.Repository.
type FakeAgentRepository struct {
	mu     sync.Mutex
	agents map[string]domainagent.Agent
}

func NewFakeAgentRepository() *FakeAgentRepository {
	return &FakeAgentRepository{agents: make(map[string]domainagent.Agent)}
}

func key(projectID, agentID string) string { return projectID + "/" + agentID }

func (r *FakeAgentRepository) Seed(a domainagent.Agent) domainagent.Agent {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.agents[key(a.ProjectID, a.AgentID)] = a
	return a
}

func (r *FakeAgentRepository) Register(ctx context.Context, a domainagent.Agent) (domainagent.Agent, error) {
	return r.Seed(a), nil
}

func (r *FakeAgentRepository) GetByID(ctx context.Context, projectID, agentID string) (domainagent.Agent, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	a, ok := r.agents[key(projectID, agentID)]
	if !ok {
		return domainagent.Agent{}, apperr.ErrNotFound
	}
	return a, nil
}

func (r *FakeAgentRepository) List(ctx context.Context, filters domainagent.ListFilters) ([]domainagent.Agent, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []domainagent.Agent
	for _, a := range r.agents {
		if filters.ProjectID != nil && a.ProjectID != *filters.ProjectID {
			continue
		}
		if filters.Role != nil && a.Role != *filters.Role {
			continue
		}
		out = append(out, a)
	}
	return out, nil
}

func (r *FakeAgentRepository) Delete(ctx context.Context, projectID, agentID string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.agents, key(projectID, agentID))
	return nil
}

func (r *FakeAgentRepository) ResolveHandle(ctx context.Context, projectID, handle string) (domainagent.Agent, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, a := range r.agents {
		if a.ProjectID == projectID && equalFold(a.AgentID, handle) {
			return a, nil
		}
	}
	return domainagent.Agent{}, apperr.ErrNotFound
}

func equalFold(a, b string) bool {
	if len(a) != len(b) {
		return false
	}
	for i := 0; i < len(a); i++ {
		ca, cb := a[i], b[i]
		if 'A' <= ca && ca <= 'Z' {
			ca += 'a' - 'A'
		}
		if 'A' <= cb && cb <= 'Z' {
			cb += 'a' - 'A'
		}
		if ca != cb {
			return false
		}
	}
	return true
}

func (r *FakeAgentRepository) Touch(ctx context.Context, projectID, agentID string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	a, ok := r.agents[key(projectID, agentID)]
	if !ok {
		return apperr.ErrNotFound
	}
	a.Touch()
	r.agents[key(projectID, agentID)] = a
	return nil
}

func (r *FakeAgentRepository) SetCurrentTask(ctx context.Context, projectID, agentID string, taskID *string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	a, ok := r.agents[key(projectID, agentID)]
	if !ok {
		return apperr.ErrNotFound
	}
	a.CurrentTaskID = taskID
	r.agents[key(projectID, agentID)] = a
	return nil
}

func (r *FakeAgentRepository) ClaimCurrentTask(ctx context.Context, projectID, agentID, taskID string) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	a, ok := r.agents[key(projectID, agentID)]
	if !ok {
		return false, apperr.ErrNotFound
	}
	if a.CurrentTaskID != nil {
		return false, nil
	}
	id := taskID
	a.CurrentTaskID = &id
	r.agents[key(projectID, agentID)] = a
	return true, nil
}

// FakeMentionRepository is an in-memory port/mention.Repository.
type FakeMentionRepository struct {
	mu       sync.Mutex
	mentions []domainmention.Mention
	nextID   int
}

func NewFakeMentionRepository() *FakeMentionRepository { return &FakeMentionRepository{} }

func (r *FakeMentionRepository) Create(ctx context.Context, m domainmention.Mention) (domainmention.Mention, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.nextID++
	m.ID = "mention-" + itoa(r.nextID)
	r.mentions = append(r.mentions, m)
	return m, nil
}

func (r *FakeMentionRepository) ListForAgent(ctx context.Context, projectID, agentID string, unreadOnly bool) ([]domainmention.Mention, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []domainmention.Mention
	for i := len(r.mentions) - 1; i >= 0; i-- {
		m := r.mentions[i]
		if m.ProjectID != projectID {
			continue
		}
		if agentID != "" && (m.RecipientAgentID == nil || *m.RecipientAgentID != agentID) {
			continue
		}
		if unreadOnly && m.IsRead() {
			continue
		}
		out = append(out, m)
	}
	return out, nil
}

func (r *FakeMentionRepository) MarkRead(ctx context.Context, projectID, id string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	now := time.Now().UTC()
	for i, m := range r.mentions {
		if m.ProjectID == projectID && m.ID == id {
			r.mentions[i].ReadAt = &now
			return nil
		}
	}
	return apperr.ErrNotFound
}

func (r *FakeMentionRepository) ExistsForSource(ctx context.Context, projectID string, sourceType domainmention.SourceType, sourceID, handle string) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, m := range r.mentions {
		if m.ProjectID == projectID && m.SourceType == sourceType && m.SourceID == sourceID && m.MentionedHandle == handle {
			return true, nil
		}
	}
	return false, nil
}
