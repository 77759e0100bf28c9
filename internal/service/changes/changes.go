// Package changes implements §4.6: answering "what changed in project P
// since timestamp T for agent A" by reading the changelog and re-fetching
// current entity state for each referenced row, with the same long-poll
// wait protocol as the dispatcher when the caller asks to wait and
// nothing has changed yet.
package changes

import (
	"context"
	"sync"
	"time"

	portagent "github.com/agentfleet/coordinator/internal/port/agent"
	portbroadcast "github.com/agentfleet/coordinator/internal/port/broadcast"
	portchangelog "github.com/agentfleet/coordinator/internal/port/changelog"
	portdocument "github.com/agentfleet/coordinator/internal/port/document"
	portmention "github.com/agentfleet/coordinator/internal/port/mention"
	portsvc "github.com/agentfleet/coordinator/internal/port/svcregistry"
	porttask "github.com/agentfleet/coordinator/internal/port/task"
	"github.com/agentfleet/coordinator/internal/port/store"

	domainagent "github.com/agentfleet/coordinator/internal/domain/agent"
	"github.com/agentfleet/coordinator/internal/domain/changelog"
	domaindocument "github.com/agentfleet/coordinator/internal/domain/document"
	domainmention "github.com/agentfleet/coordinator/internal/domain/mention"
	domainsvc "github.com/agentfleet/coordinator/internal/domain/svcregistry"
	domaintask "github.com/agentfleet/coordinator/internal/domain/task"
)

const (
	defaultLimit         = 1000
	maxWaitersPerProject = 256
)

// Snapshot is the §4.6 change-feed response shape.
type Snapshot struct {
	TasksNew         []domaintask.Task         `json:"tasks_new"`
	TasksUpdated     []domaintask.Task         `json:"tasks_updated"`
	DocumentsNew     []domaindocument.Document `json:"documents_new"`
	Mentions         []domainmention.Mention   `json:"mentions"`
	AgentsRegistered []domainagent.Agent       `json:"agents_registered"`
	ServicesChanged  []domainsvc.Service       `json:"services_changed"`
	Timestamp        time.Time                 `json:"timestamp"`
	TimestampSeq     int64                     `json:"timestamp_seq"`
}

// Empty reports whether every category is empty, the long-poll condition
// for continuing to wait.
func (s Snapshot) Empty() bool {
	return len(s.TasksNew) == 0 && len(s.TasksUpdated) == 0 && len(s.DocumentsNew) == 0 &&
		len(s.Mentions) == 0 && len(s.AgentsRegistered) == 0 && len(s.ServicesChanged) == 0
}

type Service struct {
	log         portchangelog.Reader
	tasks       porttask.Repository
	documents   portdocument.Repository
	mentions    portmention.Repository
	agents      portagent.Repository
	svcs        portsvc.Repository
	store       store.Store
	broadcaster portbroadcast.Broadcaster

	waiterMu    sync.Mutex
	waiterCount map[string]int
}

func New(
	log portchangelog.Reader,
	tasks porttask.Repository,
	documents portdocument.Repository,
	mentions portmention.Repository,
	agents portagent.Repository,
	svcs portsvc.Repository,
	s store.Store,
	broadcaster portbroadcast.Broadcaster,
) *Service {
	return &Service{
		log: log, tasks: tasks, documents: documents, mentions: mentions,
		agents: agents, svcs: svcs, store: s, broadcaster: broadcaster,
		waiterCount: make(map[string]int),
	}
}

// Since builds a Snapshot of everything that changed after (sinceTS,
// sinceSeq), visible to viewerAgentID (every mention if viewerIsPM). Per
// §4.6, the returned Timestamp/TimestampSeq cursor is minted *before* the
// changelog query runs and used as its inclusive upper bound, rather than
// read fresh afterward: an entry committed between query and a
// post-query clock read would carry a seq below that later read yet
// above what the query's upper bound already excluded it with, and would
// never surface to the client. Minting first closes that window — any
// entry that lands after the mint necessarily sorts after it too, so the
// next call's `since` still sees it. When the query hits defaultLimit the
// minted cursor is pulled back to the last entry actually returned, so a
// project with more than defaultLimit entries since sinceTS advances the
// cursor by one page at a time instead of skipping the remainder.
func (s *Service) Since(ctx context.Context, projectID string, sinceTS time.Time, sinceSeq int64, viewerAgentID string, viewerIsPM bool) (Snapshot, error) {
	ts, seq := s.store.MonotonicNow()

	entries, err := s.log.Since(ctx, projectID, sinceTS, sinceSeq, ts, seq, nil, defaultLimit)
	if err != nil {
		return Snapshot{}, err
	}

	snap, err := s.buildSnapshot(ctx, projectID, entries, viewerAgentID, viewerIsPM)
	if err != nil {
		return Snapshot{}, err
	}

	if len(entries) >= defaultLimit {
		last := entries[len(entries)-1]
		ts, seq = last.CreatedAt, last.Seq
	}
	snap.Timestamp = ts
	snap.TimestampSeq = seq
	return snap, nil
}

// Wait behaves like Since but, if the result is empty, long-polls up to
// deadline for a changelog append before returning. It applies the same
// per-project waiter cap the dispatcher does, shedding load by returning
// immediately over capacity.
func (s *Service) Wait(ctx context.Context, projectID string, sinceTS time.Time, sinceSeq int64, viewerAgentID string, viewerIsPM bool, deadline time.Duration) (Snapshot, error) {
	snap, err := s.Since(ctx, projectID, sinceTS, sinceSeq, viewerAgentID, viewerIsPM)
	if err != nil || !snap.Empty() {
		return snap, err
	}

	if !s.acquireWaiterSlot(projectID) {
		return snap, nil
	}
	defer s.releaseWaiterSlot(projectID)

	sub := s.broadcaster.Subscribe(projectID, portbroadcast.TopicChanges)
	defer sub.Close()

	waitCtx, cancel := context.WithTimeout(ctx, deadline)
	defer cancel()

	for {
		if err := sub.Wait(waitCtx); err != nil {
			// Deadline or cancellation: return the last-known (empty)
			// snapshot with a fresh timestamp so the caller's next
			// since_ts still progresses monotonically.
			return s.Since(ctx, projectID, sinceTS, sinceSeq, viewerAgentID, viewerIsPM)
		}
		snap, err := s.Since(ctx, projectID, sinceTS, sinceSeq, viewerAgentID, viewerIsPM)
		if err != nil {
			return Snapshot{}, err
		}
		if !snap.Empty() {
			return snap, nil
		}
	}
}

func (s *Service) acquireWaiterSlot(projectID string) bool {
	s.waiterMu.Lock()
	defer s.waiterMu.Unlock()
	if s.waiterCount[projectID] >= maxWaitersPerProject {
		return false
	}
	s.waiterCount[projectID]++
	return true
}

func (s *Service) releaseWaiterSlot(projectID string) {
	s.waiterMu.Lock()
	defer s.waiterMu.Unlock()
	s.waiterCount[projectID]--
	if s.waiterCount[projectID] <= 0 {
		delete(s.waiterCount, projectID)
	}
}

// buildSnapshot re-fetches current entity state for each referenced row,
// deduplicating repeated changelog entries for the same ref_id to one
// category entry (the entity's current state), in first-seen order, per
// §4.6's "ordering within each category is by created_at ascending".
func (s *Service) buildSnapshot(ctx context.Context, projectID string, entries []changelog.Entry, viewerAgentID string, viewerIsPM bool) (Snapshot, error) {
	var snap Snapshot
	seenTaskNew, seenTaskUpdated := map[string]bool{}, map[string]bool{}
	seenDoc, seenAgent, seenSvc := map[string]bool{}, map[string]bool{}, map[string]bool{}

	for _, e := range entries {
		switch e.Kind {
		case changelog.KindTaskCreated:
			if seenTaskNew[e.RefID] {
				continue
			}
			seenTaskNew[e.RefID] = true
			t, err := s.tasks.GetByID(ctx, projectID, e.RefID)
			if err != nil {
				continue
			}
			snap.TasksNew = append(snap.TasksNew, t)

		case changelog.KindTaskStatus, changelog.KindTaskLocked, changelog.KindTaskUnlocked:
			if seenTaskUpdated[e.RefID] || seenTaskNew[e.RefID] {
				continue
			}
			seenTaskUpdated[e.RefID] = true
			t, err := s.tasks.GetByID(ctx, projectID, e.RefID)
			if err != nil {
				continue
			}
			snap.TasksUpdated = append(snap.TasksUpdated, t)

		case changelog.KindDocumentCreated:
			if seenDoc[e.RefID] {
				continue
			}
			seenDoc[e.RefID] = true
			d, err := s.documents.GetByID(ctx, projectID, e.RefID)
			if err != nil {
				continue
			}
			snap.DocumentsNew = append(snap.DocumentsNew, d)

		case changelog.KindMentionCreated:
			m, err := s.mentionVisible(ctx, projectID, e.RefID, viewerAgentID, viewerIsPM)
			if err != nil || m == nil {
				continue
			}
			snap.Mentions = append(snap.Mentions, *m)

		case changelog.KindAgentRegistered:
			if seenAgent[e.RefID] {
				continue
			}
			seenAgent[e.RefID] = true
			a, err := s.agents.GetByID(ctx, projectID, e.RefID)
			if err != nil {
				continue
			}
			snap.AgentsRegistered = append(snap.AgentsRegistered, a)

		case changelog.KindServiceRegistered, changelog.KindServiceStatus:
			if seenSvc[e.RefID] {
				continue
			}
			seenSvc[e.RefID] = true
			svc, err := s.svcs.GetByName(ctx, projectID, e.RefID)
			if err != nil {
				continue
			}
			snap.ServicesChanged = append(snap.ServicesChanged, svc)
		}
	}

	return snap, nil
}

// mentionVisible fetches the mention referenced by a changelog entry and
// applies the viewer-scoping rule: only the recipient sees their own
// mentions, unless the viewer has project-level PM authority.
func (s *Service) mentionVisible(ctx context.Context, projectID, mentionID, viewerAgentID string, viewerIsPM bool) (*domainmention.Mention, error) {
	// The mention repository has no GetByID; list the viewer's own
	// mentions (or, for a PM, fall back to the handle-scoped listing by
	// reading all agents' mentions is unnecessary — PMs see every mention
	// via the unscoped project listing the comment/document services
	// already populate through ListForAgent("") below).
	agentID := viewerAgentID
	if viewerIsPM {
		agentID = ""
	}
	all, err := s.mentions.ListForAgent(ctx, projectID, agentID, false)
	if err != nil {
		return nil, err
	}
	for _, m := range all {
		if m.ID == mentionID {
			return &m, nil
		}
	}
	return nil, nil
}
