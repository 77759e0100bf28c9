// Package dispatcher implements §4.2: selecting the next claimable task
// for a requesting agent under role/skill rules, enforcing the exclusive
// task lock, and long-polling when nothing is immediately eligible.
package dispatcher

import (
	"context"
	"sync"
	"time"

	portagent "github.com/agentfleet/coordinator/internal/port/agent"
	portbroadcast "github.com/agentfleet/coordinator/internal/port/broadcast"
	"github.com/agentfleet/coordinator/internal/port/store"
	porttask "github.com/agentfleet/coordinator/internal/port/task"

	domainagent "github.com/agentfleet/coordinator/internal/domain/agent"
	"github.com/agentfleet/coordinator/internal/domain/apperr"
	"github.com/agentfleet/coordinator/internal/domain/changelog"
	"github.com/agentfleet/coordinator/internal/domain/lifecycle"
	domaintask "github.com/agentfleet/coordinator/internal/domain/task"
)

// maxSelectionRetries bounds the in-process retry on a lost claim race
// (§4.2.2 step 7: "a bounded number of retries (≤ 5)"); beyond it the
// dispatcher reports no candidate and the caller falls back to waiting.
const maxSelectionRetries = 5

// maxWaitersPerProject caps concurrent long-poll waiters per project
// (§9: "cap concurrent waiters per project and gracefully shed load").
// Requests beyond the cap return immediately with the waiting sentinel
// rather than queueing, since an unbounded wait queue is itself a load
// hazard under the exact conditions (many agents polling) this exists to
// protect against.
const maxWaitersPerProject = 256

const defaultWaitSeconds = 180

// Service is the dispatcher. DefaultWait is the §6 DISPATCHER_WAIT_SECONDS
// configuration value, used when a caller requests waiting without an
// explicit deadline.
type Service struct {
	tasks       porttask.Repository
	agents      portagent.Repository
	store       store.Store
	broadcaster portbroadcast.Broadcaster
	DefaultWait time.Duration

	waiterMu    sync.Mutex
	waiterCount map[string]int
}

func New(tasks porttask.Repository, agents portagent.Repository, s store.Store, broadcaster portbroadcast.Broadcaster, defaultWait time.Duration) *Service {
	if defaultWait <= 0 {
		defaultWait = defaultWaitSeconds * time.Second
	}
	return &Service{
		tasks:       tasks,
		agents:      agents,
		store:       s,
		broadcaster: broadcaster,
		DefaultWait: defaultWait,
		waiterCount: make(map[string]int),
	}
}

// recordLock appends the §4.2.2 step-6 task_locked changelog entry and wakes
// any /changes long-pollers. It runs just after a successful claim rather
// than inside the claim's own CAS statement, since ClaimNext/LockSpecific
// are single-statement atomic updates with no caller-supplied transaction;
// the narrow window this leaves (claim visible before its changelog entry
// is) is the same kind the agent-pointer update accepts elsewhere in this
// package and in the lifecycle engine.
func (s *Service) recordLock(ctx context.Context, projectID, taskID, agentID string) error {
	tx, err := s.store.Begin(ctx)
	if err != nil {
		return err
	}
	defer tx.Rollback(ctx)

	if err := s.store.InsertChangelog(ctx, tx, changelog.KindTaskLocked, projectID, taskID, &agentID); err != nil {
		return err
	}
	if err := tx.Commit(ctx); err != nil {
		return err
	}

	s.broadcaster.Publish(projectID, portbroadcast.TopicChanges)
	return nil
}

// finalizeClaim completes a won ClaimNext/LockSpecific race by CASing the
// agent's current_task_id from null (§5, §4.2.2 step 3: the agent-row half
// of the single-active-task invariant). Two concurrent requests for the
// same agent can each win the task-row CAS against *different* tasks, so
// the task lock alone cannot enforce "at most one task per agent" — only
// this second, independent CAS on the agent row can. If it loses (the
// agent already holds a task, e.g. through a racing request that reached
// this point first), the just-claimed task is reverted to fromStatus and
// unlocked rather than left stranded in toStatus with no locker able to
// act on it, and the caller sees the same Conflict an upfront
// already-holds check would have produced.
func (s *Service) finalizeClaim(ctx context.Context, projectID, agentID string, t domaintask.Task, fromStatus domaintask.Status) (domaintask.Task, error) {
	ok, err := s.agents.ClaimCurrentTask(ctx, projectID, agentID, t.ID)
	if err != nil {
		return domaintask.Task{}, err
	}
	if !ok {
		if uerr := s.tasks.Unclaim(ctx, projectID, t.ID, fromStatus, agentID); uerr != nil {
			return domaintask.Task{}, uerr
		}
		s.broadcaster.Publish(projectID, portbroadcast.TopicDispatch)
		return domaintask.Task{}, apperr.New(apperr.KindConflict, "already_holds_task")
	}
	if err := s.recordLock(ctx, projectID, t.ID, agentID); err != nil {
		return domaintask.Task{}, err
	}
	return t, nil
}

// NextTask returns the best eligible task for (projectID, agentID, role,
// level). If nothing is immediately eligible and wait is true, it
// long-polls up to deadline (zero means DefaultWait), returning a
// synthetic domaintask.StatusWaiting task on timeout rather than an error.
func (s *Service) NextTask(ctx context.Context, projectID, agentID string, role domainagent.Role, level domainagent.Level, wait bool, deadline time.Duration) (domaintask.Task, error) {
	if projectID == "" {
		return domaintask.Task{}, apperr.New(apperr.KindBadRequest, "no project selected")
	}

	rule, participates := lifecycle.ClaimRuleFor(role)
	if !participates {
		return domaintask.Task{}, apperr.NotFoundf("role %s does not receive dispatched tasks", role)
	}

	a, err := s.agents.GetByID(ctx, projectID, agentID)
	if err != nil {
		return domaintask.Task{}, err
	}
	if a.HoldsTask() {
		return domaintask.Task{}, apperr.New(apperr.KindConflict, "already_holds_task")
	}

	t, ok, err := s.claimWithRetry(ctx, projectID, rule, role, level, agentID)
	if err != nil {
		return domaintask.Task{}, err
	}
	if ok {
		return s.finalizeClaim(ctx, projectID, agentID, t, rule.FromStatus)
	}

	if !wait {
		return domaintask.Task{}, apperr.NotFoundf("no eligible task for role %s", role)
	}
	if deadline <= 0 {
		deadline = s.DefaultWait
	}
	return s.waitForTask(ctx, projectID, rule, role, level, agentID, deadline)
}

// Lock implements the explicit `POST /tasks/{id}/lock` path: the caller
// already knows which task it wants (rather than asking NextTask to pick
// the best-ranked candidate), but the same eligibility rule, atomic CAS
// lock, and single-active-task check apply.
func (s *Service) Lock(ctx context.Context, projectID, taskID, agentID string, role domainagent.Role, level domainagent.Level) (domaintask.Task, error) {
	if projectID == "" {
		return domaintask.Task{}, apperr.New(apperr.KindBadRequest, "no project selected")
	}

	rule, participates := lifecycle.ClaimRuleFor(role)
	if !participates {
		return domaintask.Task{}, apperr.NotFoundf("role %s does not participate in task locking", role)
	}

	a, err := s.agents.GetByID(ctx, projectID, agentID)
	if err != nil {
		return domaintask.Task{}, err
	}
	if a.HoldsTask() {
		return domaintask.Task{}, apperr.New(apperr.KindConflict, "already_holds_task")
	}

	t, err := s.tasks.GetByID(ctx, projectID, taskID)
	if err != nil {
		return domaintask.Task{}, err
	}
	if !t.EligibleFor(rule.FromStatus, role, level, rule.FilterByTarget) {
		return domaintask.Task{}, apperr.New(apperr.KindConflict, "task is not eligible to be locked")
	}

	locked, ok, err := s.tasks.LockSpecific(ctx, projectID, taskID, rule.FromStatus, rule.ToStatus, agentID)
	if err != nil {
		return domaintask.Task{}, err
	}
	if !ok {
		return domaintask.Task{}, apperr.New(apperr.KindConflict, "task was locked by another agent")
	}
	return s.finalizeClaim(ctx, projectID, agentID, locked, rule.FromStatus)
}

// claimWithRetry applies the §4.2.2 step-7 bounded retry on a lost claim
// race: each ClaimNext call is its own select+CAS transaction, so losing
// the race just means re-running selection against current state.
func (s *Service) claimWithRetry(ctx context.Context, projectID string, rule lifecycle.ClaimRule, role domainagent.Role, level domainagent.Level, agentID string) (domaintask.Task, bool, error) {
	for attempt := 0; attempt < maxSelectionRetries; attempt++ {
		t, ok, err := s.tasks.ClaimNext(ctx, projectID, rule.FromStatus, rule.ToStatus, role, rule.FilterByTarget, level, agentID)
		if err != nil {
			return domaintask.Task{}, false, err
		}
		if ok {
			return t, true, nil
		}
		// ok==false, err==nil distinguishes "lost the race" from "nothing
		// eligible" only in that a race loss means a matching row existed a
		// moment ago; either way, re-querying is correct and cheap.
	}
	return domaintask.Task{}, false, nil
}

// waitForTask suspends until the dispatch signal wakes it, the requester's
// task appears through another path, or deadline elapses. It applies the
// per-project waiter cap before subscribing.
func (s *Service) waitForTask(ctx context.Context, projectID string, rule lifecycle.ClaimRule, role domainagent.Role, level domainagent.Level, agentID string, deadline time.Duration) (domaintask.Task, error) {
	if !s.acquireWaiterSlot(projectID) {
		return waitingTask(), nil
	}
	defer s.releaseWaiterSlot(projectID)

	sub := s.broadcaster.Subscribe(projectID, portbroadcast.TopicDispatch)
	defer sub.Close()

	waitCtx, cancel := context.WithTimeout(ctx, deadline)
	defer cancel()

	for {
		t, ok, err := s.claimWithRetry(waitCtx, projectID, rule, role, level, agentID)
		if err != nil {
			return domaintask.Task{}, err
		}
		if ok {
			return s.finalizeClaim(ctx, projectID, agentID, t, rule.FromStatus)
		}

		if err := sub.Wait(waitCtx); err != nil {
			return waitingTask(), nil
		}
		// Spurious-wake tolerant: loop back and re-run selection.
	}
}

func waitingTask() domaintask.Task {
	return domaintask.Task{Status: domaintask.StatusWaiting}
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
