// Package lifecycle implements the §4.3 Lifecycle Engine: validates task
// status transitions, enforces actor authority, clears the exclusive lock
// on exit from a locked state, appends the changelog entry, and publishes
// the dispatcher wake signal when the new state makes the task claimable.
package lifecycle

import (
	"context"

	portagent "github.com/agentfleet/coordinator/internal/port/agent"
	portbroadcast "github.com/agentfleet/coordinator/internal/port/broadcast"
	porttask "github.com/agentfleet/coordinator/internal/port/task"

	domainagent "github.com/agentfleet/coordinator/internal/domain/agent"
	"github.com/agentfleet/coordinator/internal/domain/apperr"
	"github.com/agentfleet/coordinator/internal/domain/changelog"
	domainlifecycle "github.com/agentfleet/coordinator/internal/domain/lifecycle"
	domaintask "github.com/agentfleet/coordinator/internal/domain/task"
	"github.com/agentfleet/coordinator/internal/port/store"
)

type Service struct {
	tasks       porttask.Repository
	agents      portagent.Repository
	store       store.Store
	broadcaster portbroadcast.Broadcaster
}

func New(tasks porttask.Repository, agents portagent.Repository, s store.Store, broadcaster portbroadcast.Broadcaster) *Service {
	return &Service{tasks: tasks, agents: agents, store: s, broadcaster: broadcaster}
}

// Transition moves task id from its current status to `to`, authorized as
// actorRole acting as actorAgentID, with an optional note. override permits
// the architect/pm "any -> any" escape hatch regardless of legalEdges.
func (s *Service) Transition(ctx context.Context, projectID, id string, actorAgentID string, actorRole domainagent.Role, to domaintask.Status, note *string, override bool) (domaintask.Task, error) {
	t, err := s.tasks.GetByID(ctx, projectID, id)
	if err != nil {
		return domaintask.Task{}, err
	}

	if override {
		if !domainlifecycle.IsArchitectOrPM(actorRole) {
			return domaintask.Task{}, apperr.New(apperr.KindForbidden, "override requires architect or pm authority")
		}
		// The stored note marks the change as an override.
		marked := "override"
		if note != nil && *note != "" {
			marked = "override: " + *note
		}
		note = &marked
	} else {
		if !t.Status.CanTransitionTo(to) {
			return domaintask.Task{}, apperr.New(apperr.KindUnprocessableState, "illegal status transition")
		}
		rule, ok := domainlifecycle.RuleFor(t.Status, to)
		if !ok {
			return domaintask.Task{}, apperr.New(apperr.KindUnprocessableState, "illegal status transition")
		}
		if err := s.checkAuthority(rule.Authority, t, actorAgentID, actorRole); err != nil {
			return domaintask.Task{}, err
		}
		if rule.RequiresComment && (note == nil || *note == "") {
			return domaintask.Task{}, apperr.New(apperr.KindBadRequest, "this transition requires a note")
		}
	}

	// The engine refuses a status write if the task is locked and the actor
	// is not the locker, except via the override path (already authorized
	// above).
	if !override && t.IsLocked() && (t.LockedByAgentID == nil || *t.LockedByAgentID != actorAgentID) {
		return domaintask.Task{}, apperr.New(apperr.KindForbidden, "task is locked by another agent")
	}

	tx, err := s.store.Begin(ctx)
	if err != nil {
		return domaintask.Task{}, err
	}
	defer tx.Rollback(ctx)

	updated, err := s.tasks.UpdateStatus(ctx, tx, projectID, id, t.Status, to, &actorAgentID, note)
	if err != nil {
		return domaintask.Task{}, err
	}

	if err := s.store.InsertChangelog(ctx, tx, changelog.KindTaskStatus, projectID, updated.ID, &actorAgentID); err != nil {
		return domaintask.Task{}, err
	}

	if err := tx.Commit(ctx); err != nil {
		return domaintask.Task{}, err
	}

	// The agent's current_task_id pointer lives in a separate repository
	// that does not participate in the task's transaction; clearing it
	// just after commit leaves a narrow window where the task is already
	// unlocked but the agent still shows as holding it. Acceptable here
	// since no other mutation reads current_task_id without also
	// re-checking the task row it points to.
	if domaintask.ClearsLock(t.Status, to) && t.LockedByAgentID != nil {
		if err := s.agents.SetCurrentTask(ctx, projectID, *t.LockedByAgentID, nil); err != nil {
			return domaintask.Task{}, err
		}
	}

	if domainlifecycle.WakesDispatch(to) {
		s.broadcaster.Publish(projectID, portbroadcast.TopicDispatch)
	}
	s.broadcaster.Publish(projectID, portbroadcast.TopicChanges)

	return updated, nil
}

// Evaluate implements POST /tasks/{id}/evaluate: architect/pm approval of a
// created task. Approve is a normal created->approved transition; reject
// stays in created, with the rejection reason recorded as a note and a
// changelog entry rather than moving to a distinct rejected state, so a
// rejected task simply re-enters the same evaluation queue after revision.
func (s *Service) Evaluate(ctx context.Context, projectID, id, actorAgentID string, actorRole domainagent.Role, approve bool, note *string) (domaintask.Task, error) {
	if approve {
		return s.Transition(ctx, projectID, id, actorAgentID, actorRole, domaintask.StatusApproved, note, false)
	}

	if !domainlifecycle.IsArchitectOrPM(actorRole) {
		return domaintask.Task{}, apperr.New(apperr.KindForbidden, "requires architect or pm authority")
	}
	if note == nil || *note == "" {
		return domaintask.Task{}, apperr.New(apperr.KindBadRequest, "rejection requires a note")
	}

	t, err := s.tasks.GetByID(ctx, projectID, id)
	if err != nil {
		return domaintask.Task{}, err
	}
	if t.Status != domaintask.StatusCreated {
		return domaintask.Task{}, apperr.New(apperr.KindUnprocessableState, "only a created task can be rejected")
	}

	tx, err := s.store.Begin(ctx)
	if err != nil {
		return domaintask.Task{}, err
	}
	defer tx.Rollback(ctx)

	updated, err := s.tasks.UpdateStatus(ctx, tx, projectID, id, domaintask.StatusCreated, domaintask.StatusCreated, &actorAgentID, note)
	if err != nil {
		return domaintask.Task{}, err
	}
	if err := s.store.InsertChangelog(ctx, tx, changelog.KindTaskStatus, projectID, updated.ID, &actorAgentID); err != nil {
		return domaintask.Task{}, err
	}
	if err := tx.Commit(ctx); err != nil {
		return domaintask.Task{}, err
	}

	s.broadcaster.Publish(projectID, portbroadcast.TopicChanges)
	return updated, nil
}

func (s *Service) checkAuthority(a domainlifecycle.Authority, t domaintask.Task, actorAgentID string, actorRole domainagent.Role) error {
	switch a {
	case domainlifecycle.AuthorityLocker:
		if t.LockedByAgentID == nil || *t.LockedByAgentID != actorAgentID {
			return apperr.New(apperr.KindForbidden, "only the task's current locker may make this transition")
		}
	case domainlifecycle.AuthorityArchitectOrPM:
		if !domainlifecycle.IsArchitectOrPM(actorRole) {
			return apperr.New(apperr.KindForbidden, "requires architect or pm authority")
		}
	case domainlifecycle.AuthorityAnyDev:
		if !domainlifecycle.IsDev(actorRole) {
			return apperr.New(apperr.KindForbidden, "requires a dev role")
		}
	case domainlifecycle.AuthorityAnyAgent:
		// Any registered project agent may invoke this transition; the
		// caller has already been resolved and scoped to the project.
	}
	return nil
}
