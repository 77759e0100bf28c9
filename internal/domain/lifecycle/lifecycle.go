// Package lifecycle is the table-driven authority and claim policy for the
// task state machine in domain/task: who may invoke a direct status PUT,
// and which (role, status) pairs are reached through the dispatcher's
// claim-and-lock path instead of a direct PUT. Modeled as closed
// enumerations with explicit tables per the "dynamic dispatch on
// role/status" design note, rather than runtime role comparisons
// scattered across the service layer.
package lifecycle

import (
	"github.com/agentfleet/coordinator/internal/domain/agent"
	"github.com/agentfleet/coordinator/internal/domain/task"
)

// Authority is the closed set of actor-authority rules for a direct,
// non-override, non-claimed status transition.
type Authority int

const (
	// AuthorityLocker requires the actor to be the task's current locker.
	AuthorityLocker Authority = iota
	// AuthorityArchitectOrPM requires the architect role or PM authority.
	AuthorityArchitectOrPM
	// AuthorityAnyDev requires a dev role (frontend_dev or backend_dev),
	// not necessarily the task's original locker.
	AuthorityAnyDev
	// AuthorityAnyAgent permits any registered project agent.
	AuthorityAnyAgent
)

// Rule pairs a legal destination status with who may invoke it directly.
type Rule struct {
	To        task.Status
	Authority Authority
	// RequiresComment mirrors task.Status.RequiresComment but is kept here
	// too since it is part of the authority/invocation contract the
	// transport layer validates against before calling the engine.
	RequiresComment bool
}

// Transitions enumerates every direct PUT /tasks/{id}/status edge and its
// authority. approved->under_work and dev_done->testing are deliberately
// absent: those are reached only by claiming through the dispatcher (see
// ClaimRules), never by a direct status PUT.
var Transitions = map[task.Status][]Rule{
	task.StatusCreated: {
		{To: task.StatusApproved, Authority: AuthorityArchitectOrPM},
	},
	task.StatusUnderWork: {
		{To: task.StatusDevDone, Authority: AuthorityLocker},
	},
	task.StatusTesting: {
		{To: task.StatusQADone, Authority: AuthorityLocker},
		{To: task.StatusCreated, Authority: AuthorityLocker, RequiresComment: true},
	},
	task.StatusQADone: {
		{To: task.StatusDocumentationDone, Authority: AuthorityAnyAgent},
	},
	task.StatusDocumentationDone: {
		{To: task.StatusCommitted, Authority: AuthorityAnyDev},
	},
}

// RuleFor returns the Transitions entry for (from, to), if any.
func RuleFor(from, to task.Status) (Rule, bool) {
	for _, r := range Transitions[from] {
		if r.To == to {
			return r, true
		}
	}
	return Rule{}, false
}

// ClaimRule describes the (source status -> destination status) pair a
// given role reaches through the dispatcher's claim-and-lock path (§4.2),
// and whether candidate tasks must match the requester's role in
// task.TargetRole. QA claims ignore TargetRole: a task authored against
// frontend_dev still needs any available QA agent once it reaches
// dev_done.
type ClaimRule struct {
	FromStatus     task.Status
	ToStatus       task.Status
	FilterByTarget bool
}

var claimRules = map[agent.Role]ClaimRule{
	agent.RoleFrontendDev: {FromStatus: task.StatusApproved, ToStatus: task.StatusUnderWork, FilterByTarget: true},
	agent.RoleBackendDev:  {FromStatus: task.StatusApproved, ToStatus: task.StatusUnderWork, FilterByTarget: true},
	agent.RoleQA:          {FromStatus: task.StatusDevDone, ToStatus: task.StatusTesting, FilterByTarget: false},
}

// ClaimRuleFor returns the claim rule for a role, if that role participates
// in dispatcher claiming at all (architect/PM/ui_admin do not: they act
// through evaluate/override, never /tasks/next).
func ClaimRuleFor(role agent.Role) (ClaimRule, bool) {
	r, ok := claimRules[role]
	return r, ok
}

// WakesDispatch reports whether a task landing in status `to` makes it
// newly eligible for some role's claim rule, and so should publish a
// dispatcher wake signal for the project.
func WakesDispatch(to task.Status) bool {
	for _, r := range claimRules {
		if r.FromStatus == to {
			return true
		}
	}
	return false
}

func IsArchitectOrPM(r agent.Role) bool { return r == agent.RoleArchitect || r.IsPM() }

func IsDev(r agent.Role) bool { return r == agent.RoleFrontendDev || r == agent.RoleBackendDev }
