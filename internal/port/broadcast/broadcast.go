// Package broadcast defines the per-project, in-process wake-up signal
// that the dispatcher's long-poll wait (§4.2.3) and the change aggregator's
// long-poll wait (§4.6) both use. Delivery is best-effort: publish never
// blocks, and waiters must tolerate spurious and missed wakeups by
// re-querying state on every wake and on deadline, per §9.
package broadcast

import "context"

// Topic scopes a subscription within a project (e.g. "dispatch" for task
// eligibility changes, "changes" for changelog appends). A subscriber only
// wakes for Publish calls on the same (project, topic) pair.
type Topic string

const (
	TopicDispatch Topic = "dispatch"
	TopicChanges  Topic = "changes"
)

// Subscription is a single waiter's handle. Wait blocks until Publish is
// called for this (project, topic), ctx is cancelled, or the broadcaster
// decides to wake it for any other best-effort reason. Callers must treat
// every return as a spurious wake: re-check state, and call Wait again if
// still waiting.
type Subscription interface {
	// Wait blocks until woken or ctx is done. Returns ctx.Err() only when
	// ctx is what ended the wait.
	Wait(ctx context.Context) error
	// Close releases the subscription. Safe to call more than once.
	Close()
}

// Broadcaster is the per-project fan-out primitive: many subscribers, a
// publish that never blocks the publisher, wake-all semantics.
type Broadcaster interface {
	// Subscribe registers a waiter for (projectID, topic). The caller must
	// Close the returned Subscription when done waiting.
	Subscribe(projectID string, topic Topic) Subscription
	// Publish wakes every current subscriber of (projectID, topic). It
	// never blocks and is safe to call with no subscribers present.
	Publish(projectID string, topic Topic)
}
