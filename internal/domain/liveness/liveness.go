// Package liveness implements §4.5: pure classification of agent and
// service liveness from stored timestamps against configured windows. No
// I/O lives here — these are total functions over (timestamp, now,
// thresholds), so the liveness monitor's background probe is optional for
// correctness, only for proactive status flips.
package liveness

import "time"

// AgentStatus is the age-derived liveness bucket for an agent's last_seen.
type AgentStatus string

const (
	AgentOnline         AgentStatus = "online"
	AgentRecentlyActive AgentStatus = "recently_active"
	AgentOffline        AgentStatus = "offline"
)

// ClassifyAgent buckets an agent's last_seen age against the configured
// online/recent windows (defaults: 5m / 1h).
func ClassifyAgent(lastSeen, now time.Time, onlineWindow, recentWindow time.Duration) AgentStatus {
	age := now.Sub(lastSeen)
	switch {
	case age <= onlineWindow:
		return AgentOnline
	case age <= recentWindow:
		return AgentRecentlyActive
	default:
		return AgentOffline
	}
}

// Availability is the assignment-eligibility view derived from liveness
// plus whether the agent currently holds a task.
type Availability string

const (
	AvailabilityIdle    Availability = "idle"
	AvailabilityWorking Availability = "working"
	AvailabilityOffline Availability = "offline"
)

// ClassifyAvailability applies §4.5's availability rule: working takes
// priority over online/offline once a task is held, since an agent
// holding a task is never eligible for more dispatched work regardless of
// how recently it was seen.
func ClassifyAvailability(status AgentStatus, holdsTask bool) Availability {
	if holdsTask {
		return AvailabilityWorking
	}
	if status == AgentOnline {
		return AvailabilityIdle
	}
	return AvailabilityOffline
}

// ClassifyService reports whether a service's last_heartbeat age makes it
// stale enough to report as down regardless of its last-persisted status;
// a heartbeat within the threshold re-asserts whatever status is stored.
func ClassifyService(lastHeartbeat, now time.Time, staleThreshold time.Duration) bool {
	return now.Sub(lastHeartbeat) > staleThreshold
}
