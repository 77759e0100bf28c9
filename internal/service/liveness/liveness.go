// Package liveness wraps domain/liveness's pure classification with the
// repository lookups needed to answer "what is this agent/service's
// status right now", plus an optional background probe for services that
// configure a ping_url.
package liveness

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	portagent "github.com/agentfleet/coordinator/internal/port/agent"
	portbroadcast "github.com/agentfleet/coordinator/internal/port/broadcast"
	portsvc "github.com/agentfleet/coordinator/internal/port/svcregistry"
	porttask "github.com/agentfleet/coordinator/internal/port/task"

	domainagent "github.com/agentfleet/coordinator/internal/domain/agent"
	"github.com/agentfleet/coordinator/internal/domain/liveness"
	domainsvc "github.com/agentfleet/coordinator/internal/domain/svcregistry"
)

// Windows bundles the §6 configurable liveness thresholds.
type Windows struct {
	AgentOnline   time.Duration
	AgentRecent   time.Duration
	ServiceStale  time.Duration
	ProbeInterval time.Duration
	// TaskHoldGrace is how long an agent may go unseen before its held
	// task is reclaimed back to approved (REAPER_GRACE_SECONDS), distinct
	// from AgentOnline/AgentRecent which only drive UI classification.
	TaskHoldGrace time.Duration
}

func DefaultWindows() Windows {
	return Windows{
		AgentOnline:   5 * time.Minute,
		AgentRecent:   time.Hour,
		ServiceStale:  90 * time.Second,
		ProbeInterval: 30 * time.Second,
		TaskHoldGrace: 5 * time.Minute,
	}
}

type Service struct {
	agents      portagent.Repository
	tasks       porttask.Repository
	svcs        portsvc.Repository
	broadcaster portbroadcast.Broadcaster
	windows     Windows
	client      *http.Client
}

func New(agents portagent.Repository, tasks porttask.Repository, svcs portsvc.Repository, broadcaster portbroadcast.Broadcaster, windows Windows) *Service {
	return &Service{
		agents:      agents,
		tasks:       tasks,
		svcs:        svcs,
		broadcaster: broadcaster,
		windows:     windows,
		client:      &http.Client{Timeout: 5 * time.Second},
	}
}

// AgentLiveness classifies a single agent's liveness and availability.
func (s *Service) AgentLiveness(a domainagent.Agent, now time.Time) (liveness.AgentStatus, liveness.Availability) {
	status := liveness.ClassifyAgent(a.LastSeen, now, s.windows.AgentOnline, s.windows.AgentRecent)
	return status, liveness.ClassifyAvailability(status, a.HoldsTask())
}

// ServiceLiveness reports the service's effective status: its
// last-persisted status, overridden to down if the heartbeat is stale.
func (s *Service) ServiceLiveness(svc domainsvc.Service, now time.Time) domainsvc.Status {
	if liveness.ClassifyService(svc.LastHeartbeat, now, s.windows.ServiceStale) {
		return domainsvc.StatusDown
	}
	return svc.Status
}

// ListServicesWithLiveness returns every registered service in the project
// with Status set to its effective (staleness-overridden) value.
func (s *Service) ListServicesWithLiveness(ctx context.Context, projectID string) ([]domainsvc.Service, error) {
	svcs, err := s.svcs.List(ctx, projectID)
	if err != nil {
		return nil, err
	}
	now := time.Now().UTC()
	for i := range svcs {
		svcs[i].Status = s.ServiceLiveness(svcs[i], now)
	}
	return svcs, nil
}

// RunProbes starts the background sweep loop (§4.5): every ProbeInterval,
// it (a) HTTP GETs each service's ping_url across every project and
// down-transitions on failure, and (b) reclaims tasks held by agents that
// have gone unseen past TaskHoldGrace, resetting them to approved and
// unlocked and waking dispatch waiters for the freed role. Heartbeats and
// Touch calls re-assert liveness independently of this loop, which only
// exists to proactively flip state nothing else would ever revisit.
// Returns when ctx is cancelled.
func (s *Service) RunProbes(ctx context.Context, projectIDs func() []string) {
	grace := s.windows.TaskHoldGrace
	if grace <= 0 {
		grace = DefaultWindows().TaskHoldGrace
	}
	// Startup orphan scan: agents that went stale while the process was
	// down already missed every tick they would otherwise have been
	// caught by, so run one pass immediately rather than waiting a full
	// ProbeInterval before the first reclaim.
	s.sweepOnce(ctx, projectIDs(), grace)

	ticker := time.NewTicker(s.windows.ProbeInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			s.sweepOnce(ctx, projectIDs(), grace)
		}
	}
}

func (s *Service) sweepOnce(ctx context.Context, projectIDs []string, grace time.Duration) {
	now := time.Now().UTC()
	for _, projectID := range projectIDs {
		s.probeServices(ctx, projectID)
		s.reclaimStaleAgents(ctx, projectID, now, grace)
	}
}

func (s *Service) probeServices(ctx context.Context, projectID string) {
	svcs, err := s.svcs.List(ctx, projectID)
	if err != nil {
		slog.Error("liveness probe: listing services failed", "project_id", projectID, "error", err)
		return
	}
	for _, svc := range svcs {
		if svc.PingURL == nil {
			continue
		}
		if !s.ping(ctx, *svc.PingURL) {
			if err := s.svcs.Heartbeat(ctx, projectID, svc.Name, domainsvc.StatusDown); err != nil {
				slog.Error("liveness probe: marking service down failed", "service", svc.Name, "error", err)
			}
		}
	}
}

// reclaimStaleAgents releases every task held by an agent whose last_seen
// exceeds grace, per the reaper's grace-period release.
func (s *Service) reclaimStaleAgents(ctx context.Context, projectID string, now time.Time, grace time.Duration) {
	agents, err := s.agents.List(ctx, domainagent.ListFilters{ProjectID: &projectID})
	if err != nil {
		slog.Error("liveness reclaim: listing agents failed", "project_id", projectID, "error", err)
		return
	}
	for _, a := range agents {
		if !a.HoldsTask() || now.Sub(a.LastSeen) <= grace {
			continue
		}
		released, err := s.tasks.ReleaseStale(ctx, projectID, a.AgentID)
		if err != nil {
			slog.Error("liveness reclaim: releasing stale tasks failed", "agent_id", a.AgentID, "error", err)
			continue
		}
		if len(released) == 0 {
			continue
		}
		if err := s.agents.SetCurrentTask(ctx, projectID, a.AgentID, nil); err != nil {
			slog.Error("liveness reclaim: clearing agent current task failed", "agent_id", a.AgentID, "error", err)
		}
		slog.Info("liveness reclaim: released stale agent's tasks", "agent_id", a.AgentID, "project_id", projectID, "count", len(released))
		s.broadcaster.Publish(projectID, portbroadcast.TopicDispatch)
	}
}

func (s *Service) ping(ctx context.Context, url string) bool {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return false
	}
	resp, err := s.client.Do(req)
	if err != nil {
		return false
	}
	defer resp.Body.Close()
	return resp.StatusCode < 500
}
