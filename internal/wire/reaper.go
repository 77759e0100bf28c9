package wire

import (
	"context"
	"log/slog"
	"os"
	"strconv"
	"time"

	portproject "github.com/agentfleet/coordinator/internal/port/project"
	livenesssvc "github.com/agentfleet/coordinator/internal/service/liveness"
)

// startReaper launches the liveness monitor's background sweep
// (service/liveness.RunProbes): grace-period task reclaim and service
// ping probing both live in one ticker, driven by stored timestamps
// rather than an online/offline event stream, since this deployment has
// no LISTEN/NOTIFY-style bus for an agent to publish online/offline
// transitions on. RunProbes runs one sweep immediately before starting
// its ticker, serving as the startup orphan scan for agents that went
// stale while the process was down.
func startReaper(ctx context.Context, liveness *livenesssvc.Service, projects portproject.Repository) {
	projectIDs := func() []string {
		ps, err := projects.List(ctx)
		if err != nil {
			slog.Error("reaper: listing projects failed", "error", err)
			return nil
		}
		ids := make([]string, len(ps))
		for i, p := range ps {
			ids[i] = p.ID
		}
		return ids
	}

	go liveness.RunProbes(ctx, projectIDs)
}

// envDuration reads an integer-seconds env var and returns a Duration.
// Falls back to defaultVal if the var is unset or invalid.
func envDuration(key string, defaultVal time.Duration) time.Duration {
	if v := os.Getenv(key); v != "" {
		if secs, err := strconv.Atoi(v); err == nil && secs > 0 {
			return time.Duration(secs) * time.Second
		}
	}
	return defaultVal
}
