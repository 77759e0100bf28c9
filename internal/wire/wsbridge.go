package wire

import (
	"context"
	"log/slog"
	"sync"
	"time"

	portproject "github.com/agentfleet/coordinator/internal/port/project"
	changessvc "github.com/agentfleet/coordinator/internal/service/changes"
	wshandler "github.com/agentfleet/coordinator/internal/transport/ws"
)

// rescanInterval bounds how long a newly created project can go before
// the bridge notices it and starts a watcher goroutine for it, since
// there is no project-created broadcast topic to subscribe to instead.
const rescanInterval = 10 * time.Second

// bridgeWaitTimeout bounds each long-poll leg of the per-project relay
// loop; a zero deadline would make Wait's internal context expire
// immediately and turn the loop into a tight busy-poll instead of an
// actual long poll.
const bridgeWaitTimeout = 55 * time.Second

// startWSBridge forwards the in-process changelog to the best-effort
// WebSocket mirror: human dashboard clients have no MCP session and no
// polling loop of their own, so something has to translate the
// broadcaster's wake-only signal into the actual Snapshot payload they
// see over the socket. One goroutine per project subscribes to
// TopicChanges and replays whatever's new through changesSvc.Since,
// using viewerIsPM=true so a dashboard observer sees every mention
// regardless of recipient.
func startWSBridge(ctx context.Context, changes *changessvc.Service, projects portproject.Repository, hub *wshandler.Hub) {
	var mu sync.Mutex
	watching := make(map[string]bool)

	watch := func(projectID string) {
		mu.Lock()
		if watching[projectID] {
			mu.Unlock()
			return
		}
		watching[projectID] = true
		mu.Unlock()

		go bridgeProject(ctx, changes, hub, projectID)
	}

	rescan := func() {
		ps, err := projects.List(ctx)
		if err != nil {
			slog.Error("wsbridge: listing projects failed", "error", err)
			return
		}
		for _, p := range ps {
			watch(p.ID)
		}
	}

	rescan()

	go func() {
		ticker := time.NewTicker(rescanInterval)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				rescan()
			}
		}
	}()
}

// bridgeProject relays one project's changelog to the WS hub for the
// lifetime of ctx.
func bridgeProject(ctx context.Context, changes *changessvc.Service, hub *wshandler.Hub, projectID string) {
	var sinceTS time.Time
	var sinceSeq int64

	for {
		snap, err := changes.Wait(ctx, projectID, sinceTS, sinceSeq, "dashboard", true, bridgeWaitTimeout)
		if err != nil {
			if ctx.Err() != nil {
				return
			}
			slog.Error("wsbridge: since failed", "project_id", projectID, "error", err)
			time.Sleep(time.Second)
			continue
		}

		sinceTS, sinceSeq = snap.Timestamp, snap.TimestampSeq
		if !snap.Empty() {
			hub.Broadcast(struct {
				ProjectID string              `json:"project_id"`
				Snapshot  changessvc.Snapshot `json:"snapshot"`
			}{ProjectID: projectID, Snapshot: snap})
		}

		if ctx.Err() != nil {
			return
		}
	}
}
