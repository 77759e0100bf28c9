// Package wire assembles the concrete adapters into the service layer and
// the HTTP/MCP transports, the single place in the module allowed to know
// about every concrete type at once.
package wire

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"time"

	"github.com/agentfleet/coordinator/internal/adapter/broadcast"
	"github.com/agentfleet/coordinator/internal/adapter/lock"
	"github.com/agentfleet/coordinator/internal/adapter/sqlstore"

	agentsvc "github.com/agentfleet/coordinator/internal/service/agent"
	changessvc "github.com/agentfleet/coordinator/internal/service/changes"
	commentsvc "github.com/agentfleet/coordinator/internal/service/comment"
	dispatchersvc "github.com/agentfleet/coordinator/internal/service/dispatcher"
	documentsvc "github.com/agentfleet/coordinator/internal/service/document"
	epicsvc "github.com/agentfleet/coordinator/internal/service/epic"
	featuresvc "github.com/agentfleet/coordinator/internal/service/feature"
	lifecyclesvc "github.com/agentfleet/coordinator/internal/service/lifecycle"
	livenesssvc "github.com/agentfleet/coordinator/internal/service/liveness"
	notifiersvc "github.com/agentfleet/coordinator/internal/service/notifier"
	projectsvc "github.com/agentfleet/coordinator/internal/service/project"
	svcregistrysvc "github.com/agentfleet/coordinator/internal/service/svcregistry"
	tasksvc "github.com/agentfleet/coordinator/internal/service/task"

	"github.com/agentfleet/coordinator/internal/transport"
	mcptransport "github.com/agentfleet/coordinator/internal/transport/mcp"
	wshandler "github.com/agentfleet/coordinator/internal/transport/ws"
)

// App holds the top-level resources needed to run and gracefully stop the
// server: the raw connection pool (named Pool by the pgxpool convention
// even though the backend here is database/sql) and the HTTP server
// multiplexing the gin API, WS mirror, and MCP endpoint.
type App struct {
	Pool   *sql.DB
	Server *http.Server
}

// Build is the composition root: the only place concrete types are wired
// to their interface dependencies. ctx bounds the background sweeps
// started here (liveness probing, the WS change-feed bridge); callers
// cancel it at shutdown.
func Build(ctx context.Context) (*App, error) {
	driver := sqlstore.Driver(envOr("DB_CONNECTION", string(sqlstore.DriverSQLite)))
	dsn := envOr("DATABASE_URL", "coordinator.db")

	db, err := sqlstore.Open(driver, dsn)
	if err != nil {
		return nil, fmt.Errorf("opening database: %w", err)
	}

	store, err := sqlstore.New(ctx, db)
	if err != nil {
		db.Close()
		return nil, fmt.Errorf("initializing store: %w", err)
	}

	// ── Adapters ─────────────────────────────────────────────────────
	projectRepo := sqlstore.NewProjectRepository(store)
	agentRepo := sqlstore.NewAgentRepository(store)
	taskRepo := sqlstore.NewTaskRepository(store)
	commentRepo := sqlstore.NewCommentRepository(store)
	documentRepo := sqlstore.NewDocumentRepository(store)
	epicRepo := sqlstore.NewEpicRepository(store)
	featureRepo := sqlstore.NewFeatureRepository(store)
	svcRepo := sqlstore.NewServiceRepository(store)
	mentionRepo := sqlstore.NewMentionRepository(store)
	changelogReader := sqlstore.NewChangelogReader(store)

	bc := broadcast.New()
	locker := lock.New()
	hub := wshandler.NewHub()
	mcpReg := mcptransport.NewSessionRegistry()

	// ── Services ─────────────────────────────────────────────────────
	projectSvc := projectsvc.New(projectRepo)
	epicSvc := epicsvc.New(epicRepo)
	featureSvc := featuresvc.New(featureRepo)
	taskSvc := tasksvc.New(taskRepo, store, bc)
	dispatcherSvc := dispatchersvc.New(taskRepo, agentRepo, store, bc, envDuration("DISPATCHER_WAIT_SECONDS", 180*time.Second))
	lifecycleSvc := lifecyclesvc.New(taskRepo, agentRepo, store, bc)
	agentSvc := agentsvc.New(agentRepo, taskRepo, store, bc, locker)
	svcRegSvc := svcregistrysvc.New(svcRepo, store, bc, locker)

	windows := livenesssvc.DefaultWindows()
	windows.TaskHoldGrace = envDuration("REAPER_GRACE_SECONDS", windows.TaskHoldGrace)
	windows.ProbeInterval = envDuration("LIVENESS_PROBE_INTERVAL_SECONDS", windows.ProbeInterval)
	livenessSvc := livenesssvc.New(agentRepo, taskRepo, svcRepo, bc, windows)

	// A mentioned agent may be connected over MCP, over the WS mirror, or
	// not connected at all; both registries no-op on NotifyAgent when the
	// agent isn't theirs, so trying both is a correct best-effort push.
	notifySvc := notifiersvc.New(mentionRepo, agentRepo, store, fanoutNotifier{mcpReg, hub})

	commentSvc := commentsvc.New(commentRepo, notifySvc)
	documentSvc := documentsvc.New(documentRepo, notifySvc, store, bc)
	changesSvc := changessvc.New(changelogReader, taskRepo, documentRepo, mentionRepo, agentRepo, svcRepo, store, bc)

	mcpSrv := mcptransport.New(mcpReg, mcptransport.Services{
		Dispatcher: dispatcherSvc,
		Lifecycle:  lifecycleSvc,
		Comments:   commentSvc,
		Documents:  documentSvc,
		Changes:    changesSvc,
		Agents:     agentSvc,
		ServiceReg: svcRegSvc,
	})

	// ── Background sweeps ────────────────────────────────────────────
	startReaper(ctx, livenessSvc, projectRepo)
	startWSBridge(ctx, changesSvc, projectRepo, hub)

	// ── Transport ────────────────────────────────────────────────────
	router := transport.NewRouter(transport.Services{
		Project:    projectSvc,
		Task:       taskSvc,
		Dispatcher: dispatcherSvc,
		Lifecycle:  lifecycleSvc,
		Comment:    commentSvc,
		Agent:      agentSvc,
		Document:   documentSvc,
		Epic:       epicSvc,
		Feature:    featureSvc,
		Notifier:   notifySvc,
		Changes:    changesSvc,
		SvcReg:     svcRegSvc,
		Liveness:   livenessSvc,
	}, hub, mcpSrv)

	port := envOr("SERVICE_PORT", "6969")
	server := &http.Server{
		Addr:              ":" + port,
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	slog.Info("application wired", "port", port, "db_connection", driver)

	return &App{Pool: db, Server: server}, nil
}

// fanoutNotifier implements port/notifier.AgentNotifier by trying every
// transport-specific notifier in turn. Each one already treats "agent not
// connected here" as a no-op success, so fanning out is safe; an agent
// connected over both transports gets the event on both.
type fanoutNotifier struct {
	mcp *mcptransport.SessionRegistry
	ws  *wshandler.Hub
}

func (f fanoutNotifier) NotifyAgent(ctx context.Context, projectID, agentID string, event any) error {
	if err := f.mcp.NotifyAgent(ctx, projectID, agentID, event); err != nil {
		slog.WarnContext(ctx, "mcp notify failed", "project_id", projectID, "agent_id", agentID, "error", err)
	}
	return f.ws.NotifyAgent(ctx, projectID, agentID, event)
}

func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}
