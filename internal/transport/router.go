package transport

import (
	"os"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"

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

	agenthandler "github.com/agentfleet/coordinator/internal/transport/agent"
	changeshandler "github.com/agentfleet/coordinator/internal/transport/changes"
	documenthandler "github.com/agentfleet/coordinator/internal/transport/document"
	epichandler "github.com/agentfleet/coordinator/internal/transport/epic"
	featurehandler "github.com/agentfleet/coordinator/internal/transport/feature"
	mcptransport "github.com/agentfleet/coordinator/internal/transport/mcp"
	mentionhandler "github.com/agentfleet/coordinator/internal/transport/mention"
	projecthandler "github.com/agentfleet/coordinator/internal/transport/project"
	svcregistryhandler "github.com/agentfleet/coordinator/internal/transport/svcregistry"
	taskhandler "github.com/agentfleet/coordinator/internal/transport/task"
	wshandler "github.com/agentfleet/coordinator/internal/transport/ws"
)

// Services bundles every application service the HTTP boundary wires to
// a route group. One struct so the wire package has a single call site
// instead of NewRouter carrying a dozen positional parameters.
type Services struct {
	Project    *projectsvc.Service
	Task       *tasksvc.Service
	Dispatcher *dispatchersvc.Service
	Lifecycle  *lifecyclesvc.Service
	Comment    *commentsvc.Service
	Agent      *agentsvc.Service
	Document   *documentsvc.Service
	Epic       *epicsvc.Service
	Feature    *featuresvc.Service
	Notifier   *notifiersvc.Service
	Changes    *changessvc.Service
	SvcReg     *svcregistrysvc.Service
	Liveness   *livenesssvc.Service
}

// NewRouter assembles the full /api/v1 surface plus the best-effort
// WebSocket mirror and the MCP streamable-HTTP endpoint, matching the
// teacher's router.go pattern: one per-entity Register call per route
// group, wrapped in a fixed middleware chain.
func NewRouter(svc Services, hub *wshandler.Hub, mcpSrv *mcptransport.Server) *gin.Engine {
	gin.SetMode(gin.ReleaseMode)
	r := gin.New()

	r.Use(gin.Recovery())
	r.Use(CorrelationID())
	r.Use(RequestLogger())
	r.Use(CORSMiddleware())
	r.Use(APIKeyMiddleware(os.Getenv("API_KEY")))
	r.Use(RateLimitMiddleware(apiRateLimit(), apiRateLimitPeriod()))

	api := r.Group("/api/v1")

	projecthandler.Register(api.Group("/projects"), svc.Project)

	scoped := api.Group("")
	scoped.Use(ProjectScopeMiddleware())

	taskhandler.Register(scoped.Group("/tasks"), taskhandler.Services{
		Tasks:      svc.Task,
		Dispatcher: svc.Dispatcher,
		Lifecycle:  svc.Lifecycle,
		Comments:   svc.Comment,
	})
	agenthandler.Register(scoped.Group("/agents"), svc.Agent)
	documenthandler.Register(scoped.Group("/documents"), svc.Document)
	epichandler.Register(scoped.Group("/epics"), svc.Epic)
	featurehandler.Register(scoped.Group("/features"), svc.Feature)
	mentionhandler.Register(scoped.Group("/mentions"), svc.Notifier)
	changeshandler.Register(scoped.Group("/changes"), svc.Changes)
	svcregistryhandler.Register(scoped.Group("/services"), svcregistryhandler.Services{
		Registry: svc.SvcReg,
		Liveness: svc.Liveness,
	})

	hub.Register(api.Group("/ws"))

	if mcpSrv != nil {
		r.Any("/mcp", gin.WrapH(mcpSrv.Handler()))
		r.Any("/mcp/*path", gin.WrapH(mcpSrv.Handler()))
	}

	return r
}

func apiRateLimit() int {
	if v := os.Getenv("API_RATE_LIMIT"); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			return n
		}
	}
	return 100
}

func apiRateLimitPeriod() time.Duration {
	if v := os.Getenv("API_RATE_LIMIT_PERIOD"); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			return time.Duration(n) * time.Second
		}
	}
	return 60 * time.Second
}
