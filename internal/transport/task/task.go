// Package task exposes task creation, the dispatcher's next/lock routes,
// status transitions, comments, and evaluation.
package task

import (
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/agentfleet/coordinator/internal/transport/httpx"

	domainagent "github.com/agentfleet/coordinator/internal/domain/agent"
	domaintask "github.com/agentfleet/coordinator/internal/domain/task"
	commentsvc "github.com/agentfleet/coordinator/internal/service/comment"
	dispatchersvc "github.com/agentfleet/coordinator/internal/service/dispatcher"
	lifecyclesvc "github.com/agentfleet/coordinator/internal/service/lifecycle"
	tasksvc "github.com/agentfleet/coordinator/internal/service/task"
)

// Services bundles the task-related application services a single gin
// route group dispatches to — creation, claiming, transitions, and
// comments each live in their own service package (dispatcher enforces
// the exclusive lock, lifecycle enforces transition authority), but share
// one HTTP surface under /tasks.
type Services struct {
	Tasks      *tasksvc.Service
	Dispatcher *dispatchersvc.Service
	Lifecycle  *lifecyclesvc.Service
	Comments   *commentsvc.Service
}

func Register(rg *gin.RouterGroup, svc Services) {
	rg.POST("/create", createTask(svc.Tasks))
	rg.GET("", listTasks(svc.Tasks))
	rg.GET("/next", nextTask(svc.Dispatcher))
	rg.GET("/:id", getTask(svc.Tasks))
	rg.POST("/:id/lock", lockTask(svc.Dispatcher))
	rg.PUT("/:id/status", updateStatus(svc.Lifecycle))
	rg.POST("/:id/comment", postComment(svc.Comments))
	rg.GET("/:id/comments", listComments(svc.Comments))
	rg.POST("/:id/evaluate", evaluateTask(svc.Lifecycle))
}

type createTaskReq struct {
	FeatureID   string             `json:"feature_id" binding:"required"`
	Title       string             `json:"title" binding:"required"`
	Description string             `json:"description"`
	TargetRole  domainagent.Role   `json:"target_role" binding:"required"`
	Difficulty  domainagent.Level  `json:"difficulty" binding:"required"`
	Complexity  domaintask.Complexity `json:"complexity" binding:"required"`
	CreatedBy   string             `json:"created_by" binding:"required"`
}

func createTask(svc *tasksvc.Service) gin.HandlerFunc {
	return func(c *gin.Context) {
		projectID, ok := httpx.RequireProjectID(c)
		if !ok {
			return
		}

		var req createTaskReq
		if err := c.ShouldBindJSON(&req); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
			return
		}

		t, err := svc.Create(c.Request.Context(), projectID, req.FeatureID, req.Title, req.Description, req.TargetRole, req.Difficulty, req.Complexity, req.CreatedBy)
		if err != nil {
			httpx.WriteError(c, err)
			return
		}
		c.JSON(http.StatusCreated, t)
	}
}

func listTasks(svc *tasksvc.Service) gin.HandlerFunc {
	return func(c *gin.Context) {
		var filters domaintask.ListFilters
		if v := httpx.ProjectID(c); v != "" {
			filters.ProjectID = &v
		}
		if v := c.Query("feature_id"); v != "" {
			filters.FeatureID = &v
		}
		if v := c.Query("status"); v != "" {
			s := domaintask.Status(v)
			filters.Status = &s
		}
		if v := c.Query("target_role"); v != "" {
			r := domainagent.Role(v)
			filters.TargetRole = &r
		}
		if v := c.Query("assigned_to"); v != "" {
			filters.AssignedTo = &v
		}
		if v := c.Query("locked_by"); v != "" {
			filters.LockedBy = &v
		}

		tasks, err := svc.List(c.Request.Context(), filters)
		if err != nil {
			httpx.WriteError(c, err)
			return
		}
		if tasks == nil {
			tasks = []domaintask.Task{}
		}
		c.JSON(http.StatusOK, tasks)
	}
}

func getTask(svc *tasksvc.Service) gin.HandlerFunc {
	return func(c *gin.Context) {
		projectID, ok := httpx.RequireProjectID(c)
		if !ok {
			return
		}
		t, err := svc.GetByID(c.Request.Context(), projectID, c.Param("id"))
		if err != nil {
			httpx.WriteError(c, err)
			return
		}
		c.JSON(http.StatusOK, t)
	}
}

// nextTask implements the dispatcher's GET /tasks/next?role=&level=&wait=
// route: the best eligible task for the requesting agent, optionally
// long-polling when nothing is immediately available.
func nextTask(svc *dispatchersvc.Service) gin.HandlerFunc {
	return func(c *gin.Context) {
		projectID, ok := httpx.RequireProjectID(c)
		if !ok {
			return
		}
		agentID := httpx.RequesterAgentID(c)
		if agentID == "" {
			httpx.WriteError(c, httpx.ErrMissingAgentID())
			return
		}

		role := domainagent.Role(c.Query("role"))
		level := domainagent.Level(c.Query("level"))
		wait := c.Query("wait") == "true" || c.Query("wait") == "1"

		var deadline time.Duration
		if v := c.Query("timeout_seconds"); v != "" {
			if n, err := strconv.Atoi(v); err == nil && n > 0 {
				deadline = time.Duration(n) * time.Second
			}
		}

		t, err := svc.NextTask(c.Request.Context(), projectID, agentID, role, level, wait, deadline)
		if err != nil {
			httpx.WriteError(c, err)
			return
		}
		c.JSON(http.StatusOK, t)
	}
}

func lockTask(svc *dispatchersvc.Service) gin.HandlerFunc {
	return func(c *gin.Context) {
		projectID, ok := httpx.RequireProjectID(c)
		if !ok {
			return
		}
		agentID := httpx.RequesterAgentID(c)
		if agentID == "" {
			httpx.WriteError(c, httpx.ErrMissingAgentID())
			return
		}

		role := domainagent.Role(c.Query("role"))
		level := domainagent.Level(c.Query("level"))

		t, err := svc.Lock(c.Request.Context(), projectID, c.Param("id"), agentID, role, level)
		if err != nil {
			httpx.WriteError(c, err)
			return
		}
		c.JSON(http.StatusOK, t)
	}
}

type updateStatusReq struct {
	Status   domaintask.Status `json:"status" binding:"required"`
	Note     *string           `json:"note"`
	Override bool              `json:"override"`
}

func updateStatus(svc *lifecyclesvc.Service) gin.HandlerFunc {
	return func(c *gin.Context) {
		projectID, ok := httpx.RequireProjectID(c)
		if !ok {
			return
		}
		agentID := httpx.RequesterAgentID(c)
		if agentID == "" {
			httpx.WriteError(c, httpx.ErrMissingAgentID())
			return
		}
		actorRole := domainagent.Role(c.GetHeader("X-Agent-Role"))

		var req updateStatusReq
		if err := c.ShouldBindJSON(&req); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
			return
		}

		t, err := svc.Transition(c.Request.Context(), projectID, c.Param("id"), agentID, actorRole, req.Status, req.Note, req.Override)
		if err != nil {
			httpx.WriteError(c, err)
			return
		}
		c.JSON(http.StatusOK, t)
	}
}

type evaluateReq struct {
	Approve bool    `json:"approve"`
	Note    *string `json:"note"`
}

func evaluateTask(svc *lifecyclesvc.Service) gin.HandlerFunc {
	return func(c *gin.Context) {
		projectID, ok := httpx.RequireProjectID(c)
		if !ok {
			return
		}
		agentID := httpx.RequesterAgentID(c)
		if agentID == "" {
			httpx.WriteError(c, httpx.ErrMissingAgentID())
			return
		}
		actorRole := domainagent.Role(c.GetHeader("X-Agent-Role"))

		var req evaluateReq
		if err := c.ShouldBindJSON(&req); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
			return
		}

		t, err := svc.Evaluate(c.Request.Context(), projectID, c.Param("id"), agentID, actorRole, req.Approve, req.Note)
		if err != nil {
			httpx.WriteError(c, err)
			return
		}
		c.JSON(http.StatusOK, t)
	}
}

type postCommentReq struct {
	Body string `json:"body" binding:"required"`
}

func postComment(svc *commentsvc.Service) gin.HandlerFunc {
	return func(c *gin.Context) {
		projectID, ok := httpx.RequireProjectID(c)
		if !ok {
			return
		}
		agentID := httpx.RequesterAgentID(c)
		if agentID == "" {
			httpx.WriteError(c, httpx.ErrMissingAgentID())
			return
		}

		var req postCommentReq
		if err := c.ShouldBindJSON(&req); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
			return
		}

		comment, err := svc.Create(c.Request.Context(), projectID, c.Param("id"), agentID, req.Body)
		if err != nil {
			httpx.WriteError(c, err)
			return
		}
		c.JSON(http.StatusCreated, comment)
	}
}

func listComments(svc *commentsvc.Service) gin.HandlerFunc {
	return func(c *gin.Context) {
		comments, err := svc.ListByTask(c.Request.Context(), c.Param("id"))
		if err != nil {
			httpx.WriteError(c, err)
			return
		}
		c.JSON(http.StatusOK, comments)
	}
}

