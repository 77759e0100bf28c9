package mcp

import (
	"context"
	"encoding/json"
	"fmt"
	"strconv"
	"time"

	mcpmcp "github.com/mark3labs/mcp-go/mcp"
	mcpserver "github.com/mark3labs/mcp-go/server"

	domainagent "github.com/agentfleet/coordinator/internal/domain/agent"
	domaindocument "github.com/agentfleet/coordinator/internal/domain/document"
	domainsvc "github.com/agentfleet/coordinator/internal/domain/svcregistry"
	domaintask "github.com/agentfleet/coordinator/internal/domain/task"

	agentsvc "github.com/agentfleet/coordinator/internal/service/agent"
	changessvc "github.com/agentfleet/coordinator/internal/service/changes"
	commentsvc "github.com/agentfleet/coordinator/internal/service/comment"
	dispatchersvc "github.com/agentfleet/coordinator/internal/service/dispatcher"
	documentsvc "github.com/agentfleet/coordinator/internal/service/document"
	lifecyclesvc "github.com/agentfleet/coordinator/internal/service/lifecycle"
	svcregistrysvc "github.com/agentfleet/coordinator/internal/service/svcregistry"
)

// Services bundles the application services the MCP tool surface calls
// into, one field per tool family — the same split transport/router.go
// uses for its gin route groups.
type Services struct {
	Dispatcher  *dispatchersvc.Service
	Lifecycle   *lifecyclesvc.Service
	Comments    *commentsvc.Service
	Documents   *documentsvc.Service
	Changes     *changessvc.Service
	Agents      *agentsvc.Service
	ServiceReg  *svcregistrysvc.Service
}

// RegisterTools registers every MCP tool an LLM-driven agent process calls
// directly instead of going over HTTP. One tool per dispatcher/lifecycle/
// notifier/changes operation, same tool-per-operation shape as the
// teacher's transport/mcp/tools.go.
func RegisterTools(s *mcpserver.MCPServer, reg *SessionRegistry, svc Services) {
	s.AddTool(mcpmcp.NewTool("tasks_next",
		mcpmcp.WithDescription("Claim the best eligible task for this agent's role and level. With wait=false, returns a not-found error if none is available; with wait=true, long-polls up to timeout_seconds and returns a waiting sentinel task (status=waiting) on timeout."),
		mcpmcp.WithString("project_id", mcpmcp.Required()),
		mcpmcp.WithString("agent_id", mcpmcp.Required()),
		mcpmcp.WithString("role", mcpmcp.Required()),
		mcpmcp.WithString("level", mcpmcp.Required()),
		mcpmcp.WithString("wait", mcpmcp.Description("true to long-poll when nothing is immediately eligible")),
		mcpmcp.WithString("timeout_seconds", mcpmcp.Description("long-poll timeout in seconds")),
	), tasksNextHandler(svc.Dispatcher))

	s.AddTool(mcpmcp.NewTool("tasks_lock",
		mcpmcp.WithDescription("Explicitly claim a specific task by ID, rejected if it is not currently eligible for this agent's role/level."),
		mcpmcp.WithString("project_id", mcpmcp.Required()),
		mcpmcp.WithString("agent_id", mcpmcp.Required()),
		mcpmcp.WithString("task_id", mcpmcp.Required()),
		mcpmcp.WithString("role", mcpmcp.Required()),
		mcpmcp.WithString("level", mcpmcp.Required()),
	), tasksLockHandler(svc.Dispatcher))

	s.AddTool(mcpmcp.NewTool("tasks_status",
		mcpmcp.WithDescription("Advance a task's status. A QA rejection (to=created) requires a note. override=true permits architect/PM to force any edge."),
		mcpmcp.WithString("project_id", mcpmcp.Required()),
		mcpmcp.WithString("agent_id", mcpmcp.Required()),
		mcpmcp.WithString("role", mcpmcp.Required()),
		mcpmcp.WithString("task_id", mcpmcp.Required()),
		mcpmcp.WithString("status", mcpmcp.Required()),
		mcpmcp.WithString("note"),
		mcpmcp.WithString("override", mcpmcp.Description("true to force an edge outside the normal transition table (architect/PM only)")),
	), tasksStatusHandler(svc.Lifecycle))

	s.AddTool(mcpmcp.NewTool("tasks_comment",
		mcpmcp.WithDescription("Post a comment on a task. @handle mentions in the body fan out to each resolvable agent's mention inbox."),
		mcpmcp.WithString("project_id", mcpmcp.Required()),
		mcpmcp.WithString("agent_id", mcpmcp.Required()),
		mcpmcp.WithString("task_id", mcpmcp.Required()),
		mcpmcp.WithString("body", mcpmcp.Required()),
	), tasksCommentHandler(svc.Comments))

	s.AddTool(mcpmcp.NewTool("documents_post",
		mcpmcp.WithDescription("Publish a project document (guideline, instruction, decision record). @handle mentions in the body fan out same as a task comment."),
		mcpmcp.WithString("project_id", mcpmcp.Required()),
		mcpmcp.WithString("agent_id", mcpmcp.Required()),
		mcpmcp.WithString("doc_type", mcpmcp.Required()),
		mcpmcp.WithString("title", mcpmcp.Required()),
		mcpmcp.WithString("body", mcpmcp.Required()),
	), documentsPostHandler(svc.Documents))

	s.AddTool(mcpmcp.NewTool("changes_since",
		mcpmcp.WithDescription("Poll the aggregated change feed since a prior (timestamp, seq) cursor. A project PM sees every mention; any other agent only its own."),
		mcpmcp.WithString("project_id", mcpmcp.Required()),
		mcpmcp.WithString("viewer_agent_id", mcpmcp.Required()),
		mcpmcp.WithString("viewer_is_pm", mcpmcp.Description("true if the viewer is an architect/PM, widening mention visibility to the whole project")),
		mcpmcp.WithString("since_ts", mcpmcp.Description("RFC3339Nano cursor timestamp, omitted for the very first call")),
		mcpmcp.WithString("since_seq", mcpmcp.Description("cursor sequence number paired with since_ts")),
		mcpmcp.WithString("wait", mcpmcp.Description("true to long-poll when nothing has changed")),
		mcpmcp.WithString("timeout_seconds"),
	), changesSinceHandler(svc.Changes))

	s.AddTool(mcpmcp.NewTool("agents_register",
		mcpmcp.WithDescription("Register (or refresh) this agent's connection. Call once on process start, passing the same agent_id on every reconnect."),
		mcpmcp.WithString("project_id", mcpmcp.Required()),
		mcpmcp.WithString("agent_id", mcpmcp.Required()),
		mcpmcp.WithString("role", mcpmcp.Required()),
		mcpmcp.WithString("level", mcpmcp.Required()),
	), agentsRegisterHandler(reg, svc.Agents))

	s.AddTool(mcpmcp.NewTool("services_heartbeat",
		mcpmcp.WithDescription("Report liveness for a project service this agent started (e.g. a dev server), keeping it out of the stale classification."),
		mcpmcp.WithString("project_id", mcpmcp.Required()),
		mcpmcp.WithString("name", mcpmcp.Required()),
		mcpmcp.WithString("status", mcpmcp.Required()),
	), servicesHeartbeatHandler(svc.ServiceReg))
}

func toolResultJSON(v any) (*mcpmcp.CallToolResult, error) {
	data, err := json.Marshal(v)
	if err != nil {
		return mcpmcp.NewToolResultText(fmt.Sprintf("error: marshal result: %s", err)), nil
	}
	return mcpmcp.NewToolResultText(string(data)), nil
}

func toolError(err error) (*mcpmcp.CallToolResult, error) {
	return mcpmcp.NewToolResultText(fmt.Sprintf("error: %s", err)), nil
}

// parseBoolArg and parseIntArg read mcp-go's string-typed tool arguments
// as bool/int64, matching the same "true"/"1" convention the HTTP
// handlers use for their query-string equivalents.
func parseBoolArg(req mcpmcp.CallToolRequest, name string) bool {
	v := mcpmcp.ParseString(req, name, "")
	return v == "true" || v == "1"
}

func parseIntArg(req mcpmcp.CallToolRequest, name string) int64 {
	v := mcpmcp.ParseString(req, name, "")
	if v == "" {
		return 0
	}
	n, err := strconv.ParseInt(v, 10, 64)
	if err != nil {
		return 0
	}
	return n
}

func tasksNextHandler(svc *dispatchersvc.Service) mcpserver.ToolHandlerFunc {
	return func(ctx context.Context, req mcpmcp.CallToolRequest) (*mcpmcp.CallToolResult, error) {
		projectID := mcpmcp.ParseString(req, "project_id", "")
		agentID := mcpmcp.ParseString(req, "agent_id", "")
		role := domainagent.Role(mcpmcp.ParseString(req, "role", ""))
		level := domainagent.Level(mcpmcp.ParseString(req, "level", ""))
		wait := parseBoolArg(req, "wait")
		var deadline time.Duration
		if secs := parseIntArg(req, "timeout_seconds"); secs > 0 {
			deadline = time.Duration(secs) * time.Second
		}

		t, err := svc.NextTask(ctx, projectID, agentID, role, level, wait, deadline)
		if err != nil {
			return toolError(err)
		}
		return toolResultJSON(t)
	}
}

func tasksLockHandler(svc *dispatchersvc.Service) mcpserver.ToolHandlerFunc {
	return func(ctx context.Context, req mcpmcp.CallToolRequest) (*mcpmcp.CallToolResult, error) {
		projectID := mcpmcp.ParseString(req, "project_id", "")
		agentID := mcpmcp.ParseString(req, "agent_id", "")
		taskID := mcpmcp.ParseString(req, "task_id", "")
		role := domainagent.Role(mcpmcp.ParseString(req, "role", ""))
		level := domainagent.Level(mcpmcp.ParseString(req, "level", ""))

		t, err := svc.Lock(ctx, projectID, taskID, agentID, role, level)
		if err != nil {
			return toolError(err)
		}
		return toolResultJSON(t)
	}
}

func tasksStatusHandler(svc *lifecyclesvc.Service) mcpserver.ToolHandlerFunc {
	return func(ctx context.Context, req mcpmcp.CallToolRequest) (*mcpmcp.CallToolResult, error) {
		projectID := mcpmcp.ParseString(req, "project_id", "")
		agentID := mcpmcp.ParseString(req, "agent_id", "")
		role := domainagent.Role(mcpmcp.ParseString(req, "role", ""))
		taskID := mcpmcp.ParseString(req, "task_id", "")
		status := domaintask.Status(mcpmcp.ParseString(req, "status", ""))
		override := parseBoolArg(req, "override")

		var note *string
		if n := mcpmcp.ParseString(req, "note", ""); n != "" {
			note = &n
		}

		t, err := svc.Transition(ctx, projectID, taskID, agentID, role, status, note, override)
		if err != nil {
			return toolError(err)
		}
		return toolResultJSON(t)
	}
}

func tasksCommentHandler(svc *commentsvc.Service) mcpserver.ToolHandlerFunc {
	return func(ctx context.Context, req mcpmcp.CallToolRequest) (*mcpmcp.CallToolResult, error) {
		projectID := mcpmcp.ParseString(req, "project_id", "")
		agentID := mcpmcp.ParseString(req, "agent_id", "")
		taskID := mcpmcp.ParseString(req, "task_id", "")
		body := mcpmcp.ParseString(req, "body", "")

		c, err := svc.Create(ctx, projectID, taskID, agentID, body)
		if err != nil {
			return toolError(err)
		}
		return toolResultJSON(c)
	}
}

func documentsPostHandler(svc *documentsvc.Service) mcpserver.ToolHandlerFunc {
	return func(ctx context.Context, req mcpmcp.CallToolRequest) (*mcpmcp.CallToolResult, error) {
		projectID := mcpmcp.ParseString(req, "project_id", "")
		agentID := mcpmcp.ParseString(req, "agent_id", "")
		docType := domaindocument.DocType(mcpmcp.ParseString(req, "doc_type", ""))
		title := mcpmcp.ParseString(req, "title", "")
		body := mcpmcp.ParseString(req, "body", "")

		d, err := svc.Create(ctx, projectID, agentID, docType, title, body, nil)
		if err != nil {
			return toolError(err)
		}
		return toolResultJSON(d)
	}
}

func changesSinceHandler(svc *changessvc.Service) mcpserver.ToolHandlerFunc {
	return func(ctx context.Context, req mcpmcp.CallToolRequest) (*mcpmcp.CallToolResult, error) {
		projectID := mcpmcp.ParseString(req, "project_id", "")
		viewerAgentID := mcpmcp.ParseString(req, "viewer_agent_id", "")
		viewerIsPM := parseBoolArg(req, "viewer_is_pm")
		sinceSeq := parseIntArg(req, "since_seq")

		sinceTS := time.Unix(0, 0).UTC()
		if v := mcpmcp.ParseString(req, "since_ts", ""); v != "" {
			if t, err := time.Parse(time.RFC3339Nano, v); err == nil {
				sinceTS = t
			}
		}

		wait := parseBoolArg(req, "wait")
		var snap changessvc.Snapshot
		var err error
		if wait {
			timeout := 30 * time.Second
			if secs := parseIntArg(req, "timeout_seconds"); secs > 0 {
				timeout = time.Duration(secs) * time.Second
			}
			snap, err = svc.Wait(ctx, projectID, sinceTS, sinceSeq, viewerAgentID, viewerIsPM, timeout)
		} else {
			snap, err = svc.Since(ctx, projectID, sinceTS, sinceSeq, viewerAgentID, viewerIsPM)
		}
		if err != nil {
			return toolError(err)
		}
		return toolResultJSON(snap)
	}
}

func agentsRegisterHandler(reg *SessionRegistry, svc *agentsvc.Service) mcpserver.ToolHandlerFunc {
	return func(ctx context.Context, req mcpmcp.CallToolRequest) (*mcpmcp.CallToolResult, error) {
		projectID := mcpmcp.ParseString(req, "project_id", "")
		agentID := mcpmcp.ParseString(req, "agent_id", "")
		role := domainagent.Role(mcpmcp.ParseString(req, "role", ""))
		level := domainagent.Level(mcpmcp.ParseString(req, "level", ""))

		a, err := svc.Register(ctx, projectID, agentID, role, level, domainagent.ConnectionMCP)
		if err != nil {
			return toolError(err)
		}

		if session := mcpserver.ClientSessionFromContext(ctx); session != nil {
			reg.Register(session.SessionID(), projectID, agentID)
		}
		return toolResultJSON(a)
	}
}

func servicesHeartbeatHandler(svc *svcregistrysvc.Service) mcpserver.ToolHandlerFunc {
	return func(ctx context.Context, req mcpmcp.CallToolRequest) (*mcpmcp.CallToolResult, error) {
		projectID := mcpmcp.ParseString(req, "project_id", "")
		name := mcpmcp.ParseString(req, "name", "")
		status := domainsvc.Status(mcpmcp.ParseString(req, "status", ""))

		if err := svc.Heartbeat(ctx, projectID, name, status); err != nil {
			return toolError(err)
		}
		return mcpmcp.NewToolResultText(`{"ok":true}`), nil
	}
}
