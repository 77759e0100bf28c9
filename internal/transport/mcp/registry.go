package mcp

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"

	mcpserver "github.com/mark3labs/mcp-go/server"
)

// sessionEntry tracks a connected agent's identity for a live MCP session.
type sessionEntry struct {
	projectID string
	agentID   string
}

// SessionRegistry is the in-memory map of live MCP sessions to the agent
// each one speaks for, and implements port/notifier.AgentNotifier as a
// best-effort push to that agent's session — only per-agent mentions are
// delivered here, there is no role-broadcast notification.
type SessionRegistry struct {
	mu        sync.RWMutex
	bySession map[string]*sessionEntry
	byAgent   map[string]string // "projectID/agentID" -> sessionID

	mcpMu  sync.RWMutex
	mcpSrv *mcpserver.MCPServer
}

func NewSessionRegistry() *SessionRegistry {
	return &SessionRegistry{
		bySession: make(map[string]*sessionEntry),
		byAgent:   make(map[string]string),
	}
}

// SetMCPServer injects the mcp-go server after construction, breaking the
// init cycle between Server and SessionRegistry.
func (r *SessionRegistry) SetMCPServer(s *mcpserver.MCPServer) {
	r.mcpMu.Lock()
	r.mcpSrv = s
	r.mcpMu.Unlock()
}

// Register maps sessionID to (projectID, agentID), called by the
// agents_register tool handler once it knows which agent this session
// speaks for.
func (r *SessionRegistry) Register(sessionID, projectID, agentID string) {
	r.mu.Lock()
	defer r.mu.Unlock()

	key := agentKey(projectID, agentID)
	if oldSession, ok := r.byAgent[key]; ok {
		delete(r.bySession, oldSession)
	}
	r.bySession[sessionID] = &sessionEntry{projectID: projectID, agentID: agentID}
	r.byAgent[key] = sessionID
}

// Unregister removes a closed session, returning the (projectID, agentID)
// it mapped to, if any.
func (r *SessionRegistry) Unregister(sessionID string) (projectID, agentID string, ok bool) {
	r.mu.Lock()
	defer r.mu.Unlock()

	entry, ok := r.bySession[sessionID]
	if !ok {
		return "", "", false
	}
	delete(r.bySession, sessionID)
	delete(r.byAgent, agentKey(entry.projectID, entry.agentID))
	return entry.projectID, entry.agentID, true
}

// NotifyAgent implements port/notifier.AgentNotifier.
func (r *SessionRegistry) NotifyAgent(_ context.Context, projectID, agentID string, event any) error {
	r.mu.RLock()
	sessionID, ok := r.byAgent[agentKey(projectID, agentID)]
	r.mu.RUnlock()
	if !ok {
		return nil
	}

	r.mcpMu.RLock()
	srv := r.mcpSrv
	r.mcpMu.RUnlock()
	if srv == nil {
		return fmt.Errorf("mcp server not initialized")
	}

	params, err := toParams(event)
	if err != nil {
		return fmt.Errorf("serialize notification: %w", err)
	}
	return srv.SendNotificationToSpecificClient(sessionID, "notifications/message", params)
}

func agentKey(projectID, agentID string) string { return projectID + "/" + agentID }

func toParams(event any) (map[string]any, error) {
	data, err := json.Marshal(event)
	if err != nil {
		return nil, err
	}
	var params map[string]any
	if err := json.Unmarshal(data, &params); err != nil {
		return map[string]any{"data": event}, nil
	}
	return params, nil
}
