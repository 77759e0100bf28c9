// Package ws is the best-effort WebSocket mirror for human dashboards.
// It is never the contract for correctness — the polling /changes
// endpoint is — so every write here is fire-and-forget: a slow or dead
// client drops frames rather than blocking a publisher.
package ws

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"sync"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
)

var upgrader = websocket.Upgrader{
	CheckOrigin: func(r *http.Request) bool { return true },
}

// Hub tracks every connected dashboard socket, broadcast-only, plus an
// optional per-agent registration so NotifyAgent (port/notifier) can reach
// one specific connection instead of every client.
type Hub struct {
	mu      sync.RWMutex
	clients map[*websocket.Conn]bool
	agents  map[string]*websocket.Conn // keyed "projectID/agentID"
}

func NewHub() *Hub {
	return &Hub{
		clients: make(map[*websocket.Conn]bool),
		agents:  make(map[string]*websocket.Conn),
	}
}

func (h *Hub) Register(rg *gin.RouterGroup) {
	rg.GET("", h.handleWS)
}

func (h *Hub) handleWS(c *gin.Context) {
	conn, err := upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		slog.Error("websocket upgrade failed", "error", err)
		return
	}

	h.mu.Lock()
	h.clients[conn] = true
	h.mu.Unlock()

	projectID := c.Query("project_id")
	agentID := c.Query("agent_id")
	if projectID != "" && agentID != "" {
		h.mu.Lock()
		h.agents[agentKey(projectID, agentID)] = conn
		h.mu.Unlock()
	}

	defer func() {
		h.mu.Lock()
		delete(h.clients, conn)
		if projectID != "" && agentID != "" {
			delete(h.agents, agentKey(projectID, agentID))
		}
		h.mu.Unlock()
		conn.Close()
	}()

	for {
		if _, _, err := conn.ReadMessage(); err != nil {
			break
		}
	}
}

// Broadcast sends event to every connected client.
func (h *Hub) Broadcast(event any) {
	data, err := json.Marshal(event)
	if err != nil {
		slog.Error("websocket broadcast marshal failed", "error", err)
		return
	}

	h.mu.RLock()
	defer h.mu.RUnlock()

	for conn := range h.clients {
		if err := conn.WriteMessage(websocket.TextMessage, data); err != nil {
			slog.Error("websocket write failed", "error", err)
		}
	}
}

// NotifyAgent implements port/notifier.AgentNotifier: a best-effort push
// to the one connection registered for (projectID, agentID), silently a
// no-op if that agent has no open dashboard socket.
func (h *Hub) NotifyAgent(_ context.Context, projectID, agentID string, event any) error {
	h.mu.RLock()
	conn, ok := h.agents[agentKey(projectID, agentID)]
	h.mu.RUnlock()
	if !ok {
		return nil
	}
	data, err := json.Marshal(event)
	if err != nil {
		return err
	}
	return conn.WriteMessage(websocket.TextMessage, data)
}

func agentKey(projectID, agentID string) string { return projectID + "/" + agentID }
