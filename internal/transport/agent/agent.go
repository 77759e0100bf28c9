// Package agent exposes agent registration, directory listing, and
// PM-gated removal.
package agent

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/agentfleet/coordinator/internal/transport/httpx"

	domainagent "github.com/agentfleet/coordinator/internal/domain/agent"
	agentsvc "github.com/agentfleet/coordinator/internal/service/agent"
)

func Register(rg *gin.RouterGroup, svc *agentsvc.Service) {
	rg.POST("/register", registerAgent(svc))
	rg.GET("", listAgents(svc))
	rg.GET("/:agent_id", getAgent(svc))
	rg.DELETE("/:agent_id", deleteAgent(svc))
}

type registerAgentReq struct {
	AgentID        string                     `json:"agent_id" binding:"required"`
	Role           domainagent.Role           `json:"role" binding:"required"`
	Level          domainagent.Level          `json:"level" binding:"required"`
	ConnectionType domainagent.ConnectionType `json:"connection_type" binding:"required"`
}

func registerAgent(svc *agentsvc.Service) gin.HandlerFunc {
	return func(c *gin.Context) {
		projectID, ok := httpx.RequireProjectID(c)
		if !ok {
			return
		}

		var req registerAgentReq
		if err := c.ShouldBindJSON(&req); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
			return
		}

		a, err := svc.Register(c.Request.Context(), projectID, req.AgentID, req.Role, req.Level, req.ConnectionType)
		if err != nil {
			httpx.WriteError(c, err)
			return
		}
		c.JSON(http.StatusOK, a)
	}
}

func listAgents(svc *agentsvc.Service) gin.HandlerFunc {
	return func(c *gin.Context) {
		var filters domainagent.ListFilters
		if v := httpx.ProjectID(c); v != "" {
			filters.ProjectID = &v
		}
		if v := c.Query("role"); v != "" {
			r := domainagent.Role(v)
			filters.Role = &r
		}
		if v := c.Query("agent_id"); v != "" {
			filters.AgentID = &v
		}

		agents, err := svc.List(c.Request.Context(), filters)
		if err != nil {
			httpx.WriteError(c, err)
			return
		}
		if agents == nil {
			agents = []domainagent.Agent{}
		}
		c.JSON(http.StatusOK, agents)
	}
}

func getAgent(svc *agentsvc.Service) gin.HandlerFunc {
	return func(c *gin.Context) {
		projectID, ok := httpx.RequireProjectID(c)
		if !ok {
			return
		}
		a, err := svc.GetByID(c.Request.Context(), projectID, c.Param("agent_id"))
		if err != nil {
			httpx.WriteError(c, err)
			return
		}
		c.JSON(http.StatusOK, a)
	}
}

// deleteAgent requires the caller to assert PM authority via X-Agent-Role;
// the service layer re-checks this, the header is not trusted on its own
// merit once API-key auth and the role claim both gate the request.
func deleteAgent(svc *agentsvc.Service) gin.HandlerFunc {
	return func(c *gin.Context) {
		projectID, ok := httpx.RequireProjectID(c)
		if !ok {
			return
		}
		actorRole := domainagent.Role(c.GetHeader("X-Agent-Role"))

		if err := svc.Delete(c.Request.Context(), projectID, c.Param("agent_id"), actorRole); err != nil {
			httpx.WriteError(c, err)
			return
		}
		c.Status(http.StatusNoContent)
	}
}
