// Package svcregistry exposes registration, heartbeat, and directory
// listing for project services, with list responses carrying the
// liveness-classified (staleness-overridden) status rather than the raw
// last-persisted one.
package svcregistry

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/agentfleet/coordinator/internal/transport/httpx"

	domainsvc "github.com/agentfleet/coordinator/internal/domain/svcregistry"
	livenesssvc "github.com/agentfleet/coordinator/internal/service/liveness"
	svcregistrysvc "github.com/agentfleet/coordinator/internal/service/svcregistry"
)

type Services struct {
	Registry *svcregistrysvc.Service
	Liveness *livenesssvc.Service
}

func Register(rg *gin.RouterGroup, svc Services) {
	rg.POST("/register", registerService(svc.Registry))
	rg.POST("/:name/heartbeat", heartbeat(svc.Registry))
	rg.GET("", listServices(svc.Liveness))
	rg.DELETE("/:name", deleteService(svc.Registry))
}

type registerServiceReq struct {
	Name         string         `json:"name" binding:"required"`
	OwnerAgentID string         `json:"owner_agent_id" binding:"required"`
	Port         int            `json:"port"`
	PingURL      *string        `json:"ping_url"`
	Meta         map[string]any `json:"meta"`
}

func registerService(svc *svcregistrysvc.Service) gin.HandlerFunc {
	return func(c *gin.Context) {
		projectID, ok := httpx.RequireProjectID(c)
		if !ok {
			return
		}

		var req registerServiceReq
		if err := c.ShouldBindJSON(&req); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
			return
		}

		s, err := svc.Register(c.Request.Context(), projectID, req.Name, req.OwnerAgentID, req.Port, req.PingURL, req.Meta)
		if err != nil {
			httpx.WriteError(c, err)
			return
		}
		c.JSON(http.StatusOK, s)
	}
}

type heartbeatReq struct {
	Status domainsvc.Status `json:"status" binding:"required"`
}

func heartbeat(svc *svcregistrysvc.Service) gin.HandlerFunc {
	return func(c *gin.Context) {
		projectID, ok := httpx.RequireProjectID(c)
		if !ok {
			return
		}

		var req heartbeatReq
		if err := c.ShouldBindJSON(&req); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
			return
		}

		if err := svc.Heartbeat(c.Request.Context(), projectID, c.Param("name"), req.Status); err != nil {
			httpx.WriteError(c, err)
			return
		}
		c.Status(http.StatusNoContent)
	}
}

func listServices(liveness *livenesssvc.Service) gin.HandlerFunc {
	return func(c *gin.Context) {
		projectID, ok := httpx.RequireProjectID(c)
		if !ok {
			return
		}
		services, err := liveness.ListServicesWithLiveness(c.Request.Context(), projectID)
		if err != nil {
			httpx.WriteError(c, err)
			return
		}
		if services == nil {
			services = []domainsvc.Service{}
		}
		c.JSON(http.StatusOK, services)
	}
}

func deleteService(svc *svcregistrysvc.Service) gin.HandlerFunc {
	return func(c *gin.Context) {
		projectID, ok := httpx.RequireProjectID(c)
		if !ok {
			return
		}
		if err := svc.Delete(c.Request.Context(), projectID, c.Param("name")); err != nil {
			httpx.WriteError(c, err)
			return
		}
		c.Status(http.StatusNoContent)
	}
}
