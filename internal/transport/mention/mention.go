// Package mention exposes an agent's @handle mention inbox.
package mention

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/agentfleet/coordinator/internal/transport/httpx"

	domainmention "github.com/agentfleet/coordinator/internal/domain/mention"
	notifiersvc "github.com/agentfleet/coordinator/internal/service/notifier"
)

func Register(rg *gin.RouterGroup, svc *notifiersvc.Service) {
	rg.GET("", listMentions(svc))
	rg.POST("/:id/read", markRead(svc))
}

func listMentions(svc *notifiersvc.Service) gin.HandlerFunc {
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
		unreadOnly := c.Query("unread") == "true" || c.Query("unread") == "1"

		mentions, err := svc.ListForAgent(c.Request.Context(), projectID, agentID, unreadOnly)
		if err != nil {
			httpx.WriteError(c, err)
			return
		}
		if mentions == nil {
			mentions = []domainmention.Mention{}
		}
		c.JSON(http.StatusOK, mentions)
	}
}

func markRead(svc *notifiersvc.Service) gin.HandlerFunc {
	return func(c *gin.Context) {
		projectID, ok := httpx.RequireProjectID(c)
		if !ok {
			return
		}
		if err := svc.MarkRead(c.Request.Context(), projectID, c.Param("id")); err != nil {
			httpx.WriteError(c, err)
			return
		}
		c.Status(http.StatusNoContent)
	}
}
