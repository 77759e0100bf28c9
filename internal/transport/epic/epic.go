// Package epic exposes epic creation and listing.
package epic

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/agentfleet/coordinator/internal/transport/httpx"

	domainepic "github.com/agentfleet/coordinator/internal/domain/epic"
	epicsvc "github.com/agentfleet/coordinator/internal/service/epic"
)

func Register(rg *gin.RouterGroup, svc *epicsvc.Service) {
	rg.POST("", createEpic(svc))
	rg.GET("", listEpics(svc))
	rg.GET("/:id", getEpic(svc))
}

type createEpicReq struct {
	Name           string `json:"name" binding:"required"`
	Description    string `json:"description"`
	CreatedByAgent string `json:"created_by_agent" binding:"required"`
}

func createEpic(svc *epicsvc.Service) gin.HandlerFunc {
	return func(c *gin.Context) {
		projectID, ok := httpx.RequireProjectID(c)
		if !ok {
			return
		}

		var req createEpicReq
		if err := c.ShouldBindJSON(&req); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
			return
		}

		e, err := svc.Create(c.Request.Context(), projectID, req.Name, req.Description, req.CreatedByAgent)
		if err != nil {
			httpx.WriteError(c, err)
			return
		}
		c.JSON(http.StatusCreated, e)
	}
}

func listEpics(svc *epicsvc.Service) gin.HandlerFunc {
	return func(c *gin.Context) {
		var filters domainepic.ListFilters
		if v := httpx.ProjectID(c); v != "" {
			filters.ProjectID = &v
		}

		epics, err := svc.List(c.Request.Context(), filters)
		if err != nil {
			httpx.WriteError(c, err)
			return
		}
		if epics == nil {
			epics = []domainepic.Epic{}
		}
		c.JSON(http.StatusOK, epics)
	}
}

func getEpic(svc *epicsvc.Service) gin.HandlerFunc {
	return func(c *gin.Context) {
		projectID, ok := httpx.RequireProjectID(c)
		if !ok {
			return
		}
		e, err := svc.GetByID(c.Request.Context(), projectID, c.Param("id"))
		if err != nil {
			httpx.WriteError(c, err)
			return
		}
		c.JSON(http.StatusOK, e)
	}
}
