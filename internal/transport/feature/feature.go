// Package feature exposes feature creation and listing.
package feature

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/agentfleet/coordinator/internal/transport/httpx"

	domainfeature "github.com/agentfleet/coordinator/internal/domain/feature"
	featuresvc "github.com/agentfleet/coordinator/internal/service/feature"
)

func Register(rg *gin.RouterGroup, svc *featuresvc.Service) {
	rg.POST("", createFeature(svc))
	rg.GET("", listFeatures(svc))
	rg.GET("/:id", getFeature(svc))
}

type createFeatureReq struct {
	EpicID      string `json:"epic_id" binding:"required"`
	Name        string `json:"name" binding:"required"`
	Description string `json:"description"`
}

func createFeature(svc *featuresvc.Service) gin.HandlerFunc {
	return func(c *gin.Context) {
		var req createFeatureReq
		if err := c.ShouldBindJSON(&req); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
			return
		}

		f, err := svc.Create(c.Request.Context(), req.EpicID, req.Name, req.Description)
		if err != nil {
			httpx.WriteError(c, err)
			return
		}
		c.JSON(http.StatusCreated, f)
	}
}

func listFeatures(svc *featuresvc.Service) gin.HandlerFunc {
	return func(c *gin.Context) {
		var filters domainfeature.ListFilters
		if v := c.Query("epic_id"); v != "" {
			filters.EpicID = &v
		}

		features, err := svc.List(c.Request.Context(), filters)
		if err != nil {
			httpx.WriteError(c, err)
			return
		}
		if features == nil {
			features = []domainfeature.Feature{}
		}
		c.JSON(http.StatusOK, features)
	}
}

func getFeature(svc *featuresvc.Service) gin.HandlerFunc {
	return func(c *gin.Context) {
		f, err := svc.GetByID(c.Request.Context(), c.Param("id"))
		if err != nil {
			httpx.WriteError(c, err)
			return
		}
		c.JSON(http.StatusOK, f)
	}
}
