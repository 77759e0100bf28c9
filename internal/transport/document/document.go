// Package document exposes document publishing and listing.
package document

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/agentfleet/coordinator/internal/transport/httpx"

	domaindocument "github.com/agentfleet/coordinator/internal/domain/document"
	documentsvc "github.com/agentfleet/coordinator/internal/service/document"
)

func Register(rg *gin.RouterGroup, svc *documentsvc.Service) {
	rg.POST("", createDocument(svc))
	rg.GET("", listDocuments(svc))
	rg.GET("/:id", getDocument(svc))
}

type createDocumentReq struct {
	DocType   domaindocument.DocType `json:"doc_type" binding:"required"`
	Title     string                 `json:"title" binding:"required"`
	Body      string                 `json:"body" binding:"required"`
	ExpiresAt *time.Time             `json:"expires_at"`
}

func createDocument(svc *documentsvc.Service) gin.HandlerFunc {
	return func(c *gin.Context) {
		projectID, ok := httpx.RequireProjectID(c)
		if !ok {
			return
		}
		authorAgentID := httpx.RequesterAgentID(c)
		if authorAgentID == "" {
			httpx.WriteError(c, httpx.ErrMissingAgentID())
			return
		}

		var req createDocumentReq
		if err := c.ShouldBindJSON(&req); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
			return
		}

		d, err := svc.Create(c.Request.Context(), projectID, authorAgentID, req.DocType, req.Title, req.Body, req.ExpiresAt)
		if err != nil {
			httpx.WriteError(c, err)
			return
		}
		c.JSON(http.StatusCreated, d)
	}
}

func listDocuments(svc *documentsvc.Service) gin.HandlerFunc {
	return func(c *gin.Context) {
		var filters domaindocument.ListFilters
		if v := httpx.ProjectID(c); v != "" {
			filters.ProjectID = &v
		}
		if v := c.Query("doc_type"); v != "" {
			dt := domaindocument.DocType(v)
			filters.DocType = &dt
		}
		if v := c.Query("author"); v != "" {
			filters.Author = &v
		}

		docs, err := svc.List(c.Request.Context(), filters)
		if err != nil {
			httpx.WriteError(c, err)
			return
		}
		if docs == nil {
			docs = []domaindocument.Document{}
		}
		c.JSON(http.StatusOK, docs)
	}
}

func getDocument(svc *documentsvc.Service) gin.HandlerFunc {
	return func(c *gin.Context) {
		projectID, ok := httpx.RequireProjectID(c)
		if !ok {
			return
		}
		d, err := svc.GetByID(c.Request.Context(), projectID, c.Param("id"))
		if err != nil {
			httpx.WriteError(c, err)
			return
		}
		c.JSON(http.StatusOK, d)
	}
}
