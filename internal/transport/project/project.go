// Package project exposes project registration and the read/context
// routes every agent resolves before doing anything else.
package project

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/agentfleet/coordinator/internal/transport/httpx"

	domainproject "github.com/agentfleet/coordinator/internal/domain/project"
	projectsvc "github.com/agentfleet/coordinator/internal/service/project"
)

func Register(rg *gin.RouterGroup, svc *projectsvc.Service) {
	rg.POST("", createProject(svc))
	rg.GET("", listProjects(svc))
	rg.GET("/:project_id", getProject(svc))
	rg.GET("/:project_id/context", getProjectContext(svc))
	rg.DELETE("/:project_id", deleteProject(svc))
}

type createProjectReq struct {
	Name  string                `json:"name" binding:"required"`
	Paths domainproject.Paths   `json:"paths" binding:"required"`
	Repo  domainproject.Repo    `json:"repo" binding:"required"`
}

func createProject(svc *projectsvc.Service) gin.HandlerFunc {
	return func(c *gin.Context) {
		var req createProjectReq
		if err := c.ShouldBindJSON(&req); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
			return
		}

		p, err := svc.Create(c.Request.Context(), req.Name, req.Paths, req.Repo)
		if err != nil {
			httpx.WriteError(c, err)
			return
		}
		c.JSON(http.StatusCreated, p)
	}
}

func listProjects(svc *projectsvc.Service) gin.HandlerFunc {
	return func(c *gin.Context) {
		projects, err := svc.List(c.Request.Context())
		if err != nil {
			httpx.WriteError(c, err)
			return
		}
		if projects == nil {
			projects = []domainproject.Project{}
		}
		c.JSON(http.StatusOK, projects)
	}
}

func getProject(svc *projectsvc.Service) gin.HandlerFunc {
	return func(c *gin.Context) {
		p, err := svc.GetByID(c.Request.Context(), c.Param("project_id"))
		if err != nil {
			httpx.WriteError(c, err)
			return
		}
		c.JSON(http.StatusOK, p)
	}
}

// getProjectContext returns everything an agent needs on first contact
// with a project: the paths and repo metadata it orients itself with
// before asking the dispatcher for work.
func getProjectContext(svc *projectsvc.Service) gin.HandlerFunc {
	return func(c *gin.Context) {
		p, err := svc.GetByID(c.Request.Context(), c.Param("project_id"))
		if err != nil {
			httpx.WriteError(c, err)
			return
		}
		c.JSON(http.StatusOK, gin.H{
			"project_id": p.ID,
			"name":       p.Name,
			"paths":      p.Paths,
			"repo":       p.Repo,
		})
	}
}

func deleteProject(svc *projectsvc.Service) gin.HandlerFunc {
	return func(c *gin.Context) {
		if err := svc.Delete(c.Request.Context(), c.Param("project_id")); err != nil {
			httpx.WriteError(c, err)
			return
		}
		c.Status(http.StatusNoContent)
	}
}
