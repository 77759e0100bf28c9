// Package httpx holds small gin-boundary helpers shared by every
// per-entity handler package: apperr-to-status translation and the two
// request-scoped identifiers (requesting agent, project) every route
// needs.
package httpx

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/agentfleet/coordinator/internal/domain/apperr"
)

var statusByKind = map[apperr.Kind]int{
	apperr.KindBadRequest:         http.StatusBadRequest,
	apperr.KindUnauthorized:       http.StatusUnauthorized,
	apperr.KindForbidden:          http.StatusForbidden,
	apperr.KindNotFound:           http.StatusNotFound,
	apperr.KindConflict:           http.StatusConflict,
	apperr.KindUnprocessableState: http.StatusUnprocessableEntity,
	apperr.KindTooManyRequests:    http.StatusTooManyRequests,
	apperr.KindStorageFault:       http.StatusInternalServerError,
}

// WriteError maps err's apperr.Kind to the corresponding HTTP status and
// writes a `{"error": "..."}` body.
func WriteError(c *gin.Context, err error) {
	kind := apperr.KindOf(err)
	status, ok := statusByKind[kind]
	if !ok {
		status = http.StatusInternalServerError
	}
	c.JSON(status, gin.H{"error": apperr.DetailOf(err)})
}

// RequesterAgentID resolves the calling agent's ID: the X-Agent-ID header
// first, falling back to an agent_id query parameter for clients (e.g.
// a browser-based dashboard) that can't set custom headers on every call.
func RequesterAgentID(c *gin.Context) string {
	if id := c.GetHeader("X-Agent-ID"); id != "" {
		return id
	}
	return c.Query("agent_id")
}

// ProjectID resolves the project scope for this request: a project_id
// query parameter first, then a :project_id route parameter.
func ProjectID(c *gin.Context) string {
	if id := c.Query("project_id"); id != "" {
		return id
	}
	return c.Param("project_id")
}

// RequireProjectID resolves the project scope or writes a 400 and
// reports ok=false.
func RequireProjectID(c *gin.Context) (string, bool) {
	id := ProjectID(c)
	if id == "" {
		WriteError(c, apperr.New(apperr.KindBadRequest, "no project selected"))
		return "", false
	}
	return id, true
}

// ErrMissingAgentID is the shared 400 every route that requires a
// resolved requesting agent writes when RequesterAgentID comes back empty.
func ErrMissingAgentID() error {
	return apperr.New(apperr.KindBadRequest, "missing requesting agent id (X-Agent-ID header or agent_id query param)")
}
