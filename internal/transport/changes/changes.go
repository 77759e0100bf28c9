// Package changes exposes the §4.6 aggregated change feed, with an
// optional long-poll wait identical in shape to the dispatcher's
// /tasks/next route.
package changes

import (
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/agentfleet/coordinator/internal/transport/httpx"

	domainagent "github.com/agentfleet/coordinator/internal/domain/agent"
	changessvc "github.com/agentfleet/coordinator/internal/service/changes"
)

func Register(rg *gin.RouterGroup, svc *changessvc.Service) {
	rg.GET("", since(svc))
}

// since implements GET /changes?since_ts=&since_seq=&wait=&timeout_seconds=.
// The viewer's PM authority (X-Agent-Role) widens mention visibility to
// every mention in the project rather than just their own.
func since(svc *changessvc.Service) gin.HandlerFunc {
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
		viewerIsPM := domainagent.Role(c.GetHeader("X-Agent-Role")).IsPM()

		sinceTS := time.Unix(0, 0).UTC()
		if v := c.Query("since_ts"); v != "" {
			if parsed, err := time.Parse(time.RFC3339Nano, v); err == nil {
				sinceTS = parsed
			}
		}
		var sinceSeq int64
		if v := c.Query("since_seq"); v != "" {
			if n, err := strconv.ParseInt(v, 10, 64); err == nil {
				sinceSeq = n
			}
		}

		wait := c.Query("wait") == "true" || c.Query("wait") == "1"
		// Without timeout_seconds the wait lasts 180 s, the dispatcher's
		// default.
		deadline := 180 * time.Second
		if v := c.Query("timeout_seconds"); v != "" {
			if n, err := strconv.Atoi(v); err == nil && n > 0 {
				deadline = time.Duration(n) * time.Second
			}
		}

		var (
			snap changessvc.Snapshot
			err  error
		)
		if wait {
			snap, err = svc.Wait(c.Request.Context(), projectID, sinceTS, sinceSeq, agentID, viewerIsPM, deadline)
		} else {
			snap, err = svc.Since(c.Request.Context(), projectID, sinceTS, sinceSeq, agentID, viewerIsPM)
		}
		if err != nil {
			httpx.WriteError(c, err)
			return
		}
		c.JSON(http.StatusOK, snap)
	}
}
