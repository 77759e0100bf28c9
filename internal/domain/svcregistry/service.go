// Package svcregistry defines the Service entity: a registered project
// service (e.g. a dev server) tracked via heartbeat liveness. Named
// svcregistry, not service, to keep it distinct from the internal/service
// layer packages that implement application logic.
package svcregistry

import "time"

// Status is the service's last reported state. Liveness classification
// (whether a stale "up" should be read as "down") is a pure function of
// LastHeartbeat, computed by the liveness service, not stored here.
type Status string

const (
	StatusUp       Status = "up"
	StatusDown     Status = "down"
	StatusStarting Status = "starting"
)

type Service struct {
	Name          string         `json:"name"`
	ProjectID     string         `json:"project_id"`
	OwnerAgentID  string         `json:"owner_agent_id"`
	Port          int            `json:"port"`
	Status        Status         `json:"status"`
	PingURL       *string        `json:"ping_url,omitempty"`
	Meta          map[string]any `json:"meta,omitempty"`
	LastHeartbeat time.Time      `json:"last_heartbeat"`
	CreatedAt     time.Time      `json:"created_at"`
}

func New(projectID, name, ownerAgentID string, port int, pingURL *string, meta map[string]any) Service {
	now := time.Now().UTC()
	return Service{
		Name:          name,
		ProjectID:     projectID,
		OwnerAgentID:  ownerAgentID,
		Port:          port,
		Status:        StatusStarting,
		PingURL:       pingURL,
		Meta:          meta,
		LastHeartbeat: now,
		CreatedAt:     now,
	}
}

// StaleAfter reports whether this service's last heartbeat is stale given
// the configured threshold, i.e. should be reported as down regardless of
// the last-persisted status.
func (s Service) StaleAfter(threshold time.Duration, now time.Time) bool {
	return now.Sub(s.LastHeartbeat) > threshold
}
