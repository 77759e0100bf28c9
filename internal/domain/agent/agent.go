// Package agent defines the Agent entity: a coordinated worker scoped to
// one project, holding a role and skill level.
package agent

import "time"

// Role is a closed enumeration of agent responsibilities. Authority for
// lifecycle transitions is table-driven against this type (see the
// lifecycle package), never by runtime string comparison scattered
// through the codebase.
type Role string

const (
	RoleFrontendDev Role = "frontend_dev"
	RoleBackendDev  Role = "backend_dev"
	RoleQA          Role = "qa"
	RoleArchitect   Role = "architect"
	RoleProjectPM   Role = "project_pm"
	RoleGlobalPM    Role = "global_pm"
	RoleUIAdmin     Role = "ui_admin"
)

// IsPM reports whether this role carries PM authority. project_pm and
// global_pm carry identical transition authority, differing only in
// cross-project task-creation visibility.
func (r Role) IsPM() bool { return r == RoleProjectPM || r == RoleGlobalPM }

// Level is a closed skill-level enumeration with a total order used for
// difficulty matching (difficulty <= level).
type Level string

const (
	LevelJunior    Level = "junior"
	LevelSenior    Level = "senior"
	LevelPrincipal Level = "principal"
)

var levelRank = map[Level]int{
	LevelJunior:    0,
	LevelSenior:    1,
	LevelPrincipal: 2,
}

// Rank returns the ordinal rank of a level, junior lowest. Unknown levels
// rank below junior so malformed data never incorrectly satisfies a
// difficulty check.
func (l Level) Rank() int {
	if r, ok := levelRank[l]; ok {
		return r
	}
	return -1
}

// Meets reports whether this level is at least as capable as required,
// i.e. whether an agent at this level may take on work of the required
// difficulty (principal >= senior >= junior).
func (l Level) Meets(required Level) bool { return l.Rank() >= required.Rank() }

// ConnectionType distinguishes a human/CLI client from an MCP-connected
// LLM agent process; it does not affect dispatch eligibility.
type ConnectionType string

const (
	ConnectionClient ConnectionType = "client"
	ConnectionMCP    ConnectionType = "mcp"
)

type Agent struct {
	AgentID        string         `json:"agent_id"`
	ProjectID      string         `json:"project_id"`
	Role           Role           `json:"role"`
	Level          Level          `json:"level"`
	ConnectionType ConnectionType `json:"connection_type"`
	LastSeen       time.Time      `json:"last_seen"`
	CurrentTaskID  *string        `json:"current_task_id,omitempty"`
	CreatedAt      time.Time      `json:"created_at"`
}

func New(projectID, agentID string, role Role, level Level, conn ConnectionType) Agent {
	now := time.Now().UTC()
	return Agent{
		AgentID:        agentID,
		ProjectID:      projectID,
		Role:           role,
		Level:          level,
		ConnectionType: conn,
		LastSeen:       now,
		CreatedAt:      now,
	}
}

// Touch refreshes LastSeen, as every authenticated request should.
func (a *Agent) Touch() { a.LastSeen = time.Now().UTC() }

// HoldsTask reports whether the agent currently has an active task lock.
func (a Agent) HoldsTask() bool { return a.CurrentTaskID != nil }

// ListFilters narrows an agent listing.
type ListFilters struct {
	ProjectID *string
	Role      *Role
	AgentID   *string
}
