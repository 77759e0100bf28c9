// Package project defines the Project entity, the root of all scoping.
package project

import (
	"time"

	"github.com/google/uuid"
)

// Paths are the on-disk locations a project's agents and tooling read from.
// Guidelines is optional; the others are expected to exist for a working project.
type Paths struct {
	Shared       string `json:"shared"`
	Instructions string `json:"instructions"`
	Docs         string `json:"docs"`
	Guidelines   string `json:"guidelines,omitempty"`
}

// Repo describes the git repository a project's tasks branch from.
type Repo struct {
	URL        string  `json:"url"`
	MainBranch string  `json:"main_branch"`
	ClonePath  *string `json:"clone_path,omitempty"`
}

// Project is the root of all scoping: every other entity carries a
// ProjectID that traces back here. IDs are plain strings throughout the
// domain layer (agents, tasks, documents...); Project is no exception even
// though uuid.New() is what mints them.
type Project struct {
	ID        string     `json:"id"`
	Name      string     `json:"name"`
	Paths     Paths      `json:"paths"`
	Repo      Repo       `json:"repo"`
	CreatedAt time.Time  `json:"created_at"`
	DeletedAt *time.Time `json:"deleted_at,omitempty"`
}

func New(name string, paths Paths, repo Repo) Project {
	return Project{
		ID:        uuid.New().String(),
		Name:      name,
		Paths:     paths,
		Repo:      repo,
		CreatedAt: time.Now().UTC(),
	}
}

// IsDeleted reports whether this project has been soft-deleted.
func (p Project) IsDeleted() bool { return p.DeletedAt != nil }
