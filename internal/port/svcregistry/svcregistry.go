package svcregistry

import (
	"context"

	domainsvc "github.com/agentfleet/coordinator/internal/domain/svcregistry"
)

// Repository manages registered-service persistence, keyed by
// (ProjectID, Name).
type Repository interface {
	Register(ctx context.Context, s domainsvc.Service) (domainsvc.Service, error)
	GetByName(ctx context.Context, projectID, name string) (domainsvc.Service, error)
	List(ctx context.Context, projectID string) ([]domainsvc.Service, error)
	Heartbeat(ctx context.Context, projectID, name string, status domainsvc.Status) error
	Delete(ctx context.Context, projectID, name string) error
}
