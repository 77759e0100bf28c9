package sqlstore

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/agentfleet/coordinator/internal/domain/apperr"
	"github.com/agentfleet/coordinator/internal/domain/svcregistry"
)

// ServiceRepository implements port/svcregistry.Repository over database/sql.
type ServiceRepository struct {
	store *Store
}

func NewServiceRepository(s *Store) *ServiceRepository { return &ServiceRepository{store: s} }

func (r *ServiceRepository) Register(ctx context.Context, s svcregistry.Service) (svcregistry.Service, error) {
	meta, err := json.Marshal(s.Meta)
	if err != nil {
		return svcregistry.Service{}, fmt.Errorf("marshaling service meta: %w", err)
	}
	res, err := r.store.DB().ExecContext(ctx, `
		UPDATE services SET owner_agent_id = ?, port = ?, status = ?, ping_url = ?, meta = ?, last_heartbeat = ?
		WHERE project_id = ? AND name = ?`,
		s.OwnerAgentID, s.Port, string(s.Status), s.PingURL, string(meta), s.LastHeartbeat, s.ProjectID, s.Name,
	)
	if err != nil {
		return svcregistry.Service{}, fmt.Errorf("registering service: %w", err)
	}
	if n, _ := res.RowsAffected(); n > 0 {
		return s, nil
	}
	_, err = r.store.DB().ExecContext(ctx, `
		INSERT INTO services (project_id, name, owner_agent_id, port, status, ping_url, meta, last_heartbeat, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		s.ProjectID, s.Name, s.OwnerAgentID, s.Port, string(s.Status), s.PingURL, string(meta), s.LastHeartbeat, s.CreatedAt,
	)
	if err != nil {
		return svcregistry.Service{}, fmt.Errorf("registering service: %w", err)
	}
	return s, nil
}

func (r *ServiceRepository) GetByName(ctx context.Context, projectID, name string) (svcregistry.Service, error) {
	row := r.store.DB().QueryRowContext(ctx, serviceSelect+" WHERE project_id = ? AND name = ?", projectID, name)
	s, err := scanService(row)
	if errors.Is(err, sql.ErrNoRows) {
		return svcregistry.Service{}, apperr.ErrNotFound
	}
	return s, err
}

func (r *ServiceRepository) List(ctx context.Context, projectID string) ([]svcregistry.Service, error) {
	rows, err := r.store.DB().QueryContext(ctx, serviceSelect+" WHERE project_id = ? ORDER BY created_at ASC", projectID)
	if err != nil {
		return nil, fmt.Errorf("listing services: %w", err)
	}
	defer rows.Close()

	var out []svcregistry.Service
	for rows.Next() {
		s, err := scanServiceRows(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, s)
	}
	return out, rows.Err()
}

func (r *ServiceRepository) Heartbeat(ctx context.Context, projectID, name string, status svcregistry.Status) error {
	res, err := r.store.DB().ExecContext(ctx, `UPDATE services SET status = ?, last_heartbeat = ? WHERE project_id = ? AND name = ?`,
		string(status), time.Now().UTC(), projectID, name)
	if err != nil {
		return fmt.Errorf("recording service heartbeat: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return apperr.ErrNotFound
	}
	return nil
}

func (r *ServiceRepository) Delete(ctx context.Context, projectID, name string) error {
	_, err := r.store.DB().ExecContext(ctx, `DELETE FROM services WHERE project_id = ? AND name = ?`, projectID, name)
	if err != nil {
		return fmt.Errorf("deleting service: %w", err)
	}
	return nil
}

const serviceSelect = `SELECT project_id, name, owner_agent_id, port, status, ping_url, meta, last_heartbeat, created_at FROM services`

func scanService(row *sql.Row) (svcregistry.Service, error)      { return scanServiceScanner(row) }
func scanServiceRows(rows *sql.Rows) (svcregistry.Service, error) { return scanServiceScanner(rows) }

func scanServiceScanner(sc rowScanner) (svcregistry.Service, error) {
	var s svcregistry.Service
	var status string
	var pingURL sql.NullString
	var meta string
	err := sc.Scan(&s.ProjectID, &s.Name, &s.OwnerAgentID, &s.Port, &status, &pingURL, &meta, &s.LastHeartbeat, &s.CreatedAt)
	if err != nil {
		return svcregistry.Service{}, fmt.Errorf("scanning service: %w", err)
	}
	s.Status = svcregistry.Status(status)
	if pingURL.Valid {
		s.PingURL = &pingURL.String
	}
	if meta != "" {
		if err := json.Unmarshal([]byte(meta), &s.Meta); err != nil {
			return svcregistry.Service{}, fmt.Errorf("unmarshaling service meta: %w", err)
		}
	}
	return s, nil
}
