package pg

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/dmitrymomot/boundary/pkg/migration"
)

var _ migration.RunStore = (*RunStore)(nil)

const runColumns = `id, tenant_id, version, name, direction, state, baseline, started_at, finished_at, error`

// RunStore keeps tenant migration history. A partial unique index rejects a
// second open run for the same tenant and version.
type RunStore struct {
	pool *pgxpool.Pool
}

func NewRunStore(pool *pgxpool.Pool) *RunStore {
	return &RunStore{pool: pool}
}

func (s *RunStore) Create(ctx context.Context, run *migration.Run) error {
	if run.ID == uuid.Nil {
		run.ID = uuid.New()
	}
	_, err := s.pool.Exec(ctx,
		`INSERT INTO tenant_migration_runs (`+runColumns+`)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)`,
		run.ID, run.TenantID, run.Version, run.Name, string(run.Direction), string(run.State),
		run.Baseline, run.StartedAt, run.FinishedAt, run.Error,
	)
	if IsDuplicateKeyError(err) {
		return migration.ErrRunInProgress
	}
	if err != nil {
		return fmt.Errorf("runStore.Create: %w", err)
	}
	return nil
}

// Update only touches open runs. Terminal rows are never rewritten.
func (s *RunStore) Update(ctx context.Context, run *migration.Run) error {
	tag, err := s.pool.Exec(ctx,
		`UPDATE tenant_migration_runs
		 SET state = $2, started_at = $3, finished_at = $4, error = $5
		 WHERE id = $1 AND state IN ('pending', 'running')`,
		run.ID, string(run.State), run.StartedAt, run.FinishedAt, run.Error,
	)
	if err != nil {
		return fmt.Errorf("runStore.Update: %w", err)
	}
	if tag.RowsAffected() == 1 {
		return nil
	}

	var exists bool
	if err := s.pool.QueryRow(ctx,
		`SELECT EXISTS (SELECT 1 FROM tenant_migration_runs WHERE id = $1)`, run.ID,
	).Scan(&exists); err != nil {
		return fmt.Errorf("runStore.Update: %w", err)
	}
	if !exists {
		return migration.ErrRunNotFound
	}
	return migration.ErrRunFinalized
}

func (s *RunStore) ListByTenant(ctx context.Context, tenantID uuid.UUID) ([]*migration.Run, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT `+runColumns+` FROM tenant_migration_runs WHERE tenant_id = $1 ORDER BY seq`, tenantID)
	if err != nil {
		return nil, fmt.Errorf("runStore.ListByTenant: %w", err)
	}

	out, err := pgx.CollectRows(rows, scanRun)
	if err != nil {
		return nil, fmt.Errorf("runStore.ListByTenant: %w", err)
	}
	return out, nil
}

// FailOpen closes runs left pending or running by a process that could not
// record their outcome.
func (s *RunStore) FailOpen(ctx context.Context, tenantID uuid.UUID, version int64, reason string, at time.Time) ([]*migration.Run, error) {
	rows, err := s.pool.Query(ctx,
		`UPDATE tenant_migration_runs
		 SET state = 'failed', finished_at = $4, error = $3
		 WHERE tenant_id = $1 AND version = $2 AND state IN ('pending', 'running')
		 RETURNING `+runColumns,
		tenantID, version, reason, at)
	if err != nil {
		return nil, fmt.Errorf("runStore.FailOpen: %w", err)
	}

	out, err := pgx.CollectRows(rows, scanRun)
	if err != nil {
		return nil, fmt.Errorf("runStore.FailOpen: %w", err)
	}
	return out, nil
}

func scanRun(row pgx.CollectableRow) (*migration.Run, error) {
	var (
		r          migration.Run
		dir, state string
	)
	if err := row.Scan(&r.ID, &r.TenantID, &r.Version, &r.Name, &dir, &state,
		&r.Baseline, &r.StartedAt, &r.FinishedAt, &r.Error); err != nil {
		return nil, err
	}
	r.Direction = migration.Direction(dir)
	r.State = migration.State(state)
	return &r, nil
}
