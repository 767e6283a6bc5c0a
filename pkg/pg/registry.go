package pg

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/dmitrymomot/boundary/pkg/tenant"
)

var _ tenant.Registry = (*Registry)(nil)

const tenantColumns = `id, slug, name, namespace, status, plan, created_at, updated_at, deleted_at`

// Registry stores tenant records in the shared control-plane table.
type Registry struct {
	pool *pgxpool.Pool
}

func NewRegistry(pool *pgxpool.Pool) *Registry {
	return &Registry{pool: pool}
}

func (r *Registry) Create(ctx context.Context, t *tenant.Tenant) error {
	_, err := r.pool.Exec(ctx,
		`INSERT INTO tenants (`+tenantColumns+`)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)`,
		t.ID, t.Slug, t.Name, t.Namespace, string(t.Status), t.Plan, t.CreatedAt, t.UpdatedAt, t.DeletedAt,
	)
	if IsDuplicateKeyError(err) {
		return tenant.ErrSlugTaken
	}
	if err != nil {
		return fmt.Errorf("registry.Create: %w", err)
	}
	return nil
}

func (r *Registry) GetByID(ctx context.Context, id uuid.UUID) (*tenant.Tenant, error) {
	return r.getOne(ctx, "registry.GetByID", `SELECT `+tenantColumns+` FROM tenants WHERE id = $1`, id)
}

func (r *Registry) GetBySlug(ctx context.Context, slug string) (*tenant.Tenant, error) {
	return r.getOne(ctx, "registry.GetBySlug", `SELECT `+tenantColumns+` FROM tenants WHERE slug = $1`, slug)
}

func (r *Registry) List(ctx context.Context, statuses ...tenant.Status) ([]*tenant.Tenant, error) {
	var (
		rows pgx.Rows
		err  error
	)
	if len(statuses) == 0 {
		rows, err = r.pool.Query(ctx, `SELECT `+tenantColumns+` FROM tenants ORDER BY created_at, id`)
	} else {
		names := make([]string, len(statuses))
		for i, s := range statuses {
			names[i] = string(s)
		}
		rows, err = r.pool.Query(ctx,
			`SELECT `+tenantColumns+` FROM tenants WHERE status = ANY($1) ORDER BY created_at, id`, names)
	}
	if err != nil {
		return nil, fmt.Errorf("registry.List: %w", err)
	}

	out, err := pgx.CollectRows(rows, scanTenant)
	if err != nil {
		return nil, fmt.Errorf("registry.List: %w", err)
	}
	return out, nil
}

func (r *Registry) UpdateStatus(ctx context.Context, id uuid.UUID, status tenant.Status, at time.Time) (*tenant.Tenant, error) {
	var deletedAt *time.Time
	if status == tenant.StatusDeleted {
		deletedAt = &at
	}
	return r.getOne(ctx, "registry.UpdateStatus",
		`UPDATE tenants SET status = $2, updated_at = $3, deleted_at = $4
		 WHERE id = $1 RETURNING `+tenantColumns,
		id, string(status), at, deletedAt)
}

// Delete removes the tenant and its migration history in one transaction.
func (r *Registry) Delete(ctx context.Context, id uuid.UUID) error {
	return pgx.BeginFunc(ctx, r.pool, func(tx pgx.Tx) error {
		tag, err := tx.Exec(ctx, `DELETE FROM tenants WHERE id = $1`, id)
		if err != nil {
			return fmt.Errorf("registry.Delete: %w", err)
		}
		if tag.RowsAffected() == 0 {
			return tenant.ErrTenantNotFound
		}
		if _, err := tx.Exec(ctx, `DELETE FROM tenant_migration_runs WHERE tenant_id = $1`, id); err != nil {
			return fmt.Errorf("registry.Delete: history: %w", err)
		}
		return nil
	})
}

func (r *Registry) getOne(ctx context.Context, op, sql string, args ...any) (*tenant.Tenant, error) {
	rows, err := r.pool.Query(ctx, sql, args...)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	t, err := pgx.CollectExactlyOneRow(rows, scanTenant)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, tenant.ErrTenantNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	return t, nil
}

func scanTenant(row pgx.CollectableRow) (*tenant.Tenant, error) {
	var (
		t      tenant.Tenant
		status string
	)
	err := row.Scan(&t.ID, &t.Slug, &t.Name, &t.Namespace, &status, &t.Plan, &t.CreatedAt, &t.UpdatedAt, &t.DeletedAt)
	if err != nil {
		return nil, err
	}
	t.Status = tenant.Status(status)
	return &t, nil
}
