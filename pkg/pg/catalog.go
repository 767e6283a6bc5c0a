package pg

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/dmitrymomot/boundary/pkg/tenant"
)

// Catalog creates, clones and drops tenant schemas. Every name is checked
// with tenant.ValidNamespace and quoted before it reaches SQL.
type Catalog struct {
	pool *pgxpool.Pool
}

func NewCatalog(pool *pgxpool.Pool) *Catalog {
	return &Catalog{pool: pool}
}

func (c *Catalog) CreateNamespace(ctx context.Context, ns string) error {
	name, err := quoteNamespace(ns)
	if err != nil {
		return err
	}
	if _, err := c.pool.Exec(ctx, "CREATE SCHEMA "+name); err != nil {
		if IsDuplicateSchemaError(err) {
			return fmt.Errorf("%w: %s", ErrNamespaceExists, ns)
		}
		return fmt.Errorf("catalog.CreateNamespace: %w", err)
	}
	return nil
}

// EnsureNamespace creates the schema unless it already exists. Used for the
// template namespace on startup.
func (c *Catalog) EnsureNamespace(ctx context.Context, ns string) error {
	name, err := quoteNamespace(ns)
	if err != nil {
		return err
	}
	if _, err := c.pool.Exec(ctx, "CREATE SCHEMA IF NOT EXISTS "+name); err != nil {
		return fmt.Errorf("catalog.EnsureNamespace: %w", err)
	}
	return nil
}

// CloneStructure recreates every table of from inside to, without rows, in
// one transaction. Columns, defaults, constraints, indexes and identity
// columns are copied; serial defaults keep pointing at the template's
// sequences, so tenant tables should use identity columns.
func (c *Catalog) CloneStructure(ctx context.Context, from, to string) error {
	src, err := quoteNamespace(from)
	if err != nil {
		return err
	}
	dst, err := quoteNamespace(to)
	if err != nil {
		return err
	}

	return pgx.BeginFunc(ctx, c.pool, func(tx pgx.Tx) error {
		rows, err := tx.Query(ctx,
			`SELECT tablename FROM pg_tables WHERE schemaname = $1 ORDER BY tablename`, from)
		if err != nil {
			return fmt.Errorf("catalog.CloneStructure: list tables: %w", err)
		}
		tables, err := pgx.CollectRows(rows, pgx.RowTo[string])
		if err != nil {
			return fmt.Errorf("catalog.CloneStructure: list tables: %w", err)
		}

		for _, tbl := range tables {
			t := pgx.Identifier{tbl}.Sanitize()
			stmt := fmt.Sprintf("CREATE TABLE %s.%s (LIKE %s.%s INCLUDING ALL)", dst, t, src, t)
			if _, err := tx.Exec(ctx, stmt); err != nil {
				if IsInvalidSchemaError(err) {
					return fmt.Errorf("%w: %s", ErrNamespaceNotFound, to)
				}
				return fmt.Errorf("catalog.CloneStructure: table %s: %w", tbl, err)
			}
		}
		return nil
	})
}

// DropNamespace drops the schema and everything in it. Missing schemas are
// ignored.
func (c *Catalog) DropNamespace(ctx context.Context, ns string) error {
	name, err := quoteNamespace(ns)
	if err != nil {
		return err
	}
	if _, err := c.pool.Exec(ctx, "DROP SCHEMA IF EXISTS "+name+" CASCADE"); err != nil {
		return fmt.Errorf("catalog.DropNamespace: %w", err)
	}
	return nil
}

func (c *Catalog) NamespaceExists(ctx context.Context, ns string) (bool, error) {
	var exists bool
	err := c.pool.QueryRow(ctx,
		`SELECT EXISTS (SELECT 1 FROM pg_namespace WHERE nspname = $1)`, ns,
	).Scan(&exists)
	if err != nil {
		return false, fmt.Errorf("catalog.NamespaceExists: %w", err)
	}
	return exists, nil
}

func quoteNamespace(ns string) (string, error) {
	if !tenant.ValidNamespace(ns) {
		return "", fmt.Errorf("%w: %q", tenant.ErrInvalidNamespace, ns)
	}
	return pgx.Identifier{ns}.Sanitize(), nil
}
