package pg

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/dmitrymomot/boundary/pkg/schema"
)

var (
	_ schema.Pool[*Conn] = (*Pool)(nil)
	_ schema.Conn        = (*Conn)(nil)
)

// Pool hands out transaction-scoped connections to the schema engine.
type Pool struct {
	pool *pgxpool.Pool
}

// NewPool wraps a pgx pool for use with schema.NewEngine.
func NewPool(pool *pgxpool.Pool) *Pool {
	return &Pool{pool: pool}
}

// Acquire checks out a connection and opens a transaction on it. The
// namespace binding lives in that transaction only, so it can never outlive
// the unit of work even when the connection is reused.
func (p *Pool) Acquire(ctx context.Context) (*Conn, error) {
	c, err := p.pool.Acquire(ctx)
	if err != nil {
		return nil, fmt.Errorf("pg: acquire connection: %w", err)
	}

	tx, err := c.Begin(ctx)
	if err != nil {
		c.Release()
		return nil, fmt.Errorf("pg: begin transaction: %w", err)
	}

	return &Conn{conn: c, tx: tx}, nil
}

// Conn is one pooled connection with an open transaction.
type Conn struct {
	conn   *pgxpool.Conn
	tx     pgx.Tx
	closed bool
}

// SetNamespace sets a transaction-local search_path. A namespace that does not
// exist leaves current_schema() empty and is reported as ErrNamespaceNotFound.
func (c *Conn) SetNamespace(ctx context.Context, namespace string) error {
	if _, err := c.tx.Exec(ctx,
		"SELECT set_config('search_path', $1, true)",
		pgx.Identifier{namespace}.Sanitize(),
	); err != nil {
		return fmt.Errorf("pg: set search_path: %w", err)
	}

	current, err := c.Namespace(ctx)
	if err != nil {
		return err
	}
	if current == "" {
		return fmt.Errorf("%w: %s", ErrNamespaceNotFound, namespace)
	}
	return nil
}

// Namespace returns current_schema(), the schema unqualified names resolve to.
func (c *Conn) Namespace(ctx context.Context) (string, error) {
	var current *string
	if err := c.tx.QueryRow(ctx, "SELECT current_schema()").Scan(&current); err != nil {
		return "", fmt.Errorf("pg: read current_schema: %w", err)
	}
	if current == nil {
		return "", nil
	}
	return *current, nil
}

func (c *Conn) ResetNamespace(ctx context.Context) error {
	if _, err := c.tx.Exec(ctx, "RESET search_path"); err != nil {
		return fmt.Errorf("pg: reset search_path: %w", err)
	}
	return nil
}

// Close commits or rolls back and returns the connection to the pool. pgxpool
// destroys connections released with a transaction still open, so a failed
// commit or rollback never hands a dirty connection to the next tenant.
func (c *Conn) Close(ctx context.Context, commit bool) error {
	if c.closed {
		return nil
	}
	c.closed = true
	defer c.conn.Release()

	var err error
	if commit {
		err = c.tx.Commit(ctx)
	} else {
		err = c.tx.Rollback(ctx)
		if errors.Is(err, pgx.ErrTxClosed) {
			err = nil
		}
	}
	if err != nil {
		return fmt.Errorf("pg: end transaction: %w", err)
	}
	return nil
}

// Exec runs a statement inside the bound transaction.
func (c *Conn) Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error) {
	return c.tx.Exec(ctx, sql, args...)
}

// Query runs a query inside the bound transaction.
func (c *Conn) Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error) {
	return c.tx.Query(ctx, sql, args...)
}

// QueryRow runs a single-row query inside the bound transaction.
func (c *Conn) QueryRow(ctx context.Context, sql string, args ...any) pgx.Row {
	return c.tx.QueryRow(ctx, sql, args...)
}

// ExecScript runs a multi-statement SQL script. It matches
// migration.ExecFunc so YAML migration sets can target Postgres directly.
func ExecScript(ctx context.Context, c *Conn, sql string) error {
	if _, err := c.tx.Exec(ctx, sql); err != nil {
		return err
	}
	return nil
}
