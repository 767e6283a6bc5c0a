package pg

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/dmitrymomot/boundary/pkg/migration"
)

var _ migration.TemplateLocker = (*TemplateLock)(nil)

// TemplateLock is a session-level advisory lock keyed by the template
// namespace. Template migrations hold it exclusively; provisioning holds it
// shared while it clones the template and seeds migration history. Each
// holder keeps one pool connection until it unlocks.
type TemplateLock struct {
	pool      *pgxpool.Pool
	namespace string
}

func NewTemplateLock(pool *pgxpool.Pool, namespace string) *TemplateLock {
	return &TemplateLock{pool: pool, namespace: namespace}
}

// Lock blocks until no other session holds the lock.
func (l *TemplateLock) Lock(ctx context.Context) (func(), error) {
	return l.acquire(ctx, "pg_advisory_lock", "pg_advisory_unlock")
}

// RLock blocks while another session holds the lock exclusively.
func (l *TemplateLock) RLock(ctx context.Context) (func(), error) {
	return l.acquire(ctx, "pg_advisory_lock_shared", "pg_advisory_unlock_shared")
}

func (l *TemplateLock) acquire(ctx context.Context, lockFn, unlockFn string) (func(), error) {
	conn, err := l.pool.Acquire(ctx)
	if err != nil {
		return nil, fmt.Errorf("templateLock.acquire: %w", err)
	}
	if _, err := conn.Exec(ctx, `SELECT `+lockFn+`(hashtextextended($1, 0))`, l.namespace); err != nil {
		conn.Release()
		return nil, fmt.Errorf("templateLock.acquire: %w", err)
	}

	return func() {
		ctx := context.WithoutCancel(ctx)
		if _, err := conn.Exec(ctx, `SELECT `+unlockFn+`(hashtextextended($1, 0))`, l.namespace); err != nil {
			// Closing the session is the only other way to drop the lock.
			_ = conn.Conn().Close(ctx)
		}
		conn.Release()
	}, nil
}
