package pg_test

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dmitrymomot/boundary/pkg/migration"
	"github.com/dmitrymomot/boundary/pkg/pg"
	"github.com/dmitrymomot/boundary/pkg/schema"
	"github.com/dmitrymomot/boundary/pkg/tenant"
)

// connect skips the test unless PG_CONN_URL points at a disposable database.
func connect(t *testing.T) *pgxpool.Pool {
	t.Helper()

	url := os.Getenv("PG_CONN_URL")
	if url == "" {
		t.Skip("PG_CONN_URL is not set")
	}

	ctx := context.Background()
	cfg := pg.Config{
		ConnectionString: url,
		MaxOpenConns:     4,
		MaxIdleConns:     1,
		RetryAttempts:    1,
		RetryInterval:    time.Second,
		MigrationsTable:  "boundary_schema_migrations",
	}
	pool, err := pg.Connect(ctx, cfg)
	require.NoError(t, err)
	t.Cleanup(pool.Close)

	require.NoError(t, pg.Migrate(ctx, pool, cfg, slog.Default()))
	require.NoError(t, pg.Healthcheck(pool)(ctx))
	return pool
}

func uniqueSlug(prefix string) string {
	return fmt.Sprintf("%s-%s", prefix, uuid.NewString()[:8])
}

func TestPostgres_Isolation(t *testing.T) {
	pool := connect(t)
	ctx := context.Background()
	catalog := pg.NewCatalog(pool)

	slugA, slugB := uniqueSlug("alpha"), uniqueSlug("beta")
	nsA, nsB := tenant.NamespaceName(slugA), tenant.NamespaceName(slugB)
	for _, ns := range []string{nsA, nsB} {
		require.NoError(t, catalog.CreateNamespace(ctx, ns))
		t.Cleanup(func() { _ = catalog.DropNamespace(context.Background(), ns) })
	}
	assert.ErrorIs(t, catalog.CreateNamespace(ctx, nsA), pg.ErrNamespaceExists)

	engine := schema.NewEngine[*pg.Conn](pg.NewPool(pool))
	tcA := tenant.Context{TenantID: uuid.New(), Slug: slugA, Namespace: nsA, Status: tenant.StatusActive}
	tcB := tenant.Context{TenantID: uuid.New(), Slug: slugB, Namespace: nsB, Status: tenant.StatusActive}

	for _, tc := range []tenant.Context{tcA, tcB} {
		err := engine.WithTenant(ctx, tc, func(ctx context.Context, s *schema.Session[*pg.Conn]) error {
			conn, err := s.Conn(ctx)
			if err != nil {
				return err
			}
			if _, err := conn.Exec(ctx, `CREATE TABLE notes (id TEXT PRIMARY KEY)`); err != nil {
				return err
			}
			_, err = conn.Exec(ctx, `INSERT INTO notes (id) VALUES ($1)`, tc.Slug)
			return err
		})
		require.NoError(t, err)
	}

	err := engine.WithTenant(ctx, tcA, func(ctx context.Context, s *schema.Session[*pg.Conn]) error {
		conn, err := s.Conn(ctx)
		if err != nil {
			return err
		}
		var ids []string
		rows, err := conn.Query(ctx, `SELECT id FROM notes`)
		if err != nil {
			return err
		}
		defer rows.Close()
		for rows.Next() {
			var id string
			if err := rows.Scan(&id); err != nil {
				return err
			}
			ids = append(ids, id)
		}
		assert.Equal(t, []string{slugA}, ids)
		return rows.Err()
	})
	require.NoError(t, err)

	// Jobs without a tenant land in the shared schema.
	err = engine.WithDefault(ctx, func(ctx context.Context, s *schema.Session[*pg.Conn]) error {
		conn, err := s.Conn(ctx)
		if err != nil {
			return err
		}
		ns, err := conn.Namespace(ctx)
		if err != nil {
			return err
		}
		assert.Equal(t, schema.DefaultNamespace, ns)
		return nil
	})
	require.NoError(t, err)

	_, err = engine.BindNamespace(ctx, "t_missing_"+uuid.NewString()[:8])
	assert.ErrorIs(t, err, schema.ErrBindingFailed)
}

func TestPostgres_RegistryAndRuns(t *testing.T) {
	pool := connect(t)
	ctx := context.Background()
	reg := pg.NewRegistry(pool)
	runs := pg.NewRunStore(pool)

	slug := uniqueSlug("gamma")
	now := time.Now().UTC().Truncate(time.Microsecond)
	tn := &tenant.Tenant{
		ID:        uuid.New(),
		Slug:      slug,
		Name:      "Gamma",
		Namespace: tenant.NamespaceName(slug),
		Status:    tenant.StatusProvisioning,
		CreatedAt: now,
		UpdatedAt: now,
	}
	require.NoError(t, reg.Create(ctx, tn))
	t.Cleanup(func() { _ = reg.Delete(context.Background(), tn.ID) })

	dup := *tn
	dup.ID = uuid.New()
	assert.ErrorIs(t, reg.Create(ctx, &dup), tenant.ErrSlugTaken)

	got, err := reg.GetBySlug(ctx, slug)
	require.NoError(t, err)
	assert.Equal(t, tn.ID, got.ID)
	assert.Equal(t, tenant.StatusProvisioning, got.Status)

	deleted, err := reg.UpdateStatus(ctx, tn.ID, tenant.StatusDeleted, now)
	require.NoError(t, err)
	require.NotNil(t, deleted.DeletedAt)

	run := &migration.Run{TenantID: tn.ID, Version: 1, Direction: migration.Up, State: migration.StatePending, StartedAt: now}
	require.NoError(t, runs.Create(ctx, run))
	assert.ErrorIs(t, runs.Create(ctx, &migration.Run{
		TenantID: tn.ID, Version: 1, Direction: migration.Up, State: migration.StatePending, StartedAt: now,
	}), migration.ErrRunInProgress)

	finished := now.Add(time.Second)
	run.State = migration.StateCompleted
	run.FinishedAt = &finished
	require.NoError(t, runs.Update(ctx, run))
	assert.ErrorIs(t, runs.Update(ctx, run), migration.ErrRunFinalized)
	assert.ErrorIs(t, runs.Update(ctx, &migration.Run{ID: uuid.New()}), migration.ErrRunNotFound)

	stuck := &migration.Run{TenantID: tn.ID, Version: 2, Direction: migration.Up, State: migration.StateRunning, StartedAt: now}
	require.NoError(t, runs.Create(ctx, stuck))
	closed, err := runs.FailOpen(ctx, tn.ID, 2, "abandoned", finished)
	require.NoError(t, err)
	require.Len(t, closed, 1)
	assert.Equal(t, stuck.ID, closed[0].ID)
	assert.Equal(t, migration.StateFailed, closed[0].State)
	assert.Equal(t, "abandoned", closed[0].Error)
	closed, err = runs.FailOpen(ctx, tn.ID, 2, "abandoned", finished)
	require.NoError(t, err)
	assert.Empty(t, closed)

	history, err := runs.ListByTenant(ctx, tn.ID)
	require.NoError(t, err)
	require.Len(t, history, 2)
	assert.Equal(t, migration.StateCompleted, history[0].State)
	assert.Equal(t, migration.StateFailed, history[1].State)

	require.NoError(t, reg.Delete(ctx, tn.ID))
	history, err = runs.ListByTenant(ctx, tn.ID)
	require.NoError(t, err)
	assert.Empty(t, history)
	assert.ErrorIs(t, reg.Delete(ctx, tn.ID), tenant.ErrTenantNotFound)
}

func TestPostgres_TemplateLock(t *testing.T) {
	pool := connect(t)
	ctx := context.Background()
	lock := pg.NewTemplateLock(pool, "tpl_"+uuid.NewString()[:8])

	shared1, err := lock.RLock(ctx)
	require.NoError(t, err)
	shared2, err := lock.RLock(ctx)
	require.NoError(t, err)

	short, cancel := context.WithTimeout(ctx, 200*time.Millisecond)
	defer cancel()
	_, err = lock.Lock(short)
	require.Error(t, err, "exclusive lock must wait for shared holders")

	shared1()
	shared2()

	unlock, err := lock.Lock(ctx)
	require.NoError(t, err)

	short, cancel = context.WithTimeout(ctx, 200*time.Millisecond)
	defer cancel()
	_, err = lock.RLock(short)
	require.Error(t, err, "shared lock must wait for the exclusive holder")

	unlock()
	release, err := lock.RLock(ctx)
	require.NoError(t, err)
	release()
}
