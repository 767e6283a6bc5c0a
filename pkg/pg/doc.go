// Package pg is the PostgreSQL backend of the tenant isolation layer. All
// tenants share one database and one pgx connection pool; each tenant owns a
// schema and every unit of work pins search_path to it for the lifetime of a
// single transaction.
//
// # Building blocks
//
//   - Config and Connect open the shared *pgxpool.Pool with retries.
//   - Migrate applies the embedded control-plane schema with goose: the
//     tenants table and the tenant_migration_runs history.
//   - Pool and Conn implement schema.Pool and schema.Conn. Binding runs
//     set_config('search_path', ..., true) so it is discarded with the
//     transaction, and the guard reads current_schema().
//   - Catalog creates, clones and drops tenant schemas.
//   - Registry and RunStore implement tenant.Registry and migration.RunStore.
//
// # Usage
//
//	pool, err := pg.Connect(ctx, cfg)
//	if err != nil {
//	    return err
//	}
//	defer pool.Close()
//
//	if err := pg.Migrate(ctx, pool, cfg, log); err != nil {
//	    return err
//	}
//
//	engine := schema.NewEngine[*pg.Conn](pg.NewPool(pool))
//	err = engine.WithTenant(ctx, tc, func(ctx context.Context, s *schema.Session[*pg.Conn]) error {
//	    conn, err := s.Conn(ctx)
//	    if err != nil {
//	        return err
//	    }
//	    _, err = conn.Exec(ctx, `INSERT INTO notes (id, body) VALUES ($1, $2)`, id, body)
//	    return err
//	})
//
// # Error Handling
//
// Helpers such as IsDuplicateKeyError and IsDuplicateSchemaError classify
// *pgconn.PgError values so callers can map them to domain errors.
package pg
