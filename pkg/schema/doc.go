// Package schema binds database work to a tenant namespace.
//
// An Engine checks a connection out of a shared Pool, selects the tenant's
// namespace for the current transaction only, verifies the selection and hands
// the connection to the caller through a Session. Every access to the
// connection goes through Session.Conn, which re-checks the active namespace
// before returning it. A mismatch is reported as *IsolationError and is never
// retried.
//
// Per unit of work the binding moves Unbound -> Binding -> Bound -> Released.
// A failed or timed out bind returns to Unbound and the connection goes back
// to the pool. Release resets the namespace and commits or rolls back on every
// exit path, including panics and cancelled contexts.
//
// Usage:
//
//	engine := schema.NewEngine[*pg.Conn](pool, schema.WithBindTimeout(5*time.Second))
//
//	err := engine.WithTenant(ctx, tc, func(ctx context.Context, s *schema.Session[*pg.Conn]) error {
//	    return schema.Do(ctx, s, func(c *pg.Conn) error {
//	        _, err := c.Exec(ctx, "INSERT INTO notes (body) VALUES ($1)", body)
//	        return err
//	    })
//	})
//
// MemoryDatabase implements the same contract in process, with fault
// injection for silent binding failures, bind errors, slow binds and failed
// structure clones.
package schema
