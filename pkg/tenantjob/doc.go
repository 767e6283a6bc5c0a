// Package tenantjob carries tenant identity across the queue.
//
// Enqueue writes the tenant id into the task metadata under MetadataKey. On
// the worker side NewHandler reads it back, resolves the tenant again from
// the registry and runs the handler inside Engine.WithTenant, with the
// tenant Context attached to ctx. A task enqueued with EnqueueGlobal carries
// no tenant and runs in the shared namespace.
//
//	_ = tenantjob.EnqueueFromContext(ctx, enq, SendInvoice{ID: id})
//
//	worker.RegisterHandler(tenantjob.NewHandler(resolver, engine,
//	    func(ctx context.Context, s *schema.Session[*pg.Conn], p SendInvoice) error {
//	        return schema.Do(ctx, s, func(c *pg.Conn) error { ... })
//	    }))
package tenantjob
