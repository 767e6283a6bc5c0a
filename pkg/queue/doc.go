// Package queue is a repository-agnostic task queue used for background work.
//
// Two components share small repository interfaces:
//
//   - Enqueuer adds tasks, optionally delayed, prioritised and tagged with
//     opaque Metadata.
//   - Worker claims pending tasks and dispatches them to registered Handlers,
//     retrying failures and moving exhausted tasks to a dead letter queue.
//
// MemoryStorage implements both repositories for tests and single-process
// deployments.
//
// # Metadata
//
// Metadata travels with the task untouched. Handlers read it with
// MetadataFromContext, which is how the tenantjob package carries the
// owning tenant from the request that enqueued the work to the worker that
// runs it:
//
//	err := enqueuer.Enqueue(ctx, SendInvoice{ID: id},
//	    queue.WithMetadata("tenant_id", tc.TenantID.String()))
//
//	handler := queue.NewTaskHandler(func(ctx context.Context, p SendInvoice) error {
//	    tenantID := queue.MetadataFromContext(ctx).Get("tenant_id")
//	    ...
//	})
//
// # Error Handling
//
// Package-level sentinel errors (ErrInvalidPriority, ErrNoHandlers,
// ErrNoTaskToClaim, ...) can be checked with errors.Is.
package queue
