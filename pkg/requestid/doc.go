// Package requestid correlates log records of one HTTP request and of the
// background tasks it enqueues.
//
// Middleware assigns the id. Propagate copies it into task metadata when
// enqueuing, and FromContext finds it again inside the task handler, so
// LoggerExtractor tags both sides with the same request_id:
//
//	err := tenantjob.EnqueueFromContext(ctx, enqueuer, payload, requestid.Propagate(ctx))
package requestid
