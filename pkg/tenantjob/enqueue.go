package tenantjob

import (
	"context"
	"errors"

	"github.com/google/uuid"

	"github.com/dmitrymomot/boundary/pkg/queue"
	"github.com/dmitrymomot/boundary/pkg/tenant"
)

// MetadataKey is the reserved task metadata key carrying the tenant id.
const MetadataKey = "tenant_id"

var ErrInvalidTenantID = errors.New("tenantjob: invalid tenant id in task metadata")

// Enqueuer is the part of queue.Enqueuer the adapter needs.
type Enqueuer interface {
	Enqueue(ctx context.Context, payload any, opts ...queue.EnqueueOption) error
}

// Enqueue stamps tc's tenant id into the task metadata. The stamp is applied
// after opts, so callers cannot redirect a job to another tenant.
func Enqueue(ctx context.Context, enq Enqueuer, tc tenant.Context, payload any, opts ...queue.EnqueueOption) error {
	if tc.TenantID == uuid.Nil {
		return tenant.ErrNoTenantInContext
	}
	opts = append(opts, queue.WithMetadata(MetadataKey, tc.TenantID.String()))
	return enq.Enqueue(ctx, payload, opts...)
}

// EnqueueFromContext enqueues on behalf of the tenant bound to ctx.
func EnqueueFromContext(ctx context.Context, enq Enqueuer, payload any, opts ...queue.EnqueueOption) error {
	tc, ok := tenant.FromContext(ctx)
	if !ok {
		return tenant.ErrNoTenantInContext
	}
	return Enqueue(ctx, enq, tc, payload, opts...)
}

// EnqueueGlobal enqueues a job that runs in the shared namespace. Any
// tenant id passed through opts is cleared.
func EnqueueGlobal(ctx context.Context, enq Enqueuer, payload any, opts ...queue.EnqueueOption) error {
	opts = append(opts, queue.WithoutMetadata(MetadataKey))
	return enq.Enqueue(ctx, payload, opts...)
}
