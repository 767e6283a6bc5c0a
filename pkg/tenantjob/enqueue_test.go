package tenantjob_test

import (
	"context"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dmitrymomot/boundary/pkg/queue"
	"github.com/dmitrymomot/boundary/pkg/tenant"
	"github.com/dmitrymomot/boundary/pkg/tenantjob"
)

func newEnqueuer(t *testing.T) (*queue.Enqueuer, *queue.MemoryStorage) {
	t.Helper()

	storage := queue.NewMemoryStorage()
	t.Cleanup(func() { _ = storage.Close() })
	enq, err := queue.NewEnqueuer(storage)
	require.NoError(t, err)
	return enq, storage
}

func pending(t *testing.T, storage *queue.MemoryStorage) *queue.Task {
	t.Helper()
	tasks := storage.Tasks(queue.TaskStatusPending)
	require.Len(t, tasks, 1)
	return tasks[0]
}

func TestEnqueue_StampsTenant(t *testing.T) {
	t.Parallel()
	ctx := context.Background()

	enq, storage := newEnqueuer(t)
	tc := tenant.Context{TenantID: uuid.New(), Slug: "acme", Namespace: "tenant_acme", Status: tenant.StatusActive}

	err := tenantjob.Enqueue(ctx, enq, tc, notePayload{Key: "k"},
		queue.WithMetadata(tenantjob.MetadataKey, uuid.NewString()),
		queue.WithMetadata("trace", "abc"))
	require.NoError(t, err)

	task := pending(t, storage)
	assert.Equal(t, tc.TenantID.String(), task.Metadata.Get(tenantjob.MetadataKey), "stamp wins over caller metadata")
	assert.Equal(t, "abc", task.Metadata.Get("trace"))
}

func TestEnqueue_RequiresTenant(t *testing.T) {
	t.Parallel()
	ctx := context.Background()

	enq, storage := newEnqueuer(t)

	err := tenantjob.Enqueue(ctx, enq, tenant.Context{}, notePayload{})
	assert.ErrorIs(t, err, tenant.ErrNoTenantInContext)

	err = tenantjob.EnqueueFromContext(ctx, enq, notePayload{})
	assert.ErrorIs(t, err, tenant.ErrNoTenantInContext)

	assert.Empty(t, storage.Tasks(queue.TaskStatusPending))
}

func TestEnqueueGlobal_DropsTenant(t *testing.T) {
	t.Parallel()
	ctx := context.Background()

	enq, storage := newEnqueuer(t)

	err := tenantjob.EnqueueGlobal(ctx, enq, notePayload{},
		queue.WithMetadata(tenantjob.MetadataKey, uuid.NewString()))
	require.NoError(t, err)

	assert.Empty(t, pending(t, storage).Metadata.Get(tenantjob.MetadataKey))
}
