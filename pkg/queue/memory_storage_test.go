package queue_test

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dmitrymomot/boundary/pkg/queue"
)

func newTask(name string, priority queue.Priority, scheduledAt time.Time) *queue.Task {
	return &queue.Task{
		ID:          uuid.New(),
		Queue:       queue.DefaultQueueName,
		TaskName:    name,
		Payload:     []byte(`{}`),
		Metadata:    queue.Metadata{"tenant_id": name},
		Status:      queue.TaskStatusPending,
		Priority:    priority,
		MaxRetries:  2,
		ScheduledAt: scheduledAt,
		CreatedAt:   time.Now(),
	}
}

func TestMemoryStorage_ClaimTask(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	worker := uuid.New()

	storage := queue.NewMemoryStorage()
	t.Cleanup(func() { _ = storage.Close() })

	past := time.Now().Add(-time.Minute)
	require.NoError(t, storage.CreateTask(ctx, newTask("low", queue.PriorityLow, past)))
	require.NoError(t, storage.CreateTask(ctx, newTask("high", queue.PriorityHigh, past)))
	require.NoError(t, storage.CreateTask(ctx, newTask("future", queue.PriorityMax, time.Now().Add(time.Hour))))

	first, err := storage.ClaimTask(ctx, worker, []string{queue.DefaultQueueName}, time.Minute)
	require.NoError(t, err)
	assert.Equal(t, "high", first.TaskName)
	assert.Equal(t, queue.TaskStatusProcessing, first.Status)
	assert.Equal(t, "high", first.Metadata.Get("tenant_id"))

	// Claimed copies do not alias storage.
	first.Metadata["tenant_id"] = "changed"
	stored, ok := storage.Task(first.ID)
	require.True(t, ok)
	assert.Equal(t, "high", stored.Metadata.Get("tenant_id"))

	second, err := storage.ClaimTask(ctx, worker, []string{queue.DefaultQueueName}, time.Minute)
	require.NoError(t, err)
	assert.Equal(t, "low", second.TaskName)

	_, err = storage.ClaimTask(ctx, worker, []string{queue.DefaultQueueName}, time.Minute)
	assert.ErrorIs(t, err, queue.ErrNoTaskToClaim)

	_, err = storage.ClaimTask(ctx, worker, []string{"other"}, time.Minute)
	assert.ErrorIs(t, err, queue.ErrNoTaskToClaim)
}

func TestMemoryStorage_Lifecycle(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	worker := uuid.New()
	queues := []string{queue.DefaultQueueName}

	storage := queue.NewMemoryStorage(queue.WithRetryBackoff(0))
	t.Cleanup(func() { _ = storage.Close() })

	task := newTask("job", queue.PriorityMedium, time.Now().Add(-time.Second))
	require.NoError(t, storage.CreateTask(ctx, task))

	assert.ErrorIs(t, storage.CompleteTask(ctx, task.ID), queue.ErrTaskNotProcessing)
	assert.ErrorIs(t, storage.CompleteTask(ctx, uuid.New()), queue.ErrTaskNotFound)

	_, err := storage.ClaimTask(ctx, worker, queues, time.Minute)
	require.NoError(t, err)
	require.NoError(t, storage.FailTask(ctx, task.ID, "boom"))

	retried, ok := storage.Task(task.ID)
	require.True(t, ok)
	assert.Equal(t, queue.TaskStatusPending, retried.Status)
	assert.Equal(t, int8(1), retried.RetryCount)

	_, err = storage.ClaimTask(ctx, worker, queues, time.Minute)
	require.NoError(t, err)
	require.NoError(t, storage.FailTask(ctx, task.ID, "boom again"))

	failed, ok := storage.Task(task.ID)
	require.True(t, ok)
	assert.Equal(t, queue.TaskStatusFailed, failed.Status)

	require.NoError(t, storage.MoveToDLQ(ctx, task.ID))
	_, ok = storage.Task(task.ID)
	assert.False(t, ok)

	dlq := storage.DLQ()
	require.Len(t, dlq, 1)
	assert.Equal(t, task.ID, dlq[0].TaskID)
	assert.Equal(t, "boom again", dlq[0].Error)
	assert.Equal(t, "job", dlq[0].Metadata.Get("tenant_id"))
}

func TestMemoryStorage_ExpiredLock(t *testing.T) {
	t.Parallel()
	ctx := context.Background()

	storage := queue.NewMemoryStorage()
	t.Cleanup(func() { _ = storage.Close() })

	task := newTask("job", queue.PriorityMedium, time.Now().Add(-time.Second))
	require.NoError(t, storage.CreateTask(ctx, task))
	_, err := storage.ClaimTask(ctx, uuid.New(), []string{queue.DefaultQueueName}, 10*time.Millisecond)
	require.NoError(t, err)

	require.Eventually(t, func() bool {
		got, ok := storage.Task(task.ID)
		return ok && got.Status == queue.TaskStatusPending
	}, 3*time.Second, 50*time.Millisecond)
}
