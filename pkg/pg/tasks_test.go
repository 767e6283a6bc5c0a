package pg_test

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dmitrymomot/boundary/pkg/pg"
	"github.com/dmitrymomot/boundary/pkg/queue"
)

func newTask(queueName string, priority queue.Priority, maxRetries int8) *queue.Task {
	now := time.Now()
	return &queue.Task{
		ID:          uuid.New(),
		Queue:       queueName,
		TaskName:    "notes.Count",
		Payload:     []byte(`{"note":"hello"}`),
		Metadata:    queue.Metadata{"tenant_id": uuid.NewString()},
		Status:      queue.TaskStatusPending,
		Priority:    priority,
		MaxRetries:  maxRetries,
		ScheduledAt: now.Add(-time.Second),
		CreatedAt:   now,
	}
}

func TestTaskStore_ClaimOrderAndComplete(t *testing.T) {
	pool := connect(t)
	ctx := context.Background()
	store := pg.NewTaskStore(pool)
	q := "test-" + uuid.NewString()[:8]

	low := newTask(q, queue.PriorityLow, 3)
	high := newTask(q, queue.PriorityHigh, 3)
	require.NoError(t, store.CreateTask(ctx, low))
	require.NoError(t, store.CreateTask(ctx, high))

	worker := uuid.New()
	claimed, err := store.ClaimTask(ctx, worker, []string{q}, time.Minute)
	require.NoError(t, err)
	assert.Equal(t, high.ID, claimed.ID)
	assert.Equal(t, queue.TaskStatusProcessing, claimed.Status)
	assert.Equal(t, high.Metadata, claimed.Metadata)
	assert.JSONEq(t, string(high.Payload), string(claimed.Payload))
	require.NotNil(t, claimed.LockedBy)
	assert.Equal(t, worker, *claimed.LockedBy)

	require.NoError(t, store.ExtendLock(ctx, claimed.ID, 2*time.Minute))
	require.NoError(t, store.CompleteTask(ctx, claimed.ID))
	assert.ErrorIs(t, store.CompleteTask(ctx, claimed.ID), queue.ErrTaskNotProcessing)
	assert.ErrorIs(t, store.CompleteTask(ctx, uuid.New()), queue.ErrTaskNotFound)

	next, err := store.ClaimTask(ctx, worker, []string{q}, time.Minute)
	require.NoError(t, err)
	assert.Equal(t, low.ID, next.ID)

	_, err = store.ClaimTask(ctx, worker, []string{q}, time.Minute)
	assert.ErrorIs(t, err, queue.ErrNoTaskToClaim)
}

func TestTaskStore_FailRetriesThenDLQ(t *testing.T) {
	pool := connect(t)
	ctx := context.Background()
	store := pg.NewTaskStore(pool, pg.WithRetryBackoff(0))
	q := "test-" + uuid.NewString()[:8]

	task := newTask(q, queue.PriorityMedium, 2)
	require.NoError(t, store.CreateTask(ctx, task))

	worker := uuid.New()
	claimed, err := store.ClaimTask(ctx, worker, []string{q}, time.Minute)
	require.NoError(t, err)
	require.NoError(t, store.FailTask(ctx, claimed.ID, "boom"))

	retried, err := store.Task(ctx, task.ID)
	require.NoError(t, err)
	assert.Equal(t, queue.TaskStatusPending, retried.Status)
	assert.Equal(t, int8(1), retried.RetryCount)

	claimed, err = store.ClaimTask(ctx, worker, []string{q}, time.Minute)
	require.NoError(t, err)
	require.NoError(t, store.FailTask(ctx, claimed.ID, "boom again"))

	failed, err := store.Task(ctx, task.ID)
	require.NoError(t, err)
	assert.Equal(t, queue.TaskStatusFailed, failed.Status)
	require.NotNil(t, failed.Error)
	assert.Equal(t, "boom again", *failed.Error)

	require.NoError(t, store.MoveToDLQ(ctx, task.ID))
	_, err = store.Task(ctx, task.ID)
	assert.ErrorIs(t, err, queue.ErrTaskNotFound)
	assert.ErrorIs(t, store.MoveToDLQ(ctx, task.ID), queue.ErrTaskNotFound)

	var dlqError string
	require.NoError(t, pool.QueryRow(ctx,
		`SELECT error FROM queue_tasks_dlq WHERE task_id = $1`, task.ID).Scan(&dlqError))
	assert.Equal(t, "boom again", dlqError)
}

func TestTaskStore_ReclaimsExpiredLock(t *testing.T) {
	pool := connect(t)
	ctx := context.Background()
	store := pg.NewTaskStore(pool)
	q := "test-" + uuid.NewString()[:8]

	task := newTask(q, queue.PriorityMedium, 3)
	require.NoError(t, store.CreateTask(ctx, task))

	_, err := store.ClaimTask(ctx, uuid.New(), []string{q}, -time.Second)
	require.NoError(t, err)

	second := uuid.New()
	reclaimed, err := store.ClaimTask(ctx, second, []string{q}, time.Minute)
	require.NoError(t, err)
	assert.Equal(t, task.ID, reclaimed.ID)
	assert.Equal(t, second, *reclaimed.LockedBy)
}
