package queue_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dmitrymomot/boundary/pkg/queue"
)

type invoicePayload struct {
	InvoiceID string `json:"invoice_id"`
	Amount    int    `json:"amount"`
}

type failingRepo struct{ err error }

func (r failingRepo) CreateTask(context.Context, *queue.Task) error { return r.err }

func TestNewEnqueuer(t *testing.T) {
	t.Parallel()

	_, err := queue.NewEnqueuer(nil)
	assert.ErrorIs(t, err, queue.ErrRepositoryNil)
}

func TestEnqueuer_Enqueue(t *testing.T) {
	t.Parallel()
	ctx := context.Background()

	t.Run("stores task with defaults", func(t *testing.T) {
		t.Parallel()

		storage := queue.NewMemoryStorage()
		t.Cleanup(func() { _ = storage.Close() })

		enq, err := queue.NewEnqueuer(storage)
		require.NoError(t, err)
		require.NoError(t, enq.Enqueue(ctx, invoicePayload{InvoiceID: "inv-1", Amount: 10}))

		tasks := storage.Tasks(queue.TaskStatusPending)
		require.Len(t, tasks, 1)
		task := tasks[0]
		assert.Equal(t, queue.DefaultQueueName, task.Queue)
		assert.Equal(t, "queue_test.invoicePayload", task.TaskName)
		assert.Equal(t, queue.PriorityDefault, task.Priority)
		assert.Equal(t, int8(3), task.MaxRetries)
		assert.JSONEq(t, `{"invoice_id":"inv-1","amount":10}`, string(task.Payload))
		assert.Nil(t, task.Metadata)
	})

	t.Run("applies options", func(t *testing.T) {
		t.Parallel()

		storage := queue.NewMemoryStorage()
		t.Cleanup(func() { _ = storage.Close() })

		enq, err := queue.NewEnqueuer(storage,
			queue.WithDefaultQueue("billing"),
			queue.WithDefaultPriority(queue.PriorityLow))
		require.NoError(t, err)

		before := time.Now()
		require.NoError(t, enq.Enqueue(ctx, invoicePayload{InvoiceID: "inv-2"},
			queue.WithPriority(queue.PriorityHigh),
			queue.WithMaxRetries(5),
			queue.WithDelay(time.Hour),
			queue.WithTaskName("invoice.send"),
			queue.WithMetadata("tenant_id", "abc"),
			queue.WithMetadata("trace", "t-1"),
			queue.WithMetadata("", "ignored"),
		))

		tasks := storage.Tasks(queue.TaskStatusPending)
		require.Len(t, tasks, 1)
		task := tasks[0]
		assert.Equal(t, "billing", task.Queue)
		assert.Equal(t, "invoice.send", task.TaskName)
		assert.Equal(t, queue.PriorityHigh, task.Priority)
		assert.Equal(t, int8(5), task.MaxRetries)
		assert.True(t, task.ScheduledAt.After(before.Add(59*time.Minute)))
		assert.Equal(t, queue.Metadata{"tenant_id": "abc", "trace": "t-1"}, task.Metadata)
	})

	t.Run("validates input", func(t *testing.T) {
		t.Parallel()

		storage := queue.NewMemoryStorage()
		t.Cleanup(func() { _ = storage.Close() })
		enq, err := queue.NewEnqueuer(storage)
		require.NoError(t, err)

		assert.ErrorIs(t, enq.Enqueue(ctx, nil), queue.ErrPayloadNil)
		assert.ErrorIs(t, enq.Enqueue(ctx, invoicePayload{}, queue.WithPriority(101)), queue.ErrInvalidPriority)
		assert.Error(t, enq.Enqueue(ctx, make(chan int)))
		assert.Empty(t, storage.Tasks(queue.TaskStatusPending))
	})

	t.Run("wraps repository errors", func(t *testing.T) {
		t.Parallel()

		errStore := errors.New("store down")
		enq, err := queue.NewEnqueuer(failingRepo{err: errStore})
		require.NoError(t, err)
		assert.ErrorIs(t, enq.Enqueue(ctx, invoicePayload{}), errStore)
	})
}

func TestMetadata(t *testing.T) {
	t.Parallel()

	var empty queue.Metadata
	assert.Equal(t, "", empty.Get("x"))
	assert.Nil(t, empty.Clone())

	md := queue.Metadata{"a": "1"}
	clone := md.Clone()
	clone["a"] = "2"
	assert.Equal(t, "1", md.Get("a"))

	ctx := context.Background()
	assert.Nil(t, queue.MetadataFromContext(ctx))
	ctx = queue.WithTaskInfo(ctx, queue.TaskInfo{Name: "x", Metadata: md})
	assert.Equal(t, "1", queue.MetadataFromContext(ctx).Get("a"))
}
