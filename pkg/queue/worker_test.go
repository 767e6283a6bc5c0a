package queue_test

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dmitrymomot/boundary/pkg/queue"
)

func quietLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

type workerFixture struct {
	storage *queue.MemoryStorage
	enq     *queue.Enqueuer
	worker  *queue.Worker
}

func newWorkerFixture(t *testing.T, handlers ...queue.Handler) *workerFixture {
	t.Helper()

	storage := queue.NewMemoryStorage(queue.WithRetryBackoff(0))
	t.Cleanup(func() { _ = storage.Close() })

	enq, err := queue.NewEnqueuer(storage)
	require.NoError(t, err)

	worker, err := queue.NewWorker(storage,
		queue.WithPullInterval(5*time.Millisecond),
		queue.WithMaxConcurrentTasks(2),
		queue.WithWorkerLogger(quietLogger()))
	require.NoError(t, err)
	require.NoError(t, worker.RegisterHandlers(handlers...))

	return &workerFixture{storage: storage, enq: enq, worker: worker}
}

func (f *workerFixture) start(t *testing.T) {
	t.Helper()
	require.NoError(t, f.worker.Start(context.Background()))
	t.Cleanup(func() { _ = f.worker.Stop() })
}

func TestWorker_StartStop(t *testing.T) {
	t.Parallel()

	storage := queue.NewMemoryStorage()
	t.Cleanup(func() { _ = storage.Close() })

	_, err := queue.NewWorker(nil)
	assert.ErrorIs(t, err, queue.ErrRepositoryNil)

	worker, err := queue.NewWorker(storage, queue.WithWorkerLogger(quietLogger()))
	require.NoError(t, err)
	assert.ErrorIs(t, worker.Start(context.Background()), queue.ErrNoHandlers)
	assert.ErrorIs(t, worker.Stop(), queue.ErrWorkerNotStarted)

	require.NoError(t, worker.RegisterHandler(queue.NewTaskHandler(func(context.Context, invoicePayload) error { return nil })))
	require.NoError(t, worker.Start(context.Background()))
	assert.ErrorIs(t, worker.Start(context.Background()), queue.ErrWorkerAlreadyStarted)
	require.NoError(t, worker.Stop())
}

func TestWorker_ProcessesTasksWithMetadata(t *testing.T) {
	t.Parallel()

	var (
		mu   sync.Mutex
		seen []string
	)
	handler := queue.NewTaskHandler(func(ctx context.Context, p invoicePayload) error {
		info, ok := queue.TaskInfoFromContext(ctx)
		if !ok {
			return errors.New("missing task info")
		}
		mu.Lock()
		defer mu.Unlock()
		seen = append(seen, p.InvoiceID+"@"+info.Metadata.Get("tenant_id"))
		return nil
	})

	f := newWorkerFixture(t, handler)
	ctx := context.Background()
	require.NoError(t, f.enq.Enqueue(ctx, invoicePayload{InvoiceID: "a"}, queue.WithMetadata("tenant_id", "t1")))
	require.NoError(t, f.enq.Enqueue(ctx, invoicePayload{InvoiceID: "b"}, queue.WithMetadata("tenant_id", "t2")))
	f.start(t)

	require.Eventually(t, func() bool {
		return len(f.storage.Tasks(queue.TaskStatusCompleted)) == 2
	}, 2*time.Second, 10*time.Millisecond)

	mu.Lock()
	defer mu.Unlock()
	assert.ElementsMatch(t, []string{"a@t1", "b@t2"}, seen)
}

func TestWorker_FailuresGoToDLQ(t *testing.T) {
	t.Parallel()

	var (
		mu       sync.Mutex
		attempts int
	)
	handler := queue.NewTaskHandler(func(context.Context, invoicePayload) error {
		mu.Lock()
		defer mu.Unlock()
		attempts++
		return errors.New("always fails")
	})

	f := newWorkerFixture(t, handler)
	require.NoError(t, f.enq.Enqueue(context.Background(), invoicePayload{InvoiceID: "x"},
		queue.WithMaxRetries(2), queue.WithMetadata("tenant_id", "t1")))
	f.start(t)

	require.Eventually(t, func() bool { return len(f.storage.DLQ()) == 1 }, 2*time.Second, 10*time.Millisecond)

	dlq := f.storage.DLQ()
	assert.Equal(t, "always fails", dlq[0].Error)
	assert.Equal(t, "t1", dlq[0].Metadata.Get("tenant_id"))

	mu.Lock()
	defer mu.Unlock()
	assert.Equal(t, 2, attempts)
}

func TestWorker_PanicsAndMissingHandlers(t *testing.T) {
	t.Parallel()

	panicking := queue.NewNamedTaskHandler("panics", func(context.Context, invoicePayload) error {
		panic("boom")
	})

	f := newWorkerFixture(t, panicking)
	ctx := context.Background()
	require.NoError(t, f.enq.Enqueue(ctx, invoicePayload{}, queue.WithTaskName("panics"), queue.WithMaxRetries(0)))
	require.NoError(t, f.enq.Enqueue(ctx, invoicePayload{}, queue.WithTaskName("unknown")))
	f.start(t)

	require.Eventually(t, func() bool { return len(f.storage.DLQ()) == 2 }, 2*time.Second, 10*time.Millisecond)

	var errs []string
	for _, e := range f.storage.DLQ() {
		errs = append(errs, e.Error)
	}
	assert.ElementsMatch(t, []string{"panic in handler: boom", "no handler registered for task type: unknown"}, errs)
}

func TestConfig_WorkerOptions(t *testing.T) {
	t.Parallel()

	storage := queue.NewMemoryStorage()
	t.Cleanup(func() { _ = storage.Close() })

	cfg := queue.Config{Queues: []string{"a", "b"}, PollInterval: time.Second, LockTimeout: time.Minute, MaxConcurrentTasks: 3}
	worker, err := queue.NewWorker(storage, cfg.WorkerOptions()...)
	require.NoError(t, err)
	id, _, pid := worker.WorkerInfo()
	assert.NotEmpty(t, id)
	assert.Positive(t, pid)
}

func TestWorker_StopTimesOut(t *testing.T) {
	t.Parallel()

	storage := queue.NewMemoryStorage()
	t.Cleanup(func() { _ = storage.Close() })

	started := make(chan struct{})
	release := make(chan struct{})
	defer close(release)

	worker, err := queue.NewWorker(storage,
		queue.WithPullInterval(5*time.Millisecond),
		queue.WithShutdownTimeout(20*time.Millisecond),
		queue.WithWorkerLogger(quietLogger()))
	require.NoError(t, err)
	require.NoError(t, worker.RegisterHandler(queue.NewTaskHandler(func(context.Context, invoicePayload) error {
		close(started)
		<-release
		return nil
	})))

	enq, err := queue.NewEnqueuer(storage)
	require.NoError(t, err)
	require.NoError(t, enq.Enqueue(context.Background(), invoicePayload{}))

	require.NoError(t, worker.Start(context.Background()))
	select {
	case <-started:
	case <-time.After(2 * time.Second):
		t.Fatal("task was not picked up")
	}
	assert.ErrorIs(t, worker.Stop(), queue.ErrShutdownTimeout)
}
