package pg

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/dmitrymomot/boundary/pkg/queue"
)

var (
	_ queue.EnqueuerRepository = (*TaskStore)(nil)
	_ queue.WorkerRepository   = (*TaskStore)(nil)
)

// DefaultRetryBackoff is multiplied by the retry count to delay a failed task.
const DefaultRetryBackoff = 10 * time.Second

const taskColumns = `id, queue, task_name, payload, metadata, status, priority, retry_count, max_retries,
	scheduled_at, locked_until, locked_by, processed_at, error, created_at`

// TaskStore is a queue backend shared by every worker process. Claims use
// FOR UPDATE SKIP LOCKED, so a task is handed to one worker at a time, and a
// processing task whose lock expired can be claimed again.
type TaskStore struct {
	pool    *pgxpool.Pool
	backoff time.Duration
	now     func() time.Time
}

// TaskStoreOption configures a TaskStore.
type TaskStoreOption func(*TaskStore)

// WithRetryBackoff sets the base delay before a failed task is retried.
func WithRetryBackoff(d time.Duration) TaskStoreOption {
	return func(s *TaskStore) {
		if d >= 0 {
			s.backoff = d
		}
	}
}

func NewTaskStore(pool *pgxpool.Pool, opts ...TaskStoreOption) *TaskStore {
	s := &TaskStore{pool: pool, backoff: DefaultRetryBackoff, now: time.Now}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

func (s *TaskStore) CreateTask(ctx context.Context, task *queue.Task) error {
	metadata := task.Metadata
	if metadata == nil {
		metadata = queue.Metadata{}
	}
	_, err := s.pool.Exec(ctx,
		`INSERT INTO queue_tasks (`+taskColumns+`)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15)`,
		task.ID, task.Queue, task.TaskName, task.Payload, metadata, string(task.Status),
		int16(task.Priority), int16(task.RetryCount), int16(task.MaxRetries),
		task.ScheduledAt, task.LockedUntil, task.LockedBy, task.ProcessedAt, task.Error, task.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("taskStore.CreateTask: %w", err)
	}
	return nil
}

func (s *TaskStore) ClaimTask(ctx context.Context, workerID uuid.UUID, queues []string, lockDuration time.Duration) (*queue.Task, error) {
	now := s.now()
	rows, err := s.pool.Query(ctx,
		`UPDATE queue_tasks
		 SET status = 'processing', locked_until = $3, locked_by = $2
		 WHERE id = (
		     SELECT id FROM queue_tasks
		     WHERE queue = ANY($1)
		       AND scheduled_at <= $4
		       AND (status = 'pending' AND (locked_until IS NULL OR locked_until <= $4)
		            OR status = 'processing' AND locked_until <= $4)
		     ORDER BY priority DESC, scheduled_at
		     LIMIT 1
		     FOR UPDATE SKIP LOCKED)
		 RETURNING `+taskColumns,
		queues, workerID, now.Add(lockDuration), now,
	)
	if err != nil {
		return nil, fmt.Errorf("taskStore.ClaimTask: %w", err)
	}

	task, err := pgx.CollectExactlyOneRow(rows, scanTask)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, queue.ErrNoTaskToClaim
	}
	if err != nil {
		return nil, fmt.Errorf("taskStore.ClaimTask: %w", err)
	}
	return task, nil
}

func (s *TaskStore) CompleteTask(ctx context.Context, taskID uuid.UUID) error {
	tag, err := s.pool.Exec(ctx,
		`UPDATE queue_tasks
		 SET status = 'completed', processed_at = $2, locked_until = NULL, locked_by = NULL
		 WHERE id = $1 AND status = 'processing'`,
		taskID, s.now(),
	)
	if err != nil {
		return fmt.Errorf("taskStore.CompleteTask: %w", err)
	}
	return s.processingResult(ctx, "taskStore.CompleteTask", taskID, tag.RowsAffected())
}

// FailTask counts the attempt. With retries left the task goes back to
// pending after RetryCount times the backoff.
func (s *TaskStore) FailTask(ctx context.Context, taskID uuid.UUID, errorMsg string) error {
	tag, err := s.pool.Exec(ctx,
		`UPDATE queue_tasks
		 SET retry_count = retry_count + 1,
		     error = $2,
		     locked_until = NULL,
		     locked_by = NULL,
		     status = CASE WHEN retry_count + 1 >= max_retries THEN 'failed' ELSE 'pending' END,
		     scheduled_at = CASE WHEN retry_count + 1 >= max_retries THEN scheduled_at
		                         ELSE $3::timestamptz + (retry_count + 1) * $4::interval END
		 WHERE id = $1 AND status = 'processing'`,
		taskID, errorMsg, s.now(), s.backoff,
	)
	if err != nil {
		return fmt.Errorf("taskStore.FailTask: %w", err)
	}
	return s.processingResult(ctx, "taskStore.FailTask", taskID, tag.RowsAffected())
}

func (s *TaskStore) MoveToDLQ(ctx context.Context, taskID uuid.UUID) error {
	err := pgx.BeginFunc(ctx, s.pool, func(tx pgx.Tx) error {
		rows, err := tx.Query(ctx, `DELETE FROM queue_tasks WHERE id = $1 RETURNING `+taskColumns, taskID)
		if err != nil {
			return err
		}
		task, err := pgx.CollectExactlyOneRow(rows, scanTask)
		if errors.Is(err, pgx.ErrNoRows) {
			return fmt.Errorf("%w: %s", queue.ErrTaskNotFound, taskID)
		}
		if err != nil {
			return err
		}

		var msg string
		if task.Error != nil {
			msg = *task.Error
		}
		metadata := task.Metadata
		if metadata == nil {
			metadata = queue.Metadata{}
		}
		now := s.now()
		_, err = tx.Exec(ctx,
			`INSERT INTO queue_tasks_dlq
			     (id, task_id, queue, task_name, payload, metadata, priority, error, retry_count, failed_at, created_at)
			 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)`,
			uuid.New(), task.ID, task.Queue, task.TaskName, task.Payload, metadata,
			int16(task.Priority), msg, int16(task.RetryCount), now, now,
		)
		return err
	})
	if err != nil {
		if errors.Is(err, queue.ErrTaskNotFound) {
			return err
		}
		return fmt.Errorf("taskStore.MoveToDLQ: %w", err)
	}
	return nil
}

func (s *TaskStore) ExtendLock(ctx context.Context, taskID uuid.UUID, duration time.Duration) error {
	tag, err := s.pool.Exec(ctx,
		`UPDATE queue_tasks SET locked_until = $2 WHERE id = $1 AND status = 'processing'`,
		taskID, s.now().Add(duration),
	)
	if err != nil {
		return fmt.Errorf("taskStore.ExtendLock: %w", err)
	}
	return s.processingResult(ctx, "taskStore.ExtendLock", taskID, tag.RowsAffected())
}

// Task loads one task.
func (s *TaskStore) Task(ctx context.Context, taskID uuid.UUID) (*queue.Task, error) {
	rows, err := s.pool.Query(ctx, `SELECT `+taskColumns+` FROM queue_tasks WHERE id = $1`, taskID)
	if err != nil {
		return nil, fmt.Errorf("taskStore.Task: %w", err)
	}
	task, err := pgx.CollectExactlyOneRow(rows, scanTask)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, fmt.Errorf("%w: %s", queue.ErrTaskNotFound, taskID)
	}
	if err != nil {
		return nil, fmt.Errorf("taskStore.Task: %w", err)
	}
	return task, nil
}

// PurgeCompleted deletes completed tasks processed before cutoff.
func (s *TaskStore) PurgeCompleted(ctx context.Context, cutoff time.Time) (int64, error) {
	tag, err := s.pool.Exec(ctx,
		`DELETE FROM queue_tasks WHERE status = 'completed' AND processed_at < $1`, cutoff)
	if err != nil {
		return 0, fmt.Errorf("taskStore.PurgeCompleted: %w", err)
	}
	return tag.RowsAffected(), nil
}

func (s *TaskStore) processingResult(ctx context.Context, op string, taskID uuid.UUID, affected int64) error {
	if affected == 1 {
		return nil
	}
	var exists bool
	if err := s.pool.QueryRow(ctx,
		`SELECT EXISTS (SELECT 1 FROM queue_tasks WHERE id = $1)`, taskID,
	).Scan(&exists); err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	if !exists {
		return fmt.Errorf("%w: %s", queue.ErrTaskNotFound, taskID)
	}
	return fmt.Errorf("%w: %s", queue.ErrTaskNotProcessing, taskID)
}

func scanTask(row pgx.CollectableRow) (*queue.Task, error) {
	var (
		t                                queue.Task
		status                           string
		priority, retryCount, maxRetries int16
	)
	if err := row.Scan(&t.ID, &t.Queue, &t.TaskName, &t.Payload, &t.Metadata, &status,
		&priority, &retryCount, &maxRetries, &t.ScheduledAt, &t.LockedUntil, &t.LockedBy,
		&t.ProcessedAt, &t.Error, &t.CreatedAt); err != nil {
		return nil, err
	}
	t.Status = queue.TaskStatus(status)
	t.Priority = queue.Priority(priority)
	t.RetryCount = int8(retryCount)
	t.MaxRetries = int8(maxRetries)
	if len(t.Metadata) == 0 {
		t.Metadata = nil
	}
	return &t, nil
}
