package queue

import (
	"context"

	"github.com/google/uuid"
)

// TaskInfo describes the task a handler is running.
type TaskInfo struct {
	ID         uuid.UUID
	Name       string
	Queue      string
	RetryCount int8
	Metadata   Metadata
}

type taskInfoKey struct{}

// WithTaskInfo stores info on ctx. The worker calls it before every handler.
func WithTaskInfo(ctx context.Context, info TaskInfo) context.Context {
	return context.WithValue(ctx, taskInfoKey{}, info)
}

// TaskInfoFromContext returns the running task's info.
func TaskInfoFromContext(ctx context.Context) (TaskInfo, bool) {
	info, ok := ctx.Value(taskInfoKey{}).(TaskInfo)
	return info, ok
}

// MetadataFromContext returns the running task's metadata, or nil outside a
// handler.
func MetadataFromContext(ctx context.Context) Metadata {
	info, _ := TaskInfoFromContext(ctx)
	return info.Metadata
}
