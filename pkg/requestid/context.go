package requestid

import (
	"context"
	"log/slog"

	"github.com/dmitrymomot/boundary/pkg/queue"
)

// MetadataKey carries the request id across the queue boundary.
const MetadataKey = "request_id"

type contextKey struct{}

func WithContext(ctx context.Context, requestID string) context.Context {
	return context.WithValue(ctx, contextKey{}, requestID)
}

// FromContext returns the request id of an HTTP request or, inside a task
// handler, the id of the request that enqueued the task. Empty when neither
// is known.
func FromContext(ctx context.Context) string {
	if ctx == nil {
		return ""
	}
	if id, ok := ctx.Value(contextKey{}).(string); ok {
		return id
	}
	return queue.MetadataFromContext(ctx).Get(MetadataKey)
}

// Propagate stamps the request id of ctx onto an enqueued task. It does
// nothing when ctx has none.
func Propagate(ctx context.Context) queue.EnqueueOption {
	id := FromContext(ctx)
	if id == "" {
		return queue.WithoutMetadata(MetadataKey)
	}
	return queue.WithMetadata(MetadataKey, id)
}

// LoggerExtractor adds request_id to log records.
func LoggerExtractor() func(ctx context.Context) (slog.Attr, bool) {
	return func(ctx context.Context) (slog.Attr, bool) {
		if id := FromContext(ctx); id != "" {
			return slog.String("request_id", id), true
		}
		return slog.Attr{}, false
	}
}
