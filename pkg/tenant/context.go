package tenant

import (
	"context"
	"log/slog"

	"github.com/google/uuid"
)

// contextKey is a private type to prevent collisions with other context keys.
type contextKey struct{}

// WithContext attaches a resolved tenant Context to a request context.
// The value lives exactly as long as the request; nothing is stored globally.
func WithContext(ctx context.Context, tc Context) context.Context {
	return context.WithValue(ctx, contextKey{}, tc)
}

// FromContext retrieves the tenant Context. Returns false if none is present.
func FromContext(ctx context.Context) (Context, bool) {
	tc, ok := ctx.Value(contextKey{}).(Context)
	if !ok || tc.IsZero() {
		return Context{}, false
	}
	return tc, true
}

// IDFromContext retrieves just the tenant ID.
func IDFromContext(ctx context.Context) (uuid.UUID, bool) {
	tc, ok := FromContext(ctx)
	if !ok {
		return uuid.Nil, false
	}
	return tc.TenantID, true
}

// MustFromContext panics if no tenant is found. Use only behind Middleware.
func MustFromContext(ctx context.Context) Context {
	tc, ok := FromContext(ctx)
	if !ok {
		panic("tenant: no tenant in context")
	}
	return tc
}

// LoggerExtractor returns a logger context extractor adding tenant_id and namespace.
func LoggerExtractor() func(ctx context.Context) (slog.Attr, bool) {
	return func(ctx context.Context) (slog.Attr, bool) {
		tc, ok := FromContext(ctx)
		if !ok {
			return slog.Attr{}, false
		}
		return slog.Group("tenant",
			slog.String("id", tc.TenantID.String()),
			slog.String("namespace", tc.Namespace),
		), true
	}
}
