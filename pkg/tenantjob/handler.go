package tenantjob

import (
	"context"
	"fmt"

	"github.com/google/uuid"

	"github.com/dmitrymomot/boundary/pkg/queue"
	"github.com/dmitrymomot/boundary/pkg/schema"
	"github.com/dmitrymomot/boundary/pkg/tenant"
)

// Resolver looks a tenant up by id. *tenant.Resolver satisfies it and reads
// the registry directly, so a job never runs on a snapshot taken at enqueue
// time.
type Resolver interface {
	ResolveID(ctx context.Context, id uuid.UUID) (tenant.Context, error)
}

// HandlerFunc processes a decoded payload inside a bound session.
type HandlerFunc[C schema.Conn, T any] func(ctx context.Context, s *schema.Session[C], payload T) error

// NewHandler wraps fn so every task runs bound to the tenant stamped by
// Enqueue. Tasks without a stamp run in the engine's default namespace. A
// stamp that is malformed, unknown or names a tenant that is not active
// fails the task; it never falls back to another namespace.
func NewHandler[C schema.Conn, T any](resolver Resolver, engine *schema.Engine[C], fn HandlerFunc[C, T]) queue.Handler {
	return queue.NewTaskHandler(bind(resolver, engine, fn))
}

// NewNamedHandler is NewHandler for tasks enqueued with queue.WithTaskName.
func NewNamedHandler[C schema.Conn, T any](name string, resolver Resolver, engine *schema.Engine[C], fn HandlerFunc[C, T]) queue.Handler {
	return queue.NewNamedTaskHandler(name, bind(resolver, engine, fn))
}

func bind[C schema.Conn, T any](resolver Resolver, engine *schema.Engine[C], fn HandlerFunc[C, T]) queue.TaskHandlerFunc[T] {
	return func(ctx context.Context, payload T) error {
		raw := queue.MetadataFromContext(ctx).Get(MetadataKey)
		if raw == "" {
			return engine.WithDefault(ctx, func(ctx context.Context, s *schema.Session[C]) error {
				return fn(ctx, s, payload)
			})
		}

		id, err := uuid.Parse(raw)
		if err != nil || id == uuid.Nil {
			return fmt.Errorf("%w: %q", ErrInvalidTenantID, raw)
		}

		tc, err := resolver.ResolveID(ctx, id)
		if err != nil {
			return fmt.Errorf("tenantjob: resolve tenant %s: %w", id, err)
		}
		if !tc.IsActive() {
			return fmt.Errorf("tenantjob: tenant %s is %s: %w", tc.Slug, tc.Status, tenant.ErrInactiveTenant)
		}

		ctx = tenant.WithContext(ctx, tc)
		return engine.WithTenant(ctx, tc, func(ctx context.Context, s *schema.Session[C]) error {
			return fn(ctx, s, payload)
		})
	}
}
