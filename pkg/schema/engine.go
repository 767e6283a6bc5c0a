package schema

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/google/uuid"

	"github.com/dmitrymomot/boundary/pkg/logger"
	"github.com/dmitrymomot/boundary/pkg/tenant"
)

// Engine binds checked-out connections to tenant namespaces for one unit of
// work at a time. It keeps no per-tenant state: every binding lives in the
// Session that owns the connection.
type Engine[C Conn] struct {
	pool Pool[C]
	opts options
}

// NewEngine creates an engine over a shared pool.
func NewEngine[C Conn](pool Pool[C], opts ...Option) *Engine[C] {
	o := options{
		bindTimeout:      DefaultBindTimeout,
		defaultNamespace: DefaultNamespace,
		logger:           slog.Default(),
	}
	for _, opt := range opts {
		opt(&o)
	}
	return &Engine[C]{pool: pool, opts: o}
}

// DefaultNamespace returns the shared namespace used by WithDefault.
func (e *Engine[C]) DefaultNamespace() string { return e.opts.defaultNamespace }

// Bind checks out a connection and binds it to the tenant namespace.
// The tenant status is not consulted: callers decide whether a suspended
// tenant may run the unit of work.
func (e *Engine[C]) Bind(ctx context.Context, tc tenant.Context) (*Session[C], error) {
	if tc.IsZero() {
		return nil, tenant.ErrNoTenantInContext
	}
	return e.bind(ctx, tc.TenantID, tc.Namespace)
}

// BindNamespace binds an explicit namespace that is not owned by a tenant,
// such as the structure template. Business code goes through Bind.
func (e *Engine[C]) BindNamespace(ctx context.Context, namespace string) (*Session[C], error) {
	return e.bind(ctx, uuid.Nil, namespace)
}

func (e *Engine[C]) bind(ctx context.Context, tenantID uuid.UUID, namespace string) (*Session[C], error) {
	if !tenant.ValidNamespace(namespace) {
		return nil, &BindingError{Namespace: namespace, Err: ErrInvalidNamespace}
	}

	conn, err := e.pool.Acquire(ctx)
	if err != nil {
		return nil, &BindingError{Namespace: namespace, Err: err}
	}

	s := &Session[C]{
		conn:      conn,
		tenantID:  tenantID,
		namespace: namespace,
		state:     StateBinding,
		logger:    e.opts.logger,
	}

	bindCtx, cancel := context.WithTimeout(ctx, e.opts.bindTimeout)
	defer cancel()

	if err := conn.SetNamespace(bindCtx, namespace); err != nil {
		s.abort(ctx)
		if bindCtx.Err() != nil && ctx.Err() == nil {
			err = fmt.Errorf("bind timeout after %s: %w", e.opts.bindTimeout, err)
		}
		return nil, &BindingError{Namespace: namespace, Err: err}
	}
	if err := bindCtx.Err(); err != nil {
		s.abort(ctx)
		return nil, &BindingError{Namespace: namespace, Err: err}
	}

	// Bound only counts once the backend confirms the namespace.
	s.state = StateBound
	if err := s.Guard(bindCtx); err != nil {
		s.abort(ctx)
		return nil, err
	}

	return s, nil
}

// WithTenant runs fn with a connection bound to the tenant namespace. The
// transaction commits when fn returns nil and rolls back otherwise. The
// connection is reset and returned to the pool on every exit path, panics
// included.
func (e *Engine[C]) WithTenant(ctx context.Context, tc tenant.Context, fn func(ctx context.Context, s *Session[C]) error) error {
	if tc.IsZero() {
		return tenant.ErrNoTenantInContext
	}
	return e.run(ctx, tc.TenantID, tc.Namespace, fn)
}

// WithDefault runs fn bound to the shared default namespace.
func (e *Engine[C]) WithDefault(ctx context.Context, fn func(ctx context.Context, s *Session[C]) error) error {
	return e.run(ctx, uuid.Nil, e.opts.defaultNamespace, fn)
}

// WithNamespace runs fn bound to an explicit namespace. It exists for
// administrative work on namespaces that have no tenant row.
func (e *Engine[C]) WithNamespace(ctx context.Context, namespace string, fn func(ctx context.Context, s *Session[C]) error) error {
	return e.run(ctx, uuid.Nil, namespace, fn)
}

func (e *Engine[C]) run(ctx context.Context, tenantID uuid.UUID, namespace string, fn func(ctx context.Context, s *Session[C]) error) (err error) {
	s, err := e.bind(ctx, tenantID, namespace)
	if err != nil {
		return err
	}

	defer func() {
		if r := recover(); r != nil {
			if relErr := s.Release(ctx, false); relErr != nil {
				e.opts.logger.ErrorContext(ctx, "release after panic failed",
					slog.String("namespace", namespace),
					logger.Error(relErr))
			}
			panic(r)
		}
	}()

	fnErr := fn(ctx, s)
	relErr := s.Release(ctx, fnErr == nil)
	if fnErr != nil {
		if relErr != nil {
			e.opts.logger.WarnContext(ctx, "rollback failed",
				slog.String("namespace", namespace),
				logger.Error(relErr))
		}
		return fnErr
	}
	return relErr
}

// Do runs fn on the guarded connection of s.
func Do[C Conn](ctx context.Context, s *Session[C], fn func(C) error) error {
	conn, err := s.Conn(ctx)
	if err != nil {
		return err
	}
	return fn(conn)
}

// Query runs fn on the guarded connection of s and returns its result.
func Query[C Conn, T any](ctx context.Context, s *Session[C], fn func(C) (T, error)) (T, error) {
	conn, err := s.Conn(ctx)
	if err != nil {
		var zero T
		return zero, err
	}
	return fn(conn)
}

// InTenant is a convenience over Engine.WithTenant for a single guarded call.
func InTenant[C Conn](ctx context.Context, e *Engine[C], tc tenant.Context, fn func(C) error) error {
	return e.WithTenant(ctx, tc, func(ctx context.Context, s *Session[C]) error {
		return Do(ctx, s, fn)
	})
}
