package schema

import "context"

// Conn is one checked-out database connection with an open transaction.
// Implementations scope namespace selection to that transaction, never to the
// physical connection, because the pool hands connections to every tenant.
type Conn interface {
	// SetNamespace selects the active namespace for the current transaction.
	SetNamespace(ctx context.Context, namespace string) error
	// Namespace reports the namespace the backend will actually use.
	Namespace(ctx context.Context) (string, error)
	// ResetNamespace restores the default namespace before the connection is reused.
	ResetNamespace(ctx context.Context) error
	// Close ends the transaction (commit or rollback) and returns the
	// connection to its pool. It must be safe to call on a broken connection.
	Close(ctx context.Context, commit bool) error
}

// Pool hands out connections shared by all tenants.
type Pool[C Conn] interface {
	Acquire(ctx context.Context) (C, error)
}

// PoolFunc adapts a function to the Pool interface.
type PoolFunc[C Conn] func(ctx context.Context) (C, error)

func (f PoolFunc[C]) Acquire(ctx context.Context) (C, error) { return f(ctx) }
