package schema

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"sync"
	"sync/atomic"
	"time"
)

var (
	ErrNamespaceNotFound = errors.New("schema: namespace does not exist")
	ErrNamespaceExists   = errors.New("schema: namespace already exists")
	ErrTableNotFound     = errors.New("schema: table does not exist")
	ErrTableExists       = errors.New("schema: table already exists")
	ErrConnClosed        = errors.New("schema: connection closed")
)

type table map[string]string

var (
	_ Pool[*MemoryConn] = (*MemoryDatabase)(nil)
	_ Conn              = (*MemoryConn)(nil)
)

// MemoryDatabase is an in-process backend with namespaces, tables and
// key/value rows. Each connection keeps an undo journal so Close(false)
// rolls back its writes. It is meant for tests and local development.
type MemoryDatabase struct {
	mu               sync.RWMutex
	namespaces       map[string]map[string]table
	defaultNamespace string

	noOpBinding atomic.Bool
	bindDelay   time.Duration
	bindErr     error
	cloneErr    error

	open     atomic.Int64
	acquired atomic.Int64
}

// MemoryOption configures a MemoryDatabase.
type MemoryOption func(*MemoryDatabase)

// WithNoOpBinding makes SetNamespace report success without switching.
func WithNoOpBinding() MemoryOption {
	return func(db *MemoryDatabase) { db.noOpBinding.Store(true) }
}

// WithBindDelay delays every SetNamespace call.
func WithBindDelay(d time.Duration) MemoryOption {
	return func(db *MemoryDatabase) { db.bindDelay = d }
}

// WithBindError makes every SetNamespace call fail with err.
func WithBindError(err error) MemoryOption {
	return func(db *MemoryDatabase) { db.bindErr = err }
}

// WithCloneError makes CloneStructure fail with err after creating the
// first table, leaving a partially cloned namespace behind.
func WithCloneError(err error) MemoryOption {
	return func(db *MemoryDatabase) { db.cloneErr = err }
}

// WithMemoryDefaultNamespace sets the namespace every connection starts in.
func WithMemoryDefaultNamespace(ns string) MemoryOption {
	return func(db *MemoryDatabase) {
		if ns != "" {
			db.defaultNamespace = ns
		}
	}
}

// NewMemoryDatabase creates a database holding only the default namespace.
func NewMemoryDatabase(opts ...MemoryOption) *MemoryDatabase {
	db := &MemoryDatabase{
		namespaces:       make(map[string]map[string]table),
		defaultNamespace: DefaultNamespace,
	}
	for _, opt := range opts {
		opt(db)
	}
	db.namespaces[db.defaultNamespace] = make(map[string]table)
	return db
}

// SetNoOpBinding toggles silent binding failure at runtime.
func (db *MemoryDatabase) SetNoOpBinding(v bool) { db.noOpBinding.Store(v) }

// OpenConns returns the number of connections not yet returned.
func (db *MemoryDatabase) OpenConns() int { return int(db.open.Load()) }

// Acquired returns the total number of connections handed out.
func (db *MemoryDatabase) Acquired() int { return int(db.acquired.Load()) }

// Acquire implements Pool.
func (db *MemoryDatabase) Acquire(ctx context.Context) (*MemoryConn, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	db.open.Add(1)
	db.acquired.Add(1)
	return &MemoryConn{db: db, namespace: db.defaultNamespace}, nil
}

// CreateNamespace creates an empty namespace.
func (db *MemoryDatabase) CreateNamespace(_ context.Context, ns string) error {
	db.mu.Lock()
	defer db.mu.Unlock()

	if _, ok := db.namespaces[ns]; ok {
		return fmt.Errorf("%w: %s", ErrNamespaceExists, ns)
	}
	db.namespaces[ns] = make(map[string]table)
	return nil
}

// CloneStructure copies every table of from into to, without rows.
func (db *MemoryDatabase) CloneStructure(_ context.Context, from, to string) error {
	db.mu.Lock()
	defer db.mu.Unlock()

	src, ok := db.namespaces[from]
	if !ok {
		return fmt.Errorf("%w: %s", ErrNamespaceNotFound, from)
	}
	dst, ok := db.namespaces[to]
	if !ok {
		return fmt.Errorf("%w: %s", ErrNamespaceNotFound, to)
	}

	names := make([]string, 0, len(src))
	for name := range src {
		names = append(names, name)
	}
	slices.Sort(names)

	for _, name := range names {
		dst[name] = make(table)
		if db.cloneErr != nil {
			return db.cloneErr
		}
	}
	return db.cloneErr
}

// DropNamespace removes a namespace and everything in it. Missing
// namespaces are ignored.
func (db *MemoryDatabase) DropNamespace(_ context.Context, ns string) error {
	db.mu.Lock()
	defer db.mu.Unlock()

	delete(db.namespaces, ns)
	return nil
}

// NamespaceExists reports whether ns exists.
func (db *MemoryDatabase) NamespaceExists(_ context.Context, ns string) (bool, error) {
	db.mu.RLock()
	defer db.mu.RUnlock()

	_, ok := db.namespaces[ns]
	return ok, nil
}

// Tables lists the tables of ns in name order.
func (db *MemoryDatabase) Tables(ns string) []string {
	db.mu.RLock()
	defer db.mu.RUnlock()

	out := make([]string, 0, len(db.namespaces[ns]))
	for name := range db.namespaces[ns] {
		out = append(out, name)
	}
	slices.Sort(out)
	return out
}

// MemoryConn is a connection to a MemoryDatabase.
type MemoryConn struct {
	db        *MemoryDatabase
	mu        sync.Mutex
	namespace string
	closed    bool
	undo      []func()
}

func (c *MemoryConn) SetNamespace(ctx context.Context, ns string) error {
	if d := c.db.bindDelay; d > 0 {
		t := time.NewTimer(d)
		defer t.Stop()
		select {
		case <-t.C:
		case <-ctx.Done():
			return ctx.Err()
		}
	}
	if c.db.bindErr != nil {
		return c.db.bindErr
	}
	if c.db.noOpBinding.Load() {
		return nil
	}

	if ok, _ := c.db.NamespaceExists(ctx, ns); !ok {
		return fmt.Errorf("%w: %s", ErrNamespaceNotFound, ns)
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return ErrConnClosed
	}
	c.namespace = ns
	return nil
}

func (c *MemoryConn) Namespace(context.Context) (string, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return "", ErrConnClosed
	}
	return c.namespace, nil
}

func (c *MemoryConn) ResetNamespace(context.Context) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.namespace = c.db.defaultNamespace
	return nil
}

// Close commits or rolls back the journal and returns the connection.
func (c *MemoryConn) Close(_ context.Context, commit bool) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return nil
	}
	c.closed = true

	if !commit {
		c.db.mu.Lock()
		for i := len(c.undo) - 1; i >= 0; i-- {
			c.undo[i]()
		}
		c.db.mu.Unlock()
	}
	c.undo = nil
	c.db.open.Add(-1)
	return nil
}

// CreateTable creates a table in the active namespace.
func (c *MemoryConn) CreateTable(_ context.Context, name string) error {
	return c.write(func(tables map[string]table, ns string) (func(), error) {
		if _, ok := tables[name]; ok {
			return nil, fmt.Errorf("%w: %s.%s", ErrTableExists, ns, name)
		}
		tables[name] = make(table)
		return func() { delete(tables, name) }, nil
	})
}

// DropTable removes a table from the active namespace.
func (c *MemoryConn) DropTable(_ context.Context, name string) error {
	return c.write(func(tables map[string]table, ns string) (func(), error) {
		t, ok := tables[name]
		if !ok {
			return nil, fmt.Errorf("%w: %s.%s", ErrTableNotFound, ns, name)
		}
		delete(tables, name)
		return func() { tables[name] = t }, nil
	})
}

// Put stores value under key.
func (c *MemoryConn) Put(_ context.Context, tbl, key, value string) error {
	return c.write(func(tables map[string]table, ns string) (func(), error) {
		t, ok := tables[tbl]
		if !ok {
			return nil, fmt.Errorf("%w: %s.%s", ErrTableNotFound, ns, tbl)
		}
		prev, existed := t[key]
		t[key] = value
		return func() {
			if existed {
				t[key] = prev
			} else {
				delete(t, key)
			}
		}, nil
	})
}

// Delete removes key. Missing keys are ignored.
func (c *MemoryConn) Delete(_ context.Context, tbl, key string) error {
	return c.write(func(tables map[string]table, ns string) (func(), error) {
		t, ok := tables[tbl]
		if !ok {
			return nil, fmt.Errorf("%w: %s.%s", ErrTableNotFound, ns, tbl)
		}
		prev, existed := t[key]
		if !existed {
			return nil, nil
		}
		delete(t, key)
		return func() { t[key] = prev }, nil
	})
}

// Get reads key.
func (c *MemoryConn) Get(_ context.Context, tbl, key string) (string, bool, error) {
	var (
		v  string
		ok bool
	)
	err := c.read(func(tables map[string]table, ns string) error {
		t, exists := tables[tbl]
		if !exists {
			return fmt.Errorf("%w: %s.%s", ErrTableNotFound, ns, tbl)
		}
		v, ok = t[key]
		return nil
	})
	return v, ok, err
}

// Keys lists the keys of a table in sorted order.
func (c *MemoryConn) Keys(_ context.Context, tbl string) ([]string, error) {
	var keys []string
	err := c.read(func(tables map[string]table, ns string) error {
		t, exists := tables[tbl]
		if !exists {
			return fmt.Errorf("%w: %s.%s", ErrTableNotFound, ns, tbl)
		}
		keys = make([]string, 0, len(t))
		for k := range t {
			keys = append(keys, k)
		}
		return nil
	})
	slices.Sort(keys)
	return keys, err
}

// HasTable reports whether the active namespace has the table.
func (c *MemoryConn) HasTable(_ context.Context, tbl string) (bool, error) {
	var ok bool
	err := c.read(func(tables map[string]table, _ string) error {
		_, ok = tables[tbl]
		return nil
	})
	return ok, err
}

func (c *MemoryConn) write(fn func(tables map[string]table, ns string) (func(), error)) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return ErrConnClosed
	}

	c.db.mu.Lock()
	defer c.db.mu.Unlock()

	tables, ok := c.db.namespaces[c.namespace]
	if !ok {
		return fmt.Errorf("%w: %s", ErrNamespaceNotFound, c.namespace)
	}
	undo, err := fn(tables, c.namespace)
	if err != nil {
		return err
	}
	if undo != nil {
		c.undo = append(c.undo, undo)
	}
	return nil
}

func (c *MemoryConn) read(fn func(tables map[string]table, ns string) error) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return ErrConnClosed
	}

	c.db.mu.RLock()
	defer c.db.mu.RUnlock()

	tables, ok := c.db.namespaces[c.namespace]
	if !ok {
		return fmt.Errorf("%w: %s", ErrNamespaceNotFound, c.namespace)
	}
	return fn(tables, c.namespace)
}
