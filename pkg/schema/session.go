package schema

import (
	"context"
	"errors"
	"log/slog"
	"sync"

	"github.com/google/uuid"

	"github.com/dmitrymomot/boundary/pkg/logger"
)

// State is the binding state of one unit of work.
type State int

const (
	StateUnbound State = iota
	StateBinding
	StateBound
	StateReleased
)

func (s State) String() string {
	switch s {
	case StateUnbound:
		return "unbound"
	case StateBinding:
		return "binding"
	case StateBound:
		return "bound"
	case StateReleased:
		return "released"
	}
	return "unknown"
}

// Session owns one checked-out connection bound to one namespace.
// It must not be shared across goroutines that run different units of work.
type Session[C Conn] struct {
	mu        sync.Mutex
	conn      C
	tenantID  uuid.UUID
	namespace string
	state     State
	logger    *slog.Logger
}

// TenantID returns the bound tenant, or uuid.Nil for shared namespaces.
func (s *Session[C]) TenantID() uuid.UUID { return s.tenantID }

// Namespace returns the namespace this session was bound to.
func (s *Session[C]) Namespace() string { return s.namespace }

// State returns the current binding state.
func (s *Session[C]) State() State {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

// Conn returns the data connection after verifying the binding.
// Every data access goes through here so the guard cannot be skipped.
func (s *Session[C]) Conn(ctx context.Context) (C, error) {
	if err := s.Guard(ctx); err != nil {
		var zero C
		return zero, err
	}
	return s.conn, nil
}

// Guard asserts that the backend's active namespace equals the bound one.
// A mismatch is logged at error level and returned as *IsolationError.
func (s *Session[C]) Guard(ctx context.Context) error {
	s.mu.Lock()
	state := s.state
	s.mu.Unlock()

	switch state {
	case StateReleased:
		return ErrSessionReleased
	case StateBound:
	default:
		return ErrNotBound
	}

	actual, err := s.conn.Namespace(ctx)
	if err != nil {
		return &BindingError{Namespace: s.namespace, Err: err}
	}
	if actual != s.namespace {
		ierr := &IsolationError{TenantID: s.tenantID, Expected: s.namespace, Actual: actual}
		s.logger.ErrorContext(ctx, "tenant isolation violation",
			logger.TenantID(s.tenantID),
			slog.String("expected_namespace", s.namespace),
			slog.String("actual_namespace", actual))
		return ierr
	}
	return nil
}

// Release resets the namespace, ends the transaction and returns the
// connection to the pool. Commit is honoured only if the reset succeeded.
// Release ignores caller cancellation and is safe to call more than once.
func (s *Session[C]) Release(ctx context.Context, commit bool) error {
	s.mu.Lock()
	if s.state == StateReleased || s.state == StateUnbound {
		s.mu.Unlock()
		return nil
	}
	s.state = StateReleased
	s.mu.Unlock()

	ctx = context.WithoutCancel(ctx)
	resetErr := s.conn.ResetNamespace(ctx)
	closeErr := s.conn.Close(ctx, commit && resetErr == nil)
	if err := errors.Join(resetErr, closeErr); err != nil {
		s.logger.WarnContext(ctx, "session release failed",
			logger.Namespace(s.namespace),
			logger.Error(err))
		return err
	}
	return nil
}

// abort returns the connection after a failed bind and leaves the session
// unbound.
func (s *Session[C]) abort(ctx context.Context) {
	ctx = context.WithoutCancel(ctx)
	_ = s.conn.ResetNamespace(ctx)
	if err := s.conn.Close(ctx, false); err != nil {
		s.logger.WarnContext(ctx, "connection close after failed bind",
			logger.Namespace(s.namespace),
			logger.Error(err))
	}
	s.mu.Lock()
	s.state = StateUnbound
	s.mu.Unlock()
}
