package schema

import (
	"errors"
	"fmt"

	"github.com/google/uuid"
)

var (
	ErrBindingFailed      = errors.New("schema: namespace binding failed")
	ErrIsolationViolation = errors.New("schema: tenant isolation violation")
	ErrSessionReleased    = errors.New("schema: session already released")
	ErrNotBound           = errors.New("schema: session is not bound")
	ErrInvalidNamespace   = errors.New("schema: invalid namespace")
)

// BindingError reports a failed namespace selection. The connection has
// already been returned to the pool when this error surfaces.
type BindingError struct {
	Namespace string
	Err       error
}

func (e *BindingError) Error() string {
	return fmt.Sprintf("schema: bind %q: %v", e.Namespace, e.Err)
}

func (e *BindingError) Is(target error) bool { return target == ErrBindingFailed }

func (e *BindingError) Unwrap() error { return e.Err }

// IsolationError reports that the active namespace of a connection differs
// from the namespace the unit of work was bound to. It always indicates a bug
// in the binding mechanism and must never be retried or swallowed.
type IsolationError struct {
	TenantID uuid.UUID
	Expected string
	Actual   string
}

func (e *IsolationError) Error() string {
	return fmt.Sprintf("schema: isolation violation for tenant %s: expected namespace %q, active %q",
		e.TenantID, e.Expected, e.Actual)
}

func (e *IsolationError) Is(target error) bool { return target == ErrIsolationViolation }

// IsIsolationViolation reports whether err carries an IsolationError.
func IsIsolationViolation(err error) bool {
	return errors.Is(err, ErrIsolationViolation)
}
