package provision

import (
	"errors"
	"fmt"

	"github.com/google/uuid"
)

var (
	ErrProvisioningFailed = errors.New("provision: failed")
	ErrNotDeleted         = errors.New("provision: hard deletion requires a soft-deleted tenant")
	ErrInvalidMode        = errors.New("provision: invalid deprovision mode")
)

// Error reports the step of an administrative workflow that failed.
// Compensation errors, if any, are joined into Err.
type Error struct {
	TenantID uuid.UUID
	Slug     string
	Step     Step
	Err      error
}

func (e *Error) Error() string {
	return fmt.Sprintf("provision: tenant %s (%s) step %s: %v", e.Slug, e.TenantID, e.Step, e.Err)
}

func (e *Error) Is(target error) bool { return target == ErrProvisioningFailed }

func (e *Error) Unwrap() error { return e.Err }
