package migration

import (
	"errors"
	"fmt"

	"github.com/google/uuid"
)

var (
	ErrMigrationFailed      = errors.New("migration: failed")
	ErrRunInProgress        = errors.New("migration: another run for this tenant and version is in progress")
	ErrRunNotFound          = errors.New("migration: run not found")
	ErrRunFinalized         = errors.New("migration: run already finished")
	ErrNoOpenRun            = errors.New("migration: no open run for this tenant and version")
	ErrHistoryNotRecorded   = errors.New("migration: run outcome could not be recorded")
	ErrInvalidSet           = errors.New("migration: invalid migration set")
	ErrUnknownVersion       = errors.New("migration: unknown version")
	ErrNotApplied           = errors.New("migration: version is not applied")
	ErrNotLatest            = errors.New("migration: only the latest applied version can be rolled back")
	ErrIrreversible         = errors.New("migration: version has no down step")
	ErrTenantNotMigratable  = errors.New("migration: tenant status does not allow migrations")
	ErrCanaryNotEligible    = errors.New("migration: canary tenant is not eligible for this run")
	ErrTemplateFailed       = errors.New("migration: template namespace migration failed")
	ErrCanaryFailed         = errors.New("migration: canary migration failed")
	ErrInvalidMigrationFile = errors.New("migration: invalid migration file")
)

// Error describes one failed migration step of one tenant. It is returned to
// administrative callers as is so they can decide on a retry.
type Error struct {
	TenantID  uuid.UUID
	Namespace string
	Version   int64
	Direction Direction
	Err       error
}

func (e *Error) Error() string {
	return fmt.Sprintf("migration: tenant %s (%s) version %d %s: %v",
		e.TenantID, e.Namespace, e.Version, e.Direction, e.Err)
}

func (e *Error) Is(target error) bool { return target == ErrMigrationFailed }

func (e *Error) Unwrap() error { return e.Err }
