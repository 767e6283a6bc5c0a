package adminapi

import (
	"errors"
	"net/http"

	"github.com/dmitrymomot/boundary/pkg/migration"
	"github.com/dmitrymomot/boundary/pkg/provision"
	"github.com/dmitrymomot/boundary/pkg/tenant"
)

var (
	ErrInvalidID      = errors.New("adminapi: invalid id")
	ErrInvalidVersion = errors.New("adminapi: invalid migration version")
	ErrInvalidBody    = errors.New("adminapi: invalid request body")
	ErrUnauthorized   = errors.New("adminapi: unauthorized")
)

// errorStatus maps a domain error to a status and a stable code.
func errorStatus(err error) (int, string) {
	var (
		perr *provision.Error
		merr *migration.Error
	)
	switch {
	case errors.Is(err, ErrInvalidID), errors.Is(err, ErrInvalidVersion), errors.Is(err, ErrInvalidBody):
		return http.StatusBadRequest, "bad_request"
	case errors.Is(err, tenant.ErrInvalidSlug):
		return http.StatusBadRequest, "invalid_slug"
	case errors.Is(err, provision.ErrInvalidMode):
		return http.StatusBadRequest, "invalid_mode"
	case errors.Is(err, tenant.ErrSlugTaken):
		return http.StatusConflict, "slug_taken"
	case errors.Is(err, tenant.ErrTenantNotFound):
		return http.StatusNotFound, "tenant_not_found"
	case errors.Is(err, migration.ErrUnknownVersion):
		return http.StatusNotFound, "unknown_version"
	case errors.Is(err, migration.ErrNoOpenRun):
		return http.StatusNotFound, "no_open_run"
	case errors.Is(err, tenant.ErrInvalidTransition):
		return http.StatusConflict, "invalid_transition"
	case errors.Is(err, provision.ErrNotDeleted):
		return http.StatusConflict, "not_deleted"
	case errors.Is(err, migration.ErrTenantNotMigratable):
		return http.StatusConflict, "tenant_not_migratable"
	case errors.Is(err, migration.ErrNotApplied):
		return http.StatusConflict, "not_applied"
	case errors.Is(err, migration.ErrNotLatest):
		return http.StatusConflict, "not_latest"
	case errors.Is(err, migration.ErrIrreversible):
		return http.StatusConflict, "irreversible"
	case errors.Is(err, migration.ErrRunInProgress):
		return http.StatusConflict, "run_in_progress"
	case errors.Is(err, migration.ErrCanaryNotEligible):
		return http.StatusUnprocessableEntity, "canary_not_eligible"
	case errors.As(err, &perr):
		return http.StatusUnprocessableEntity, "provisioning_failed"
	case errors.Is(err, migration.ErrTemplateFailed), errors.Is(err, migration.ErrCanaryFailed):
		return http.StatusUnprocessableEntity, "rollout_halted"
	case errors.As(err, &merr):
		return http.StatusUnprocessableEntity, "migration_failed"
	}
	return http.StatusInternalServerError, "internal_error"
}

func errorDetail(err error) (int, *ErrorDetail) {
	status, code := errorStatus(err)
	detail := &ErrorDetail{Code: code, Message: err.Error()}
	if status == http.StatusInternalServerError {
		detail.Message = http.StatusText(status)
	}

	var perr *provision.Error
	if errors.As(err, &perr) {
		detail.Details = map[string]any{"step": perr.Step, "slug": perr.Slug}
	}
	var merr *migration.Error
	if errors.As(err, &merr) {
		detail.Details = map[string]any{
			"tenant_id": merr.TenantID,
			"namespace": merr.Namespace,
			"version":   merr.Version,
			"direction": merr.Direction,
		}
	}
	return status, detail
}
