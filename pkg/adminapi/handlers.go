package adminapi

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/dmitrymomot/boundary/pkg/migration"
	"github.com/dmitrymomot/boundary/pkg/provision"
	"github.com/dmitrymomot/boundary/pkg/tenant"
)

const maxBodySize = 1 << 20

type createTenantRequest struct {
	Slug string `json:"slug"`
	Name string `json:"name"`
	Plan string `json:"plan"`
}

type migrateAllRequest struct {
	IncludeSuspended bool      `json:"include_suspended"`
	Canary           uuid.UUID `json:"canary"`
	Target           int64     `json:"target"`
}

type migrateTenantRequest struct {
	Target int64 `json:"target"`
}

func (a *API) createTenant(w http.ResponseWriter, r *http.Request) {
	var req createTenantRequest
	if err := decode(w, r, &req); err != nil {
		a.fail(w, r, err)
		return
	}

	t, err := a.provisioner.Provision(r.Context(), provision.Request{
		Slug: req.Slug,
		Name: req.Name,
		Plan: req.Plan,
	})
	if err != nil {
		a.fail(w, r, err)
		return
	}
	respond(w, http.StatusCreated, t)
}

// listTenants accepts ?status=active,suspended. Without a filter every
// tenant is listed.
func (a *API) listTenants(w http.ResponseWriter, r *http.Request) {
	var statuses []tenant.Status
	if raw := r.URL.Query().Get("status"); raw != "" {
		for _, s := range strings.Split(raw, ",") {
			st := tenant.Status(strings.TrimSpace(s))
			if !st.Valid() {
				a.fail(w, r, fmt.Errorf("%w: unknown status %q", ErrInvalidBody, s))
				return
			}
			statuses = append(statuses, st)
		}
	}

	list, err := a.registry.List(r.Context(), statuses...)
	if err != nil {
		a.fail(w, r, err)
		return
	}
	if list == nil {
		list = []*tenant.Tenant{}
	}
	writeJSON(w, http.StatusOK, Envelope{Data: list, Meta: map[string]int{"total": len(list)}})
}

func (a *API) getTenant(w http.ResponseWriter, r *http.Request) {
	id, err := tenantID(r)
	if err != nil {
		a.fail(w, r, err)
		return
	}
	t, err := a.registry.GetByID(r.Context(), id)
	if err != nil {
		a.fail(w, r, err)
		return
	}
	respond(w, http.StatusOK, t)
}

func (a *API) suspendTenant(w http.ResponseWriter, r *http.Request) {
	a.transition(w, r, a.provisioner.Suspend)
}

func (a *API) activateTenant(w http.ResponseWriter, r *http.Request) {
	a.transition(w, r, a.provisioner.Activate)
}

func (a *API) transition(w http.ResponseWriter, r *http.Request, fn func(context.Context, uuid.UUID) (*tenant.Tenant, error)) {
	id, err := tenantID(r)
	if err != nil {
		a.fail(w, r, err)
		return
	}
	t, err := fn(r.Context(), id)
	if err != nil {
		a.fail(w, r, err)
		return
	}
	respond(w, http.StatusOK, t)
}

// deleteTenant soft-deletes by default. ?mode=hard destroys a tenant that is
// already soft-deleted and answers 204.
func (a *API) deleteTenant(w http.ResponseWriter, r *http.Request) {
	id, err := tenantID(r)
	if err != nil {
		a.fail(w, r, err)
		return
	}
	mode, err := provision.ParseMode(r.URL.Query().Get("mode"))
	if err != nil {
		a.fail(w, r, err)
		return
	}

	t, err := a.provisioner.Deprovision(r.Context(), id, mode)
	if err != nil {
		a.fail(w, r, err)
		return
	}
	if t == nil {
		w.WriteHeader(http.StatusNoContent)
		return
	}
	respond(w, http.StatusOK, t)
}

// purgeTenants hard-deletes tenants soft-deleted longer than ?retention ago.
func (a *API) purgeTenants(w http.ResponseWriter, r *http.Request) {
	retention := DefaultPurgeRetention
	if raw := r.URL.Query().Get("retention"); raw != "" {
		d, err := time.ParseDuration(raw)
		if err != nil || d < 0 {
			a.fail(w, r, fmt.Errorf("%w: retention %q", ErrInvalidBody, raw))
			return
		}
		retention = d
	}

	purged, err := a.provisioner.PurgeExpired(r.Context(), retention)
	if purged == nil {
		purged = []uuid.UUID{}
	}
	if err != nil {
		status, detail := errorDetail(err)
		if status < http.StatusInternalServerError {
			status = http.StatusUnprocessableEntity
		}
		writeJSON(w, status, Envelope{Data: map[string]any{"purged": purged}, Error: detail})
		return
	}
	respond(w, http.StatusOK, map[string]any{"purged": purged})
}

// migrateAll always answers with the report when one exists. A halted
// rollout is 422 with the report in data.
func (a *API) migrateAll(w http.ResponseWriter, r *http.Request) {
	var req migrateAllRequest
	if err := decode(w, r, &req); err != nil {
		a.fail(w, r, err)
		return
	}

	report, err := a.migrator.MigrateAll(r.Context(), migration.Options{
		IncludeSuspended: req.IncludeSuspended,
		Canary:           req.Canary,
		Target:           req.Target,
	})
	if report == nil {
		a.fail(w, r, err)
		return
	}
	if err != nil {
		status, detail := errorDetail(err)
		writeJSON(w, status, Envelope{Data: newReportView(report), Error: detail})
		return
	}
	respond(w, http.StatusOK, newReportView(report))
}

func (a *API) migrateTenant(w http.ResponseWriter, r *http.Request) {
	id, err := tenantID(r)
	if err != nil {
		a.fail(w, r, err)
		return
	}
	var req migrateTenantRequest
	if err := decode(w, r, &req); err != nil {
		a.fail(w, r, err)
		return
	}

	res, err := a.migrator.MigrateTenant(r.Context(), id, req.Target)
	if res == nil {
		a.fail(w, r, err)
		return
	}
	if err != nil {
		status, detail := errorDetail(err)
		writeJSON(w, status, Envelope{Data: newResultView(res), Error: detail})
		return
	}
	respond(w, http.StatusOK, newResultView(res))
}

func (a *API) rollbackTenant(w http.ResponseWriter, r *http.Request) {
	id, err := tenantID(r)
	if err != nil {
		a.fail(w, r, err)
		return
	}
	version, err := strconv.ParseInt(chi.URLParam(r, "version"), 10, 64)
	if err != nil || version <= 0 {
		a.fail(w, r, ErrInvalidVersion)
		return
	}

	run, err := a.migrator.Rollback(r.Context(), id, version)
	if err != nil {
		if run != nil {
			status, detail := errorDetail(err)
			writeJSON(w, status, Envelope{Data: run, Error: detail})
			return
		}
		a.fail(w, r, err)
		return
	}
	respond(w, http.StatusOK, run)
}

// abandonRun fails runs left open by a crashed process. The template
// namespace is addressed with the nil uuid.
func (a *API) abandonRun(w http.ResponseWriter, r *http.Request) {
	id, err := tenantID(r)
	if err != nil {
		a.fail(w, r, err)
		return
	}
	version, err := strconv.ParseInt(chi.URLParam(r, "version"), 10, 64)
	if err != nil || version <= 0 {
		a.fail(w, r, ErrInvalidVersion)
		return
	}

	runs, err := a.migrator.AbandonRun(r.Context(), id, version, r.URL.Query().Get("reason"))
	if err != nil {
		a.fail(w, r, err)
		return
	}
	respond(w, http.StatusOK, runs)
}

func (a *API) tenantHistory(w http.ResponseWriter, r *http.Request) {
	id, err := tenantID(r)
	if err != nil {
		a.fail(w, r, err)
		return
	}
	if _, err := a.registry.GetByID(r.Context(), id); err != nil {
		a.fail(w, r, err)
		return
	}

	runs, err := a.migrator.History(r.Context(), id)
	if err != nil {
		a.fail(w, r, err)
		return
	}
	if runs == nil {
		runs = []*migration.Run{}
	}
	respond(w, http.StatusOK, historyView{
		TenantID: id,
		Applied:  migration.SortedVersions(migration.AppliedVersions(runs)),
		Runs:     runs,
	})
}

func tenantID(r *http.Request) (uuid.UUID, error) {
	id, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		return uuid.Nil, ErrInvalidID
	}
	return id, nil
}

// decode reads a JSON body into v. An empty body leaves v untouched.
func decode(w http.ResponseWriter, r *http.Request, v any) error {
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodySize))
	dec.DisallowUnknownFields()
	if err := dec.Decode(v); err != nil && !errors.Is(err, io.EOF) {
		return fmt.Errorf("%w: %v", ErrInvalidBody, err)
	}
	return nil
}
