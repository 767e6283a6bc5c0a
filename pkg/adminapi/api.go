package adminapi

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/google/uuid"

	"github.com/dmitrymomot/boundary/pkg/logger"
	"github.com/dmitrymomot/boundary/pkg/migration"
	"github.com/dmitrymomot/boundary/pkg/provision"
	"github.com/dmitrymomot/boundary/pkg/tenant"
)

// DefaultPurgeRetention applies when a purge request names no retention.
const DefaultPurgeRetention = 30 * 24 * time.Hour

// Provisioner is implemented by *provision.Service.
type Provisioner interface {
	Provision(ctx context.Context, req provision.Request) (*tenant.Tenant, error)
	Suspend(ctx context.Context, id uuid.UUID) (*tenant.Tenant, error)
	Activate(ctx context.Context, id uuid.UUID) (*tenant.Tenant, error)
	Deprovision(ctx context.Context, id uuid.UUID, mode provision.Mode) (*tenant.Tenant, error)
	PurgeExpired(ctx context.Context, retention time.Duration) ([]uuid.UUID, error)
}

// Registry is the read side of the tenant registry.
type Registry interface {
	GetByID(ctx context.Context, id uuid.UUID) (*tenant.Tenant, error)
	List(ctx context.Context, statuses ...tenant.Status) ([]*tenant.Tenant, error)
}

// Migrator is implemented by *migration.Orchestrator for any connection type.
type Migrator interface {
	MigrateAll(ctx context.Context, opts migration.Options) (*migration.Report, error)
	MigrateTenant(ctx context.Context, tenantID uuid.UUID, target int64) (*migration.TenantResult, error)
	Rollback(ctx context.Context, tenantID uuid.UUID, version int64) (*migration.Run, error)
	History(ctx context.Context, tenantID uuid.UUID) ([]*migration.Run, error)
	AbandonRun(ctx context.Context, tenantID uuid.UUID, version int64, reason string) ([]*migration.Run, error)
}

// API serves the management endpoints.
type API struct {
	provisioner Provisioner
	registry    Registry
	migrator    Migrator
	token       string
	logger      *slog.Logger
}

// Option configures an API.
type Option func(*API)

// WithToken sets the bearer token every request must present. Without a
// token the API rejects all requests.
func WithToken(token string) Option {
	return func(a *API) { a.token = token }
}

func WithLogger(l *slog.Logger) Option {
	return func(a *API) {
		if l != nil {
			a.logger = l
		}
	}
}

func New(p Provisioner, r Registry, m Migrator, opts ...Option) *API {
	a := &API{
		provisioner: p,
		registry:    r,
		migrator:    m,
		logger:      slog.Default(),
	}
	for _, opt := range opts {
		opt(a)
	}
	return a
}

// Router returns the management routes, guarded by the bearer token.
func (a *API) Router() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.Recoverer)
	r.Use(BearerToken(a.token))

	r.Route("/tenants", func(r chi.Router) {
		r.Post("/", a.createTenant)
		r.Get("/", a.listTenants)
		r.Post("/purge", a.purgeTenants)

		r.Route("/{id}", func(r chi.Router) {
			r.Get("/", a.getTenant)
			r.Delete("/", a.deleteTenant)
			r.Post("/suspend", a.suspendTenant)
			r.Post("/activate", a.activateTenant)

			r.Get("/migrations", a.tenantHistory)
			r.Post("/migrations", a.migrateTenant)
			r.Post("/migrations/{version}/rollback", a.rollbackTenant)
			r.Post("/migrations/{version}/abandon", a.abandonRun)
		})
	})
	r.Post("/migrations", a.migrateAll)

	return r
}

func (a *API) fail(w http.ResponseWriter, r *http.Request, err error) {
	status, detail := errorDetail(err)
	if status >= http.StatusInternalServerError {
		a.logger.ErrorContext(r.Context(), "admin request failed",
			slog.String("method", r.Method),
			slog.String("path", r.URL.Path),
			logger.Error(err))
	}
	respondError(w, status, detail)
}
