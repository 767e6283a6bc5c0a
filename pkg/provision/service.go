package provision

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/dmitrymomot/boundary/pkg/logger"
	"github.com/dmitrymomot/boundary/pkg/tenant"
)

// DefaultTemplateNamespace holds the structure new tenants are cloned from.
const DefaultTemplateNamespace = "tenant_template"

// Namespaces manages physical namespaces. Implementations must make
// DropNamespace idempotent.
type Namespaces interface {
	CreateNamespace(ctx context.Context, ns string) error
	CloneStructure(ctx context.Context, from, to string) error
	DropNamespace(ctx context.Context, ns string) error
	NamespaceExists(ctx context.Context, ns string) (bool, error)
}

// Baseliner seeds a new tenant's migration history from the template.
// FreezeTemplate blocks template migrations until release is called and
// reports the versions the template holds, so the clone and the seeded
// history always describe the same structure.
type Baseliner interface {
	FreezeTemplate(ctx context.Context) (versions []int64, release func(), err error)
	Baseline(ctx context.Context, tenantID uuid.UUID, versions []int64) error
}

// Invalidator drops cached resolutions of a tenant.
type Invalidator interface {
	Invalidate(ctx context.Context, slug string)
}

// CacheFlusher removes every cache entry of a tenant.
type CacheFlusher interface {
	FlushTenant(ctx context.Context, tenantID uuid.UUID) error
}

// Request describes a tenant to provision. An empty Slug is derived from Name.
type Request struct {
	Slug string `json:"slug"`
	Name string `json:"name"`
	Plan string `json:"plan,omitempty"`
}

// workflow is the state one plan execution carries between effects.
type workflow struct {
	tenant   *tenant.Tenant
	versions []int64
	release  func()
}

func (w *workflow) thaw() {
	if w.release != nil {
		w.release()
		w.release = nil
	}
}

// Service owns tenant creation, lifecycle transitions and destruction.
type Service struct {
	registry          tenant.Registry
	namespaces        Namespaces
	baseliner         Baseliner
	invalidator       Invalidator
	flusher           CacheFlusher
	templateNamespace string
	now               func() time.Time
	logger            *slog.Logger
}

// Option configures a Service.
type Option func(*Service)

// WithBaseliner seeds migration history of new tenants.
func WithBaseliner(b Baseliner) Option {
	return func(s *Service) { s.baseliner = b }
}

// WithInvalidator invalidates resolver caches on every status change.
func WithInvalidator(i Invalidator) Option {
	return func(s *Service) { s.invalidator = i }
}

// WithCacheFlusher drops the cache entries of hard-deleted tenants.
func WithCacheFlusher(f CacheFlusher) Option {
	return func(s *Service) { s.flusher = f }
}

// WithTemplateNamespace sets the namespace new tenants are cloned from.
func WithTemplateNamespace(ns string) Option {
	return func(s *Service) {
		if ns != "" {
			s.templateNamespace = ns
		}
	}
}

// WithClock overrides time.Now.
func WithClock(now func() time.Time) Option {
	return func(s *Service) {
		if now != nil {
			s.now = now
		}
	}
}

// WithLogger sets the service logger.
func WithLogger(l *slog.Logger) Option {
	return func(s *Service) {
		if l != nil {
			s.logger = l
		}
	}
}

// NewService creates a provisioning service.
func NewService(registry tenant.Registry, namespaces Namespaces, opts ...Option) *Service {
	s := &Service{
		registry:          registry,
		namespaces:        namespaces,
		templateNamespace: DefaultTemplateNamespace,
		now:               time.Now,
		logger:            slog.Default(),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Provision validates the slug, registers the tenant, creates its namespace
// from the template and activates it. Any failure after registration drops
// the namespace and deletes the record, so no half-provisioned tenant is
// left behind.
func (s *Service) Provision(ctx context.Context, req Request) (*tenant.Tenant, error) {
	slug := strings.TrimSpace(req.Slug)
	if slug == "" {
		slug = tenant.SuggestSlug(req.Name)
	}
	if err := tenant.ValidateSlug(slug); err != nil {
		return nil, err
	}

	switch _, err := s.registry.GetBySlug(ctx, slug); {
	case err == nil:
		return nil, tenant.ErrSlugTaken
	case !errors.Is(err, tenant.ErrTenantNotFound):
		return nil, fmt.Errorf("provision: check slug: %w", err)
	}

	name := strings.TrimSpace(req.Name)
	if name == "" {
		name = slug
	}
	now := s.now()
	t := &tenant.Tenant{
		ID:        uuid.New(),
		Slug:      slug,
		Name:      name,
		Namespace: tenant.NamespaceName(slug),
		Status:    tenant.StatusProvisioning,
		Plan:      req.Plan,
		CreatedAt: now,
		UpdatedAt: now,
	}

	w := &workflow{tenant: t}
	defer w.thaw()

	done, err := s.execute(ctx, w, PlanProvision(s.baseliner != nil))
	w.thaw()
	if err != nil {
		if len(done) == 0 && errors.Is(err, tenant.ErrSlugTaken) {
			return nil, tenant.ErrSlugTaken
		}

		var perr *Error
		if !errors.As(err, &perr) {
			perr = &Error{TenantID: t.ID, Slug: t.Slug, Err: err}
		}
		if _, cerr := s.execute(context.WithoutCancel(ctx), w, PlanCompensation(done)); cerr != nil {
			perr.Err = errors.Join(perr.Err, fmt.Errorf("compensation: %w", cerr))
		}

		s.logger.ErrorContext(ctx, "tenant provisioning failed",
			logger.TenantID(t.ID),
			logger.TenantSlug(t.Slug),
			logger.Step(string(perr.Step)),
			logger.Error(perr.Err))
		return nil, perr
	}

	s.logger.InfoContext(ctx, "tenant provisioned",
		logger.TenantID(t.ID),
		logger.TenantSlug(t.Slug),
		logger.Namespace(t.Namespace))
	return t, nil
}

// Suspend blocks ordinary business access. The namespace is kept and
// in-flight units of work finish normally.
func (s *Service) Suspend(ctx context.Context, id uuid.UUID) (*tenant.Tenant, error) {
	return s.transition(ctx, id, tenant.EventSuspend)
}

// Activate restores access to a suspended tenant.
func (s *Service) Activate(ctx context.Context, id uuid.UUID) (*tenant.Tenant, error) {
	return s.transition(ctx, id, tenant.EventActivate)
}

// Deprovision soft-deletes a tenant or, in hard mode, drops the namespace and
// the record of a tenant that is already soft-deleted. Hard deletion returns
// a nil tenant.
func (s *Service) Deprovision(ctx context.Context, id uuid.UUID, mode Mode) (*tenant.Tenant, error) {
	t, err := s.registry.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}

	effects, err := PlanDeprovision(t, mode)
	if err != nil {
		return nil, err
	}
	if _, err := s.execute(ctx, &workflow{tenant: t}, effects); err != nil {
		return nil, err
	}

	s.logger.InfoContext(ctx, "tenant deprovisioned",
		logger.TenantID(t.ID),
		logger.TenantSlug(t.Slug),
		slog.String("mode", string(mode)))

	if mode == ModeHard {
		return nil, nil
	}
	return t, nil
}

// PurgeExpired hard-deletes tenants soft-deleted longer than retention ago.
// It keeps going after a failure and returns the purged ids together with
// the joined errors.
func (s *Service) PurgeExpired(ctx context.Context, retention time.Duration) ([]uuid.UUID, error) {
	deleted, err := s.registry.List(ctx, tenant.StatusDeleted)
	if err != nil {
		return nil, fmt.Errorf("provision: list deleted tenants: %w", err)
	}

	cutoff := s.now().Add(-retention)
	var (
		purged []uuid.UUID
		errs   []error
	)
	for _, t := range deleted {
		if t.DeletedAt == nil || t.DeletedAt.After(cutoff) {
			continue
		}
		if err := ctx.Err(); err != nil {
			errs = append(errs, err)
			break
		}
		if _, err := s.Deprovision(ctx, t.ID, ModeHard); err != nil {
			errs = append(errs, err)
			continue
		}
		purged = append(purged, t.ID)
	}
	return purged, errors.Join(errs...)
}

func (s *Service) transition(ctx context.Context, id uuid.UUID, ev tenant.Event) (*tenant.Tenant, error) {
	t, err := s.registry.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}

	effects, err := PlanTransition(t, ev)
	if err != nil {
		return nil, err
	}
	if _, err := s.execute(ctx, &workflow{tenant: t}, effects); err != nil {
		return nil, err
	}

	s.logger.InfoContext(ctx, "tenant status changed",
		logger.TenantID(t.ID),
		logger.TenantSlug(t.Slug),
		slog.String("event", string(ev)),
		logger.Status(string(t.Status)))
	return t, nil
}

// execute applies effects in order and stops at the first failure. It returns
// the effects that completed. The workflow tenant is updated in place when its
// status changes.
func (s *Service) execute(ctx context.Context, w *workflow, effects []Effect) ([]Effect, error) {
	t := w.tenant
	done := make([]Effect, 0, len(effects))
	for _, e := range effects {
		if err := s.apply(ctx, w, e); err != nil {
			if e.Step == StepCreateRecord && errors.Is(err, tenant.ErrSlugTaken) {
				return done, err
			}
			return done, &Error{TenantID: t.ID, Slug: t.Slug, Step: e.Step, Err: err}
		}
		done = append(done, e)
	}
	return done, nil
}

func (s *Service) apply(ctx context.Context, w *workflow, e Effect) error {
	t := w.tenant
	switch e.Step {
	case StepCreateRecord:
		return s.registry.Create(ctx, t)
	case StepCreateNamespace:
		if !tenant.ValidNamespace(t.Namespace) {
			return tenant.ErrInvalidNamespace
		}
		return s.namespaces.CreateNamespace(ctx, t.Namespace)
	case StepFreezeTemplate:
		if s.baseliner == nil {
			return nil
		}
		versions, release, err := s.baseliner.FreezeTemplate(ctx)
		if err != nil {
			return err
		}
		w.versions, w.release = versions, release
		return nil
	case StepCloneStructure:
		return s.namespaces.CloneStructure(ctx, s.templateNamespace, t.Namespace)
	case StepBaseline:
		if s.baseliner == nil {
			return nil
		}
		if err := s.baseliner.Baseline(ctx, t.ID, w.versions); err != nil {
			return err
		}
		w.thaw()
		return nil
	case StepSetStatus:
		updated, err := s.registry.UpdateStatus(ctx, t.ID, e.Status, s.now())
		if err != nil {
			return err
		}
		*t = *updated
		return nil
	case StepDropNamespace:
		if !tenant.ValidNamespace(t.Namespace) {
			return tenant.ErrInvalidNamespace
		}
		return s.namespaces.DropNamespace(ctx, t.Namespace)
	case StepDeleteRecord:
		err := s.registry.Delete(ctx, t.ID)
		if errors.Is(err, tenant.ErrTenantNotFound) {
			return nil
		}
		return err
	case StepFlushCache:
		if s.flusher == nil {
			return nil
		}
		return s.flusher.FlushTenant(ctx, t.ID)
	case StepInvalidate:
		if s.invalidator != nil {
			s.invalidator.Invalidate(ctx, t.Slug)
		}
		return nil
	}
	return fmt.Errorf("provision: unknown step %q", e.Step)
}
