package migration

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"github.com/dmitrymomot/boundary/pkg/logger"
	"github.com/dmitrymomot/boundary/pkg/schema"
	"github.com/dmitrymomot/boundary/pkg/tenant"
)

// DefaultTemplateNamespace holds the structure new tenants are cloned from.
const DefaultTemplateNamespace = "tenant_template"

// Tenants is the part of the tenant registry the orchestrator reads.
type Tenants interface {
	List(ctx context.Context, statuses ...tenant.Status) ([]*tenant.Tenant, error)
	GetByID(ctx context.Context, id uuid.UUID) (*tenant.Tenant, error)
}

// Options selects what MigrateAll does.
type Options struct {
	// IncludeSuspended also migrates suspended tenants.
	IncludeSuspended bool
	// Canary is migrated alone first. The rollout halts unless it completes.
	Canary uuid.UUID
	// Target is the highest version to apply. Zero means the latest.
	Target int64
}

// TenantResult is the outcome for one namespace.
type TenantResult struct {
	TenantID  uuid.UUID `json:"tenant_id"`
	Slug      string    `json:"slug,omitempty"`
	Namespace string    `json:"namespace"`
	Runs      []*Run    `json:"runs"`
	Err       error     `json:"-"`
}

// Failed reports whether any run of this tenant failed.
func (r *TenantResult) Failed() bool { return r.Err != nil }

// Report summarises a MigrateAll invocation.
type Report struct {
	Template *TenantResult  `json:"template,omitempty"`
	Canary   *TenantResult  `json:"canary,omitempty"`
	Tenants  []TenantResult `json:"tenants"`
	Halted   bool           `json:"halted"`
}

// Failed returns the tenants whose migration failed, canary included.
func (r *Report) Failed() []TenantResult {
	var out []TenantResult
	if r.Canary != nil && r.Canary.Failed() {
		out = append(out, *r.Canary)
	}
	for _, t := range r.Tenants {
		if t.Failed() {
			out = append(out, t)
		}
	}
	return out
}

// Err joins every tenant failure.
func (r *Report) Err() error {
	var errs []error
	if r.Template != nil && r.Template.Err != nil {
		errs = append(errs, r.Template.Err)
	}
	for _, t := range r.Failed() {
		errs = append(errs, t.Err)
	}
	return errors.Join(errs...)
}

// TemplateLocker serializes template migrations with tenant cloning across
// processes. Lock is exclusive and taken by template migrations; RLock is
// shared and held while a new tenant copies the template.
type TemplateLocker interface {
	Lock(ctx context.Context) (unlock func(), err error)
	RLock(ctx context.Context) (unlock func(), err error)
}

// Orchestrator applies a migration set to the template namespace and to every
// tenant namespace, each one independently.
type Orchestrator[C schema.Conn] struct {
	engine            *schema.Engine[C]
	set               *Set[C]
	runs              RunStore
	tenants           Tenants
	templateNamespace string
	concurrency       int
	now               func() time.Time
	logger            *slog.Logger

	templateMu sync.RWMutex
	locker     TemplateLocker
}

type orchestratorConfig struct {
	templateNamespace string
	concurrency       int
	locker            TemplateLocker
	now               func() time.Time
	logger            *slog.Logger
}

// Option configures an Orchestrator.
type Option func(*orchestratorConfig)

// WithTemplateNamespace sets the namespace new tenants are cloned from.
func WithTemplateNamespace(ns string) Option {
	return func(c *orchestratorConfig) {
		if ns != "" {
			c.templateNamespace = ns
		}
	}
}

// WithConcurrency sets how many tenants migrate at the same time.
func WithConcurrency(n int) Option {
	return func(c *orchestratorConfig) {
		if n > 0 {
			c.concurrency = n
		}
	}
}

// WithTemplateLocker adds a cross-process lock around template migrations
// and tenant cloning. The in-process lock is always held.
func WithTemplateLocker(l TemplateLocker) Option {
	return func(c *orchestratorConfig) { c.locker = l }
}

// WithClock overrides time.Now.
func WithClock(now func() time.Time) Option {
	return func(c *orchestratorConfig) {
		if now != nil {
			c.now = now
		}
	}
}

// WithLogger sets the orchestrator logger.
func WithLogger(l *slog.Logger) Option {
	return func(c *orchestratorConfig) {
		if l != nil {
			c.logger = l
		}
	}
}

// NewOrchestrator creates an orchestrator.
func NewOrchestrator[C schema.Conn](engine *schema.Engine[C], set *Set[C], runs RunStore, tenants Tenants, opts ...Option) *Orchestrator[C] {
	cfg := orchestratorConfig{
		templateNamespace: DefaultTemplateNamespace,
		concurrency:       1,
		now:               time.Now,
		logger:            slog.Default(),
	}
	for _, opt := range opts {
		opt(&cfg)
	}
	return &Orchestrator[C]{
		engine:            engine,
		set:               set,
		runs:              runs,
		tenants:           tenants,
		templateNamespace: cfg.templateNamespace,
		concurrency:       cfg.concurrency,
		now:               cfg.now,
		logger:            cfg.logger,
		locker:            cfg.locker,
	}
}

// TemplateNamespace returns the namespace tenants are cloned from.
func (o *Orchestrator[C]) TemplateNamespace() string { return o.templateNamespace }

// MigrateAll migrates the template namespace, then the canary if one is set,
// then every eligible tenant. A tenant failure never stops other tenants; a
// template or canary failure halts the rollout. The returned error is set
// only when the rollout halted or could not start; per-tenant failures are
// in the report.
func (o *Orchestrator[C]) MigrateAll(ctx context.Context, opts Options) (*Report, error) {
	statuses := []tenant.Status{tenant.StatusActive}
	if opts.IncludeSuspended {
		statuses = append(statuses, tenant.StatusSuspended)
	}

	tenants, err := o.tenants.List(ctx, statuses...)
	if err != nil {
		return nil, fmt.Errorf("migration: list tenants: %w", err)
	}

	report := &Report{}

	unlock, err := o.lockTemplate(ctx, true)
	if err != nil {
		return nil, fmt.Errorf("migration: lock template: %w", err)
	}
	tpl := o.migrateNamespace(ctx, uuid.Nil, "", o.templateNamespace, opts.Target)
	unlock()
	report.Template = &tpl
	if tpl.Err != nil {
		report.Halted = true
		return report, errors.Join(ErrTemplateFailed, tpl.Err)
	}

	if opts.Canary != uuid.Nil {
		idx := -1
		for i, t := range tenants {
			if t.ID == opts.Canary {
				idx = i
				break
			}
		}
		if idx < 0 {
			report.Halted = true
			return report, ErrCanaryNotEligible
		}

		canary := tenants[idx]
		tenants = append(tenants[:idx:idx], tenants[idx+1:]...)

		res := o.migrateNamespace(ctx, canary.ID, canary.Slug, canary.Namespace, opts.Target)
		report.Canary = &res
		if res.Err != nil {
			report.Halted = true
			o.logger.ErrorContext(ctx, "canary migration failed, rollout halted",
				logger.TenantID(canary.ID),
				logger.Namespace(canary.Namespace),
				logger.Error(res.Err))
			return report, errors.Join(ErrCanaryFailed, res.Err)
		}
	}

	report.Tenants = make([]TenantResult, len(tenants))
	var g errgroup.Group
	g.SetLimit(o.concurrency)
	for i, t := range tenants {
		g.Go(func() error {
			report.Tenants[i] = o.migrateNamespace(ctx, t.ID, t.Slug, t.Namespace, opts.Target)
			return nil
		})
	}
	_ = g.Wait()

	failed := len(report.Failed())
	o.logger.InfoContext(ctx, "tenant migration rollout finished",
		slog.Int("tenants", len(tenants)),
		slog.Int("failed", failed),
		slog.Bool("canary", report.Canary != nil))

	return report, nil
}

// MigrateTenant migrates a single active or suspended tenant up to target.
func (o *Orchestrator[C]) MigrateTenant(ctx context.Context, tenantID uuid.UUID, target int64) (*TenantResult, error) {
	t, err := o.migratableTenant(ctx, tenantID)
	if err != nil {
		return nil, err
	}
	res := o.migrateNamespace(ctx, t.ID, t.Slug, t.Namespace, target)
	return &res, res.Err
}

// Rollback reverts the latest applied version of one tenant. It records a
// new run and never touches the history of other tenants.
func (o *Orchestrator[C]) Rollback(ctx context.Context, tenantID uuid.UUID, version int64) (*Run, error) {
	t, err := o.migratableTenant(ctx, tenantID)
	if err != nil {
		return nil, err
	}

	m, ok := o.set.Get(version)
	if !ok {
		return nil, fmt.Errorf("%w: %d", ErrUnknownVersion, version)
	}
	if m.Down == nil {
		return nil, fmt.Errorf("%w: %d", ErrIrreversible, version)
	}

	history, err := o.runs.ListByTenant(ctx, t.ID)
	if err != nil {
		return nil, fmt.Errorf("migration: load history: %w", err)
	}
	applied := AppliedVersions(history)
	if !applied[version] {
		return nil, fmt.Errorf("%w: %d", ErrNotApplied, version)
	}
	if versions := SortedVersions(applied); versions[len(versions)-1] != version {
		return nil, fmt.Errorf("%w: latest is %d", ErrNotLatest, versions[len(versions)-1])
	}

	return o.apply(ctx, t.ID, t.Namespace, m, Down)
}

// History returns the runs of one tenant in creation order. The template
// namespace history is stored under uuid.Nil.
func (o *Orchestrator[C]) History(ctx context.Context, tenantID uuid.UUID) ([]*Run, error) {
	return o.runs.ListByTenant(ctx, tenantID)
}

// Applied returns the applied versions of one tenant in ascending order.
func (o *Orchestrator[C]) Applied(ctx context.Context, tenantID uuid.UUID) ([]int64, error) {
	history, err := o.runs.ListByTenant(ctx, tenantID)
	if err != nil {
		return nil, err
	}
	return SortedVersions(AppliedVersions(history)), nil
}

// FreezeTemplate blocks template migrations until release is called and
// returns the versions applied to the template at that moment. Provisioning
// holds it from before the structure is cloned until the history is seeded.
func (o *Orchestrator[C]) FreezeTemplate(ctx context.Context) ([]int64, func(), error) {
	release, err := o.lockTemplate(ctx, false)
	if err != nil {
		return nil, nil, fmt.Errorf("migration: lock template: %w", err)
	}
	versions, err := o.Applied(ctx, uuid.Nil)
	if err != nil {
		release()
		return nil, nil, fmt.Errorf("migration: template history: %w", err)
	}
	return versions, release, nil
}

// Baseline records versions as completed for a tenant whose structure was
// just cloned from the template, so later rollouts do not replay them.
// versions must come from FreezeTemplate taken before the clone.
func (o *Orchestrator[C]) Baseline(ctx context.Context, tenantID uuid.UUID, versions []int64) error {
	for _, v := range versions {
		now := o.now()
		run := &Run{
			TenantID:   tenantID,
			Version:    v,
			Direction:  Up,
			State:      StateCompleted,
			Baseline:   true,
			StartedAt:  now,
			FinishedAt: &now,
		}
		if m, ok := o.set.Get(v); ok {
			run.Name = m.Name
		}
		if err := o.runs.Create(ctx, run); err != nil {
			return fmt.Errorf("migration: baseline version %d: %w", v, err)
		}
	}
	return nil
}

// AbandonRun fails the open runs of one tenant and version. It is the manual
// way out when a process died or lost its history store mid-run; the
// namespace itself is left as is and has to be checked by the operator.
// The template namespace is addressed with uuid.Nil.
func (o *Orchestrator[C]) AbandonRun(ctx context.Context, tenantID uuid.UUID, version int64, reason string) ([]*Run, error) {
	if reason == "" {
		reason = "abandoned by operator"
	}
	closed, err := o.runs.FailOpen(ctx, tenantID, version, reason, o.now())
	if err != nil {
		return nil, fmt.Errorf("migration: abandon run: %w", err)
	}
	if len(closed) == 0 {
		return nil, fmt.Errorf("%w: %d", ErrNoOpenRun, version)
	}

	o.logger.WarnContext(ctx, "tenant migration run abandoned",
		logger.TenantID(tenantID),
		logger.MigrationVersion(version),
		slog.Int("runs", len(closed)),
		slog.String("reason", reason))
	return closed, nil
}

// lockTemplate takes the in-process template lock and then the configured
// cross-process one. The returned func releases both.
func (o *Orchestrator[C]) lockTemplate(ctx context.Context, exclusive bool) (func(), error) {
	unlockLocal := o.templateMu.RUnlock
	if exclusive {
		o.templateMu.Lock()
		unlockLocal = o.templateMu.Unlock
	} else {
		o.templateMu.RLock()
	}
	if o.locker == nil {
		return unlockLocal, nil
	}

	acquire := o.locker.RLock
	if exclusive {
		acquire = o.locker.Lock
	}
	unlockRemote, err := acquire(ctx)
	if err != nil {
		unlockLocal()
		return nil, err
	}
	return func() {
		unlockRemote()
		unlockLocal()
	}, nil
}

func (o *Orchestrator[C]) migratableTenant(ctx context.Context, id uuid.UUID) (*tenant.Tenant, error) {
	t, err := o.tenants.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if t.Status != tenant.StatusActive && t.Status != tenant.StatusSuspended {
		return nil, fmt.Errorf("%w: %s", ErrTenantNotMigratable, t.Status)
	}
	return t, nil
}

// migrateNamespace applies pending versions in order and stops at the first
// failure. The failure is recorded and returned in the result.
func (o *Orchestrator[C]) migrateNamespace(ctx context.Context, tenantID uuid.UUID, slug, ns string, target int64) TenantResult {
	res := TenantResult{TenantID: tenantID, Slug: slug, Namespace: ns}

	history, err := o.runs.ListByTenant(ctx, tenantID)
	if err != nil {
		res.Err = &Error{TenantID: tenantID, Namespace: ns, Direction: Up, Err: err}
		return res
	}

	for _, m := range o.set.pending(AppliedVersions(history), target) {
		run, err := o.apply(ctx, tenantID, ns, m, Up)
		if run != nil {
			res.Runs = append(res.Runs, run)
		}
		if err != nil {
			res.Err = err
			break
		}
	}
	return res
}

// apply runs one version in its own bound transaction and records the attempt.
func (o *Orchestrator[C]) apply(ctx context.Context, tenantID uuid.UUID, ns string, m Migration[C], dir Direction) (*Run, error) {
	run := &Run{
		TenantID:  tenantID,
		Version:   m.Version,
		Name:      m.Name,
		Direction: dir,
		State:     StatePending,
		StartedAt: o.now(),
	}
	if err := o.runs.Create(ctx, run); err != nil {
		return nil, &Error{TenantID: tenantID, Namespace: ns, Version: m.Version, Direction: dir, Err: err}
	}

	run.State = StateRunning
	if err := o.runs.Update(ctx, run); err != nil {
		// Nothing ran yet. Close the pending run so a retry is not blocked.
		finished := o.now()
		run.State = StateFailed
		run.FinishedAt = &finished
		run.Error = fmt.Sprintf("not started: %v", err)
		if ferr := o.runs.Update(context.WithoutCancel(ctx), run); ferr != nil {
			err = errors.Join(err, ErrHistoryNotRecorded, ferr)
		}
		o.logger.ErrorContext(ctx, "tenant migration could not start",
			logger.TenantID(tenantID),
			logger.Namespace(ns),
			logger.MigrationVersion(m.Version),
			logger.Error(err))
		return run, &Error{TenantID: tenantID, Namespace: ns, Version: m.Version, Direction: dir, Err: err}
	}

	step := m.Up
	if dir == Down {
		step = m.Down
	}

	fn := func(ctx context.Context, s *schema.Session[C]) error {
		return schema.Do(ctx, s, func(conn C) error {
			return step(ctx, conn)
		})
	}
	var err error
	if tenantID == uuid.Nil {
		err = o.engine.WithNamespace(ctx, ns, fn)
	} else {
		err = o.engine.WithTenant(ctx, tenant.Context{TenantID: tenantID, Namespace: ns}, fn)
	}

	finished := o.now()
	run.FinishedAt = &finished
	switch {
	case err != nil:
		run.State = StateFailed
		run.Error = err.Error()
	case dir == Down:
		run.State = StateRolledBack
	default:
		run.State = StateCompleted
	}

	// Record the outcome even if the caller context was cancelled mid-run.
	// If that fails the run stays open until AbandonRun closes it.
	if uerr := o.runs.Update(context.WithoutCancel(ctx), run); uerr != nil {
		o.logger.ErrorContext(ctx, "tenant migration outcome not recorded",
			logger.TenantID(tenantID),
			logger.Namespace(ns),
			logger.MigrationVersion(m.Version),
			logger.Status(string(run.State)),
			logger.Error(uerr))
		err = errors.Join(err, ErrHistoryNotRecorded, uerr)
	}

	if err != nil {
		o.logger.ErrorContext(ctx, "tenant migration failed",
			logger.TenantID(tenantID),
			logger.Namespace(ns),
			logger.MigrationVersion(m.Version),
			slog.String("direction", string(dir)),
			logger.Error(err))
		return run, &Error{TenantID: tenantID, Namespace: ns, Version: m.Version, Direction: dir, Err: err}
	}

	o.logger.InfoContext(ctx, "tenant migration applied",
		logger.TenantID(tenantID),
		logger.Namespace(ns),
		logger.MigrationVersion(m.Version),
		slog.String("direction", string(dir)))
	return run, nil
}
