// Command boundary serves the tenant management API and a tenant-scoped
// notes API on one shared Postgres database, with one namespace per tenant.
package main

import (
	"context"
	"embed"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/dmitrymomot/boundary/internal/config"
	"github.com/dmitrymomot/boundary/pkg/adminapi"
	"github.com/dmitrymomot/boundary/pkg/authclaims"
	"github.com/dmitrymomot/boundary/pkg/httpserver"
	"github.com/dmitrymomot/boundary/pkg/logger"
	"github.com/dmitrymomot/boundary/pkg/migration"
	"github.com/dmitrymomot/boundary/pkg/pg"
	"github.com/dmitrymomot/boundary/pkg/provision"
	"github.com/dmitrymomot/boundary/pkg/queue"
	"github.com/dmitrymomot/boundary/pkg/redis"
	"github.com/dmitrymomot/boundary/pkg/requestid"
	"github.com/dmitrymomot/boundary/pkg/schema"
	"github.com/dmitrymomot/boundary/pkg/tenant"
	"github.com/dmitrymomot/boundary/pkg/tenantcache"
	"github.com/dmitrymomot/boundary/pkg/tenantjob"
)

//go:embed migrations/tenant.yaml
var migrationsFS embed.FS

func main() {
	if err := run(); err != nil {
		slog.Error("boundary stopped", logger.Error(err))
		os.Exit(1)
	}
}

func run() error {
	cfg, err := config.Load()
	if err != nil {
		return err
	}

	logOpts, err := cfg.Log.Options()
	if err != nil {
		return err
	}
	log := logger.New(append([]logger.Option{
		logger.WithEnvironment(cfg.Env, cfg.Name),
		logger.WithContextExtractors(tenant.LoggerExtractor(), requestid.LoggerExtractor()),
	}, logOpts...)...)
	logger.SetAsDefault(log)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	pool, err := pg.Connect(ctx, cfg.PG)
	if err != nil {
		return err
	}
	defer pool.Close()

	if err := pg.Migrate(ctx, pool, cfg.PG, log); err != nil {
		return err
	}

	catalog := pg.NewCatalog(pool)
	if err := catalog.EnsureNamespace(ctx, cfg.Tenant.TemplateNamespace); err != nil {
		return fmt.Errorf("template namespace: %w", err)
	}

	set, err := loadMigrations(cfg.Tenant.MigrationsFile)
	if err != nil {
		return err
	}

	engine := schema.NewEngine[*pg.Conn](pg.NewPool(pool),
		schema.WithBindTimeout(cfg.Tenant.BindTimeout),
		schema.WithDefaultNamespace(cfg.Tenant.DefaultNamespace),
		schema.WithLogger(log.With(logger.Component("schema"))),
	)

	registry := pg.NewRegistry(pool)
	resolver := tenant.NewResolver(registry,
		tenant.WithCacheTTL(cfg.Tenant.CacheTTL),
		tenant.WithResolverLogger(log.With(logger.Component("resolver"))),
	)
	defer resolver.Close()

	orchestrator := migration.NewOrchestrator(engine, set, pg.NewRunStore(pool), registry,
		migration.WithTemplateNamespace(cfg.Tenant.TemplateNamespace),
		migration.WithConcurrency(cfg.Tenant.MigrationWorkers),
		migration.WithTemplateLocker(pg.NewTemplateLock(pool, cfg.Tenant.TemplateNamespace)),
		migration.WithLogger(log.With(logger.Component("migration"))),
	)
	if cfg.Tenant.MigrateOnStart {
		if err := migrateOnStart(ctx, orchestrator, log); err != nil {
			return err
		}
	}

	ready := map[string]httpserver.Check{"postgres": pg.Healthcheck(pool)}
	store, closeStore, err := cacheStore(ctx, cfg, ready)
	if err != nil {
		return err
	}
	defer closeStore()

	provisioner := provision.NewService(registry, catalog,
		provision.WithBaseliner(orchestrator),
		provision.WithInvalidator(resolver),
		provision.WithCacheFlusher(tenantcache.NewFlusher(store)),
		provision.WithTemplateNamespace(cfg.Tenant.TemplateNamespace),
		provision.WithLogger(log.With(logger.Component("provision"))),
	)

	tasks := pg.NewTaskStore(pool)
	enqueuer, err := queue.NewEnqueuer(tasks)
	if err != nil {
		return err
	}
	worker, err := queue.NewWorker(tasks, append(cfg.Queue.WorkerOptions(),
		queue.WithWorkerLogger(log.With(logger.Component("worker"))))...)
	if err != nil {
		return err
	}
	notes := &notesService{engine: engine, cache: store, enqueuer: enqueuer, log: log.With(logger.Component("notes"))}
	if err := worker.RegisterHandlers(
		tenantjob.NewHandler(resolver, engine, notes.refreshStats),
	); err != nil {
		return err
	}

	var verifier *authclaims.Verifier
	if cfg.Auth.Secret != "" {
		verifier, err = authclaims.NewVerifier([]byte(cfg.Auth.Secret), cfg.Auth.VerifierOptions()...)
		if err != nil {
			return err
		}
	}

	admin := adminapi.New(provisioner, registry, orchestrator,
		adminapi.WithToken(cfg.AdminToken),
		adminapi.WithLogger(log.With(logger.Component("adminapi"))),
	)
	router := newRouter(routerDeps{
		admin:    admin,
		resolver: resolver,
		verifier: verifier,
		notes:    notes,
		sources:  tenantSources(cfg.Tenant, verifier != nil),
		ready:    ready,
		log:      log,
	})

	srv := httpserver.NewFromConfig(cfg.HTTP, router, httpserver.WithLogger(log))

	g, ctx := errgroup.WithContext(ctx)
	g.Go(func() error { return srv.Run(ctx) })
	g.Go(worker.Run(ctx))
	if cfg.Tenant.PurgeInterval > 0 {
		g.Go(func() error {
			every(ctx, cfg.Tenant.PurgeInterval, func(ctx context.Context) {
				purge(ctx, log, provisioner, tasks, cfg.Tenant.Retention)
			})
			return nil
		})
	}

	if err := g.Wait(); err != nil && !errors.Is(err, context.Canceled) {
		return err
	}
	return nil
}

func loadMigrations(path string) (*migration.Set[*pg.Conn], error) {
	if path != "" {
		return migration.LoadSQLSetFile(path, pg.ExecScript)
	}
	data, err := migrationsFS.ReadFile("migrations/tenant.yaml")
	if err != nil {
		return nil, err
	}
	return migration.LoadSQLSet(data, pg.ExecScript)
}

func migrateOnStart(ctx context.Context, o *migration.Orchestrator[*pg.Conn], log *slog.Logger) error {
	report, err := o.MigrateAll(ctx, migration.Options{})
	if report != nil {
		for _, res := range report.Failed() {
			log.ErrorContext(ctx, "tenant migration failed",
				logger.TenantID(res.TenantID),
				logger.Error(res.Err))
		}
	}
	// Failed tenants are reported and retried on the next rollout. A broken
	// template is fatal: new tenants would clone a stale structure.
	if errors.Is(err, migration.ErrTemplateFailed) {
		return err
	}
	return nil
}

// cacheStore builds the tenant cache backend and registers its readiness
// check, if it has one.
func cacheStore(ctx context.Context, cfg config.Config, ready map[string]httpserver.Check) (tenantcache.Store, func() error, error) {
	if cfg.CacheBackend != config.CacheBackendRedis {
		return tenantcache.NewMemoryStore(), func() error { return nil }, nil
	}
	client, err := redis.Connect(ctx, cfg.Redis)
	if err != nil {
		return nil, nil, err
	}
	ready["redis"] = redis.Healthcheck(client)
	return tenantcache.NewRedisStore(client), client.Close, nil
}

func tenantSources(cfg config.Tenant, claims bool) tenant.Sources {
	var s tenant.Sources
	if cfg.SubdomainSuffix != "" {
		s.Subdomain = tenant.SubdomainSource(cfg.SubdomainSuffix)
	}
	if claims && cfg.Claim != "" {
		s.Claim = tenant.ClaimSource(cfg.Claim, authclaims.FromContext)
	}
	if cfg.Header != "" {
		s.Header = tenant.HeaderSource(cfg.Header)
	}
	return s
}

// every calls fn once per interval until ctx is done.
func every(ctx context.Context, interval time.Duration, fn func(context.Context)) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			fn(ctx)
		}
	}
}

func purge(ctx context.Context, log *slog.Logger, p *provision.Service, tasks *pg.TaskStore, retention time.Duration) {
	purged, err := p.PurgeExpired(ctx, retention)
	if err != nil {
		log.ErrorContext(ctx, "tenant purge failed", logger.Error(err))
	}
	if len(purged) > 0 {
		log.InfoContext(ctx, "expired tenants purged", slog.Int("count", len(purged)))
	}
	if _, err := tasks.PurgeCompleted(ctx, time.Now().Add(-retention)); err != nil {
		log.ErrorContext(ctx, "task purge failed", logger.Error(err))
	}
}
