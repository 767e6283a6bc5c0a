// Package config assembles the service configuration from environment
// variables and optional .env files.
package config

import (
	"errors"
	"fmt"
	"io/fs"
	"time"

	"github.com/caarlos0/env/v11"
	"github.com/joho/godotenv"

	"github.com/dmitrymomot/boundary/pkg/authclaims"
	"github.com/dmitrymomot/boundary/pkg/httpserver"
	"github.com/dmitrymomot/boundary/pkg/logger"
	"github.com/dmitrymomot/boundary/pkg/pg"
	"github.com/dmitrymomot/boundary/pkg/queue"
	"github.com/dmitrymomot/boundary/pkg/redis"
	"github.com/dmitrymomot/boundary/pkg/tenant"
)

var (
	ErrParsingConfig = errors.New("config: failed to parse environment")
	ErrInvalidConfig = errors.New("config: invalid")
)

const (
	CacheBackendMemory = "memory"
	CacheBackendRedis  = "redis"
)

type Config struct {
	Env          string `env:"APP_ENV" envDefault:"development"`
	Name         string `env:"APP_NAME" envDefault:"boundary"`
	AdminToken   string `env:"ADMIN_TOKEN"`                       // AdminToken guards the management API. Empty rejects every call.
	CacheBackend string `env:"CACHE_BACKEND" envDefault:"memory"` // CacheBackend selects the tenant cache store: memory or redis.

	Log    logger.Config
	HTTP   httpserver.Config
	PG     pg.Config
	Redis  redis.Config
	Queue  queue.Config
	Auth   authclaims.Config
	Tenant Tenant
}

type Tenant struct {
	TemplateNamespace string        `env:"TENANT_TEMPLATE_NAMESPACE" envDefault:"tenant_template"`
	DefaultNamespace  string        `env:"TENANT_DEFAULT_NAMESPACE" envDefault:"public"`
	CacheTTL          time.Duration `env:"TENANT_CACHE_TTL" envDefault:"1h"`
	BindTimeout       time.Duration `env:"TENANT_BIND_TIMEOUT" envDefault:"5s"`
	SubdomainSuffix   string        `env:"TENANT_SUBDOMAIN_SUFFIX"`
	Header            string        `env:"TENANT_HEADER" envDefault:"X-Tenant-ID"`
	Claim             string        `env:"TENANT_CLAIM" envDefault:"tenant"`
	Retention         time.Duration `env:"TENANT_RETENTION" envDefault:"720h"`
	MigrationsFile    string        `env:"TENANT_MIGRATIONS_FILE"` // MigrationsFile replaces the built-in tenant migration set.
	MigrationWorkers  int           `env:"TENANT_MIGRATION_CONCURRENCY" envDefault:"4"`
	MigrateOnStart    bool          `env:"TENANT_MIGRATE_ON_START" envDefault:"true"` // MigrateOnStart rolls pending migrations out before serving.
	PurgeInterval     time.Duration `env:"TENANT_PURGE_INTERVAL" envDefault:"1h"` // PurgeInterval schedules hard deletion of expired tenants. Zero disables it.
}

type options struct {
	files       []string
	environment map[string]string
}

// Option adjusts how Load reads the configuration.
type Option func(*options)

// WithEnvFiles sets the dotenv files to load. Missing files are skipped.
// Defaults to ".env".
func WithEnvFiles(files ...string) Option {
	return func(o *options) { o.files = files }
}

// WithEnvironment parses env instead of the process environment. Dotenv
// files are not read.
func WithEnvironment(env map[string]string) Option {
	return func(o *options) { o.environment = env }
}

// Load reads dotenv files into the process environment without overriding
// variables already set, parses Config and validates it.
func Load(opts ...Option) (Config, error) {
	o := options{files: []string{".env"}}
	for _, opt := range opts {
		opt(&o)
	}

	parseOpts := env.Options{}
	if o.environment != nil {
		parseOpts.Environment = o.environment
	} else {
		for _, f := range o.files {
			if err := godotenv.Load(f); err != nil && !errors.Is(err, fs.ErrNotExist) {
				return Config{}, fmt.Errorf("config: load %s: %w", f, err)
			}
		}
	}

	cfg, err := env.ParseAsWithOptions[Config](parseOpts)
	if err != nil {
		return Config{}, errors.Join(ErrParsingConfig, err)
	}
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// Validate checks values env tags cannot express.
func (c Config) Validate() error {
	var errs []error
	if _, err := c.Log.Options(); err != nil {
		errs = append(errs, err)
	}
	switch c.CacheBackend {
	case CacheBackendMemory, CacheBackendRedis:
	default:
		errs = append(errs, fmt.Errorf("CACHE_BACKEND must be %q or %q, got %q", CacheBackendMemory, CacheBackendRedis, c.CacheBackend))
	}
	if !tenant.ValidNamespace(c.Tenant.TemplateNamespace) {
		errs = append(errs, fmt.Errorf("TENANT_TEMPLATE_NAMESPACE %q is not a valid namespace", c.Tenant.TemplateNamespace))
	}
	if !tenant.ValidNamespace(c.Tenant.DefaultNamespace) {
		errs = append(errs, fmt.Errorf("TENANT_DEFAULT_NAMESPACE %q is not a valid namespace", c.Tenant.DefaultNamespace))
	}
	if c.Tenant.TemplateNamespace == c.Tenant.DefaultNamespace {
		errs = append(errs, errors.New("TENANT_TEMPLATE_NAMESPACE and TENANT_DEFAULT_NAMESPACE must differ"))
	}
	if c.Tenant.CacheTTL < 0 {
		errs = append(errs, errors.New("TENANT_CACHE_TTL must not be negative"))
	}
	if c.Tenant.BindTimeout <= 0 {
		errs = append(errs, errors.New("TENANT_BIND_TIMEOUT must be positive"))
	}
	if c.Tenant.Retention <= 0 {
		errs = append(errs, errors.New("TENANT_RETENTION must be positive"))
	}
	if c.Tenant.PurgeInterval < 0 {
		errs = append(errs, errors.New("TENANT_PURGE_INTERVAL must not be negative"))
	}
	if c.Tenant.MigrationWorkers < 1 {
		errs = append(errs, errors.New("TENANT_MIGRATION_CONCURRENCY must be at least 1"))
	}
	if len(errs) == 0 {
		return nil
	}
	return fmt.Errorf("%w: %w", ErrInvalidConfig, errors.Join(errs...))
}
