package config_test

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dmitrymomot/boundary/internal/config"
)

func baseEnv() map[string]string {
	return map[string]string{"PG_CONN_URL": "postgres://localhost:5432/boundary"}
}

func TestLoad_Defaults(t *testing.T) {
	t.Parallel()

	cfg, err := config.Load(config.WithEnvironment(baseEnv()))
	require.NoError(t, err)

	assert.Equal(t, "development", cfg.Env)
	assert.Equal(t, config.CacheBackendMemory, cfg.CacheBackend)
	assert.Equal(t, ":8080", cfg.HTTP.Addr)
	assert.Equal(t, "postgres://localhost:5432/boundary", cfg.PG.ConnectionString)
	assert.Equal(t, []string{"default"}, cfg.Queue.Queues)
	assert.Equal(t, 30*time.Second, cfg.Auth.Leeway)

	assert.Equal(t, "tenant_template", cfg.Tenant.TemplateNamespace)
	assert.Equal(t, "public", cfg.Tenant.DefaultNamespace)
	assert.Equal(t, time.Hour, cfg.Tenant.CacheTTL)
	assert.Equal(t, 5*time.Second, cfg.Tenant.BindTimeout)
	assert.Equal(t, "X-Tenant-ID", cfg.Tenant.Header)
	assert.Equal(t, "tenant", cfg.Tenant.Claim)
	assert.Equal(t, 720*time.Hour, cfg.Tenant.Retention)
	assert.Equal(t, 4, cfg.Tenant.MigrationWorkers)
	assert.Empty(t, cfg.Tenant.MigrationsFile)
	assert.True(t, cfg.Tenant.MigrateOnStart)
	assert.Equal(t, time.Hour, cfg.Tenant.PurgeInterval)
}

func TestLoad_Overrides(t *testing.T) {
	t.Parallel()

	env := baseEnv()
	env["CACHE_BACKEND"] = "redis"
	env["TENANT_SUBDOMAIN_SUFFIX"] = ".example.com"
	env["TENANT_CACHE_TTL"] = "0s"
	env["QUEUE_NAMES"] = "default,tenant"

	cfg, err := config.Load(config.WithEnvironment(env))
	require.NoError(t, err)
	assert.Equal(t, config.CacheBackendRedis, cfg.CacheBackend)
	assert.Equal(t, ".example.com", cfg.Tenant.SubdomainSuffix)
	assert.Zero(t, cfg.Tenant.CacheTTL)
	assert.Equal(t, []string{"default", "tenant"}, cfg.Queue.Queues)
}

func TestLoad_Errors(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name string
		env  map[string]string
		want error
	}{
		{"missing database url", map[string]string{}, config.ErrParsingConfig},
		{"bad duration", map[string]string{"TENANT_CACHE_TTL": "soon"}, config.ErrParsingConfig},
		{"unknown cache backend", map[string]string{"CACHE_BACKEND": "memcached"}, config.ErrInvalidConfig},
		{"invalid template namespace", map[string]string{"TENANT_TEMPLATE_NAMESPACE": "Bad-Name"}, config.ErrInvalidConfig},
		{"template equals default", map[string]string{"TENANT_TEMPLATE_NAMESPACE": "public"}, config.ErrInvalidConfig},
		{"zero bind timeout", map[string]string{"TENANT_BIND_TIMEOUT": "0s"}, config.ErrInvalidConfig},
		{"zero migration workers", map[string]string{"TENANT_MIGRATION_CONCURRENCY": "0"}, config.ErrInvalidConfig},
		{"unknown log level", map[string]string{"LOG_LEVEL": "chatty"}, config.ErrInvalidConfig},
		{"unknown log format", map[string]string{"LOG_FORMAT": "xml"}, config.ErrInvalidConfig},
		{"negative purge interval", map[string]string{"TENANT_PURGE_INTERVAL": "-1h"}, config.ErrInvalidConfig},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			env := tt.env
			if tt.name != "missing database url" {
				env = baseEnv()
				for k, v := range tt.env {
					env[k] = v
				}
			}
			_, err := config.Load(config.WithEnvironment(env))
			assert.ErrorIs(t, err, tt.want)
		})
	}
}

func TestLoad_EnvFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "test.env")
	require.NoError(t, os.WriteFile(path, []byte("PG_CONN_URL=postgres://file/db\nBOUNDARY_TEST_ONLY=1\n"), 0o600))
	t.Setenv("PG_CONN_URL", "postgres://process/db")
	t.Cleanup(func() { os.Unsetenv("BOUNDARY_TEST_ONLY") })

	cfg, err := config.Load(config.WithEnvFiles(path, filepath.Join(t.TempDir(), "missing.env")))
	require.NoError(t, err)
	assert.Equal(t, "postgres://process/db", cfg.PG.ConnectionString)
	assert.Equal(t, "1", os.Getenv("BOUNDARY_TEST_ONLY"))
}
