package main

import (
	"context"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dmitrymomot/boundary/internal/config"
	"github.com/dmitrymomot/boundary/pkg/authclaims"
)

func TestLoadMigrations_Embedded(t *testing.T) {
	t.Parallel()

	set, err := loadMigrations("")
	require.NoError(t, err)

	var versions []int64
	for _, m := range set.Migrations() {
		versions = append(versions, m.Version)
		assert.NotNil(t, m.Down, "version %d must be reversible", m.Version)
	}
	assert.Equal(t, []int64{1, 2}, versions)
}

func TestLoadMigrations_MissingFile(t *testing.T) {
	t.Parallel()

	_, err := loadMigrations("does-not-exist.yaml")
	assert.Error(t, err)
}

func TestTenantSources(t *testing.T) {
	t.Parallel()

	cfg := config.Tenant{SubdomainSuffix: ".example.com", Header: "X-Tenant-ID", Claim: "tenant"}

	req := httptest.NewRequest("GET", "http://acme.example.com/api/notes", nil)
	req.Header.Set("X-Tenant-ID", "globex")
	req = req.WithContext(authclaims.WithClaims(req.Context(), map[string]any{"tenant": "initech"}))

	c := tenantSources(cfg, true).Candidates(req)
	assert.Equal(t, "acme", c.Subdomain)
	assert.Equal(t, "initech", c.Claim)
	assert.Equal(t, "globex", c.Header)

	c = tenantSources(cfg, false).Candidates(req)
	assert.Empty(t, c.Claim, "claims are ignored without a verifier")

	c = tenantSources(config.Tenant{Header: "X-Org"}, true).Candidates(req)
	assert.Empty(t, c.Subdomain)
	assert.Empty(t, c.Header)
}

func TestEvery(t *testing.T) {
	t.Parallel()

	ctx, cancel := context.WithCancel(context.Background())
	var calls atomic.Int32
	done := make(chan struct{})
	go func() {
		every(ctx, 5*time.Millisecond, func(context.Context) { calls.Add(1) })
		close(done)
	}()

	require.Eventually(t, func() bool { return calls.Load() >= 2 }, time.Second, time.Millisecond)
	cancel()
	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("every did not stop")
	}
}
