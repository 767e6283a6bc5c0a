package tenant_test

import (
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dmitrymomot/boundary/pkg/tenant"
)

func newTestResolver(t *testing.T) (*tenant.Resolver, *tenant.MemoryRegistry) {
	t.Helper()

	reg := tenant.NewMemoryRegistry()
	r := tenant.NewResolver(reg)
	t.Cleanup(func() { _ = r.Close() })
	return r, reg
}

func testSources() tenant.Sources {
	return tenant.Sources{
		Subdomain: tenant.SubdomainSource(".app.com"),
		Header:    tenant.HeaderSource(""),
	}
}

func echoTenant() http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		tc, ok := tenant.FromContext(r.Context())
		if !ok {
			_, _ = io.WriteString(w, "none")
			return
		}
		_, _ = io.WriteString(w, tc.Slug+"|"+tc.Namespace)
	})
}

func TestMiddleware(t *testing.T) {
	t.Parallel()

	t.Run("attaches resolved tenant", func(t *testing.T) {
		t.Parallel()

		r, reg := newTestResolver(t)
		seed(t, reg, "acme", tenant.StatusActive)

		h := tenant.Middleware(r, testSources())(echoTenant())
		req := httptest.NewRequest(http.MethodGet, "https://acme.app.com/notes", nil)
		rec := httptest.NewRecorder()
		h.ServeHTTP(rec, req)

		assert.Equal(t, http.StatusOK, rec.Code)
		assert.Equal(t, "acme|t_acme", rec.Body.String())
	})

	t.Run("unknown, malformed and deleted tenants look identical", func(t *testing.T) {
		t.Parallel()

		r, reg := newTestResolver(t)
		seed(t, reg, "gone", tenant.StatusDeleted)
		h := tenant.Middleware(r, testSources())(echoTenant())

		var bodies []string
		for _, host := range []string{"missing.app.com", "gone.app.com", "bad_name.app.com"} {
			req := httptest.NewRequest(http.MethodGet, "https://"+host+"/", nil)
			rec := httptest.NewRecorder()
			h.ServeHTTP(rec, req)

			assert.Equal(t, http.StatusNotFound, rec.Code, host)
			bodies = append(bodies, rec.Body.String())
		}
		assert.Equal(t, bodies[0], bodies[1])
		assert.Equal(t, bodies[0], bodies[2])
	})

	t.Run("missing candidate is not found unless optional", func(t *testing.T) {
		t.Parallel()

		r, _ := newTestResolver(t)

		req := httptest.NewRequest(http.MethodGet, "https://app.com/", nil)
		rec := httptest.NewRecorder()
		tenant.Middleware(r, testSources())(echoTenant()).ServeHTTP(rec, req)
		assert.Equal(t, http.StatusNotFound, rec.Code)

		rec = httptest.NewRecorder()
		tenant.Middleware(r, testSources(), tenant.WithOptional(true))(echoTenant()).ServeHTTP(rec, req)
		assert.Equal(t, http.StatusOK, rec.Code)
		assert.Equal(t, "none", rec.Body.String())
	})

	t.Run("skip paths bypass resolution", func(t *testing.T) {
		t.Parallel()

		r, _ := newTestResolver(t)
		h := tenant.Middleware(r, testSources(), tenant.WithSkipPaths("/health"))(echoTenant())

		req := httptest.NewRequest(http.MethodGet, "https://missing.app.com/health", nil)
		rec := httptest.NewRecorder()
		h.ServeHTTP(rec, req)
		assert.Equal(t, http.StatusOK, rec.Code)
	})

	t.Run("suspended tenant passes resolution", func(t *testing.T) {
		t.Parallel()

		r, reg := newTestResolver(t)
		seed(t, reg, "paused", tenant.StatusSuspended)

		req := httptest.NewRequest(http.MethodGet, "https://paused.app.com/admin", nil)
		rec := httptest.NewRecorder()
		tenant.Middleware(r, testSources())(echoTenant()).ServeHTTP(rec, req)
		assert.Equal(t, http.StatusOK, rec.Code)
	})

	t.Run("custom error handler", func(t *testing.T) {
		t.Parallel()

		r, _ := newTestResolver(t)
		var got error
		h := tenant.Middleware(r, testSources(), tenant.WithErrorHandler(func(w http.ResponseWriter, _ *http.Request, err error) {
			got = err
			w.WriteHeader(http.StatusTeapot)
		}))(echoTenant())

		req := httptest.NewRequest(http.MethodGet, "https://missing.app.com/", nil)
		rec := httptest.NewRecorder()
		h.ServeHTTP(rec, req)
		assert.Equal(t, http.StatusTeapot, rec.Code)
		assert.ErrorIs(t, got, tenant.ErrTenantNotFound)
	})
}

func TestRequireActive(t *testing.T) {
	t.Parallel()

	ok := http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) { w.WriteHeader(http.StatusOK) })

	t.Run("active passes", func(t *testing.T) {
		t.Parallel()

		req := httptest.NewRequest(http.MethodGet, "/", nil)
		req = req.WithContext(tenant.WithContext(req.Context(), tenant.NewContext(sampleTenant("acme"))))
		rec := httptest.NewRecorder()
		tenant.RequireActive(nil)(ok).ServeHTTP(rec, req)
		assert.Equal(t, http.StatusOK, rec.Code)
	})

	t.Run("suspended is forbidden", func(t *testing.T) {
		t.Parallel()

		tn := sampleTenant("paused")
		tn.Status = tenant.StatusSuspended
		req := httptest.NewRequest(http.MethodGet, "/", nil)
		req = req.WithContext(tenant.WithContext(req.Context(), tenant.NewContext(tn)))
		rec := httptest.NewRecorder()
		tenant.RequireActive(nil)(ok).ServeHTTP(rec, req)
		assert.Equal(t, http.StatusForbidden, rec.Code)
	})

	t.Run("no tenant is not found", func(t *testing.T) {
		t.Parallel()

		req := httptest.NewRequest(http.MethodGet, "/", nil)
		rec := httptest.NewRecorder()
		tenant.RequireActive(nil)(ok).ServeHTTP(rec, req)
		assert.Equal(t, http.StatusNotFound, rec.Code)
	})
}

func TestContextHelpers(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	_, ok := tenant.FromContext(ctx)
	assert.False(t, ok)
	assert.Panics(t, func() { tenant.MustFromContext(ctx) })

	tn := sampleTenant("acme")
	ctx = tenant.WithContext(ctx, tenant.NewContext(tn))

	tc, ok := tenant.FromContext(ctx)
	require.True(t, ok)
	assert.Equal(t, tn.ID, tc.TenantID)

	id, ok := tenant.IDFromContext(ctx)
	require.True(t, ok)
	assert.Equal(t, tn.ID, id)

	attr, ok := tenant.LoggerExtractor()(ctx)
	require.True(t, ok)
	assert.Equal(t, "tenant", attr.Key)
}
