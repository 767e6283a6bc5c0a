package authclaims_test

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dmitrymomot/boundary/pkg/authclaims"
	"github.com/dmitrymomot/boundary/pkg/tenant"
)

func newVerifier(t *testing.T) *authclaims.Verifier {
	t.Helper()
	v, err := authclaims.NewVerifier(secret)
	require.NoError(t, err)
	return v
}

// echoTenantClaim writes the tenant claim as the tenant resolver would see it.
func echoTenantClaim() http.Handler {
	source := tenant.ClaimSource("tid", authclaims.FromContext)
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(source(r) + "|" + authclaims.Subject(r.Context())))
	})
}

func TestMiddleware(t *testing.T) {
	t.Parallel()

	v := newVerifier(t)
	token, err := v.Sign(map[string]any{"sub": "u1", "tid": "acme"}, time.Hour)
	require.NoError(t, err)

	tests := []struct {
		name     string
		optional bool
		header   string
		wantCode int
		wantBody string
	}{
		{name: "valid token", header: "Bearer " + token, wantCode: http.StatusOK, wantBody: "acme|u1"},
		{name: "lowercase scheme", header: "bearer " + token, wantCode: http.StatusOK, wantBody: "acme|u1"},
		{name: "missing token", wantCode: http.StatusUnauthorized},
		{name: "malformed header", header: "Token " + token, wantCode: http.StatusUnauthorized},
		{name: "bad token", header: "Bearer nope", wantCode: http.StatusUnauthorized},
		{name: "optional without token", optional: true, wantCode: http.StatusOK, wantBody: "|"},
		{name: "optional with bad token", optional: true, header: "Bearer nope", wantCode: http.StatusUnauthorized},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			h := authclaims.MiddlewareWithConfig(authclaims.MiddlewareConfig{
				Verifier: v,
				Optional: tt.optional,
			})(echoTenantClaim())

			req := httptest.NewRequest(http.MethodGet, "/", nil)
			if tt.header != "" {
				req.Header.Set("Authorization", tt.header)
			}
			rec := httptest.NewRecorder()
			h.ServeHTTP(rec, req)

			assert.Equal(t, tt.wantCode, rec.Code)
			if tt.wantCode == http.StatusOK {
				assert.Equal(t, tt.wantBody, rec.Body.String())
			}
		})
	}
}

func TestFromContext(t *testing.T) {
	t.Parallel()

	_, ok := authclaims.FromContext(context.Background())
	assert.False(t, ok)

	ctx := authclaims.WithClaims(context.Background(), map[string]any{"sub": "u1"})
	claims, ok := authclaims.FromContext(ctx)
	require.True(t, ok)
	assert.Equal(t, "u1", claims["sub"])
	assert.Equal(t, "u1", authclaims.Subject(ctx))

	var _ tenant.ClaimsFunc = authclaims.FromContext
}
