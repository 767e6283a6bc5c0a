package tenant_test

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dmitrymomot/boundary/pkg/tenant"
)

func TestMemoryRegistry(t *testing.T) {
	t.Parallel()
	ctx := context.Background()

	t.Run("create and lookup", func(t *testing.T) {
		t.Parallel()

		reg := tenant.NewMemoryRegistry()
		tn := sampleTenant("acme")
		require.NoError(t, reg.Create(ctx, tn))

		byID, err := reg.GetByID(ctx, tn.ID)
		require.NoError(t, err)
		assert.Equal(t, tn, byID)

		bySlug, err := reg.GetBySlug(ctx, "acme")
		require.NoError(t, err)
		assert.Equal(t, tn.ID, bySlug.ID)
	})

	t.Run("duplicate slug is a conflict", func(t *testing.T) {
		t.Parallel()

		reg := tenant.NewMemoryRegistry()
		require.NoError(t, reg.Create(ctx, sampleTenant("acme")))
		assert.ErrorIs(t, reg.Create(ctx, sampleTenant("acme")), tenant.ErrSlugTaken)
	})

	t.Run("missing rows", func(t *testing.T) {
		t.Parallel()

		reg := tenant.NewMemoryRegistry()
		_, err := reg.GetByID(ctx, uuid.New())
		assert.ErrorIs(t, err, tenant.ErrTenantNotFound)
		_, err = reg.GetBySlug(ctx, "nope")
		assert.ErrorIs(t, err, tenant.ErrTenantNotFound)
		assert.ErrorIs(t, reg.Delete(ctx, uuid.New()), tenant.ErrTenantNotFound)
		_, err = reg.UpdateStatus(ctx, uuid.New(), tenant.StatusActive, time.Now())
		assert.ErrorIs(t, err, tenant.ErrTenantNotFound)
	})

	t.Run("list filters by status in creation order", func(t *testing.T) {
		t.Parallel()

		reg := tenant.NewMemoryRegistry()
		a := seed(t, reg, "aa", tenant.StatusActive)
		seed(t, reg, "bb", tenant.StatusSuspended)
		c := seed(t, reg, "cc", tenant.StatusActive)

		all, err := reg.List(ctx)
		require.NoError(t, err)
		assert.Len(t, all, 3)

		active, err := reg.List(ctx, tenant.StatusActive)
		require.NoError(t, err)
		require.Len(t, active, 2)
		assert.Equal(t, a.ID, active[0].ID)
		assert.Equal(t, c.ID, active[1].ID)
	})

	t.Run("update status manages deleted_at", func(t *testing.T) {
		t.Parallel()

		reg := tenant.NewMemoryRegistry()
		tn := seed(t, reg, "acme", tenant.StatusActive)
		at := time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC)

		deleted, err := reg.UpdateStatus(ctx, tn.ID, tenant.StatusDeleted, at)
		require.NoError(t, err)
		require.NotNil(t, deleted.DeletedAt)
		assert.Equal(t, at, *deleted.DeletedAt)
		assert.Equal(t, at, deleted.UpdatedAt)

		restored, err := reg.UpdateStatus(ctx, tn.ID, tenant.StatusActive, at.Add(time.Hour))
		require.NoError(t, err)
		assert.Nil(t, restored.DeletedAt)
	})

	t.Run("delete frees the slug", func(t *testing.T) {
		t.Parallel()

		reg := tenant.NewMemoryRegistry()
		tn := seed(t, reg, "acme", tenant.StatusActive)
		require.NoError(t, reg.Delete(ctx, tn.ID))

		_, err := reg.GetBySlug(ctx, "acme")
		assert.ErrorIs(t, err, tenant.ErrTenantNotFound)
		assert.NoError(t, reg.Create(ctx, sampleTenant("acme")))
	})
}
