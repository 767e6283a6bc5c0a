package tenant

import (
	"context"
	"time"

	"github.com/google/uuid"
)

// Registry is the durable store of tenant records.
type Registry interface {
	// Create inserts a new tenant. Returns ErrSlugTaken when the slug or
	// namespace is already registered.
	Create(ctx context.Context, t *Tenant) error

	// GetByID returns ErrTenantNotFound if no row matches.
	GetByID(ctx context.Context, id uuid.UUID) (*Tenant, error)

	// GetBySlug returns ErrTenantNotFound if no row matches.
	GetBySlug(ctx context.Context, slug string) (*Tenant, error)

	// List returns tenants ordered by creation time. With no statuses given
	// it returns every tenant.
	List(ctx context.Context, statuses ...Status) ([]*Tenant, error)

	// UpdateStatus sets status and updated_at. Moving to StatusDeleted sets
	// deleted_at to at; moving away from it clears deleted_at.
	UpdateStatus(ctx context.Context, id uuid.UUID, status Status, at time.Time) (*Tenant, error)

	// Delete removes the row. Returns ErrTenantNotFound if no row matches.
	Delete(ctx context.Context, id uuid.UUID) error
}
