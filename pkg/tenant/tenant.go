package tenant

import (
	"time"

	"github.com/google/uuid"
)

// Status is the lifecycle state of a tenant. It drives every access decision.
type Status string

const (
	StatusProvisioning Status = "provisioning"
	StatusActive       Status = "active"
	StatusSuspended    Status = "suspended"
	StatusDeleted      Status = "deleted"
)

// Valid reports whether s is a known status.
func (s Status) Valid() bool {
	switch s {
	case StatusProvisioning, StatusActive, StatusSuspended, StatusDeleted:
		return true
	}
	return false
}

// Tenant is one row of the tenant registry.
type Tenant struct {
	ID        uuid.UUID  `json:"id"`
	Slug      string     `json:"slug"`
	Name      string     `json:"name"`
	Namespace string     `json:"namespace"`
	Status    Status     `json:"status"`
	Plan      string     `json:"plan,omitempty"`
	CreatedAt time.Time  `json:"created_at"`
	UpdatedAt time.Time  `json:"updated_at"`
	DeletedAt *time.Time `json:"deleted_at,omitempty"`
}

// IsActive reports whether ordinary business operations are allowed.
func (t *Tenant) IsActive() bool {
	return t != nil && t.Status == StatusActive
}

// Clone returns a deep copy so cached and stored rows are never shared.
func (t *Tenant) Clone() *Tenant {
	if t == nil {
		return nil
	}
	c := *t
	if t.DeletedAt != nil {
		at := *t.DeletedAt
		c.DeletedAt = &at
	}
	return &c
}

// Context is the per-unit-of-work snapshot of a resolved tenant.
// It is a value: copy it freely, never mutate a shared one.
type Context struct {
	TenantID  uuid.UUID `json:"tenant_id"`
	Slug      string    `json:"slug"`
	Namespace string    `json:"namespace"`
	Status    Status    `json:"status"`
}

// NewContext snapshots a tenant row.
func NewContext(t *Tenant) Context {
	if t == nil {
		return Context{}
	}
	return Context{
		TenantID:  t.ID,
		Slug:      t.Slug,
		Namespace: t.Namespace,
		Status:    t.Status,
	}
}

// IsZero reports whether the context carries no tenant.
func (c Context) IsZero() bool {
	return c.TenantID == uuid.Nil && c.Namespace == ""
}

// IsActive reports whether the tenant was active when resolved.
func (c Context) IsActive() bool {
	return c.Status == StatusActive
}
