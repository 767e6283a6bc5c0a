package tenant

import "errors"

var (
	// ErrTenantNotFound is returned when a tenant cannot be resolved.
	// Malformed identifiers and deleted tenants map to it as well.
	ErrTenantNotFound = errors.New("tenant not found")

	// ErrInactiveTenant is returned when a tenant resolved but is not active.
	ErrInactiveTenant = errors.New("tenant is inactive")

	// ErrInvalidSlug is returned when a slug does not match the slug format.
	ErrInvalidSlug = errors.New("invalid tenant slug")

	// ErrSlugTaken is returned when a slug or namespace is already registered.
	ErrSlugTaken = errors.New("tenant slug already taken")

	// ErrInvalidNamespace is returned for namespace names outside the allow-list.
	ErrInvalidNamespace = errors.New("invalid tenant namespace")

	// ErrNoTenantInContext is returned when no tenant is found in context.
	ErrNoTenantInContext = errors.New("no tenant in context")

	// ErrInvalidTransition is returned when a lifecycle event is not allowed
	// from the tenant's current status.
	ErrInvalidTransition = errors.New("invalid tenant status transition")
)
