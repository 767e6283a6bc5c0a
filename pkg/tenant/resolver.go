package tenant

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
)

// DefaultCacheTTL bounds registry round-trips to one per slug per hour.
const DefaultCacheTTL = time.Hour

// Candidates holds the raw tenant identifiers extracted from one unit of work.
// They are tried in field order; the first non-empty one wins.
type Candidates struct {
	Subdomain string
	Claim     string
	Header    string
}

// First returns the highest-priority non-empty candidate.
func (c Candidates) First() string {
	for _, v := range [...]string{c.Subdomain, c.Claim, c.Header} {
		if v != "" {
			return v
		}
	}
	return ""
}

// Resolver maps a unit of work to a tenant Context.
type Resolver struct {
	registry Registry
	cache    Cache
	ttl      time.Duration
	logger   *slog.Logger
}

// ResolverOption configures a Resolver.
type ResolverOption func(*Resolver)

// WithCache sets a custom cache implementation.
func WithCache(cache Cache) ResolverOption {
	return func(r *Resolver) {
		if cache != nil {
			r.cache = cache
		}
	}
}

// WithCacheTTL sets how long resolved tenants stay cached.
func WithCacheTTL(ttl time.Duration) ResolverOption {
	return func(r *Resolver) {
		if ttl > 0 {
			r.ttl = ttl
		}
	}
}

// WithResolverLogger sets the logger.
func WithResolverLogger(logger *slog.Logger) ResolverOption {
	return func(r *Resolver) {
		if logger != nil {
			r.logger = logger
		}
	}
}

// NewResolver creates a Resolver backed by registry.
func NewResolver(registry Registry, opts ...ResolverOption) *Resolver {
	r := &Resolver{
		registry: registry,
		ttl:      DefaultCacheTTL,
		logger:   slog.Default(),
	}
	for _, opt := range opts {
		opt(r)
	}
	if r.cache == nil {
		r.cache = NewInMemoryCache()
	}
	return r
}

// Resolve picks the first non-empty candidate and resolves it as a slug.
// No merging across sources: a malformed first candidate is not-found even
// if a later one would be valid.
func (r *Resolver) Resolve(ctx context.Context, c Candidates) (Context, error) {
	return r.ResolveSlug(ctx, c.First())
}

// ResolveSlug resolves a slug through the cache, falling back to the registry.
func (r *Resolver) ResolveSlug(ctx context.Context, slug string) (Context, error) {
	if !IsValidSlug(slug) {
		return Context{}, ErrTenantNotFound
	}

	if cached, ok := r.cache.Get(ctx, slug); ok {
		return NewContext(cached), nil
	}

	t, err := r.registry.GetBySlug(ctx, slug)
	if err != nil {
		return Context{}, r.lookupError(ctx, slug, err)
	}

	if !resolvable(t) {
		return Context{}, ErrTenantNotFound
	}

	r.cache.Set(ctx, slug, t, r.ttl)
	return NewContext(t), nil
}

// ResolveID resolves a tenant by id straight from the registry, bypassing
// the cache. Work resumed outside the original request (jobs) uses this so
// it never runs on a stale snapshot.
func (r *Resolver) ResolveID(ctx context.Context, id uuid.UUID) (Context, error) {
	if id == uuid.Nil {
		return Context{}, ErrTenantNotFound
	}

	t, err := r.registry.GetByID(ctx, id)
	if err != nil {
		return Context{}, r.lookupError(ctx, id.String(), err)
	}

	if !resolvable(t) {
		return Context{}, ErrTenantNotFound
	}
	return NewContext(t), nil
}

// Invalidate drops a cached slug. Called after every tenant mutation.
func (r *Resolver) Invalidate(ctx context.Context, slug string) {
	r.cache.Delete(ctx, slug)
}

// Close releases the cache.
func (r *Resolver) Close() error {
	return r.cache.Close()
}

func (r *Resolver) lookupError(ctx context.Context, identifier string, err error) error {
	if errors.Is(err, ErrTenantNotFound) {
		return ErrTenantNotFound
	}
	r.logger.ErrorContext(ctx, "tenant registry lookup failed",
		slog.String("identifier", identifier),
		slog.String("error", err.Error()))
	return fmt.Errorf("resolve tenant %q: %w", identifier, err)
}

// Only active and suspended tenants resolve. Suspended tenants still need
// administrative access; provisioning and deleted ones look nonexistent.
func resolvable(t *Tenant) bool {
	return t != nil && (t.Status == StatusActive || t.Status == StatusSuspended)
}
