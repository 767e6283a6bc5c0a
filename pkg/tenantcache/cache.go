package tenantcache

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/dmitrymomot/boundary/pkg/tenant"
)

// Cache is a Store view confined to one tenant. Every key is rewritten with
// Key before it reaches the store, so one tenant can never read, overwrite
// or enumerate another tenant's entries.
type Cache struct {
	store    Store
	tenantID uuid.UUID
	prefix   string
}

// For scopes store to the tenant in tc.
func For(store Store, tc tenant.Context) (*Cache, error) {
	if tc.TenantID == uuid.Nil {
		return nil, tenant.ErrNoTenantInContext
	}
	return &Cache{store: store, tenantID: tc.TenantID, prefix: prefix(tc.TenantID)}, nil
}

// FromContext scopes store to the tenant resolved for the current request
// or job.
func FromContext(ctx context.Context, store Store) (*Cache, error) {
	tc, ok := tenant.FromContext(ctx)
	if !ok {
		return nil, tenant.ErrNoTenantInContext
	}
	return For(store, tc)
}

// TenantID returns the tenant the cache is scoped to.
func (c *Cache) TenantID() uuid.UUID { return c.tenantID }

func (c *Cache) Get(ctx context.Context, key string) ([]byte, error) {
	return c.store.Get(ctx, c.prefix+key)
}

func (c *Cache) Set(ctx context.Context, key string, value []byte, ttl time.Duration) error {
	return c.store.Set(ctx, c.prefix+key, value, ttl)
}

func (c *Cache) Delete(ctx context.Context, keys ...string) error {
	if len(keys) == 0 {
		return nil
	}
	scoped := make([]string, len(keys))
	for i, k := range keys {
		scoped[i] = c.prefix + k
	}
	return c.store.Delete(ctx, scoped...)
}

func (c *Cache) Incr(ctx context.Context, key string, delta int64) (int64, error) {
	return c.store.Incr(ctx, c.prefix+key, delta)
}

// Keys lists the tenant's keys matching pattern, without the tenant prefix.
func (c *Cache) Keys(ctx context.Context, pattern string) ([]string, error) {
	keys, err := c.store.Keys(ctx, escapeGlob(c.prefix)+pattern)
	if err != nil {
		return nil, err
	}
	out := make([]string, 0, len(keys))
	for _, k := range keys {
		if logical, ok := strings.CutPrefix(k, c.prefix); ok {
			out = append(out, logical)
		}
	}
	return out, nil
}

// DeletePattern removes the tenant's keys matching pattern.
func (c *Cache) DeletePattern(ctx context.Context, pattern string) (int, error) {
	return c.store.DeletePattern(ctx, escapeGlob(c.prefix)+pattern)
}

// Flush removes every key of the tenant.
func (c *Cache) Flush(ctx context.Context) (int, error) {
	return c.DeletePattern(ctx, "*")
}

// Flusher removes whole tenants from a store. Provisioning uses it when a
// tenant is hard-deleted.
type Flusher struct {
	store Store
}

// NewFlusher creates a Flusher over store.
func NewFlusher(store Store) *Flusher {
	return &Flusher{store: store}
}

// FlushTenant deletes every key of the tenant.
func (f *Flusher) FlushTenant(ctx context.Context, tenantID uuid.UUID) error {
	c, err := For(f.store, tenant.Context{TenantID: tenantID})
	if err != nil {
		return err
	}
	if _, err := c.Flush(ctx); err != nil {
		return fmt.Errorf("tenantcache: flush tenant %s: %w", tenantID, err)
	}
	return nil
}

// GetJSON decodes a JSON value stored with SetJSON.
func GetJSON[T any](ctx context.Context, c *Cache, key string) (T, error) {
	var v T
	data, err := c.Get(ctx, key)
	if err != nil {
		return v, err
	}
	if err := json.Unmarshal(data, &v); err != nil {
		return v, fmt.Errorf("tenantcache: decode %q: %w", key, err)
	}
	return v, nil
}

// SetJSON encodes v as JSON and stores it.
func SetJSON(ctx context.Context, c *Cache, key string, v any, ttl time.Duration) error {
	data, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("tenantcache: encode %q: %w", key, err)
	}
	return c.Set(ctx, key, data, ttl)
}
