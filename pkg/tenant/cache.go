package tenant

import (
	"container/list"
	"context"
	"sync"
	"time"
)

// Cache is the interface for tenant lookup caches used by the Resolver.
type Cache interface {
	// Get retrieves a tenant by slug.
	Get(ctx context.Context, key string) (*Tenant, bool)

	// Set stores a tenant with the given TTL.
	Set(ctx context.Context, key string, tenant *Tenant, ttl time.Duration)

	// Delete removes a tenant.
	Delete(ctx context.Context, key string)

	// Close releases any resources held by the cache.
	Close() error
}

// DefaultCacheSize is the default maximum number of items in the cache.
const DefaultCacheSize = 1000

type cacheEntry struct {
	key       string
	tenant    *Tenant
	expiresAt time.Time
}

// inMemoryCache is an LRU map with per-entry expiry. Entries are immutable:
// Set always stores a fresh clone and Get hands out a clone, so a concurrent
// reader never observes a partially updated row.
type inMemoryCache struct {
	mu       sync.Mutex
	items    map[string]*list.Element
	eviction *list.List
	maxSize  int
	now      func() time.Time
	stop     chan struct{}
	done     chan struct{}
	closed   bool
}

// CacheOption configures the in-memory cache.
type CacheOption func(*inMemoryCache)

// WithCacheSize caps the number of cached tenants.
func WithCacheSize(n int) CacheOption {
	return func(c *inMemoryCache) {
		if n > 0 {
			c.maxSize = n
		}
	}
}

// WithCacheClock overrides the time source, mostly for tests.
func WithCacheClock(now func() time.Time) CacheOption {
	return func(c *inMemoryCache) {
		if now != nil {
			c.now = now
		}
	}
}

// NewInMemoryCache creates an in-memory cache with background cleanup.
func NewInMemoryCache(opts ...CacheOption) Cache {
	c := &inMemoryCache{
		items:    make(map[string]*list.Element),
		eviction: list.New(),
		maxSize:  DefaultCacheSize,
		now:      time.Now,
		stop:     make(chan struct{}),
		done:     make(chan struct{}),
	}
	for _, opt := range opts {
		opt(c)
	}

	go c.cleanup()

	return c
}

func (c *inMemoryCache) Get(ctx context.Context, key string) (*Tenant, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	elem, ok := c.items[key]
	if !ok {
		return nil, false
	}

	entry := elem.Value.(*cacheEntry)
	if !c.now().Before(entry.expiresAt) {
		c.removeElement(elem)
		return nil, false
	}

	c.eviction.MoveToFront(elem)
	return entry.tenant.Clone(), true
}

func (c *inMemoryCache) Set(ctx context.Context, key string, tenant *Tenant, ttl time.Duration) {
	if tenant == nil || ttl <= 0 {
		return
	}

	entry := &cacheEntry{
		key:       key,
		tenant:    tenant.Clone(),
		expiresAt: c.now().Add(ttl),
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	if elem, ok := c.items[key]; ok {
		elem.Value = entry
		c.eviction.MoveToFront(elem)
		return
	}

	c.items[key] = c.eviction.PushFront(entry)
	if c.eviction.Len() > c.maxSize {
		if oldest := c.eviction.Back(); oldest != nil {
			c.removeElement(oldest)
		}
	}
}

func (c *inMemoryCache) Delete(ctx context.Context, key string) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if elem, ok := c.items[key]; ok {
		c.removeElement(elem)
	}
}

// Must be called with lock held.
func (c *inMemoryCache) removeElement(elem *list.Element) {
	c.eviction.Remove(elem)
	delete(c.items, elem.Value.(*cacheEntry).key)
}

func (c *inMemoryCache) cleanup() {
	ticker := time.NewTicker(time.Minute)
	defer ticker.Stop()
	defer close(c.done)

	for {
		select {
		case <-ticker.C:
			c.removeExpired()
		case <-c.stop:
			return
		}
	}
}

func (c *inMemoryCache) removeExpired() {
	c.mu.Lock()
	defer c.mu.Unlock()

	now := c.now()
	for _, elem := range c.items {
		if !now.Before(elem.Value.(*cacheEntry).expiresAt) {
			c.removeElement(elem)
		}
	}
}

// Close stops the cleanup goroutine and waits for it to finish.
func (c *inMemoryCache) Close() error {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return nil
	}
	c.closed = true
	c.mu.Unlock()

	close(c.stop)
	<-c.done
	return nil
}

// noOpCache disables caching.
type noOpCache struct{}

// NewNoOpCache creates a cache that doesn't cache.
func NewNoOpCache() Cache {
	return noOpCache{}
}

func (noOpCache) Get(context.Context, string) (*Tenant, bool) { return nil, false }
func (noOpCache) Set(context.Context, string, *Tenant, time.Duration) {}
func (noOpCache) Delete(context.Context, string) {}
func (noOpCache) Close() error { return nil }
