// Package tenantcache confines cache access to one tenant.
//
// Logical keys are rewritten to "tenant:<tenant id>:<key>" before they reach
// the backing Store, so a tenant can only see and remove its own entries.
// Keys returns logical keys with the prefix stripped.
//
//	store := tenantcache.NewRedisStore(client)
//
//	c, err := tenantcache.FromContext(r.Context(), store)
//	if err != nil {
//	    return err
//	}
//	if err := tenantcache.SetJSON(ctx, c, "dashboard", stats, time.Minute); err != nil {
//	    return err
//	}
//
// MemoryStore is an LRU with TTL for tests and single-process deployments.
package tenantcache
