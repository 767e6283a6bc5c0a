// Package tenant holds the tenant model, the registry contract and the
// request-side resolution of tenants.
//
// A Tenant row carries a slug chosen at creation and a Namespace derived from
// it by NamespaceName. The namespace is never supplied by a caller; it is
// always computed, and every identifier is checked against ValidateSlug or
// ValidNamespace before it reaches storage.
//
// # Resolution
//
// A Resolver turns raw identifiers into a Context snapshot:
//
//	resolver := tenant.NewResolver(registry, tenant.WithCacheTTL(time.Hour))
//	defer resolver.Close()
//
//	tc, err := resolver.Resolve(ctx, tenant.Candidates{Subdomain: "acme"})
//	if errors.Is(err, tenant.ErrTenantNotFound) {
//		// 404
//	}
//
// Candidates are tried in fixed order (subdomain, auth claim, header) and only
// the first non-empty one is used. Malformed, provisioning and deleted tenants
// all resolve to ErrTenantNotFound. Suspended tenants resolve so that
// administrative endpoints keep working; business routes must check
// Context.IsActive, which RequireActive does for HTTP.
//
// # HTTP
//
//	r.Use(tenant.Middleware(resolver, tenant.Sources{
//		Subdomain: tenant.SubdomainSource(".example.com"),
//		Claim:     tenant.ClaimSource("tenant", authclaims.FromContext),
//		Header:    tenant.HeaderSource(""),
//	}))
//	r.With(tenant.RequireActive(nil)).Get("/notes", listNotes)
//
// Handlers obtain the Context with FromContext and pass it explicitly to
// schema.Engine.WithTenant. There is no package-level "current tenant".
//
// # Lifecycle
//
// Status changes go through Transition, a pure lookup over the lifecycle
// table: provisioning→active, active↔suspended, active|suspended→deleted.
package tenant
