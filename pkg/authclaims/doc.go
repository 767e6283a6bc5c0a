// Package authclaims verifies bearer tokens and exposes their claims to the
// tenant resolver.
//
// Authentication itself belongs to the identity provider. This package only
// checks HS256 signatures and standard time claims, then makes the claim set
// available through FromContext, which plugs into tenant.ClaimSource:
//
//	v, err := authclaims.NewVerifier([]byte(cfg.Secret), cfg.VerifierOptions()...)
//	sources := tenant.Sources{
//	    Subdomain: tenant.SubdomainSource(".app.com"),
//	    Claim:     tenant.ClaimSource("tid", authclaims.FromContext),
//	}
//	r.Use(authclaims.MiddlewareWithConfig(authclaims.MiddlewareConfig{Verifier: v, Optional: true}))
package authclaims
