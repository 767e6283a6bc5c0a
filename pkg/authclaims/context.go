package authclaims

import "context"

type claimsKey struct{}

// WithClaims stores a verified claim set on ctx.
func WithClaims(ctx context.Context, claims map[string]any) context.Context {
	return context.WithValue(ctx, claimsKey{}, claims)
}

// FromContext returns the verified claim set. Its signature matches
// tenant.ClaimsFunc.
func FromContext(ctx context.Context) (map[string]any, bool) {
	claims, ok := ctx.Value(claimsKey{}).(map[string]any)
	return claims, ok && claims != nil
}

// Subject returns the sub claim of the verified principal.
func Subject(ctx context.Context) string {
	claims, _ := FromContext(ctx)
	sub, _ := claims["sub"].(string)
	return sub
}
