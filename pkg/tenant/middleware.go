package tenant

import (
	"log/slog"
	"net/http"
	"strings"
)

// Middleware resolves the tenant once per request, before any business logic,
// and attaches the resulting Context to the request context.
func Middleware(resolver *Resolver, sources Sources, opts ...Option) func(http.Handler) http.Handler {
	cfg := &config{
		errorHandler: DefaultErrorHandler,
		logger:       slog.Default(),
	}
	for _, opt := range opts {
		opt(cfg)
	}

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			for _, skip := range cfg.skipPaths {
				if strings.HasPrefix(r.URL.Path, skip) {
					next.ServeHTTP(w, r)
					return
				}
			}

			candidates := sources.Candidates(r)
			if candidates.First() == "" {
				if cfg.optional {
					next.ServeHTTP(w, r)
					return
				}
				cfg.errorHandler(w, r, ErrTenantNotFound)
				return
			}

			tc, err := resolver.Resolve(r.Context(), candidates)
			if err != nil {
				cfg.logger.DebugContext(r.Context(), "tenant resolution failed",
					slog.String("path", r.URL.Path),
					slog.String("error", err.Error()))
				cfg.errorHandler(w, r, err)
				return
			}

			next.ServeHTTP(w, r.WithContext(WithContext(r.Context(), tc)))
		})
	}
}

// RequireActive rejects requests whose tenant is not active. Mount it on
// business routes; administrative routes may skip it so suspended tenants
// stay reachable there.
func RequireActive(errorHandler ErrorHandler) func(http.Handler) http.Handler {
	if errorHandler == nil {
		errorHandler = DefaultErrorHandler
	}

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			tc, ok := FromContext(r.Context())
			if !ok {
				errorHandler(w, r, ErrNoTenantInContext)
				return
			}
			if !tc.IsActive() {
				errorHandler(w, r, ErrInactiveTenant)
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}
