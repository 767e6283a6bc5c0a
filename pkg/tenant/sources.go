package tenant

import (
	"context"
	"net/http"
	"strings"
)

// DefaultHeaderName is the header read by HeaderSource when none is given.
const DefaultHeaderName = "X-Tenant-ID"

// Source extracts one raw tenant identifier candidate from a request.
// It returns an empty string when the source carries nothing.
// Sources never validate: validation happens once, in the Resolver.
type Source func(r *http.Request) string

// Sources holds one extractor per candidate slot.
type Sources struct {
	Subdomain Source
	Claim     Source
	Header    Source
}

// Candidates extracts candidates from a request. Nil sources yield empty slots.
func (s Sources) Candidates(r *http.Request) Candidates {
	var c Candidates
	if s.Subdomain != nil {
		c.Subdomain = s.Subdomain(r)
	}
	if s.Claim != nil {
		c.Claim = s.Claim(r)
	}
	if s.Header != nil {
		c.Header = s.Header(r)
	}
	return c
}

// SubdomainSource extracts the leftmost host label ("acme" from
// "acme.app.com"). When suffix is set it is stripped first. A "www" label is
// skipped. Hosts without a subdomain yield nothing.
func SubdomainSource(suffix string) Source {
	return func(req *http.Request) string {
		host := req.Host
		if idx := strings.LastIndex(host, ":"); idx != -1 {
			host = host[:idx]
		}
		host = strings.ToLower(strings.TrimSpace(host))

		// Require subdomain.domain.tld
		if strings.Count(host, ".") < 2 {
			return ""
		}

		if suffix != "" && strings.HasSuffix(host, suffix) && len(host) > len(suffix) {
			host = strings.TrimSuffix(host, suffix)
		}

		parts := strings.Split(host, ".")
		label := parts[0]
		if label == "www" {
			if len(parts) < 2 || (suffix == "" && len(parts) < 4) {
				return ""
			}
			label = parts[1]
		}
		return label
	}
}

// HeaderSource reads a request header. Defaults to X-Tenant-ID.
func HeaderSource(name string) Source {
	if name == "" {
		name = DefaultHeaderName
	}
	return func(req *http.Request) string {
		return strings.TrimSpace(req.Header.Get(name))
	}
}

// ClaimsFunc returns the already-verified claim set of the request principal.
type ClaimsFunc func(ctx context.Context) (map[string]any, bool)

// ClaimSource reads a string claim from the verified claim set.
// Authentication happens upstream; this only reads.
func ClaimSource(key string, claims ClaimsFunc) Source {
	return func(req *http.Request) string {
		if claims == nil {
			return ""
		}
		set, ok := claims(req.Context())
		if !ok {
			return ""
		}
		v, _ := set[key].(string)
		return strings.TrimSpace(v)
	}
}
