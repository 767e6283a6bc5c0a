package tenantcache

import (
	"context"
	"errors"
	"regexp"
	"strings"
	"time"
)

var (
	ErrCacheMiss = errors.New("tenantcache: key not found")
	ErrNotNumber = errors.New("tenantcache: value is not an integer")
)

// Store is a plain key/value backend. Keys are global; Cache is what scopes
// them to a tenant.
type Store interface {
	// Get returns ErrCacheMiss for missing or expired keys.
	Get(ctx context.Context, key string) ([]byte, error)
	// Set stores value. A zero ttl means no expiration.
	Set(ctx context.Context, key string, value []byte, ttl time.Duration) error
	Delete(ctx context.Context, keys ...string) error
	// Incr adds delta to an integer value, creating it at zero, and returns
	// the new value.
	Incr(ctx context.Context, key string, delta int64) (int64, error)
	// Keys lists keys matching a glob pattern where * matches any run of
	// characters and ? matches one.
	Keys(ctx context.Context, pattern string) ([]string, error)
	// DeletePattern removes keys matching a glob pattern and returns how
	// many were removed.
	DeletePattern(ctx context.Context, pattern string) (int, error)
}

// escapeGlob makes s match itself literally inside a glob pattern.
func escapeGlob(s string) string {
	var b strings.Builder
	for _, r := range s {
		switch r {
		case '*', '?', '[', ']', '\\':
			b.WriteByte('\\')
		}
		b.WriteRune(r)
	}
	return b.String()
}

// globRegexp compiles a glob pattern with * ? and backslash escapes.
func globRegexp(pattern string) (*regexp.Regexp, error) {
	var b strings.Builder
	b.WriteString("^")
	escaped := false
	for _, r := range pattern {
		switch {
		case escaped:
			b.WriteString(regexp.QuoteMeta(string(r)))
			escaped = false
		case r == '\\':
			escaped = true
		case r == '*':
			b.WriteString(".*")
		case r == '?':
			b.WriteString(".")
		default:
			b.WriteString(regexp.QuoteMeta(string(r)))
		}
	}
	b.WriteString("$")
	return regexp.Compile(b.String())
}
