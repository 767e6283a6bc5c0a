package tenantcache

import (
	"strings"

	"github.com/google/uuid"
)

const keyPrefix = "tenant:"

// Key rewrites a logical key into the tenant's key space. Distinct
// (tenant, key) pairs always produce distinct keys because the tenant part
// has a fixed length.
func Key(tenantID uuid.UUID, key string) string {
	return prefix(tenantID) + key
}

// SplitKey is the inverse of Key.
func SplitKey(stored string) (uuid.UUID, string, bool) {
	rest, ok := strings.CutPrefix(stored, keyPrefix)
	if !ok || len(rest) < 37 || rest[36] != ':' {
		return uuid.Nil, "", false
	}
	id, err := uuid.Parse(rest[:36])
	if err != nil {
		return uuid.Nil, "", false
	}
	return id, rest[37:], true
}

func prefix(tenantID uuid.UUID) string {
	return keyPrefix + tenantID.String() + ":"
}
