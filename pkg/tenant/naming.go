package tenant

import (
	"encoding/hex"
	"regexp"
	"strings"
	"unicode"

	"golang.org/x/crypto/blake2b"
	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"
)

const (
	MinSlugLength = 2
	MaxSlugLength = 100

	// maxIdentifierLength is the PostgreSQL identifier limit (NAMEDATALEN-1).
	// Longer names are silently truncated by the server, which would break
	// injectivity, so long slugs switch to the digest form.
	maxIdentifierLength = 63

	namespacePrefix       = "t_"
	digestNamespacePrefix = "th_"
	digestHeadLength      = 40
	digestBytes           = 8
)

var (
	slugPattern      = regexp.MustCompile(`^[a-z0-9](?:[a-z0-9-]*[a-z0-9])?$`)
	namespacePattern = regexp.MustCompile(`^[a-z_][a-z0-9_]{0,62}$`)
)

// ValidateSlug checks the slug format: lowercase alphanumerics and hyphens,
// 2 to 100 characters, no leading or trailing hyphen.
func ValidateSlug(slug string) error {
	if len(slug) < MinSlugLength || len(slug) > MaxSlugLength || !slugPattern.MatchString(slug) {
		return ErrInvalidSlug
	}
	return nil
}

// IsValidSlug is the boolean form of ValidateSlug.
func IsValidSlug(slug string) bool {
	return ValidateSlug(slug) == nil
}

// NamespaceName derives the database namespace for a slug.
//
// Short slugs map to "t_" + slug with hyphens replaced by underscores.
// Slugs whose short form would exceed 63 bytes map to
// "th_" + first 40 normalized bytes + "_" + 16 hex digits of blake2b(slug).
// Both forms are distinct by prefix. Callers must validate the slug first;
// the mapping is only guaranteed injective over valid slugs.
func NamespaceName(slug string) string {
	var b strings.Builder
	b.Grow(len(slug))
	for _, r := range slug {
		switch {
		case r >= 'a' && r <= 'z', r >= '0' && r <= '9':
			b.WriteRune(r)
		default:
			b.WriteByte('_')
		}
	}
	normalized := b.String()

	if len(namespacePrefix)+len(normalized) <= maxIdentifierLength {
		return namespacePrefix + normalized
	}

	sum := blake2b.Sum256([]byte(slug))
	return digestNamespacePrefix + normalized[:digestHeadLength] + "_" + hex.EncodeToString(sum[:digestBytes])
}

// ValidNamespace reports whether name is safe to use as a namespace identifier.
func ValidNamespace(name string) bool {
	return namespacePattern.MatchString(name)
}

// SuggestSlug derives a slug candidate from a display name.
// Diacritics are folded to ASCII, everything else collapses to single hyphens.
// Returns an empty string when nothing usable remains.
func SuggestSlug(displayName string) string {
	folded, _, err := transform.String(
		transform.Chain(norm.NFD, runes.Remove(runes.In(unicode.Mn)), norm.NFC),
		displayName,
	)
	if err != nil {
		folded = displayName
	}

	var b strings.Builder
	lastHyphen := true
	for _, r := range strings.ToLower(folded) {
		if b.Len() >= MaxSlugLength {
			break
		}
		if (r >= 'a' && r <= 'z') || (r >= '0' && r <= '9') {
			b.WriteRune(r)
			lastHyphen = false
			continue
		}
		if !lastHyphen {
			b.WriteByte('-')
			lastHyphen = true
		}
	}

	slug := strings.Trim(b.String(), "-")
	if !IsValidSlug(slug) {
		return ""
	}
	return slug
}
