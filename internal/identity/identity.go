// Package identity derives stable identifiers from post content. The same
// post always maps to the same dedup fingerprint and document id, which makes
// publishing race-safe and index writes idempotent under redelivery.
package identity

import (
	"crypto/sha256"
	"encoding/hex"
	"strings"
)

// DocIDLen is the length documents ids are truncated to.
const DocIDLen = 24

// NormalizeURL strips the query string and any trailing slash. Tracking
// parameters are the usual reason the same article shows up under several
// URLs.
func NormalizeURL(raw string) string {
	s := strings.TrimSpace(raw)
	if i := strings.IndexByte(s, '?'); i > 0 {
		s = s[:i]
	}
	s = strings.TrimSuffix(s, "/")
	return s
}

// Key returns the content key a post is identified by: the normalized URL
// when present, otherwise the title. Also used as the Kafka message key for
// partition affinity.
func Key(url, title string) string {
	if n := NormalizeURL(url); n != "" {
		return n
	}
	return strings.TrimSpace(title)
}

// Fingerprint returns the source-scoped dedup hash for a post.
func Fingerprint(source, url, title string) string {
	sum := sha256.Sum256([]byte(source + "|" + Key(url, title)))
	return hex.EncodeToString(sum[:])
}

// DocumentID returns the deterministic search-index id for a post: a
// truncated hash of the normalized URL, or of source|title when the post has
// no URL.
func DocumentID(source, url, title string) string {
	var basis string
	if n := NormalizeURL(url); n != "" {
		basis = n
	} else {
		basis = source + "|" + strings.TrimSpace(title)
	}
	sum := sha256.Sum256([]byte(basis))
	return hex.EncodeToString(sum[:])[:DocIDLen]
}
