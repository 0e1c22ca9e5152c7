package work

import (
	"crypto/sha256"
	"fmt"
	"strings"
)

// Fingerprint derives the cache key for a unit under the given prompt version.
// It is pure: identical unit content and version always produce the same key,
// and a prompt revision always produces a new one.
func Fingerprint(u Unit, promptVersion string) string {
	evidenceHash := sha256.Sum256([]byte(u.Evidence))

	canonical := strings.Join([]string{
		strings.TrimSpace(u.RecordID),
		strings.TrimSpace(u.Field),
		normalizeValue(u.Value),
		fmt.Sprintf("%x", evidenceHash[:]),
		strings.TrimSpace(promptVersion),
	}, "\x1f")

	sum := sha256.Sum256([]byte(canonical))
	return fmt.Sprintf("%x", sum[:])
}

// normalizeValue removes cosmetic differences (surrounding and repeated
// whitespace, letter case) so they do not cause cache misses. It never rounds
// or rewrites the content itself: distinct salary figures stay distinct.
func normalizeValue(value string) string {
	return strings.ToLower(strings.Join(strings.Fields(value), " "))
}
