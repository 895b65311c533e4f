package cluster

import (
	"crypto/sha1"
	"encoding/hex"
	"regexp"
)

var digitRuns = regexp.MustCompile(`\d+`)

// Fingerprint derives the stable identity of a cluster from its component
// and representative message. Every maximal run of decimal digits is masked
// before hashing, so messages differing only in ids, counts or timestamps
// map to the same fingerprint across runs and processes. Not a security
// boundary: SHA-1 truncated to 12 hex chars is plenty at this scale.
func Fingerprint(component, message string) string {
	base := component + "|" + message
	normalized := digitRuns.ReplaceAllString(base, "#")
	sum := sha1.Sum([]byte(normalized))
	return hex.EncodeToString(sum[:])[:12]
}
