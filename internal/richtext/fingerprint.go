package richtext

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
)

// Fingerprint returns a stable structural hash of the tree. Equal trees
// hash equally regardless of attribute insertion order; encoding/json
// serializes map keys sorted. A tree that cannot be serialized returns
// "", which compares unequal to everything, itself included.
func Fingerprint(n *Node) string {
	data, err := json.Marshal(n)
	if err != nil {
		return ""
	}
	sum := sha256.Sum256(data)
	return hex.EncodeToString(sum[:])
}

// SameFingerprint reports whether two fingerprints identify the same
// tree. The empty fingerprint never matches: malformed input always
// counts as changed.
func SameFingerprint(a, b string) bool {
	return a != "" && b != "" && a == b
}
