package bundle

import (
	"crypto/sha256"
	"encoding/hex"
	"sort"
)

// keyHashLength is how many hex characters of the attribute digest are kept
// in a derived key.
const keyHashLength = 16

// DeriveKey computes the cache key for a caller identity plus optional
// context attributes. Identical inputs always derive the identical key, so
// repeated callers land on the same bundle; any attribute difference yields
// a distinct key and therefore a distinct bundle.
func DeriveKey(clientID string, attrs map[string]string) string {
	if len(attrs) == 0 {
		return clientID
	}

	keys := make([]string, 0, len(attrs))
	for k := range attrs {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	h := sha256.New()
	h.Write([]byte(clientID))
	for _, k := range keys {
		h.Write([]byte{0})
		h.Write([]byte(k))
		h.Write([]byte{'='})
		h.Write([]byte(attrs[k]))
	}

	return clientID + "#" + hex.EncodeToString(h.Sum(nil))[:keyHashLength]
}
