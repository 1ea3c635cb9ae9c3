package utils

import (
	"crypto/sha1"
	"encoding/hex"
	"strings"
)

// argSeparator cannot appear in GTFS identifiers, so joined sets stay unambiguous.
const argSeparator = "\x1f"

// CanonicalKey encodes an unordered argument set as a stable cache key component.
//
// The set is de-duplicated and sorted before hashing, so two collections holding
// the same ids in any order map to the same key. Hashing keeps keys short even
// when the set holds thousands of trip ids.
func CanonicalKey(args []string) string {
	if len(args) == 0 {
		return "-"
	}
	joined := strings.Join(SortedUnique(args), argSeparator)
	hash := sha1.Sum([]byte(joined))
	return hex.EncodeToString(hash[:])
}

// CacheKey joins a key base with the canonical encoding of args.
func CacheKey(keyBase string, args []string) string {
	if args == nil {
		return keyBase
	}
	return keyBase + ":" + CanonicalKey(args)
}
