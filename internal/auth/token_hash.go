package auth

import (
	"crypto/sha256"
	"encoding/hex"
)

// hashToken derives the cache key for a bearer token. Storing digests instead
// of raw tokens keeps credentials out of the cache backend.
func hashToken(token string) string {
	digest := sha256.Sum256([]byte(token))
	return hex.EncodeToString(digest[:])
}
