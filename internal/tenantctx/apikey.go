package tenantctx

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
)

// HashAPIKey derives the storable, comparable digest of a raw tenant API
// key. Only the digest is persisted (domain.APIKeyEntry.KeyHash); the raw
// key is shown to the tenant exactly once, at creation time.
func HashAPIKey(rawKey string) string {
	sum := sha256.Sum256([]byte(rawKey))
	return hex.EncodeToString(sum[:])
}

// EqualAPIKeyHash performs a constant-time comparison between a computed
// hash and a stored hash, preventing timing side channels on key lookup.
func EqualAPIKeyHash(computed, stored string) bool {
	return hmac.Equal([]byte(computed), []byte(stored))
}
