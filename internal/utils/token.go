package utils // package utils provides the hashing, signing and random-token helpers used by auth

import (
	"crypto/rand"   // secure random number generation
	"crypto/subtle" // constant-time comparison
	"encoding/hex"  // hex encoding of random bytes
)

// secureTokenBytes is the entropy of verification and reset tokens
// (256 bits, 64 hex characters).
const secureTokenBytes = 32

// GenerateSecureToken returns an opaque, URL-safe token drawn from
// crypto/rand.  It is used for both email verification and password reset.
func GenerateSecureToken() (string, error) {
	return randomHex(secureTokenBytes)
}

// TokensEqual compares two opaque tokens without leaking timing
// information about where they differ.  Empty values never match.
func TokensEqual(a, b string) bool {
	if a == "" || b == "" {
		return false
	}
	return subtle.ConstantTimeCompare([]byte(a), []byte(b)) == 1
}

// randomHex returns a hex-encoded string generated from n bytes of
// cryptographically secure random data.
func randomHex(n int) (string, error) {
	buf := make([]byte, n)
	if _, err := rand.Read(buf); err != nil {
		return "", err
	}
	return hex.EncodeToString(buf), nil
}
