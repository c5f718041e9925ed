package registry

import (
	"crypto/sha256"
	"crypto/subtle"
	"encoding/hex"
)

// HashPassword returns the hex SHA-256 digest of the UTF-8 password.
func HashPassword(password string) string {
	sum := sha256.Sum256([]byte(password))
	return hex.EncodeToString(sum[:])
}

// VerifyPassword compares password against the profile's stored digest in
// constant time.
func VerifyPassword(profile Profile, password string) bool {
	want := []byte(profile.PasswordHash)
	got := []byte(HashPassword(password))
	return subtle.ConstantTimeCompare(want, got) == 1
}

func isDigest(s string) bool {
	if len(s) != sha256.Size*2 {
		return false
	}
	for _, c := range s {
		if !('0' <= c && c <= '9' || 'a' <= c && c <= 'f') {
			return false
		}
	}
	return true
}
