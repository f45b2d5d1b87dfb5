// Package auth holds the password hashing shared by the login service and the
// startup seed, so the stored hash and the verified hash cannot drift apart.
package auth

import (
	"crypto/sha256"
	"encoding/hex"
)

// HashPassword returns the hex-encoded digest stored in users.password_hash.
func HashPassword(password string) string {
	sum := sha256.Sum256([]byte(password))
	return hex.EncodeToString(sum[:])
}
