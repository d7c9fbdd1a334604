package crypto

import (
	"crypto/sha256"

	"golang.org/x/crypto/pbkdf2"
)

const (
	// KeyLength is the size of the derived AES-256 key (32 bytes / 256 bits)
	KeyLength = 32
	// SaltLength is the number of bytes of SHA-256(userID) used as the PBKDF2 salt
	SaltLength = 16
	// PBKDF2Iterations is the iteration count for key derivation
	PBKDF2Iterations = 100000
)

// DeriveKey derives a deterministic per-user encryption key from the user's
// opaque identifier. The salt is itself derived from the identifier, so the
// same user always yields the same key and historical messages stay
// decryptable without a key store.
//
// pepper is an optional server-held secret mixed into the password input.
// An empty pepper reproduces the legacy derivation exactly; deployments that
// set one make the key underivable from the user id alone.
func DeriveKey(userID, pepper string) []byte {
	digest := sha256.Sum256([]byte(userID))
	salt := digest[:SaltLength]

	return pbkdf2.Key([]byte(userID+pepper), salt, PBKDF2Iterations, KeyLength, sha256.New)
}
