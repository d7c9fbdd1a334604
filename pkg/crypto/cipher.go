// Package crypto implements message encryption at rest: AES-256-GCM with a
// per-user key derived via PBKDF2-SHA-256. The wire layout of an encrypted
// message is base64(IV || ciphertext || tag).
package crypto

import (
	"crypto/aes"
	"crypto/cipher"
	"crypto/rand"
	"encoding/base64"
	"errors"
	"fmt"
	"io"
)

const (
	// IVLength is the size of the AES-GCM nonce (12 bytes / 96 bits)
	IVLength = 12
	// TagLength is the size of the GCM authentication tag (16 bytes)
	TagLength = 16
)

var (
	// ErrDecryptionFailed indicates decryption failed: the payload was
	// tampered with, malformed, or encrypted under a different key.
	ErrDecryptionFailed = errors.New("decryption failed: authentication tag mismatch or malformed payload")
	// ErrInvalidKey indicates the provided key is not a valid AES-256 key
	ErrInvalidKey = errors.New("encryption key must be 32 bytes")
)

// Encrypt encrypts plaintext under key with a fresh random IV per call.
// Encrypting the same text twice yields different outputs.
func Encrypt(plaintext string, key []byte) (string, error) {
	if len(key) != KeyLength {
		return "", ErrInvalidKey
	}

	block, err := aes.NewCipher(key)
	if err != nil {
		return "", fmt.Errorf("failed to create AES cipher: %w", err)
	}
	gcm, err := cipher.NewGCM(block)
	if err != nil {
		return "", fmt.Errorf("failed to create GCM cipher: %w", err)
	}

	iv := make([]byte, IVLength)
	if _, err := io.ReadFull(rand.Reader, iv); err != nil {
		return "", fmt.Errorf("failed to generate IV: %w", err)
	}

	// Seal appends ciphertext||tag, completing the IV||ciphertext||tag layout
	sealed := gcm.Seal(iv, iv, []byte(plaintext), nil)
	return base64.StdEncoding.EncodeToString(sealed), nil
}

// Decrypt reverses Encrypt, verifying the authentication tag. It fails
// closed with ErrDecryptionFailed rather than ever returning corrupted
// plaintext.
func Decrypt(payload string, key []byte) (string, error) {
	if len(key) != KeyLength {
		return "", ErrInvalidKey
	}

	data, err := base64.StdEncoding.DecodeString(payload)
	if err != nil {
		return "", ErrDecryptionFailed
	}
	if len(data) < IVLength+TagLength {
		return "", ErrDecryptionFailed
	}

	block, err := aes.NewCipher(key)
	if err != nil {
		return "", fmt.Errorf("failed to create AES cipher: %w", err)
	}
	gcm, err := cipher.NewGCM(block)
	if err != nil {
		return "", fmt.Errorf("failed to create GCM cipher: %w", err)
	}

	plaintext, err := gcm.Open(nil, data[:IVLength], data[IVLength:], nil)
	if err != nil {
		return "", ErrDecryptionFailed
	}

	return string(plaintext), nil
}

// LooksEncrypted reports whether text could plausibly be an encrypted
// payload: valid base64 whose decoded length covers at least an IV and a
// tag. Best-effort classifier for records written before the isEncrypted
// flag existed; never authoritative.
func LooksEncrypted(text string) bool {
	data, err := base64.StdEncoding.DecodeString(text)
	if err != nil {
		return false
	}
	return len(data) >= IVLength+TagLength
}
