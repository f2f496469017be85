package vaultcrypto

import (
	"crypto/aes"
	"crypto/cipher"
	"crypto/rand"
	"crypto/sha256"
	"crypto/subtle"
	"errors"
	"fmt"
	"io"

	"golang.org/x/crypto/pbkdf2"
)

const (
	// SaltLen is the fixed salt length in bytes.
	SaltLen = 16
	// KeyLen is the derived key length in bytes (AES-256).
	KeyLen = 32
	// Rounds is the PBKDF2 iteration count. Frozen: changing it breaks
	// decryption of existing vaults.
	Rounds = 100000

	ivLen     = aes.BlockSize
	blockSize = aes.BlockSize
)

var (
	// ErrInvalidKeyLength indicates the key length is invalid.
	ErrInvalidKeyLength = errors.New("vaultcrypto: invalid key length")
	// ErrInvalidSaltLength indicates the salt length is invalid.
	ErrInvalidSaltLength = errors.New("vaultcrypto: invalid salt length")
	// ErrCiphertextTooShort indicates a truncated ciphertext blob.
	ErrCiphertextTooShort = errors.New("vaultcrypto: ciphertext too short")
	// ErrCiphertextNotAligned indicates the ciphertext is not block-aligned.
	ErrCiphertextNotAligned = errors.New("vaultcrypto: ciphertext not block-aligned")
	// ErrIntegrity indicates decryption produced invalid padding, which means
	// a wrong key or a tampered blob. Never unpadded silently.
	ErrIntegrity = errors.New("vaultcrypto: invalid padding")
)

// DeriveKey derives a 32-byte AES key from the password.
//
// When salt is nil a fresh cryptographically random 16-byte salt is generated.
// The derivation is deterministic for a fixed (password, salt) pair across
// processes and platforms.
func DeriveKey(password string, salt []byte) (outSalt, key []byte, err error) {
	if salt == nil {
		salt = make([]byte, SaltLen)
		if _, err := io.ReadFull(rand.Reader, salt); err != nil {
			return nil, nil, fmt.Errorf("vaultcrypto: salt generation failed: %w", err)
		}
	}
	if len(salt) != SaltLen {
		return nil, nil, fmt.Errorf("vaultcrypto: salt is %d bytes (want %d): %w", len(salt), SaltLen, ErrInvalidSaltLength)
	}

	key = pbkdf2.Key([]byte(password), salt, Rounds, KeyLen, sha256.New)
	return salt, key, nil
}

// Verify reports whether password re-derives the given key under salt.
// The comparison is constant-time so it leaks nothing about how close a
// guess is.
func Verify(key []byte, password string, salt []byte) bool {
	if len(key) != KeyLen || len(salt) != SaltLen {
		return false
	}
	derived := pbkdf2.Key([]byte(password), salt, Rounds, KeyLen, sha256.New)
	defer Zero(derived)
	return subtle.ConstantTimeCompare(key, derived) == 1
}

// Encrypt encrypts plaintext with AES-256-CBC under a fresh random IV.
//
// Blob layout: [0..15] IV, [16..] ciphertext of the PKCS#7-padded plaintext.
// A new IV is generated on every call; it is never reused for a given key.
func Encrypt(plaintext, key []byte) ([]byte, error) {
	if len(key) != KeyLen {
		return nil, fmt.Errorf("vaultcrypto: key is %d bytes (want %d for AES-256): %w", len(key), KeyLen, ErrInvalidKeyLength)
	}

	block, err := aes.NewCipher(key)
	if err != nil {
		return nil, fmt.Errorf("vaultcrypto: aes init failed: %w", err)
	}

	padded := pad(plaintext)
	out := make([]byte, ivLen+len(padded))
	iv := out[:ivLen]
	if _, err := io.ReadFull(rand.Reader, iv); err != nil {
		return nil, fmt.Errorf("vaultcrypto: iv generation failed: %w", err)
	}

	cipher.NewCBCEncrypter(block, iv).CryptBlocks(out[ivLen:], padded)
	return out, nil
}

// Decrypt decrypts an IV-prefixed AES-256-CBC blob.
//
// Structural problems (truncation, misalignment) and invalid padding fail
// with typed errors; garbage is never returned as plaintext.
func Decrypt(blob, key []byte) ([]byte, error) {
	if len(key) != KeyLen {
		return nil, fmt.Errorf("vaultcrypto: key is %d bytes (want %d for AES-256): %w", len(key), KeyLen, ErrInvalidKeyLength)
	}
	if len(blob) < ivLen+blockSize {
		return nil, ErrCiphertextTooShort
	}
	if (len(blob)-ivLen)%blockSize != 0 {
		return nil, ErrCiphertextNotAligned
	}

	block, err := aes.NewCipher(key)
	if err != nil {
		return nil, fmt.Errorf("vaultcrypto: aes init failed: %w", err)
	}

	iv := blob[:ivLen]
	ct := blob[ivLen:]
	plain := make([]byte, len(ct))
	cipher.NewCBCDecrypter(block, iv).CryptBlocks(plain, ct)

	unpadded, err := unpad(plain)
	if err != nil {
		Zero(plain)
		return nil, err
	}
	return unpadded, nil
}

// Zero overwrites b in place. Use it on every exit path that held key
// material or plaintext secrets.
func Zero(b []byte) {
	for i := range b {
		b[i] = 0
	}
}

// pad applies PKCS#7 padding to a full block multiple.
func pad(b []byte) []byte {
	n := blockSize - len(b)%blockSize
	out := make([]byte, len(b)+n)
	copy(out, b)
	for i := len(b); i < len(out); i++ {
		out[i] = byte(n)
	}
	return out
}

// unpad strips PKCS#7 padding, checking every padding byte.
func unpad(b []byte) ([]byte, error) {
	if len(b) == 0 || len(b)%blockSize != 0 {
		return nil, ErrIntegrity
	}
	n := int(b[len(b)-1])
	if n == 0 || n > blockSize || n > len(b) {
		return nil, ErrIntegrity
	}
	for _, p := range b[len(b)-n:] {
		if int(p) != n {
			return nil, ErrIntegrity
		}
	}
	return b[:len(b)-n], nil
}
