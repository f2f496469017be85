// Package vaultcrypto implements the password-based encryption used by the
// vault file: PBKDF2-HMAC-SHA-256 key derivation and AES-256-CBC with a
// random IV prepended to the ciphertext.
//
// The format is deliberately frozen: vault files written by one build must
// decrypt under any other, so the derivation parameters (100000 rounds,
// 16-byte salt, 32-byte key) are constants, not configuration.
package vaultcrypto
