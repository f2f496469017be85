package vaultcrypto

import (
	"bytes"
	"errors"
	"testing"
)

func mustDerive(t *testing.T, password string, salt []byte) ([]byte, []byte) {
	t.Helper()

	outSalt, key, err := DeriveKey(password, salt)
	if err != nil {
		t.Fatalf("DeriveKey failed: %v", err)
	}
	return outSalt, key
}

func TestDeriveKeyDeterministic(t *testing.T) {
	salt := bytes.Repeat([]byte{0x5a}, SaltLen)

	_, key1 := mustDerive(t, "hunter2", salt)
	_, key2 := mustDerive(t, "hunter2", salt)

	if !bytes.Equal(key1, key2) {
		t.Fatalf("same password and salt produced different keys")
	}
	if len(key1) != KeyLen {
		t.Fatalf("derived key is %d bytes, want %d", len(key1), KeyLen)
	}

	_, other := mustDerive(t, "hunter3", salt)
	if bytes.Equal(key1, other) {
		t.Fatalf("different passwords produced the same key")
	}
}

func TestDeriveKeyFreshSalt(t *testing.T) {
	salt1, key1 := mustDerive(t, "pw", nil)
	salt2, key2 := mustDerive(t, "pw", nil)

	if len(salt1) != SaltLen {
		t.Fatalf("generated salt is %d bytes, want %d", len(salt1), SaltLen)
	}
	if bytes.Equal(salt1, salt2) {
		t.Fatalf("two generated salts are identical")
	}
	if bytes.Equal(key1, key2) {
		t.Fatalf("keys under different salts are identical")
	}
}

func TestDeriveKeyRejectsBadSalt(t *testing.T) {
	if _, _, err := DeriveKey("pw", []byte("short")); !errors.Is(err, ErrInvalidSaltLength) {
		t.Fatalf("got %v, want ErrInvalidSaltLength", err)
	}
}

func TestVerify(t *testing.T) {
	salt, key := mustDerive(t, "correct horse", nil)

	if !Verify(key, "correct horse", salt) {
		t.Fatalf("correct password did not verify")
	}
	if Verify(key, "battery staple", salt) {
		t.Fatalf("wrong password verified")
	}
	if Verify(key[:KeyLen-1], "correct horse", salt) {
		t.Fatalf("truncated key verified")
	}
}

func TestEncryptDecryptRoundTrip(t *testing.T) {
	_, key := mustDerive(t, "pw", bytes.Repeat([]byte{1}, SaltLen))

	for _, n := range []int{0, 1, 15, 16, 17, 31, 32, 1000} {
		plain := bytes.Repeat([]byte{0xab}, n)

		blob, err := Encrypt(plain, key)
		if err != nil {
			t.Fatalf("Encrypt(%d bytes) failed: %v", n, err)
		}
		got, err := Decrypt(blob, key)
		if err != nil {
			t.Fatalf("Decrypt(%d bytes) failed: %v", n, err)
		}
		if !bytes.Equal(got, plain) {
			t.Fatalf("round-trip of %d bytes lost data", n)
		}
	}
}

func TestEncryptFreshIV(t *testing.T) {
	_, key := mustDerive(t, "pw", bytes.Repeat([]byte{2}, SaltLen))
	plain := []byte("same plaintext")

	blob1, err := Encrypt(plain, key)
	if err != nil {
		t.Fatalf("Encrypt failed: %v", err)
	}
	blob2, err := Encrypt(plain, key)
	if err != nil {
		t.Fatalf("Encrypt failed: %v", err)
	}

	if bytes.Equal(blob1[:ivLen], blob2[:ivLen]) {
		t.Fatalf("two encryptions reused the IV")
	}
	if bytes.Equal(blob1, blob2) {
		t.Fatalf("two encryptions of the same plaintext are identical")
	}
}

func TestDecryptWrongKey(t *testing.T) {
	_, key := mustDerive(t, "pw", bytes.Repeat([]byte{3}, SaltLen))
	_, wrong := mustDerive(t, "not pw", bytes.Repeat([]byte{3}, SaltLen))
	plain := []byte("vault payload")

	blob, err := Encrypt(plain, key)
	if err != nil {
		t.Fatalf("Encrypt failed: %v", err)
	}

	// A wrong key almost always trips the padding check; in the rare case the
	// garbage ends in valid padding, the output still must not be the payload.
	got, err := Decrypt(blob, wrong)
	if err == nil && bytes.Equal(got, plain) {
		t.Fatalf("wrong key decrypted the payload")
	}
	if err != nil && !errors.Is(err, ErrIntegrity) {
		t.Fatalf("got %v, want ErrIntegrity", err)
	}
}

func TestDecryptStructuralErrors(t *testing.T) {
	_, key := mustDerive(t, "pw", bytes.Repeat([]byte{4}, SaltLen))

	if _, err := Decrypt(make([]byte, ivLen), key); !errors.Is(err, ErrCiphertextTooShort) {
		t.Fatalf("short blob: got %v, want ErrCiphertextTooShort", err)
	}
	if _, err := Decrypt(make([]byte, ivLen+blockSize+1), key); !errors.Is(err, ErrCiphertextNotAligned) {
		t.Fatalf("misaligned blob: got %v, want ErrCiphertextNotAligned", err)
	}
}

func TestDecryptTampered(t *testing.T) {
	_, key := mustDerive(t, "pw", bytes.Repeat([]byte{5}, SaltLen))
	plain := []byte("do not touch")

	blob, err := Encrypt(plain, key)
	if err != nil {
		t.Fatalf("Encrypt failed: %v", err)
	}
	blob[len(blob)-1] ^= 0xff

	got, err := Decrypt(blob, key)
	if err == nil && bytes.Equal(got, plain) {
		t.Fatalf("tampered blob decrypted to the original payload")
	}
}

func TestZero(t *testing.T) {
	b := []byte{1, 2, 3, 4}
	Zero(b)
	for i, v := range b {
		if v != 0 {
			t.Fatalf("byte %d not zeroed: %d", i, v)
		}
	}
}
