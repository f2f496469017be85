package hotp

import (
	"encoding/base32"

	"github.com/pquerna/otp"
	"github.com/pquerna/otp/hotp"
)

// OTP defines the contract for counter-based one-time-password computation.
//
// Implementations are pure: the same (seed, counter) pair always yields the
// same code, and no call mutates counter state. Counter bookkeeping belongs
// to the vault.
type OTP interface {
	// CodeAt computes the code for the shared seed at a counter value.
	CodeAt(seed string, counter uint64) (string, error)
}

// HOTP implements OTP using the HMAC-SHA-1 counter-based algorithm (RFC 4226).
type HOTP struct {
	digits otp.Digits
}

// New constructs an HOTP instance with sensible defaults.
//
// If digits is not 6 or 8, it falls back to 6 digits, which is what the
// server provisions.
func New(digits otp.Digits) *HOTP {
	if digits != otp.DigitsSix && digits != otp.DigitsEight {
		digits = otp.DigitsSix
	}
	return &HOTP{digits: digits}
}

// CodeAt computes the code for the shared seed at a counter value.
//
// The seed is the raw byte string handed out during activation; it is
// base32-encoded here because that is the secret alphabet the algorithm
// works over.
func (h *HOTP) CodeAt(seed string, counter uint64) (string, error) {
	secret := base32.StdEncoding.EncodeToString([]byte(seed))
	return hotp.GenerateCodeCustom(secret, counter, hotp.ValidateOpts{
		Digits:    h.digits,
		Algorithm: otp.AlgorithmSHA1,
	})
}
