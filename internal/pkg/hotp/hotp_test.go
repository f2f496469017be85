package hotp

import (
	"testing"

	"github.com/pquerna/otp"
)

// RFC 4226 appendix D vectors for the ASCII seed "12345678901234567890".
func TestCodeAtRFC4226Vectors(t *testing.T) {
	const seed = "12345678901234567890"
	want := []string{
		"755224", "287082", "359152", "969429", "338314",
		"254676", "287922", "162583", "399871", "520489",
	}

	h := New(otp.DigitsSix)
	for counter, expected := range want {
		got, err := h.CodeAt(seed, uint64(counter))
		if err != nil {
			t.Fatalf("CodeAt(counter=%d) failed: %v", counter, err)
		}
		if got != expected {
			t.Fatalf("CodeAt(counter=%d) = %q, want %q", counter, got, expected)
		}
	}
}

func TestCodeAtDeterministic(t *testing.T) {
	h := New(otp.DigitsSix)

	a, err := h.CodeAt("some raw seed", 42)
	if err != nil {
		t.Fatalf("CodeAt failed: %v", err)
	}
	b, err := h.CodeAt("some raw seed", 42)
	if err != nil {
		t.Fatalf("CodeAt failed: %v", err)
	}
	if a != b {
		t.Fatalf("same seed and counter gave %q and %q", a, b)
	}

	c, err := h.CodeAt("some raw seed", 43)
	if err != nil {
		t.Fatalf("CodeAt failed: %v", err)
	}
	if a == c {
		t.Fatalf("adjacent counters gave the same code %q", a)
	}
}

func TestNewDefaultsToSixDigits(t *testing.T) {
	h := New(otp.Digits(99))
	code, err := h.CodeAt("12345678901234567890", 0)
	if err != nil {
		t.Fatalf("CodeAt failed: %v", err)
	}
	if len(code) != 6 {
		t.Fatalf("code %q is %d digits, want 6", code, len(code))
	}
}
