package goerror

import (
	"errors"
	"fmt"
	"testing"
)

func TestSentinelMatching(t *testing.T) {
	tests := []struct {
		err      error
		sentinel error
	}{
		{Wrap(nil, "missing", CodeNotFound), ErrNotFound},
		{Wrap(nil, "dup", CodeDuplicateKey), ErrDuplicateKey},
		{Wrap(nil, "bad password", CodeAuthentication), ErrAuthentication},
		{Wrap(nil, "mangled", CodeCorrupt), ErrCorrupt},
		{Wrap(nil, "bad tag", CodeUnsupportedVersion), ErrUnsupportedVersion},
		{Wrap(nil, "padding", CodeIntegrity), ErrIntegrity},
		{NewTransport(nil, "net down"), ErrTransport},
		{Wrap(nil, "rejected", CodeActivation), ErrActivation},
		{Wrap(nil, "rejected", CodeReply), ErrReply},
	}
	for _, tt := range tests {
		if !errors.Is(tt.err, tt.sentinel) {
			t.Fatalf("errors.Is(%v, %v) = false, want true", tt.err, tt.sentinel)
		}
	}

	if errors.Is(Wrap(nil, "missing", CodeNotFound), ErrDuplicateKey) {
		t.Fatalf("NotFound error matched ErrDuplicateKey")
	}
}

func TestWrapPreservesCause(t *testing.T) {
	cause := errors.New("disk on fire")
	err := Wrap(cause, "vault save failed", CodeCorrupt)

	if !errors.Is(err, cause) {
		t.Fatalf("wrapped cause lost")
	}
	if err.Error() != "vault save failed" {
		t.Fatalf("Error() = %q, want the message", err.Error())
	}
}

func TestExitCodes(t *testing.T) {
	tests := []struct {
		err  error
		want int
	}{
		{nil, 0},
		{fmt.Errorf("plain"), 1},
		{NewServer(errors.New("boom")), 1},
		{NewInvalidInput(errors.New("bad field")), 2},
		{Wrap(nil, "missing", CodeNotFound), 3},
		{Wrap(nil, "dup", CodeDuplicateKey), 4},
		{Wrap(nil, "password", CodeAuthentication), 5},
		{Wrap(nil, "mangled", CodeCorrupt), 6},
		{Wrap(nil, "tag", CodeUnsupportedVersion), 6},
		{Wrap(nil, "padding", CodeIntegrity), 6},
		{NewTransport(nil, "net"), 7},
		{Wrap(nil, "slow", CodeTimeout), 7},
		{Wrap(nil, "rejected", CodeActivation), 8},
		{Wrap(nil, "rejected", CodeReply), 8},
	}
	for _, tt := range tests {
		if got := ExitCodeFor(tt.err); got != tt.want {
			t.Fatalf("ExitCodeFor(%v) = %d, want %d", tt.err, got, tt.want)
		}
	}
}

func TestNewInvalidInputFields(t *testing.T) {
	err := NewInvalidInput(nil, "name", "is required", "payload", "is malformed")

	var ge *Error
	if !errors.As(err, &ge) {
		t.Fatalf("not a *Error: %v", err)
	}
	if ge.Type() != TypeValidation {
		t.Fatalf("type = %v, want TypeValidation", ge.Type())
	}
	fields := ge.Fields()
	if fields["name"] != "is required" || fields["payload"] != "is malformed" {
		t.Fatalf("fields = %v", fields)
	}
}

func TestCodeFor(t *testing.T) {
	if got := CodeFor(Wrap(nil, "missing", CodeNotFound)); got != CodeNotFound {
		t.Fatalf("CodeFor = %v, want CodeNotFound", got)
	}
	if got := CodeFor(errors.New("plain")); got != CodeInternal {
		t.Fatalf("CodeFor(plain) = %v, want CodeInternal", got)
	}
}
