package goerror

import (
	"errors"
	"fmt"
)

var (
	// ErrNotFound indicates a missing vault file or key record.
	ErrNotFound = errors.New("resource not found")

	// ErrAuthentication indicates the vault password did not verify.
	ErrAuthentication = errors.New("authentication failed")

	// ErrCorrupt indicates the vault ciphertext or payload is malformed.
	ErrCorrupt = errors.New("vault corrupt")

	// ErrUnsupportedVersion indicates an unrecognized vault format version tag.
	ErrUnsupportedVersion = errors.New("unsupported vault version")

	// ErrDuplicateKey indicates a key record with the same name already exists.
	ErrDuplicateKey = errors.New("duplicate key")

	// ErrIntegrity indicates decryption produced a structurally invalid result.
	ErrIntegrity = errors.New("integrity check failed")

	// ErrTransport indicates a network-level failure talking to the server.
	ErrTransport = errors.New("transport failure")

	// ErrActivation indicates the device-activation handshake was rejected.
	ErrActivation = errors.New("activation failed")

	// ErrReply indicates a transaction reply was rejected or could not be sent.
	ErrReply = errors.New("transaction reply failed")
)

// Type classifies errors into high-level buckets used by the application.
type Type int

const (
	// TypeServer represents internal failures and remote-server failures.
	TypeServer Type = iota
	// TypeBusiness represents domain rule violations.
	TypeBusiness
	// TypeValidation represents input validation failures.
	TypeValidation
)

// String returns the string representation of the error type.
func (t Type) String() string {
	switch t {
	case TypeValidation:
		return "ERROR_TYPE_VALIDATION"
	case TypeBusiness:
		return "ERROR_TYPE_BUSINESS"
	case TypeServer:
		return "ERROR_TYPE_SERVER"
	default:
		return "ERROR_TYPE_UNKNOWN"
	}
}

// Code is a stable identifier used for mapping errors to process exit codes
// and machine-readable CLI output.
type Code int

const (
	// CodeInternal represents an internal or unspecified error.
	CodeInternal Code = iota
	// CodeInvalidInput indicates invalid command input.
	CodeInvalidInput
	// CodeNotFound indicates a missing vault or key record.
	CodeNotFound
	// CodeDuplicateKey indicates a key name collision.
	CodeDuplicateKey
	// CodeAuthentication indicates a wrong vault password.
	CodeAuthentication
	// CodeCorrupt indicates a malformed vault.
	CodeCorrupt
	// CodeUnsupportedVersion indicates an unknown vault format version.
	CodeUnsupportedVersion
	// CodeIntegrity indicates ciphertext failed structural checks.
	CodeIntegrity
	// CodeTransport indicates a network failure.
	CodeTransport
	// CodeActivation indicates a rejected activation handshake.
	CodeActivation
	// CodeReply indicates a rejected transaction reply.
	CodeReply
	// CodeTimeout indicates a deadline was exceeded.
	CodeTimeout
)

// String returns the string representation of the error code.
func (c Code) String() string {
	switch c {
	case CodeInvalidInput:
		return "ERROR_CODE_INVALID_INPUT"
	case CodeNotFound:
		return "ERROR_CODE_NOT_FOUND"
	case CodeDuplicateKey:
		return "ERROR_CODE_DUPLICATE_KEY"
	case CodeAuthentication:
		return "ERROR_CODE_AUTHENTICATION"
	case CodeCorrupt:
		return "ERROR_CODE_CORRUPT"
	case CodeUnsupportedVersion:
		return "ERROR_CODE_UNSUPPORTED_VERSION"
	case CodeIntegrity:
		return "ERROR_CODE_INTEGRITY"
	case CodeTransport:
		return "ERROR_CODE_TRANSPORT"
	case CodeActivation:
		return "ERROR_CODE_ACTIVATION"
	case CodeReply:
		return "ERROR_CODE_REPLY"
	case CodeTimeout:
		return "ERROR_CODE_TIMEOUT"
	case CodeInternal:
		return "ERROR_CODE_INTERNAL"
	default:
		return "ERROR_CODE_INTERNAL"
	}
}

// sentinel returns the package sentinel that corresponds to a code, so that
// errors built through the constructors below satisfy errors.Is checks.
func (c Code) sentinel() error {
	switch c {
	case CodeNotFound:
		return ErrNotFound
	case CodeDuplicateKey:
		return ErrDuplicateKey
	case CodeAuthentication:
		return ErrAuthentication
	case CodeCorrupt:
		return ErrCorrupt
	case CodeUnsupportedVersion:
		return ErrUnsupportedVersion
	case CodeIntegrity:
		return ErrIntegrity
	case CodeTransport:
		return ErrTransport
	case CodeActivation:
		return ErrActivation
	case CodeReply:
		return ErrReply
	default:
		return nil
	}
}

// Error is a structured error used across the application.
//
// It can wrap an underlying error while also carrying a user-facing message,
// a high-level type, and a stable error code.
type Error struct {
	err     error
	msg     string
	errType Type
	code    Code
	fields  map[string]string
}

// Error implements the error interface.
func (e *Error) Error() string {
	if e.msg != "" {
		return e.msg
	}

	if e.err != nil {
		return e.err.Error()
	}

	if e.errType == TypeValidation {
		return "Validation violation"
	}

	return "Internal error"
}

// String returns a verbose representation of the error for debugging/logging.
func (e *Error) String() string {
	return fmt.Sprintf(
		"Error Type: %s, Code: %s, Message: %s, Underlying Error: %v",
		e.errType.String(),
		e.code.String(),
		e.msg,
		e.err,
	)
}

// Msg returns the user-facing error message, if set.
func (e *Error) Msg() string {
	return e.msg
}

// Type returns the high-level error type.
func (e *Error) Type() Type {
	return e.errType
}

// Code returns the stable error code.
func (e *Error) Code() Code {
	return e.code
}

// Fields returns validation errors (field to message map), if any.
func (e *Error) Fields() map[string]string {
	return e.fields
}

// Unwrap returns the underlying error.
func (e *Error) Unwrap() error {
	return e.err
}

// Is reports whether this error matches the sentinel for its code, so
// errors.Is(err, goerror.ErrNotFound) works without callers unwrapping.
func (e *Error) Is(target error) bool {
	return target != nil && e.code.sentinel() == target
}

// ExitCode maps the error code to a process exit code for the CLI.
func (e *Error) ExitCode() int {
	switch e.code {
	case CodeInvalidInput:
		return 2
	case CodeNotFound:
		return 3
	case CodeDuplicateKey:
		return 4
	case CodeAuthentication:
		return 5
	case CodeCorrupt, CodeIntegrity, CodeUnsupportedVersion:
		return 6
	case CodeTransport, CodeTimeout:
		return 7
	case CodeActivation, CodeReply:
		return 8
	case CodeInternal:
		return 1
	default:
		return 1
	}
}

func new(err error, msg string, et Type, code Code) error {
	return &Error{err: err, msg: msg, errType: et, code: code}
}

// NewServer creates a server-type error with the provided error.
func NewServer(err error) error {
	return new(err, "Internal error", TypeServer, CodeInternal)
}

// NewBusiness creates a business-type error with the specified message and code.
func NewBusiness(msg string, code Code) error {
	return new(nil, msg, TypeBusiness, code)
}

// NewTransport wraps a network failure as a server-type transport error.
func NewTransport(err error, msg string) error {
	return new(err, msg, TypeServer, CodeTransport)
}

// Wrap attaches a message and a stable code to an underlying cause.
func Wrap(cause error, msg string, code Code) error {
	return new(cause, msg, TypeBusiness, code)
}

// NewInvalidInput creates a validation error for invalid input with a message
// and underlying error, or an explicit field-to-message list.
func NewInvalidInput(err error, kv ...string) error {
	if err != nil {
		return new(err, "Validation error", TypeValidation, CodeInvalidInput)
	}

	if len(kv)%2 != 0 {
		return new(nil, "Invalid command input", TypeValidation, CodeInvalidInput)
	}

	e := &Error{msg: "Validation error", errType: TypeValidation, code: CodeInvalidInput}
	e.fields = make(map[string]string)
	for i := 0; i+1 < len(kv); i += 2 {
		e.fields[kv[i]] = kv[i+1]
	}

	return e
}

// ExitCodeFor extracts the exit code from any error.
// Plain errors map to 1, nil to 0.
func ExitCodeFor(err error) int {
	if err == nil {
		return 0
	}
	var ge *Error
	if errors.As(err, &ge) {
		return ge.ExitCode()
	}
	return 1
}

// CodeFor extracts the stable code from any error.
// Plain errors map to CodeInternal.
func CodeFor(err error) Code {
	var ge *Error
	if errors.As(err, &ge) {
		return ge.code
	}
	return CodeInternal
}
