// Package hotp computes counter-based one-time passwords.
//
// It wraps github.com/pquerna/otp behind a small interface so business code
// never touches counter arithmetic or secret encodings directly.
package hotp
