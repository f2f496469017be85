package entity

import (
	"encoding/json"
	"time"
)

// RegistrationResponse is the server payload returned by the activation
// handshake. The named fields are the ones the client needs; Raw preserves
// the full payload so opaque server tokens survive round-trips untouched.
type RegistrationResponse struct {
	AKey         string          `json:"akey"`
	PKey         string          `json:"pkey"`
	HOTPSecret   string          `json:"hotp_secret"`
	CustomerName string          `json:"customer_name,omitempty"`
	Raw          json.RawMessage `json:"raw,omitempty"`
}

// CodeLogEntry is one emitted one-time code with its generation time.
type CodeLogEntry struct {
	At   time.Time `json:"at"`
	Code string    `json:"code"`
}

// KeyRecord is one provisioned credential plus its mutable one-time-password
// state. Records live exclusively inside the vault; the private key never
// leaves it except to sign an outbound request.
//
// JSON tags keep the vault schema of the original .duo format.
type KeyRecord struct {
	Name           string               `json:"-"`
	ActivationCode string               `json:"code"`
	Host           string               `json:"host"`
	Response       RegistrationResponse `json:"response"`
	PublicKey      string               `json:"pubkey"`
	PrivateKey     string               `json:"privkey"`
	Counter        uint64               `json:"hotp_counter"`
	Log            []CodeLogEntry       `json:"hotp_log,omitempty"`
}

// Clone returns a deep copy so callers cannot mutate vault-owned state.
func (r *KeyRecord) Clone() *KeyRecord {
	if r == nil {
		return nil
	}
	out := *r
	if r.Log != nil {
		out.Log = make([]CodeLogEntry, len(r.Log))
		copy(out.Log, r.Log)
	}
	if r.Response.Raw != nil {
		out.Response.Raw = make(json.RawMessage, len(r.Response.Raw))
		copy(out.Response.Raw, r.Response.Raw)
	}
	return &out
}

// KeySummary is a lightweight listing view of a record (no secrets).
type KeySummary struct {
	Name         string `json:"name"`
	CustomerName string `json:"customer_name"`
	Host         string `json:"host"`
}

// Summary returns the listing view of the record.
func (r *KeyRecord) Summary() KeySummary {
	return KeySummary{
		Name:         r.Name,
		CustomerName: r.Response.CustomerName,
		Host:         r.Host,
	}
}
