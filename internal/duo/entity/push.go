package entity

import "encoding/json"

// Answer is the reply sent for a pending push transaction.
type Answer string

const (
	AnswerApprove Answer = "approve"
	AnswerDeny    Answer = "deny"
)

// PendingTransaction is one remote authentication challenge awaiting a reply.
// Raw preserves the full server object for rendering and diagnostics.
type PendingTransaction struct {
	ID  string          `json:"urgid"`
	Raw json.RawMessage `json:"-"`
}

// PushState is the terminal state of one push-approval attempt sequence.
type PushState int

const (
	// PushStatePolling means the sequence is still running. It is never a
	// terminal result; it exists so a zero-valued outcome is recognizable.
	PushStatePolling PushState = iota

	// PushStateApproved means a transaction was approved.
	PushStateApproved

	// PushStateDenied means a transaction was denied (deliberate deny reply).
	PushStateDenied

	// PushStateExhausted means every attempt ran without observing a
	// transaction.
	PushStateExhausted

	// PushStateError means a reply failed; the sequence stopped immediately
	// rather than risk a second reply to the same challenge.
	PushStateError
)

func (s PushState) String() string {
	switch s {
	case PushStateApproved:
		return "Approved"
	case PushStateDenied:
		return "Denied"
	case PushStateExhausted:
		return "Exhausted"
	case PushStateError:
		return "Error"
	case PushStatePolling:
		return "Polling"
	default:
		return "Unknown"
	}
}

// Terminal reports whether the state ends a polling sequence.
func (s PushState) Terminal() bool {
	switch s {
	case PushStateApproved, PushStateDenied, PushStateExhausted, PushStateError:
		return true
	default:
		return false
	}
}

// PushOutcome is the result of driving one polling sequence to a terminal
// state.
type PushOutcome struct {
	State       PushState
	Transaction *PendingTransaction
	Attempts    int
}

// Succeeded reports whether the requested answer was delivered.
func (o *PushOutcome) Succeeded() bool {
	return o != nil && (o.State == PushStateApproved || o.State == PushStateDenied)
}
