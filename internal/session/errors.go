package session

import (
	"errors"
	"fmt"
)

var (
	// ErrBusy rejects an ask while a prior ask on the same session is still
	// awaiting its answer. Calls are rejected, never queued, so turn order
	// stays unambiguous.
	ErrBusy = errors.New("ask already in flight")
	// ErrNotFound reports an unknown or expired session ID.
	ErrNotFound = errors.New("session not found")
)

// SessionError wraps a failure from the assembler or the model backend
// surfaced by Ask. The conversation log is unchanged when it is returned.
type SessionError struct {
	SessionID string
	Op        string // "assemble" or "invoke"
	Err       error
}

func (e *SessionError) Error() string {
	return fmt.Sprintf("session %s: %s: %v", e.SessionID, e.Op, e.Err)
}

func (e *SessionError) Unwrap() error {
	return e.Err
}
