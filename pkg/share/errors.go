package share

import (
	"errors"
	"fmt"
)

var (
	// ErrCaptureDenied is returned when the user or the platform refuses
	// to hand over a capture source.
	ErrCaptureDenied = errors.New("capture denied")

	// ErrCaptureScopeInvalid is returned when the acquired source is not a
	// full-display capture (a single window, a tab, ...).
	ErrCaptureScopeInvalid = errors.New("capture is not a full display")

	// ErrTransportUnavailable is returned when no signaling transport is
	// connected.
	ErrTransportUnavailable = errors.New("signaling transport unavailable")

	// ErrMissingIdentity is returned when the room or participant id is empty.
	ErrMissingIdentity = errors.New("missing room or participant id")

	// ErrNegotiation covers a malformed or rejected session description.
	ErrNegotiation = errors.New("negotiation failed")

	// ErrConnectionFailed is reported when the underlying transport reaches
	// a terminal failed state.
	ErrConnectionFailed = errors.New("connection failed")

	// ErrSessionClosed is returned for operations on a closed session.
	ErrSessionClosed = errors.New("session closed")
)

// ShareError carries the failing operation alongside the sentinel so callers
// can both errors.Is-match and show something readable.
type ShareError struct {
	Op  string
	Err error
}

func (e *ShareError) Error() string {
	return fmt.Sprintf("%s: %v", e.Op, e.Err)
}

func (e *ShareError) Unwrap() error {
	return e.Err
}

func newError(op string, err error) *ShareError {
	return &ShareError{Op: op, Err: err}
}
