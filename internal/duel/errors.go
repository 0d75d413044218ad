package duel

import (
	"errors"
	"fmt"
)

var (
	// ErrTransport: the signaling channel dropped. Recoverable by
	// reconnect-and-requeue, never a silent session abort.
	ErrTransport = errors.New("signaling transport lost")

	// ErrNegotiation: the peer connection reached failed. The session is
	// unusable; the user must requeue.
	ErrNegotiation = errors.New("peer connection failed")

	// ErrProtocol: an unexpected or out-of-order server event. Logged and
	// ignored; the server is the source of truth and a correcting event
	// is expected.
	ErrProtocol = errors.New("protocol violation")

	ErrQueueRejected = errors.New("matchmaking rejected")
	ErrMatchOver     = errors.New("match already complete")
	ErrNoActiveRound = errors.New("no active round")
)

// Error wraps a failure with the operation that produced it.
type Error struct {
	Op      string
	Err     error
	Details string
}

func (e *Error) Error() string {
	if e.Details != "" {
		return fmt.Sprintf("%s: %v (%s)", e.Op, e.Err, e.Details)
	}
	return fmt.Sprintf("%s: %v", e.Op, e.Err)
}

func (e *Error) Unwrap() error {
	return e.Err
}

func NewError(op string, err error) *Error {
	return &Error{Op: op, Err: err}
}

func WrapError(op string, err error, details string) *Error {
	return &Error{Op: op, Err: err, Details: details}
}
