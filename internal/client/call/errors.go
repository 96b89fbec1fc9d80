package call

import (
	"errors"
	"fmt"

	"github.com/Wyydra/huddle/internal/protocol"
)

var (
	ErrMediaUnavailable      = errors.New("camera or microphone unavailable")
	ErrSignalingUnavailable  = errors.New("signaling server unreachable")
	ErrSignalingDisconnected = errors.New("disconnected from signaling server")
	ErrNegotiationFailed     = errors.New("negotiation failed")
	ErrRoomNotFound          = errors.New("room not found")
	ErrAlreadyJoined         = errors.New("already in this room")
	ErrRelayRejected         = errors.New("rejected by signaling server")
	ErrEmptyMessage          = errors.New("message is empty")
	ErrClosed                = errors.New("call closed")
)

// Error records the step of a call that failed.
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

// relayError maps an error event from the relay onto a sentinel.
func relayError(p protocol.ErrorPayload) *Error {
	var err error
	switch p.Code {
	case protocol.CodeRoomNotFound:
		err = ErrRoomNotFound
	case protocol.CodeAlreadyJoined:
		err = ErrAlreadyJoined
	default:
		err = ErrRelayRejected
	}
	return WrapError("relay", err, p.Message)
}

// Retryable reports whether re-running the whole join may succeed.
func Retryable(err error) bool {
	return errors.Is(err, ErrSignalingUnavailable) ||
		errors.Is(err, ErrSignalingDisconnected) ||
		errors.Is(err, ErrMediaUnavailable)
}
