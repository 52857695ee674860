package dispatch

import (
	"errors"
	"fmt"

	"github.com/1-kabir/cfm/pkg/backend"
)

var (
	ErrEmptyMessage = errors.New("message is empty")
	ErrBusy         = errors.New("a message is already awaiting a reply")
	// ErrStale is returned when the active conversation changed while the
	// send was outstanding. Its reply is discarded.
	ErrStale = errors.New("conversation changed while awaiting a reply")
)

// ErrorKind classifies a failed send.
type ErrorKind int

const (
	// NetworkFailure means the backend could not be reached.
	NetworkFailure ErrorKind = iota + 1
	// ServerError means the backend answered with a non-success status or
	// a body that could not be decoded.
	ServerError
)

func (k ErrorKind) String() string {
	switch k {
	case NetworkFailure:
		return "network failure"
	case ServerError:
		return "server error"
	default:
		return "unknown"
	}
}

// Error is returned by Send when the exchange failed. The fallback reply
// has already been appended to the transcript.
type Error struct {
	Kind ErrorKind
	Op   string
	Err  error
}

func (e *Error) Error() string {
	return fmt.Sprintf("%s: %s: %v", e.Op, e.Kind, e.Err)
}

func (e *Error) Unwrap() error { return e.Err }

func kindOf(err error) ErrorKind {
	if backend.IsStatus(err) || errors.Is(err, backend.ErrMalformedResponse) {
		return ServerError
	}
	return NetworkFailure
}
