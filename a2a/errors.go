package a2a

import (
	"errors"
	"fmt"

	"github.com/hupe1980/predator/core"
)

// ErrProtocol marks a peer that answered, but not in a way the protocol allows
// (4xx status, malformed descriptor or body).
var ErrProtocol = errors.New("a2a protocol error")

// RemoteError describes a failed exchange with a peer. It always matches
// core.ErrRemoteUnavailable with errors.Is.
type RemoteError struct {
	Agent      string
	Op         string
	StatusCode int
	Attempts   int
	Err        error
}

func (e *RemoteError) Error() string {
	msg := fmt.Sprintf("a2a %s %s", e.Op, e.Agent)
	if e.StatusCode != 0 {
		msg += fmt.Sprintf(" (status %d)", e.StatusCode)
	}
	if e.Attempts > 1 {
		msg += fmt.Sprintf(" after %d attempts", e.Attempts)
	}
	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	return msg
}

// Unwrap exposes both the sentinel and the cause.
func (e *RemoteError) Unwrap() []error {
	return []error{core.ErrRemoteUnavailable, e.Err}
}

// ErrorCode implements the coded error interface used by core.ErrorCode.
func (e *RemoteError) ErrorCode() string { return core.CodeRemoteUnavailable }

// statusError is an unexpected HTTP status.
type statusError struct {
	code int
	body string
}

func (e *statusError) Error() string {
	if e.body == "" {
		return fmt.Sprintf("unexpected status %d", e.code)
	}
	return fmt.Sprintf("unexpected status %d: %s", e.code, e.body)
}

func (e *statusError) Is(target error) bool {
	return target == ErrProtocol && e.code >= 400 && e.code < 500
}

func statusCode(err error) int {
	var se *statusError
	if errors.As(err, &se) {
		return se.code
	}
	return 0
}
