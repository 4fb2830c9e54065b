package core

import (
	"errors"
	"fmt"
)

var (
	// ErrUnknownInvocation is returned when a decision references an invocation
	// that does not exist in the task log or has already reached a terminal status.
	ErrUnknownInvocation = errors.New("unknown invocation")

	// ErrInvalidTransition is returned when the confirmation gate is driven
	// through a transition its state machine does not allow.
	ErrInvalidTransition = errors.New("invalid invocation transition")

	// ErrToolExecution marks a tool that raised or returned a failure.
	ErrToolExecution = errors.New("tool execution failed")

	// ErrRemoteUnavailable marks transport, discovery or timeout failures while
	// talking to a remote peer agent.
	ErrRemoteUnavailable = errors.New("remote agent unavailable")

	// ErrCompactionConflict marks a compaction attempt whose range would drop an
	// outstanding pending confirmation. Compaction is skipped.
	ErrCompactionConflict = errors.New("compaction conflicts with outstanding confirmation")

	// ErrTaskNotFound is returned by event logs for unknown task ids.
	ErrTaskNotFound = errors.New("task not found")

	// ErrTaskBusy is returned when a run is started for a task that already
	// has one in flight.
	ErrTaskBusy = errors.New("task already running")

	// ErrStepLimit is returned when a single run exceeds its step budget.
	ErrStepLimit = errors.New("step limit exceeded")

	// ErrInterrupted marks an invocation whose run stopped before it produced
	// a result. It is settled as a failure and never re-executed.
	ErrInterrupted = fmt.Errorf("%w: interrupted", ErrToolExecution)
)

// Error codes recorded on failed action results.
const (
	CodeUnknownInvocation = "UNKNOWN_INVOCATION"
	CodeInvalidTransition = "INVALID_TRANSITION"
	CodeRemoteUnavailable = "REMOTE_UNAVAILABLE"
	CodeExecution         = "EXECUTION_ERROR"
	CodeNotFound          = "NOT_FOUND"
	CodeInterrupted       = "INTERRUPTED"
)

// ErrorCode returns a stable, machine readable code for err. Errors that
// implement ErrorCode() string (e.g. *tool.ToolError) report their own code.
func ErrorCode(err error) string {
	if err == nil {
		return ""
	}

	var coded interface{ ErrorCode() string }
	if errors.As(err, &coded) {
		if c := coded.ErrorCode(); c != "" {
			return c
		}
	}

	switch {
	case errors.Is(err, ErrUnknownInvocation):
		return CodeUnknownInvocation
	case errors.Is(err, ErrInvalidTransition):
		return CodeInvalidTransition
	case errors.Is(err, ErrRemoteUnavailable):
		return CodeRemoteUnavailable
	case errors.Is(err, ErrInterrupted):
		return CodeInterrupted
	default:
		return CodeExecution
	}
}
