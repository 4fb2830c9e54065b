// Package tool implements the tool calling subsystem: local capabilities the
// Decision Oracle can invoke by name, with schema validated arguments,
// consistent error handling and an "ask once, act once" contract for tools
// that require human sign-off.
package tool

import (
	"fmt"

	"github.com/hupe1980/predator/core"
	"github.com/hupe1980/predator/internal/util"
)

// Error codes produced by this package.
const (
	CodeValidation = "VALIDATION_ERROR"
	CodeExecution  = core.CodeExecution
	CodePanic      = "PANIC"
	CodeNotFound   = core.CodeNotFound
)

// Tool is a named local capability.
//
// Tool implementations should:
//   - Provide clear, descriptive names and descriptions
//   - Define a JSON schema for parameters
//   - Be safe for concurrent use; the registry is shared across tasks
//   - Derive everything about a previous pause from the ToolContext, never
//     from their own memory, so that a restarted process behaves the same
type Tool interface {
	// Name returns the unique identifier for this tool (snake_case recommended).
	Name() string

	// Description returns a human-readable description for the oracle.
	Description() string

	// Parameters returns a JSON schema describing the expected input.
	Parameters() map[string]any

	// Call executes the tool. A guarded tool asks for sign-off with
	// toolCtx.RequestConfirmation; the returned value is then discarded.
	Call(toolCtx *core.ToolContext, args map[string]any) (any, error)
}

// Guarded is implemented by tools that require human confirmation before
// producing a terminal result.
type Guarded interface {
	RequiresConfirmation() bool
}

// IsGuarded reports whether t declares itself as requiring confirmation.
func IsGuarded(t Tool) bool {
	g, ok := t.(Guarded)
	return ok && g.RequiresConfirmation()
}

// ValidationError represents parameter validation errors with detailed information.
type ValidationError = util.ValidationError

// ToolError represents errors that occur during tool execution.
type ToolError struct {
	Tool    string `json:"tool"`              // Name of the tool that failed
	Message string `json:"message"`           // Error message
	Code    string `json:"code"`              // Error code for categorization
	Details any    `json:"details,omitempty"` // Additional error details
}

func (e *ToolError) Error() string {
	if e.Code != "" {
		return fmt.Sprintf("tool error [%s] in %s: %s", e.Code, e.Tool, e.Message)
	}
	return fmt.Sprintf("tool error in %s: %s", e.Tool, e.Message)
}

// ErrorCode returns the categorization code recorded on failed results.
func (e *ToolError) ErrorCode() string { return e.Code }

// Unwrap lets errors.Is match core.ErrToolExecution for execution failures.
func (e *ToolError) Unwrap() error {
	if err, ok := e.Details.(error); ok {
		return err
	}
	return core.ErrToolExecution
}

// NewToolError creates a new ToolError with the specified details.
func NewToolError(tool, message, code string) *ToolError {
	return &ToolError{
		Tool:    tool,
		Message: message,
		Code:    code,
	}
}
