package tool

import (
	"errors"
	"fmt"
	"time"

	"github.com/hupe1980/predator/core"
	"github.com/hupe1980/predator/internal/util"
)

// FunctionTool exposes a plain Go function as a tool.
//
// Responsibilities:
//   - Holds a minimal JSON-Schema parameter specification
//   - Validates supplied arguments against it before execution
//   - Normalizes error handling so callers receive *ToolError with consistent codes:
//     VALIDATION_ERROR  -> schema / argument mismatch
//     EXECUTION_ERROR   -> underlying function returned an error (non-ToolError)
//     (custom codes preserved if the function returns *ToolError directly)
//
// A FunctionTool has no mutable state after construction and is safe for
// concurrent use.
type FunctionTool struct {
	name        string
	description string
	parameters  map[string]any
	guarded     bool
	fn          func(toolCtx *core.ToolContext, args map[string]any) (any, error)
}

// FunctionToolOptions configures a FunctionTool.
type FunctionToolOptions struct {
	// Guarded marks the tool as requiring human confirmation.
	Guarded bool
}

// NewFunctionTool constructs a FunctionTool from explicit schema and function.
//
// Example:
//
//	scoreTool := NewFunctionTool(
//	  "score_lead",
//	  "Score a sales lead",
//	  map[string]any{
//	    "type": "object",
//	    "properties": map[string]any{
//	      "budget":  map[string]any{"type": "number"},
//	      "urgency": map[string]any{"type": "string"},
//	    },
//	    "required": []string{"budget", "urgency"},
//	  },
//	  func(tc *core.ToolContext, args map[string]any) (any, error) {
//	    ...
//	  },
//	)
func NewFunctionTool(
	name, description string,
	parameters map[string]any,
	fn func(toolCtx *core.ToolContext, args map[string]any) (any, error),
	optFns ...func(o *FunctionToolOptions),
) *FunctionTool {
	opts := FunctionToolOptions{}
	for _, apply := range optFns {
		apply(&opts)
	}

	return &FunctionTool{
		name:        name,
		description: description,
		parameters:  parameters,
		guarded:     opts.Guarded,
		fn:          fn,
	}
}

// NewFunctionToolFromStruct derives the parameter schema from a struct using
// reflection (see util.CreateSchema).
func NewFunctionToolFromStruct(
	name, description string,
	structType any,
	fn func(toolCtx *core.ToolContext, args map[string]any) (any, error),
	optFns ...func(o *FunctionToolOptions),
) *FunctionTool {
	return NewFunctionTool(name, description, util.CreateSchema(structType), fn, optFns...)
}

// WithGuarded marks the tool as requiring confirmation.
func WithGuarded() func(o *FunctionToolOptions) {
	return func(o *FunctionToolOptions) { o.Guarded = true }
}

// Name returns the unique tool name.
func (t *FunctionTool) Name() string { return t.name }

// Description returns the natural language description exposed to oracles.
func (t *FunctionTool) Description() string { return t.description }

// Parameters returns the JSON schema describing expected arguments.
func (t *FunctionTool) Parameters() map[string]any { return t.parameters }

// RequiresConfirmation implements Guarded.
func (t *FunctionTool) RequiresConfirmation() bool { return t.guarded }

// Call validates args against the declared schema then invokes the underlying
// function.
//
// Logging Fields:
//
//	tool: tool name
//	invocation_id: correlates the oracle request and the tool execution
//	duration_ms: execution time in milliseconds
func (t *FunctionTool) Call(toolCtx *core.ToolContext, args map[string]any) (any, error) {
	logger := toolCtx.Logger()
	start := time.Now()

	logger.Debug("tool.call.start", "tool", t.name, "invocation_id", toolCtx.InvocationID())

	if err := util.ValidateParameters(args, t.parameters); err != nil {
		logger.Warn("tool.call.validation_failed", "tool", t.name, "error", err.Error())

		return nil, &ToolError{
			Tool:    t.name,
			Message: fmt.Sprintf("parameter validation failed: %v", err),
			Code:    CodeValidation,
			Details: err,
		}
	}

	result, err := t.fn(toolCtx, args)
	if err != nil {
		var toolErr *ToolError
		if errors.As(err, &toolErr) {
			logger.Error("tool.call.error", "tool", t.name, "error", toolErr.Message)

			return nil, toolErr
		}

		logger.Error("tool.call.error", "tool", t.name, "error", err.Error())

		return nil, &ToolError{
			Tool:    t.name,
			Message: err.Error(),
			Code:    CodeExecution,
		}
	}

	logger.Info("tool.call.success", "tool", t.name, "duration_ms", time.Since(start).Milliseconds())

	return result, nil
}
