package core

import (
	"context"

	"github.com/hupe1980/predator/logging"
)

// ToolContext is the scoped surface handed to a tool for a single invocation.
// It exposes the invocation's confirmation status, derived from the log, and
// lets guarded tools ask for human sign-off. Tools must not keep their own
// memory of whether they already asked.
type ToolContext struct {
	ctx          context.Context
	taskID       string
	sessionID    string
	invocationID string
	status       InvocationStatus

	requested *PendingConfirmation

	*loggerAdapter
}

// NewToolContext binds a tool context to an invocation in the given status.
func NewToolContext(ctx context.Context, task Task, invocationID string, status InvocationStatus, logger logging.Logger) *ToolContext {
	if ctx == nil {
		ctx = context.Background()
	}
	return &ToolContext{
		ctx:           ctx,
		taskID:        task.ID,
		sessionID:     task.SessionID,
		invocationID:  invocationID,
		status:        status,
		loggerAdapter: newLoggerAdapter(logger),
	}
}

// Context returns the context of the invocation.
func (tc *ToolContext) Context() context.Context { return tc.ctx }

// TaskID returns the owning task id.
func (tc *ToolContext) TaskID() string { return tc.taskID }

// SessionID returns the owning session id.
func (tc *ToolContext) SessionID() string { return tc.sessionID }

// InvocationID returns the id of the invocation being executed.
func (tc *ToolContext) InvocationID() string { return tc.invocationID }

// Status returns the invocation status at the time the tool was called.
func (tc *ToolContext) Status() InvocationStatus { return tc.status }

// Confirmation reports the human decision for this invocation. decided is
// false while no decision has been recorded.
func (tc *ToolContext) Confirmation() (approved, decided bool) {
	switch tc.status {
	case StatusApproved:
		return true, true
	case StatusRejected:
		return false, true
	default:
		return false, false
	}
}

// RequestConfirmation asks the orchestrator to pause the invocation until a
// human decides. The value returned by the tool alongside a request is
// discarded.
func (tc *ToolContext) RequestConfirmation(hint string, payload map[string]any) {
	tc.requested = &PendingConfirmation{InvocationID: tc.invocationID, Hint: hint, Payload: payload}
	tc.LogInfo("tool.confirmation.request", "task_id", tc.taskID, "invocation_id", tc.invocationID)
}

// RequestedConfirmation returns the confirmation requested during the call,
// or nil.
func (tc *ToolContext) RequestedConfirmation() *PendingConfirmation { return tc.requested }
