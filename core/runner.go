package core

import "context"

// Runner is the orchestration contract for driving a task.
//
// Semantics:
//   - Ordering: events are delivered in log order, each already appended
//   - Channel lifecycle: the events channel is closed when the turn halts
//     (final answer, pending confirmation or error). The error channel carries
//     at most one terminal error then closes (buffered size 1)
//   - Suspension: a turn that halts on a pending confirmation holds no
//     resources; resuming is a fresh Run with a decision message
type Runner interface {
	// Run appends msg to the task's log and drives the loop until the turn
	// halts. The immediate error covers failures before the loop starts, such
	// as ErrUnknownInvocation, ErrInvalidTransition or ErrTaskBusy.
	Run(ctx context.Context, taskID string, msg Message) (<-chan Event, <-chan error, error)
}
