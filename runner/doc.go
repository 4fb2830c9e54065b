// Package runner implements the orchestration loop for predator.
//
// A Runner drives one turn of a task at a time: it appends the incoming
// message, asks the Decision Oracle for the next action, dispatches it to the
// tool registry or a remote agent, appends the result and repeats until the
// oracle gives a final answer or an invocation halts on a pending
// confirmation.
//
// # Responsibilities (abridged)
//   - Turn orchestration (async streaming + RunSync helper)
//   - Resume: a ConfirmationDecision re-drives the very invocation it names,
//     rebuilt from the log by core.Replay
//   - Crash recovery of invocations decided but never completed
//   - Per-task exclusivity, step limits, and compaction after every run
//
// No state survives between runs except the event log, so a paused task may
// be resumed by a different process.
package runner
