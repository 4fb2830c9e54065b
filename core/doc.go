// Package core provides the foundational domain types and contracts used by
// predator. It defines:
//
//   - Tasks and their append-only event logs (EventLog)
//   - Events (immutable, totally ordered records of every turn)
//   - Invocations and the confirmation gate state machine guarding them
//   - Ledger replay, which reconstructs invocation state purely from a log
//   - Actions and the Decision Oracle contract that selects them
//   - Remote agent contracts (AgentDescriptor, RemoteAgent)
//   - ToolContext, the scoped surface handed to tool implementations
//
// Implementation concerns (persistence, HTTP transport, concrete tools) live in
// their own packages so that the orchestration protocol can be reasoned about,
// and tested, in isolation.
package core
