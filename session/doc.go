// Package session houses concrete implementations of core.EventLog plus the
// compaction policy that keeps logs bounded. The contracts live in core so
// that higher level packages (runner, a2a) never depend on concrete storage.
//
// Durable backends live in sub-packages (see session/sqlite); only the wiring
// layer decides which implementation to instantiate.
package session
