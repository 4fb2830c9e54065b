// Package logging provides a minimal logging interface and adapters for predator.
//
// The Logger interface defines the standard logging methods (Debug, Info, Warn,
// Error) used by the runner, the tool registry, the event log and the remote
// agent client. This package includes:
//
//   - Logger interface for dependency injection
//   - SlogAdapter wrapping Go's structured logging
//   - TaskLogger with component/task context and domain helpers
//   - NoOpLogger for silent operation (testing, minimal setups)
//
// Usage:
//
//	logger := logging.NewLogger(&logging.LoggerConfig{Level: logging.LogLevelInfo, Format: "json"})
//	r := runner.New(log, oracle, registry, runner.WithLogger(logger.WithComponent("runner")))
package logging
