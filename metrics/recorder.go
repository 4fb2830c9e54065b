// Package metrics provides metrics recording for orchestration runs, tool and
// remote invocations, and event-log compaction.
package metrics

import "time"

// Recorder defines the interface for recording orchestration metrics.
type Recorder interface {
	// InvocationFinished records the terminal status of one invocation.
	InvocationFinished(kind, status string)

	// RemoteCall records one remote agent call, retries included.
	RemoteCall(agent, outcome string, duration time.Duration)

	// Compaction records the outcome of a compaction attempt.
	Compaction(outcome string)

	// RunFinished records how a run ended (final, paused, error).
	RunFinished(outcome string)
}

// NoopRecorder implements Recorder with no-op behavior for when metrics are disabled.
type NoopRecorder struct{}

// Nop returns a no-op metrics recorder that discards all metrics.
func Nop() Recorder {
	return NoopRecorder{}
}

// InvocationFinished does nothing in the no-op recorder.
func (NoopRecorder) InvocationFinished(_, _ string) {}

// RemoteCall does nothing in the no-op recorder.
func (NoopRecorder) RemoteCall(_, _ string, _ time.Duration) {}

// Compaction does nothing in the no-op recorder.
func (NoopRecorder) Compaction(_ string) {}

// RunFinished does nothing in the no-op recorder.
func (NoopRecorder) RunFinished(_ string) {}

// OrNop returns r, or the no-op recorder when r is nil.
func OrNop(r Recorder) Recorder {
	if r == nil {
		return Nop()
	}
	return r
}
