package session

import (
	"context"
	"fmt"

	"github.com/hupe1980/predator/core"
	"github.com/hupe1980/predator/logging"
	"github.com/hupe1980/predator/metrics"
)

// Compaction outcomes.
const (
	OutcomeCompacted = "compacted"
	OutcomeSkipped   = "skipped"
	OutcomeConflict  = "conflict"
)

// taskScoped is implemented by logging.TaskLogger.
type taskScoped interface {
	WithTask(taskID string) *logging.TaskLogger
}

// CompactionResult describes what a compaction attempt did.
type CompactionResult struct {
	Outcome    string
	ThroughSeq int64
	Replaced   int
	// Reason is set when the attempt was skipped or cut short, e.g.
	// core.ErrCompactionConflict.
	Reason error
}

// CompactorOptions configures a Compactor.
type CompactorOptions struct {
	// Interval is the number of uncompacted turns, beyond the overlap, that
	// trigger a compaction.
	Interval int
	// Overlap is the number of newest turns never replaced.
	Overlap int
	// Author is recorded on summary events.
	Author string

	Logger  logging.Logger
	Metrics metrics.Recorder
}

// Compactor replaces old turns of a task's log with a single summary event.
//
// Contract:
//   - candidates are all non-summary turns except the newest Overlap turns;
//     nothing happens until at least Interval candidate turns exist
//   - a leading summary is folded into the new one
//   - the replaced range ends before the request of any invocation that has
//     not reached a terminal status, so every outstanding invocation stays
//     reconstructible
//   - compacting twice in a row is a no-op the second time
type Compactor struct {
	log        core.EventLog
	summarizer core.Summarizer
	opts       CompactorOptions
}

// NewCompactor creates a compactor for log using summarizer.
func NewCompactor(log core.EventLog, summarizer core.Summarizer, optFns ...func(o *CompactorOptions)) *Compactor {
	opts := CompactorOptions{
		Interval: 4,
		Overlap:  1,
		Author:   "compactor",
		Logger:   logging.NoOpLogger{},
		Metrics:  metrics.Nop(),
	}
	for _, fn := range optFns {
		fn(&opts)
	}
	if opts.Interval < 1 {
		opts.Interval = 1
	}
	if opts.Overlap < 0 {
		opts.Overlap = 0
	}
	if summarizer == nil {
		summarizer = TranscriptSummarizer{}
	}

	return &Compactor{log: log, summarizer: summarizer, opts: opts}
}

// Compact applies the policy to taskID. A conflict with an outstanding
// invocation is not an error: the result carries it as Reason.
func (c *Compactor) Compact(ctx context.Context, taskID string) (CompactionResult, error) {
	events, err := c.log.Events(ctx, taskID)
	if err != nil {
		return CompactionResult{}, err
	}

	var prior *core.Event
	rest := events
	if len(rest) > 0 && rest[0].Kind == core.KindSummary {
		prior = &rest[0]
		rest = rest[1:]
	}

	turns := distinctTurns(rest)
	candidates := len(turns) - c.opts.Overlap
	if candidates < c.opts.Interval {
		return c.finish(taskID, CompactionResult{Outcome: OutcomeSkipped}), nil
	}
	lastCandidate := turns[candidates-1]

	end := 0
	for end < len(rest) && rest[end].Turn <= lastCandidate {
		end++
	}

	ledger, err := core.Replay(events)
	if err != nil {
		return CompactionResult{}, fmt.Errorf("compact %s: %w", taskID, err)
	}

	var reason error
	if cut := firstGatedRequest(rest[:end], ledger); cut < end {
		reason = core.ErrCompactionConflict
		end = cut
	}
	if end == 0 {
		return c.finish(taskID, CompactionResult{Outcome: OutcomeConflict, Reason: reason}), nil
	}

	replaced := rest[:end]
	input := replaced
	if prior != nil {
		input = append([]core.Event{*prior}, replaced...)
	}

	text, err := c.summarizer.Summarize(ctx, input)
	if err != nil {
		return CompactionResult{}, fmt.Errorf("summarize %s: %w", taskID, err)
	}

	last := replaced[len(replaced)-1]
	sum := core.Summary{
		Text:       text,
		FromSeq:    replaced[0].Seq,
		ThroughSeq: last.Seq,
		FirstTurn:  replaced[0].Turn,
		LastTurn:   last.Turn,
		Events:     len(replaced),
	}
	if prior != nil && prior.Summary != nil {
		sum.FromSeq = prior.Summary.FromSeq
		sum.FirstTurn = prior.Summary.FirstTurn
		sum.Events += prior.Summary.Events
	}

	ev := core.NewSummaryEvent(c.opts.Author, sum)
	ev.Turn = last.Turn

	if err := c.log.ReplacePrefix(ctx, taskID, last.Seq, ev); err != nil {
		return CompactionResult{}, err
	}

	return c.finish(taskID, CompactionResult{Outcome: OutcomeCompacted, ThroughSeq: last.Seq, Replaced: len(replaced), Reason: reason}), nil
}

func (c *Compactor) finish(taskID string, res CompactionResult) CompactionResult {
	c.opts.Metrics.Compaction(res.Outcome)

	if tl, ok := c.opts.Logger.(taskScoped); ok {
		tl.WithTask(taskID).LogCompaction(res.Outcome, res.ThroughSeq, res.Replaced, res.Reason)
		return res
	}

	args := []any{"task_id", taskID, "outcome", res.Outcome, "through_seq", res.ThroughSeq, "replaced_events", res.Replaced}
	switch {
	case res.Reason != nil:
		c.opts.Logger.Warn("session.compaction.conflict", append(args, "reason", res.Reason.Error())...)
	case res.Outcome == OutcomeCompacted:
		c.opts.Logger.Info("session.compaction", args...)
	default:
		c.opts.Logger.Debug("session.compaction", args...)
	}

	return res
}

func distinctTurns(events []core.Event) []int {
	var turns []int
	for _, ev := range events {
		if ev.Kind == core.KindSummary {
			continue
		}
		if len(turns) == 0 || turns[len(turns)-1] != ev.Turn {
			turns = append(turns, ev.Turn)
		}
	}
	return turns
}

// firstGatedRequest returns the index of the first action request in events
// whose invocation awaits a decision or its post-decision result, or
// len(events).
func firstGatedRequest(events []core.Event, ledger *core.Ledger) int {
	for i, ev := range events {
		if ev.Kind != core.KindActionRequest || ev.Action == nil {
			continue
		}
		if inv, ok := ledger.Get(ev.Action.InvocationID); ok && inv.Status.Gated() {
			return i
		}
	}
	return len(events)
}

// WithInterval sets the compaction interval.
func WithInterval(n int) func(o *CompactorOptions) {
	return func(o *CompactorOptions) { o.Interval = n }
}

// WithOverlap sets how many newest turns are always kept.
func WithOverlap(n int) func(o *CompactorOptions) {
	return func(o *CompactorOptions) { o.Overlap = n }
}

// WithLogger sets the compactor logger.
func WithLogger(l logging.Logger) func(o *CompactorOptions) {
	return func(o *CompactorOptions) {
		if l != nil {
			o.Logger = l
		}
	}
}

// WithMetrics sets the metrics recorder.
func WithMetrics(m metrics.Recorder) func(o *CompactorOptions) {
	return func(o *CompactorOptions) { o.Metrics = metrics.OrNop(m) }
}
