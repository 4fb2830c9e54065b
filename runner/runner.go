package runner

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"github.com/hupe1980/predator/core"
	"github.com/hupe1980/predator/logging"
	"github.com/hupe1980/predator/metrics"
	"github.com/hupe1980/predator/session"
	"github.com/hupe1980/predator/tool"
)

const tracerName = "github.com/hupe1980/predator/runner"

// Run outcomes recorded in metrics.
const (
	OutcomeFinal  = "final"
	OutcomePaused = "paused"
	OutcomeError  = "error"
)

// Options holds dependency + configuration overrides passed to New().
type Options struct {
	// MaxSteps limits the number of oracle calls per run (0 = unlimited).
	MaxSteps int
	// EventBufferSize sets channel buffering for events.
	EventBufferSize int
	// Author is recorded on events produced by the orchestrator.
	Author string
	// Agents are the remote peers the oracle may delegate to.
	Agents []core.RemoteAgent
	// Compactor is consulted after every run; nil disables compaction.
	Compactor *session.Compactor
	// Logging services.
	Logger logging.Logger
	// Metrics services.
	Metrics metrics.Recorder
}

// Runner coordinates task execution. Public methods are safe for concurrent
// use; at most one run per task is in flight at any time.
type Runner struct {
	log    core.EventLog
	oracle core.Oracle
	tools  *tool.Registry
	agents map[string]core.RemoteAgent

	maxSteps        int
	eventBufferSize int
	author          string
	compactor       *session.Compactor
	logger          logging.Logger
	metrics         metrics.Recorder
	tracer          trace.Tracer

	busy map[string]struct{}
	mu   sync.Mutex
}

var _ core.Runner = (*Runner)(nil)

// New constructs a Runner with optional overrides. A nil registry means no
// local tools.
func New(log core.EventLog, oracle core.Oracle, tools *tool.Registry, optFns ...func(o *Options)) *Runner {
	opts := Options{
		MaxSteps:        25,
		EventBufferSize: 100,
		Author:          "predator",
		Logger:          logging.NoOpLogger{},
		Metrics:         metrics.Nop(),
	}

	for _, fn := range optFns {
		fn(&opts)
	}

	if tools == nil {
		tools, _ = tool.NewRegistry(nil)
	}

	agents := make(map[string]core.RemoteAgent, len(opts.Agents))
	for _, a := range opts.Agents {
		agents[a.Name()] = a
	}

	return &Runner{
		log:             log,
		oracle:          oracle,
		tools:           tools,
		agents:          agents,
		maxSteps:        opts.MaxSteps,
		eventBufferSize: opts.EventBufferSize,
		author:          opts.Author,
		compactor:       opts.Compactor,
		logger:          opts.Logger,
		metrics:         metrics.OrNop(opts.Metrics),
		tracer:          otel.Tracer(tracerName),
		busy:            make(map[string]struct{}),
	}
}

// Run starts a turn for taskID. The task is created on its first text
// message. See core.Runner for channel semantics.
func (r *Runner) Run(ctx context.Context, taskID string, msg core.Message) (<-chan core.Event, <-chan error, error) {
	if !r.acquire(taskID) {
		return nil, nil, fmt.Errorf("%w: %s", core.ErrTaskBusy, taskID)
	}

	t, err := r.prepare(ctx, taskID, msg)
	if err != nil {
		r.release(taskID)
		return nil, nil, err
	}

	eventsCh := make(chan core.Event, r.eventBufferSize)
	errorsCh := make(chan error, 1)
	t.out = eventsCh

	go func() {
		defer func() {
			close(eventsCh)
			close(errorsCh)
			r.release(taskID)
		}()

		runCtx, span := r.tracer.Start(ctx, "runner.run", trace.WithAttributes(
			attribute.String("task.id", taskID),
			attribute.Int("task.turn", t.turn),
		))
		defer span.End()

		outcome, err := t.drive(runCtx, msg)
		if err != nil {
			outcome = OutcomeError
			span.RecordError(err)
			r.logger.Error("runner.turn.failed", "task_id", taskID, "turn", t.turn, "error", err.Error())
			errorsCh <- err
		}
		r.metrics.RunFinished(outcome)
		span.SetAttributes(attribute.String("run.outcome", outcome))

		r.compact(runCtx, taskID)
	}()

	return eventsCh, errorsCh, nil
}

// RunSync runs a turn and collects its events.
func (r *Runner) RunSync(ctx context.Context, taskID string, msg core.Message) ([]core.Event, error) {
	eventsCh, errorsCh, err := r.Run(ctx, taskID, msg)
	if err != nil {
		return nil, err
	}

	var events []core.Event
	for ev := range eventsCh {
		events = append(events, ev)
	}

	if err := <-errorsCh; err != nil {
		return events, err
	}

	return events, nil
}

// Pending returns the confirmations a task is waiting on, oldest first.
func (r *Runner) Pending(ctx context.Context, taskID string) ([]core.PendingConfirmation, error) {
	events, err := r.log.Events(ctx, taskID)
	if err != nil {
		return nil, err
	}
	ledger, err := core.Replay(events)
	if err != nil {
		return nil, err
	}

	var out []core.PendingConfirmation
	for _, inv := range ledger.Outstanding() {
		out = append(out, core.PendingConfirmation{InvocationID: inv.ID, Hint: inv.Hint, Payload: inv.Payload, Remote: inv.Remote})
	}

	return out, nil
}

// Events returns the task's current log.
func (r *Runner) Events(ctx context.Context, taskID string) ([]core.Event, error) {
	return r.log.Events(ctx, taskID)
}

// prepare loads the task, validates msg against the ledger and returns the
// per-run state. Everything here fails fast with an immediate error.
func (r *Runner) prepare(ctx context.Context, taskID string, msg core.Message) (*turn, error) {
	task, err := r.log.GetTask(ctx, taskID)
	switch {
	case errors.Is(err, core.ErrTaskNotFound) && msg.IsDecision():
		return nil, fmt.Errorf("%w: %s (task %s does not exist)", core.ErrUnknownInvocation, msg.Decision.InvocationID, taskID)
	case errors.Is(err, core.ErrTaskNotFound):
		task, err = r.log.CreateTask(ctx, core.NewTask(taskID, taskID, msg.Author))
		if err != nil {
			return nil, err
		}
		r.logger.Info("runner.task.created", "task_id", taskID)
	case err != nil:
		return nil, err
	}

	events, err := r.log.Events(ctx, taskID)
	if err != nil {
		return nil, err
	}

	ledger, err := core.Replay(events)
	if err != nil {
		return nil, err
	}

	if msg.IsDecision() {
		inv, ok := ledger.Get(msg.Decision.InvocationID)
		if !ok || inv.Status.Terminal() {
			return nil, fmt.Errorf("%w: %s", core.ErrUnknownInvocation, msg.Decision.InvocationID)
		}
		if inv.Status != core.StatusAwaitingConfirmation {
			return nil, fmt.Errorf("%w: invocation %s is %s", core.ErrInvalidTransition, inv.ID, inv.Status)
		}
	} else if msg.Text == "" {
		return nil, fmt.Errorf("message must carry text or a decision")
	}

	return &turn{
		r:       r,
		task:    task,
		turn:    core.LastTurn(events) + 1,
		events:  events,
		ledger:  ledger,
		limiter: core.NewStepLimiter(r.maxSteps),
	}, nil
}

func (r *Runner) compact(ctx context.Context, taskID string) {
	if r.compactor == nil || ctx.Err() != nil {
		return
	}
	if _, err := r.compactor.Compact(ctx, taskID); err != nil {
		r.logger.Warn("runner.compaction.failed", "task_id", taskID, "error", err.Error())
	}
}

func (r *Runner) acquire(taskID string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, running := r.busy[taskID]; running {
		return false
	}
	r.busy[taskID] = struct{}{}

	return true
}

func (r *Runner) release(taskID string) {
	r.mu.Lock()
	delete(r.busy, taskID)
	r.mu.Unlock()
}

func (r *Runner) agentSpecs() []core.AgentSpec {
	specs := make([]core.AgentSpec, 0, len(r.agents))
	for _, a := range r.agents {
		specs = append(specs, core.AgentSpec{Name: a.Name(), Description: a.Description()})
	}
	sort.Slice(specs, func(i, j int) bool { return specs[i].Name < specs[j].Name })
	return specs
}

// WithMaxSteps sets the per-run step limit.
func WithMaxSteps(n int) func(o *Options) {
	return func(o *Options) { o.MaxSteps = n }
}

// WithAgents registers remote agents.
func WithAgents(agents ...core.RemoteAgent) func(o *Options) {
	return func(o *Options) { o.Agents = append(o.Agents, agents...) }
}

// WithCompactor enables compaction after every run.
func WithCompactor(c *session.Compactor) func(o *Options) {
	return func(o *Options) { o.Compactor = c }
}

// WithLogger sets the runner logger.
func WithLogger(l logging.Logger) func(o *Options) {
	return func(o *Options) {
		if l != nil {
			o.Logger = l
		}
	}
}

// WithMetrics sets the metrics recorder.
func WithMetrics(m metrics.Recorder) func(o *Options) {
	return func(o *Options) { o.Metrics = m }
}

// WithAuthor sets the author recorded on orchestrator events.
func WithAuthor(author string) func(o *Options) {
	return func(o *Options) { o.Author = author }
}
