package runner

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/hupe1980/predator/core"
	"github.com/hupe1980/predator/internal/util"
	"github.com/hupe1980/predator/tool"
)

// dispatchLogger is implemented by logging.TaskLogger.
type dispatchLogger interface {
	LogDispatch(kind, target, invocationID string, dur time.Duration, err error)
}

// turn is the state of one Run call. It lives exactly as long as the
// goroutine driving it.
type turn struct {
	r       *Runner
	task    core.Task
	turn    int
	events  []core.Event
	ledger  *core.Ledger
	limiter *core.StepLimiter
	out     chan<- core.Event
}

// drive executes the turn and reports how it halted.
func (t *turn) drive(ctx context.Context, msg core.Message) (string, error) {
	t.r.logger.Info("runner.turn.start", "task_id", t.task.ID, "turn", t.turn, "decision", msg.IsDecision())

	// A run that stopped mid-dispatch leaves its invocation Running. It is
	// failed rather than retried so a side effect can never happen twice.
	for _, inv := range t.ledger.Orphaned() {
		t.r.logger.Warn("runner.recover.orphaned", "task_id", t.task.ID, "invocation_id", inv.ID, "target", inv.Target)
		if err := t.fail(ctx, inv, fmt.Errorf("%w: %s did not finish", core.ErrInterrupted, inv.Target)); err != nil {
			return OutcomeError, err
		}
	}

	// Invocations decided before a crash never got their result recorded.
	for _, inv := range t.ledger.Dangling() {
		t.r.logger.Warn("runner.recover.dangling", "task_id", t.task.ID, "invocation_id", inv.ID, "status", inv.Status)
		if halted, err := t.execute(ctx, inv); err != nil || halted {
			return OutcomePaused, err
		}
	}

	if msg.IsDecision() {
		inv, _ := t.ledger.Get(msg.Decision.InvocationID)
		if err := inv.Decide(msg.Decision.Approved); err != nil {
			return OutcomeError, err
		}
		if err := t.append(ctx, core.NewConfirmationDecisionEvent(msg.Author, inv.ID, msg.Decision.Approved)); err != nil {
			return OutcomeError, err
		}
		if halted, err := t.execute(ctx, inv); err != nil || halted {
			return OutcomePaused, err
		}
	} else {
		if err := t.append(ctx, core.NewUserMessageEvent(msg.Author, msg.Text)); err != nil {
			return OutcomeError, err
		}
	}

	for {
		if err := ctx.Err(); err != nil {
			return OutcomeError, err
		}
		if err := t.limiter.Increment(); err != nil {
			return OutcomeError, err
		}

		action, err := t.r.oracle.Next(ctx, core.State{
			Task:   t.task,
			Events: t.events,
			Tools:  t.r.tools.Specs(),
			Agents: t.r.agentSpecs(),
		})
		if err != nil {
			return OutcomeError, fmt.Errorf("oracle: %w", err)
		}

		if action.Kind == core.ActionFinal {
			if err := t.append(ctx, core.NewFinalAnswerEvent(t.r.author, action.Text)); err != nil {
				return OutcomeError, err
			}
			t.r.logger.Info("runner.turn.final", "task_id", t.task.ID, "turn", t.turn, "steps", t.limiter.Count())
			return OutcomeFinal, nil
		}

		args, err := util.NormalizeArgs(action.Args)
		if err != nil {
			return OutcomeError, fmt.Errorf("action %s: %w", action.Name, err)
		}
		req := core.ActionRequest{InvocationID: core.NewID(), Kind: action.Kind, Name: action.Name, Args: args}
		if err := t.append(ctx, core.NewActionRequestEvent(t.r.author, req)); err != nil {
			return OutcomeError, err
		}

		halted, err := t.execute(ctx, core.NewInvocation(req))
		if err != nil {
			return OutcomeError, err
		}
		if halted {
			return OutcomePaused, nil
		}
	}
}

// execute dispatches inv in its current status and records the outcome.
// halted reports that the invocation now waits for a human decision.
func (t *turn) execute(ctx context.Context, inv *core.Invocation) (halted bool, err error) {
	start := time.Now()
	out := t.dispatch(ctx, inv)
	t.logDispatch(inv, time.Since(start), out.Err)

	if out.ConfirmationRequired() {
		pc := *out.Confirmation
		pc.InvocationID = inv.ID
		if pc.Payload != nil {
			if pc.Payload, err = util.NormalizeArgs(pc.Payload); err != nil {
				return false, err
			}
		}
		if err := inv.Await(pc); err != nil {
			return false, t.fail(ctx, inv, err)
		}
		if err := t.append(ctx, core.NewPendingConfirmationEvent(t.r.author, pc)); err != nil {
			return false, err
		}
		t.r.logger.Info("runner.halt.pending", "task_id", t.task.ID, "invocation_id", inv.ID, "target", inv.Target)
		return true, nil
	}

	if out.Err != nil {
		return false, t.fail(ctx, inv, out.Err)
	}

	payload, err := util.NormalizePayload(out.Value)
	if err != nil {
		return false, t.fail(ctx, inv, fmt.Errorf("%w: result of %s is not serializable: %v", core.ErrToolExecution, inv.Target, err))
	}

	return false, t.complete(ctx, inv, core.NewActionResultEvent(inv.Target, inv.ID, inv.Target, payload, nil))
}

func (t *turn) fail(ctx context.Context, inv *core.Invocation, cause error) error {
	return t.complete(ctx, inv, core.NewActionResultEvent(inv.Target, inv.ID, inv.Target, nil, cause))
}

func (t *turn) complete(ctx context.Context, inv *core.Invocation, ev core.Event) error {
	if err := inv.Complete(*ev.Result); err != nil {
		return err
	}
	if err := t.append(ctx, ev); err != nil {
		return err
	}
	t.r.metrics.InvocationFinished(string(inv.Kind), string(inv.Status))
	return nil
}

func (t *turn) dispatch(ctx context.Context, inv *core.Invocation) tool.Outcome {
	switch inv.Kind {
	case core.ActionTool:
		tc := core.NewToolContext(ctx, t.task, inv.ID, inv.Status, t.r.logger)
		return t.r.tools.Invoke(tc, inv.Target, inv.Args)
	case core.ActionRemoteAgent:
		return t.delegate(ctx, inv)
	default:
		return tool.Outcome{Err: tool.NewToolError(inv.Target, fmt.Sprintf("unsupported action kind %q", inv.Kind), tool.CodeNotFound)}
	}
}

// delegate forwards inv to a remote agent. A decided invocation relays its
// decision to the remote task that asked for it.
func (t *turn) delegate(ctx context.Context, inv *core.Invocation) tool.Outcome {
	agent, ok := t.r.agents[inv.Target]
	if !ok {
		return tool.Outcome{Err: tool.NewToolError(inv.Target, "remote agent not found", tool.CodeNotFound)}
	}

	req := core.RemoteRequest{CorrelationID: inv.ID}
	if inv.Status.Decided() {
		if inv.Remote == nil {
			return tool.Outcome{Err: fmt.Errorf("%w: invocation %s has no remote task to resume", core.ErrInvalidTransition, inv.ID)}
		}
		req.TaskID = inv.Remote.TaskID
		req.Decision = &core.ConfirmationDecision{InvocationID: inv.Remote.InvocationID, Approved: inv.Approved()}
	} else {
		req.Text = requestText(inv.Args)
	}

	resp, err := agent.Invoke(ctx, req)
	if err != nil {
		if !errors.Is(err, core.ErrRemoteUnavailable) {
			err = fmt.Errorf("%w: %s: %v", core.ErrRemoteUnavailable, inv.Target, err)
		}
		return tool.Outcome{Err: err}
	}

	switch resp.State {
	case core.RemoteCompleted:
		return tool.Outcome{Value: resp.Text}
	case core.RemoteInputRequired:
		if resp.Confirmation == nil {
			return tool.Outcome{Err: fmt.Errorf("%w: %s asked for input without a confirmation", core.ErrToolExecution, inv.Target)}
		}
		if inv.Status != core.StatusRunning {
			return tool.Outcome{Err: fmt.Errorf("%w: %s requested confirmation again after %s", core.ErrInvalidTransition, inv.Target, inv.Status)}
		}
		return tool.Outcome{Confirmation: &core.PendingConfirmation{
			InvocationID: inv.ID,
			Hint:         resp.Confirmation.Hint,
			Payload:      resp.Confirmation.Payload,
			Remote: &core.RemoteRef{
				Agent:        inv.Target,
				TaskID:       resp.TaskID,
				InvocationID: resp.Confirmation.InvocationID,
			},
		}}
	default:
		msg := resp.Text
		if msg == "" {
			msg = "remote task failed"
		}
		return tool.Outcome{Err: fmt.Errorf("%w: %s: %s", core.ErrToolExecution, inv.Target, msg)}
	}
}

func (t *turn) append(ctx context.Context, ev core.Event) error {
	ev.Turn = t.turn

	stored, err := t.r.log.Append(ctx, t.task.ID, ev)
	if err != nil {
		return fmt.Errorf("append %s: %w", ev.Kind, err)
	}
	t.events = append(t.events, stored)

	select {
	case t.out <- stored:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (t *turn) logDispatch(inv *core.Invocation, dur time.Duration, err error) {
	if dl, ok := t.r.logger.(dispatchLogger); ok {
		dl.LogDispatch(string(inv.Kind), inv.Target, inv.ID, dur, err)
		return
	}
	t.r.logger.Debug("runner.dispatch", "kind", inv.Kind, "target", inv.Target, "invocation_id", inv.ID, "duration", dur)
}

func requestText(args map[string]any) string {
	if s, ok := args["request"].(string); ok {
		return s
	}
	return util.Stringify(args)
}
