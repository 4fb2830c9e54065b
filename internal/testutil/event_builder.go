package testutil

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/hupe1980/predator/core"
)

// LogBuilder provides a fluent helper for constructing task logs in tests.
// Example:
//
//	events := NewLogBuilder().Turn(1).User("hi").Call("i1", "score_lead", nil).Result("i1", "score_lead", 80).Final("ok").Events()
//
// Events are numbered with consecutive Seq values starting at 1.
type LogBuilder struct {
	turn   int
	events []core.Event
}

// NewLogBuilder creates a builder starting at turn 1.
func NewLogBuilder() *LogBuilder { return &LogBuilder{turn: 1} }

// Turn sets the turn number for subsequently added events (chainable).
func (b *LogBuilder) Turn(n int) *LogBuilder { b.turn = n; return b }

// User appends a user message (chainable).
func (b *LogBuilder) User(text string) *LogBuilder {
	return b.add(core.NewUserMessageEvent("user", text))
}

// Call appends a tool action request (chainable).
func (b *LogBuilder) Call(id, name string, args map[string]any) *LogBuilder {
	return b.add(core.NewActionRequestEvent("oracle", core.ActionRequest{InvocationID: id, Kind: core.ActionTool, Name: name, Args: args}))
}

// CallAgent appends a remote agent action request (chainable).
func (b *LogBuilder) CallAgent(id, name, request string) *LogBuilder {
	return b.add(core.NewActionRequestEvent("oracle", core.ActionRequest{InvocationID: id, Kind: core.ActionRemoteAgent, Name: name, Args: map[string]any{"request": request}}))
}

// Result appends a successful action result (chainable).
func (b *LogBuilder) Result(id, name string, payload any) *LogBuilder {
	return b.add(core.NewActionResultEvent(name, id, name, payload, nil))
}

// Fail appends a failed action result (chainable).
func (b *LogBuilder) Fail(id, name, msg string) *LogBuilder {
	return b.add(core.NewActionResultEvent(name, id, name, nil, errors.New(msg)))
}

// Ask appends a pending confirmation (chainable).
func (b *LogBuilder) Ask(id, hint string) *LogBuilder {
	return b.add(core.NewPendingConfirmationEvent("tool", core.PendingConfirmation{InvocationID: id, Hint: hint}))
}

// Decide appends a confirmation decision (chainable).
func (b *LogBuilder) Decide(id string, approved bool) *LogBuilder {
	return b.add(core.NewConfirmationDecisionEvent("user", id, approved))
}

// Final appends a final answer (chainable).
func (b *LogBuilder) Final(text string) *LogBuilder {
	return b.add(core.NewFinalAnswerEvent("oracle", text))
}

// Summary appends a summary event (chainable).
func (b *LogBuilder) Summary(text string) *LogBuilder {
	return b.add(core.NewSummaryEvent("compactor", core.Summary{Text: text}))
}

func (b *LogBuilder) add(ev core.Event) *LogBuilder {
	ev.Turn = b.turn
	ev.Seq = int64(len(b.events) + 1)
	b.events = append(b.events, ev)
	return b
}

// Events returns a copy of the built log.
func (b *LogBuilder) Events() []core.Event {
	return append([]core.Event(nil), b.events...)
}

// Seed creates taskID in log and appends every built event to it.
func (b *LogBuilder) Seed(ctx context.Context, log core.EventLog, taskID string) error {
	if _, err := log.CreateTask(ctx, core.NewTask(taskID, "session-"+taskID, "user")); err != nil {
		return err
	}
	for _, ev := range b.events {
		if _, err := log.Append(ctx, taskID, ev); err != nil {
			return err
		}
	}
	return nil
}

// Kinds returns the kinds of events in order, handy for trace assertions.
func Kinds(events []core.Event) []core.EventKind {
	kinds := make([]core.EventKind, len(events))
	for i, ev := range events {
		kinds[i] = ev.Kind
	}
	return kinds
}

// Strip clears the fields that legitimately differ between two otherwise
// identical runs (event ids, timestamps, task id) and renames invocation ids
// to their order of first appearance, so traces can be compared.
func Strip(events []core.Event) []core.Event {
	names := map[string]string{}
	rename := func(id string) string {
		if id == "" {
			return ""
		}
		if n, ok := names[id]; ok {
			return n
		}
		n := fmt.Sprintf("inv-%d", len(names)+1)
		names[id] = n
		return n
	}

	out := make([]core.Event, len(events))
	for i, ev := range events {
		ev.ID = ""
		ev.TaskID = ""
		ev.Timestamp = time.Time{}
		if ev.Action != nil {
			a := *ev.Action
			a.InvocationID = rename(a.InvocationID)
			ev.Action = &a
		}
		if ev.Result != nil {
			r := *ev.Result
			r.InvocationID = rename(r.InvocationID)
			ev.Result = &r
		}
		if ev.Confirmation != nil {
			c := *ev.Confirmation
			c.InvocationID = rename(c.InvocationID)
			if c.Remote != nil {
				remote := *c.Remote
				remote.TaskID = ""
				remote.InvocationID = ""
				c.Remote = &remote
			}
			ev.Confirmation = &c
		}
		if ev.Decision != nil {
			d := *ev.Decision
			d.InvocationID = rename(d.InvocationID)
			ev.Decision = &d
		}
		out[i] = ev
	}
	return out
}
