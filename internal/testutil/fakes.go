package testutil

import (
	"context"
	"sync"

	"github.com/hupe1980/predator/core"
)

// ScriptedOracle returns a fixed sequence of actions, one per call, then a
// final answer "done". It records every state it was shown.
type ScriptedOracle struct {
	mu      sync.Mutex
	actions []core.Action
	calls   int
	states  []core.State
	err     error
}

// NewScriptedOracle creates an oracle that replays actions in order.
func NewScriptedOracle(actions ...core.Action) *ScriptedOracle {
	return &ScriptedOracle{actions: actions}
}

// FailWith makes every subsequent call return err (chainable).
func (o *ScriptedOracle) FailWith(err error) *ScriptedOracle {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.err = err
	return o
}

// Next implements core.Oracle.
func (o *ScriptedOracle) Next(_ context.Context, state core.State) (core.Action, error) {
	o.mu.Lock()
	defer o.mu.Unlock()

	o.states = append(o.states, state)
	if o.err != nil {
		return core.Action{}, o.err
	}
	if o.calls >= len(o.actions) {
		o.calls++
		return core.FinalAnswer("done"), nil
	}
	a := o.actions[o.calls]
	o.calls++
	return a, nil
}

// Calls returns the number of Next calls.
func (o *ScriptedOracle) Calls() int {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.calls
}

// States returns the states passed to Next.
func (o *ScriptedOracle) States() []core.State {
	o.mu.Lock()
	defer o.mu.Unlock()
	return append([]core.State(nil), o.states...)
}

// FakeRemoteAgent is an in-process core.RemoteAgent driven by a handler.
type FakeRemoteAgent struct {
	name        string
	description string
	handler     func(req core.RemoteRequest) (core.RemoteResponse, error)

	mu       sync.Mutex
	requests []core.RemoteRequest
}

// NewFakeRemoteAgent creates a fake remote agent. A nil handler echoes the
// request text back as a completed response.
func NewFakeRemoteAgent(name string, handler func(req core.RemoteRequest) (core.RemoteResponse, error)) *FakeRemoteAgent {
	if handler == nil {
		handler = func(req core.RemoteRequest) (core.RemoteResponse, error) {
			return core.RemoteResponse{CorrelationID: req.CorrelationID, TaskID: "remote-" + req.CorrelationID, State: core.RemoteCompleted, Text: req.Text}, nil
		}
	}
	return &FakeRemoteAgent{name: name, description: "fake " + name, handler: handler}
}

// Name implements core.RemoteAgent.
func (a *FakeRemoteAgent) Name() string { return a.name }

// Description implements core.RemoteAgent.
func (a *FakeRemoteAgent) Description() string { return a.description }

// Invoke implements core.RemoteAgent.
func (a *FakeRemoteAgent) Invoke(_ context.Context, req core.RemoteRequest) (core.RemoteResponse, error) {
	a.mu.Lock()
	a.requests = append(a.requests, req)
	a.mu.Unlock()
	return a.handler(req)
}

// Requests returns every request received.
func (a *FakeRemoteAgent) Requests() []core.RemoteRequest {
	a.mu.Lock()
	defer a.mu.Unlock()
	return append([]core.RemoteRequest(nil), a.requests...)
}
