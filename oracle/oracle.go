// Package oracle provides Decision Oracle implementations: a function
// adapter, and a model-backed oracle that exposes local tools and remote
// agents to a language model as callable functions.
package oracle

import (
	"context"

	"github.com/hupe1980/predator/core"
)

// Func adapts a plain function to core.Oracle.
type Func func(ctx context.Context, state core.State) (core.Action, error)

// Next implements core.Oracle.
func (f Func) Next(ctx context.Context, state core.State) (core.Action, error) {
	return f(ctx, state)
}

var _ core.Oracle = Func(nil)

// LastResult returns the most recent result recorded for the named target in
// the current turn, if any.
func LastResult(state core.State, name string) (core.ActionResult, bool) {
	turn := state.CurrentTurn()
	for i := len(turn) - 1; i >= 0; i-- {
		if ev := turn[i]; ev.Kind == core.KindActionResult && ev.Result.Name == name {
			return *ev.Result, true
		}
	}
	return core.ActionResult{}, false
}

// Called reports whether target was requested during the current turn.
func Called(state core.State, name string) bool {
	for _, ev := range state.CurrentTurn() {
		if ev.Kind == core.KindActionRequest && ev.Action.Name == name {
			return true
		}
	}
	return false
}
