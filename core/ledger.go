package core

import "fmt"

// Ledger is the arena of invocations rebuilt from a task's event log, keyed
// by invocation id. It is the only state the orchestrator needs to resume a
// paused task, which is why a paused process may exit at any time as long as
// its log is durable.
type Ledger struct {
	invocations map[string]*Invocation
	order       []string
}

// Replay folds events into a Ledger. Events that reference invocations whose
// originating request was compacted away are skipped; such invocations reached
// a terminal status before compaction could remove their request. A
// transition the gate does not allow indicates a corrupt log and is returned
// as an error.
func Replay(events []Event) (*Ledger, error) {
	l := &Ledger{invocations: map[string]*Invocation{}}

	for _, ev := range events {
		switch ev.Kind {
		case KindActionRequest:
			if ev.Action == nil {
				continue
			}
			if _, dup := l.invocations[ev.Action.InvocationID]; dup {
				return nil, fmt.Errorf("replay seq %d: duplicate invocation %s", ev.Seq, ev.Action.InvocationID)
			}
			l.invocations[ev.Action.InvocationID] = NewInvocation(*ev.Action)
			l.order = append(l.order, ev.Action.InvocationID)
		case KindPendingConfirmation:
			inv, ok := l.lookup(ev.Confirmation)
			if !ok {
				continue
			}
			if err := inv.Await(*ev.Confirmation); err != nil {
				return nil, fmt.Errorf("replay seq %d: %w", ev.Seq, err)
			}
		case KindConfirmationDecision:
			if ev.Decision == nil {
				continue
			}
			inv, ok := l.invocations[ev.Decision.InvocationID]
			if !ok {
				continue
			}
			if err := inv.Decide(ev.Decision.Approved); err != nil {
				return nil, fmt.Errorf("replay seq %d: %w", ev.Seq, err)
			}
		case KindActionResult:
			if ev.Result == nil {
				continue
			}
			inv, ok := l.invocations[ev.Result.InvocationID]
			if !ok {
				continue
			}
			if err := inv.Complete(*ev.Result); err != nil {
				return nil, fmt.Errorf("replay seq %d: %w", ev.Seq, err)
			}
		}
	}

	return l, nil
}

func (l *Ledger) lookup(pc *PendingConfirmation) (*Invocation, bool) {
	if pc == nil {
		return nil, false
	}
	inv, ok := l.invocations[pc.InvocationID]
	return inv, ok
}

// Get returns the invocation with the given id.
func (l *Ledger) Get(id string) (*Invocation, bool) {
	inv, ok := l.invocations[id]
	return inv, ok
}

// Len returns the number of known invocations.
func (l *Ledger) Len() int { return len(l.order) }

// Outstanding returns invocations awaiting a human decision, in request order.
func (l *Ledger) Outstanding() []*Invocation {
	return l.filter(func(inv *Invocation) bool { return inv.Status == StatusAwaitingConfirmation })
}

// Dangling returns invocations that were decided but never produced a
// terminal result, e.g. because the process stopped in between.
func (l *Ledger) Dangling() []*Invocation {
	return l.filter(func(inv *Invocation) bool { return inv.Status.Decided() })
}

// Orphaned returns invocations that are still Running. Nothing is in flight
// between runs, so these were cut off before they reached the gate or a result.
func (l *Ledger) Orphaned() []*Invocation {
	return l.filter(func(inv *Invocation) bool { return inv.Status == StatusRunning })
}

func (l *Ledger) filter(keep func(*Invocation) bool) []*Invocation {
	var out []*Invocation
	for _, id := range l.order {
		if inv := l.invocations[id]; keep(inv) {
			out = append(out, inv)
		}
	}
	return out
}

// LastTurn returns the highest turn number present in events (0 for an empty log).
func LastTurn(events []Event) int {
	last := 0
	for _, ev := range events {
		turn := ev.Turn
		if ev.Summary != nil && ev.Summary.LastTurn > turn {
			turn = ev.Summary.LastTurn
		}
		if turn > last {
			last = turn
		}
	}
	return last
}
