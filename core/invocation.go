package core

import "fmt"

// InvocationStatus is the lifecycle status of an Invocation.
type InvocationStatus string

const (
	StatusRunning              InvocationStatus = "running"
	StatusAwaitingConfirmation InvocationStatus = "awaiting_confirmation"
	StatusApproved             InvocationStatus = "approved"
	StatusRejected             InvocationStatus = "rejected"
	StatusCompleted            InvocationStatus = "completed"
	StatusFailed               InvocationStatus = "failed"
)

// Terminal reports whether no further transition is possible.
func (s InvocationStatus) Terminal() bool {
	return s == StatusCompleted || s == StatusFailed
}

// Decided reports whether a confirmation decision has been recorded but the
// owning tool has not yet produced its terminal result.
func (s InvocationStatus) Decided() bool {
	return s == StatusApproved || s == StatusRejected
}

// Gated reports whether the invocation has entered the confirmation gate
// without reaching a terminal result.
func (s InvocationStatus) Gated() bool {
	return s == StatusAwaitingConfirmation || s.Decided()
}

// transitions is the confirmation gate state machine. AwaitingConfirmation can
// only be left through Decide.
var transitions = map[InvocationStatus][]InvocationStatus{
	StatusRunning:              {StatusAwaitingConfirmation, StatusCompleted, StatusFailed},
	StatusAwaitingConfirmation: {StatusApproved, StatusRejected},
	StatusApproved:             {StatusCompleted, StatusFailed},
	StatusRejected:             {StatusCompleted, StatusFailed},
}

// Invocation is one attempt to execute a tool or remote call. It is owned by
// the orchestrator and rebuilt from the event log on every run; it never needs
// to survive in memory across a pause.
type Invocation struct {
	ID     string
	Kind   ActionKind
	Target string
	Args   map[string]any
	Status InvocationStatus

	// Confirmation details, set once the gate has been entered.
	Hint    string
	Payload map[string]any
	Remote  *RemoteRef

	asked bool
}

// NewInvocation creates a Running invocation from its originating request.
func NewInvocation(req ActionRequest) *Invocation {
	return &Invocation{
		ID:     req.InvocationID,
		Kind:   req.Kind,
		Target: req.Name,
		Args:   req.Args,
		Status: StatusRunning,
	}
}

// Request returns the ActionRequest that creates this invocation.
func (inv *Invocation) Request() ActionRequest {
	return ActionRequest{InvocationID: inv.ID, Kind: inv.Kind, Name: inv.Target, Args: inv.Args}
}

// Asked reports whether the invocation has already entered the gate.
func (inv *Invocation) Asked() bool { return inv.asked }

// Approved reports whether the recorded decision was an approval. It is only
// meaningful once the invocation has been decided.
func (inv *Invocation) Approved() bool { return inv.Status == StatusApproved }

// Await moves a running invocation into AwaitingConfirmation. It may happen
// at most once per invocation.
func (inv *Invocation) Await(pc PendingConfirmation) error {
	if inv.asked {
		return fmt.Errorf("%w: invocation %s already requested confirmation", ErrInvalidTransition, inv.ID)
	}
	if err := inv.transition(StatusAwaitingConfirmation); err != nil {
		return err
	}
	inv.asked = true
	inv.Hint = pc.Hint
	inv.Payload = pc.Payload
	inv.Remote = pc.Remote
	return nil
}

// Decide applies a human decision. It is the only legal way out of
// AwaitingConfirmation.
func (inv *Invocation) Decide(approved bool) error {
	if inv.Status != StatusAwaitingConfirmation {
		return fmt.Errorf("%w: invocation %s is %s, not awaiting confirmation", ErrInvalidTransition, inv.ID, inv.Status)
	}
	if approved {
		return inv.transition(StatusApproved)
	}
	return inv.transition(StatusRejected)
}

// Complete records a terminal result: Completed on success, Failed when the
// result carries an error.
func (inv *Invocation) Complete(res ActionResult) error {
	if res.Failed() {
		return inv.transition(StatusFailed)
	}
	return inv.transition(StatusCompleted)
}

func (inv *Invocation) transition(to InvocationStatus) error {
	for _, allowed := range transitions[inv.Status] {
		if allowed == to {
			inv.Status = to
			return nil
		}
	}
	return fmt.Errorf("%w: %s -> %s for invocation %s", ErrInvalidTransition, inv.Status, to, inv.ID)
}
