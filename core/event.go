package core

import (
	"time"

	"github.com/google/uuid"
)

// EventKind discriminates the variant carried by an Event.
type EventKind string

const (
	// KindUserMessage is free text supplied by the task's user.
	KindUserMessage EventKind = "user_message"
	// KindActionRequest records the oracle asking for a tool or remote agent call.
	KindActionRequest EventKind = "action_request"
	// KindActionResult records the terminal outcome of an invocation.
	KindActionResult EventKind = "action_result"
	// KindPendingConfirmation records that an invocation is waiting for a human decision.
	KindPendingConfirmation EventKind = "pending_confirmation"
	// KindConfirmationDecision records the human decision for a pending invocation.
	KindConfirmationDecision EventKind = "confirmation_decision"
	// KindFinalAnswer records the oracle's final answer for the current turn.
	KindFinalAnswer EventKind = "final_answer"
	// KindSummary replaces a compacted prefix of the log.
	KindSummary EventKind = "summary"
)

// ActionKind names the dispatch target family of an action.
type ActionKind string

const (
	// ActionTool dispatches to the local tool registry.
	ActionTool ActionKind = "tool"
	// ActionRemoteAgent dispatches to a remote peer agent.
	ActionRemoteAgent ActionKind = "remote_agent"
	// ActionFinal ends the turn with a final answer.
	ActionFinal ActionKind = "final"
)

// ActionRequest is the payload of a KindActionRequest event. It is the single
// source of truth used to rebuild an Invocation on resume.
type ActionRequest struct {
	InvocationID string         `json:"invocation_id"`
	Kind         ActionKind     `json:"kind"`
	Name         string         `json:"name"`
	Args         map[string]any `json:"args,omitempty"`
}

// ActionResult is the payload of a KindActionResult event. A non-empty Error
// marks the invocation as failed.
type ActionResult struct {
	InvocationID string `json:"invocation_id"`
	Name         string `json:"name"`
	Payload      any    `json:"payload,omitempty"`
	Error        string `json:"error,omitempty"`
	Code         string `json:"code,omitempty"`
}

// Failed reports whether the result records a failure.
func (r ActionResult) Failed() bool { return r.Error != "" }

// RemoteRef correlates a local pending confirmation with the one raised by a
// remote peer, so the local decision can be forwarded to the right place.
type RemoteRef struct {
	Agent        string `json:"agent"`
	TaskID       string `json:"task_id"`
	InvocationID string `json:"invocation_id"`
}

// PendingConfirmation is the payload of a KindPendingConfirmation event.
type PendingConfirmation struct {
	InvocationID string         `json:"invocation_id"`
	Hint         string         `json:"hint"`
	Payload      map[string]any `json:"payload,omitempty"`
	Remote       *RemoteRef     `json:"remote,omitempty"`
}

// ConfirmationDecision is the payload of a KindConfirmationDecision event.
type ConfirmationDecision struct {
	InvocationID string `json:"invocation_id"`
	Approved     bool   `json:"approved"`
}

// Summary is the payload of a KindSummary event.
type Summary struct {
	Text       string `json:"text"`
	FromSeq    int64  `json:"from_seq"`
	ThroughSeq int64  `json:"through_seq"`
	FirstTurn  int    `json:"first_turn"`
	LastTurn   int    `json:"last_turn"`
	Events     int    `json:"events"`
}

// Event is an immutable record appended to a task's log. Exactly one variant
// payload matching Kind is set (Text for user messages and final answers).
//
// Seq is assigned by the EventLog on append and defines the total order of a
// task's events. Turn is the 1-based index of the Run call that produced it.
type Event struct {
	ID        string    `json:"id"`
	TaskID    string    `json:"task_id"`
	Seq       int64     `json:"seq"`
	Turn      int       `json:"turn"`
	Kind      EventKind `json:"kind"`
	Author    string    `json:"author"`
	Timestamp time.Time `json:"timestamp"`

	Text         string                `json:"text,omitempty"`
	Action       *ActionRequest        `json:"action,omitempty"`
	Result       *ActionResult         `json:"result,omitempty"`
	Confirmation *PendingConfirmation  `json:"confirmation,omitempty"`
	Decision     *ConfirmationDecision `json:"decision,omitempty"`
	Summary      *Summary              `json:"summary,omitempty"`
}

// NewEvent creates a bare event of the given kind authored by author.
// Prefer the typed constructors below.
func NewEvent(kind EventKind, author string) Event {
	return Event{
		ID:        NewID(),
		Kind:      kind,
		Author:    author,
		Timestamp: time.Now().UTC(),
	}
}

// NewUserMessageEvent creates a user-authored text event.
func NewUserMessageEvent(author, text string) Event {
	e := NewEvent(KindUserMessage, author)
	e.Text = text
	return e
}

// NewActionRequestEvent records the oracle requesting an action.
func NewActionRequestEvent(author string, req ActionRequest) Event {
	e := NewEvent(KindActionRequest, author)
	e.Action = &req
	return e
}

// NewActionResultEvent records the terminal outcome of an invocation. If err
// is non-nil its message (and code, when available) is recorded.
func NewActionResultEvent(author, invocationID, name string, payload any, err error) Event {
	e := NewEvent(KindActionResult, author)
	res := ActionResult{InvocationID: invocationID, Name: name, Payload: payload}
	if err != nil {
		res.Error = err.Error()
		res.Code = ErrorCode(err)
	}
	e.Result = &res
	return e
}

// NewPendingConfirmationEvent records that an invocation awaits a decision.
func NewPendingConfirmationEvent(author string, pc PendingConfirmation) Event {
	e := NewEvent(KindPendingConfirmation, author)
	e.Confirmation = &pc
	return e
}

// NewConfirmationDecisionEvent records a human decision.
func NewConfirmationDecisionEvent(author, invocationID string, approved bool) Event {
	e := NewEvent(KindConfirmationDecision, author)
	e.Decision = &ConfirmationDecision{InvocationID: invocationID, Approved: approved}
	return e
}

// NewFinalAnswerEvent records the final answer of a turn.
func NewFinalAnswerEvent(author, text string) Event {
	e := NewEvent(KindFinalAnswer, author)
	e.Text = text
	return e
}

// NewSummaryEvent creates the event that replaces a compacted prefix.
func NewSummaryEvent(author string, s Summary) Event {
	e := NewEvent(KindSummary, author)
	e.Text = s.Text
	e.Summary = &s
	return e
}

// NewID generates a new unique identifier for events, invocations and tasks.
func NewID() string { return uuid.NewString() }

// InvocationID returns the invocation id referenced by the event, or "" for
// kinds that do not reference an invocation.
func (e Event) InvocationID() string {
	switch {
	case e.Action != nil:
		return e.Action.InvocationID
	case e.Result != nil:
		return e.Result.InvocationID
	case e.Confirmation != nil:
		return e.Confirmation.InvocationID
	case e.Decision != nil:
		return e.Decision.InvocationID
	}
	return ""
}

// IsFinalAnswer reports whether the event closes a turn with an answer.
func (e Event) IsFinalAnswer() bool { return e.Kind == KindFinalAnswer }

// IsPendingConfirmation reports whether the event halts a turn for sign-off.
func (e Event) IsPendingConfirmation() bool { return e.Kind == KindPendingConfirmation }
