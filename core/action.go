package core

import "context"

// Action is the Decision Oracle's choice for the next step of a turn.
type Action struct {
	Kind ActionKind     `json:"kind"`
	Name string         `json:"name,omitempty"`
	Args map[string]any `json:"args,omitempty"`
	// Text carries the final answer when Kind is ActionFinal.
	Text string `json:"text,omitempty"`
}

// CallTool returns an action dispatching to the named local tool.
func CallTool(name string, args map[string]any) Action {
	return Action{Kind: ActionTool, Name: name, Args: args}
}

// CallAgent returns an action delegating request to the named remote agent.
func CallAgent(name, request string) Action {
	return Action{Kind: ActionRemoteAgent, Name: name, Args: map[string]any{"request": request}}
}

// FinalAnswer returns an action that closes the turn with text.
func FinalAnswer(text string) Action {
	return Action{Kind: ActionFinal, Text: text}
}

// ToolSpec describes a local tool to the oracle.
type ToolSpec struct {
	Name        string         `json:"name"`
	Description string         `json:"description"`
	Parameters  map[string]any `json:"parameters,omitempty"`
	Guarded     bool           `json:"guarded,omitempty"`
}

// AgentSpec describes a remote peer agent to the oracle.
type AgentSpec struct {
	Name        string `json:"name"`
	Description string `json:"description"`
}

// State is the view of a task passed to the Decision Oracle. Events is the
// current, possibly compacted, log.
type State struct {
	Task   Task
	Events []Event
	Tools  []ToolSpec
	Agents []AgentSpec
}

// LastUserText returns the text of the most recent user message, falling back
// to the leading summary when the message itself was compacted away.
func (s State) LastUserText() string {
	for i := len(s.Events) - 1; i >= 0; i-- {
		if s.Events[i].Kind == KindUserMessage {
			return s.Events[i].Text
		}
	}
	for _, ev := range s.Events {
		if ev.Kind == KindSummary {
			return ev.Text
		}
	}
	return ""
}

// CurrentTurn returns the events of the newest turn.
func (s State) CurrentTurn() []Event {
	turn := LastTurn(s.Events)
	var out []Event
	for _, ev := range s.Events {
		if ev.Turn == turn && ev.Kind != KindSummary {
			out = append(out, ev)
		}
	}
	return out
}

// Oracle selects the next action given the current task state. Implementations
// must not keep per-task state between calls: everything they need is in the
// log.
type Oracle interface {
	Next(ctx context.Context, state State) (Action, error)
}

// Message is the input of a single run: either fresh user text or a decision
// resuming a paused invocation.
type Message struct {
	Author   string
	Text     string
	Decision *ConfirmationDecision
}

// NewTextMessage creates a user message.
func NewTextMessage(author, text string) Message {
	return Message{Author: author, Text: text}
}

// NewDecisionMessage creates a message carrying a confirmation decision for
// the given invocation.
func NewDecisionMessage(author, invocationID string, approved bool) Message {
	return Message{Author: author, Decision: &ConfirmationDecision{InvocationID: invocationID, Approved: approved}}
}

// IsDecision reports whether the message resumes a paused invocation.
func (m Message) IsDecision() bool { return m.Decision != nil }
