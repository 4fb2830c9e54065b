package core

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestInvocation() *Invocation {
	return NewInvocation(ActionRequest{InvocationID: "inv", Kind: ActionTool, Name: "draft_outreach", Args: map[string]any{"recipient": "a@b"}})
}

func TestInvocation_GateHappyPath(t *testing.T) {
	inv := newTestInvocation()
	assert.Equal(t, StatusRunning, inv.Status)

	require.NoError(t, inv.Await(PendingConfirmation{InvocationID: "inv", Hint: "ok?"}))
	assert.Equal(t, StatusAwaitingConfirmation, inv.Status)
	assert.True(t, inv.Asked())
	assert.Equal(t, "ok?", inv.Hint)

	require.NoError(t, inv.Decide(true))
	assert.True(t, inv.Approved())
	assert.True(t, inv.Status.Decided())

	require.NoError(t, inv.Complete(ActionResult{InvocationID: "inv", Payload: "SENT"}))
	assert.Equal(t, StatusCompleted, inv.Status)
	assert.True(t, inv.Status.Terminal())
}

func TestInvocation_InvalidTransitions(t *testing.T) {
	t.Run("decide while running", func(t *testing.T) {
		inv := newTestInvocation()
		assert.ErrorIs(t, inv.Decide(true), ErrInvalidTransition)
	})

	t.Run("complete while awaiting", func(t *testing.T) {
		inv := newTestInvocation()
		require.NoError(t, inv.Await(PendingConfirmation{}))
		assert.ErrorIs(t, inv.Complete(ActionResult{}), ErrInvalidTransition)
	})

	t.Run("await twice", func(t *testing.T) {
		inv := newTestInvocation()
		require.NoError(t, inv.Await(PendingConfirmation{}))
		require.NoError(t, inv.Decide(false))
		assert.ErrorIs(t, inv.Await(PendingConfirmation{}), ErrInvalidTransition)
	})

	t.Run("decide twice", func(t *testing.T) {
		inv := newTestInvocation()
		require.NoError(t, inv.Await(PendingConfirmation{}))
		require.NoError(t, inv.Decide(true))
		assert.ErrorIs(t, inv.Decide(false), ErrInvalidTransition)
	})

	t.Run("complete after terminal", func(t *testing.T) {
		inv := newTestInvocation()
		require.NoError(t, inv.Complete(ActionResult{}))
		assert.ErrorIs(t, inv.Complete(ActionResult{}), ErrInvalidTransition)
	})
}

func TestInvocation_FailedResult(t *testing.T) {
	inv := newTestInvocation()
	require.NoError(t, inv.Complete(ActionResult{Error: "boom"}))
	assert.Equal(t, StatusFailed, inv.Status)
}

func TestInvocation_Request(t *testing.T) {
	inv := newTestInvocation()
	req := inv.Request()
	assert.Equal(t, "draft_outreach", req.Name)
	assert.Equal(t, "a@b", req.Args["recipient"])
}

func TestReplay(t *testing.T) {
	events := []Event{
		NewUserMessageEvent("u", "go"),
		NewActionRequestEvent("o", ActionRequest{InvocationID: "a", Kind: ActionTool, Name: "score_lead"}),
		NewActionResultEvent("score_lead", "a", "score_lead", 80, nil),
		NewActionRequestEvent("o", ActionRequest{InvocationID: "b", Kind: ActionTool, Name: "draft_outreach"}),
		NewPendingConfirmationEvent("draft_outreach", PendingConfirmation{InvocationID: "b", Hint: "ok?"}),
	}

	l, err := Replay(events)
	require.NoError(t, err)
	assert.Equal(t, 2, l.Len())

	a, ok := l.Get("a")
	require.True(t, ok)
	assert.Equal(t, StatusCompleted, a.Status)

	out := l.Outstanding()
	require.Len(t, out, 1)
	assert.Equal(t, "b", out[0].ID)
	assert.Empty(t, l.Dangling())

	l, err = Replay(append(events, NewConfirmationDecisionEvent("u", "b", false)))
	require.NoError(t, err)
	assert.Empty(t, l.Outstanding())
	require.Len(t, l.Dangling(), 1)
	assert.Equal(t, StatusRejected, l.Dangling()[0].Status)
}

func TestReplay_SkipsCompactedReferences(t *testing.T) {
	events := []Event{
		NewSummaryEvent("c", Summary{Text: "recap"}),
		NewConfirmationDecisionEvent("u", "gone", true),
		NewActionResultEvent("draft", "gone", "draft", "SENT", nil),
	}
	l, err := Replay(events)
	require.NoError(t, err)
	assert.Equal(t, 0, l.Len())
}

func TestReplay_CorruptLog(t *testing.T) {
	events := []Event{
		NewActionRequestEvent("o", ActionRequest{InvocationID: "a", Kind: ActionTool, Name: "x"}),
		NewConfirmationDecisionEvent("u", "a", true),
	}
	_, err := Replay(events)
	assert.ErrorIs(t, err, ErrInvalidTransition)

	dup := []Event{
		NewActionRequestEvent("o", ActionRequest{InvocationID: "a"}),
		NewActionRequestEvent("o", ActionRequest{InvocationID: "a"}),
	}
	_, err = Replay(dup)
	assert.Error(t, err)
}

func TestLastTurn(t *testing.T) {
	assert.Equal(t, 0, LastTurn(nil))
	e := NewUserMessageEvent("u", "x")
	e.Turn = 2
	s := NewSummaryEvent("c", Summary{LastTurn: 5})
	s.Turn = 1
	assert.Equal(t, 5, LastTurn([]Event{s, e}))
}
