package core

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestClosed(t *testing.T) {
	req := NewActionRequestEvent("oracle", ActionRequest{InvocationID: "i1", Kind: ActionTool, Name: "draft"})
	pc := NewPendingConfirmationEvent("draft", PendingConfirmation{InvocationID: "i1"})

	closed, err := Closed(nil)
	require.NoError(t, err)
	assert.False(t, closed)

	closed, err = Closed([]Event{NewUserMessageEvent("u", "hi"), NewFinalAnswerEvent("oracle", "bye")})
	require.NoError(t, err)
	assert.True(t, closed)

	closed, err = Closed([]Event{req, pc})
	require.NoError(t, err)
	assert.False(t, closed)

	closed, err = Closed([]Event{req, pc, NewFinalAnswerEvent("oracle", "waiting")})
	require.NoError(t, err)
	assert.False(t, closed, "outstanding confirmation keeps the task open")
}

func TestStateHelpers(t *testing.T) {
	u1 := NewUserMessageEvent("u", "first")
	u1.Turn = 1
	fa := NewFinalAnswerEvent("oracle", "ok")
	fa.Turn = 1
	u2 := NewUserMessageEvent("u", "second")
	u2.Turn = 2

	s := State{Events: []Event{u1, fa, u2}}
	assert.Equal(t, "second", s.LastUserText())
	assert.Len(t, s.CurrentTurn(), 1)

	sum := NewSummaryEvent("c", Summary{Text: "recap of lead", LastTurn: 3})
	s = State{Events: []Event{sum}}
	assert.Equal(t, "recap of lead", s.LastUserText())
}

func TestToolContext_Confirmation(t *testing.T) {
	task := NewTask("t1", "s1", "u1")

	tc := NewToolContext(context.Background(), task, "inv", StatusRunning, nil)
	_, decided := tc.Confirmation()
	assert.False(t, decided)
	assert.Nil(t, tc.RequestedConfirmation())

	tc.RequestConfirmation("approve?", map[string]any{"to": "x"})
	require.NotNil(t, tc.RequestedConfirmation())
	assert.Equal(t, "inv", tc.RequestedConfirmation().InvocationID)

	approved, decided := NewToolContext(context.Background(), task, "inv", StatusApproved, nil).Confirmation()
	assert.True(t, approved)
	assert.True(t, decided)

	approved, decided = NewToolContext(context.Background(), task, "inv", StatusRejected, nil).Confirmation()
	assert.False(t, approved)
	assert.True(t, decided)
}

func TestStepLimiter(t *testing.T) {
	l := NewStepLimiter(2)
	require.NoError(t, l.Increment())
	require.NoError(t, l.Increment())
	assert.ErrorIs(t, l.Increment(), ErrStepLimit)
	assert.Equal(t, 3, l.Count())

	unlimited := NewStepLimiter(0)
	for i := 0; i < 100; i++ {
		require.NoError(t, unlimited.Increment())
	}
}
