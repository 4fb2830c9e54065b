package oracle

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hupe1980/predator/core"
	"github.com/hupe1980/predator/internal/testutil"
	"github.com/hupe1980/predator/model"
)

func leadState() core.State {
	events := testutil.NewLogBuilder().
		Turn(1).User("New Lead: Acme Corp.").
		Call("i1", "score_lead", map[string]any{"budget": 60000.0, "urgency": "ASAP"}).
		Result("i1", "score_lead", map[string]any{"score": 100.0, "priority": "CRITICAL"}).
		Events()

	return core.State{
		Task:   core.NewTask("t1", "s1", "u1"),
		Events: events,
		Tools: []core.ToolSpec{{
			Name:        "score_lead",
			Description: "Score a lead",
			Parameters:  map[string]any{"type": "object"},
		}},
		Agents: []core.AgentSpec{{Name: "market_oracle", Description: "Competitor pricing"}},
	}
}

func TestFunc(t *testing.T) {
	f := Func(func(_ context.Context, s core.State) (core.Action, error) {
		return core.FinalAnswer(s.LastUserText()), nil
	})
	a, err := f.Next(context.Background(), leadState())
	require.NoError(t, err)
	assert.Equal(t, "New Lead: Acme Corp.", a.Text)
}

func TestLastResultAndCalled(t *testing.T) {
	s := leadState()
	res, ok := LastResult(s, "score_lead")
	require.True(t, ok)
	assert.Equal(t, "CRITICAL", res.Payload.(map[string]any)["priority"])
	assert.True(t, Called(s, "score_lead"))
	assert.False(t, Called(s, "draft_outreach"))

	_, ok = LastResult(s, "draft_outreach")
	assert.False(t, ok)
}

func TestTranscript(t *testing.T) {
	events := testutil.NewLogBuilder().
		Summary("earlier stuff").
		Turn(2).User("hi").
		Result("gone", "score_lead", "orphan").
		CallAgent("r1", "market_oracle", "pricing?").
		Result("r1", "market_oracle", "$12,000").
		Call("i2", "draft_outreach", map[string]any{"to": "x"}).
		Ask("i2", "Send?").
		Decide("i2", false).
		Fail("i2", "draft_outreach", "rejected").
		Call("i3", "draft_outreach", nil).
		Ask("i3", "Send again?").
		Final("waiting").
		Events()

	msgs := Transcript(events)
	roles := make([]model.Role, len(msgs))
	for i, m := range msgs {
		roles[i] = m.Role
	}
	assert.Equal(t, []model.Role{
		model.RoleUser,      // summary
		model.RoleUser,      // hi
		model.RoleUser,      // orphan result
		model.RoleAssistant, // call r1
		model.RoleTool,      // r1 result
		model.RoleAssistant, // call i2
		model.RoleTool,      // i2 failure (pending skipped, answered)
		model.RoleAssistant, // call i3
		model.RoleTool,      // i3 still pending
		model.RoleAssistant, // final
	}, roles)

	assert.Contains(t, msgs[0].Text, "earlier stuff")
	assert.Contains(t, msgs[2].Text, "orphan")
	assert.Equal(t, `{"request":"pricing?"}`, msgs[3].ToolCalls[0].Arguments)
	assert.Equal(t, "$12,000", msgs[4].Text)
	assert.Equal(t, "i2", msgs[6].ToolCallID)
	assert.Contains(t, msgs[6].Text, "rejected")
	assert.Equal(t, "{}", msgs[7].ToolCalls[0].Arguments)
	assert.Contains(t, msgs[8].Text, "Send again?")
}

func TestModelOracle_FinalAnswer(t *testing.T) {
	m := model.NewMockModel("mock", "mock").AddResponse(model.Response{Text: "All done."})
	o := NewModelOracle(m, WithPersona("Predator, a sales agent"))

	a, err := o.Next(context.Background(), leadState())
	require.NoError(t, err)
	assert.Equal(t, core.FinalAnswer("All done."), a)

	reqs := m.Requests()
	require.Len(t, reqs, 1)
	assert.Contains(t, reqs[0].Instructions, "Predator, a sales agent")
	assert.Contains(t, reqs[0].Instructions, "task t1")
	require.Len(t, reqs[0].Tools, 2)
	assert.Equal(t, "score_lead", reqs[0].Tools[0].Name)
	assert.Equal(t, "market_oracle", reqs[0].Tools[1].Name)
	assert.Equal(t, []string{"request"}, reqs[0].Tools[1].Parameters["required"])
	assert.Len(t, reqs[0].Messages, 3)
}

func TestModelOracle_ToolAndAgentCalls(t *testing.T) {
	m := model.NewMockModel("mock", "mock").
		AddResponse(model.Response{ToolCalls: []model.ToolCall{{ID: "c1", Name: "score_lead", Arguments: `{"budget":5}`}}}).
		AddResponse(model.Response{ToolCalls: []model.ToolCall{
			{ID: "c2", Name: "market_oracle", Arguments: `{"request":"enterprise pricing"}`},
			{ID: "c3", Name: "score_lead", Arguments: `{}`},
		}}).
		AddResponse(model.Response{ToolCalls: []model.ToolCall{{ID: "c4", Name: "score_lead", Arguments: `not json`}}})
	o := NewModelOracle(m)
	s := leadState()

	a, err := o.Next(context.Background(), s)
	require.NoError(t, err)
	assert.Equal(t, core.CallTool("score_lead", map[string]any{"budget": 5.0}), a)

	a, err = o.Next(context.Background(), s)
	require.NoError(t, err)
	assert.Equal(t, core.CallAgent("market_oracle", "enterprise pricing"), a)

	_, err = o.Next(context.Background(), s)
	assert.Error(t, err)
}

type failingModel struct{}

func (failingModel) Generate(context.Context, model.Request) (model.Response, error) {
	return model.Response{}, errors.New("quota")
}

func (failingModel) Info() model.Info { return model.Info{Name: "failing"} }

func TestModelSummarizer(t *testing.T) {
	events := testutil.NewLogBuilder().User("hello").Final("hi").Events()

	m := model.NewMockModel("mock", "mock").AddResponse(model.Response{Text: "  The user greeted us.  "})
	got, err := NewModelSummarizer(m).Summarize(context.Background(), events)
	require.NoError(t, err)
	assert.Equal(t, "The user greeted us.", got)
	assert.Contains(t, m.Requests()[0].Messages[0].Text, "user: hello")

	_, err = NewModelSummarizer(failingModel{}).Summarize(context.Background(), events)
	assert.Error(t, err)
}
