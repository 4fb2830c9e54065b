package anthropic

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/anthropics/anthropic-sdk-go"
	"github.com/anthropics/anthropic-sdk-go/option"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hupe1980/predator/model"
)

func TestBuildMessagesMergesToolResults(t *testing.T) {
	msgs := buildMessages([]model.Message{
		{Role: model.RoleSystem, Text: "ignored here"},
		{Role: model.RoleUser, Text: "go"},
		{Role: model.RoleAssistant, ToolCalls: []model.ToolCall{{ID: "a", Name: "score_lead", Arguments: `{"budget":1}`}}},
		{Role: model.RoleTool, ToolCallID: "a", Text: "80"},
		{Role: model.RoleAssistant, ToolCalls: []model.ToolCall{{ID: "b", Name: "score_lead"}}},
		{Role: model.RoleTool, ToolCallID: "b", Text: "90"},
		{Role: model.RoleUser, Text: "thanks"},
	})

	require.Len(t, msgs, 5)
	assert.Equal(t, anthropic.MessageParamRoleUser, msgs[0].Role)
	assert.Equal(t, anthropic.MessageParamRoleAssistant, msgs[1].Role)
	assert.Equal(t, anthropic.MessageParamRoleUser, msgs[2].Role)
	assert.Equal(t, anthropic.MessageParamRoleAssistant, msgs[3].Role)
	assert.Equal(t, anthropic.MessageParamRoleUser, msgs[4].Role)
	assert.Len(t, msgs[4].Content, 2)
}

func TestBuildTools(t *testing.T) {
	tools := buildTools([]model.ToolDefinition{{
		Name:        "score_lead",
		Description: "Score a lead",
		Parameters: map[string]any{
			"type":       "object",
			"properties": map[string]any{"budget": map[string]any{"type": "number"}},
			"required":   []any{"budget"},
		},
	}})

	require.Len(t, tools, 1)
	require.NotNil(t, tools[0].OfTool)
	assert.Equal(t, "score_lead", tools[0].OfTool.Name)
	assert.Equal(t, []string{"budget"}, tools[0].OfTool.InputSchema.Required)
}

func TestSystemBlocks(t *testing.T) {
	blocks := systemBlocks(model.Request{
		Instructions: "be brief",
		Messages:     []model.Message{{Role: model.RoleSystem, Text: "extra"}},
	})
	require.Len(t, blocks, 2)
	assert.Equal(t, "be brief", blocks[0].Text)
}

func TestGenerate(t *testing.T) {
	var body map[string]any
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/v1/messages", r.URL.Path)
		require.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{
			"id": "msg_1",
			"type": "message",
			"role": "assistant",
			"model": "claude-3-5-sonnet-20241022",
			"content": [
				{"type": "text", "text": "Scoring the lead."},
				{"type": "tool_use", "id": "tu_1", "name": "score_lead", "input": {"budget": 60000}}
			],
			"stop_reason": "tool_use",
			"stop_sequence": null,
			"usage": {"input_tokens": 10, "output_tokens": 5}
		}`))
	}))
	defer ts.Close()

	client := anthropic.NewClient(option.WithBaseURL(ts.URL), option.WithAPIKey("test"), option.WithMaxRetries(0))
	m := NewModelFromClient(&client)

	resp, err := m.Generate(context.Background(), model.Request{
		Instructions: "You are Predator.",
		Messages:     []model.Message{{Role: model.RoleUser, Text: "New Lead: Acme Corp."}},
		Tools:        []model.ToolDefinition{{Name: "score_lead", Description: "Score a lead"}},
	})
	require.NoError(t, err)
	assert.Equal(t, "tool_use", resp.FinishReason)
	assert.Equal(t, "Scoring the lead.", resp.Text)
	require.Len(t, resp.ToolCalls, 1)
	assert.Equal(t, "tu_1", resp.ToolCalls[0].ID)
	assert.JSONEq(t, `{"budget":60000}`, resp.ToolCalls[0].Arguments)
	assert.Equal(t, 15, resp.Usage.TotalTokens)

	assert.NotNil(t, body["system"])
	assert.Len(t, body["tools"], 1)
}
