package util

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type leadArgs struct {
	Budget  float64 `json:"budget" description:"The budget in USD"`
	Urgency string  `json:"urgency" description:"How urgent the need is"`
	Note    *string `json:"note"`
}

func TestCreateSchemaAndValidate(t *testing.T) {
	schema := CreateSchema(leadArgs{})
	assert.ElementsMatch(t, []string{"budget", "urgency"}, schema["required"])

	require.NoError(t, ValidateParameters(map[string]any{"budget": 60000.0, "urgency": "ASAP"}, schema))

	err := ValidateParameters(map[string]any{"budget": 1.0}, schema)
	var vErr *ValidationError
	require.ErrorAs(t, err, &vErr)
	assert.Equal(t, "urgency", vErr.Field)

	err = ValidateParameters(map[string]any{"budget": "lots", "urgency": "low"}, schema)
	require.ErrorAs(t, err, &vErr)
	assert.Equal(t, "budget", vErr.Field)
}

func TestValidateParameters_RequiredAnyAndEnum(t *testing.T) {
	schema := map[string]any{
		"type": "object",
		"properties": map[string]any{
			"strategy": map[string]any{"type": "string", "enum": []any{"direct", "soft"}},
		},
		"required": []any{"strategy"},
	}
	assert.NoError(t, ValidateParameters(map[string]any{"strategy": "direct"}, schema))
	assert.Error(t, ValidateParameters(map[string]any{}, schema))
	assert.Error(t, ValidateParameters(map[string]any{"strategy": "pushy"}, schema))
}

func TestNormalizePayload(t *testing.T) {
	type result struct {
		Score    int    `json:"score"`
		Priority string `json:"priority"`
	}
	got, err := NormalizePayload(result{Score: 100, Priority: "CRITICAL"})
	require.NoError(t, err)
	assert.Equal(t, map[string]any{"score": 100.0, "priority": "CRITICAL"}, got)

	got, err = NormalizePayload(nil)
	require.NoError(t, err)
	assert.Nil(t, got)

	_, err = NormalizePayload(make(chan int))
	assert.Error(t, err)
}

func TestParseArgsAndStringify(t *testing.T) {
	args, err := ParseArgs(`{"request":"CRM"}`)
	require.NoError(t, err)
	assert.Equal(t, "CRM", args["request"])

	args, err = ParseArgs("")
	require.NoError(t, err)
	assert.Empty(t, args)

	_, err = ParseArgs("{")
	assert.Error(t, err)

	assert.Equal(t, "plain", Stringify("plain"))
	assert.Equal(t, `{"a":1}`, Stringify(map[string]int{"a": 1}))
}

func TestRenderTemplate(t *testing.T) {
	out, err := RenderTemplate("Task {{.task_id}} for {{default \"anon\" .user_id}}", map[string]any{"task_id": "t1"})
	require.NoError(t, err)
	assert.Equal(t, "Task t1 for anon", out)

	out, err = RenderTemplate("no markers & <tags>", nil)
	require.NoError(t, err)
	assert.Equal(t, "no markers & <tags>", out)
}
