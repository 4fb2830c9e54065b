package oracle

import (
	"fmt"

	"github.com/hupe1980/predator/core"
	"github.com/hupe1980/predator/internal/util"
	"github.com/hupe1980/predator/model"
)

// Transcript renders a task log as chat messages. Every action request
// becomes an assistant tool call answered by exactly one tool message, so
// the output is valid input for providers that insist on paired calls.
// Results whose request was compacted away are rendered as plain user text.
func Transcript(events []core.Event) []model.Message {
	requested := map[string]bool{}
	answered := map[string]bool{}
	for _, ev := range events {
		if ev.Kind == core.KindActionResult {
			answered[ev.Result.InvocationID] = true
		}
	}

	var msgs []model.Message
	for _, ev := range events {
		switch ev.Kind {
		case core.KindSummary:
			msgs = append(msgs, model.Message{Role: model.RoleUser, Text: "Summary of the earlier conversation:\n" + ev.Text})
		case core.KindUserMessage:
			msgs = append(msgs, model.Message{Role: model.RoleUser, Text: ev.Text})
		case core.KindActionRequest:
			requested[ev.Action.InvocationID] = true
			msgs = append(msgs, model.Message{Role: model.RoleAssistant, ToolCalls: []model.ToolCall{{
				ID:        ev.Action.InvocationID,
				Name:      ev.Action.Name,
				Arguments: arguments(ev.Action),
			}}})
		case core.KindActionResult:
			text := resultText(*ev.Result)
			if !requested[ev.Result.InvocationID] {
				msgs = append(msgs, model.Message{Role: model.RoleUser, Text: fmt.Sprintf("Earlier call to %s returned: %s", ev.Result.Name, text)})
				continue
			}
			msgs = append(msgs, model.Message{Role: model.RoleTool, ToolCallID: ev.Result.InvocationID, Text: text})
		case core.KindPendingConfirmation:
			if answered[ev.Confirmation.InvocationID] || !requested[ev.Confirmation.InvocationID] {
				continue
			}
			msgs = append(msgs, model.Message{
				Role:       model.RoleTool,
				ToolCallID: ev.Confirmation.InvocationID,
				Text:       "Waiting for human confirmation: " + ev.Confirmation.Hint,
			})
		case core.KindFinalAnswer:
			msgs = append(msgs, model.Message{Role: model.RoleAssistant, Text: ev.Text})
		}
	}

	return msgs
}

func arguments(req *core.ActionRequest) string {
	if req.Kind == core.ActionRemoteAgent {
		return util.Stringify(map[string]any{"request": req.Args["request"]})
	}
	if req.Args == nil {
		return "{}"
	}
	return util.Stringify(req.Args)
}

func resultText(res core.ActionResult) string {
	if res.Failed() {
		return fmt.Sprintf("error (%s): %s", res.Code, res.Error)
	}
	if res.Payload == nil {
		return "ok"
	}
	return util.Stringify(res.Payload)
}
