package oracle

import (
	"context"
	"fmt"

	"github.com/hupe1980/predator/core"
	"github.com/hupe1980/predator/internal/util"
	"github.com/hupe1980/predator/logging"
	"github.com/hupe1980/predator/model"
)

// DefaultInstructions is the system prompt of a ModelOracle. It is rendered
// with text/template; .task_id, .session_id and .agents are available.
const DefaultInstructions = `You are {{default "an autonomous assistant" .persona}} working on task {{.task_id}}.
Use the available functions to make progress. Call at most one function per reply.
Functions marked as remote agents delegate a sub-task: pass your request as plain text.
When the task is complete, reply with the final answer as plain text and no function call.`

// ModelOracleOptions configures a ModelOracle.
type ModelOracleOptions struct {
	// Instructions is the system prompt template.
	Instructions string
	// Persona fills {{.persona}} in the instructions.
	Persona string
	Logger  logging.Logger
}

// ModelOracle asks a language model for the next action. Local tools and
// remote agents are both exposed as functions; a reply without a function
// call is the final answer.
type ModelOracle struct {
	model model.Model
	opts  ModelOracleOptions
}

var _ core.Oracle = (*ModelOracle)(nil)

// NewModelOracle creates a ModelOracle over m.
func NewModelOracle(m model.Model, optFns ...func(o *ModelOracleOptions)) *ModelOracle {
	opts := ModelOracleOptions{
		Instructions: DefaultInstructions,
		Logger:       logging.NoOpLogger{},
	}

	for _, fn := range optFns {
		fn(&opts)
	}

	return &ModelOracle{model: m, opts: opts}
}

// Next implements core.Oracle.
func (o *ModelOracle) Next(ctx context.Context, state core.State) (core.Action, error) {
	instructions, err := util.RenderTemplate(o.opts.Instructions, map[string]any{
		"task_id":    state.Task.ID,
		"session_id": state.Task.SessionID,
		"persona":    o.opts.Persona,
		"agents":     len(state.Agents),
	})
	if err != nil {
		return core.Action{}, fmt.Errorf("render instructions: %w", err)
	}

	agents := make(map[string]bool, len(state.Agents))
	tools := make([]model.ToolDefinition, 0, len(state.Tools)+len(state.Agents))
	for _, t := range state.Tools {
		tools = append(tools, model.ToolDefinition{Name: t.Name, Description: t.Description, Parameters: t.Parameters})
	}
	for _, a := range state.Agents {
		agents[a.Name] = true
		tools = append(tools, model.ToolDefinition{
			Name:        a.Name,
			Description: "Remote agent. " + a.Description,
			Parameters: map[string]any{
				"type": "object",
				"properties": map[string]any{
					"request": map[string]any{"type": "string", "description": "What the remote agent should do."},
				},
				"required": []string{"request"},
			},
		})
	}

	resp, err := o.model.Generate(ctx, model.Request{
		Instructions: instructions,
		Messages:     Transcript(state.Events),
		Tools:        tools,
	})
	if err != nil {
		return core.Action{}, err
	}

	if len(resp.ToolCalls) == 0 {
		return core.FinalAnswer(resp.Text), nil
	}
	if len(resp.ToolCalls) > 1 {
		o.opts.Logger.Warn("oracle.model.extra_calls_dropped", "task_id", state.Task.ID, "calls", len(resp.ToolCalls))
	}

	call := resp.ToolCalls[0]
	args, err := util.ParseArgs(call.Arguments)
	if err != nil {
		return core.Action{}, fmt.Errorf("function %s: %w", call.Name, err)
	}
	o.opts.Logger.Debug("oracle.model.call", "task_id", state.Task.ID, "name", call.Name, "model", o.model.Info().Name)

	if agents[call.Name] && !hasTool(state.Tools, call.Name) {
		request, _ := args["request"].(string)
		return core.CallAgent(call.Name, request), nil
	}

	return core.CallTool(call.Name, args), nil
}

func hasTool(specs []core.ToolSpec, name string) bool {
	for _, s := range specs {
		if s.Name == name {
			return true
		}
	}
	return false
}

// WithInstructions replaces the system prompt template.
func WithInstructions(text string) func(o *ModelOracleOptions) {
	return func(o *ModelOracleOptions) { o.Instructions = text }
}

// WithPersona sets the persona rendered into the instructions.
func WithPersona(persona string) func(o *ModelOracleOptions) {
	return func(o *ModelOracleOptions) { o.Persona = persona }
}

// WithLogger sets the oracle logger.
func WithLogger(l logging.Logger) func(o *ModelOracleOptions) {
	return func(o *ModelOracleOptions) {
		if l != nil {
			o.Logger = l
		}
	}
}
