package tool

import (
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/hupe1980/predator/core"
	"github.com/hupe1980/predator/logging"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func toolCtx(status core.InvocationStatus) *core.ToolContext {
	return core.NewToolContext(context.Background(), core.NewTask("t1", "s1", "u1"), "inv-1", status, logging.NoOpLogger{})
}

// -------------------- FunctionTool Tests --------------------

func TestFunctionTool_Success(t *testing.T) {
	params := map[string]any{
		"type": "object",
		"properties": map[string]any{
			"a": map[string]any{"type": "number"},
			"b": map[string]any{"type": "number"},
		},
		"required": []string{"a", "b"},
	}

	sumTool := NewFunctionTool("sum", "Add numbers", params, func(_ *core.ToolContext, args map[string]any) (any, error) {
		a := args["a"].(float64)
		b := args["b"].(float64)
		return a + b, nil
	})

	result, err := sumTool.Call(toolCtx(core.StatusRunning), map[string]any{"a": 2.0, "b": 3.0})
	assert.NoError(t, err)
	assert.Equal(t, 5.0, result)
	assert.False(t, IsGuarded(sumTool))
}

func TestFunctionTool_ValidationError(t *testing.T) {
	params := map[string]any{
		"type": "object",
		"properties": map[string]any{
			"a": map[string]any{"type": "number"},
		},
		"required": []any{"a"},
	}
	tTool := NewFunctionTool("test", "Test", params, func(_ *core.ToolContext, _ map[string]any) (any, error) {
		return 0, nil
	})
	_, err := tTool.Call(toolCtx(core.StatusRunning), map[string]any{})
	assert.Error(t, err)
	toolErr, ok := err.(*ToolError)
	assert.True(t, ok)
	assert.Equal(t, CodeValidation, toolErr.Code)
	assert.Equal(t, CodeValidation, core.ErrorCode(err))
}

func TestFunctionTool_ExecutionError(t *testing.T) {
	params := map[string]any{"type": "object", "properties": map[string]any{}}
	execTool := NewFunctionTool("fail", "Fails", params, func(_ *core.ToolContext, _ map[string]any) (any, error) {
		return nil, errors.New("boom")
	})
	_, err := execTool.Call(toolCtx(core.StatusRunning), map[string]any{})
	assert.Error(t, err)
	toolErr, ok := err.(*ToolError)
	assert.True(t, ok)
	assert.Equal(t, CodeExecution, toolErr.Code)
	assert.ErrorIs(t, err, core.ErrToolExecution)
}

// -------------------- Registry Tests --------------------

// newSendTool returns a guarded tool that counts side effects.
func newSendTool(sent *int, mu *sync.Mutex) *FunctionTool {
	return NewFunctionTool("send", "Send something", map[string]any{"type": "object"}, func(tc *core.ToolContext, _ map[string]any) (any, error) {
		approved, decided := tc.Confirmation()
		if !decided {
			tc.RequestConfirmation("send it?", map[string]any{"to": "x"})
			return map[string]any{"status": "PENDING"}, nil
		}
		if !approved {
			return map[string]any{"status": "REJECTED"}, nil
		}
		mu.Lock()
		*sent++
		mu.Unlock()
		return map[string]any{"status": "SENT"}, nil
	}, WithGuarded())
}

func TestRegistry_GuardedAskOnceActOnce(t *testing.T) {
	var (
		sent int
		mu   sync.Mutex
	)
	reg, err := NewRegistry([]Tool{newSendTool(&sent, &mu)})
	require.NoError(t, err)

	first := reg.Invoke(toolCtx(core.StatusRunning), "send", nil)
	require.True(t, first.ConfirmationRequired())
	assert.Equal(t, "inv-1", first.Confirmation.InvocationID)
	assert.Equal(t, "send it?", first.Confirmation.Hint)
	assert.Equal(t, 0, sent)

	approved := reg.Invoke(toolCtx(core.StatusApproved), "send", nil)
	require.NoError(t, approved.Err)
	assert.Equal(t, "SENT", approved.Value.(map[string]any)["status"])
	assert.Equal(t, 1, sent)

	rejected := reg.Invoke(toolCtx(core.StatusRejected), "send", nil)
	require.NoError(t, rejected.Err)
	assert.Equal(t, "REJECTED", rejected.Value.(map[string]any)["status"])
	assert.Equal(t, 1, sent)
}

func TestRegistry_GuardedCannotSkipGate(t *testing.T) {
	sneaky := NewFunctionTool("sneaky", "Skips the gate", nil, func(_ *core.ToolContext, _ map[string]any) (any, error) {
		return "done", nil
	}, WithGuarded())
	again := NewFunctionTool("again", "Asks twice", nil, func(tc *core.ToolContext, _ map[string]any) (any, error) {
		tc.RequestConfirmation("again?", nil)
		return nil, nil
	})
	reg, err := NewRegistry([]Tool{sneaky, again})
	require.NoError(t, err)

	out := reg.Invoke(toolCtx(core.StatusRunning), "sneaky", nil)
	assert.ErrorIs(t, out.Err, core.ErrInvalidTransition)

	out = reg.Invoke(toolCtx(core.StatusApproved), "again", nil)
	assert.ErrorIs(t, out.Err, core.ErrInvalidTransition)
}

func TestRegistry_NotFoundAndPanic(t *testing.T) {
	boom := NewFunctionTool("boom", "Panics", nil, func(_ *core.ToolContext, _ map[string]any) (any, error) {
		panic("kaboom")
	})
	reg, err := NewRegistry([]Tool{boom})
	require.NoError(t, err)

	out := reg.Invoke(toolCtx(core.StatusRunning), "missing", nil)
	assert.Equal(t, CodeNotFound, core.ErrorCode(out.Err))

	out = reg.Invoke(toolCtx(core.StatusRunning), "boom", nil)
	require.Error(t, out.Err)
	assert.Equal(t, CodePanic, core.ErrorCode(out.Err))
	assert.Contains(t, out.Err.Error(), "kaboom")
}

func TestRegistry_RegisterAndSpecs(t *testing.T) {
	var (
		sent int
		mu   sync.Mutex
	)
	a := NewFunctionTool("a_tool", "A", nil, func(_ *core.ToolContext, _ map[string]any) (any, error) { return nil, nil })
	reg, err := NewRegistry([]Tool{newSendTool(&sent, &mu), a})
	require.NoError(t, err)

	assert.Error(t, reg.Register(a))

	specs := reg.Specs()
	require.Len(t, specs, 2)
	assert.Equal(t, "a_tool", specs[0].Name)
	assert.True(t, specs[1].Guarded)
}

func TestRegistry_ConcurrentInvoke(t *testing.T) {
	echo := NewFunctionTool("echo", "Echo", nil, func(tc *core.ToolContext, args map[string]any) (any, error) {
		return args["v"], nil
	})
	reg, err := NewRegistry([]Tool{echo})
	require.NoError(t, err)

	var wg sync.WaitGroup
	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			out := reg.Invoke(toolCtx(core.StatusRunning), "echo", map[string]any{"v": i})
			assert.Equal(t, i, out.Value)
		}(i)
	}
	wg.Wait()
}

// -------------------- ToolError Formatting --------------------

func TestToolErrorFormatting(t *testing.T) {
	err := NewToolError("demo", "something failed", "E123")
	assert.Contains(t, err.Error(), "E123")
	assert.Contains(t, err.Error(), "demo")
	assert.Equal(t, "E123", err.ErrorCode())
}
