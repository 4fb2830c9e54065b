package tool

import (
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/hupe1980/predator/core"
	"github.com/hupe1980/predator/logging"
)

// Outcome is the result of a single tool invocation. Exactly one of Err and
// Confirmation is set when the call did not produce a plain value.
type Outcome struct {
	Value        any
	Err          error
	Confirmation *core.PendingConfirmation
}

// ConfirmationRequired reports whether the tool asked for human sign-off.
func (o Outcome) ConfirmationRequired() bool { return o.Confirmation != nil }

// RegistryOptions configures a Registry.
type RegistryOptions struct {
	Logger logging.Logger
}

// Registry maps tool names to implementations. It is safe for concurrent use
// and is typically shared by every task of a process.
type Registry struct {
	mu     sync.RWMutex
	tools  map[string]Tool
	logger logging.Logger
}

// NewRegistry creates a registry holding tools.
func NewRegistry(tools []Tool, optFns ...func(o *RegistryOptions)) (*Registry, error) {
	opts := RegistryOptions{Logger: logging.NoOpLogger{}}
	for _, fn := range optFns {
		fn(&opts)
	}

	r := &Registry{tools: map[string]Tool{}, logger: opts.Logger}
	for _, t := range tools {
		if err := r.Register(t); err != nil {
			return nil, err
		}
	}

	return r, nil
}

// Register adds a tool. Names must be unique.
func (r *Registry) Register(t Tool) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if t == nil || t.Name() == "" {
		return fmt.Errorf("tool must have a name")
	}
	if _, exists := r.tools[t.Name()]; exists {
		return fmt.Errorf("tool %q already registered", t.Name())
	}
	r.tools[t.Name()] = t

	return nil
}

// Get returns the named tool.
func (r *Registry) Get(name string) (Tool, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	t, ok := r.tools[name]

	return t, ok
}

// Specs describes every registered tool, sorted by name.
func (r *Registry) Specs() []core.ToolSpec {
	r.mu.RLock()
	defer r.mu.RUnlock()

	specs := make([]core.ToolSpec, 0, len(r.tools))
	for _, t := range r.tools {
		specs = append(specs, core.ToolSpec{
			Name:        t.Name(),
			Description: t.Description(),
			Parameters:  t.Parameters(),
			Guarded:     IsGuarded(t),
		})
	}
	sort.Slice(specs, func(i, j int) bool { return specs[i].Name < specs[j].Name })

	return specs
}

// Invoke executes the named tool in the invocation described by tc and
// enforces the confirmation gate contract for guarded tools:
//   - while Running, a guarded tool must request confirmation
//   - once decided, no tool may request confirmation again
//
// Panics raised by the tool are recovered and reported as a PANIC error.
func (r *Registry) Invoke(tc *core.ToolContext, name string, args map[string]any) Outcome {
	t, ok := r.Get(name)
	if !ok {
		return Outcome{Err: NewToolError(name, "tool not found", CodeNotFound)}
	}

	start := time.Now()
	value, err := r.call(t, tc, args)

	r.logger.Debug("tool.invoke.finished", "tool", name, "invocation_id", tc.InvocationID(), "status", tc.Status(), "duration_ms", time.Since(start).Milliseconds())

	if err != nil {
		return Outcome{Err: err}
	}

	requested := tc.RequestedConfirmation()
	switch {
	case requested != nil && tc.Status() != core.StatusRunning:
		return Outcome{Err: fmt.Errorf("%w: tool %s requested confirmation again after %s", core.ErrInvalidTransition, name, tc.Status())}
	case requested != nil:
		return Outcome{Confirmation: requested}
	case IsGuarded(t) && tc.Status() == core.StatusRunning:
		return Outcome{Err: fmt.Errorf("%w: guarded tool %s returned a result without confirmation", core.ErrInvalidTransition, name)}
	}

	return Outcome{Value: value}
}

func (r *Registry) call(t Tool, tc *core.ToolContext, args map[string]any) (result any, err error) {
	defer func() {
		if rec := recover(); rec != nil {
			r.logger.Error("tool.invoke.panic", "tool", t.Name(), "invocation_id", tc.InvocationID(), "recover", rec)
			err = &ToolError{Tool: t.Name(), Message: fmt.Sprintf("panic: %v", rec), Code: CodePanic}
		}
	}()

	if args == nil {
		args = map[string]any{}
	}

	return t.Call(tc, args)
}

// WithLogger sets the registry logger.
func WithLogger(l logging.Logger) func(o *RegistryOptions) {
	return func(o *RegistryOptions) {
		if l != nil {
			o.Logger = l
		}
	}
}
