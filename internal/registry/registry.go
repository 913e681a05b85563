package registry

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"reflect"
	"sort"
)

// Module is the interface that all action modules must implement to be registered.
type Module interface {
	Register(r *Registry)
}

// Call carries the per-invocation environment of an action.
type Call struct {
	// Instance is the ID of the job instance running the step.
	Instance string
	// Env is the fully merged step environment, secrets included.
	Env map[string]string
	// Stdout receives anything the action prints. It feeds the step log.
	Stdout io.Writer
	// WorkingDir is the step's working directory, if set.
	WorkingDir string
}

// RegisteredAction holds the compiled Go parts of an action.
//
// Fn must have the signature
//
//	func(ctx context.Context, call *Call, input *Input) (map[string]string, error)
//
// where *Input is the type produced by NewInput.
type RegisteredAction struct {
	NewInput  func() any
	InputType reflect.Type
	Fn        any
}

// Registry holds all the registered actions for a single application instance.
type Registry struct {
	actions map[string]*RegisteredAction
}

// New creates and initializes a new Registry instance.
func New() *Registry {
	return &Registry{actions: make(map[string]*RegisteredAction)}
}

// RegisterAction registers a Go action under the name used by `uses`.
func (r *Registry) RegisterAction(name string, action *RegisteredAction) {
	if _, exists := r.actions[name]; exists {
		panic(fmt.Sprintf("action with name '%s' already registered", name))
	}
	slog.Debug("Registering action.", "name", name)
	r.actions[name] = action
}

// Lookup returns a registered action.
func (r *Registry) Lookup(name string) (*RegisteredAction, bool) {
	a, ok := r.actions[name]
	return a, ok
}

// Names returns the registered action names, sorted.
func (r *Registry) Names() []string {
	names := make([]string, 0, len(r.actions))
	for name := range r.actions {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Invoke decodes with into the action's input struct and calls it.
func (r *Registry) Invoke(ctx context.Context, name string, call *Call, with map[string]string) (map[string]string, error) {
	action, ok := r.actions[name]
	if !ok {
		return nil, fmt.Errorf("unknown action '%s'", name)
	}

	input := action.NewInput()
	if err := decodeInput(input, with); err != nil {
		return nil, fmt.Errorf("action '%s': %w", name, err)
	}

	results := reflect.ValueOf(action.Fn).Call([]reflect.Value{
		reflect.ValueOf(ctx), reflect.ValueOf(call), reflect.ValueOf(input),
	})
	if errResult := results[1].Interface(); errResult != nil {
		return nil, errResult.(error)
	}
	outputs, _ := results[0].Interface().(map[string]string)
	return outputs, nil
}
