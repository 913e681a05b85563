// Package output provides the `output` action, which publishes its inputs
// as step outputs. Values are expanded against the step environment first,
// so `version = "${GIT_TAG}"` publishes the tag.
package output

import (
	"context"
	"os"
	"reflect"

	"github.com/specialistvlad/pipegrid/internal/registry"
)

// Module implements the registry.Module interface for this package.
type Module struct{}

// Input collects every key to publish.
type Input struct {
	Values map[string]string `pipegrid:"*"`
}

// Output is the handler for `uses = "output"`.
func Output(_ context.Context, call *registry.Call, input *Input) (map[string]string, error) {
	out := make(map[string]string, len(input.Values))
	for k, v := range input.Values {
		out[k] = os.Expand(v, func(name string) string { return call.Env[name] })
	}
	return out, nil
}

// Register registers the handler with the engine.
func (m *Module) Register(r *registry.Registry) {
	r.RegisterAction("output", &registry.RegisteredAction{
		NewInput:  func() any { return new(Input) },
		InputType: reflect.TypeOf(Input{}),
		Fn:        Output,
	})
}
