// Package env provides the `env` action, which publishes selected values of
// the step environment as outputs.
package env

import (
	"context"
	"fmt"
	"reflect"
	"strings"

	"github.com/specialistvlad/pipegrid/internal/registry"
)

// Module implements the registry.Module interface for this package.
type Module struct{}

// Input defines the arguments for the env action.
type Input struct {
	// Names is a comma separated list of variable names.
	Names string `pipegrid:"names"`
	// Lower publishes outputs under lower-cased keys.
	Lower bool `pipegrid:"lower,optional"`
}

// Env is the handler for `uses = "env"`.
func Env(_ context.Context, call *registry.Call, input *Input) (map[string]string, error) {
	out := make(map[string]string)
	for _, name := range strings.Split(input.Names, ",") {
		name = strings.TrimSpace(name)
		if name == "" {
			continue
		}
		v, ok := call.Env[name]
		if !ok {
			return nil, fmt.Errorf("environment variable %s is not set", name)
		}
		key := name
		if input.Lower {
			key = strings.ToLower(name)
		}
		out[key] = v
	}
	return out, nil
}

// Register registers the handler with the engine.
func (m *Module) Register(r *registry.Registry) {
	r.RegisterAction("env", &registry.RegisteredAction{
		NewInput:  func() any { return new(Input) },
		InputType: reflect.TypeOf(Input{}),
		Fn:        Env,
	})
}
