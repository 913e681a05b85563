package print

import (
	"context"
	"fmt"
	"reflect"
	"sort"

	"github.com/specialistvlad/pipegrid/internal/ctxlog"
	"github.com/specialistvlad/pipegrid/internal/registry"
)

// Module implements the registry.Module interface for this package.
type Module struct{}

// Input defines the arguments for the print action. Every input other than
// message is printed as a key/value pair.
type Input struct {
	Message string            `pipegrid:"message,optional"`
	Values  map[string]string `pipegrid:"*"`
}

// Print is the handler for `uses = "print"`.
func Print(ctx context.Context, call *registry.Call, input *Input) (map[string]string, error) {
	ctxlog.FromContext(ctx).Info("Printing input", "instance", call.Instance)

	if input.Message != "" {
		fmt.Fprintln(call.Stdout, input.Message)
	}
	if len(input.Values) == 0 && input.Message == "" {
		fmt.Fprintln(call.Stdout, "      (null)")
		return nil, nil
	}

	// Sort keys for consistent output
	keys := make([]string, 0, len(input.Values))
	for k := range input.Values {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	for _, k := range keys {
		fmt.Fprintf(call.Stdout, "      %s = %q\n", k, input.Values[k])
	}
	return nil, nil
}

// Register registers the handler with the engine.
func (m *Module) Register(r *registry.Registry) {
	r.RegisterAction("print", &registry.RegisteredAction{
		NewInput:  func() any { return new(Input) },
		InputType: reflect.TypeOf(Input{}),
		Fn:        Print,
	})
}
