package registry

import (
	"context"
	"fmt"
	"reflect"
	"strings"

	"github.com/specialistvlad/pipegrid/internal/config"
	"github.com/specialistvlad/pipegrid/internal/ctxlog"
	"github.com/zclconf/go-cty/cty/gocty"
)

var (
	contextType = reflect.TypeOf((*context.Context)(nil)).Elem()
	callType    = reflect.TypeOf((*Call)(nil))
	outputsType = reflect.TypeOf(map[string]string(nil))
	errorType   = reflect.TypeOf((*error)(nil)).Elem()
)

// ValidateRegistry performs a strict check of every registered action: the
// handler signature must match the contract and every input field must map
// onto a cty type.
func (r *Registry) ValidateRegistry(ctx context.Context) error {
	var errs []string

	for _, name := range r.Names() {
		action := r.actions[name]
		fn := reflect.TypeOf(action.Fn)
		if fn == nil || fn.Kind() != reflect.Func {
			errs = append(errs, fmt.Sprintf("action '%s': handler is not a function", name))
			continue
		}
		if fn.NumIn() != 3 || fn.In(0) != contextType || fn.In(1) != callType {
			errs = append(errs, fmt.Sprintf("action '%s': handler must take (context.Context, *registry.Call, *Input)", name))
			continue
		}
		if fn.NumOut() != 2 || fn.Out(0) != outputsType || fn.Out(1) != errorType {
			errs = append(errs, fmt.Sprintf("action '%s': handler must return (map[string]string, error)", name))
			continue
		}

		inputType := action.InputType
		if inputType == nil || fn.In(2) != reflect.PointerTo(inputType) {
			errs = append(errs, fmt.Sprintf("action '%s': InputType does not match the handler's input parameter", name))
			continue
		}

		fields, remain := inputFields(inputType)
		for _, f := range fields {
			goField := inputType.Field(f.index)
			if _, err := gocty.ImpliedType(reflect.Zero(goField.Type).Interface()); err != nil {
				errs = append(errs, fmt.Sprintf("action '%s', input '%s': unsupported Go type %s: %v", name, f.name, goField.Type, err))
			}
		}
		if remain >= 0 && inputType.Field(remain).Type != outputsType {
			errs = append(errs, fmt.Sprintf("action '%s': catch-all input field must be map[string]string", name))
		}
	}

	if len(errs) > 0 {
		return fmt.Errorf("registry validation failed:\n- %s", strings.Join(errs, "\n- "))
	}
	ctxlog.FromContext(ctx).Debug("Registry validation passed.", "actions", len(r.actions))
	return nil
}

// ValidatePipeline checks that every `uses` step names a registered action
// and passes only inputs that action declares.
func (r *Registry) ValidatePipeline(p *config.Pipeline) error {
	var errs []string
	for _, job := range p.Jobs {
		for i, step := range job.Steps {
			if step.Uses == "" {
				continue
			}
			action, ok := r.actions[step.Uses]
			if !ok {
				errs = append(errs, fmt.Sprintf("job '%s', %s: unknown action '%s'", job.Name, step.DisplayName(i), step.Uses))
				continue
			}
			fields, remain := inputFields(action.InputType)
			declared := make(map[string]bool, len(fields))
			for _, f := range fields {
				declared[f.name] = true
				if _, ok := step.With[f.name]; !ok && !f.optional {
					errs = append(errs, fmt.Sprintf("job '%s', %s: missing required input '%s'", job.Name, step.DisplayName(i), f.name))
				}
			}
			if remain >= 0 {
				continue
			}
			for k := range step.With {
				if !declared[k] {
					errs = append(errs, fmt.Sprintf("job '%s', %s: action '%s' has no input '%s'", job.Name, step.DisplayName(i), step.Uses, k))
				}
			}
		}
	}
	if len(errs) > 0 {
		return fmt.Errorf("%d action error(s):\n- %s", len(errs), strings.Join(errs, "\n- "))
	}
	return nil
}
