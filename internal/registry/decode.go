package registry

import (
	"fmt"
	"reflect"
	"sort"
	"strings"

	"github.com/zclconf/go-cty/cty"
	"github.com/zclconf/go-cty/cty/convert"
	"github.com/zclconf/go-cty/cty/gocty"
)

const (
	tagName = "pipegrid"
	// remainName marks a map[string]string field that collects every input
	// not bound to another field.
	remainName = "*"
)

type inputField struct {
	name     string
	index    int
	optional bool
}

func parseTag(tag string) (name string, optional bool) {
	parts := strings.Split(tag, ",")
	for _, p := range parts[1:] {
		if p == "optional" {
			optional = true
		}
	}
	return parts[0], optional
}

// inputFields lists the tagged fields of an input struct type. remain is
// the index of the catch-all field, or -1.
func inputFields(t reflect.Type) (fields []inputField, remain int) {
	remain = -1
	for i := 0; i < t.NumField(); i++ {
		f := t.Field(i)
		if !f.IsExported() {
			continue
		}
		name, optional := parseTag(f.Tag.Get(tagName))
		switch name {
		case "", "-":
		case remainName:
			remain = i
		default:
			fields = append(fields, inputField{name: name, index: i, optional: optional})
		}
	}
	return fields, remain
}

// decodeInput fills the struct target points to from string inputs.
func decodeInput(target any, with map[string]string) error {
	v := reflect.ValueOf(target).Elem()
	fields, remain := inputFields(v.Type())

	used := make(map[string]bool, len(with))
	for _, f := range fields {
		raw, ok := with[f.name]
		if !ok {
			if !f.optional {
				return fmt.Errorf("missing required input '%s'", f.name)
			}
			continue
		}
		used[f.name] = true

		field := v.Field(f.index)
		ty, err := gocty.ImpliedType(field.Interface())
		if err != nil {
			return fmt.Errorf("input '%s': %w", f.name, err)
		}
		val, err := convert.Convert(cty.StringVal(raw), ty)
		if err != nil {
			return fmt.Errorf("input '%s': cannot use %q as %s", f.name, raw, ty.FriendlyName())
		}
		if err := gocty.FromCtyValue(val, field.Addr().Interface()); err != nil {
			return fmt.Errorf("input '%s': %w", f.name, err)
		}
	}

	var unknown []string
	rest := make(map[string]string)
	for k, val := range with {
		if !used[k] {
			unknown = append(unknown, k)
			rest[k] = val
		}
	}
	if remain >= 0 {
		v.Field(remain).Set(reflect.ValueOf(rest))
		return nil
	}
	if len(unknown) > 0 {
		sort.Strings(unknown)
		return fmt.Errorf("unknown inputs: %s", strings.Join(unknown, ", "))
	}
	return nil
}
