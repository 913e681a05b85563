package condition

import (
	"fmt"
	"strings"

	"github.com/hashicorp/hcl/v2"
	"github.com/zclconf/go-cty/cty"
)

// Segment is one step of a reference path. Index segments come from
// `x["key"]` syntax; attribute segments from `x.key`.
type Segment struct {
	Name  string
	Index bool
}

// Reference is a resolved-at-compile-time path into the scope.
type Reference struct {
	Path  []Segment
	Range hcl.Range
}

// Root returns the first segment name.
func (r Reference) Root() string {
	if len(r.Path) == 0 {
		return ""
	}
	return r.Path[0].Name
}

func (r Reference) String() string {
	var sb strings.Builder
	for i, s := range r.Path {
		switch {
		case s.Index:
			fmt.Fprintf(&sb, "[%q]", s.Name)
		case i > 0:
			sb.WriteString("." + s.Name)
		default:
			sb.WriteString(s.Name)
		}
	}
	return sb.String()
}

// Scope resolves reference paths to values. Implementations return an error
// for any path that does not name a defined value.
type Scope interface {
	Lookup(path []Segment) (cty.Value, error)
}

// MapScope is a Scope over a flat map keyed by the dotted reference string.
// It is meant for tests and for tools such as `plan` that evaluate without a
// live run.
type MapScope map[string]string

// Lookup implements Scope.
func (m MapScope) Lookup(path []Segment) (cty.Value, error) {
	key := Reference{Path: path}.String()
	if v, ok := m[key]; ok {
		return cty.StringVal(v), nil
	}
	return cty.NilVal, fmt.Errorf("%s is not defined", key)
}

func referenceFromTraversal(src string, tr hcl.Traversal) (Reference, error) {
	ref := Reference{Range: tr.SourceRange()}
	for _, step := range tr {
		switch s := step.(type) {
		case hcl.TraverseRoot:
			ref.Path = append(ref.Path, Segment{Name: s.Name})
		case hcl.TraverseAttr:
			ref.Path = append(ref.Path, Segment{Name: s.Name})
		case hcl.TraverseIndex:
			if s.Key.Type() != cty.String || !s.Key.IsKnown() || s.Key.IsNull() {
				return Reference{}, &ConditionError{Expression: src, Reason: "index keys must be string literals"}
			}
			ref.Path = append(ref.Path, Segment{Name: s.Key.AsString(), Index: true})
		default:
			return Reference{}, &ConditionError{Expression: src, Reason: fmt.Sprintf("unsupported traversal step %T", step)}
		}
	}
	return ref, nil
}
