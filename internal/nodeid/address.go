// internal/nodeid/address.go
package nodeid

import (
	"slices"
	"strings"
)

// String serializes the Address into its canonical representation, e.g.
// `build` or `build[os=linux,python=3.11]`.
func (a Address) String() string {
	if !a.IsMatrix() {
		return a.Job
	}

	var sb strings.Builder
	sb.WriteString(a.Job)
	sb.WriteRune('[')
	sb.WriteString(a.BindingKey())
	sb.WriteRune(']')
	return sb.String()
}

// BindingKey serializes only the bindings, e.g. `os=linux,python=3.11`.
func (a Address) BindingKey() string {
	parts := make([]string, len(a.Bindings))
	for i, b := range a.Bindings {
		parts[i] = b.Axis + "=" + b.Value
	}
	return strings.Join(parts, ",")
}

// Equal reports whether two addresses identify the same instance.
func (a Address) Equal(other Address) bool {
	return a.Job == other.Job && slices.Equal(a.Bindings, other.Bindings)
}
