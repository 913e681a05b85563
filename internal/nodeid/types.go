// internal/nodeid/types.go
package nodeid

// Binding is one matrix axis bound to a concrete value.
type Binding struct {
	Axis  string
	Value string
}

// Address is the structured identity of a job instance: the template name
// plus its matrix bindings in axis declaration order.
type Address struct {
	Job      string
	Bindings []Binding
}

// New creates an address for a job instance.
func New(job string, bindings ...Binding) Address {
	return Address{Job: job, Bindings: bindings}
}

// IsMatrix returns true if the address carries matrix bindings.
func (a Address) IsMatrix() bool {
	return len(a.Bindings) > 0
}

// Value returns the value bound to the given axis.
func (a Address) Value(axis string) (string, bool) {
	for _, b := range a.Bindings {
		if b.Axis == axis {
			return b.Value, true
		}
	}
	return "", false
}

// Values returns the bindings as a map.
func (a Address) Values() map[string]string {
	m := make(map[string]string, len(a.Bindings))
	for _, b := range a.Bindings {
		m[b.Axis] = b.Value
	}
	return m
}
