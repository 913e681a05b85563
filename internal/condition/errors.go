package condition

import "fmt"

// ConditionError reports an expression that cannot be compiled, references a
// key the scope does not define, or does not produce a boolean.
type ConditionError struct {
	Expression string
	// Reference is the offending reference, empty when the whole expression is at fault.
	Reference string
	Reason    string
}

func (e *ConditionError) Error() string {
	if e.Reference != "" {
		return fmt.Sprintf("condition %q: %s: %s", e.Expression, e.Reference, e.Reason)
	}
	return fmt.Sprintf("condition %q: %s", e.Expression, e.Reason)
}
