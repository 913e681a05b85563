package runcontext

import "fmt"

// DuplicateOutputError is returned when an output key is published twice
// for the same instance.
type DuplicateOutputError struct {
	Instance string
	Key      string
}

func (e *DuplicateOutputError) Error() string {
	return fmt.Sprintf("output %q of %s was already published", e.Key, e.Instance)
}

// UndefinedOutputError is returned when an output is read before it was
// published, or when the reference cannot name a single instance.
type UndefinedOutputError struct {
	Ref    string
	Key    string
	Reason string
}

func (e *UndefinedOutputError) Error() string {
	msg := fmt.Sprintf("output %q of %s is not defined", e.Key, e.Ref)
	if e.Reason != "" {
		msg += ": " + e.Reason
	}
	return msg
}
