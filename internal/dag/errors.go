package dag

import (
	"errors"
	"fmt"
	"strings"
)

// ErrDescriptor matches every descriptor validation failure via errors.Is.
var ErrDescriptor = errors.New("invalid pipeline descriptor")

// Violation classifies a DescriptorError.
type Violation string

const (
	ViolationEmpty             Violation = "empty pipeline"
	ViolationInvalidName       Violation = "invalid name"
	ViolationDuplicateName     Violation = "duplicate name"
	ViolationUnknownDependency Violation = "unknown dependency"
	ViolationSelfCycle         Violation = "self-cycle"
	ViolationInvalidCondition  Violation = "invalid condition"
	ViolationInvalidMatrix     Violation = "invalid matrix"
	ViolationInvalidStep       Violation = "invalid step"
	ViolationInvalidOutput     Violation = "invalid output"
)

// DescriptorError names the offending job and the violation.
type DescriptorError struct {
	Job       string
	Violation Violation
	Detail    string
	Err       error
}

func (e *DescriptorError) Error() string {
	var sb strings.Builder
	if e.Job != "" {
		fmt.Fprintf(&sb, "job %q: ", e.Job)
	}
	sb.WriteString(string(e.Violation))
	if e.Detail != "" {
		sb.WriteString(": " + e.Detail)
	}
	return sb.String()
}

func (e *DescriptorError) Unwrap() error { return e.Err }

// Is reports whether target is ErrDescriptor.
func (e *DescriptorError) Is(target error) bool { return target == ErrDescriptor }

// CyclicDependencyError carries one witness cycle. Each job in Cycle needs
// the next one; the first job is repeated at the end.
type CyclicDependencyError struct {
	Cycle []string
}

func (e *CyclicDependencyError) Error() string {
	return "cyclic dependency: " + strings.Join(e.Cycle, " -> ")
}

// Is reports whether target is ErrDescriptor.
func (e *CyclicDependencyError) Is(target error) bool { return target == ErrDescriptor }
