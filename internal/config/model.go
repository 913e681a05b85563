package config

import (
	"fmt"
	"time"
)

// Pipeline is the unified, format-agnostic representation of a descriptor.
type Pipeline struct {
	Name string
	// Env holds pipeline-wide environment values, visible to every job.
	Env map[string]string
	// Jobs keeps declaration order. Duplicate names are kept so that
	// validation can report them.
	Jobs []*Job
}

// Job is the format-agnostic representation of a job template.
type Job struct {
	Name  string
	Needs []string
	// Condition is the gating expression source. Empty means always run.
	Condition string
	Matrix    *Matrix
	Outputs   []string
	Steps     []*Step
	Env       map[string]string
	Secrets   []string

	Required          bool
	ContinueOnFailure bool
	FailFast          bool
	Timeout           time.Duration

	// Source points at the declaration for error messages, e.g. "ci.hcl:12".
	Source string
}

// Matrix holds the ordered axes of a job template.
type Matrix struct {
	Axes []*Axis
	// Exclude lists partial bindings; any combination matching every
	// binding of an entry is dropped.
	Exclude []map[string]string
}

// Axis is a named dimension with ordered values.
type Axis struct {
	Name   string
	Values []string
}

// Step is one opaque unit of work inside a job. Exactly one of Run or Uses
// is set.
type Step struct {
	Name       string
	Run        string
	Uses       string
	With       map[string]string
	Env        map[string]string
	WorkingDir string
}

// DisplayName returns the step's name, falling back to its position.
func (s *Step) DisplayName(index int) string {
	if s.Name != "" {
		return s.Name
	}
	if s.Uses != "" {
		return s.Uses
	}
	return fmt.Sprintf("step %d", index+1)
}

// AxisNames returns the axis names in declaration order.
func (m *Matrix) AxisNames() []string {
	if m == nil {
		return nil
	}
	names := make([]string, len(m.Axes))
	for i, a := range m.Axes {
		names[i] = a.Name
	}
	return names
}

// Job returns the first job with the given name.
func (p *Pipeline) Job(name string) (*Job, bool) {
	for _, j := range p.Jobs {
		if j.Name == name {
			return j, true
		}
	}
	return nil, false
}
