// Package matrix expands a job template into its concrete instances.
//
// Expansion is axis-major: the first declared axis varies slowest and the
// values of every axis are visited in their declared order. That order is
// the dispatch order of sibling instances and therefore the order of their
// log lines and report rows.
package matrix

import (
	"fmt"

	"github.com/specialistvlad/pipegrid/internal/config"
	"github.com/specialistvlad/pipegrid/internal/nodeid"
)

// ExpansionError reports why a template could not be expanded. Expansion is
// all-or-nothing, so any error rejects the whole template.
type ExpansionError struct {
	Job    string
	Reason string
}

func (e *ExpansionError) Error() string {
	return fmt.Sprintf("job %q: matrix expansion failed: %s", e.Job, e.Reason)
}

// Expand returns the instance addresses of a job template in axis-major
// lexicographic order. A job without axes yields exactly one address.
func Expand(job *config.Job) ([]nodeid.Address, error) {
	if job.Matrix == nil || len(job.Matrix.Axes) == 0 {
		if job.Matrix != nil && len(job.Matrix.Exclude) > 0 {
			return nil, &ExpansionError{Job: job.Name, Reason: "exclude given without any axis"}
		}
		return []nodeid.Address{nodeid.New(job.Name)}, nil
	}

	if err := validateAxes(job); err != nil {
		return nil, err
	}
	if err := validateExcludes(job); err != nil {
		return nil, err
	}

	axes := job.Matrix.Axes
	total := 1
	for _, axis := range axes {
		total *= len(axis.Values)
	}

	out := make([]nodeid.Address, 0, total)
	idx := make([]int, len(axes))
	for n := 0; n < total; n++ {
		bindings := make([]nodeid.Binding, len(axes))
		for i, axis := range axes {
			bindings[i] = nodeid.Binding{Axis: axis.Name, Value: axis.Values[idx[i]]}
		}
		if !excluded(job.Matrix.Exclude, bindings) {
			out = append(out, nodeid.New(job.Name, bindings...))
		}

		// Odometer increment: the last axis moves fastest.
		for i := len(axes) - 1; i >= 0; i-- {
			idx[i]++
			if idx[i] < len(axes[i].Values) {
				break
			}
			idx[i] = 0
		}
	}

	if len(out) == 0 {
		return nil, &ExpansionError{Job: job.Name, Reason: "exclude removes every combination"}
	}
	return out, nil
}

// Count returns the number of instances Expand would produce, ignoring
// excludes.
func Count(job *config.Job) int {
	if job.Matrix == nil || len(job.Matrix.Axes) == 0 {
		return 1
	}
	total := 1
	for _, axis := range job.Matrix.Axes {
		total *= len(axis.Values)
	}
	return total
}

func validateAxes(job *config.Job) error {
	seenAxes := make(map[string]struct{}, len(job.Matrix.Axes))
	for _, axis := range job.Matrix.Axes {
		if !nodeid.ValidName(axis.Name) {
			return &ExpansionError{Job: job.Name, Reason: fmt.Sprintf("invalid axis name %q", axis.Name)}
		}
		if _, dup := seenAxes[axis.Name]; dup {
			return &ExpansionError{Job: job.Name, Reason: fmt.Sprintf("axis %q declared twice", axis.Name)}
		}
		seenAxes[axis.Name] = struct{}{}

		if len(axis.Values) == 0 {
			return &ExpansionError{Job: job.Name, Reason: fmt.Sprintf("axis %q has no values", axis.Name)}
		}
		seenValues := make(map[string]struct{}, len(axis.Values))
		for _, v := range axis.Values {
			if !nodeid.ValidValue(v) {
				return &ExpansionError{Job: job.Name, Reason: fmt.Sprintf("axis %q has invalid value %q", axis.Name, v)}
			}
			if _, dup := seenValues[v]; dup {
				return &ExpansionError{Job: job.Name, Reason: fmt.Sprintf("axis %q lists value %q twice, producing duplicate instances", axis.Name, v)}
			}
			seenValues[v] = struct{}{}
		}
	}
	return nil
}

func validateExcludes(job *config.Job) error {
	known := make(map[string]map[string]struct{}, len(job.Matrix.Axes))
	for _, axis := range job.Matrix.Axes {
		values := make(map[string]struct{}, len(axis.Values))
		for _, v := range axis.Values {
			values[v] = struct{}{}
		}
		known[axis.Name] = values
	}

	for i, entry := range job.Matrix.Exclude {
		if len(entry) == 0 {
			return &ExpansionError{Job: job.Name, Reason: fmt.Sprintf("exclude entry %d is empty", i)}
		}
		for axis, value := range entry {
			values, ok := known[axis]
			if !ok {
				return &ExpansionError{Job: job.Name, Reason: fmt.Sprintf("exclude entry %d names unknown axis %q", i, axis)}
			}
			if _, ok := values[value]; !ok {
				return &ExpansionError{Job: job.Name, Reason: fmt.Sprintf("exclude entry %d: axis %q has no value %q", i, axis, value)}
			}
		}
	}
	return nil
}

func excluded(excludes []map[string]string, bindings []nodeid.Binding) bool {
	for _, entry := range excludes {
		matched := 0
		for _, b := range bindings {
			if v, ok := entry[b.Axis]; ok && v == b.Value {
				matched++
			}
		}
		if matched == len(entry) {
			return true
		}
	}
	return false
}
