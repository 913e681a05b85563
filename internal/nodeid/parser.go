// internal/nodeid/parser.go
package nodeid

import (
	"fmt"
	"regexp"
	"strings"
)

// addressRegex splits `job` or `job[bindings]`.
var addressRegex = regexp.MustCompile(`^([a-zA-Z0-9_-]+)(?:\[(.*)\])?$`)

// nameRegex restricts job and axis names.
var nameRegex = regexp.MustCompile(`^[a-zA-Z_][a-zA-Z0-9_-]*$`)

// ValidName reports whether s is usable as a job or axis name.
func ValidName(s string) bool {
	return nameRegex.MatchString(s)
}

// ValidValue reports whether s is usable as a matrix value. Values must be
// non-empty and must not contain the characters that delimit an address.
func ValidValue(s string) bool {
	return s != "" && !strings.ContainsAny(s, "[],=")
}

// Parse creates an Address by parsing its canonical string representation.
func Parse(rawID string) (Address, error) {
	if rawID == "" {
		return Address{}, fmt.Errorf("identifier cannot be empty")
	}

	matches := addressRegex.FindStringSubmatch(rawID)
	if matches == nil {
		return Address{}, fmt.Errorf("invalid instance identifier: %q", rawID)
	}

	job := matches[1]
	if !ValidName(job) {
		return Address{}, fmt.Errorf("invalid job name: %q", job)
	}
	if !strings.Contains(rawID, "[") {
		return New(job), nil
	}

	bindings, err := ParseBindings(matches[2])
	if err != nil {
		return Address{}, fmt.Errorf("invalid instance identifier %q: %w", rawID, err)
	}
	return New(job, bindings...), nil
}

// ParseBindings parses a binding key such as `os=linux,python=3.11`.
func ParseBindings(raw string) ([]Binding, error) {
	if raw == "" {
		return nil, fmt.Errorf("binding list cannot be empty")
	}

	var bindings []Binding
	seen := make(map[string]struct{})
	for _, part := range strings.Split(raw, ",") {
		axis, value, ok := strings.Cut(part, "=")
		if !ok {
			return nil, fmt.Errorf("binding %q is not of the form axis=value", part)
		}
		if !ValidName(axis) {
			return nil, fmt.Errorf("invalid axis name: %q", axis)
		}
		if !ValidValue(value) {
			return nil, fmt.Errorf("invalid value for axis %q: %q", axis, value)
		}
		if _, dup := seen[axis]; dup {
			return nil, fmt.Errorf("axis %q bound twice", axis)
		}
		seen[axis] = struct{}{}
		bindings = append(bindings, Binding{Axis: axis, Value: value})
	}
	return bindings, nil
}
