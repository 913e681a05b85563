package node

import "fmt"

// Status is the execution state of a job instance.
type Status int

const (
	// StatusPending is the initial state before the scheduler looked at the instance.
	StatusPending Status = iota
	// StatusBlocked means at least one upstream template is not yet terminal.
	StatusBlocked
	// StatusReady means dependencies resolved and the condition held; waiting for a worker.
	StatusReady
	// StatusRunning means the step runner is executing the instance.
	StatusRunning
	// StatusSucceeded is terminal.
	StatusSucceeded
	// StatusFailed is terminal.
	StatusFailed
	// StatusSkipped is terminal. The instance never ran.
	StatusSkipped
)

var statusNames = map[Status]string{
	StatusPending:   "pending",
	StatusBlocked:   "blocked",
	StatusReady:     "ready",
	StatusRunning:   "running",
	StatusSucceeded: "succeeded",
	StatusFailed:    "failed",
	StatusSkipped:   "skipped",
}

func (s Status) String() string {
	if name, ok := statusNames[s]; ok {
		return name
	}
	return fmt.Sprintf("status(%d)", int(s))
}

// MarshalText renders the status by name in JSON and CBOR records.
func (s Status) MarshalText() ([]byte, error) {
	return []byte(s.String()), nil
}

// UnmarshalText parses a status name.
func (s *Status) UnmarshalText(b []byte) error {
	for k, v := range statusNames {
		if v == string(b) {
			*s = k
			return nil
		}
	}
	return fmt.Errorf("unknown status %q", string(b))
}

// IsTerminal reports whether no further transition is possible.
func (s Status) IsTerminal() bool {
	return s == StatusSucceeded || s == StatusFailed || s == StatusSkipped
}

// transitions lists the allowed next states for each state.
var transitions = map[Status][]Status{
	StatusPending: {StatusBlocked, StatusReady, StatusSkipped},
	StatusBlocked: {StatusReady, StatusSkipped},
	StatusReady:   {StatusRunning, StatusSkipped},
	StatusRunning: {StatusSucceeded, StatusFailed},
}

// CanTransition reports whether from → to is a legal state change.
func CanTransition(from, to Status) bool {
	for _, next := range transitions[from] {
		if next == to {
			return true
		}
	}
	return false
}

// Outcome is the aggregate result of a template across its siblings, in
// the vocabulary conditions use.
type Outcome string

const (
	OutcomeSuccess Outcome = "success"
	OutcomeFailure Outcome = "failure"
	OutcomeSkipped Outcome = "skipped"
)

// Aggregate folds sibling statuses into a template outcome: any Failed
// sibling fails the template, only all-Succeeded succeeds it, anything else
// counts as skipped.
func Aggregate(statuses []Status) Outcome {
	if len(statuses) == 0 {
		return OutcomeSkipped
	}
	allSucceeded := true
	for _, s := range statuses {
		if s == StatusFailed {
			return OutcomeFailure
		}
		if s != StatusSucceeded {
			allSucceeded = false
		}
	}
	if allSucceeded {
		return OutcomeSuccess
	}
	return OutcomeSkipped
}
