// Package nodestore defines the interface for storing and retrieving the
// dynamic, mutable execution state of job instances during a run.
//
// # Why Node Store Exists
//
// The node store isolates **mutable execution state** (status, skip reason,
// outputs, errors, timings) from the **immutable plan** produced by dag.Build.
//
//   - **Clarity:** State updates (executor, scheduler) don't touch plan structures
//   - **Concurrency:** Frequent state writes use their own fine-grained locking
//   - **Flexibility:** Backends can be swapped without touching the scheduler
//
// # Lifecycle and Usage
//
// The node store is:
//  1. **Created** once per run by the session factory
//  2. **Mutated** as instances move through their state machine
//  3. **Queried** by the result aggregator, the status server, and tests
//  4. **Discarded** when the session ends
//
// # State Transitions
//
// Instances follow the node.CanTransition state machine:
//
//	Pending → Blocked → Ready → Running → Succeeded | Failed
//	Pending | Blocked | Ready → Skipped
package nodestore

import (
	"context"
	"errors"
	"time"

	"github.com/specialistvlad/pipegrid/internal/node"
	"github.com/specialistvlad/pipegrid/internal/nodeid"
)

// ErrIllegalTransition is returned by SetStatus when the state machine does
// not allow the requested change.
var ErrIllegalTransition = errors.New("illegal state transition")

// Timing holds the wall-clock bounds of an instance's Running phase.
type Timing struct {
	Started  time.Time
	Finished time.Time
}

// Duration returns Finished - Started, or zero if the instance never ran.
func (t Timing) Duration() time.Duration {
	if t.Started.IsZero() || t.Finished.IsZero() {
		return 0
	}
	return t.Finished.Sub(t.Started)
}

// Store is the interface for managing the mutable execution state of job
// instances.
//
// # Thread-Safety Requirements
//
// Implementations MUST be thread-safe. The executor loop writes state while
// the status server and observers read it from other goroutines.
type Store interface {
	// SetStatus moves an instance to a new status, validating the change
	// against node.CanTransition atomically. reason explains skips and is
	// kept for reporting. Entering Running stamps the start time; entering
	// a terminal status stamps the finish time.
	SetStatus(ctx context.Context, id nodeid.Address, status node.Status, reason string) (node.Status, error)

	// GetStatus returns the current status, StatusPending if never set.
	GetStatus(ctx context.Context, id nodeid.Address) (node.Status, error)

	// Reason returns the reason recorded with the latest transition.
	Reason(ctx context.Context, id nodeid.Address) string

	// SetOutput records the outputs a Succeeded instance produced.
	SetOutput(ctx context.Context, id nodeid.Address, output map[string]string) error

	// GetOutput returns the recorded outputs, or nil.
	GetOutput(ctx context.Context, id nodeid.Address) (map[string]string, error)

	// SetError records the failure of an instance.
	SetError(ctx context.Context, id nodeid.Address, nodeErr error) error

	// GetError returns the recorded failure, or nil.
	GetError(ctx context.Context, id nodeid.Address) (error, error)

	// Timing returns the Running phase bounds.
	Timing(ctx context.Context, id nodeid.Address) Timing
}
