// Package executor defines the interface for the pipeline execution engine.
package executor

import (
	"context"

	"github.com/specialistvlad/pipegrid/internal/verdict"
)

// Executor is responsible for orchestrating the end-to-end execution of a
// run. It manages concurrency, drives the scheduler, and dispatches
// instances to the step runner.
//
// Execute returns once every instance is terminal. The returned error is
// reserved for engine faults; a failed pipeline is a Failed verdict with a
// nil error.
type Executor interface {
	Execute(ctx context.Context) (*verdict.Report, error)
}
