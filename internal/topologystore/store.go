// Package topologystore defines the interface for storing and retrieving the
// static structure of a pipeline: its job templates and the dependency edges
// between them.
//
// # Why Topology Store Exists
//
// The topology store isolates the **immutable template graph** (jobs and
// their `needs` edges) from the **mutable execution state** of the expanded
// instances, which is managed by nodestore.
//
//   - **Clarity:** Structure queries (dag, scheduler) don't mix with state updates (executor)
//   - **Thread-Safety:** Read-heavy topology queries use RLocks without contention from state writes
//   - **Testability:** The graph can be validated before a single instance exists
//
// # Lifecycle and Usage
//
// The topology store is:
//  1. **Created** once per pipeline run by dag.Build
//  2. **Populated** with every job and every dependency edge
//  3. **Validated** (duplicates, unknown references, cycles) before anything is exposed
//  4. **Read-only** afterwards; the scheduler queries dependents when a template resolves
package topologystore

import (
	"context"
	"errors"

	"github.com/specialistvlad/pipegrid/internal/config"
)

var (
	// ErrDuplicateJob is returned by AddJob when the name is already taken.
	ErrDuplicateJob = errors.New("duplicate job name")
	// ErrUnknownJob is returned when an edge or query names a job that was never added.
	ErrUnknownJob = errors.New("unknown job")
)

// Store is the interface for managing the template-level dependency graph.
//
// # Ordering
//
// Implementations MUST return jobs and edges in insertion order. Cycle
// witnesses, dispatch order, and reports all derive from that order, so a
// map-ordered implementation would make runs nondeterministic.
//
// # Thread-Safety Requirements
//
// Implementations MUST be safe for concurrent reads and writes.
type Store interface {
	// AddJob registers a job template. Adding a second job with the same
	// name returns ErrDuplicateJob.
	AddJob(ctx context.Context, job *config.Job) error

	// AddDependency records that job 'to' depends on job 'from'. Both jobs
	// must already exist, otherwise ErrUnknownJob is returned. Adding the
	// same edge twice is idempotent.
	AddDependency(ctx context.Context, from, to string) error

	// Job retrieves a template by name.
	Job(ctx context.Context, name string) (*config.Job, bool)

	// AllJobs returns every template in insertion order.
	AllJobs(ctx context.Context) []*config.Job

	// DependenciesOf returns the names of the jobs 'name' depends on.
	DependenciesOf(ctx context.Context, name string) ([]string, error)

	// DependentsOf returns the names of the jobs that depend on 'name'.
	DependentsOf(ctx context.Context, name string) ([]string, error)
}
