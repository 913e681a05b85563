// Package session defines the core interfaces for creating and managing a
// pipeline run. It abstracts away the details of local vs. remote execution.
package session

import (
	"context"
	"time"

	"github.com/specialistvlad/pipegrid/internal/dag"
	"github.com/specialistvlad/pipegrid/internal/events"
	"github.com/specialistvlad/pipegrid/internal/graph"
	"github.com/specialistvlad/pipegrid/internal/registry"
	"github.com/specialistvlad/pipegrid/internal/runcontext"
	"github.com/specialistvlad/pipegrid/internal/scheduler"
	"github.com/specialistvlad/pipegrid/internal/steprunner"
	"github.com/specialistvlad/pipegrid/internal/verdict"
)

// Options carry the per-run settings of a session.
type Options struct {
	// RunID identifies the run. A fresh one is generated when empty.
	RunID   string
	Trigger runcontext.Trigger
	// Env overlays the pipeline env for this run.
	Env map[string]string
	// Secrets maps secret names to their handles. Names requested by jobs
	// but missing here are read from the variable of the same name.
	Secrets map[string]runcontext.SecretHandle

	Policy         scheduler.Policy
	Workers        int
	DefaultTimeout time.Duration

	// WorkDir is the default working directory of steps.
	WorkDir string
	// LogDir enables compressed step logs under LogDir/<run id>.
	LogDir string

	Observers []events.Observer
	// Runner replaces the local step runner, e.g. in tests.
	Runner steprunner.Runner
}

// SessionFactory creates a Session. Different implementations can support
// various backends, such as local or distributed execution.
type SessionFactory interface {
	NewSession(ctx context.Context, plan *dag.Plan, reg *registry.Registry, opts Options) (Session, error)
}

// Session represents a single pipeline run and manages its lifecycle.
type Session interface {
	RunID() string
	// Graph exposes live instance state, e.g. to the status server.
	Graph() graph.Graph
	// Run executes the pipeline once and returns its report.
	Run(ctx context.Context) (*verdict.Report, error)
	// Close releases any resources held by the session. It accepts a context
	// to allow for graceful cleanup operations.
	Close(ctx context.Context) error
}
