package graph

import (
	"context"

	"github.com/specialistvlad/pipegrid/internal/dag"
	"github.com/specialistvlad/pipegrid/internal/node"
	"github.com/specialistvlad/pipegrid/internal/nodestore"
)

// InstanceState is a point-in-time view of one instance.
type InstanceState struct {
	Instance *node.Instance
	Status   node.Status
	Reason   string
	Err      error
	Outputs  map[string]string
	Timing   nodestore.Timing
}

// Graph is a unified interface for interacting with the execution plan,
// combining static plan queries with validated state transitions.
//
// # Thread-Safety
//
// Implementations MUST be thread-safe. The executor loop mutates the graph
// while the status server reads snapshots concurrently.
type Graph interface {
	// Plan returns the immutable plan the graph was built from.
	Plan() *dag.Plan

	// Status returns the current status of an instance.
	Status(ctx context.Context, inst *node.Instance) node.Status

	// TemplateStatuses returns the statuses of every sibling of a template,
	// in matrix order.
	TemplateStatuses(ctx context.Context, job string) []node.Status

	// MarkBlocked records that an instance waits on upstream templates.
	MarkBlocked(ctx context.Context, inst *node.Instance) error

	// MarkReady records that an instance passed admission.
	MarkReady(ctx context.Context, inst *node.Instance) error

	// MarkRunning records that a worker claimed the instance.
	MarkRunning(ctx context.Context, inst *node.Instance) error

	// MarkSucceeded records success and the instance's outputs.
	MarkSucceeded(ctx context.Context, inst *node.Instance, outputs map[string]string) error

	// MarkFailed records failure and its error.
	MarkFailed(ctx context.Context, inst *node.Instance, nodeErr error) error

	// MarkSkipped records that the instance will never run, and why.
	MarkSkipped(ctx context.Context, inst *node.Instance, reason string) error

	// Snapshot returns the state of every instance in plan order.
	Snapshot(ctx context.Context) []InstanceState
}
