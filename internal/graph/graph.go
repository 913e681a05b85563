package graph

import (
	"context"
	"time"

	"github.com/specialistvlad/pipegrid/internal/ctxlog"
	"github.com/specialistvlad/pipegrid/internal/dag"
	"github.com/specialistvlad/pipegrid/internal/events"
	"github.com/specialistvlad/pipegrid/internal/node"
	"github.com/specialistvlad/pipegrid/internal/nodestore"
)

// Manager provides a high-level, thread-safe interface to the execution
// graph by composing the plan, a node store and an observer.
type Manager struct {
	runID    string
	plan     *dag.Plan
	store    nodestore.Store
	observer events.Observer
}

// New creates a new graph manager. observer may be nil.
func New(runID string, plan *dag.Plan, store nodestore.Store, observer events.Observer) *Manager {
	if observer == nil {
		observer = events.Multi{}
	}
	return &Manager{runID: runID, plan: plan, store: store, observer: observer}
}

// Plan implements Graph.
func (m *Manager) Plan() *dag.Plan { return m.plan }

// Status implements Graph.
func (m *Manager) Status(ctx context.Context, inst *node.Instance) node.Status {
	s, _ := m.store.GetStatus(ctx, inst.ID)
	return s
}

// TemplateStatuses implements Graph.
func (m *Manager) TemplateStatuses(ctx context.Context, job string) []node.Status {
	tmpl, ok := m.plan.Template(job)
	if !ok {
		return nil
	}
	out := make([]node.Status, len(tmpl.Instances))
	for i, inst := range tmpl.Instances {
		out[i] = m.Status(ctx, inst)
	}
	return out
}

// MarkBlocked implements Graph.
func (m *Manager) MarkBlocked(ctx context.Context, inst *node.Instance) error {
	return m.transition(ctx, inst, node.StatusBlocked, "waiting on upstream jobs", nil)
}

// MarkReady implements Graph.
func (m *Manager) MarkReady(ctx context.Context, inst *node.Instance) error {
	return m.transition(ctx, inst, node.StatusReady, "", nil)
}

// MarkRunning implements Graph.
func (m *Manager) MarkRunning(ctx context.Context, inst *node.Instance) error {
	return m.transition(ctx, inst, node.StatusRunning, "", nil)
}

// MarkSucceeded implements Graph.
func (m *Manager) MarkSucceeded(ctx context.Context, inst *node.Instance, outputs map[string]string) error {
	if err := m.store.SetOutput(ctx, inst.ID, outputs); err != nil {
		return err
	}
	return m.transition(ctx, inst, node.StatusSucceeded, "", nil)
}

// MarkFailed implements Graph.
func (m *Manager) MarkFailed(ctx context.Context, inst *node.Instance, nodeErr error) error {
	if err := m.store.SetError(ctx, inst.ID, nodeErr); err != nil {
		return err
	}
	return m.transition(ctx, inst, node.StatusFailed, "", nodeErr)
}

// MarkSkipped implements Graph.
func (m *Manager) MarkSkipped(ctx context.Context, inst *node.Instance, reason string) error {
	return m.transition(ctx, inst, node.StatusSkipped, reason, nil)
}

func (m *Manager) transition(ctx context.Context, inst *node.Instance, to node.Status, reason string, nodeErr error) error {
	from, err := m.store.SetStatus(ctx, inst.ID, to, reason)
	if err != nil {
		return err
	}
	ctxlog.FromContext(ctx).Debug("Instance transition.", "instance", inst.Key(), "from", from, "to", to, "reason", reason)

	ev := events.Event{
		Kind:     events.KindTransition,
		RunID:    m.runID,
		Pipeline: m.plan.Name(),
		Instance: inst.Key(),
		Job:      inst.Job.Name,
		From:     from,
		To:       to,
		Reason:   reason,
		Time:     time.Now(),
	}
	if nodeErr != nil {
		ev.Error = nodeErr.Error()
	}
	if to.IsTerminal() {
		ev.Duration = m.store.Timing(ctx, inst.ID).Duration()
	}
	m.observer.Observe(ctx, ev)
	return nil
}

// Snapshot implements Graph.
func (m *Manager) Snapshot(ctx context.Context) []InstanceState {
	instances := m.plan.Instances()
	out := make([]InstanceState, len(instances))
	for i, inst := range instances {
		status, _ := m.store.GetStatus(ctx, inst.ID)
		nodeErr, _ := m.store.GetError(ctx, inst.ID)
		outputs, _ := m.store.GetOutput(ctx, inst.ID)
		out[i] = InstanceState{
			Instance: inst,
			Status:   status,
			Reason:   m.store.Reason(ctx, inst.ID),
			Err:      nodeErr,
			Outputs:  outputs,
			Timing:   m.store.Timing(ctx, inst.ID),
		}
	}
	return out
}
