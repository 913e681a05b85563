package scheduler

import (
	"context"
	"errors"
	"fmt"
	"slices"

	"github.com/specialistvlad/pipegrid/internal/condition"
	"github.com/specialistvlad/pipegrid/internal/ctxlog"
	"github.com/specialistvlad/pipegrid/internal/dag"
	"github.com/specialistvlad/pipegrid/internal/graph"
	"github.com/specialistvlad/pipegrid/internal/node"
	"github.com/specialistvlad/pipegrid/internal/runcontext"
)

// Policy holds run-wide scheduling switches.
type Policy struct {
	// FailFast skips every instance not yet dispatched as soon as an
	// instance of a required job fails. Jobs with continue_on_failure are
	// still admitted.
	FailFast bool
}

// Result is what the executor reports for a finished instance.
type Result struct {
	Outputs map[string]string
	Err     error
}

// Scheduler is the admission and propagation state machine of one run.
type Scheduler struct {
	g      graph.Graph
	plan   *dag.Plan
	rc     *runcontext.Context
	policy Policy

	pendingUpstreams map[string]int
	remaining        map[string]int
	queue            []*node.Instance
	terminal         int
	total            int

	// haltReason is set by fail-fast or abort; instances admitted afterwards
	// are skipped with it.
	haltReason string
	aborted    bool
}

// New creates a scheduler over a graph and its run context.
func New(g graph.Graph, rc *runcontext.Context, policy Policy) *Scheduler {
	return &Scheduler{
		g:                g,
		plan:             g.Plan(),
		rc:               rc,
		policy:           policy,
		pendingUpstreams: make(map[string]int),
		remaining:        make(map[string]int),
	}
}

// Start admits every root template and blocks everything else.
func (s *Scheduler) Start(ctx context.Context) error {
	templates := s.plan.Templates()
	for _, t := range templates {
		s.remaining[t.Name()] = len(t.Instances)
		s.pendingUpstreams[t.Name()] = len(t.Needs)
		s.total += len(t.Instances)
		s.rc.RegisterInstances(t.Name(), instanceIDs(t))
	}

	for _, t := range templates {
		if len(t.Needs) > 0 {
			for _, inst := range t.Instances {
				if err := s.g.MarkBlocked(ctx, inst); err != nil {
					return err
				}
			}
		}
	}
	for _, t := range templates {
		if len(t.Needs) == 0 {
			if err := s.admit(ctx, t); err != nil {
				return err
			}
		}
	}
	return nil
}

// Next pops the next Ready instance in dispatch order and marks it Running.
func (s *Scheduler) Next(ctx context.Context) (*node.Instance, bool, error) {
	if len(s.queue) == 0 {
		return nil, false, nil
	}
	inst := s.queue[0]
	s.queue = s.queue[1:]
	if err := s.g.MarkRunning(ctx, inst); err != nil {
		return nil, false, err
	}
	return inst, true, nil
}

// Queued returns the number of Ready instances waiting for a worker.
func (s *Scheduler) Queued() int { return len(s.queue) }

// Done reports whether every instance is terminal.
func (s *Scheduler) Done() bool { return s.terminal == s.total }

// Aborted reports whether Abort was called.
func (s *Scheduler) Aborted() bool { return s.aborted }

// Complete records the result of a Running instance and propagates it.
// Declared outputs of a successful instance are published into the run
// context; a publish failure fails the instance and is returned, since it
// is fatal to the run.
func (s *Scheduler) Complete(ctx context.Context, inst *node.Instance, res Result) error {
	logger := ctxlog.FromContext(ctx).With("instance", inst.Key())

	if res.Err != nil {
		if err := s.g.MarkFailed(ctx, inst, res.Err); err != nil {
			return err
		}
		return s.onTerminal(ctx, inst, node.StatusFailed)
	}

	published := make(map[string]string, len(inst.Job.Outputs))
	for _, key := range inst.Job.Outputs {
		v, ok := res.Outputs[key]
		if !ok {
			continue
		}
		if err := s.rc.Publish(inst.Key(), key, v); err != nil {
			if markErr := s.g.MarkFailed(ctx, inst, err); markErr != nil {
				return errors.Join(err, markErr)
			}
			return errors.Join(err, s.onTerminal(ctx, inst, node.StatusFailed))
		}
		published[key] = v
	}
	for key := range res.Outputs {
		if !slices.Contains(inst.Job.Outputs, key) {
			logger.Warn("Dropping undeclared output.", "key", key)
		}
	}

	if err := s.g.MarkSucceeded(ctx, inst, published); err != nil {
		return err
	}
	return s.onTerminal(ctx, inst, node.StatusSucceeded)
}

// Abort skips every instance that has not been dispatched. Running
// instances are left alone; their results are still accepted by Complete.
func (s *Scheduler) Abort(ctx context.Context, reason string) error {
	if s.aborted {
		return nil
	}
	s.aborted = true
	s.haltReason = reason
	ctxlog.FromContext(ctx).Warn("🛑 Aborting run, skipping everything not yet dispatched.", "reason", reason)

	queued := s.queue
	s.queue = nil
	for _, inst := range queued {
		if err := s.skip(ctx, inst, reason); err != nil {
			return err
		}
	}
	for _, inst := range s.plan.Instances() {
		switch s.g.Status(ctx, inst) {
		case node.StatusPending, node.StatusBlocked:
			if err := s.skip(ctx, inst, reason); err != nil {
				return err
			}
		}
	}
	return nil
}

func (s *Scheduler) admit(ctx context.Context, t *dag.Template) error {
	logger := ctxlog.FromContext(ctx)

	upstreamReason := ""
	for _, need := range t.Needs {
		outcome, _ := s.rc.Result(need)
		if outcome != node.OutcomeSuccess {
			upstreamReason = fmt.Sprintf("upstream job %s resolved as %s", need, outcome)
			break
		}
	}

	for _, inst := range t.Instances {
		if s.g.Status(ctx, inst).IsTerminal() {
			continue
		}
		if s.aborted || (s.haltReason != "" && !t.Job.ContinueOnFailure) {
			if err := s.skip(ctx, inst, s.haltReason); err != nil {
				return err
			}
			continue
		}
		if upstreamReason != "" && !t.Job.ContinueOnFailure {
			if err := s.skip(ctx, inst, upstreamReason); err != nil {
				return err
			}
			continue
		}

		if t.Condition != nil {
			ok, err := t.Condition.Evaluate(s.rc.Scope(inst.ID))
			if err != nil {
				var condErr *condition.ConditionError
				if errors.As(err, &condErr) {
					logger.Error("🚨 Gating condition could not be evaluated, skipping instance.",
						"instance", inst.Key(), "condition", condErr.Expression, "reference", condErr.Reference, "error", condErr.Reason)
				}
				if err := s.skip(ctx, inst, "condition error: "+err.Error()); err != nil {
					return err
				}
				continue
			}
			if !ok {
				if err := s.skip(ctx, inst, "condition evaluated to false"); err != nil {
					return err
				}
				continue
			}
		}

		if err := s.g.MarkReady(ctx, inst); err != nil {
			return err
		}
		s.queue = append(s.queue, inst)
		logger.Debug("Instance is ready.", "instance", inst.Key(), "queued", len(s.queue))
	}
	return nil
}

func (s *Scheduler) skip(ctx context.Context, inst *node.Instance, reason string) error {
	if s.g.Status(ctx, inst).IsTerminal() {
		return nil
	}
	ctxlog.FromContext(ctx).Info("⏭️ Skipping instance.", "instance", inst.Key(), "reason", reason)
	if err := s.g.MarkSkipped(ctx, inst, reason); err != nil {
		return err
	}
	return s.onTerminal(ctx, inst, node.StatusSkipped)
}

func (s *Scheduler) onTerminal(ctx context.Context, inst *node.Instance, status node.Status) error {
	s.terminal++
	job := inst.Job.Name
	s.remaining[job]--
	// Skipping queued siblings below re-enters onTerminal; only the call
	// that drops the count to zero resolves the template.
	last := s.remaining[job] == 0

	if status == node.StatusFailed {
		if inst.Job.FailFast {
			reason := fmt.Sprintf("sibling %s failed", inst.Key())
			if err := s.skipQueued(ctx, reason, func(q *node.Instance) bool { return q.Job.Name == job }); err != nil {
				return err
			}
		}
		if s.policy.FailFast && inst.Job.Required && s.haltReason == "" {
			s.haltReason = fmt.Sprintf("fail-fast: required instance %s failed", inst.Key())
			ctxlog.FromContext(ctx).Warn("🛑 Required instance failed, halting admission.", "instance", inst.Key())
			if err := s.skipQueued(ctx, s.haltReason, func(q *node.Instance) bool { return !q.Job.ContinueOnFailure }); err != nil {
				return err
			}
		}
	}

	if last {
		return s.resolve(ctx, job)
	}
	return nil
}

func (s *Scheduler) skipQueued(ctx context.Context, reason string, match func(*node.Instance) bool) error {
	var keep, drop []*node.Instance
	for _, q := range s.queue {
		if match(q) {
			drop = append(drop, q)
		} else {
			keep = append(keep, q)
		}
	}
	s.queue = keep
	for _, q := range drop {
		if err := s.skip(ctx, q, reason); err != nil {
			return err
		}
	}
	return nil
}

func (s *Scheduler) resolve(ctx context.Context, job string) error {
	outcome := node.Aggregate(s.g.TemplateStatuses(ctx, job))
	if err := s.rc.SetResult(job, outcome); err != nil {
		return err
	}
	ctxlog.FromContext(ctx).Debug("Template resolved.", "job", job, "outcome", outcome)

	t, _ := s.plan.Template(job)
	for _, dependent := range t.Dependents {
		s.pendingUpstreams[dependent]--
		if s.pendingUpstreams[dependent] == 0 {
			dt, _ := s.plan.Template(dependent)
			if err := s.admit(ctx, dt); err != nil {
				return err
			}
		}
	}
	return nil
}
