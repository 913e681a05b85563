// Package localsession provides a concrete implementation of the session.Session
// and session.SessionFactory interfaces for local, in-process execution.
package localsession

import (
	"context"
	"fmt"
	"maps"
	"time"

	"github.com/specialistvlad/pipegrid/internal/audit"
	"github.com/specialistvlad/pipegrid/internal/builder"
	"github.com/specialistvlad/pipegrid/internal/ctxlog"
	"github.com/specialistvlad/pipegrid/internal/dag"
	"github.com/specialistvlad/pipegrid/internal/events"
	"github.com/specialistvlad/pipegrid/internal/executor"
	"github.com/specialistvlad/pipegrid/internal/graph"
	"github.com/specialistvlad/pipegrid/internal/inmemorystore"
	"github.com/specialistvlad/pipegrid/internal/localexecutor"
	"github.com/specialistvlad/pipegrid/internal/logstore"
	"github.com/specialistvlad/pipegrid/internal/registry"
	"github.com/specialistvlad/pipegrid/internal/runcontext"
	"github.com/specialistvlad/pipegrid/internal/scheduler"
	"github.com/specialistvlad/pipegrid/internal/session"
	"github.com/specialistvlad/pipegrid/internal/steprunner"
	"github.com/specialistvlad/pipegrid/internal/verdict"
)

// SessionFactory implements session.SessionFactory for local runs.
type SessionFactory struct{}

// NewSession creates and wires a new local session.
func (f *SessionFactory) NewSession(ctx context.Context, plan *dag.Plan, reg *registry.Registry, opts session.Options) (session.Session, error) {
	runID := opts.RunID
	if runID == "" {
		runID = audit.NewRunID()
	}
	_, logger := ctxlog.With(ctx, "run_id", runID)
	logger.Debug("Creating local session.", "pipeline", plan.Name())

	env := make(map[string]string)
	maps.Copy(env, plan.Env())
	maps.Copy(env, opts.Env)

	rc := runcontext.New(runID, opts.Trigger, env, secretHandles(plan, opts.Secrets))
	observer := events.Multi(opts.Observers)
	g := graph.New(runID, plan, inmemorystore.New(), observer)
	sched := scheduler.New(g, rc, opts.Policy)
	b := builder.New(plan, rc, opts.WorkDir)

	runner := opts.Runner
	var logs *logstore.Store
	if runner == nil {
		var sink steprunner.LogSink
		if opts.LogDir != "" {
			var err error
			logs, err = logstore.New(opts.LogDir, runID)
			if err != nil {
				return nil, fmt.Errorf("failed to prepare step logs: %w", err)
			}
			sink = logs
			logger.Debug("Step logs enabled.", "dir", logs.Root())
		}
		runner = steprunner.NewLocal(reg, sink)
	}

	exec := localexecutor.New(runID, g, sched, b, runner, localexecutor.Options{
		Workers:        opts.Workers,
		DefaultTimeout: opts.DefaultTimeout,
	})

	return &Session{
		runID:    runID,
		plan:     plan,
		graph:    g,
		executor: exec,
		observer: observer,
		logs:     logs,
	}, nil
}

// secretHandles returns the configured handles plus an environment-backed
// handle for every other secret a job asks for.
func secretHandles(plan *dag.Plan, configured map[string]runcontext.SecretHandle) map[string]runcontext.SecretHandle {
	handles := maps.Clone(configured)
	if handles == nil {
		handles = make(map[string]runcontext.SecretHandle)
	}
	for _, t := range plan.Templates() {
		for _, name := range t.Job.Secrets {
			if _, ok := handles[name]; !ok {
				maps.Copy(handles, runcontext.SecretsFromEnv(name))
			}
		}
	}
	return handles
}

// Session implements session.Session for local runs.
type Session struct {
	runID    string
	plan     *dag.Plan
	graph    graph.Graph
	executor executor.Executor
	observer events.Observer
	logs     *logstore.Store
}

// RunID implements session.Session.
func (s *Session) RunID() string { return s.runID }

// Graph implements session.Session.
func (s *Session) Graph() graph.Graph { return s.graph }

// LogDir returns the directory holding this run's step logs, or "" when
// step logs are disabled.
func (s *Session) LogDir() string {
	if s.logs == nil {
		return ""
	}
	return s.logs.Root()
}

// Run implements session.Session. It brackets the execution with the
// run_started and run_finished events.
func (s *Session) Run(ctx context.Context) (*verdict.Report, error) {
	ctx, logger := ctxlog.With(ctx, "run_id", s.runID)

	started := time.Now()
	s.observer.Observe(ctx, events.Event{
		Kind:     events.KindRunStarted,
		RunID:    s.runID,
		Pipeline: s.plan.Name(),
		Time:     started,
	})
	logger.Info("🚀 Starting run.", "pipeline", s.plan.Name(), "instances", len(s.plan.Instances()))

	report, err := s.executor.Execute(ctx)

	finished := time.Now()
	ev := events.Event{
		Kind:     events.KindRunFinished,
		RunID:    s.runID,
		Pipeline: s.plan.Name(),
		Duration: finished.Sub(started),
		Time:     finished,
	}
	if report != nil {
		report.Started = started
		report.Finished = finished
		ev.Verdict = string(report.Verdict)
	}
	s.observer.Observe(ctx, ev)

	if report != nil {
		logger.Info("🏁 Run finished.", "verdict", report.Verdict, "duration", finished.Sub(started))
	}
	return report, err
}

// Close implements session.Session.
func (s *Session) Close(ctx context.Context) error {
	ctxlog.FromContext(ctx).Debug("Local session closed.", "run_id", s.runID)
	return nil
}

var _ session.SessionFactory = (*SessionFactory)(nil)
