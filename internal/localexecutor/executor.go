package localexecutor

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/specialistvlad/pipegrid/internal/builder"
	"github.com/specialistvlad/pipegrid/internal/ctxlog"
	"github.com/specialistvlad/pipegrid/internal/executor"
	"github.com/specialistvlad/pipegrid/internal/graph"
	"github.com/specialistvlad/pipegrid/internal/node"
	"github.com/specialistvlad/pipegrid/internal/scheduler"
	"github.com/specialistvlad/pipegrid/internal/steprunner"
	"github.com/specialistvlad/pipegrid/internal/verdict"
)

// ErrStalled means the scheduler has neither queued nor running instances
// while some instances are not terminal.
var ErrStalled = errors.New("scheduler stalled")

// Options tune the executor.
type Options struct {
	// Workers bounds concurrently running instances. Values below 1 mean 1.
	Workers int
	// DefaultTimeout applies to jobs without their own timeout. Zero means
	// no limit.
	DefaultTimeout time.Duration
}

// Executor implements the executor.Executor interface for local execution.
type Executor struct {
	runID   string
	g       graph.Graph
	sched   *scheduler.Scheduler
	builder *builder.Builder
	runner  steprunner.Runner
	opts    Options
}

type completion struct {
	inst *node.Instance
	res  scheduler.Result
}

// New creates a new local executor.
func New(runID string, g graph.Graph, sched *scheduler.Scheduler, b *builder.Builder, runner steprunner.Runner, opts Options) executor.Executor {
	if opts.Workers < 1 {
		opts.Workers = 1
	}
	return &Executor{runID: runID, g: g, sched: sched, builder: b, runner: runner, opts: opts}
}

// Execute implements executor.Executor.
func (e *Executor) Execute(ctx context.Context) (*verdict.Report, error) {
	logger := ctxlog.FromContext(ctx)
	logger.Debug("Executor starting run.", "workers", e.opts.Workers)

	if err := e.sched.Start(ctx); err != nil {
		return nil, fmt.Errorf("failed to start scheduler: %w", err)
	}

	// Workers run under their own context so an abort for an engine fault
	// also stops them; the run context's cancellation flows through it.
	workCtx, cancelWork := context.WithCancelCause(ctx)
	defer cancelWork(nil)

	results := make(chan completion, e.opts.Workers)
	running := 0
	done := ctx.Done()
	abortReason := ""
	var fault error

	abort := func(reason string) {
		if abortReason == "" {
			abortReason = reason
		}
		if err := e.sched.Abort(ctx, reason); err != nil {
			fault = errors.Join(fault, err)
		}
	}

	// observeCancel aborts once the run context is done. It never blocks,
	// so it can guard every dispatch.
	observeCancel := func() {
		select {
		case <-done:
			done = nil
			cause := context.Cause(ctx)
			logger.Warn("Run cancelled.", "cause", cause)
			abort("run cancelled: " + cause.Error())
		default:
		}
	}

	for !e.sched.Done() {
		for running < e.opts.Workers {
			if done != nil {
				observeCancel()
			}
			if abortReason != "" {
				break
			}
			inst, ok, err := e.sched.Next(ctx)
			if err != nil {
				return nil, err
			}
			if !ok {
				break
			}
			running++
			go e.work(workCtx, inst, results)
		}
		if e.sched.Done() {
			break
		}
		if running == 0 {
			return nil, ErrStalled
		}

		select {
		case c := <-results:
			running--
			if err := e.sched.Complete(ctx, c.inst, c.res); err != nil {
				logger.Error("💥 Fatal error while recording a result, aborting run.", "instance", c.inst.Key(), "error", err)
				fault = errors.Join(fault, err)
				cancelWork(err)
				abort(err.Error())
			}
		case <-done:
			observeCancel()
		}
	}

	report := verdict.Aggregate(ctx, e.runID, e.g, abortReason)
	return report, fault
}

func (e *Executor) work(ctx context.Context, inst *node.Instance, results chan<- completion) {
	ctx, logger := ctxlog.With(ctx, "instance", inst.Key())
	logger.Info("▶️ Starting instance")

	res := e.runInstance(ctx, inst)
	if res.Err != nil {
		logger.Error("❌ Instance failed.", "error", res.Err)
	} else {
		logger.Info("✅ Finished instance")
	}
	results <- completion{inst: inst, res: res}
}

func (e *Executor) runInstance(ctx context.Context, inst *node.Instance) scheduler.Result {
	req, err := e.builder.Build(ctx, inst)
	if err != nil {
		return scheduler.Result{Err: err}
	}

	timeout := inst.Job.Timeout
	if timeout == 0 {
		timeout = e.opts.DefaultTimeout
	}
	if timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeoutCause(ctx, timeout, fmt.Errorf("job timed out after %s", timeout))
		defer cancel()
	}

	outcome := e.runner.Run(ctx, req)
	return scheduler.Result{Outputs: outcome.Outputs, Err: outcome.Err}
}
