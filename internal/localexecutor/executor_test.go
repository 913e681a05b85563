package localexecutor

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/specialistvlad/pipegrid/internal/builder"
	"github.com/specialistvlad/pipegrid/internal/config"
	"github.com/specialistvlad/pipegrid/internal/dag"
	"github.com/specialistvlad/pipegrid/internal/graph"
	"github.com/specialistvlad/pipegrid/internal/inmemorystore"
	"github.com/specialistvlad/pipegrid/internal/node"
	"github.com/specialistvlad/pipegrid/internal/runcontext"
	"github.com/specialistvlad/pipegrid/internal/scheduler"
	"github.com/specialistvlad/pipegrid/internal/steprunner"
	"github.com/specialistvlad/pipegrid/internal/verdict"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// scriptedRunner answers each instance with a canned function.
type scriptedRunner struct {
	mu      sync.Mutex
	seen    []*steprunner.Request
	script  map[string]func(ctx context.Context) *steprunner.Outcome
	active  atomic.Int32
	maxSeen atomic.Int32
}

func (r *scriptedRunner) Run(ctx context.Context, req *steprunner.Request) *steprunner.Outcome {
	n := r.active.Add(1)
	defer r.active.Add(-1)
	for {
		m := r.maxSeen.Load()
		if n <= m || r.maxSeen.CompareAndSwap(m, n) {
			break
		}
	}
	r.mu.Lock()
	r.seen = append(r.seen, req)
	fn := r.script[req.Instance]
	r.mu.Unlock()
	if fn == nil {
		return &steprunner.Outcome{}
	}
	return fn(ctx)
}

func (r *scriptedRunner) request(instance string) *steprunner.Request {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, req := range r.seen {
		if req.Instance == instance {
			return req
		}
	}
	return nil
}

func run(t *testing.T, ctx context.Context, trigger runcontext.Trigger, runner steprunner.Runner, opts Options, jobs ...*config.Job) (*verdict.Report, *graph.Manager) {
	t.Helper()
	plan, err := dag.Build(ctx, &config.Pipeline{Name: "release", Jobs: jobs})
	require.NoError(t, err)
	rc := runcontext.New("run-1", trigger, plan.Env(), nil)
	g := graph.New("run-1", plan, inmemorystore.New(), nil)
	exec := New("run-1", g, scheduler.New(g, rc, scheduler.Policy{}), builder.New(plan, rc, ""), runner, opts)

	report, err := exec.Execute(ctx)
	require.NoError(t, err)
	return report, g
}

func status(t *testing.T, g *graph.Manager, key string) node.Status {
	t.Helper()
	inst, ok := g.Plan().Instance(key)
	require.True(t, ok)
	return g.Status(context.Background(), inst)
}

func steps() []*config.Step { return []*config.Step{{Run: "true"}} }

func TestExecute_OutputsFlowDownstream(t *testing.T) {
	runner := &scriptedRunner{script: map[string]func(context.Context) *steprunner.Outcome{
		"version": func(context.Context) *steprunner.Outcome {
			return &steprunner.Outcome{Outputs: map[string]string{"tag": "v2.0.0"}}
		},
	}}

	report, g := run(t, context.Background(), runcontext.Trigger{Branch: "main"}, runner, Options{Workers: 4},
		&config.Job{Name: "version", Outputs: []string{"tag"}, Steps: steps()},
		&config.Job{Name: "publish", Needs: []string{"version"}, Condition: `needs.version.outputs.tag != ""`, Steps: steps()},
	)

	assert.Equal(t, verdict.Succeeded, report.Verdict)
	assert.Equal(t, node.StatusSucceeded, status(t, g, "publish"))
	require.NotNil(t, runner.request("publish"))
	assert.Equal(t, "v2.0.0", runner.request("publish").Env["NEEDS_VERSION_TAG"])
}

func TestExecute_BoundsConcurrency(t *testing.T) {
	slow := func(context.Context) *steprunner.Outcome {
		time.Sleep(20 * time.Millisecond)
		return &steprunner.Outcome{}
	}
	runner := &scriptedRunner{script: map[string]func(context.Context) *steprunner.Outcome{
		"test[shard=1]": slow, "test[shard=2]": slow, "test[shard=3]": slow, "test[shard=4]": slow, "test[shard=5]": slow,
	}}

	report, _ := run(t, context.Background(), runcontext.Trigger{}, runner, Options{Workers: 2}, &config.Job{
		Name:   "test",
		Matrix: &config.Matrix{Axes: []*config.Axis{{Name: "shard", Values: []string{"1", "2", "3", "4", "5"}}}},
		Steps:  steps(),
	})

	assert.Equal(t, verdict.Succeeded, report.Verdict)
	assert.LessOrEqual(t, runner.maxSeen.Load(), int32(2))
	assert.Len(t, runner.seen, 5)
}

func TestExecute_JobTimeout(t *testing.T) {
	runner := &scriptedRunner{script: map[string]func(context.Context) *steprunner.Outcome{
		"deploy": func(ctx context.Context) *steprunner.Outcome {
			<-ctx.Done()
			return &steprunner.Outcome{Err: context.Cause(ctx)}
		},
	}}

	report, g := run(t, context.Background(), runcontext.Trigger{}, runner, Options{},
		&config.Job{Name: "deploy", Timeout: 30 * time.Millisecond, Steps: steps()},
		&config.Job{Name: "smoke", Needs: []string{"deploy"}, Steps: steps()},
	)

	assert.Equal(t, verdict.Failed, report.Verdict)
	assert.Equal(t, node.StatusSkipped, status(t, g, "smoke"))
	assert.Equal(t, "job timed out after 30ms", report.Instances[0].Error)
}

func TestExecute_CancellationAborts(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	started := make(chan struct{})
	runner := &scriptedRunner{script: map[string]func(context.Context) *steprunner.Outcome{
		"build": func(ctx context.Context) *steprunner.Outcome {
			close(started)
			<-ctx.Done()
			// Let the loop observe the cancellation before the result.
			time.Sleep(50 * time.Millisecond)
			return &steprunner.Outcome{Err: errors.New("killed")}
		},
	}}
	go func() {
		<-started
		cancel()
	}()

	report, g := run(t, ctx, runcontext.Trigger{}, runner, Options{Workers: 1},
		&config.Job{Name: "build", Steps: steps()},
		&config.Job{Name: "docs", Steps: steps()},
		&config.Job{Name: "release", Needs: []string{"build"}, ContinueOnFailure: true, Steps: steps()},
	)

	assert.Equal(t, verdict.Failed, report.Verdict)
	assert.True(t, report.Aborted)
	assert.Equal(t, node.StatusFailed, status(t, g, "build"))
	assert.Equal(t, node.StatusSkipped, status(t, g, "docs"))
	assert.Equal(t, node.StatusSkipped, status(t, g, "release"), "abort overrides continue_on_failure")
}

func TestExecute_CancelledBeforeStartDispatchesNothing(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	runner := &scriptedRunner{}

	report, g := run(t, ctx, runcontext.Trigger{}, runner, Options{Workers: 4},
		&config.Job{Name: "build", Steps: steps()},
		&config.Job{Name: "docs", Needs: []string{"build"}, Steps: steps()},
	)

	assert.True(t, report.Aborted)
	assert.Equal(t, verdict.Failed, report.Verdict)
	assert.Empty(t, runner.seen, "no instance may start once the run is cancelled")
	assert.Equal(t, node.StatusSkipped, status(t, g, "build"))
	assert.Equal(t, node.StatusSkipped, status(t, g, "docs"))
}
