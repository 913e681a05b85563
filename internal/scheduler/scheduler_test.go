package scheduler

import (
	"context"
	"errors"
	"testing"

	"github.com/specialistvlad/pipegrid/internal/config"
	"github.com/specialistvlad/pipegrid/internal/dag"
	"github.com/specialistvlad/pipegrid/internal/graph"
	"github.com/specialistvlad/pipegrid/internal/inmemorystore"
	"github.com/specialistvlad/pipegrid/internal/node"
	"github.com/specialistvlad/pipegrid/internal/runcontext"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type harness struct {
	t     *testing.T
	ctx   context.Context
	g     *graph.Manager
	rc    *runcontext.Context
	sched *Scheduler
}

func newHarness(t *testing.T, trigger runcontext.Trigger, policy Policy, jobs ...*config.Job) *harness {
	t.Helper()
	ctx := context.Background()
	plan, err := dag.Build(ctx, &config.Pipeline{Name: "release", Jobs: jobs})
	require.NoError(t, err)

	rc := runcontext.New("run-1", trigger, nil, nil)
	g := graph.New("run-1", plan, inmemorystore.New(), nil)
	h := &harness{t: t, ctx: ctx, g: g, rc: rc, sched: New(g, rc, policy)}
	require.NoError(t, h.sched.Start(ctx))
	return h
}

// drain runs every queued instance to completion, failing the listed keys.
func (h *harness) drain(fail ...string) []string {
	h.t.Helper()
	var order []string
	for {
		inst, ok, err := h.sched.Next(h.ctx)
		require.NoError(h.t, err)
		if !ok {
			break
		}
		order = append(order, inst.Key())
		res := Result{}
		for _, f := range fail {
			if f == inst.Key() {
				res.Err = errors.New("exit status 1")
			}
		}
		require.NoError(h.t, h.sched.Complete(h.ctx, inst, res))
	}
	return order
}

func (h *harness) status(key string) node.Status {
	h.t.Helper()
	inst, ok := h.g.Plan().Instance(key)
	require.True(h.t, ok, "no instance %s", key)
	return h.g.Status(h.ctx, inst)
}

func step() []*config.Step { return []*config.Step{{Run: "true"}} }

func releasePipeline() []*config.Job {
	return []*config.Job{
		{Name: "build", Steps: step()},
		{Name: "test", Needs: []string{"build"}, Steps: step()},
		{Name: "publish", Needs: []string{"test"}, Condition: `branch == "main"`, Steps: step()},
	}
}

func TestScheduler_FeatureBranchSkipsGatedJob(t *testing.T) {
	h := newHarness(t, runcontext.Trigger{Branch: "feature/x"}, Policy{}, releasePipeline()...)

	order := h.drain()

	assert.Equal(t, []string{"build", "test"}, order)
	assert.Equal(t, node.StatusSkipped, h.status("publish"))
	assert.True(t, h.sched.Done())
}

func TestScheduler_MainBranchRunsEverything(t *testing.T) {
	h := newHarness(t, runcontext.Trigger{Branch: "main"}, Policy{}, releasePipeline()...)

	order := h.drain()

	assert.Equal(t, []string{"build", "test", "publish"}, order)
	outcome, ok := h.rc.Result("publish")
	require.True(t, ok)
	assert.Equal(t, node.OutcomeSuccess, outcome)
}

func TestScheduler_DownstreamBlockedUntilUpstreamTerminal(t *testing.T) {
	h := newHarness(t, runcontext.Trigger{Branch: "main"}, Policy{}, releasePipeline()...)

	assert.Equal(t, node.StatusReady, h.status("build"))
	assert.Equal(t, node.StatusBlocked, h.status("test"))
	assert.Equal(t, node.StatusBlocked, h.status("publish"))
	assert.Equal(t, 1, h.sched.Queued())
	assert.False(t, h.sched.Done())
}

func matrixPipeline(failFast bool) []*config.Job {
	return []*config.Job{
		{
			Name:     "test",
			FailFast: failFast,
			Matrix: &config.Matrix{Axes: []*config.Axis{
				{Name: "python", Values: []string{"3.10", "3.11", "3.12"}},
			}},
			Steps: step(),
		},
		{Name: "package", Needs: []string{"test"}, Steps: step()},
		{Name: "report", Needs: []string{"test"}, ContinueOnFailure: true, Steps: step()},
	}
}

func TestScheduler_SiblingFailureSkipsDownstream(t *testing.T) {
	h := newHarness(t, runcontext.Trigger{}, Policy{}, matrixPipeline(false)...)

	order := h.drain("test[python=3.11]")

	assert.Equal(t, []string{"test[python=3.10]", "test[python=3.11]", "test[python=3.12]", "report"}, order,
		"siblings keep running without fail_fast")
	assert.Equal(t, node.StatusSucceeded, h.status("test[python=3.12]"))
	assert.Equal(t, node.StatusSkipped, h.status("package"))
	assert.Equal(t, node.StatusSucceeded, h.status("report"))

	outcome, _ := h.rc.Result("test")
	assert.Equal(t, node.OutcomeFailure, outcome)
	assert.True(t, h.sched.Done())
}

func TestScheduler_FailFastSkipsQueuedSiblings(t *testing.T) {
	h := newHarness(t, runcontext.Trigger{}, Policy{}, matrixPipeline(true)...)

	order := h.drain("test[python=3.10]")

	assert.Equal(t, []string{"test[python=3.10]", "report"}, order)
	assert.Equal(t, node.StatusSkipped, h.status("test[python=3.11]"))
	assert.Equal(t, node.StatusSkipped, h.status("test[python=3.12]"))
	assert.Equal(t, node.StatusSkipped, h.status("package"))
}

func TestScheduler_RunFailFastHaltsAfterRequiredFailure(t *testing.T) {
	h := newHarness(t, runcontext.Trigger{}, Policy{FailFast: true},
		&config.Job{Name: "lint", Required: true, Steps: step()},
		&config.Job{Name: "docs", Steps: step()},
		&config.Job{Name: "notify", Needs: []string{"docs"}, ContinueOnFailure: true, Steps: step()},
	)

	order := h.drain("lint")

	assert.Equal(t, []string{"lint", "notify"}, order)
	assert.Equal(t, node.StatusSkipped, h.status("docs"))
	assert.Equal(t, node.StatusSucceeded, h.status("notify"))
}

func TestScheduler_PublishesOnlyDeclaredOutputs(t *testing.T) {
	h := newHarness(t, runcontext.Trigger{}, Policy{},
		&config.Job{Name: "version", Outputs: []string{"tag"}, Steps: step()},
		&config.Job{Name: "release", Needs: []string{"version"}, Condition: `needs.version.outputs.tag == "v1.2.0"`, Steps: step()},
	)

	inst, ok, err := h.sched.Next(h.ctx)
	require.NoError(t, err)
	require.True(t, ok)
	require.NoError(t, h.sched.Complete(h.ctx, inst, Result{Outputs: map[string]string{"tag": "v1.2.0", "scratch": "x"}}))

	assert.Equal(t, map[string]string{"tag": "v1.2.0"}, h.rc.Outputs("version"))
	assert.Equal(t, node.StatusReady, h.status("release"))
}

func TestScheduler_ConditionErrorSkips(t *testing.T) {
	h := newHarness(t, runcontext.Trigger{}, Policy{},
		&config.Job{Name: "version", Outputs: []string{"tag"}, Steps: step()},
		&config.Job{Name: "release", Needs: []string{"version"}, Condition: `needs.version.outputs.tag == "v1"`, Steps: step()},
	)

	order := h.drain()

	assert.Equal(t, []string{"version"}, order)
	assert.Equal(t, node.StatusSkipped, h.status("release"))
	assert.True(t, h.sched.Done())
}

func TestScheduler_MatrixConditionPerInstance(t *testing.T) {
	h := newHarness(t, runcontext.Trigger{}, Policy{},
		&config.Job{
			Name:      "build",
			Condition: `matrix.os != "windows"`,
			Matrix:    &config.Matrix{Axes: []*config.Axis{{Name: "os", Values: []string{"linux", "windows"}}}},
			Steps:     step(),
		},
	)

	order := h.drain()

	assert.Equal(t, []string{"build[os=linux]"}, order)
	assert.Equal(t, node.StatusSkipped, h.status("build[os=windows]"))
	outcome, _ := h.rc.Result("build")
	assert.Equal(t, node.OutcomeSkipped, outcome, "mixed succeeded and skipped siblings aggregate to skipped")
}

func TestScheduler_AbortSkipsUndispatched(t *testing.T) {
	h := newHarness(t, runcontext.Trigger{}, Policy{},
		&config.Job{Name: "a", Steps: step()},
		&config.Job{Name: "b", Steps: step()},
		&config.Job{Name: "c", Needs: []string{"a"}, ContinueOnFailure: true, Steps: step()},
	)
	running, ok, err := h.sched.Next(h.ctx)
	require.NoError(t, err)
	require.True(t, ok)

	require.NoError(t, h.sched.Abort(h.ctx, "interrupted"))
	assert.Equal(t, node.StatusSkipped, h.status("b"))
	assert.Equal(t, node.StatusSkipped, h.status("c"))
	assert.False(t, h.sched.Done(), "a is still running")

	require.NoError(t, h.sched.Complete(h.ctx, running, Result{}))
	assert.True(t, h.sched.Done())
	assert.True(t, h.sched.Aborted())
	assert.Equal(t, node.StatusSucceeded, h.status("a"))
}
