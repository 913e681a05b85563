package verdict

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"github.com/specialistvlad/pipegrid/internal/config"
	"github.com/specialistvlad/pipegrid/internal/dag"
	"github.com/specialistvlad/pipegrid/internal/graph"
	"github.com/specialistvlad/pipegrid/internal/inmemorystore"
	"github.com/specialistvlad/pipegrid/internal/node"
	"github.com/specialistvlad/pipegrid/internal/steprunner"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newGraph(t *testing.T, jobs ...*config.Job) *graph.Manager {
	t.Helper()
	plan, err := dag.Build(context.Background(), &config.Pipeline{Name: "release", Jobs: jobs})
	require.NoError(t, err)
	return graph.New("run-1", plan, inmemorystore.New(), nil)
}

func succeed(t *testing.T, g *graph.Manager, key string) {
	t.Helper()
	ctx := context.Background()
	inst, _ := g.Plan().Instance(key)
	require.NoError(t, g.MarkReady(ctx, inst))
	require.NoError(t, g.MarkRunning(ctx, inst))
	require.NoError(t, g.MarkSucceeded(ctx, inst, nil))
}

func fail(t *testing.T, g *graph.Manager, key string) {
	t.Helper()
	ctx := context.Background()
	inst, _ := g.Plan().Instance(key)
	require.NoError(t, g.MarkReady(ctx, inst))
	require.NoError(t, g.MarkRunning(ctx, inst))
	require.NoError(t, g.MarkFailed(ctx, inst, errors.New("exit status 1")))
}

func skip(t *testing.T, g *graph.Manager, key, reason string) {
	t.Helper()
	inst, _ := g.Plan().Instance(key)
	require.NoError(t, g.MarkSkipped(context.Background(), inst, reason))
}

func steps() []*config.Step { return []*config.Step{{Run: "true"}} }

func TestAggregate_SkippedOptionalJobStillSucceeds(t *testing.T) {
	g := newGraph(t,
		&config.Job{Name: "build", Required: true, Steps: steps()},
		&config.Job{Name: "publish", Needs: []string{"build"}, Condition: `branch == "main"`, Steps: steps()},
	)
	succeed(t, g, "build")
	skip(t, g, "publish", "condition evaluated to false")

	r := Aggregate(context.Background(), "run-1", g, "")

	assert.Equal(t, Succeeded, r.Verdict)
	assert.Equal(t, 0, r.ExitCode())
	assert.Equal(t, []JobReport{
		{Job: "build", Outcome: node.OutcomeSuccess, Required: true, Instances: 1},
		{Job: "publish", Outcome: node.OutcomeSkipped, Instances: 1},
	}, r.Jobs)
	assert.Equal(t, map[node.Status]int{node.StatusSucceeded: 1, node.StatusSkipped: 1}, r.Counts())
}

func TestAggregate_AnyFailureFails(t *testing.T) {
	g := newGraph(t, &config.Job{
		Name:   "test",
		Matrix: &config.Matrix{Axes: []*config.Axis{{Name: "py", Values: []string{"3.10", "3.11", "3.12"}}}},
		Steps:  steps(),
	})
	succeed(t, g, "test[py=3.10]")
	fail(t, g, "test[py=3.11]")
	succeed(t, g, "test[py=3.12]")

	r := Aggregate(context.Background(), "run-1", g, "")

	assert.Equal(t, Failed, r.Verdict)
	assert.Equal(t, 1, r.ExitCode())
	assert.Equal(t, []string{"test[py=3.11] failed: exit status 1"}, r.Failures)
	assert.Equal(t, node.OutcomeFailure, r.Jobs[0].Outcome)
}

func TestAggregate_RequiredSkippedFails(t *testing.T) {
	g := newGraph(t,
		&config.Job{Name: "lint", Steps: steps()},
		&config.Job{Name: "release", Required: true, Condition: `event == "tag"`, Steps: steps()},
	)
	succeed(t, g, "lint")
	skip(t, g, "release", "condition evaluated to false")

	r := Aggregate(context.Background(), "run-1", g, "")

	assert.Equal(t, Failed, r.Verdict)
	assert.Equal(t, []string{"required release did not succeed (skipped: condition evaluated to false)"}, r.Failures)
}

func TestAggregate_AbortedFails(t *testing.T) {
	g := newGraph(t, &config.Job{Name: "build", Steps: steps()}, &config.Job{Name: "docs", Steps: steps()})
	succeed(t, g, "build")
	skip(t, g, "docs", "interrupted")

	r := Aggregate(context.Background(), "run-1", g, "interrupted")

	assert.Equal(t, Failed, r.Verdict)
	assert.True(t, r.Aborted)
	assert.Equal(t, []string{"run aborted: interrupted"}, r.Failures)
}

func TestAggregate_ReportsFailedStep(t *testing.T) {
	ctx := context.Background()
	g := newGraph(t, &config.Job{Name: "build", Steps: steps()}, &config.Job{Name: "docs", Steps: steps()})
	build, _ := g.Plan().Instance("build")
	require.NoError(t, g.MarkReady(ctx, build))
	require.NoError(t, g.MarkRunning(ctx, build))
	stepErr := &steprunner.StepFailure{Instance: "build", StepIndex: 1, StepName: "compile", ExitCode: 2, Err: errors.New("exit status 2")}
	require.NoError(t, g.MarkFailed(ctx, build, fmt.Errorf("running build: %w", stepErr)))
	fail(t, g, "docs")

	r := Aggregate(ctx, "run-1", g, "")

	byInstance := make(map[string]InstanceReport)
	for _, ir := range r.Instances {
		byInstance[ir.Instance] = ir
	}
	require.NotNil(t, byInstance["build"].FailedStep)
	assert.Equal(t, FailedStep{Index: 2, Name: "compile", ExitCode: 2}, *byInstance["build"].FailedStep)
	assert.Nil(t, byInstance["docs"].FailedStep, "a failure outside any step carries no step")
}
