package integration_tests

import (
	"context"
	"testing"

	"github.com/specialistvlad/pipegrid/internal/config"
	"github.com/specialistvlad/pipegrid/internal/dag"
	"github.com/specialistvlad/pipegrid/internal/events"
	"github.com/specialistvlad/pipegrid/internal/localsession"
	"github.com/specialistvlad/pipegrid/internal/node"
	"github.com/specialistvlad/pipegrid/internal/registry"
	"github.com/specialistvlad/pipegrid/internal/runcontext"
	"github.com/specialistvlad/pipegrid/internal/session"
	"github.com/specialistvlad/pipegrid/internal/testutil"
	"github.com/specialistvlad/pipegrid/internal/verdict"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func step() []*config.Step { return []*config.Step{{Run: "true"}} }

func runScripted(t *testing.T, p *config.Pipeline, runner *testutil.ScriptedRunner, trigger runcontext.Trigger) (*verdict.Report, *events.Recorder) {
	t.Helper()
	ctx := context.Background()

	plan, err := dag.Build(ctx, p)
	require.NoError(t, err)

	rec := events.NewRecorder()
	s, err := (&localsession.SessionFactory{}).NewSession(ctx, plan, registry.New(), session.Options{
		Trigger:   trigger,
		Workers:   2,
		Runner:    runner,
		Observers: []events.Observer{rec},
	})
	require.NoError(t, err)
	t.Cleanup(func() { s.Close(ctx) })

	report, err := s.Run(ctx)
	require.NoError(t, err)
	return report, rec
}

func statuses(r *verdict.Report) map[string]node.Status {
	out := make(map[string]node.Status, len(r.Instances))
	for _, ir := range r.Instances {
		out[ir.Instance] = ir.Status
	}
	return out
}

func releaseGraph(required bool) *config.Pipeline {
	return &config.Pipeline{
		Name: "release",
		Jobs: []*config.Job{
			{Name: "build", Steps: step()},
			{Name: "test", Needs: []string{"build"}, Steps: step()},
			{Name: "release", Needs: []string{"test"}, Condition: `branch == "main"`, Required: required, Steps: step()},
			{Name: "publish", Needs: []string{"release"}, Steps: step()},
		},
	}
}

func TestScenario_FeatureBranchSkipsRelease(t *testing.T) {
	t.Parallel()

	// --- Act ---
	runner := testutil.NewScriptedRunner()
	report, rec := runScripted(t, releaseGraph(false), runner, runcontext.Trigger{Branch: "feature"})

	// --- Assert ---
	assert.Equal(t, map[string]node.Status{
		"build":   node.StatusSucceeded,
		"test":    node.StatusSucceeded,
		"release": node.StatusSkipped,
		"publish": node.StatusSkipped,
	}, statuses(report))
	assert.Equal(t, verdict.Succeeded, report.Verdict)
	assert.Equal(t, []string{"build", "test"}, runner.Ran())
	assert.NotContains(t, rec.Transitions(), "publish:running")
}

func TestScenario_FeatureBranchFailsWhenReleaseRequired(t *testing.T) {
	t.Parallel()

	report, _ := runScripted(t, releaseGraph(true), testutil.NewScriptedRunner(), runcontext.Trigger{Branch: "feature"})

	assert.Equal(t, verdict.Failed, report.Verdict)
	assert.Equal(t, node.StatusSkipped, statuses(report)["release"])
}

func TestScenario_MainBranchRunsEverything(t *testing.T) {
	t.Parallel()

	runner := testutil.NewScriptedRunner()
	report, _ := runScripted(t, releaseGraph(true), runner, runcontext.Trigger{Branch: "main"})

	assert.Equal(t, verdict.Succeeded, report.Verdict)
	assert.Equal(t, []string{"build", "publish", "release", "test"}, runner.Ran())
}

func TestScenario_MatrixSiblingFailureSkipsDependentTemplate(t *testing.T) {
	t.Parallel()

	// --- Arrange ---
	p := &config.Pipeline{
		Name: "matrix",
		Jobs: []*config.Job{
			{
				Name:   "build",
				Matrix: &config.Matrix{Axes: []*config.Axis{{Name: "os", Values: []string{"linux", "windows"}}}},
				Steps:  step(),
			},
			{
				Name:   "test",
				Needs:  []string{"build"},
				Matrix: &config.Matrix{Axes: []*config.Axis{{Name: "os", Values: []string{"linux", "windows"}}}},
				Steps:  step(),
			},
		},
	}
	runner := testutil.NewScriptedRunner().Fail("build[os=windows]")

	// --- Act ---
	report, rec := runScripted(t, p, runner, runcontext.Trigger{})

	// --- Assert ---
	got := statuses(report)
	assert.Equal(t, node.StatusSucceeded, got["build[os=linux]"])
	assert.Equal(t, node.StatusFailed, got["build[os=windows]"])
	assert.Equal(t, node.StatusSkipped, got["test[os=linux]"])
	assert.Equal(t, node.StatusSkipped, got["test[os=windows]"])
	assert.NotContains(t, rec.Transitions(), "test[os=linux]:running")
	assert.NotContains(t, rec.Transitions(), "test[os=windows]:running")
	assert.Equal(t, verdict.Failed, report.Verdict)
}

func TestScenario_UpstreamOutputFlagGatesJob(t *testing.T) {
	t.Parallel()

	p := &config.Pipeline{
		Name: "flags",
		Jobs: []*config.Job{
			{Name: "release", Outputs: []string{"created"}, Steps: step()},
			{Name: "docs", Needs: []string{"release"}, Condition: `needs.release.outputs.created == "true"`, Steps: step()},
			{Name: "announce", Needs: []string{"release"}, Condition: `needs.release.outputs.created == "false"`, Steps: step()},
		},
	}
	runner := testutil.NewScriptedRunner().Outputs("release", map[string]string{"created": "true"})

	report, _ := runScripted(t, p, runner, runcontext.Trigger{})

	got := statuses(report)
	assert.Equal(t, node.StatusSucceeded, got["docs"])
	assert.Equal(t, node.StatusSkipped, got["announce"])
}
