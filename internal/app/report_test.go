package app

import (
	"bytes"
	"context"
	"testing"
	"time"

	"github.com/specialistvlad/pipegrid/internal/config"
	"github.com/specialistvlad/pipegrid/internal/dag"
	"github.com/specialistvlad/pipegrid/internal/node"
	"github.com/specialistvlad/pipegrid/internal/verdict"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRenderReport(t *testing.T) {
	r := &verdict.Report{
		Pipeline: "release",
		Verdict:  verdict.Failed,
		Instances: []verdict.InstanceReport{
			{Instance: "build[os=linux]", Status: node.StatusSucceeded, Duration: 1500 * time.Millisecond},
			{Instance: "build[os=windows]", Status: node.StatusFailed, Error: "exit status 1"},
			{Instance: "package", Status: node.StatusSkipped, Reason: "upstream job build resolved as failure"},
		},
		Failures: []string{"build[os=windows] failed: exit status 1"},
	}
	var buf bytes.Buffer

	require.NoError(t, RenderReport(&buf, r))

	out := buf.String()
	for _, want := range []string{
		"INSTANCE", "build[os=linux]", "succeeded", "1.5s",
		"build[os=windows]", "exit status 1",
		"package", "skipped", "upstream job build resolved as failure",
		"❌ release: FAILED",
		"  - build[os=windows] failed: exit status 1",
	} {
		assert.Contains(t, out, want)
	}
}

func TestRenderReport_Succeeded(t *testing.T) {
	var buf bytes.Buffer

	require.NoError(t, RenderReport(&buf, &verdict.Report{Pipeline: "ci", Verdict: verdict.Succeeded}))

	assert.Contains(t, buf.String(), "✅ ci: SUCCEEDED")
}

func TestRenderPlan_CountsExcludedCombinations(t *testing.T) {
	pipeline := &config.Pipeline{Name: "wheels", Jobs: []*config.Job{
		{Name: "lint", Steps: []*config.Step{{Run: "true"}}},
		{
			Name: "build",
			Matrix: &config.Matrix{
				Axes: []*config.Axis{
					{Name: "os", Values: []string{"linux", "windows"}},
					{Name: "python", Values: []string{"3.10", "3.11"}},
				},
				Exclude: []map[string]string{{"os": "windows", "python": "3.10"}},
			},
			Steps: []*config.Step{{Run: "true"}},
		},
	}}
	plan, err := dag.Build(context.Background(), pipeline)
	require.NoError(t, err)
	var buf bytes.Buffer

	require.NoError(t, RenderPlan(&buf, plan))

	assert.Contains(t, buf.String(), "build[os=linux,python=3.11]")
	assert.NotContains(t, buf.String(), "build[os=windows,python=3.10]")
	assert.Contains(t, buf.String(), "wheels: 2 jobs, 4 instances (1 excluded by matrix rules)")
}
