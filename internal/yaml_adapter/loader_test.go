package yaml_adapter

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
	"github.com/specialistvlad/pipegrid/internal/config"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const releaseYAML = `name: release
env: {PYTHONUNBUFFERED: "1"}
jobs:
  test:
    required: true
    timeout: 10m
    fail_fast: true
    matrix:
      python: [3.10, 3.11]
      os: [linux, windows]
      exclude:
        - {os: windows, python: 3.10}
    steps:
      - {name: unit, run: make test}
  build:
    needs: [test]
    outputs: [version]
    steps:
      - name: compile
        run: echo version=1.0 >> "$PIPEGRID_OUTPUT"
        env: {CGO_ENABLED: "0"}
  release:
    needs: [build]
    if: trigger.branch == "main"
    secrets: [REGISTRY_TOKEN]
    continue_on_failure: true
    steps:
      - {uses: output, with: {created: true}, working_dir: dist}
`

func writeFile(t *testing.T, name, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

func TestLoader_LoadYAML(t *testing.T) {
	// --- Arrange ---
	path := writeFile(t, "release.yaml", releaseYAML)

	// --- Act ---
	p, err := NewLoader().Load(context.Background(), path)

	// --- Assert ---
	require.NoError(t, err)
	assert.Equal(t, "release", p.Name)
	assert.Equal(t, map[string]string{"PYTHONUNBUFFERED": "1"}, p.Env)
	require.Len(t, p.Jobs, 3)
	assert.Equal(t, []string{"test", "build", "release"}, []string{p.Jobs[0].Name, p.Jobs[1].Name, p.Jobs[2].Name})

	wantTest := &config.Job{
		Name:     "test",
		Required: true,
		FailFast: true,
		Timeout:  10 * time.Minute,
		Matrix: &config.Matrix{
			Axes: []*config.Axis{
				{Name: "python", Values: []string{"3.10", "3.11"}},
				{Name: "os", Values: []string{"linux", "windows"}},
			},
			Exclude: []map[string]string{{"os": "windows", "python": "3.10"}},
		},
		Steps:  []*config.Step{{Name: "unit", Run: "make test"}},
		Source: path + ":4",
	}
	if diff := cmp.Diff(wantTest, p.Jobs[0]); diff != "" {
		t.Errorf("test job mismatch (-want +got):\n%s", diff)
	}

	build := p.Jobs[1]
	assert.Equal(t, []string{"version"}, build.Outputs)
	assert.Equal(t, map[string]string{"CGO_ENABLED": "0"}, build.Steps[0].Env)

	release := p.Jobs[2]
	assert.Equal(t, `trigger.branch == "main"`, release.Condition)
	assert.True(t, release.ContinueOnFailure)
	assert.Equal(t, []string{"REGISTRY_TOKEN"}, release.Secrets)
	assert.Equal(t, &config.Step{Uses: "output", With: map[string]string{"created": "true"}, WorkingDir: "dist"}, release.Steps[0])
}

func TestLoader_LoadJSONC(t *testing.T) {
	path := writeFile(t, "deploy.jsonc", `{
  // jobs run in declaration order
  "jobs": {
    "deploy": {"steps": [{"run": "true"}],},
    "verify": {"needs": ["deploy"], "condition": "needs.deploy.result == \"success\"", "steps": [{"run": "true"}]},
  },
}`)

	p, err := NewLoader().Load(context.Background(), path)

	require.NoError(t, err)
	assert.Equal(t, "deploy", p.Name)
	require.Len(t, p.Jobs, 2)
	assert.Equal(t, "deploy", p.Jobs[0].Name)
	assert.Equal(t, `needs.deploy.result == "success"`, p.Jobs[1].Condition)
	assert.Equal(t, path+":4", p.Jobs[0].Source)
}

func TestParse_Errors(t *testing.T) {
	testCases := []struct {
		name    string
		doc     string
		wantErr string
	}{
		{"unknown top-level field", "name: x\nstages: []\n", "field stages not found"},
		{"jobs not a mapping", "jobs: [a, b]\n", "jobs must be a mapping"},
		{"unknown job field", "jobs:\n  a:\n    retries: 3\n", `job "a": unknown field "retries" on line 3`},
		{"if and condition", "jobs:\n  a:\n    if: x\n    condition: y\n", "set either if or condition"},
		{"bad timeout", "jobs:\n  a:\n    timeout: soon\n", `invalid timeout "soon"`},
		{"matrix not a mapping", "jobs:\n  a:\n    matrix: [1]\n", "matrix: must be a mapping"},
		{"axis not a list", "jobs:\n  a:\n    matrix:\n      os: linux\n", `matrix: axis "os"`},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := Parse([]byte(tc.doc), "p.yaml")

			require.Error(t, err)
			assert.Contains(t, err.Error(), tc.wantErr)
		})
	}
}

func TestLoader_RequiresSinglePath(t *testing.T) {
	_, err := NewLoader().Load(context.Background(), "a.yaml", "b.yaml")

	assert.ErrorContains(t, err, "exactly one file")
}
