package hcl_adapter

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

func writeFile(t *testing.T, dir, name, content string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o755))
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

const releaseHCL = `
pipeline {
  name = "release"
  env  = { PYTHONUNBUFFERED = "1" }
}

job "build" {
  required = true
  timeout  = "15m"
  secrets  = ["REGISTRY_TOKEN"]
  outputs  = ["version"]

  matrix {
    axis "os"     { values = ["linux", "windows"] }
    axis "python" { values = ["3.10", "3.11"] }
    exclude = [{ os = "windows", python = "3.10" }]
  }

  step "compile" {
    run = "make build PY=$MATRIX_PYTHON"
    env = { CGO_ENABLED = "0" }
  }
}

job "release" {
  needs     = ["build"]
  condition = trigger.branch == "main" && needs.build.result == "success"

  step "tag" {
    uses        = "output"
    with        = { created = "true" }
    working_dir = "dist"
  }
}
`

func TestLoader_Load(t *testing.T) {
	// --- Arrange ---
	dir := t.TempDir()
	path := writeFile(t, dir, "release.hcl", releaseHCL)

	// --- Act ---
	p, err := NewLoader().Load(context.Background(), path)

	// --- Assert ---
	require.NoError(t, err)
	assert.Equal(t, "release", p.Name)
	assert.Equal(t, map[string]string{"PYTHONUNBUFFERED": "1"}, p.Env)
	require.Len(t, p.Jobs, 2)

	build := p.Jobs[0]
	want := &config.Job{
		Name:     "build",
		Outputs:  []string{"version"},
		Secrets:  []string{"REGISTRY_TOKEN"},
		Required: true,
		Timeout:  15 * time.Minute,
		Matrix: &config.Matrix{
			Axes: []*config.Axis{
				{Name: "os", Values: []string{"linux", "windows"}},
				{Name: "python", Values: []string{"3.10", "3.11"}},
			},
			Exclude: []map[string]string{{"os": "windows", "python": "3.10"}},
		},
		Steps: []*config.Step{
			{Name: "compile", Run: "make build PY=$MATRIX_PYTHON", Env: map[string]string{"CGO_ENABLED": "0"}},
		},
		Source: path + ":7",
	}
	if diff := cmp.Diff(want, build); diff != "" {
		t.Errorf("build job mismatch (-want +got):\n%s", diff)
	}

	release := p.Jobs[1]
	assert.Equal(t, []string{"build"}, release.Needs)
	assert.Equal(t, `trigger.branch == "main" && needs.build.result == "success"`, release.Condition)
	require.Len(t, release.Steps, 1)
	assert.Equal(t, "output", release.Steps[0].Uses)
	assert.Equal(t, map[string]string{"created": "true"}, release.Steps[0].With)
	assert.Equal(t, "dist", release.Steps[0].WorkingDir)
}

func TestLoader_LoadDirectoryMergesFilesInOrder(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, dir, "a_build.hcl", `job "build" { step "s" { run = "true" } }`)
	writeFile(t, dir, "b/deploy.hcl", `job "deploy" {
  needs = ["build"]
  step "s" { run = "true" }
}`)
	writeFile(t, dir, "README.md", "ignored")

	p, err := NewLoader().Load(context.Background(), dir)

	require.NoError(t, err)
	assert.Equal(t, filepath.Base(dir), p.Name)
	require.Len(t, p.Jobs, 2)
	assert.Equal(t, "build", p.Jobs[0].Name)
	assert.Equal(t, "deploy", p.Jobs[1].Name)
	assert.Empty(t, p.Jobs[0].Condition)
	assert.Nil(t, p.Jobs[0].Matrix)
}

func TestLoader_Errors(t *testing.T) {
	testCases := []struct {
		name    string
		files   map[string]string
		wantErr string
	}{
		{
			name:    "syntax error",
			files:   map[string]string{"main.hcl": `job "a" {`},
			wantErr: "failed to parse HCL file",
		},
		{
			name:    "unknown attribute",
			files:   map[string]string{"main.hcl": `job "a" { retries = 3 }`},
			wantErr: "failed to decode HCL file",
		},
		{
			name:    "invalid timeout",
			files:   map[string]string{"main.hcl": `job "a" { timeout = "soon" }`},
			wantErr: `job "a": invalid timeout "soon"`,
		},
		{
			name:    "negative timeout",
			files:   map[string]string{"main.hcl": `job "a" { timeout = "-1s" }`},
			wantErr: "timeout must be positive",
		},
		{
			name: "two pipeline blocks",
			files: map[string]string{
				"a.hcl": `pipeline { name = "a" }`,
				"b.hcl": `pipeline { name = "b" }`,
			},
			wantErr: "pipeline block already declared",
		},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			dir := t.TempDir()
			for name, content := range tc.files {
				writeFile(t, dir, name, content)
			}

			_, err := NewLoader().Load(context.Background(), dir)

			require.Error(t, err)
			assert.Contains(t, err.Error(), tc.wantErr)
		})
	}
}

func TestLoader_MissingPath(t *testing.T) {
	_, err := NewLoader().Load(context.Background(), filepath.Join(t.TempDir(), "missing.hcl"))

	assert.ErrorContains(t, err, "error accessing path")
}

func TestLoader_EmptyDirectory(t *testing.T) {
	_, err := NewLoader().Load(context.Background(), t.TempDir())

	assert.ErrorContains(t, err, "no .hcl files found")
}
