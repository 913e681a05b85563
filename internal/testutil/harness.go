package testutil

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/specialistvlad/pipegrid/internal/app"
	"github.com/specialistvlad/pipegrid/internal/registry"
	"github.com/specialistvlad/pipegrid/internal/verdict"
	"github.com/specialistvlad/pipegrid/modules/env"
	"github.com/specialistvlad/pipegrid/modules/output"
	"github.com/specialistvlad/pipegrid/modules/print"
	"github.com/stretchr/testify/require"
)

// HarnessResult holds the outcomes of an integration test run.
type HarnessResult struct {
	Report *verdict.Report
	// Output is what the run rendered for the user.
	Output string
	// LogOutput is the debug log of the run.
	LogOutput string
	Err       error
	App       *app.App
}

// Harness describes one integration run.
type Harness struct {
	// Files maps paths relative to a temporary root to their content.
	Files map[string]string
	// Descriptor is the path, relative to the root, handed to the app.
	// Empty means the root itself, which suits multi-file HCL layouts.
	Descriptor string
	// Config is used as a template; DescriptorPath is filled in.
	Config app.Config
	// Modules are registered on top of print, output and env.
	Modules []registry.Module
}

// RunIntegrationTest provides a standardized harness for running integration tests
// using a default background context.
func RunIntegrationTest(t *testing.T, h Harness) *HarnessResult {
	t.Helper()
	return RunIntegrationTestWithContext(context.Background(), t, h)
}

// RunIntegrationTestWithContext runs a pipeline through the full app with a
// caller-provided context.
func RunIntegrationTestWithContext(ctx context.Context, t *testing.T, h Harness) *HarnessResult {
	t.Helper()

	root := t.TempDir()
	for name, content := range h.Files {
		path := filepath.Join(root, name)
		require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o755))
		require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	}

	cfg := h.Config
	cfg.DescriptorPath = filepath.Join(root, h.Descriptor)
	if cfg.WorkDir == "" {
		cfg.WorkDir = root
	}

	modules := append([]registry.Module{&print.Module{}, &output.Module{}, &env.Module{}}, h.Modules...)
	testApp, out, logs := app.SetupAppTest(t, &cfg, modules...)

	report, err := testApp.Run(ctx)
	return &HarnessResult{
		Report:    report,
		Output:    out.String(),
		LogOutput: logs.String(),
		Err:       err,
		App:       testApp,
	}
}
