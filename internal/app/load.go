package app

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"slices"

	"github.com/specialistvlad/pipegrid/internal/config"
	"github.com/specialistvlad/pipegrid/internal/ctxlog"
	"github.com/specialistvlad/pipegrid/internal/dag"
	"github.com/specialistvlad/pipegrid/internal/hcl_adapter"
	"github.com/specialistvlad/pipegrid/internal/yaml_adapter"
)

// loaderFor picks the descriptor loader for a path. Directories and .hcl
// files go to the HCL loader.
func loaderFor(path string) (config.Loader, error) {
	info, err := os.Stat(path)
	if err != nil {
		return nil, fmt.Errorf("error accessing descriptor %s: %w", path, err)
	}
	if info.IsDir() {
		return hcl_adapter.NewLoader(), nil
	}
	ext := filepath.Ext(path)
	switch {
	case ext == ".hcl":
		return hcl_adapter.NewLoader(), nil
	case slices.Contains(yaml_adapter.Extensions, ext):
		return yaml_adapter.NewLoader(), nil
	}
	return nil, fmt.Errorf("unsupported descriptor format %q", ext)
}

// LoadPlan loads the descriptor, checks every `uses` against the registry
// and builds the execution plan.
func (a *App) LoadPlan(ctx context.Context) (*dag.Plan, error) {
	ctx = ctxlog.WithLogger(ctx, a.logger)
	a.logger.Debug("Loading descriptor...", "path", a.config.DescriptorPath)

	loader, err := loaderFor(a.config.DescriptorPath)
	if err != nil {
		return nil, err
	}
	p, err := loader.Load(ctx, a.config.DescriptorPath)
	if err != nil {
		return nil, fmt.Errorf("failed to load descriptor: %w", err)
	}
	a.logger.Debug("Descriptor loaded.", "pipeline", p.Name, "jobs", len(p.Jobs))

	if err := a.registry.ValidatePipeline(p); err != nil {
		return nil, err
	}

	plan, err := dag.Build(ctx, p)
	if err != nil {
		return nil, err
	}
	a.logger.Info("📋 Execution plan ready.", "pipeline", plan.Name(), "jobs", len(plan.Templates()), "instances", len(plan.Instances()))
	return plan, nil
}
