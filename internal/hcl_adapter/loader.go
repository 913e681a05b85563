package hcl_adapter

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/hashicorp/hcl/v2/gohcl"
	"github.com/hashicorp/hcl/v2/hclparse"
	"github.com/specialistvlad/pipegrid/internal/config"
	"github.com/specialistvlad/pipegrid/internal/ctxlog"
	"github.com/specialistvlad/pipegrid/internal/fsutil"
)

// Loader is the HCL-specific implementation of the config.Loader interface.
type Loader struct{}

// NewLoader creates a new HCL descriptor loader.
func NewLoader() *Loader {
	return &Loader{}
}

// Load parses every .hcl file under the given paths and merges their blocks
// into one pipeline. Directories are walked recursively in lexical order;
// jobs keep the order in which they appear.
func (l *Loader) Load(ctx context.Context, paths ...string) (*config.Pipeline, error) {
	logger := ctxlog.FromContext(ctx)
	logger.Debug("HCL loader started.", "path_count", len(paths))

	hclFiles, err := l.findAllHCLFiles(paths)
	if err != nil {
		return nil, err
	}
	if len(hclFiles) == 0 {
		return nil, fmt.Errorf("no .hcl files found in %s", strings.Join(paths, ", "))
	}
	logger.Debug("Discovered HCL files.", "count", len(hclFiles))

	p := &config.Pipeline{}
	pipelineSeen := ""
	parser := hclparse.NewParser()

	for _, path := range hclFiles {
		file, diags := parser.ParseHCLFile(path)
		if diags.HasErrors() {
			return nil, fmt.Errorf("failed to parse HCL file %s: %w", path, diags)
		}

		var root fileRoot
		if diags := gohcl.DecodeBody(file.Body, nil, &root); diags.HasErrors() {
			return nil, fmt.Errorf("failed to decode HCL file %s: %w", path, diags)
		}

		for _, pb := range root.Pipelines {
			if pipelineSeen != "" {
				return nil, fmt.Errorf("%s: pipeline block already declared in %s", path, pipelineSeen)
			}
			pipelineSeen = path
			p.Name = pb.Name
			p.Env = pb.Env
		}

		ranges := jobRanges(file)
		for _, jb := range root.Jobs {
			source, ok := ranges[jb.Name]
			if !ok {
				source = path
			}
			job, err := l.translateJob(ctx, file, jb, source)
			if err != nil {
				return nil, err
			}
			p.Jobs = append(p.Jobs, job)
		}
	}

	if p.Name == "" {
		p.Name = defaultName(paths[0])
	}
	logger.Debug("HCL loading complete.", "pipeline", p.Name, "jobs", len(p.Jobs))
	return p, nil
}

// findAllHCLFiles walks all given paths and returns a flat list of all .hcl
// files found. A path that does not exist is an error.
func (l *Loader) findAllHCLFiles(paths []string) ([]string, error) {
	var allFiles []string
	seen := make(map[string]struct{})

	for _, path := range paths {
		info, err := os.Stat(path)
		if err != nil {
			return nil, fmt.Errorf("error accessing path %s: %w", path, err)
		}

		var found []string
		if info.IsDir() {
			found, err = fsutil.FindFilesByExtension(path, ".hcl")
			if err != nil {
				return nil, err
			}
		} else if filepath.Ext(path) == ".hcl" {
			found = []string{path}
		} else {
			return nil, fmt.Errorf("%s is not an .hcl file", path)
		}

		for _, f := range found {
			if _, wasSeen := seen[f]; !wasSeen {
				allFiles = append(allFiles, f)
				seen[f] = struct{}{}
			}
		}
	}
	return allFiles, nil
}

// defaultName derives a pipeline name from the descriptor path.
func defaultName(path string) string {
	base := filepath.Base(filepath.Clean(path))
	return strings.TrimSuffix(base, filepath.Ext(base))
}

var _ config.Loader = (*Loader)(nil)
