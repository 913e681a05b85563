package yaml_adapter

import (
	"bytes"
	"context"
	"fmt"
	"os"
	"path/filepath"
	"slices"
	"strings"
	"time"

	"github.com/specialistvlad/pipegrid/internal/config"
	"github.com/specialistvlad/pipegrid/internal/ctxlog"
	"github.com/tidwall/jsonc"
	"gopkg.in/yaml.v3"
)

// Extensions lists the file extensions this loader accepts.
var Extensions = []string{".yaml", ".yml", ".json", ".jsonc"}

// Loader is the YAML/JSON implementation of the config.Loader interface.
type Loader struct{}

// NewLoader creates a new YAML descriptor loader.
func NewLoader() *Loader {
	return &Loader{}
}

type document struct {
	Name string            `yaml:"name"`
	Env  map[string]string `yaml:"env"`
	Jobs yaml.Node         `yaml:"jobs"`
}

type jobDoc struct {
	Needs             []string          `yaml:"needs"`
	If                string            `yaml:"if"`
	Condition         string            `yaml:"condition"`
	Matrix            yaml.Node         `yaml:"matrix"`
	Outputs           []string          `yaml:"outputs"`
	Required          bool              `yaml:"required"`
	ContinueOnFailure bool              `yaml:"continue_on_failure"`
	FailFast          bool              `yaml:"fail_fast"`
	Timeout           string            `yaml:"timeout"`
	Env               map[string]string `yaml:"env"`
	Secrets           []string          `yaml:"secrets"`
	Steps             []stepDoc         `yaml:"steps"`
}

var jobKeys = []string{
	"needs", "if", "condition", "matrix", "outputs", "required", "continue_on_failure",
	"fail_fast", "timeout", "env", "secrets", "steps",
}

type stepDoc struct {
	Name       string            `yaml:"name"`
	Run        string            `yaml:"run"`
	Uses       string            `yaml:"uses"`
	With       map[string]string `yaml:"with"`
	Env        map[string]string `yaml:"env"`
	WorkingDir string            `yaml:"working_dir"`
}

// excludeKey is reserved inside a matrix mapping.
const excludeKey = "exclude"

// Load reads exactly one descriptor file.
func (l *Loader) Load(ctx context.Context, paths ...string) (*config.Pipeline, error) {
	logger := ctxlog.FromContext(ctx)
	if len(paths) != 1 {
		return nil, fmt.Errorf("yaml loader reads exactly one file, got %d paths", len(paths))
	}
	path := paths[0]
	logger.Debug("YAML loader started.", "path", path)

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading %s: %w", path, err)
	}
	switch filepath.Ext(path) {
	case ".json", ".jsonc":
		data = jsonc.ToJSON(data)
	}

	p, err := Parse(data, path)
	if err != nil {
		return nil, err
	}
	if p.Name == "" {
		base := filepath.Base(path)
		p.Name = strings.TrimSuffix(base, filepath.Ext(base))
	}
	logger.Debug("YAML loading complete.", "pipeline", p.Name, "jobs", len(p.Jobs))
	return p, nil
}

// Parse decodes a YAML or JSON document. filename only prefixes positions
// in errors and job sources.
func Parse(data []byte, filename string) (*config.Pipeline, error) {
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)

	var doc document
	if err := dec.Decode(&doc); err != nil {
		return nil, fmt.Errorf("failed to decode %s: %w", filename, err)
	}

	p := &config.Pipeline{Name: doc.Name, Env: doc.Env}
	if doc.Jobs.Kind == 0 {
		return p, nil
	}
	if doc.Jobs.Kind != yaml.MappingNode {
		return nil, fmt.Errorf("%s:%d: jobs must be a mapping of job name to job", filename, doc.Jobs.Line)
	}

	for i := 0; i+1 < len(doc.Jobs.Content); i += 2 {
		key, value := doc.Jobs.Content[i], doc.Jobs.Content[i+1]
		job, err := translateJob(filename, key, value)
		if err != nil {
			return nil, err
		}
		p.Jobs = append(p.Jobs, job)
	}
	return p, nil
}

func translateJob(filename string, key, value *yaml.Node) (*config.Job, error) {
	source := fmt.Sprintf("%s:%d", filename, key.Line)
	fail := func(format string, args ...any) (*config.Job, error) {
		return nil, fmt.Errorf("%s: job %q: %s", source, key.Value, fmt.Sprintf(format, args...))
	}

	if value.Kind != yaml.MappingNode {
		return fail("must be a mapping")
	}
	for i := 0; i < len(value.Content); i += 2 {
		if k := value.Content[i].Value; !slices.Contains(jobKeys, k) {
			return fail("unknown field %q on line %d", k, value.Content[i].Line)
		}
	}

	var jd jobDoc
	if err := value.Decode(&jd); err != nil {
		return fail("%v", err)
	}
	if jd.If != "" && jd.Condition != "" {
		return fail("set either if or condition, not both")
	}

	job := &config.Job{
		Name:              key.Value,
		Needs:             jd.Needs,
		Condition:         strings.TrimSpace(jd.If + jd.Condition),
		Outputs:           jd.Outputs,
		Required:          jd.Required,
		ContinueOnFailure: jd.ContinueOnFailure,
		FailFast:          jd.FailFast,
		Env:               jd.Env,
		Secrets:           jd.Secrets,
		Source:            source,
	}

	if jd.Timeout != "" {
		d, err := time.ParseDuration(jd.Timeout)
		if err != nil {
			return fail("invalid timeout %q: %v", jd.Timeout, err)
		}
		if d <= 0 {
			return fail("timeout must be positive, got %q", jd.Timeout)
		}
		job.Timeout = d
	}

	if jd.Matrix.Kind != 0 {
		m, err := translateMatrix(&jd.Matrix)
		if err != nil {
			return fail("matrix: %v", err)
		}
		job.Matrix = m
	}

	for _, s := range jd.Steps {
		job.Steps = append(job.Steps, &config.Step{
			Name:       s.Name,
			Run:        s.Run,
			Uses:       s.Uses,
			With:       s.With,
			Env:        s.Env,
			WorkingDir: s.WorkingDir,
		})
	}
	return job, nil
}

func translateMatrix(n *yaml.Node) (*config.Matrix, error) {
	if n.Kind != yaml.MappingNode {
		return nil, fmt.Errorf("must be a mapping of axis name to values")
	}
	m := &config.Matrix{}
	for i := 0; i+1 < len(n.Content); i += 2 {
		key, value := n.Content[i], n.Content[i+1]
		if key.Value == excludeKey {
			if err := value.Decode(&m.Exclude); err != nil {
				return nil, fmt.Errorf("exclude: %w", err)
			}
			continue
		}
		var values []string
		if err := value.Decode(&values); err != nil {
			return nil, fmt.Errorf("axis %q: %w", key.Value, err)
		}
		m.Axes = append(m.Axes, &config.Axis{Name: key.Value, Values: values})
	}
	return m, nil
}

var _ config.Loader = (*Loader)(nil)
