package hcl_adapter

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/hashicorp/hcl/v2"
	"github.com/specialistvlad/pipegrid/internal/config"
)

func (l *Loader) translateJob(ctx context.Context, file *hcl.File, b *jobBlock, source string) (*config.Job, error) {
	job := &config.Job{
		Name:              b.Name,
		Needs:             b.Needs,
		Outputs:           b.Outputs,
		Env:               b.Env,
		Secrets:           b.Secrets,
		Required:          b.Required,
		ContinueOnFailure: b.ContinueOnFailure,
		FailFast:          b.FailFast,
		Source:            source,
	}

	if isExprDefined(ctx, b.Condition, "condition") {
		src := b.Condition.Range().SliceBytes(file.Bytes)
		job.Condition = strings.TrimSpace(string(src))
	}

	if b.Timeout != "" {
		d, err := time.ParseDuration(b.Timeout)
		if err != nil {
			return nil, fmt.Errorf("%s: job %q: invalid timeout %q: %w", source, b.Name, b.Timeout, err)
		}
		if d <= 0 {
			return nil, fmt.Errorf("%s: job %q: timeout must be positive, got %q", source, b.Name, b.Timeout)
		}
		job.Timeout = d
	}

	if b.Matrix != nil {
		job.Matrix = translateMatrix(b.Matrix)
	}

	for _, s := range b.Steps {
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

func translateMatrix(b *matrixBlock) *config.Matrix {
	m := &config.Matrix{Exclude: b.Exclude}
	for _, a := range b.Axes {
		m.Axes = append(m.Axes, &config.Axis{Name: a.Name, Values: a.Values})
	}
	return m
}
