package builder

import (
	"context"
	"fmt"
	"maps"
	"strings"

	"github.com/specialistvlad/pipegrid/internal/ctxlog"
	"github.com/specialistvlad/pipegrid/internal/dag"
	"github.com/specialistvlad/pipegrid/internal/node"
	"github.com/specialistvlad/pipegrid/internal/runcontext"
	"github.com/specialistvlad/pipegrid/internal/steprunner"
)

// Builder resolves requests for the instances of one run.
type Builder struct {
	plan    *dag.Plan
	rc      *runcontext.Context
	workDir string
}

// New creates a builder. workDir is the base directory of every step.
func New(plan *dag.Plan, rc *runcontext.Context, workDir string) *Builder {
	return &Builder{plan: plan, rc: rc, workDir: workDir}
}

// Build returns the request for inst. It fails when a declared secret
// cannot be resolved.
func (b *Builder) Build(ctx context.Context, inst *node.Instance) (*steprunner.Request, error) {
	job := inst.Job
	env := make(map[string]string)
	maps.Copy(env, b.rc.Env())
	maps.Copy(env, job.Env)

	trigger := b.rc.Trigger()
	env["PIPEGRID_RUN_ID"] = b.rc.RunID()
	env["PIPEGRID_PIPELINE"] = b.plan.Name()
	env["PIPEGRID_JOB"] = job.Name
	env["PIPEGRID_INSTANCE"] = inst.Key()
	env["PIPEGRID_BRANCH"] = trigger.Branch
	env["PIPEGRID_COMMIT"] = trigger.Commit
	env["PIPEGRID_REF"] = trigger.Ref
	env["PIPEGRID_EVENT"] = trigger.Event

	for _, binding := range inst.ID.Bindings {
		env[EnvName("MATRIX", binding.Axis)] = binding.Value
	}

	for _, need := range job.Needs {
		upstream, ok := b.plan.Template(need)
		if !ok {
			continue
		}
		for _, up := range upstream.Instances {
			prefix := []string{"NEEDS", need}
			if up.ID.IsMatrix() {
				prefix = append(prefix, strings.Join(bindingValues(up), "_"))
			}
			for k, v := range b.rc.Outputs(up.Key()) {
				env[EnvName(append(prefix, k)...)] = v
			}
		}
	}

	secrets := make(map[string]string, len(job.Secrets))
	for _, name := range job.Secrets {
		handle, ok := b.rc.Secret(name)
		if !ok {
			handle = runcontext.SecretHandle{Name: name, Source: name}
		}
		v, ok := handle.Resolve()
		if !ok {
			return nil, fmt.Errorf("secret %s is not available to %s", name, inst.Key())
		}
		secrets[name] = v
	}

	ctxlog.FromContext(ctx).Debug("Request built.", "instance", inst.Key(), "env_vars", len(env), "secrets", len(secrets))
	return &steprunner.Request{
		Instance: inst.Key(),
		Job:      job.Name,
		Steps:    job.Steps,
		Env:      env,
		Secrets:  secrets,
		WorkDir:  b.workDir,
	}, nil
}

func bindingValues(inst *node.Instance) []string {
	values := make([]string, len(inst.ID.Bindings))
	for i, b := range inst.ID.Bindings {
		values[i] = b.Value
	}
	return values
}

// EnvName joins parts with '_' into an environment variable name.
func EnvName(parts ...string) string {
	joined := strings.ToUpper(strings.Join(parts, "_"))
	return strings.Map(func(r rune) rune {
		if (r >= 'A' && r <= 'Z') || (r >= '0' && r <= '9') || r == '_' {
			return r
		}
		return '_'
	}, joined)
}
