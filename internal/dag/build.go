package dag

import (
	"context"
	"errors"
	"fmt"
	"slices"

	"github.com/specialistvlad/pipegrid/internal/condition"
	"github.com/specialistvlad/pipegrid/internal/config"
	"github.com/specialistvlad/pipegrid/internal/ctxlog"
	"github.com/specialistvlad/pipegrid/internal/inmemorytopology"
	"github.com/specialistvlad/pipegrid/internal/matrix"
	"github.com/specialistvlad/pipegrid/internal/node"
	"github.com/specialistvlad/pipegrid/internal/nodeid"
	"github.com/specialistvlad/pipegrid/internal/topologystore"
)

// Build validates a pipeline descriptor and expands it into a Plan.
func Build(ctx context.Context, p *config.Pipeline) (*Plan, error) {
	logger := ctxlog.FromContext(ctx)
	logger.Debug("Building execution plan.", "pipeline", p.Name, "jobs", len(p.Jobs))

	if len(p.Jobs) == 0 {
		return nil, &DescriptorError{Violation: ViolationEmpty, Detail: "descriptor declares no jobs"}
	}

	store := inmemorytopology.New()
	if err := addJobs(ctx, store, p.Jobs); err != nil {
		return nil, err
	}
	if err := addDependencies(ctx, store, p.Jobs); err != nil {
		return nil, err
	}
	if err := detectCycle(ctx, store); err != nil {
		return nil, err
	}
	logger.Debug("Dependency graph is acyclic.")

	plan := &Plan{
		name:      p.Name,
		env:       p.Env,
		templates: make(map[string]*Template, len(p.Jobs)),
		byKey:     make(map[string]*node.Instance),
	}

	for _, job := range store.AllJobs(ctx) {
		tmpl, err := buildTemplate(ctx, store, job)
		if err != nil {
			return nil, err
		}
		plan.order = append(plan.order, job.Name)
		plan.templates[job.Name] = tmpl
	}

	for _, name := range plan.order {
		for _, inst := range plan.templates[name].Instances {
			inst.Ordinal = len(plan.instances)
			plan.instances = append(plan.instances, inst)
			plan.byKey[inst.Key()] = inst
		}
	}
	plan.topoOrder = topologicalOrder(ctx, store)

	logger.Debug("Execution plan built.", "templates", len(plan.order), "instances", len(plan.instances))
	return plan, nil
}

func addJobs(ctx context.Context, store topologystore.Store, jobs []*config.Job) error {
	for _, job := range jobs {
		if !nodeid.ValidName(job.Name) {
			return &DescriptorError{Job: job.Name, Violation: ViolationInvalidName,
				Detail: "names must start with a letter or underscore and contain only letters, digits, '_' or '-'"}
		}
		if err := store.AddJob(ctx, job); err != nil {
			if errors.Is(err, topologystore.ErrDuplicateJob) {
				return &DescriptorError{Job: job.Name, Violation: ViolationDuplicateName,
					Detail: "job is declared more than once", Err: err}
			}
			return err
		}
	}
	return nil
}

func addDependencies(ctx context.Context, store topologystore.Store, jobs []*config.Job) error {
	for _, job := range jobs {
		for _, need := range job.Needs {
			if need == job.Name {
				return &DescriptorError{Job: job.Name, Violation: ViolationSelfCycle, Detail: "job needs itself"}
			}
			if err := store.AddDependency(ctx, need, job.Name); err != nil {
				if errors.Is(err, topologystore.ErrUnknownJob) {
					return &DescriptorError{Job: job.Name, Violation: ViolationUnknownDependency,
						Detail: fmt.Sprintf("needs %q, which is not declared", need), Err: err}
				}
				return err
			}
		}
	}
	return nil
}

func buildTemplate(ctx context.Context, store topologystore.Store, job *config.Job) (*Template, error) {
	needs, err := store.DependenciesOf(ctx, job.Name)
	if err != nil {
		return nil, err
	}
	dependents, err := store.DependentsOf(ctx, job.Name)
	if err != nil {
		return nil, err
	}

	if err := validateSteps(job); err != nil {
		return nil, err
	}
	if err := validateOutputs(job); err != nil {
		return nil, err
	}

	tmpl := &Template{Job: job, Needs: needs, Dependents: dependents}

	if job.Condition != "" {
		expr, err := compileCondition(job, needs)
		if err != nil {
			return nil, err
		}
		tmpl.Condition = expr
	}

	addrs, err := matrix.Expand(job)
	if err != nil {
		var expErr *matrix.ExpansionError
		if errors.As(err, &expErr) {
			return nil, &DescriptorError{Job: job.Name, Violation: ViolationInvalidMatrix, Detail: expErr.Reason, Err: err}
		}
		return nil, err
	}
	for _, addr := range addrs {
		tmpl.Instances = append(tmpl.Instances, &node.Instance{ID: addr, Job: job})
	}
	return tmpl, nil
}

func compileCondition(job *config.Job, needs []string) (*condition.Expression, error) {
	expr, err := condition.Compile(job.Condition)
	if err != nil {
		return nil, &DescriptorError{Job: job.Name, Violation: ViolationInvalidCondition, Detail: err.Error(), Err: err}
	}

	for _, ref := range expr.NeedsJobs() {
		if !slices.Contains(needs, ref) {
			return nil, &DescriptorError{Job: job.Name, Violation: ViolationInvalidCondition,
				Detail: fmt.Sprintf("condition reads needs.%s but %q is not listed in needs", ref, ref)}
		}
	}

	axes := job.Matrix.AxisNames()
	for _, ref := range expr.References() {
		if ref.Root() != "matrix" || len(ref.Path) < 2 {
			continue
		}
		if !slices.Contains(axes, ref.Path[1].Name) {
			return nil, &DescriptorError{Job: job.Name, Violation: ViolationInvalidCondition,
				Detail: fmt.Sprintf("condition reads %s but the job has no such axis", ref)}
		}
	}
	return expr, nil
}

func validateSteps(job *config.Job) error {
	if len(job.Steps) == 0 {
		return &DescriptorError{Job: job.Name, Violation: ViolationInvalidStep, Detail: "job has no steps"}
	}
	for i, step := range job.Steps {
		hasRun, hasUses := step.Run != "", step.Uses != ""
		if hasRun == hasUses {
			return &DescriptorError{Job: job.Name, Violation: ViolationInvalidStep,
				Detail: fmt.Sprintf("%s must set exactly one of run or uses", step.DisplayName(i))}
		}
		if hasRun && len(step.With) > 0 {
			return &DescriptorError{Job: job.Name, Violation: ViolationInvalidStep,
				Detail: fmt.Sprintf("%s sets with without uses", step.DisplayName(i))}
		}
	}
	return nil
}

func validateOutputs(job *config.Job) error {
	seen := make(map[string]struct{}, len(job.Outputs))
	for _, out := range job.Outputs {
		if !nodeid.ValidName(out) {
			return &DescriptorError{Job: job.Name, Violation: ViolationInvalidOutput, Detail: fmt.Sprintf("invalid output name %q", out)}
		}
		if _, dup := seen[out]; dup {
			return &DescriptorError{Job: job.Name, Violation: ViolationInvalidOutput, Detail: fmt.Sprintf("output %q declared twice", out)}
		}
		seen[out] = struct{}{}
	}
	return nil
}
