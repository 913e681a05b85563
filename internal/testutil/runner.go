package testutil

import (
	"context"
	"errors"
	"maps"
	"slices"
	"sync"

	"github.com/specialistvlad/pipegrid/internal/steprunner"
)

// ScriptedRunner is a steprunner.Runner that never executes anything. Each
// instance succeeds with its scripted outputs unless it is listed in Fail.
type ScriptedRunner struct {
	mu      sync.Mutex
	fail    map[string]bool
	outputs map[string]map[string]string
	ran     []string
}

// NewScriptedRunner creates a runner where every instance succeeds.
func NewScriptedRunner() *ScriptedRunner {
	return &ScriptedRunner{
		fail:    make(map[string]bool),
		outputs: make(map[string]map[string]string),
	}
}

// Fail makes the first step of the given instances fail.
func (r *ScriptedRunner) Fail(instances ...string) *ScriptedRunner {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, inst := range instances {
		r.fail[inst] = true
	}
	return r
}

// Outputs scripts the outputs an instance produces on success.
func (r *ScriptedRunner) Outputs(instance string, outputs map[string]string) *ScriptedRunner {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.outputs[instance] = maps.Clone(outputs)
	return r
}

// Run implements steprunner.Runner.
func (r *ScriptedRunner) Run(ctx context.Context, req *steprunner.Request) *steprunner.Outcome {
	r.mu.Lock()
	r.ran = append(r.ran, req.Instance)
	fail := r.fail[req.Instance]
	outputs := maps.Clone(r.outputs[req.Instance])
	r.mu.Unlock()

	if err := ctx.Err(); err != nil {
		return &steprunner.Outcome{Err: &steprunner.StepFailure{Instance: req.Instance, StepName: "step 1", ExitCode: -1, Err: err}}
	}
	if fail {
		return &steprunner.Outcome{Err: &steprunner.StepFailure{
			Instance: req.Instance,
			StepName: "step 1",
			ExitCode: 1,
			Err:      errors.New("scripted failure"),
		}}
	}
	if outputs == nil {
		outputs = make(map[string]string)
	}
	return &steprunner.Outcome{Outputs: outputs}
}

// Ran returns the instances the runner was asked to run, sorted.
func (r *ScriptedRunner) Ran() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	ran := slices.Clone(r.ran)
	slices.Sort(ran)
	return ran
}
