package steprunner

import (
	"context"
	"fmt"
	"io"
	"time"

	"github.com/specialistvlad/pipegrid/internal/config"
)

// Runner executes the steps of one job instance. Implementations must
// honor ctx: a cancelled context ends the instance as failed.
type Runner interface {
	Run(ctx context.Context, req *Request) *Outcome
}

// LogSink opens the log stream of one step. secrets are the values to mask.
type LogSink interface {
	Open(instance string, stepIndex int, step string, secrets []string) (io.WriteCloser, error)
}

// Request is everything a runner needs to execute one instance.
type Request struct {
	Instance string
	Job      string
	Steps    []*config.Step
	// Env is the instance environment: pipeline and job env, matrix values,
	// trigger attributes and upstream outputs.
	Env map[string]string
	// Secrets holds resolved secret values by variable name.
	Secrets map[string]string
	// WorkDir is the base directory for relative step working directories.
	WorkDir string
}

// StepResult is the record of one step.
type StepResult struct {
	Index    int
	Name     string
	// ExitCode is the shell exit code, or -1 when the step is an action or
	// did not exit on its own.
	ExitCode int
	Duration time.Duration
	Err      error
	// Skipped is set for steps after a failed one.
	Skipped bool
}

// Outcome is the result of a whole instance. Err is nil on success.
type Outcome struct {
	Outputs map[string]string
	Steps   []StepResult
	Err     error
}

// StepFailure reports which step of an instance failed.
type StepFailure struct {
	Instance  string
	StepIndex int
	StepName  string
	ExitCode  int
	Err       error
}

func (e *StepFailure) Error() string {
	if e.ExitCode > 0 {
		return fmt.Sprintf("%s: step %d (%s) exited with code %d", e.Instance, e.StepIndex+1, e.StepName, e.ExitCode)
	}
	return fmt.Sprintf("%s: step %d (%s) failed: %v", e.Instance, e.StepIndex+1, e.StepName, e.Err)
}

func (e *StepFailure) Unwrap() error { return e.Err }
