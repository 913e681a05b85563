// Package verdict folds the final state of a run into a single pass/fail
// decision and a report of how it was reached.
package verdict

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/specialistvlad/pipegrid/internal/graph"
	"github.com/specialistvlad/pipegrid/internal/node"
	"github.com/specialistvlad/pipegrid/internal/steprunner"
)

// Verdict is the overall result of a run.
type Verdict string

const (
	Succeeded Verdict = "succeeded"
	Failed    Verdict = "failed"
)

// InstanceReport is the final state of one instance.
type InstanceReport struct {
	Instance string            `json:"instance"`
	Job      string            `json:"job"`
	Status   node.Status       `json:"status"`
	Reason   string            `json:"reason,omitempty"`
	Error    string            `json:"error,omitempty"`
	// FailedStep is set when a step of the instance failed, as opposed to
	// a failure before any step ran.
	FailedStep *FailedStep       `json:"failed_step,omitempty"`
	Duration   time.Duration     `json:"duration"`
	Outputs    map[string]string `json:"outputs,omitempty"`
}

// FailedStep identifies the step that failed an instance. Index is 1-based.
type FailedStep struct {
	Index    int    `json:"index"`
	Name     string `json:"name"`
	ExitCode int    `json:"exit_code"`
}

// JobReport is the aggregate outcome of one template.
type JobReport struct {
	Job       string       `json:"job"`
	Outcome   node.Outcome `json:"outcome"`
	Required  bool         `json:"required"`
	Instances int          `json:"instances"`
}

// Report is the result of a finished run.
type Report struct {
	RunID       string           `json:"run_id"`
	Pipeline    string           `json:"pipeline"`
	Verdict     Verdict          `json:"verdict"`
	Aborted     bool             `json:"aborted"`
	AbortReason string           `json:"abort_reason,omitempty"`
	Jobs        []JobReport      `json:"jobs"`
	Instances   []InstanceReport `json:"instances"`
	// Failures explains a Failed verdict, one line per cause.
	Failures []string `json:"failures,omitempty"`
	Started  time.Time `json:"started"`
	Finished time.Time `json:"finished"`
}

// Aggregate builds the report of a run whose instances are all terminal.
// The verdict is Succeeded iff no instance failed, every instance of every
// required job succeeded, and the run was not aborted.
func Aggregate(ctx context.Context, runID string, g graph.Graph, abortReason string) *Report {
	plan := g.Plan()
	r := &Report{
		RunID:       runID,
		Pipeline:    plan.Name(),
		Aborted:     abortReason != "",
		AbortReason: abortReason,
	}

	states := g.Snapshot(ctx)
	byJob := make(map[string][]node.Status)
	for _, st := range states {
		ir := InstanceReport{
			Instance: st.Instance.Key(),
			Job:      st.Instance.Job.Name,
			Status:   st.Status,
			Reason:   st.Reason,
			Duration: st.Timing.Duration(),
			Outputs:  st.Outputs,
		}
		if st.Err != nil {
			ir.Error = st.Err.Error()
			var sf *steprunner.StepFailure
			if errors.As(st.Err, &sf) {
				ir.FailedStep = &FailedStep{Index: sf.StepIndex + 1, Name: sf.StepName, ExitCode: sf.ExitCode}
			}
		}
		r.Instances = append(r.Instances, ir)
		byJob[ir.Job] = append(byJob[ir.Job], st.Status)

		if !st.Timing.Started.IsZero() && (r.Started.IsZero() || st.Timing.Started.Before(r.Started)) {
			r.Started = st.Timing.Started
		}
		if st.Timing.Finished.After(r.Finished) {
			r.Finished = st.Timing.Finished
		}

		switch {
		case st.Status == node.StatusFailed:
			r.Failures = append(r.Failures, fmt.Sprintf("%s failed: %s", ir.Instance, ir.Error))
		case st.Instance.Job.Required && st.Status != node.StatusSucceeded:
			r.Failures = append(r.Failures, fmt.Sprintf("required %s did not succeed (%s: %s)", ir.Instance, st.Status, st.Reason))
		}
	}

	for _, tmpl := range plan.Templates() {
		r.Jobs = append(r.Jobs, JobReport{
			Job:       tmpl.Name(),
			Outcome:   node.Aggregate(byJob[tmpl.Name()]),
			Required:  tmpl.Job.Required,
			Instances: len(tmpl.Instances),
		})
	}

	if r.Aborted {
		r.Failures = append(r.Failures, "run aborted: "+abortReason)
	}
	r.Verdict = Succeeded
	if len(r.Failures) > 0 {
		r.Verdict = Failed
	}
	return r
}

// ExitCode maps the verdict to a process exit code.
func (r *Report) ExitCode() int {
	if r.Verdict == Succeeded {
		return 0
	}
	return 1
}

// Counts returns how many instances ended in each status.
func (r *Report) Counts() map[node.Status]int {
	counts := make(map[node.Status]int)
	for _, ir := range r.Instances {
		counts[ir.Status]++
	}
	return counts
}
