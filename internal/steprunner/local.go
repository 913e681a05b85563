package steprunner

import (
	"context"
	"errors"
	"fmt"
	"io"
	"maps"
	"os"
	"os/exec"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/specialistvlad/pipegrid/internal/config"
	"github.com/specialistvlad/pipegrid/internal/ctxlog"
	"github.com/specialistvlad/pipegrid/internal/registry"
)

// OutputEnv names the variable holding the path of a shell step's output file.
const OutputEnv = "PIPEGRID_OUTPUT"

// Local runs steps as local processes and in-process actions.
type Local struct {
	registry *registry.Registry
	logs     LogSink
	// Shell is the interpreter for run steps, resolved through PATH.
	Shell string
}

// NewLocal creates a local runner. logs may be nil.
func NewLocal(reg *registry.Registry, logs LogSink) *Local {
	return &Local{registry: reg, logs: logs, Shell: "sh"}
}

// Run implements Runner.
func (l *Local) Run(ctx context.Context, req *Request) *Outcome {
	ctx, logger := ctxlog.With(ctx, "instance", req.Instance)
	out := &Outcome{Outputs: make(map[string]string)}

	base := make(map[string]string, len(req.Env)+len(req.Secrets))
	maps.Copy(base, req.Env)
	maps.Copy(base, req.Secrets)
	secretValues := make([]string, 0, len(req.Secrets))
	for _, v := range req.Secrets {
		secretValues = append(secretValues, v)
	}

	for i, step := range req.Steps {
		name := step.DisplayName(i)
		if out.Err != nil {
			out.Steps = append(out.Steps, StepResult{Index: i, Name: name, Skipped: true})
			continue
		}

		logger.Info("▶️ Starting step", "step", name)
		start := time.Now()
		outputs, exitCode, err := l.runStep(ctx, req, i, step, base, secretValues)
		res := StepResult{Index: i, Name: name, ExitCode: exitCode, Duration: time.Since(start), Err: err}
		out.Steps = append(out.Steps, res)

		if err != nil {
			logger.Error("Step failed.", "step", name, "exit_code", exitCode, "error", err)
			out.Err = &StepFailure{Instance: req.Instance, StepIndex: i, StepName: name, ExitCode: exitCode, Err: err}
			continue
		}
		for k, v := range outputs {
			if _, exists := out.Outputs[k]; exists {
				logger.Debug("Step overrides an earlier output.", "step", name, "key", k)
			}
			out.Outputs[k] = v
		}
		logger.Info("✅ Finished step", "step", name, "duration", res.Duration)
	}
	return out
}

func (l *Local) runStep(ctx context.Context, req *Request, index int, step *config.Step, base map[string]string, secrets []string) (map[string]string, int, error) {
	env := maps.Clone(base)
	for _, k := range sortedKeys(step.Env) {
		env[k] = expand(step.Env[k], env)
	}

	dir := req.WorkDir
	if step.WorkingDir != "" {
		if filepath.IsAbs(step.WorkingDir) || dir == "" {
			dir = step.WorkingDir
		} else {
			dir = filepath.Join(dir, step.WorkingDir)
		}
	}

	w, err := l.openLog(req.Instance, index, step.DisplayName(index), secrets)
	if err != nil {
		return nil, -1, err
	}
	defer w.Close()

	if step.Uses != "" {
		with := make(map[string]string, len(step.With))
		for k, v := range step.With {
			with[k] = expand(v, env)
		}
		call := &registry.Call{Instance: req.Instance, Env: env, Stdout: w, WorkingDir: dir}
		outputs, err := l.registry.Invoke(ctx, step.Uses, call, with)
		if err != nil {
			return nil, -1, err
		}
		return outputs, 0, nil
	}
	return l.runShell(ctx, step.Run, env, dir, w)
}

func (l *Local) runShell(ctx context.Context, script string, env map[string]string, dir string, w io.Writer) (map[string]string, int, error) {
	outFile, err := os.CreateTemp("", "pipegrid-output-*")
	if err != nil {
		return nil, -1, fmt.Errorf("failed to create output file: %w", err)
	}
	outPath := outFile.Name()
	outFile.Close()
	defer os.Remove(outPath)

	cmd := exec.CommandContext(ctx, l.Shell, "-c", script)
	cmd.Dir = dir
	cmd.Stdout = w
	cmd.Stderr = w
	setProcessGroup(cmd)

	cmd.Env = os.Environ()
	for _, k := range sortedKeys(env) {
		cmd.Env = append(cmd.Env, k+"="+env[k])
	}
	cmd.Env = append(cmd.Env, OutputEnv+"="+outPath)

	if err := cmd.Run(); err != nil {
		var exitError *exec.ExitError
		if errors.As(err, &exitError) && ctx.Err() == nil {
			return nil, exitError.ExitCode(), fmt.Errorf("exit status %d", exitError.ExitCode())
		}
		if ctx.Err() != nil {
			return nil, -1, fmt.Errorf("step interrupted: %w", context.Cause(ctx))
		}
		return nil, -1, err
	}

	raw, err := os.ReadFile(outPath)
	if err != nil {
		return nil, 0, fmt.Errorf("failed to read output file: %w", err)
	}
	outputs, err := ParseOutputFile(string(raw))
	if err != nil {
		return nil, 0, err
	}
	return outputs, 0, nil
}

// openLog returns the step's log stream. Masking is the sink's job, so step
// output only ever leaves the runner through it.
func (l *Local) openLog(instance string, index int, step string, secrets []string) (io.WriteCloser, error) {
	if l.logs == nil {
		return nopWriteCloser{io.Discard}, nil
	}
	return l.logs.Open(instance, index, step, secrets)
}

// ParseOutputFile reads `key=value` lines and `key<<DELIM` blocks.
func ParseOutputFile(content string) (map[string]string, error) {
	out := make(map[string]string)
	lines := strings.Split(content, "\n")
	for i := 0; i < len(lines); i++ {
		line := strings.TrimRight(lines[i], "\r")
		if strings.TrimSpace(line) == "" || strings.HasPrefix(line, "#") {
			continue
		}
		if key, delim, ok := strings.Cut(line, "<<"); ok && !strings.Contains(key, "=") {
			var value []string
			closed := false
			for i++; i < len(lines); i++ {
				l := strings.TrimRight(lines[i], "\r")
				if l == delim {
					closed = true
					break
				}
				value = append(value, l)
			}
			if !closed {
				return nil, fmt.Errorf("output %q: missing closing delimiter %q", key, delim)
			}
			out[strings.TrimSpace(key)] = strings.Join(value, "\n")
			continue
		}
		key, value, ok := strings.Cut(line, "=")
		key = strings.TrimSpace(key)
		if !ok || key == "" {
			return nil, fmt.Errorf("malformed output line %d: %q", i+1, line)
		}
		out[key] = value
	}
	return out, nil
}

func expand(s string, env map[string]string) string {
	return os.Expand(s, func(name string) string { return env[name] })
}

func sortedKeys(m map[string]string) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

type nopWriteCloser struct{ io.Writer }

func (nopWriteCloser) Close() error { return nil }
