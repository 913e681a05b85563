package cli

import (
	"errors"
	"fmt"
	"io"
	"log/slog"
	"strings"

	"github.com/specialistvlad/pipegrid/internal/app"
	"github.com/spf13/pflag"
)

// Commands.
const (
	CommandRun         = "run"
	CommandValidate    = "validate"
	CommandPlan        = "plan"
	CommandAuditVerify = "audit verify"
)

// ExitError is a custom error type that includes a specific exit code.
type ExitError struct {
	Code    int
	Message string
}

// Error implements the error interface for ExitError.
func (e *ExitError) Error() string {
	return e.Message
}

// Command is a parsed invocation.
type Command struct {
	Name string
	// Config is set for run, validate and plan.
	Config *app.Config
	// LedgerPath is set for audit verify.
	LedgerPath string
}

const usage = `
pipegrid - a release pipeline orchestrator.

Usage:
  pipegrid [run] [options] DESCRIPTOR    run the pipeline
  pipegrid validate [options] DESCRIPTOR load and check the descriptor
  pipegrid plan [options] DESCRIPTOR     print instances in dispatch order
  pipegrid audit verify LEDGER           verify an audit ledger's hash chain

Arguments:
  DESCRIPTOR
    An .hcl file or a directory of .hcl files, or a single .yaml, .yml,
    .json or .jsonc file.

Every option defaults to the matching PIPEGRID_* environment variable.

Options:
`

// Parse processes command-line arguments. It returns the command, a boolean
// indicating if the program should exit cleanly, or an ExitError. Defaults
// come from environ (nil means the process environment).
func Parse(args []string, output io.Writer, environ map[string]string) (*Command, bool, error) {
	slog.Debug("CLI parser started.")

	name := CommandRun
	if len(args) > 0 {
		switch args[0] {
		case CommandRun, CommandValidate, CommandPlan:
			name, args = args[0], args[1:]
		case "audit":
			return parseAudit(args[1:], output)
		}
	}

	cfg, err := app.LoadConfig(environ)
	if err != nil {
		return nil, false, &ExitError{Code: 2, Message: err.Error()}
	}

	flagSet := pflag.NewFlagSet("pipegrid "+name, pflag.ContinueOnError)
	flagSet.SetOutput(output)
	flagSet.Usage = func() {
		fmt.Fprint(output, usage)
		flagSet.PrintDefaults()
	}
	bindFlags(flagSet, cfg)

	if err := flagSet.Parse(args); err != nil {
		if errors.Is(err, pflag.ErrHelp) {
			return nil, true, nil
		}
		return nil, false, &ExitError{Code: 2, Message: err.Error()}
	}
	slog.Debug("Arguments parsed successfully.")

	switch flagSet.NArg() {
	case 0:
		if cfg.DescriptorPath == "" {
			slog.Debug("No descriptor provided, printing usage and exiting.")
			flagSet.Usage()
			return nil, true, nil
		}
	case 1:
		cfg.DescriptorPath = flagSet.Arg(0)
	default:
		return nil, false, &ExitError{Code: 2, Message: fmt.Sprintf("expected one descriptor, got %d: %s", flagSet.NArg(), strings.Join(flagSet.Args(), " "))}
	}

	cfg.LogFormat = strings.ToLower(cfg.LogFormat)
	cfg.LogLevel = strings.ToLower(cfg.LogLevel)
	if err := cfg.Validate(); err != nil {
		return nil, false, &ExitError{Code: 2, Message: err.Error()}
	}

	slog.Debug("CLI parser finished successfully.", "command", name, "descriptor", cfg.DescriptorPath)
	return &Command{Name: name, Config: cfg}, false, nil
}

func bindFlags(fs *pflag.FlagSet, cfg *app.Config) {
	fs.StringVar(&cfg.LogFormat, "log-format", cfg.LogFormat, "Log output format. Options: 'text' or 'json'.")
	fs.StringVar(&cfg.LogLevel, "log-level", cfg.LogLevel, "Set the logging level. Options: 'debug', 'info', 'warn', 'error'.")
	fs.IntVarP(&cfg.Workers, "workers", "w", cfg.Workers, "Maximum number of instances running at once.")
	fs.BoolVar(&cfg.FailFast, "fail-fast", cfg.FailFast, "Skip everything not yet started once a required instance fails.")
	fs.DurationVar(&cfg.DefaultTimeout, "timeout", cfg.DefaultTimeout, "Timeout for jobs that do not set their own. 0 is unlimited.")
	fs.StringVar(&cfg.WorkDir, "work-dir", cfg.WorkDir, "Default working directory of steps.")
	fs.StringVar(&cfg.LogDir, "log-dir", cfg.LogDir, "Directory for compressed step logs. Empty disables them.")
	fs.StringVar(&cfg.RunID, "run-id", cfg.RunID, "Run identifier. Generated when empty.")
	fs.StringToStringVarP(&cfg.Env, "env", "e", cfg.Env, "Run environment overrides, KEY=VALUE.")
	fs.IntVar(&cfg.HealthcheckPort, "healthcheck-port", cfg.HealthcheckPort, "Port for /health, /metrics and /status. 0 is disabled.")

	fs.StringVar(&cfg.AuditBackend, "audit", cfg.AuditBackend, "Audit backend. Options: 'none', 'file', 'redis'.")
	fs.StringVar(&cfg.AuditPath, "audit-path", cfg.AuditPath, "Ledger file of the file audit backend.")
	fs.StringVar(&cfg.RedisURL, "redis-url", cfg.RedisURL, "Redis URL of the redis audit backend.")
	fs.DurationVar(&cfg.AuditTTL, "audit-ttl", cfg.AuditTTL, "Retention of reports in redis. 0 keeps them forever.")

	fs.StringVar(&cfg.NotifyURL, "notify-url", cfg.NotifyURL, "socket.io server receiving live run events.")
	fs.StringVar(&cfg.NotifyNamespace, "notify-namespace", cfg.NotifyNamespace, "socket.io namespace for run events.")
	fs.BoolVar(&cfg.NotifyVerbose, "notify-verbose", cfg.NotifyVerbose, "Send every instance transition, not only terminal ones.")

	fs.StringVar(&cfg.Trigger.Branch, "branch", cfg.Trigger.Branch, "Branch that triggered the run.")
	fs.StringVar(&cfg.Trigger.Commit, "commit", cfg.Trigger.Commit, "Commit that triggered the run.")
	fs.StringVar(&cfg.Trigger.Ref, "ref", cfg.Trigger.Ref, "Ref that triggered the run.")
	fs.StringVar(&cfg.Trigger.Event, "event", cfg.Trigger.Event, "Event that triggered the run.")
	fs.StringVar(&cfg.Trigger.Repository, "repository", cfg.Trigger.Repository, "Repository the run belongs to.")
}

func parseAudit(args []string, output io.Writer) (*Command, bool, error) {
	if len(args) == 0 || args[0] == "-h" || args[0] == "--help" {
		fmt.Fprint(output, usage)
		return nil, true, nil
	}
	if args[0] != "verify" {
		return nil, false, &ExitError{Code: 2, Message: fmt.Sprintf("unknown audit command %q", args[0])}
	}
	if len(args) != 2 {
		return nil, false, &ExitError{Code: 2, Message: "usage: pipegrid audit verify LEDGER"}
	}
	return &Command{Name: CommandAuditVerify, LedgerPath: args[1]}, false, nil
}
