package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/specialistvlad/pipegrid/internal/app"
	"github.com/specialistvlad/pipegrid/internal/audit"
	"github.com/specialistvlad/pipegrid/internal/cli"
)

// main is the entrypoint for the pipegrid application.
func main() {
	// Use a minimal logger until the full one is configured.
	slog.SetDefault(slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{
		Level: slog.LevelInfo,
	})))

	// SIGINT and SIGTERM cancel the run: nothing new is dispatched and the
	// report is marked aborted.
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	err := run(ctx, os.Stdout, os.Stderr, os.Args[1:])
	stop()

	if err != nil {
		var exitErr *cli.ExitError
		if errors.As(err, &exitErr) {
			if exitErr.Message != "" {
				fmt.Fprintln(os.Stderr, exitErr.Message)
			}
			os.Exit(exitErr.Code)
		}
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

// run encapsulates the main application logic for easier testing and error handling.
func run(ctx context.Context, outW, errW io.Writer, args []string) error {
	cmd, shouldExit, err := cli.Parse(args, outW, nil)
	if err != nil {
		return err
	}
	if shouldExit {
		return nil
	}

	if cmd.Name == cli.CommandAuditVerify {
		n, err := audit.Verify(cmd.LedgerPath)
		if err != nil {
			return &cli.ExitError{Code: 1, Message: err.Error()}
		}
		fmt.Fprintf(outW, "✅ %s: %d records, chain intact\n", cmd.LedgerPath, n)
		return nil
	}

	pipegrid, err := app.NewApp(outW, errW, cmd.Config)
	if err != nil {
		return &cli.ExitError{Code: 2, Message: err.Error()}
	}

	switch cmd.Name {
	case cli.CommandValidate:
		if err := pipegrid.Validate(ctx); err != nil {
			return &cli.ExitError{Code: 1, Message: err.Error()}
		}
		fmt.Fprintf(outW, "✅ %s is valid\n", cmd.Config.DescriptorPath)
		return nil
	case cli.CommandPlan:
		if err := pipegrid.Plan(ctx); err != nil {
			return &cli.ExitError{Code: 1, Message: err.Error()}
		}
		return nil
	}

	report, err := pipegrid.Run(ctx)
	if err != nil {
		return err
	}
	if code := report.ExitCode(); code != 0 {
		return &cli.ExitError{Code: code}
	}
	return nil
}
