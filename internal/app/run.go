package app

import (
	"context"
	"errors"
	"fmt"

	"github.com/specialistvlad/pipegrid/internal/audit"
	"github.com/specialistvlad/pipegrid/internal/ctxlog"
	"github.com/specialistvlad/pipegrid/internal/events"
	"github.com/specialistvlad/pipegrid/internal/metrics"
	"github.com/specialistvlad/pipegrid/internal/notify"
	"github.com/specialistvlad/pipegrid/internal/scheduler"
	"github.com/specialistvlad/pipegrid/internal/session"
	"github.com/specialistvlad/pipegrid/internal/verdict"
)

// Run executes the pipeline once, renders the report to the output writer
// and records it in the configured audit backend. A nil error with a Failed
// report is a normal outcome; errors are engine or setup faults.
func (a *App) Run(ctx context.Context) (*verdict.Report, error) {
	ctx = ctxlog.WithLogger(ctx, a.logger)
	a.logger.Debug("App.Run method started.")

	plan, err := a.LoadPlan(ctx)
	if err != nil {
		return nil, err
	}

	collector := metrics.NewCollector()
	observers := []events.Observer{collector}

	if a.config.AuditBackend == AuditFile {
		ledger, err := audit.OpenLedger(a.config.AuditPath)
		if err != nil {
			return nil, fmt.Errorf("failed to open audit ledger: %w", err)
		}
		defer func() {
			if err := ledger.Close(); err != nil {
				a.logger.Error("Failed to close audit ledger.", "error", err)
			}
		}()
		observers = append(observers, ledger)
	}

	var store *audit.RedisStore
	if a.config.AuditBackend == AuditRedis {
		client, err := audit.DialRedis(ctx, a.config.RedisURL)
		if err != nil {
			return nil, err
		}
		defer client.Close()
		store = audit.NewRedisStore(client, a.config.AuditTTL)
	}

	if a.config.NotifyURL != "" {
		notifier, err := notify.DialSocketIO(ctx, notify.Config{
			URL:       a.config.NotifyURL,
			Namespace: a.config.NotifyNamespace,
			Verbose:   a.config.NotifyVerbose,
		})
		if err != nil {
			// Live notifications are best effort; the run goes on without them.
			a.logger.Warn("Run notifier unavailable.", "error", err)
		} else {
			defer notifier.Close()
			observers = append(observers, notifier)
		}
	}

	sess, err := a.sessions.NewSession(ctx, plan, a.registry, session.Options{
		RunID:          a.config.RunID,
		Trigger:        a.config.Trigger,
		Env:            a.config.Env,
		Policy:         scheduler.Policy{FailFast: a.config.FailFast},
		Workers:        a.config.Workers,
		DefaultTimeout: a.config.DefaultTimeout,
		WorkDir:        a.config.WorkDir,
		LogDir:         a.config.LogDir,
		Observers:      observers,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create session: %w", err)
	}
	defer sess.Close(ctx)

	if a.config.HealthcheckPort > 0 {
		srv, err := startStatusServer(ctx, a.config.HealthcheckPort, newStatusRouter(ctx, sess.RunID(), sess.Graph(), collector.Handler()))
		if err != nil {
			return nil, err
		}
		defer srv.close(ctx)
	}

	report, runErr := sess.Run(ctx)
	if report == nil {
		return nil, fmt.Errorf("execution failed: %w", runErr)
	}

	var errs []error
	if runErr != nil {
		errs = append(errs, fmt.Errorf("execution failed: %w", runErr))
	}
	if err := RenderReport(a.outW, report); err != nil {
		errs = append(errs, fmt.Errorf("failed to render report: %w", err))
	}
	if store != nil {
		if err := store.Save(ctx, report); err != nil {
			errs = append(errs, err)
		} else {
			a.logger.Debug("Run report stored.", "run_id", report.RunID)
		}
	}

	a.logger.Debug("App.Run method finished.", "verdict", report.Verdict)
	return report, errors.Join(errs...)
}

// Validate loads the descriptor and builds the plan without running it.
func (a *App) Validate(ctx context.Context) error {
	_, err := a.LoadPlan(ctx)
	return err
}

// Plan prints the expanded instances in dispatch order.
func (a *App) Plan(ctx context.Context) error {
	plan, err := a.LoadPlan(ctx)
	if err != nil {
		return err
	}
	return RenderPlan(a.outW, plan)
}
