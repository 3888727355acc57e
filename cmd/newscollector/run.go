package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"strconv"
	"syscall"
	"time"

	"github.com/gofrs/flock"
	"github.com/spf13/cobra"

	"NewsCollector/internal/app"
	"NewsCollector/internal/domain"
)

var errAlreadyRunning = errors.New("another newscollector instance holds the lock")

func newRunCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "run",
		Short: "Run the collector on its cron schedule",
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := ctx.config()
			if err != nil {
				return err
			}

			if err := os.MkdirAll(filepath.Dir(cfg.LockPath()), 0o755); err != nil {
				return fmt.Errorf("create data dir: %w", err)
			}
			lock := flock.New(cfg.LockPath())
			ok, err := lock.TryLock()
			if err != nil {
				return fmt.Errorf("acquire lock: %w", err)
			}
			if !ok {
				return errAlreadyRunning
			}
			defer func() { _ = lock.Unlock() }()

			signalCtx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			return ctx.withApp(signalCtx, func(a *app.Application) error {
				fmt.Fprintf(cmd.OutOrStdout(), "Collecting on %q (%s), %d sources\n",
					cfg.Scheduler.CronExpression, cfg.Scheduler.Location(), len(cfg.EnabledSources()))
				return a.Serve(signalCtx)
			})
		},
	}
}

func newCollectCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "collect",
		Short: "Run one collection pass and print the report",
		RunE: func(cmd *cobra.Command, _ []string) error {
			signalCtx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			return ctx.withApp(signalCtx, func(a *app.Application) error {
				report := a.Collect(signalCtx)
				fmt.Fprintln(cmd.OutOrStdout(), renderReport(report))
				if report.Status == domain.RunFailed {
					return fmt.Errorf("collection failed: %s", report.ErrorMessage)
				}
				return nil
			})
		},
	}
}

func renderReport(report domain.RunReport) string {
	rows := [][]string{
		{"Task", report.TaskName},
		{"Status", string(report.Status)},
		{"Sources", strconv.Itoa(report.Sources)},
		{"Processed", strconv.Itoa(report.Processed)},
		{"Saved", strconv.Itoa(report.Succeeded)},
		{"Skipped", strconv.Itoa(report.Failed)},
		{"Duration", report.FinishedAt.Sub(report.StartedAt).Round(time.Millisecond).String()},
	}
	if report.ErrorMessage != "" {
		rows = append(rows, []string{"Error", report.ErrorMessage})
	}
	out := renderTable([]string{"Field", "Value"}, rows, nil)

	if len(report.FailedSources) == 0 {
		return out
	}
	failed := make([][]string, 0, len(report.FailedSources))
	for _, f := range report.FailedSources {
		failed = append(failed, []string{f.URL, truncate(f.Reason, 80)})
	}
	return out + "\n" + renderTable([]string{"Failed source", "Reason"}, failed, nil)
}

// commandTimeout bounds the short storage commands.
func commandTimeout(parent context.Context) (context.Context, context.CancelFunc) {
	return context.WithTimeout(parent, 30*time.Second)
}
