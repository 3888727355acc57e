package app

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"

	"NewsCollector/internal/config"
	"NewsCollector/internal/domain"
	"NewsCollector/internal/infrastructure/parser"
	"NewsCollector/internal/infrastructure/relevance"
	"NewsCollector/internal/infrastructure/scheduler"
	"NewsCollector/internal/infrastructure/storage"
	"NewsCollector/internal/infrastructure/telegram"
	"NewsCollector/internal/logging"
	"NewsCollector/internal/ports"
	"NewsCollector/internal/scanner"
	"NewsCollector/internal/usecase"
)

// Application wires configs to use cases and lifecycle orchestration.
type Application struct {
	cfg        config.Config
	logger     *slog.Logger
	backend    *storage.Backend
	repository *storage.Repository
	task       *usecase.CollectionTask
}

// New opens storage and builds the collection task.
func New(ctx context.Context, cfg config.Config, baseLogger *slog.Logger) (*Application, error) {
	if baseLogger == nil {
		baseLogger = logging.New(cfg.Logging)
	}

	backend, err := storage.Open(ctx, cfg.Database, baseLogger.With("component", "storage"))
	if err != nil {
		return nil, fmt.Errorf("open storage: %w", err)
	}
	repository := storage.NewRepository(backend.Items, cfg.Dedup.Threshold, baseLogger)

	fetcher := parser.NewFetcher(&http.Client{Timeout: cfg.Collector.Timeout}, cfg.Collector.UserAgent, cfg.Collector.RequestsPerSecond)
	registry := scanner.NewRegistry(
		parser.NewRSSScanner(fetcher),
		parser.NewPageScanner(fetcher),
	)
	source := parser.NewStrategySource(registry, baseLogger.With("component", "source"))

	var notifier ports.Notifier
	if cfg.Notifications.Telegram.Enabled() {
		notifier = telegram.NewNotifier(cfg.Notifications.Telegram)
	}

	task := usecase.NewCollectionTask(usecase.CollectionDeps{
		Fetcher:    source,
		Repository: repository,
		Monitor:    backend.Runs,
		Scorer:     relevance.NewKeywordScorer(cfg.Relevance),
		Notifier:   notifier,
		Logger:     baseLogger.With("component", "collector"),
	}, usecase.CollectionOptions{
		TaskName:       cfg.Collector.TaskName,
		Sources:        cfg.EnabledSources(),
		SourceTimeout:  cfg.Collector.Timeout,
		MaxConcurrency: cfg.Collector.MaxConcurrency,
		Threshold:      cfg.Dedup.Threshold,
	})

	return &Application{
		cfg:        cfg,
		logger:     baseLogger,
		backend:    backend,
		repository: repository,
		task:       task,
	}, nil
}

// Collect runs a single collection pass.
func (a *Application) Collect(ctx context.Context) domain.RunReport {
	return a.task.Run(ctx)
}

// Serve runs the task on its cron schedule until ctx is cancelled.
func (a *Application) Serve(ctx context.Context) error {
	sched := a.cfg.Scheduler
	driver := scheduler.NewCronScheduler(sched.CronExpression, sched.Location(), a.logger)
	runner := usecase.NewScheduler(driver, a.task, a.logger.With("component", "scheduler"))

	if sched.RunOnStart {
		a.Collect(ctx)
	}
	if err := runner.Start(ctx); err != nil {
		return err
	}

	<-ctx.Done()

	stopCtx, cancel := context.WithTimeout(context.Background(), a.cfg.Collector.Timeout)
	defer cancel()
	if err := runner.Stop(stopCtx); err != nil && !errors.Is(err, context.DeadlineExceeded) {
		return err
	}
	return nil
}

// Repository exposes item storage to the CLI.
func (a *Application) Repository() *storage.Repository {
	return a.repository
}

// RunLog exposes the monitoring log to the CLI.
func (a *Application) RunLog() storage.RunLogStore {
	return a.backend.Runs
}

// Close releases storage.
func (a *Application) Close() error {
	return a.backend.Close()
}
