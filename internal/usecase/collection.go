package usecase

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	"NewsCollector/internal/config"
	"NewsCollector/internal/domain"
	"NewsCollector/internal/ports"
)

const (
	defaultSourceTimeout  = 30 * time.Second
	defaultMaxConcurrency = 4
	notifyTimeout         = 10 * time.Second
)

// CollectionDeps wires all driven adapters into the collection task.
type CollectionDeps struct {
	Fetcher    ports.EntryFetcher
	Repository ports.ItemRepository
	Monitor    ports.MonitoringLog
	Scorer     ports.Scorer
	Notifier   ports.Notifier
	Logger     *slog.Logger
	Now        func() time.Time
}

// CollectionOptions tune one task instance.
type CollectionOptions struct {
	TaskName       string
	Sources        []config.SourceConfig
	SourceTimeout  time.Duration
	MaxConcurrency int
	Threshold      float64
}

// CollectionTask fetches every configured source, stores new items and reports the run.
type CollectionTask struct {
	fetcher    ports.EntryFetcher
	repository ports.ItemRepository
	monitor    ports.MonitoringLog
	scorer     ports.Scorer
	notifier   ports.Notifier
	logger     *slog.Logger
	now        func() time.Time

	taskName    string
	sources     []config.SourceConfig
	timeout     time.Duration
	concurrency int
	threshold   float64
}

// NewCollectionTask constructs the orchestration component.
func NewCollectionTask(deps CollectionDeps, opts CollectionOptions) *CollectionTask {
	logger := deps.Logger
	if logger == nil {
		logger = slog.Default()
	}
	now := deps.Now
	if now == nil {
		now = time.Now
	}
	if opts.TaskName == "" {
		opts.TaskName = "rss_collection"
	}
	if opts.SourceTimeout <= 0 {
		opts.SourceTimeout = defaultSourceTimeout
	}
	if opts.MaxConcurrency <= 0 {
		opts.MaxConcurrency = defaultMaxConcurrency
	}

	return &CollectionTask{
		fetcher:     deps.Fetcher,
		repository:  deps.Repository,
		monitor:     deps.Monitor,
		scorer:      deps.Scorer,
		notifier:    deps.Notifier,
		logger:      logger,
		now:         now,
		taskName:    opts.TaskName,
		sources:     opts.Sources,
		timeout:     opts.SourceTimeout,
		concurrency: opts.MaxConcurrency,
		threshold:   opts.Threshold,
	}
}

type sourceResult struct {
	source    config.SourceConfig
	processed int
	succeeded int
	failed    int
	err       error
}

// Run executes one collection pass. It never panics and always reports a terminal status.
func (t *CollectionTask) Run(ctx context.Context) domain.RunReport {
	report := domain.RunReport{
		TaskName:  t.taskName,
		Sources:   len(t.sources),
		StartedAt: t.now().UTC(),
	}
	report.LogID = t.logStart(ctx)

	switch {
	case t.fetcher == nil || t.repository == nil:
		report.Status = domain.RunFailed
		report.ErrorMessage = "collection task is not wired"
	case len(t.sources) == 0:
		report.Status = domain.RunFailed
		report.ErrorMessage = "no sources configured"
	default:
		t.collect(ctx, &report)
	}

	report.FinishedAt = t.now().UTC()
	t.logEnd(ctx, report)
	t.notify(ctx, report)

	t.logger.Info("collection finished",
		"task", report.TaskName,
		"status", report.Status,
		"processed", report.Processed,
		"saved", report.Succeeded,
		"skipped", report.Failed,
		"failed_sources", len(report.FailedSources),
		"elapsed", report.FinishedAt.Sub(report.StartedAt).Round(time.Millisecond),
	)
	return report
}

func (t *CollectionTask) collect(ctx context.Context, report *domain.RunReport) {
	for _, res := range t.collectAll(ctx) {
		report.Processed += res.processed
		report.Succeeded += res.succeeded
		report.Failed += res.failed
		if res.err != nil {
			report.FailedSources = append(report.FailedSources, domain.FailedSource{
				URL:    res.source.URL,
				Reason: res.err.Error(),
			})
		}
	}

	switch failed := len(report.FailedSources); {
	case failed == len(t.sources):
		report.Status = domain.RunFailed
		report.ErrorMessage = fmt.Sprintf("All %d sources failed", failed)
	case failed > 0:
		report.Status = domain.RunPartialSuccess
		report.ErrorMessage = fmt.Sprintf("%d sources failed", failed)
	default:
		report.Status = domain.RunSuccess
	}
}

// collectAll fans sources out to bounded workers; results keep source order.
func (t *CollectionTask) collectAll(ctx context.Context) []sourceResult {
	var (
		wg      sync.WaitGroup
		results = make([]sourceResult, len(t.sources))
		slots   = make(chan struct{}, t.concurrency)
	)

	for i, src := range t.sources {
		wg.Add(1)
		go func(i int, s config.SourceConfig) {
			defer wg.Done()
			select {
			case slots <- struct{}{}:
				defer func() { <-slots }()
			case <-ctx.Done():
				results[i] = sourceResult{source: s, err: ctx.Err()}
				return
			}
			results[i] = t.collectSource(ctx, s)
		}(i, src)
	}

	wg.Wait()
	return results
}

func (t *CollectionTask) collectSource(ctx context.Context, source config.SourceConfig) (res sourceResult) {
	res.source = source
	log := t.logger.With("source", source.Name, "url", source.URL)

	defer func() {
		if r := recover(); r != nil {
			res.err = fmt.Errorf("panic while collecting: %v", r)
			log.Error("source collection panicked", "panic", r)
		}
	}()

	fetchCtx, cancel := context.WithTimeout(ctx, t.timeout)
	defer cancel()

	entries, err := t.fetcher.FetchEntries(fetchCtx, source)
	if err != nil {
		res.err = err
		log.Warn("source failed", "error", err)
		return res
	}
	log.Debug("source fetched", "entries", len(entries))

	now := t.now()
	for _, entry := range entries {
		res.processed++

		item, ok := normalizeEntry(entry, source, now)
		if !ok {
			res.failed++
			log.Debug("entry skipped: missing title or link", "title", entry.Title, "link", entry.Link)
			continue
		}
		if t.scorer != nil {
			score := t.scorer.Score(item)
			item.RelevanceScore = &score
		}

		if saved := t.repository.Save(ctx, item, domain.SaveOptions{Threshold: t.threshold}); saved == nil {
			res.failed++
			continue
		}
		res.succeeded++
	}

	log.Info("source collected", "processed", res.processed, "saved", res.succeeded, "skipped", res.failed)
	return res
}

func (t *CollectionTask) logStart(ctx context.Context) int64 {
	if t.monitor == nil {
		return 0
	}
	id, err := t.monitor.LogStart(ctx, t.taskName)
	if err != nil {
		t.logger.Error("monitoring log start failed", "task", t.taskName, "error", err)
		return 0
	}
	return id
}

func (t *CollectionTask) logEnd(ctx context.Context, report domain.RunReport) {
	if t.monitor == nil || report.LogID == 0 {
		return
	}
	// record the outcome even when the run was cancelled
	ctx = context.WithoutCancel(ctx)
	if err := t.monitor.LogEnd(ctx, report.LogID, report.Outcome()); err != nil {
		t.logger.Error("monitoring log end failed", "log_id", report.LogID, "error", err)
	}
}

func (t *CollectionTask) notify(ctx context.Context, report domain.RunReport) {
	if t.notifier == nil || report.Status == domain.RunSuccess {
		return
	}
	ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), notifyTimeout)
	defer cancel()
	if err := t.notifier.PublishDigest(ctx, buildRunMessage(report)); err != nil {
		t.logger.Warn("run notification failed", "error", err)
	}
}

func buildRunMessage(report domain.RunReport) string {
	var b strings.Builder
	fmt.Fprintf(&b, "%s: %s\n", report.TaskName, strings.ToUpper(string(report.Status)))
	fmt.Fprintf(&b, "processed %d, saved %d, skipped %d\n", report.Processed, report.Succeeded, report.Failed)
	if report.ErrorMessage != "" {
		fmt.Fprintf(&b, "%s\n", report.ErrorMessage)
	}
	for _, fs := range report.FailedSources {
		fmt.Fprintf(&b, "- %s: %s\n", fs.URL, fs.Reason)
	}
	return strings.TrimRight(b.String(), "\n")
}
