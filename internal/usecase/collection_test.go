package usecase

import (
	"context"
	"errors"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"NewsCollector/internal/config"
	"NewsCollector/internal/domain"
	"NewsCollector/internal/infrastructure/storage"
	"NewsCollector/internal/logging"
)

type fakeFetcher struct {
	entries map[string][]domain.RawEntry
	errs    map[string]error
	panics  map[string]bool
}

func (f *fakeFetcher) FetchEntries(_ context.Context, source config.SourceConfig) ([]domain.RawEntry, error) {
	if f.panics[source.URL] {
		panic("parser exploded")
	}
	if err := f.errs[source.URL]; err != nil {
		return nil, err
	}
	return f.entries[source.URL], nil
}

type recordingNotifier struct {
	mu       sync.Mutex
	messages []string
}

func (n *recordingNotifier) PublishDigest(_ context.Context, digest string) error {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.messages = append(n.messages, digest)
	return nil
}

type brokenMonitor struct{}

func (brokenMonitor) LogStart(context.Context, string) (int64, error) {
	return 0, errors.New("monitoring offline")
}

func (brokenMonitor) LogEnd(context.Context, int64, domain.RunOutcome) error {
	return errors.New("monitoring offline")
}

type fixedScorer float64

func (s fixedScorer) Score(domain.CollectedItem) float64 { return float64(s) }

func rssSource(name, url string) config.SourceConfig {
	return config.SourceConfig{Name: name, URL: url, Kind: config.KindRSS, Category: "media"}
}

func entry(title, link string) domain.RawEntry {
	return domain.RawEntry{Title: title, Link: link}
}

func TestCollectionTaskPartialSuccess(t *testing.T) {
	t.Parallel()

	store := storage.NewMemoryStore()
	repo := storage.NewRepository(store, 0.8, logging.Discard())
	runs := storage.NewMemoryRunLog()
	notifier := &recordingNotifier{}

	sources := []config.SourceConfig{
		rssSource("One", "https://one.test/rss"),
		rssSource("Two", "https://two.test/rss"),
		rssSource("Three", "https://three.test/rss"),
	}
	fetcher := &fakeFetcher{
		entries: map[string][]domain.RawEntry{
			"https://one.test/rss": {
				entry("AI Development News", "https://one.test/a"),
				entry("No link here", ""),
			},
			"https://three.test/rss": {
				entry("Robots learn to fold laundry", "https://three.test/b"),
				entry("AI Development Updates", "https://three.test/c"),
			},
		},
		errs: map[string]error{"https://two.test/rss": errors.New("connection refused")},
	}

	task := NewCollectionTask(CollectionDeps{
		Fetcher:    fetcher,
		Repository: repo,
		Monitor:    runs,
		Scorer:     fixedScorer(0.7),
		Notifier:   notifier,
		Logger:     logging.Discard(),
	}, CollectionOptions{TaskName: "rss_collection", Sources: sources, MaxConcurrency: 1, Threshold: 0.8})

	report := task.Run(context.Background())

	if report.Status != domain.RunPartialSuccess {
		t.Fatalf("expected partial success, got %s", report.Status)
	}
	if report.ErrorMessage != "1 sources failed" {
		t.Fatalf("unexpected error message: %q", report.ErrorMessage)
	}
	if report.Processed != 4 || report.Succeeded != 2 || report.Failed != 2 {
		t.Fatalf("unexpected counts: processed=%d saved=%d failed=%d", report.Processed, report.Succeeded, report.Failed)
	}
	if len(report.FailedSources) != 1 || report.FailedSources[0].URL != "https://two.test/rss" {
		t.Fatalf("unexpected failed sources: %+v", report.FailedSources)
	}

	logs, err := runs.Recent(context.Background(), 5)
	if err != nil || len(logs) != 1 {
		t.Fatalf("expected one monitoring entry, got %d (%v)", len(logs), err)
	}
	entryLog := logs[0]
	if entryLog.ID != report.LogID || entryLog.Status != domain.RunPartialSuccess || entryLog.EndTime == nil {
		t.Fatalf("unexpected monitoring entry: %+v", entryLog)
	}
	if entryLog.ItemsFailed < 2 || entryLog.ItemsSucceeded != 2 {
		t.Fatalf("unexpected monitoring counts: %+v", entryLog)
	}
	failed, ok := entryLog.Details["failed_feeds"].([]domain.FailedSource)
	if !ok || len(failed) != 1 || failed[0].URL != "https://two.test/rss" {
		t.Fatalf("unexpected failed_feeds: %#v", entryLog.Details)
	}
	if !strings.Contains(failed[0].Reason, "connection refused") {
		t.Fatalf("expected reason to carry the fetch error, got %q", failed[0].Reason)
	}

	items := repo.GetAll(context.Background(), 10, 0)
	if len(items) != 2 {
		t.Fatalf("expected 2 stored items, got %d", len(items))
	}
	for _, item := range items {
		if item.RelevanceScore == nil || *item.RelevanceScore != 0.7 {
			t.Fatalf("expected relevance score on %s", item.ID)
		}
		if item.SourceType != domain.SourceRSS || item.ExtraData["source_name"] == nil {
			t.Fatalf("unexpected normalized item: %+v", item)
		}
	}

	if len(notifier.messages) != 1 || !strings.Contains(notifier.messages[0], "https://two.test/rss") {
		t.Fatalf("expected a run notification naming the failed source, got %v", notifier.messages)
	}
}

func TestCollectionTaskAllSourcesFail(t *testing.T) {
	t.Parallel()

	runs := storage.NewMemoryRunLog()
	fetcher := &fakeFetcher{
		errs:   map[string]error{"https://a.test": errors.New("timeout")},
		panics: map[string]bool{"https://b.test": true},
	}
	task := NewCollectionTask(CollectionDeps{
		Fetcher:    fetcher,
		Repository: storage.NewRepository(storage.NewMemoryStore(), 0, logging.Discard()),
		Monitor:    runs,
		Logger:     logging.Discard(),
	}, CollectionOptions{Sources: []config.SourceConfig{rssSource("A", "https://a.test"), rssSource("B", "https://b.test")}})

	report := task.Run(context.Background())
	if report.Status != domain.RunFailed || report.ErrorMessage != "All 2 sources failed" {
		t.Fatalf("unexpected report: %+v", report)
	}
	if len(report.FailedSources) != 2 || !strings.Contains(report.FailedSources[1].Reason, "panic") {
		t.Fatalf("expected panic captured per source: %+v", report.FailedSources)
	}
}

func TestCollectionTaskNoSources(t *testing.T) {
	t.Parallel()

	runs := storage.NewMemoryRunLog()
	task := NewCollectionTask(CollectionDeps{
		Fetcher:    &fakeFetcher{},
		Repository: storage.NewRepository(storage.NewMemoryStore(), 0, logging.Discard()),
		Monitor:    runs,
		Logger:     logging.Discard(),
	}, CollectionOptions{})

	report := task.Run(context.Background())
	if report.Status != domain.RunFailed || report.ErrorMessage != "no sources configured" {
		t.Fatalf("unexpected report: %+v", report)
	}
	logs, _ := runs.Recent(context.Background(), 1)
	if len(logs) != 1 || logs[0].Status != domain.RunFailed || logs[0].Details != nil {
		t.Fatalf("expected failed monitoring entry without details: %+v", logs)
	}
}

func TestCollectionTaskSurvivesMonitorFailure(t *testing.T) {
	t.Parallel()

	repo := storage.NewRepository(storage.NewMemoryStore(), 0, logging.Discard())
	task := NewCollectionTask(CollectionDeps{
		Fetcher: &fakeFetcher{entries: map[string][]domain.RawEntry{
			"https://a.test": {entry("Only story", "https://a.test/1")},
		}},
		Repository: repo,
		Monitor:    brokenMonitor{},
		Logger:     logging.Discard(),
	}, CollectionOptions{Sources: []config.SourceConfig{rssSource("A", "https://a.test")}})

	report := task.Run(context.Background())
	if report.Status != domain.RunSuccess || report.Succeeded != 1 || report.LogID != 0 {
		t.Fatalf("unexpected report: %+v", report)
	}
}

type slowFetcher struct {
	inFlight atomic.Int32
	peak     atomic.Int32
}

func (f *slowFetcher) FetchEntries(ctx context.Context, source config.SourceConfig) ([]domain.RawEntry, error) {
	n := f.inFlight.Add(1)
	defer f.inFlight.Add(-1)
	for {
		peak := f.peak.Load()
		if n <= peak || f.peak.CompareAndSwap(peak, n) {
			break
		}
	}
	if strings.Contains(source.URL, "hang") {
		<-ctx.Done()
		return nil, ctx.Err()
	}
	time.Sleep(20 * time.Millisecond)
	return nil, nil
}

func TestCollectionTaskBoundsConcurrencyAndTimesOut(t *testing.T) {
	t.Parallel()

	fetcher := &slowFetcher{}
	sources := []config.SourceConfig{
		rssSource("1", "https://1.test"),
		rssSource("2", "https://2.test"),
		rssSource("3", "https://3.test"),
		rssSource("4", "https://4.test"),
		rssSource("hang", "https://hang.test"),
	}
	task := NewCollectionTask(CollectionDeps{
		Fetcher:    fetcher,
		Repository: storage.NewRepository(storage.NewMemoryStore(), 0, logging.Discard()),
		Logger:     logging.Discard(),
	}, CollectionOptions{Sources: sources, MaxConcurrency: 2, SourceTimeout: 100 * time.Millisecond})

	report := task.Run(context.Background())
	if peak := fetcher.peak.Load(); peak > 2 {
		t.Fatalf("expected at most 2 concurrent fetches, saw %d", peak)
	}
	if report.Status != domain.RunPartialSuccess || len(report.FailedSources) != 1 {
		t.Fatalf("unexpected report: %+v", report)
	}
	if !strings.Contains(report.FailedSources[0].Reason, context.DeadlineExceeded.Error()) {
		t.Fatalf("expected deadline reason, got %q", report.FailedSources[0].Reason)
	}
}

func TestBuildRunMessage(t *testing.T) {
	t.Parallel()

	msg := buildRunMessage(domain.RunReport{
		TaskName:      "rss_collection",
		Status:        domain.RunPartialSuccess,
		Processed:     3,
		Succeeded:     1,
		Failed:        2,
		ErrorMessage:  "1 sources failed",
		FailedSources: []domain.FailedSource{{URL: "https://x.test", Reason: "boom"}},
	})
	want := "rss_collection: PARTIAL_SUCCESS\nprocessed 3, saved 1, skipped 2\n1 sources failed\n- https://x.test: boom"
	if msg != want {
		t.Fatalf("unexpected message:\n%s", msg)
	}
}
