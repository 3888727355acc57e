package app

import (
	"context"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"testing"
	"time"

	"NewsCollector/internal/config"
	"NewsCollector/internal/domain"
	"NewsCollector/internal/logging"
)

const feed = `<?xml version="1.0"?>
<rss version="2.0"><channel><title>t</title>
<item><title>LLM agents get better tools</title><link>https://feed.test/1</link><pubDate>Mon, 03 Mar 2025 10:00:00 GMT</pubDate></item>
<item><title>Quarterly earnings call summary</title><link>https://feed.test/2</link></item>
</channel></rss>`

func TestApplicationCollectEndToEnd(t *testing.T) {
	t.Parallel()

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(feed))
	}))
	defer server.Close()

	dir := t.TempDir()
	cfg := config.Config{
		DataDir:   dir,
		Database:  config.DatabaseConfig{Driver: "sqlite", DSN: filepath.Join(dir, "news.db")},
		Collector: config.CollectorConfig{TaskName: "rss_collection", Timeout: 5 * time.Second, MaxConcurrency: 2},
		Dedup:     config.DedupConfig{Threshold: 0.8},
		Relevance: config.RelevanceConfig{MustInclude: []string{"LLM"}},
		Sources: []config.SourceConfig{
			{Name: "Feed", URL: server.URL + "/rss", Kind: config.KindRSS, Category: "media"},
		},
	}

	application, err := New(context.Background(), cfg, logging.Discard())
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	defer application.Close()

	report := application.Collect(context.Background())
	if report.Status != domain.RunSuccess || report.Succeeded != 2 {
		t.Fatalf("unexpected report: %+v", report)
	}

	again := application.Collect(context.Background())
	if again.Succeeded != 0 || again.Failed != 2 {
		t.Fatalf("second pass should reject every item as already stored: %+v", again)
	}

	items := application.Repository().Find(context.Background(), map[string]any{"categories": "media"}, 10, 0)
	if len(items) != 2 {
		t.Fatalf("expected 2 stored items, got %d", len(items))
	}
	var scored int
	for _, item := range items {
		if item.RelevanceScore != nil && *item.RelevanceScore > 0 {
			scored++
		}
	}
	if scored != 1 {
		t.Fatalf("expected exactly one relevant item, got %d", scored)
	}

	runs, err := application.RunLog().Recent(context.Background(), 10)
	if err != nil || len(runs) != 2 {
		t.Fatalf("expected 2 monitoring entries, got %d (%v)", len(runs), err)
	}
}
