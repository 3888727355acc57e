package domain

import (
	"encoding/json"
	"testing"
	"time"
)

func TestParseEnumsDegrade(t *testing.T) {
	t.Parallel()

	if got := ParseSourceType("RSS"); got != SourceRSS {
		t.Fatalf("expected rss, got %s", got)
	}
	if got := ParseSourceType("carrier-pigeon"); got != SourceUnknown {
		t.Fatalf("expected unknown, got %s", got)
	}
	if got := ParseProcessingStatus(" Summarized "); got != StatusSummarized {
		t.Fatalf("expected summarized, got %s", got)
	}
	if got := ParseProcessingStatus("half-done"); got != StatusError {
		t.Fatalf("expected error status, got %s", got)
	}
	if got := ParseRunStatus("PARTIAL_SUCCESS"); got != RunPartialSuccess {
		t.Fatalf("expected partial_success, got %s", got)
	}
}

func TestCollectedItemDecodeIsLenient(t *testing.T) {
	t.Parallel()

	raw := `{"id":"a","source_url":"https://x.test/feed","source_type":"telepathy","processing_status":42,"categories":["ai"],"tags":[]}`
	var item CollectedItem
	if err := json.Unmarshal([]byte(raw), &item); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if item.SourceType != SourceUnknown {
		t.Fatalf("expected unknown source type, got %s", item.SourceType)
	}
	if item.ProcessingStatus != StatusError {
		t.Fatalf("expected error status, got %s", item.ProcessingStatus)
	}
}

func TestNormalizeFillsDefaults(t *testing.T) {
	t.Parallel()

	loc := time.FixedZone("KST", 9*60*60)
	published := time.Date(2025, 3, 1, 9, 0, 0, 0, loc)
	now := time.Date(2025, 3, 2, 0, 0, 0, 0, time.UTC)

	item := CollectedItem{SourceURL: "https://x.test", PublishedAt: &published}
	item.Normalize(now)

	if !item.CollectedAt.Equal(now) {
		t.Fatalf("unexpected collected_at: %v", item.CollectedAt)
	}
	if item.ProcessingStatus != StatusRaw {
		t.Fatalf("expected raw, got %s", item.ProcessingStatus)
	}
	if item.SourceType != SourceUnknown {
		t.Fatalf("expected unknown, got %s", item.SourceType)
	}
	if item.PublishedAt.Location() != time.UTC || item.PublishedAt.Hour() != 0 {
		t.Fatalf("expected published_at in UTC, got %v", item.PublishedAt)
	}
	if item.Categories == nil || item.Tags == nil {
		t.Fatalf("expected empty lists, got nil")
	}
}

func TestCloneDoesNotAlias(t *testing.T) {
	t.Parallel()

	score := 0.5
	item := CollectedItem{
		Tags:           []string{"llm"},
		ExtraData:      map[string]any{"k": "v"},
		RelevanceScore: &score,
	}
	cp := item.Clone()
	cp.Tags[0] = "changed"
	cp.ExtraData["k"] = "changed"
	*cp.RelevanceScore = 1

	if item.Tags[0] != "llm" || item.ExtraData["k"] != "v" || *item.RelevanceScore != 0.5 {
		t.Fatalf("clone aliases the original: %+v", item)
	}
}

func TestParsePatch(t *testing.T) {
	t.Parallel()

	patch, dropped := ParsePatch(map[string]any{
		"id":                "forbidden",
		"title":             "New title",
		"processing_status": "summarized",
		"relevance_score":   3,
		"tags":              []any{"a", "b"},
		"published_at":      "2025-01-02T03:04:05Z",
		"unknown":           true,
		"author":            []any{"Ann"},
	})

	wantDropped := []string{"author", "id", "unknown"}
	if len(dropped) != len(wantDropped) {
		t.Fatalf("dropped = %v, want %v", dropped, wantDropped)
	}
	for i := range wantDropped {
		if dropped[i] != wantDropped[i] {
			t.Fatalf("dropped = %v, want %v", dropped, wantDropped)
		}
	}

	item := CollectedItem{ID: "keep", Title: "Old", Author: "Ann"}
	patch.Apply(&item)

	if item.ID != "keep" || item.Title != "New title" || item.Author != "Ann" {
		t.Fatalf("unexpected item after patch: %+v", item)
	}
	if item.ProcessingStatus != StatusSummarized {
		t.Fatalf("unexpected status: %s", item.ProcessingStatus)
	}
	if item.RelevanceScore == nil || *item.RelevanceScore != 3 {
		t.Fatalf("unexpected score: %v", item.RelevanceScore)
	}
	if len(item.Tags) != 2 || item.Tags[1] != "b" {
		t.Fatalf("unexpected tags: %v", item.Tags)
	}
	if item.PublishedAt == nil || item.PublishedAt.Year() != 2025 {
		t.Fatalf("unexpected published_at: %v", item.PublishedAt)
	}
}

func TestParsePatchRendersScalarsAsText(t *testing.T) {
	t.Parallel()

	patch, dropped := ParsePatch(map[string]any{
		"title":  float64(2024),
		"author": true,
		"link":   7,
		"tags":   "llm",
	})
	if len(dropped) != 0 {
		t.Fatalf("unexpected dropped fields: %v", dropped)
	}

	var item CollectedItem
	patch.Apply(&item)
	if item.Title != "2024" || item.Author != "true" || item.Link != "7" {
		t.Fatalf("unexpected text fields: %+v", item)
	}
	if len(item.Tags) != 1 || item.Tags[0] != "llm" {
		t.Fatalf("expected a single tag, got %v", item.Tags)
	}
}

func TestScalarString(t *testing.T) {
	t.Parallel()

	cases := []struct {
		in   any
		want string
		ok   bool
	}{
		{"x", "x", true},
		{true, "true", true},
		{float64(3), "3", true},
		{0.25, "0.25", true},
		{int64(-4), "-4", true},
		{nil, "", false},
		{[]any{"a"}, "", false},
		{map[string]any{}, "", false},
	}
	for _, tc := range cases {
		got, ok := ScalarString(tc.in)
		if got != tc.want || ok != tc.ok {
			t.Errorf("ScalarString(%#v) = %q, %v; want %q, %v", tc.in, got, ok, tc.want, tc.ok)
		}
	}
}

func TestParsePatchClearsOptionalFields(t *testing.T) {
	t.Parallel()

	score := 0.7
	published := time.Now().UTC()
	item := CollectedItem{RelevanceScore: &score, PublishedAt: &published, Summary: "s"}

	patch, dropped := ParsePatch(map[string]any{
		"relevance_score": nil,
		"published_at":    nil,
		"summary":         nil,
	})
	if len(dropped) != 0 {
		t.Fatalf("unexpected dropped fields: %v", dropped)
	}
	patch.Apply(&item)

	if item.RelevanceScore != nil || item.PublishedAt != nil || item.Summary != "" {
		t.Fatalf("expected cleared fields, got %+v", item)
	}
}

func TestRunReportOutcome(t *testing.T) {
	t.Parallel()

	ok := RunReport{Status: RunSuccess, Processed: 3, Succeeded: 2, Failed: 1}
	if ok.Outcome().Details != nil {
		t.Fatalf("expected no details without failed sources")
	}

	partial := RunReport{
		Status:        RunPartialSuccess,
		FailedSources: []FailedSource{{URL: "https://down.test/rss", Reason: "timeout"}},
	}
	details := partial.Outcome().Details
	failed, ok2 := details["failed_feeds"].([]FailedSource)
	if !ok2 || len(failed) != 1 || failed[0].URL != "https://down.test/rss" {
		t.Fatalf("unexpected details: %#v", details)
	}
}
