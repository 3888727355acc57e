package main

import (
	"reflect"
	"strings"
	"testing"
	"time"

	"NewsCollector/internal/domain"
)

func TestParseAssignments(t *testing.T) {
	t.Parallel()

	got, err := parseAssignments([]string{
		"title=Hello = world",
		"relevance_score=0.75",
		"tags=[\"llm\",\"agents\"]",
		"categories=media",
		"summary=null",
		"author=true",
		"link=2024",
		"extra_data.lang=en",
		"extra_data={\"lang\":\"ko\"}",
	})
	if err != nil {
		t.Fatalf("parseAssignments: %v", err)
	}
	want := map[string]any{
		"title":           "Hello = world",
		"relevance_score": 0.75,
		"tags":            []any{"llm", "agents"},
		"categories":      "media",
		"summary":         nil,
		"author":          "true",
		"link":            "2024",
		"extra_data.lang": "en",
		"extra_data":      map[string]any{"lang": "ko"},
	}
	if !reflect.DeepEqual(got, want) {
		t.Fatalf("got %#v, want %#v", got, want)
	}

	if _, err := parseAssignments([]string{"novalue"}); err == nil {
		t.Fatalf("expected error for argument without '='")
	}
	if _, err := parseAssignments([]string{"=x"}); err == nil {
		t.Fatalf("expected error for empty key")
	}
}

func TestNumericLookingTitleStaysText(t *testing.T) {
	t.Parallel()

	fields, err := parseAssignments([]string{"title=2024", "relevance_score=2024"})
	if err != nil {
		t.Fatalf("parseAssignments: %v", err)
	}
	if fields["title"] != "2024" {
		t.Fatalf("title decoded as %T, want string", fields["title"])
	}
	if fields["relevance_score"] != float64(2024) {
		t.Fatalf("relevance_score decoded as %#v", fields["relevance_score"])
	}

	patch, dropped := domain.ParsePatch(fields)
	if len(dropped) != 0 || patch[domain.FieldTitle] != "2024" {
		t.Fatalf("unexpected patch %v (dropped %v)", patch, dropped)
	}
}

func TestRenderReportListsFailedSources(t *testing.T) {
	t.Parallel()

	start := time.Date(2025, 3, 3, 10, 0, 0, 0, time.UTC)
	out := renderReport(domain.RunReport{
		TaskName:      "rss_collection",
		Status:        domain.RunPartialSuccess,
		Sources:       2,
		Processed:     5,
		Succeeded:     4,
		Failed:        1,
		ErrorMessage:  "1 sources failed",
		FailedSources: []domain.FailedSource{{URL: "https://down.test/rss", Reason: "status 503"}},
		StartedAt:     start,
		FinishedAt:    start.Add(1500 * time.Millisecond),
	})
	for _, want := range []string{"PARTIAL_SUCCESS", "rss_collection", "https://down.test/rss", "status 503", "1.5s"} {
		if !strings.Contains(out, want) {
			t.Fatalf("expected %q in output:\n%s", want, out)
		}
	}
}

func TestTruncate(t *testing.T) {
	t.Parallel()

	if got := truncate("short", 10); got != "short" {
		t.Fatalf("unexpected %q", got)
	}
	if got := truncate("Привет мир", 7); got != "Привет…" {
		t.Fatalf("unexpected %q", got)
	}
}
