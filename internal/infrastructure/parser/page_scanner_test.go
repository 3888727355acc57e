package parser

import (
	"context"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"

	"github.com/PuerkitoBio/goquery"

	"NewsCollector/internal/config"
	"NewsCollector/internal/scanner"
)

const listingPage = `
<html><body>
  <article>
    <h2>Constitutional classifiers</h2>
    <a href="/research/classifiers#top">Read more</a>
    <p>Defending against   jailbreaks.</p>
    <time datetime="2025-02-03T00:00:00Z">Feb 3, 2025</time>
  </article>
  <article>
    <a href="https://other.test/post">Tracing model thoughts</a>
    <time>March 27, 2025</time>
  </article>
  <article>
    <h2>Duplicate link</h2>
    <a href="/research/classifiers">again</a>
  </article>
  <article>
    <h2>No link at all</h2>
  </article>
</body></html>`

func TestResolveLink(t *testing.T) {
	t.Parallel()

	base, _ := url.Parse("https://example.test/news/index.html")
	cases := map[string]string{
		"/a":                 "https://example.test/a",
		"b":                  "https://example.test/news/b",
		"https://x.test/c#f": "https://x.test/c",
		"#anchor":            "",
		"javascript:void(0)": "",
		"":                   "",
	}
	for href, want := range cases {
		if got := resolveLink(base, href); got != want {
			t.Errorf("resolveLink(%q) = %q, want %q", href, got, want)
		}
	}
}

func TestExtractEntries(t *testing.T) {
	t.Parallel()

	doc, err := goquery.NewDocumentFromReader(strings.NewReader(listingPage))
	if err != nil {
		t.Fatalf("new document: %v", err)
	}
	base, _ := url.Parse("https://example.test/news")

	entries := extractEntries(doc, base, scanner.Request{})
	if len(entries) != 2 {
		t.Fatalf("expected 2 entries, got %d: %+v", len(entries), entries)
	}

	first := entries[0]
	if first.Title != "Constitutional classifiers" {
		t.Fatalf("unexpected title: %q", first.Title)
	}
	if first.Link != "https://example.test/research/classifiers" {
		t.Fatalf("unexpected link: %s", first.Link)
	}
	if first.Summary != "Defending against jailbreaks." {
		t.Fatalf("unexpected summary: %q", first.Summary)
	}
	if first.Published != "2025-02-03T00:00:00Z" {
		t.Fatalf("expected datetime attribute, got %q", first.Published)
	}

	second := entries[1]
	if second.Title != "Tracing model thoughts" {
		t.Fatalf("expected anchor text as title, got %q", second.Title)
	}
	if second.Published != "March 27, 2025" {
		t.Fatalf("unexpected published text: %q", second.Published)
	}
}

func TestExtractEntriesCustomSelectors(t *testing.T) {
	t.Parallel()

	html := `<ul><li class="post"><span class="t">Hello</span><a class="go" href="/p/1">x</a></li></ul>`
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(html))
	if err != nil {
		t.Fatalf("new document: %v", err)
	}
	base, _ := url.Parse("https://example.test/")

	entries := extractEntries(doc, base, scanner.Request{Options: map[string]string{
		OptionItemSelector:  "li.post",
		OptionTitleSelector: ".t",
		OptionLinkSelector:  "a.go",
	}})
	if len(entries) != 1 || entries[0].Title != "Hello" || entries[0].Link != "https://example.test/p/1" {
		t.Fatalf("unexpected entries: %+v", entries)
	}
}

func TestPageScannerRespectsRobots(t *testing.T) {
	t.Parallel()

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/robots.txt":
			_, _ = w.Write([]byte("User-agent: *\nDisallow: /private\n"))
		default:
			_, _ = w.Write([]byte(listingPage))
		}
	}))
	defer server.Close()

	sc := NewPageScanner(NewFetcher(server.Client(), "collector-test/1.0", 0))
	if sc.Name() != config.KindCrawl {
		t.Fatalf("unexpected name: %s", sc.Name())
	}

	entries, err := sc.Scan(context.Background(), scanner.Request{URL: server.URL + "/news"})
	if err != nil {
		t.Fatalf("Scan error: %v", err)
	}
	if len(entries) != 2 {
		t.Fatalf("expected 2 entries, got %d", len(entries))
	}
	if !strings.HasPrefix(entries[0].Link, server.URL+"/research/") {
		t.Fatalf("expected link resolved against server, got %s", entries[0].Link)
	}

	if _, err := sc.Scan(context.Background(), scanner.Request{URL: server.URL + "/private/list"}); err == nil {
		t.Fatalf("expected robots.txt to block /private")
	}
}

func TestPageScannerAllowsWithoutRobots(t *testing.T) {
	t.Parallel()

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/robots.txt" {
			http.NotFound(w, r)
			return
		}
		_, _ = w.Write([]byte(listingPage))
	}))
	defer server.Close()

	sc := NewPageScanner(NewFetcher(server.Client(), "", 0))
	entries, err := sc.Scan(context.Background(), scanner.Request{URL: server.URL + "/private/list"})
	if err != nil {
		t.Fatalf("Scan error: %v", err)
	}
	if len(entries) != 2 {
		t.Fatalf("expected 2 entries, got %d", len(entries))
	}
}
