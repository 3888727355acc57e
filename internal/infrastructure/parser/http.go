package parser

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"
	"golang.org/x/time/rate"
)

const defaultUserAgent = "NewsCollector/1.0"

// Fetcher performs polite GET requests shared by every scanner.
type Fetcher struct {
	client    *http.Client
	limiter   *rate.Limiter
	userAgent string
}

// NewFetcher wires an HTTP client; a non-positive rps disables rate limiting.
func NewFetcher(client *http.Client, userAgent string, rps float64) *Fetcher {
	if client == nil {
		client = &http.Client{Timeout: 30 * time.Second}
	}
	if userAgent == "" {
		userAgent = defaultUserAgent
	}
	limit := rate.Inf
	if rps > 0 {
		limit = rate.Limit(rps)
	}
	return &Fetcher{
		client:    client,
		limiter:   rate.NewLimiter(limit, 1),
		userAgent: userAgent,
	}
}

// UserAgent returns the header value sent with every request.
func (f *Fetcher) UserAgent() string {
	return f.userAgent
}

// Get returns the response body of a 200 reply; the caller closes it.
func (f *Fetcher) Get(ctx context.Context, target, accept string) (io.ReadCloser, error) {
	if err := f.limiter.Wait(ctx); err != nil {
		return nil, err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, target, nil)
	if err != nil {
		return nil, fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("User-Agent", f.userAgent)
	if accept != "" {
		req.Header.Set("Accept", accept)
	}

	resp, err := f.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("request %s: %w", target, err)
	}
	if resp.StatusCode != http.StatusOK {
		_ = resp.Body.Close()
		return nil, fmt.Errorf("%s returned %s", target, resp.Status)
	}
	return resp.Body, nil
}

// Document fetches and parses an HTML page.
func (f *Fetcher) Document(ctx context.Context, target string) (*goquery.Document, error) {
	body, err := f.Get(ctx, target, "text/html,application/xhtml+xml")
	if err != nil {
		return nil, err
	}
	defer body.Close()

	doc, err := goquery.NewDocumentFromReader(body)
	if err != nil {
		return nil, fmt.Errorf("parse document: %w", err)
	}
	return doc, nil
}

// htmlToText strips markup and collapses whitespace.
func htmlToText(fragment string) string {
	if !strings.ContainsAny(fragment, "<&") {
		return collapseSpace(fragment)
	}
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(fragment))
	if err != nil {
		return collapseSpace(fragment)
	}
	doc.Find("script, style").Remove()
	return collapseSpace(doc.Text())
}

func collapseSpace(s string) string {
	return strings.Join(strings.Fields(s), " ")
}
