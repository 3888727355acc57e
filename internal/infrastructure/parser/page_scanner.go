package parser

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"sync"

	"github.com/PuerkitoBio/goquery"
	"github.com/temoto/robotstxt"

	"NewsCollector/internal/config"
	"NewsCollector/internal/domain"
	"NewsCollector/internal/scanner"
)

// Source option keys read by PageScanner.
const (
	OptionItemSelector    = "item_selector"
	OptionTitleSelector   = "title_selector"
	OptionLinkSelector    = "link_selector"
	OptionSummarySelector = "summary_selector"
	OptionDateSelector    = "date_selector"
)

const (
	defaultItemSelector    = "article"
	defaultTitleSelector   = "h1, h2, h3"
	defaultLinkSelector    = "a[href]"
	defaultSummarySelector = "p"
	defaultDateSelector    = "time"
)

// PageScanner crawls an HTML listing page and extracts one entry per matched block.
type PageScanner struct {
	fetcher *Fetcher

	mu     sync.Mutex
	robots map[string]*robotstxt.RobotsData
}

var _ scanner.Scanner = (*PageScanner)(nil)

func NewPageScanner(fetcher *Fetcher) *PageScanner {
	return &PageScanner{fetcher: fetcher, robots: map[string]*robotstxt.RobotsData{}}
}

// Name identifies the strategy inside the registry.
func (p *PageScanner) Name() string {
	return config.KindCrawl
}

// Scan fetches the listing page, honoring robots.txt, and returns entries in page order.
func (p *PageScanner) Scan(ctx context.Context, req scanner.Request) ([]domain.RawEntry, error) {
	base, err := url.Parse(req.URL)
	if err != nil || base.Host == "" {
		return nil, fmt.Errorf("invalid page url %q", req.URL)
	}

	if !p.allowed(ctx, base) {
		return nil, fmt.Errorf("robots.txt disallows %s", req.URL)
	}

	doc, err := p.fetcher.Document(ctx, req.URL)
	if err != nil {
		return nil, err
	}

	return extractEntries(doc, base, req), nil
}

func extractEntries(doc *goquery.Document, base *url.URL, req scanner.Request) []domain.RawEntry {
	var (
		entries    []domain.RawEntry
		seen       = map[string]struct{}{}
		titleSel   = req.Option(OptionTitleSelector, defaultTitleSelector)
		linkSel    = req.Option(OptionLinkSelector, defaultLinkSelector)
		summarySel = req.Option(OptionSummarySelector, defaultSummarySelector)
		dateSel    = req.Option(OptionDateSelector, defaultDateSelector)
	)

	doc.Find(req.Option(OptionItemSelector, defaultItemSelector)).Each(func(_ int, block *goquery.Selection) {
		entry, ok := parseBlock(block, base, titleSel, linkSel, summarySel, dateSel)
		if !ok {
			return
		}
		if _, dup := seen[entry.Link]; dup {
			return
		}
		seen[entry.Link] = struct{}{}
		entries = append(entries, entry)
	})

	return entries
}

func parseBlock(block *goquery.Selection, base *url.URL, titleSel, linkSel, summarySel, dateSel string) (domain.RawEntry, bool) {
	anchor := block.Find(linkSel).First()
	if anchor.Length() == 0 && block.Is(linkSel) {
		anchor = block
	}
	href, _ := anchor.Attr("href")
	link := resolveLink(base, href)
	if link == "" {
		return domain.RawEntry{}, false
	}

	title := collapseSpace(block.Find(titleSel).First().Text())
	if title == "" {
		title = collapseSpace(anchor.Text())
	}

	var published string
	if dateNode := block.Find(dateSel).First(); dateNode.Length() > 0 {
		if attr, ok := dateNode.Attr("datetime"); ok && strings.TrimSpace(attr) != "" {
			published = strings.TrimSpace(attr)
		} else {
			published = collapseSpace(dateNode.Text())
		}
	}

	return domain.RawEntry{
		Title:     title,
		Link:      link,
		Summary:   collapseSpace(block.Find(summarySel).First().Text()),
		Published: published,
	}, true
}

func resolveLink(base *url.URL, href string) string {
	href = strings.TrimSpace(href)
	if href == "" || strings.HasPrefix(href, "#") || strings.HasPrefix(strings.ToLower(href), "javascript:") {
		return ""
	}
	ref, err := url.Parse(href)
	if err != nil {
		return ""
	}
	resolved := base.ResolveReference(ref)
	resolved.Fragment = ""
	return resolved.String()
}

// allowed reports whether robots.txt permits fetching target. An unreachable robots file allows the crawl.
func (p *PageScanner) allowed(ctx context.Context, target *url.URL) bool {
	robots := p.robotsFor(ctx, target)
	if robots == nil {
		return true
	}
	path := target.EscapedPath()
	if path == "" {
		path = "/"
	}
	if target.RawQuery != "" {
		path += "?" + target.RawQuery
	}
	return robots.TestAgent(path, p.fetcher.UserAgent())
}

func (p *PageScanner) robotsFor(ctx context.Context, target *url.URL) *robotstxt.RobotsData {
	host := target.Scheme + "://" + target.Host

	p.mu.Lock()
	cached, ok := p.robots[host]
	p.mu.Unlock()
	if ok {
		return cached
	}

	robots := p.loadRobots(ctx, host+"/robots.txt")
	if ctx.Err() != nil {
		return robots
	}

	p.mu.Lock()
	p.robots[host] = robots
	p.mu.Unlock()
	return robots
}

func (p *PageScanner) loadRobots(ctx context.Context, robotsURL string) *robotstxt.RobotsData {
	if err := p.fetcher.limiter.Wait(ctx); err != nil {
		return nil
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, robotsURL, nil)
	if err != nil {
		return nil
	}
	req.Header.Set("User-Agent", p.fetcher.userAgent)

	resp, err := p.fetcher.client.Do(req)
	if err != nil {
		return nil
	}
	defer resp.Body.Close()

	if resp.StatusCode >= http.StatusInternalServerError {
		return nil
	}
	body, err := io.ReadAll(io.LimitReader(resp.Body, 512*1024))
	if err != nil {
		return nil
	}
	robots, err := robotstxt.FromStatusAndBytes(resp.StatusCode, body)
	if err != nil {
		return nil
	}
	return robots
}
