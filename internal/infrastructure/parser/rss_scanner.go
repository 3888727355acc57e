package parser

import (
	"context"
	"fmt"
	"strings"

	"github.com/mmcdole/gofeed"

	"NewsCollector/internal/config"
	"NewsCollector/internal/domain"
	"NewsCollector/internal/scanner"
)

const feedAccept = "application/rss+xml, application/atom+xml, application/xml;q=0.9, */*;q=0.8"

// RSSScanner reads RSS and Atom feeds.
type RSSScanner struct {
	fetcher *Fetcher
}

var _ scanner.Scanner = (*RSSScanner)(nil)

func NewRSSScanner(fetcher *Fetcher) *RSSScanner {
	return &RSSScanner{fetcher: fetcher}
}

// Name identifies the strategy inside the registry.
func (s *RSSScanner) Name() string {
	return config.KindRSS
}

// Scan downloads the feed and converts every item. A malformed feed fails the whole source.
func (s *RSSScanner) Scan(ctx context.Context, req scanner.Request) ([]domain.RawEntry, error) {
	body, err := s.fetcher.Get(ctx, req.URL, feedAccept)
	if err != nil {
		return nil, err
	}
	defer body.Close()

	feed, err := gofeed.NewParser().Parse(body)
	if err != nil {
		return nil, fmt.Errorf("parse feed %s: %w", req.URL, err)
	}

	entries := make([]domain.RawEntry, 0, len(feed.Items))
	for _, item := range feed.Items {
		if item == nil {
			continue
		}
		entries = append(entries, toRawEntry(item))
	}
	return entries, nil
}

func toRawEntry(item *gofeed.Item) domain.RawEntry {
	entry := domain.RawEntry{
		Title:           collapseSpace(item.Title),
		Link:            strings.TrimSpace(item.Link),
		Summary:         htmlToText(item.Description),
		Content:         htmlToText(item.Content),
		Tags:            item.Categories,
		PublishedParsed: item.PublishedParsed,
		Published:       item.Published,
		UpdatedParsed:   item.UpdatedParsed,
	}
	if entry.Link == "" && len(item.Links) > 0 {
		entry.Link = strings.TrimSpace(item.Links[0])
	}
	if item.Author != nil {
		entry.Author = item.Author.Name
	} else if len(item.Authors) > 0 && item.Authors[0] != nil {
		entry.Author = item.Authors[0].Name
	}
	if item.GUID != "" {
		entry.Extra = map[string]any{"guid": item.GUID}
	}
	return entry
}
