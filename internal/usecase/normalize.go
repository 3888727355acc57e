package usecase

import (
	"maps"
	"strings"
	"time"

	"github.com/araddon/dateparse"
	"github.com/google/uuid"

	"NewsCollector/internal/config"
	"NewsCollector/internal/domain"
)

// ItemID derives a stable item id from the entry link.
func ItemID(link string) string {
	return uuid.NewSHA1(uuid.NameSpaceURL, []byte(link)).String()
}

// normalizeEntry turns a fetched entry into a collected item.
// Entries without a title or a link are rejected.
func normalizeEntry(entry domain.RawEntry, source config.SourceConfig, now time.Time) (domain.CollectedItem, bool) {
	title := strings.TrimSpace(entry.Title)
	link := strings.TrimSpace(entry.Link)
	if title == "" || link == "" {
		return domain.CollectedItem{}, false
	}

	categories := []string{}
	if c := strings.TrimSpace(source.Category); c != "" {
		categories = append(categories, c)
	}

	extra := map[string]any{}
	maps.Copy(extra, entry.Extra)
	extra["source_name"] = source.Name

	return domain.CollectedItem{
		ID:               ItemID(link),
		SourceURL:        source.URL,
		SourceType:       sourceTypeFor(source.Kind),
		CollectedAt:      now.UTC(),
		Title:            title,
		Link:             link,
		PublishedAt:      publishedAt(entry),
		Summary:          strings.TrimSpace(entry.Summary),
		Content:          strings.TrimSpace(entry.Content),
		Author:           strings.TrimSpace(entry.Author),
		Categories:       categories,
		Tags:             uniqueTags(entry.Tags),
		ProcessingStatus: domain.StatusRaw,
		ExtraData:        extra,
	}, true
}

// publishedAt prefers the structured publish time, then the raw publish string
// (naive values read as UTC), then the update time.
func publishedAt(entry domain.RawEntry) *time.Time {
	if entry.PublishedParsed != nil {
		t := entry.PublishedParsed.UTC()
		return &t
	}
	if raw := strings.TrimSpace(entry.Published); raw != "" {
		if t, err := dateparse.ParseIn(raw, time.UTC); err == nil {
			t = t.UTC()
			return &t
		}
	}
	if entry.UpdatedParsed != nil {
		t := entry.UpdatedParsed.UTC()
		return &t
	}
	return nil
}

func sourceTypeFor(kind string) domain.SourceType {
	switch strings.ToLower(kind) {
	case config.KindRSS:
		return domain.SourceRSS
	case config.KindCrawl:
		return domain.SourceCrawling
	case config.KindAPI:
		return domain.SourceAPI
	default:
		return domain.SourceUnknown
	}
}

func uniqueTags(tags []string) []string {
	out := make([]string, 0, len(tags))
	seen := make(map[string]struct{}, len(tags))
	for _, tag := range tags {
		tag = strings.TrimSpace(tag)
		if tag == "" {
			continue
		}
		if _, dup := seen[tag]; dup {
			continue
		}
		seen[tag] = struct{}{}
		out = append(out, tag)
	}
	return out
}
